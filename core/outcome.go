package core

import (
	"fmt"
	"path/filepath"
)

// Stripped reports that path was cleaned in place.
func Stripped(path string, format FormatID) *Outcome {
	return &Outcome{
		Path:    path,
		Format:  format,
		Status:  StatusOK,
		Output:  path,
		Message: fmt.Sprintf("Archivo: %s - Los metadatos se eliminaron correctamente.", filepath.Base(path)),
	}
}

// Unsupported reports that no handler can remove metadata from path. The
// file is never touched.
func Unsupported(path string, format FormatID) *Outcome {
	return &Outcome{
		Path:    path,
		Format:  format,
		Status:  StatusUnsupported,
		Message: fmt.Sprintf("Archivo: %s - Tipo de archivo no soportado para eliminación de metadatos.", filepath.Base(path)),
	}
}

// NoMetadata is the sentinel for a file with nothing to report.
func NoMetadata(path string, format FormatID, msg string) *Outcome {
	return &Outcome{
		Path:    path,
		Format:  format,
		Status:  StatusNoMetadata,
		Message: fmt.Sprintf("Archivo: %s - %s", filepath.Base(path), msg),
	}
}

// Failed converts a handler error into an error outcome.
func Failed(path string, format FormatID, err error) *Outcome {
	return &Outcome{
		Path:    path,
		Format:  format,
		Status:  StatusError,
		Message: fmt.Sprintf("ERROR: No se pudo procesar el archivo %s. Error: %v", filepath.Base(path), err),
		Err:     err,
	}
}
