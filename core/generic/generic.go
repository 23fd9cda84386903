// Package generic is the fallback handler for files no other handler
// claims. It reports filesystem attributes and never modifies the file.
package generic

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/ramsesware/0FF1C3-T00LS/core"
)

const (
	category   = "Filesystem"
	timeLayout = "2006-01-02 15:04:05"
)

// fileStat is the platform view of a file's attributes. Empty strings and
// zero times mean the platform does not report the value.
type fileStat struct {
	Size     int64
	Mode     os.FileMode
	Birth    time.Time
	Modified time.Time
	Accessed time.Time
	Inode    string
	Device   string
	Links    string
	UID      string
	GID      string
}

// Handler implements core.Handler for unclassified files.
type Handler struct{}

// New returns the fallback handler.
func New() *Handler { return &Handler{} }

func (h *Handler) Info() core.FormatInfo {
	return core.FormatInfo{
		Name:     "Generic",
		Family:   core.FamilyGeneric,
		CanStrip: false,
		Notes:    "Filesystem attributes only.",
	}
}

func (h *Handler) Extract(path string) (*core.Outcome, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, core.IOError(err, "failed to resolve path", path)
	}
	st, err := statFile(abs)
	if err != nil {
		return nil, core.IOError(err, "failed to stat file", path)
	}

	m := core.NewMetadata(path, "Generic")
	m.Set("Ruta", abs, category)
	m.Set("Tamaño", strconv.FormatInt(st.Size, 10), category)
	m.Set("Fecha de creación", formatTime(st.Birth), category)
	m.Set("Última modificación", formatTime(st.Modified), category)
	m.Set("Último acceso", formatTime(st.Accessed), category)
	m.Set("Modo permisos", fmt.Sprintf("%O", uint32(st.Mode.Perm())), category)
	m.Set("Número inodo", core.OrNA(st.Inode), category)
	m.Set("Dispositivo", core.OrNA(st.Device), category)
	m.Set("Número enlaces", core.OrNA(st.Links), category)
	m.Set("Propietario UID", core.OrNA(st.UID), category)
	m.Set("Grupo GID", core.OrNA(st.GID), category)

	return &core.Outcome{Path: path, Format: core.FmtGeneric, Status: core.StatusOK, Metadata: m}, nil
}

// Strip reports the file as unsupported. Its bytes are never touched.
func (h *Handler) Strip(path string) (*core.Outcome, error) {
	return core.Unsupported(path, core.FmtGeneric), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return core.NotAvailable
	}
	return t.Local().Format(timeLayout)
}
