// Package video handles metadata for video containers:
// MP4/M4V, MOV, MKV, WebM, AVI
//
// Strip never modifies the source file. It writes a cleaned copy named
// "<name>_cleaned<ext>" beside it.
package video

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ramsesware/0FF1C3-T00LS/core"
)

// Handler implements core.Handler for video containers.
type Handler struct {
	format core.FormatID
}

// New returns a Handler for the given format.
func New(fmt core.FormatID) *Handler { return &Handler{format: fmt} }

func (h *Handler) Info() core.FormatInfo {
	return formatInfo[h.format]
}

var formatInfo = map[core.FormatID]core.FormatInfo{
	core.FmtMP4: {
		Name:       "MP4",
		Extensions: []string{".mp4", ".m4v"},
		Family:     core.FamilyVideo,
		MIMETypes:  []string{"video/mp4"},
		CanStrip:   true,
		Notes:      "udta, meta and header timestamps. Strip writes a _cleaned copy.",
	},
	core.FmtMOV: {
		Name:       "MOV",
		Extensions: []string{".mov", ".qt"},
		Family:     core.FamilyVideo,
		MIMETypes:  []string{"video/quicktime"},
		CanStrip:   true,
		Notes:      "QuickTime user data and keys metadata. Strip writes a _cleaned copy.",
	},
	core.FmtMKV: {
		Name:       "MKV",
		Extensions: []string{".mkv"},
		Family:     core.FamilyVideo,
		MIMETypes:  []string{"video/x-matroska"},
		CanStrip:   true,
		Notes:      "Segment info, tags and attachments. Strip writes a _cleaned copy.",
	},
	core.FmtWebM: {
		Name:       "WebM",
		Extensions: []string{".webm"},
		Family:     core.FamilyVideo,
		MIMETypes:  []string{"video/webm"},
		CanStrip:   true,
		Notes:      "Segment info and tags. Strip writes a _cleaned copy.",
	},
	core.FmtAVI: {
		Name:       "AVI",
		Extensions: []string{".avi"},
		Family:     core.FamilyVideo,
		MIMETypes:  []string{"video/x-msvideo"},
		CanStrip:   true,
		Notes:      "RIFF INFO list and header date chunks. Strip writes a _cleaned copy.",
	},
}

const (
	unparseableMsg = "No se pudo analizar el archivo de vídeo."
	noMetadataMsg  = "No se encontraron metadatos en el vídeo."
)

// parser builds the metadata tree of a container.
type parser func(r io.ReaderAt, size int64) (*Tree, error)

func (h *Handler) parser() parser {
	switch h.format {
	case core.FmtMP4, core.FmtMOV:
		return parseMP4
	case core.FmtMKV, core.FmtWebM:
		return parseEBML
	case core.FmtAVI:
		return parseAVI
	}
	return nil
}

// load opens path and parses its tree. A nil tree with a nil error means
// the container could not be parsed.
func (h *Handler) load(path string) (*Tree, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, core.IOError(err, "failed to open video", path)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return nil, core.IOError(err, "failed to stat video", path)
	}
	tree, err := h.parser()(f, st.Size())
	if err != nil {
		return nil, nil
	}
	return tree, nil
}

func unparseable(path string, format core.FormatID) *core.Outcome {
	return &core.Outcome{
		Path:    path,
		Format:  format,
		Status:  core.StatusUnparseable,
		Message: fmt.Sprintf("Archivo: %s - %s", filepath.Base(path), unparseableMsg),
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Extract
// ──────────────────────────────────────────────────────────────────────────────

func (h *Handler) Extract(path string) (*core.Outcome, error) {
	if h.parser() == nil {
		return core.Unsupported(path, h.format), nil
	}
	tree, err := h.load(path)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return unparseable(path, h.format), nil
	}

	m := core.NewMetadata(path, formatInfo[h.format].Name)
	tree.Flatten(m, formatInfo[h.format].Name)
	if m.Len() == 0 {
		out := core.NoMetadata(path, h.format, noMetadataMsg)
		out.Metadata = m
		return out, nil
	}
	return &core.Outcome{Path: path, Format: h.format, Status: core.StatusOK, Metadata: m}, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Strip
// ──────────────────────────────────────────────────────────────────────────────

// CleanedPath returns the output path of a video strip.
func CleanedPath(path string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "_cleaned" + ext
}

func (h *Handler) Strip(path string) (*core.Outcome, error) {
	if h.parser() == nil {
		return core.Unsupported(path, h.format), nil
	}
	tree, err := h.load(path)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return unparseable(path, h.format), nil
	}

	out := CleanedPath(path)
	err = core.CopyToSibling(path, out, func(f *os.File) error {
		for _, field := range tree.Fields {
			if err := field.clear(f); err != nil {
				return core.IOError(err, "failed to remove field", out)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &core.Outcome{
		Path:   path,
		Format: h.format,
		Status: core.StatusCopied,
		Output: out,
		Message: fmt.Sprintf("Archivo: %s - Copia sin metadatos guardada en %s. El archivo original no se modificó.",
			filepath.Base(path), filepath.Base(out)),
	}, nil
}
