// Package document handles metadata for document formats:
// PDF, DOCX, XLSX, PPTX
package document

import "github.com/ramsesware/0FF1C3-T00LS/core"

// Handler implements core.Handler for document formats.
type Handler struct {
	format core.FormatID
}

// New returns a document Handler for the given format.
func New(fmt core.FormatID) *Handler { return &Handler{format: fmt} }

func (h *Handler) Info() core.FormatInfo {
	return formatInfo[h.format]
}

var formatInfo = map[core.FormatID]core.FormatInfo{
	core.FmtPDF: {
		Name:       "PDF",
		Extensions: []string{".pdf"},
		Family:     core.FamilyPDF,
		MIMETypes:  []string{"application/pdf"},
		CanStrip:   true,
		Notes:      "Info dictionary. Encrypted or signed files are refused.",
	},
	core.FmtDOCX: {
		Name:       "DOCX",
		Extensions: []string{".docx"},
		Family:     core.FamilyOffice,
		MIMETypes:  []string{"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		CanStrip:   true,
		Notes:      "OPC ZIP container. Reads and clears docProps/core.xml and docProps/app.xml.",
	},
	core.FmtXLSX: {
		Name:       "XLSX",
		Extensions: []string{".xlsx"},
		Family:     core.FamilyOffice,
		MIMETypes:  []string{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"},
		CanStrip:   true,
		Notes:      "OPC ZIP container. Generator-library creator fields are suppressed.",
	},
	core.FmtPPTX: {
		Name:       "PPTX",
		Extensions: []string{".pptx"},
		Family:     core.FamilyOffice,
		MIMETypes:  []string{"application/vnd.openxmlformats-officedocument.presentationml.presentation"},
		CanStrip:   true,
		Notes:      "OPC ZIP container. Reads and clears docProps/core.xml and docProps/app.xml.",
	},
}

// ──────────────────────────────────────────────────────────────────────────────
// Extract
// ──────────────────────────────────────────────────────────────────────────────

func (h *Handler) Extract(path string) (*core.Outcome, error) {
	switch h.format {
	case core.FmtPDF:
		return extractPDF(path)
	case core.FmtDOCX, core.FmtXLSX, core.FmtPPTX:
		return extractOffice(path, h.format)
	default:
		return core.Unsupported(path, h.format), nil
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Strip
// ──────────────────────────────────────────────────────────────────────────────

func (h *Handler) Strip(path string) (*core.Outcome, error) {
	switch h.format {
	case core.FmtPDF:
		return stripPDF(path)
	case core.FmtDOCX, core.FmtXLSX, core.FmtPPTX:
		return stripOffice(path, h.format)
	default:
		return core.Unsupported(path, h.format), nil
	}
}
