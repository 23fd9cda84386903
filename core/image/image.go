// Package image handles metadata for raster image formats:
// JPEG, PNG, GIF, WebP, TIFF
package image

import (
	"os"

	"github.com/ramsesware/0FF1C3-T00LS/core"
)

// Handler implements core.Handler for raster images.
type Handler struct {
	format core.FormatID
}

// New returns a Handler for the given format.
func New(fmt core.FormatID) *Handler { return &Handler{format: fmt} }

func (h *Handler) Info() core.FormatInfo {
	return formatInfo[h.format]
}

var formatInfo = map[core.FormatID]core.FormatInfo{
	core.FmtJPEG: {
		Name:       "JPEG",
		Extensions: []string{".jpg", ".jpeg"},
		Family:     core.FamilyImage,
		MIMETypes:  []string{"image/jpeg"},
		CanStrip:   true,
		Notes:      "EXIF, XMP, IPTC, ICC and comments. Strip keeps JFIF and Adobe segments.",
	},
	core.FmtPNG: {
		Name:       "PNG",
		Extensions: []string{".png"},
		Family:     core.FamilyImage,
		MIMETypes:  []string{"image/png"},
		CanStrip:   true,
		Notes:      "eXIf, tEXt, iTXt, zTXt, tIME and pHYs chunks.",
	},
	core.FmtGIF: {
		Name:       "GIF",
		Extensions: []string{".gif"},
		Family:     core.FamilyImage,
		MIMETypes:  []string{"image/gif"},
		CanStrip:   true,
		Notes:      "Comment and application extensions. The animation loop block is kept.",
	},
	core.FmtWebP: {
		Name:       "WebP",
		Extensions: []string{".webp"},
		Family:     core.FamilyImage,
		MIMETypes:  []string{"image/webp"},
		CanStrip:   true,
		Notes:      "EXIF and XMP chunks in RIFF container.",
	},
	core.FmtTIFF: {
		Name:       "TIFF",
		Extensions: []string{".tiff", ".tif"},
		Family:     core.FamilyImage,
		MIMETypes:  []string{"image/tiff"},
		CanStrip:   false,
		Notes:      "IFD-based metadata. Extract only.",
	},
}

const noMetadataMsg = "No se encontraron metadatos en la imagen."

// container is the metadata view of one parsed image file.
type container interface {
	// exif returns the TIFF-structured EXIF payload, or nil.
	exif() []byte
	// sideInfo adds the decoder-level fields used when no EXIF is present.
	sideInfo(m *core.Metadata)
	// strip returns the file with its metadata removed.
	strip() ([]byte, error)
}

func parse(format core.FormatID, data []byte) (container, error) {
	switch format {
	case core.FmtJPEG:
		return parseJPEG(data)
	case core.FmtPNG:
		return parsePNG(data)
	case core.FmtGIF:
		return parseGIF(data)
	case core.FmtWebP:
		return parseWebP(data)
	case core.FmtTIFF:
		return parseTIFF(data)
	}
	return nil, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Extract
// ──────────────────────────────────────────────────────────────────────────────

func (h *Handler) Extract(path string) (*core.Outcome, error) {
	info, ok := formatInfo[h.format]
	if !ok {
		return core.Unsupported(path, h.format), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.IOError(err, "failed to read image", path)
	}
	c, err := parse(h.format, data)
	if err != nil {
		return nil, core.Corrupt(err, "failed to parse image", path)
	}

	m := core.NewMetadata(path, info.Name)
	if payload := c.exif(); payload != nil {
		if err := addEXIF(m, payload); err != nil && h.format == core.FmtTIFF {
			return nil, core.Corrupt(err, "failed to decode IFD chain", path)
		}
	}
	if m.Len() == 0 {
		c.sideInfo(m)
	}
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

func (h *Handler) Strip(path string) (*core.Outcome, error) {
	if !formatInfo[h.format].CanStrip {
		return core.Unsupported(path, h.format), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.IOError(err, "failed to read image", path)
	}
	c, err := parse(h.format, data)
	if err != nil {
		return nil, core.Corrupt(err, "failed to parse image", path)
	}
	clean, err := c.strip()
	if err != nil {
		return nil, core.Corrupt(err, "failed to rebuild image", path)
	}
	if err := core.WriteFileAtomic(path, clean); err != nil {
		return nil, err
	}
	return core.Stripped(path, h.format), nil
}
