package image

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"

	"github.com/ramsesware/0FF1C3-T00LS/core"
	"github.com/ramsesware/0FF1C3-T00LS/core/riff"
)

// VP8X feature flags describing the optional chunks.
const (
	vp8xXMP  = 0x04
	vp8xEXIF = 0x08
)

type webpFile struct {
	chunks []riff.Chunk
}

func parseWebP(data []byte) (*webpFile, error) {
	f, err := riff.Parse(data)
	if err != nil {
		return nil, err
	}
	if f.Form != "WEBP" {
		return nil, goerr.New("RIFF form is not WEBP", goerr.V("form", f.Form))
	}
	return &webpFile{chunks: f.Chunks}, nil
}

func (f *webpFile) exif() []byte {
	for _, c := range f.chunks {
		if c.ID == "EXIF" {
			return bytes.TrimPrefix(c.Data, exifHeader)
		}
	}
	return nil
}

func (f *webpFile) sideInfo(m *core.Metadata) {
	for _, c := range f.chunks {
		switch c.ID {
		case "XMP ":
			parseXMPInto(c.Data, m)
		case "ICCP":
			m.Set("ICCProfile", fmt.Sprintf("<%d bytes>", len(c.Data)), "ICC")
		case "VP8 ", "VP8L", "VP8X":
			m.Set("Encoding", strings.TrimSpace(c.ID), "WebP")
		}
	}
}

func (f *webpFile) strip() ([]byte, error) {
	kept := make([]riff.Chunk, 0, len(f.chunks))
	for _, c := range f.chunks {
		switch c.ID {
		case "EXIF", "XMP ":
			continue
		case "VP8X":
			if len(c.Data) > 0 {
				flags := append([]byte(nil), c.Data...)
				flags[0] &^= vp8xEXIF | vp8xXMP
				c.Data = flags
			}
		}
		kept = append(kept, c)
	}
	return riff.Build("WEBP", kept), nil
}
