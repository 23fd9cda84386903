// Package audio handles metadata for audio formats:
// MP3 (ID3v1/v2), FLAC, OGG Vorbis, Opus, WAV, M4A
package audio

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dhowden/tag"

	"github.com/ramsesware/0FF1C3-T00LS/core"
)

// Handler implements core.Handler for audio formats.
type Handler struct {
	format core.FormatID
}

// New returns an audio Handler for the given format.
func New(fmt core.FormatID) *Handler { return &Handler{format: fmt} }

func (h *Handler) Info() core.FormatInfo {
	return formatInfo[h.format]
}

var formatInfo = map[core.FormatID]core.FormatInfo{
	core.FmtMP3: {
		Name:       "MP3",
		Extensions: []string{".mp3"},
		Family:     core.FamilyAudio,
		MIMETypes:  []string{"audio/mpeg"},
		CanStrip:   true,
		Notes:      "ID3v1 and ID3v2 tags.",
	},
	core.FmtFLAC: {
		Name:       "FLAC",
		Extensions: []string{".flac"},
		Family:     core.FamilyAudio,
		MIMETypes:  []string{"audio/flac"},
		CanStrip:   true,
		Notes:      "Vorbis comment and picture blocks.",
	},
	core.FmtOGG: {
		Name:       "OGG",
		Extensions: []string{".ogg", ".oga"},
		Family:     core.FamilyAudio,
		MIMETypes:  []string{"audio/ogg"},
		CanStrip:   true,
		Notes:      "Vorbis comment header. Strip repaginates the header pages.",
	},
	core.FmtOpus: {
		Name:       "Opus",
		Extensions: []string{".opus"},
		Family:     core.FamilyAudio,
		MIMETypes:  []string{"audio/opus"},
		CanStrip:   true,
		Notes:      "OpusTags header. Strip repaginates the header pages.",
	},
	core.FmtM4A: {
		Name:       "M4A",
		Extensions: []string{".m4a"},
		Family:     core.FamilyAudio,
		MIMETypes:  []string{"audio/mp4"},
		CanStrip:   true,
		Notes:      "iTunes-style atoms (©nam, ©ART, ...) under moov/udta.",
	},
	core.FmtWAV: {
		Name:       "WAV",
		Extensions: []string{".wav", ".wave"},
		Family:     core.FamilyAudio,
		MIMETypes:  []string{"audio/wav"},
		CanStrip:   true,
		Notes:      "LIST INFO and id3 chunks.",
	},
}

const (
	noTagsMsg     = "No se encontraron etiquetas."
	noMetadataMsg = "No se encontraron metadatos."
)

// ──────────────────────────────────────────────────────────────────────────────
// Extract
// ──────────────────────────────────────────────────────────────────────────────

func (h *Handler) Extract(path string) (*core.Outcome, error) {
	m := core.NewMetadata(path, formatInfo[h.format].Name)

	var err error
	switch h.format {
	case core.FmtMP3, core.FmtFLAC, core.FmtOGG, core.FmtOpus, core.FmtM4A:
		err = extractTags(path, m)
	case core.FmtWAV:
		err = extractWAV(path, m)
	default:
		return core.Unsupported(path, h.format), nil
	}
	if err != nil {
		return nil, err
	}

	if m.Len() == 0 {
		out := core.NoMetadata(path, h.format, noTagsMsg)
		out.Metadata = m
		return out, nil
	}
	return &core.Outcome{Path: path, Format: h.format, Status: core.StatusOK, Metadata: m}, nil
}

// extractTags reads the tag block of path through dhowden/tag. A file the
// library does not recognize leaves m empty.
func extractTags(path string, m *core.Metadata) error {
	f, err := os.Open(path)
	if err != nil {
		return core.IOError(err, "failed to open audio", path)
	}
	defer f.Close()

	return addTags(f, m)
}

func addTags(r io.ReadSeeker, m *core.Metadata) error {
	t, err := tag.ReadFrom(r)
	if err != nil {
		return nil
	}

	category := string(t.Format())
	raw := t.Raw()
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	hasPicture := false
	for _, k := range keys {
		if _, ok := raw[k].(*tag.Picture); ok {
			hasPicture = true
		}
		if v := tagValue(raw[k]); v != "" {
			m.Set(k, v, category)
		}
	}
	if p := t.Picture(); p != nil && !hasPicture {
		m.Set("Picture", tagValue(p), category)
	}
	return nil
}

// tagValue renders one raw tag value.
func tagValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case []string:
		return strings.Join(v, "; ")
	case int:
		return fmt.Sprint(v)
	case *tag.Picture:
		return fmt.Sprintf("<picture %s, %d bytes>", v.MIMEType, len(v.Data))
	case *tag.Comm:
		return strings.TrimSpace(v.Text)
	case *tag.UFID:
		return fmt.Sprintf("%s:%x", v.Provider, v.Identifier)
	case []byte:
		return fmt.Sprintf("<%d bytes>", len(v))
	}
	return fmt.Sprint(v)
}

// ──────────────────────────────────────────────────────────────────────────────
// Strip
// ──────────────────────────────────────────────────────────────────────────────

func (h *Handler) Strip(path string) (*core.Outcome, error) {
	var (
		ok  bool
		err error
	)
	switch h.format {
	case core.FmtMP3:
		ok, err = stripMP3(path)
	case core.FmtFLAC:
		ok, err = rewrite(path, stripFLAC)
	case core.FmtOGG, core.FmtOpus:
		ok, err = rewrite(path, stripOgg)
	case core.FmtWAV:
		ok, err = rewrite(path, stripWAV)
	case core.FmtM4A:
		ok, err = stripM4A(path)
	default:
		return core.Unsupported(path, h.format), nil
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		return core.NoMetadata(path, h.format, noMetadataMsg), nil
	}
	return core.Stripped(path, h.format), nil
}

// rewrite loads path, passes it through strip and writes the result back
// atomically. ok is false when strip does not recognize the container.
func rewrite(path string, strip func(data []byte) ([]byte, bool, error)) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, core.IOError(err, "failed to read audio", path)
	}
	out, ok, err := strip(data)
	if err != nil {
		return false, core.Corrupt(err, "failed to strip audio", path)
	}
	if !ok {
		return false, nil
	}
	if err := core.WriteFileAtomic(path, out); err != nil {
		return false, err
	}
	return true, nil
}
