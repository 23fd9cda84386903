package audio

import (
	"bytes"
	"os"

	"github.com/ramsesware/0FF1C3-T00LS/core"
	"github.com/ramsesware/0FF1C3-T00LS/core/riff"
)

// ─── WAV ─────────────────────────────────────────────────────────────────────

func isID3Chunk(id string) bool { return id == "id3 " || id == "ID3 " }

// extractWAV reads LIST/INFO entries and any embedded ID3 chunk. A file that
// is not a WAVE container leaves m empty.
func extractWAV(path string, m *core.Metadata) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return core.IOError(err, "failed to read audio", path)
	}
	f, err := riff.Parse(data)
	if err != nil || f.Form != "WAVE" {
		return nil
	}

	for _, c := range f.Chunks {
		switch {
		case c.ID == "LIST" && c.List == "INFO":
			sub, err := c.Sub()
			if err != nil {
				return core.Corrupt(err, "failed to read INFO list", path)
			}
			for _, s := range sub {
				if v := riff.Text(s.Data); v != "" {
					m.Set(riff.InfoName(s.ID), v, "RIFF INFO")
				}
			}
		case isID3Chunk(c.ID):
			if err := addTags(bytes.NewReader(c.Data), m); err != nil {
				return err
			}
		}
	}
	return nil
}

// stripWAV drops the INFO list and ID3 chunks and rebuilds the container.
func stripWAV(data []byte) ([]byte, bool, error) {
	f, err := riff.Parse(data)
	if err != nil || f.Form != "WAVE" {
		return nil, false, nil
	}
	kept := f.Chunks[:0:0]
	for _, c := range f.Chunks {
		if (c.ID == "LIST" && c.List == "INFO") || isID3Chunk(c.ID) {
			continue
		}
		kept = append(kept, c)
	}
	return riff.Build(f.Form, kept), true, nil
}
