package audio

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"

	"github.com/bogem/id3v2/v2"

	"github.com/ramsesware/0FF1C3-T00LS/core"
)

// ─── MP3 ─────────────────────────────────────────────────────────────────────

const id3v1Size = 128

// stripMP3 removes the ID3v2 tag through bogem/id3v2, which rewrites the
// file via a temp file, then drops a trailing ID3v1 block. ok is false when
// the file carries neither. ID3v2.2 tags, which bogem/id3v2 cannot parse,
// are cut off as a whole block.
func stripMP3(path string) (bool, error) {
	// id3v2 renames its temp file over the name it opened.
	if real, err := filepath.EvalSymlinks(path); err == nil {
		path = real
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false, core.IOError(err, "failed to read audio", path)
	}
	hasV2 := bytes.HasPrefix(data, []byte("ID3"))
	hasV1 := hasID3v1(data)
	if !hasV2 && !hasV1 {
		return false, nil
	}

	if hasV2 {
		if err := stripID3v2(path, data); err != nil {
			return false, err
		}
	}

	if hasV1 {
		data, err := os.ReadFile(path)
		if err != nil {
			return false, core.IOError(err, "failed to read audio", path)
		}
		if hasID3v1(data) {
			if err := core.WriteFileAtomic(path, data[:len(data)-id3v1Size]); err != nil {
				return false, err
			}
		}
	}
	return true, nil
}

func stripID3v2(path string, data []byte) error {
	t, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if errors.Is(err, id3v2.ErrUnsupportedVersion) {
		n := id3v2Length(data)
		if n == 0 {
			return core.Corrupt(err, "failed to parse ID3v2 tag", path)
		}
		return core.WriteFileAtomic(path, data[n:])
	}
	if err != nil {
		return core.Corrupt(err, "failed to parse ID3v2 tag", path)
	}
	t.DeleteAllFrames()
	err = t.Save()
	t.Close()
	if err != nil {
		return core.IOError(err, "failed to save MP3", path)
	}
	return nil
}

func hasID3v1(data []byte) bool {
	return len(data) >= id3v1Size && bytes.HasPrefix(data[len(data)-id3v1Size:], []byte("TAG"))
}
