package audio

import (
	"os"

	"github.com/ramsesware/0FF1C3-T00LS/core"
	"github.com/ramsesware/0FF1C3-T00LS/core/isobmff"
)

// ─── M4A ─────────────────────────────────────────────────────────────────────

// stripM4A neutralizes moov/udta and moov/meta in a copy of path and
// renames the copy over it. ok is false when the file is not an ISO media
// file or holds neither box.
func stripM4A(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, core.IOError(err, "failed to open audio", path)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return false, core.IOError(err, "failed to stat audio", path)
	}
	boxes, err := isobmff.Parse(f, st.Size())
	f.Close()
	if err != nil {
		return false, nil
	}

	var targets []*isobmff.Box
	for _, typ := range []string{"udta", "meta"} {
		if b := isobmff.Find(boxes, "moov", typ); b != nil {
			targets = append(targets, b)
		}
	}
	if len(targets) == 0 {
		return false, nil
	}

	err = core.CopyToSibling(path, path, func(f *os.File) error {
		for _, b := range targets {
			if err := isobmff.Neutralize(f, b); err != nil {
				return core.IOError(err, "failed to clear box", path)
			}
		}
		return nil
	})
	return err == nil, err
}
