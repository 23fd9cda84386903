package video

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/ramsesware/0FF1C3-T00LS/core/isobmff"
)

// ─── MP4 / MOV ───────────────────────────────────────────────────────────────

// macEpochOffset is the number of seconds between 1904-01-01 and the Unix
// epoch.
const macEpochOffset = 2082844800

// xmpUUID identifies a top-level uuid box holding an XMP packet.
var xmpUUID = []byte{
	0xBE, 0x7A, 0xCF, 0xCB, 0x97, 0xA9, 0x42, 0xE8,
	0x9C, 0x71, 0x99, 0x94, 0x91, 0xE3, 0xAF, 0xAC,
}

func parseMP4(r io.ReaderAt, size int64) (*Tree, error) {
	boxes, err := isobmff.Parse(r, size)
	if err != nil {
		return nil, err
	}
	moov := isobmff.Find(boxes, "moov")
	if moov == nil {
		return nil, goerr.New("moov box not found")
	}

	tree := &Tree{}
	if mvhd := moov.Child("mvhd"); mvhd != nil {
		if f, ok := timesField(r, "mvhd", mvhd); ok {
			tree.add(f)
		}
	}

	for i, trak := range moov.ChildrenOf("trak") {
		f, err := trackField(r, i+1, trak)
		if err != nil {
			return nil, err
		}
		if len(f.Children) > 0 {
			tree.add(f)
		}
	}

	if udta := moov.Child("udta"); udta != nil {
		children, err := userData(r, udta)
		if err != nil {
			return nil, err
		}
		tree.add(Field{Name: "UserData", Children: children, clear: neutralize(udta)})
	}
	if meta := moov.Child("meta"); meta != nil {
		children, err := metaItems(r, meta)
		if err != nil {
			return nil, err
		}
		tree.add(Field{Name: "Meta", Children: children, clear: neutralize(meta)})
	}

	for _, b := range boxes {
		if b.Type != "uuid" || b.PayloadSize() < 16 {
			continue
		}
		id := make([]byte, 16)
		if _, err := r.ReadAt(id, b.PayloadOffset()); err != nil {
			return nil, goerr.Wrap(err, "failed to read uuid box")
		}
		if bytes.Equal(id, xmpUUID) {
			tree.add(Field{Name: "XMP", Value: sizeOf(b.PayloadSize() - 16), clear: neutralize(b)})
		}
	}
	return tree, nil
}

func neutralize(b *isobmff.Box) func(*os.File) error {
	return func(f *os.File) error { return isobmff.Neutralize(f, b) }
}

// timesField reports the header times of b. ok is false when both are unset.
func timesField(r io.ReaderAt, name string, b *isobmff.Box) (Field, bool) {
	created, modified, err := isobmff.Times(r, b)
	if err != nil || created == 0 && modified == 0 {
		return Field{}, false
	}
	return Field{
		Name: name,
		Children: []Field{
			{Name: "CreationTime", Value: macTime(created)},
			{Name: "ModificationTime", Value: macTime(modified)},
		},
		clear: func(f *os.File) error { return isobmff.ZeroTimes(f, f, b) },
	}, true
}

// trackField gathers the per-track timestamps and user data of trak. Its
// clear removes all of them.
func trackField(r io.ReaderAt, n int, trak *isobmff.Box) (Field, error) {
	field := Field{Name: fmt.Sprintf("Track%d", n)}
	var clears []func(*os.File) error

	if tkhd := trak.Child("tkhd"); tkhd != nil {
		if f, ok := timesField(r, "tkhd", tkhd); ok {
			field.Children = append(field.Children, f)
			clears = append(clears, f.clear)
		}
	}
	if mdia := trak.Child("mdia"); mdia != nil {
		if mdhd := mdia.Child("mdhd"); mdhd != nil {
			if f, ok := timesField(r, "mdhd", mdhd); ok {
				field.Children = append(field.Children, f)
				clears = append(clears, f.clear)
			}
		}
	}
	if udta := trak.Child("udta"); udta != nil {
		children, err := userData(r, udta)
		if err != nil {
			return field, err
		}
		field.Children = append(field.Children, Field{Name: "UserData", Children: children})
		clears = append(clears, neutralize(udta))
	}
	if meta := trak.Child("meta"); meta != nil {
		children, err := metaItems(r, meta)
		if err != nil {
			return field, err
		}
		field.Children = append(field.Children, Field{Name: "Meta", Children: children})
		clears = append(clears, neutralize(meta))
	}

	field.clear = func(f *os.File) error {
		for _, c := range clears {
			if err := c(f); err != nil {
				return err
			}
		}
		return nil
	}
	return field, nil
}

// userData decodes the atoms of a udta box.
func userData(r io.ReaderAt, udta *isobmff.Box) ([]Field, error) {
	var out []Field
	for _, c := range udta.Children {
		switch {
		case c.Type == "meta":
			items, err := metaItems(r, c)
			if err != nil {
				return nil, err
			}
			out = append(out, items...)
		case strings.HasPrefix(c.Type, "\xa9"):
			payload, err := isobmff.ReadPayload(r, c)
			if err != nil {
				return nil, err
			}
			out = append(out, Field{Name: isobmff.AtomName(c.Type), Value: isobmff.Text(payload)})
		default:
			out = append(out, Field{Name: isobmff.AtomName(c.Type), Value: sizeOf(c.PayloadSize())})
		}
	}
	return out, nil
}

// metaItems decodes the item list of a meta box, resolving QuickTime keys.
func metaItems(r io.ReaderAt, meta *isobmff.Box) ([]Field, error) {
	ilst := meta.Child("ilst")
	if ilst == nil {
		return nil, nil
	}
	var keys []string
	if kb := meta.Child("keys"); kb != nil {
		k, err := isobmff.Keys(r, kb)
		if err != nil {
			return nil, err
		}
		keys = k
	}
	items, err := isobmff.Items(r, ilst, keys)
	if err != nil {
		return nil, err
	}
	out := make([]Field, 0, len(items))
	for _, it := range items {
		out = append(out, Field{Name: it.Name, Value: it.Value})
	}
	return out, nil
}

func macTime(secs uint64) string {
	if secs == 0 {
		return ""
	}
	return time.Unix(int64(secs)-macEpochOffset, 0).UTC().Format("2006-01-02 15:04:05")
}

func sizeOf(n int64) string {
	return fmt.Sprintf("<%d bytes>", n)
}
