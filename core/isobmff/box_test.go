package isobmff_test

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/ramsesware/0FF1C3-T00LS/core/isobmff"
)

func box(typ string, parts ...[]byte) []byte {
	payload := bytes.Join(parts, nil)
	out := binary.BigEndian.AppendUint32(nil, uint32(8+len(payload)))
	out = append(out, typ...)
	return append(out, payload...)
}

// largeBox encodes a box with the 64-bit size form.
func largeBox(typ string, payload []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, 1)
	out = append(out, typ...)
	out = binary.BigEndian.AppendUint64(out, uint64(16+len(payload)))
	return append(out, payload...)
}

func TestParseTree(t *testing.T) {
	data := bytes.Join([][]byte{
		box("ftyp", []byte("M4A "), make([]byte, 4)),
		box("moov",
			box("mvhd", make([]byte, 100)),
			box("udta", box("meta", make([]byte, 4),
				box("hdlr", make([]byte, 25)),
				box("ilst", box("\xa9nam", box("data", []byte{0, 0, 0, 1, 0, 0, 0, 0}, []byte("Song")))),
			)),
		),
		largeBox("mdat", []byte("audio")),
	}, nil)
	r := bytes.NewReader(data)

	boxes, err := isobmff.Parse(r, int64(len(data)))
	gt.NoError(t, err).Required()
	gt.Number(t, len(boxes)).Equal(3)
	gt.Value(t, boxes[2].Header).Equal(int64(16))
	gt.Value(t, boxes[2].PayloadSize()).Equal(int64(5))

	ilst := isobmff.Find(boxes, "moov", "udta", "meta", "ilst")
	gt.Value(t, ilst).NotNil().Required()
	items, err := isobmff.Items(r, ilst, nil)
	gt.NoError(t, err).Required()
	gt.Equal(t, items, []isobmff.Item{{Name: "Title", Value: "Song"}})

	gt.Value(t, isobmff.Find(boxes, "moov", "trak")).Nil()
}

func TestQuickTimeKeys(t *testing.T) {
	keys := box("keys", make([]byte, 4), binary.BigEndian.AppendUint32(nil, 1),
		binary.BigEndian.AppendUint32(nil, uint32(8+len("com.apple.quicktime.make"))), []byte("mdta"), []byte("com.apple.quicktime.make"))
	item := box("\x00\x00\x00\x01", box("data", []byte{0, 0, 0, 1, 0, 0, 0, 0}, []byte("Apple")))
	data := bytes.Join([][]byte{
		box("ftyp", []byte("qt  "), make([]byte, 4)),
		box("moov", box("meta", box("hdlr", make([]byte, 25)), keys, box("ilst", item))),
	}, nil)
	r := bytes.NewReader(data)

	boxes, err := isobmff.Parse(r, int64(len(data)))
	gt.NoError(t, err).Required()
	meta := isobmff.Find(boxes, "moov", "meta")
	gt.Value(t, meta).NotNil().Required()

	names, err := isobmff.Keys(r, meta.Child("keys"))
	gt.NoError(t, err).Required()
	gt.Equal(t, names, []string{"com.apple.quicktime.make"})

	items, err := isobmff.Items(r, meta.Child("ilst"), names)
	gt.NoError(t, err).Required()
	gt.Equal(t, items, []isobmff.Item{{Name: "com.apple.quicktime.make", Value: "Apple"}})
}

func TestNeutralizeAndTimes(t *testing.T) {
	mvhd := make([]byte, 112)
	mvhd[0] = 1
	binary.BigEndian.PutUint64(mvhd[4:12], 100)
	binary.BigEndian.PutUint64(mvhd[12:20], 200)
	data := bytes.Join([][]byte{
		box("ftyp", []byte("isom"), make([]byte, 4)),
		box("moov", box("mvhd", mvhd), box("udta", box("\xa9too", []byte("encoder")))),
	}, nil)
	path := filepath.Join(t.TempDir(), "a.mp4")
	gt.NoError(t, os.WriteFile(path, data, 0o644)).Required()

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	gt.NoError(t, err).Required()
	defer f.Close()

	boxes, err := isobmff.Parse(f, int64(len(data)))
	gt.NoError(t, err).Required()
	mv := isobmff.Find(boxes, "moov", "mvhd")
	created, modified, err := isobmff.Times(f, mv)
	gt.NoError(t, err).Required()
	gt.Value(t, created).Equal(uint64(100))
	gt.Value(t, modified).Equal(uint64(200))

	gt.NoError(t, isobmff.ZeroTimes(f, f, mv)).Required()
	gt.NoError(t, isobmff.Neutralize(f, isobmff.Find(boxes, "moov", "udta"))).Required()

	boxes, err = isobmff.Parse(f, int64(len(data)))
	gt.NoError(t, err).Required()
	created, modified, err = isobmff.Times(f, isobmff.Find(boxes, "moov", "mvhd"))
	gt.NoError(t, err).Required()
	gt.Value(t, created).Equal(uint64(0))
	gt.Value(t, modified).Equal(uint64(0))
	gt.Value(t, isobmff.Find(boxes, "moov", "udta")).Nil()
	gt.Value(t, isobmff.Find(boxes, "moov", "free")).NotNil()
}

func TestParseRejects(t *testing.T) {
	cases := map[string][]byte{
		"empty":    {},
		"not iso":  box("abcd", []byte("x")),
		"overflow": append(binary.BigEndian.AppendUint32(nil, 64), "ftyp"...),
	}
	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := isobmff.Parse(bytes.NewReader(data), int64(len(data)))
			gt.Error(t, err)
		})
	}
}

func TestAtomName(t *testing.T) {
	gt.Value(t, isobmff.AtomName("\xa9ART")).Equal("Artist")
	gt.Value(t, isobmff.AtomName("\xa9zzz")).Equal("©zzz")
	gt.Value(t, isobmff.AtomName("abcd")).Equal("abcd")
}
