package image_test

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/m-mizutani/gt"

	"github.com/ramsesware/0FF1C3-T00LS/core"
	"github.com/ramsesware/0FF1C3-T00LS/core/image"
	"github.com/ramsesware/0FF1C3-T00LS/core/riff"
)

// ─── Fixtures ────────────────────────────────────────────────────────────────

type asciiTag struct {
	id  uint16
	val string
}

type subIFD struct {
	pointer uint16
	tags    []asciiTag
}

// buildTIFF writes a little-endian TIFF structure holding IFD0 and the
// given sub-directories, all with ASCII values.
func buildTIFF(ifd0 []asciiTag, subs ...subIFD) []byte {
	le := binary.LittleEndian
	ifdSize := func(n int) int { return 2 + 12*n + 4 }

	subOffsets := make([]int, len(subs))
	off := 8 + ifdSize(len(ifd0)+len(subs))
	for i, s := range subs {
		subOffsets[i] = off
		off += ifdSize(len(s.tags))
	}
	dataOff := off

	var extra []byte
	entry := func(out []byte, id, typ uint16, count uint32, inline []byte, value uint32) []byte {
		out = le.AppendUint16(out, id)
		out = le.AppendUint16(out, typ)
		out = le.AppendUint32(out, count)
		if inline != nil {
			var v [4]byte
			copy(v[:], inline)
			return append(out, v[:]...)
		}
		return le.AppendUint32(out, value)
	}
	ascii := func(out []byte, t asciiTag) []byte {
		val := append([]byte(t.val), 0)
		if len(val) <= 4 {
			return entry(out, t.id, 2, uint32(len(val)), val, 0)
		}
		out = entry(out, t.id, 2, uint32(len(val)), nil, uint32(dataOff+len(extra)))
		extra = append(extra, val...)
		return out
	}

	out := []byte{'I', 'I', 0x2A, 0x00, 8, 0, 0, 0}
	out = le.AppendUint16(out, uint16(len(ifd0)+len(subs)))
	for _, t := range ifd0 {
		out = ascii(out, t)
	}
	for i, s := range subs {
		out = entry(out, s.pointer, 4, 1, nil, uint32(subOffsets[i]))
	}
	out = le.AppendUint32(out, 0)
	for _, s := range subs {
		out = le.AppendUint16(out, uint16(len(s.tags)))
		for _, t := range s.tags {
			out = ascii(out, t)
		}
		out = le.AppendUint32(out, 0)
	}
	return append(out, extra...)
}

func cameraTIFF() []byte {
	return buildTIFF(
		[]asciiTag{{0x010F, "Canon"}, {0x0110, "X10"}},
		subIFD{pointer: 0x8769, tags: []asciiTag{{0x9003, "2024:01:02 03:04:05"}}},
		subIFD{pointer: 0x8825, tags: []asciiTag{{0x0001, "N"}}},
	)
}

func segment(marker byte, payload []byte) []byte {
	out := []byte{0xFF, marker}
	out = binary.BigEndian.AppendUint16(out, uint16(len(payload)+2))
	return append(out, payload...)
}

var (
	jfifSegment = segment(0xE0, append([]byte("JFIF\x00"), 1, 1, 1, 0, 72, 0, 72, 0, 0))
	scanData    = []byte{0x12, 0x34, 0xFF, 0x00, 0x56, 0xFF, 0xD9}
)

func buildJPEG(segs ...[]byte) []byte {
	out := []byte{0xFF, 0xD8}
	for _, s := range segs {
		out = append(out, s...)
	}
	out = append(out, segment(0xDA, []byte{1, 1, 0, 0, 0x3F, 0})...)
	return append(out, scanData...)
}

const xmpPacket = `<x:xmpmeta xmlns:x="adobe:ns:meta/"><rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">` +
	`<rdf:Description rdf:about="" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:xmp="http://ns.adobe.com/xap/1.0/" xmp:CreatorTool="Editor">` +
	`<dc:creator><rdf:Seq><rdf:li>Alice</rdf:li><rdf:li>Bob</rdf:li></rdf:Seq></dc:creator>` +
	`</rdf:Description></rdf:RDF></x:xmpmeta>`

func iptcSegment() []byte {
	record := []byte("\x1C\x02\x50\x00\x05Alice")
	res := []byte("8BIM\x04\x04\x00\x00")
	res = binary.BigEndian.AppendUint32(res, uint32(len(record)))
	res = append(res, record...)
	return segment(0xED, append([]byte("Photoshop 3.0\x00"), res...))
}

func pngChunk(typ string, data []byte) []byte {
	out := binary.BigEndian.AppendUint32(nil, uint32(len(data)))
	out = append(out, typ...)
	out = append(out, data...)
	return binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(append([]byte(typ), data...)))
}

func buildPNG(t *testing.T, extra ...[]byte) []byte {
	t.Helper()
	ihdr := []byte{0, 0, 0, 1, 0, 0, 0, 1, 8, 0, 0, 0, 0}
	out := []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}
	out = append(out, pngChunk("IHDR", ihdr)...)
	for _, c := range extra {
		out = append(out, c...)
	}
	out = append(out, pngChunk("IDAT", []byte{0x78, 0x9C, 0x63, 0x60, 0x00, 0x00, 0x00, 0x02, 0x00, 0x01})...)
	return append(out, pngChunk("IEND", nil)...)
}

func compress(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write([]byte(s))
	gt.NoError(t, err).Required()
	gt.NoError(t, zw.Close()).Required()
	return buf.Bytes()
}

func gifFrame(delay byte) []byte {
	gce := []byte{0x21, 0xF9, 0x04, 0x00, delay, 0x00, 0x00, 0x00}
	img := []byte{0x2C, 0, 0, 0, 0, 1, 0, 1, 0, 0, 0x02, 0x02, 0x44, 0x01, 0x00}
	return append(gce, img...)
}

func buildGIF() []byte {
	out := []byte("GIF89a")
	out = append(out, 1, 0, 1, 0, 0x80, 0, 0)
	out = append(out, 0, 0, 0, 0xFF, 0xFF, 0xFF)
	out = append(out, 0x21, 0xFF, 0x0B)
	out = append(out, "NETSCAPE2.0"...)
	out = append(out, 0x03, 0x01, 0x00, 0x00, 0x00)
	out = append(out, 0x21, 0xFE, 0x05)
	out = append(out, "hello"...)
	out = append(out, 0x00)
	out = append(out, 0x21, 0xFF, 0x0B)
	out = append(out, "XMP DataXMP"...)
	out = append(out, 0x02, 'x', 'y', 0x00)
	out = append(out, gifFrame(10)...)
	out = append(out, gifFrame(10)...)
	return append(out, 0x3B)
}

func buildWebP() []byte {
	vp8x := []byte{0x0C, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	return riff.Build("WEBP", []riff.Chunk{
		{ID: "VP8X", Data: vp8x},
		{ID: "VP8 ", Data: []byte{1, 2, 3, 4, 5}},
		{ID: "EXIF", Data: cameraTIFF()},
		{ID: "XMP ", Data: []byte(xmpPacket)},
	})
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	gt.NoError(t, os.WriteFile(path, data, 0o644)).Required()
	return path
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	gt.NoError(t, err).Required()
	return data
}

func value(t *testing.T, out *core.Outcome, key string) string {
	t.Helper()
	gt.Value(t, out.Metadata).NotNil().Required()
	v, ok := out.Metadata.Get(key)
	gt.True(t, ok)
	return v
}

// ─── JPEG ────────────────────────────────────────────────────────────────────

func TestJPEGExtractEXIF(t *testing.T) {
	path := writeFile(t, "photo.jpg", buildJPEG(
		jfifSegment,
		segment(0xE1, append([]byte("Exif\x00\x00"), cameraTIFF()...)),
		segment(0xFE, []byte("a comment")),
	))

	out, err := image.New(core.FmtJPEG).Extract(path)
	gt.NoError(t, err).Required()
	gt.Value(t, out.Status).Equal(core.StatusOK)
	gt.Value(t, value(t, out, "Make")).Equal("Canon")
	gt.Value(t, value(t, out, "Model")).Equal("X10")
	gt.Value(t, value(t, out, "DateTimeOriginal")).Equal("2024:01:02 03:04:05")
	gt.Value(t, value(t, out, "GPSLatitudeRef")).Equal("N")
	_, hasComment := out.Metadata.Get("Comment")
	gt.False(t, hasComment)
}

func TestJPEGExtractSideInfo(t *testing.T) {
	path := writeFile(t, "photo.jpg", buildJPEG(
		jfifSegment,
		segment(0xE1, append([]byte("http://ns.adobe.com/xap/1.0/\x00"), xmpPacket...)),
		iptcSegment(),
		segment(0xFE, []byte("first")),
		segment(0xFE, []byte("second")),
	))

	out, err := image.New(core.FmtJPEG).Extract(path)
	gt.NoError(t, err).Required()
	gt.Value(t, out.Status).Equal(core.StatusOK)
	gt.Value(t, value(t, out, "JFIFVersion")).Equal("1.01")
	gt.Value(t, value(t, out, "ResolutionUnit")).Equal("dpi")
	gt.Value(t, value(t, out, "XResolution")).Equal("72")
	gt.Value(t, value(t, out, "Comment")).Equal("first")
	gt.Value(t, value(t, out, "Comment 2")).Equal("second")
	gt.Value(t, value(t, out, "xmp:CreatorTool")).Equal("Editor")
	gt.Value(t, value(t, out, "xmp:creator")).Equal("Alice; Bob")
	gt.Value(t, value(t, out, "Byline")).Equal("Alice")
}

func TestJPEGStrip(t *testing.T) {
	path := writeFile(t, "photo.jpg", buildJPEG(
		jfifSegment,
		segment(0xE1, append([]byte("Exif\x00\x00"), cameraTIFF()...)),
		segment(0xE2, append([]byte("ICC_PROFILE\x00\x01\x01"), make([]byte, 16)...)),
		iptcSegment(),
		segment(0xEE, []byte("Adobe\x00\x64\x00\x00\x00\x00\x01")),
		segment(0xFE, []byte("a comment")),
	))
	h := image.New(core.FmtJPEG)

	res, err := h.Strip(path)
	gt.NoError(t, err).Required()
	gt.Value(t, res.Status).Equal(core.StatusOK)
	gt.Value(t, res.Output).Equal(path)

	data := readFile(t, path)
	gt.Equal(t, data, buildJPEG(jfifSegment, segment(0xEE, []byte("Adobe\x00\x64\x00\x00\x00\x00\x01"))))
	gt.True(t, bytes.HasSuffix(data, scanData))

	out, err := h.Extract(path)
	gt.NoError(t, err).Required()
	_, hasMake := out.Metadata.Get("Make")
	gt.False(t, hasMake)
	_, hasComment := out.Metadata.Get("Comment")
	gt.False(t, hasComment)
	gt.Value(t, value(t, out, "AdobeTransform")).Equal("1")
}

func TestJPEGStripBetweenScans(t *testing.T) {
	sos := segment(0xDA, []byte{1, 1, 0, 0, 0x3F, 0})
	dht := segment(0xC4, []byte{0x10, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0x05})
	firstScan := []byte{0x12, 0xFF, 0x00, 0x34, 0xFF, 0xD0, 0x56}
	secondScan := []byte{0x78, 0x9A}

	build := func(between ...[]byte) []byte {
		out := append([]byte{0xFF, 0xD8}, jfifSegment...)
		out = append(out, sos...)
		out = append(out, firstScan...)
		for _, b := range between {
			out = append(out, b...)
		}
		out = append(out, sos...)
		out = append(out, secondScan...)
		return append(out, 0xFF, 0xD9)
	}

	path := writeFile(t, "progressive.jpg", build(
		segment(0xFE, []byte("hidden note")),
		dht,
		segment(0xE1, append([]byte("http://ns.adobe.com/xap/1.0/\x00"), xmpPacket...)),
	))
	h := image.New(core.FmtJPEG)

	out, err := h.Extract(path)
	gt.NoError(t, err).Required()
	gt.Value(t, value(t, out, "Comment")).Equal("hidden note")

	res, err := h.Strip(path)
	gt.NoError(t, err).Required()
	gt.Value(t, res.Status).Equal(core.StatusOK)
	gt.Equal(t, readFile(t, path), build(dht))

	out, err = h.Extract(path)
	gt.NoError(t, err).Required()
	_, hasComment := out.Metadata.Get("Comment")
	gt.False(t, hasComment)
}

func TestJPEGCorrupt(t *testing.T) {
	testCases := map[string][]byte{
		"no start marker":   []byte("definitely not a jpeg"),
		"truncated segment": {0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x40, 'E', 'x'},
		"no image data":     append([]byte{0xFF, 0xD8}, jfifSegment...),
	}
	for name, original := range testCases {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, "broken.jpg", original)
			h := image.New(core.FmtJPEG)

			_, err := h.Extract(path)
			gt.Error(t, err)
			gt.True(t, core.IsCorrupt(err))

			_, err = h.Strip(path)
			gt.Error(t, err)
			gt.Equal(t, readFile(t, path), original)
		})
	}
}

// ─── PNG ─────────────────────────────────────────────────────────────────────

func TestPNGTextChunks(t *testing.T) {
	itxt := append([]byte("Title\x00\x00\x00en\x00\x00"), "Holiday"...)
	ztxt := append([]byte("Comment\x00\x00"), compress(t, "compressed caf\xe9")...)
	path := writeFile(t, "pic.png", buildPNG(t,
		pngChunk("tEXt", []byte("Author\x00Alice")),
		pngChunk("zTXt", ztxt),
		pngChunk("iTXt", itxt),
		pngChunk("tIME", []byte{0x07, 0xE8, 1, 2, 3, 4, 5}),
		pngChunk("pHYs", []byte{0, 0, 0x0B, 0x13, 0, 0, 0x0B, 0x13, 1}),
		pngChunk("gAMA", []byte{0, 0, 0xB1, 0x8F}),
	))
	h := image.New(core.FmtPNG)

	out, err := h.Extract(path)
	gt.NoError(t, err).Required()
	gt.Value(t, out.Status).Equal(core.StatusOK)
	gt.Value(t, value(t, out, "Author")).Equal("Alice")
	gt.Value(t, value(t, out, "Comment")).Equal("compressed café")
	gt.Value(t, value(t, out, "Title")).Equal("Holiday")
	gt.Value(t, value(t, out, "LastModified")).Equal("2024-01-02 03:04:05")
	gt.Value(t, value(t, out, "DPI")).Equal("72 x 72")
	gt.Value(t, value(t, out, "Gamma")).Equal("0.45455")

	res, err := h.Strip(path)
	gt.NoError(t, err).Required()
	gt.Value(t, res.Status).Equal(core.StatusOK)
	gt.Equal(t, readFile(t, path), buildPNG(t, pngChunk("gAMA", []byte{0, 0, 0xB1, 0x8F})))

	out, err = h.Extract(path)
	gt.NoError(t, err).Required()
	_, hasAuthor := out.Metadata.Get("Author")
	gt.False(t, hasAuthor)
}

func TestPNGEXIFChunk(t *testing.T) {
	path := writeFile(t, "pic.png", buildPNG(t,
		pngChunk("eXIf", cameraTIFF()),
		pngChunk("tEXt", []byte("Author\x00Alice")),
	))

	out, err := image.New(core.FmtPNG).Extract(path)
	gt.NoError(t, err).Required()
	gt.Value(t, value(t, out, "Model")).Equal("X10")
	_, hasAuthor := out.Metadata.Get("Author")
	gt.False(t, hasAuthor)
}

func TestPNGWithoutMetadata(t *testing.T) {
	path := writeFile(t, "plain.png", buildPNG(t))

	out, err := image.New(core.FmtPNG).Extract(path)
	gt.NoError(t, err).Required()
	gt.Value(t, out.Status).Equal(core.StatusNoMetadata)
	gt.Number(t, out.Metadata.Len()).Equal(0)
}

// ─── GIF ─────────────────────────────────────────────────────────────────────

func TestGIFExtractAndStrip(t *testing.T) {
	path := writeFile(t, "anim.gif", buildGIF())
	h := image.New(core.FmtGIF)

	out, err := h.Extract(path)
	gt.NoError(t, err).Required()
	gt.Value(t, value(t, out, "Version")).Equal("GIF89a")
	gt.Value(t, value(t, out, "Comment")).Equal("hello")
	gt.Value(t, value(t, out, "LoopCount")).Equal("infinite")
	gt.Value(t, value(t, out, "XMP")).Equal("present")
	gt.Value(t, value(t, out, "Frames")).Equal("2")
	gt.Value(t, value(t, out, "Duration")).Equal("0.20s")

	_, err = h.Strip(path)
	gt.NoError(t, err).Required()

	data := readFile(t, path)
	gt.False(t, bytes.Contains(data, []byte("hello")))
	gt.False(t, bytes.Contains(data, []byte("XMP DataXMP")))
	gt.True(t, bytes.Contains(data, []byte("NETSCAPE2.0")))
	gt.Value(t, data[len(data)-1]).Equal(byte(0x3B))

	out, err = h.Extract(path)
	gt.NoError(t, err).Required()
	_, hasComment := out.Metadata.Get("Comment")
	gt.False(t, hasComment)
	gt.Value(t, value(t, out, "LoopCount")).Equal("infinite")
	gt.Value(t, value(t, out, "Frames")).Equal("2")
}

// ─── WebP ────────────────────────────────────────────────────────────────────

func TestWebPExtractAndStrip(t *testing.T) {
	path := writeFile(t, "pic.webp", buildWebP())
	h := image.New(core.FmtWebP)

	out, err := h.Extract(path)
	gt.NoError(t, err).Required()
	gt.Value(t, value(t, out, "Make")).Equal("Canon")

	_, err = h.Strip(path)
	gt.NoError(t, err).Required()

	data := readFile(t, path)
	gt.Value(t, binary.LittleEndian.Uint32(data[4:8])).Equal(uint32(len(data) - 8))
	f, err := riff.Parse(data)
	gt.NoError(t, err).Required()
	ids := make([]string, 0, len(f.Chunks))
	for _, c := range f.Chunks {
		ids = append(ids, c.ID)
	}
	gt.Equal(t, ids, []string{"VP8X", "VP8 "})
	gt.Value(t, f.Chunks[0].Data[0]).Equal(byte(0))
	gt.Equal(t, f.Chunks[1].Data, []byte{1, 2, 3, 4, 5})

	out, err = h.Extract(path)
	gt.NoError(t, err).Required()
	_, hasMake := out.Metadata.Get("Make")
	gt.False(t, hasMake)
	gt.Value(t, value(t, out, "Encoding")).Equal("VP8")
}

// ─── TIFF ────────────────────────────────────────────────────────────────────

func TestTIFFExtractOnly(t *testing.T) {
	original := cameraTIFF()
	path := writeFile(t, "scan.tiff", original)
	h := image.New(core.FmtTIFF)

	out, err := h.Extract(path)
	gt.NoError(t, err).Required()
	gt.Value(t, value(t, out, "Make")).Equal("Canon")
	gt.Value(t, value(t, out, "DateTimeOriginal")).Equal("2024:01:02 03:04:05")

	res, err := h.Strip(path)
	gt.NoError(t, err).Required()
	gt.Value(t, res.Status).Equal(core.StatusUnsupported)
	gt.Equal(t, readFile(t, path), original)
	gt.False(t, h.Info().CanStrip)
}

func TestUnknownTagFallsBackToNumber(t *testing.T) {
	path := writeFile(t, "scan.tif", buildTIFF([]asciiTag{{0x010F, "Canon"}, {0xC4A5, "private"}}))

	out, err := image.New(core.FmtTIFF).Extract(path)
	gt.NoError(t, err).Required()
	gt.Value(t, value(t, out, "0xC4A5")).Equal("private")
}
