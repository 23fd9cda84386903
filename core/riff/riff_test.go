package riff_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/ramsesware/0FF1C3-T00LS/core/riff"
)

func sample() []byte {
	info := riff.Build("WAVE", []riff.Chunk{{ID: "INAM", Data: []byte("Song\x00")}})
	// Reuse Build for the LIST body: strip its RIFF header and form.
	list := append([]byte("INFO"), info[12:]...)
	return riff.Build("WAVE", []riff.Chunk{
		{ID: "fmt ", Data: bytes.Repeat([]byte{1}, 16)},
		{ID: "LIST", Data: list},
		{ID: "data", Data: []byte{1, 2, 3}},
	})
}

func TestParse(t *testing.T) {
	f, err := riff.Parse(sample())
	gt.NoError(t, err).Required()

	gt.Equal(t, f.Form, "WAVE")
	gt.Equal(t, len(f.Chunks), 3)
	gt.Equal(t, f.Chunks[1].List, "INFO")
	gt.Equal(t, f.Chunks[2].Data, []byte{1, 2, 3})

	sub, err := f.Chunks[1].Sub()
	gt.NoError(t, err).Required()
	gt.Equal(t, len(sub), 1)
	gt.Equal(t, riff.InfoName(sub[0].ID), "Title")
	gt.Equal(t, riff.Text(sub[0].Data), "Song")
}

func TestBuildPadsOddChunks(t *testing.T) {
	data := sample()
	gt.Equal(t, len(data)%2, 0)

	f, err := riff.Parse(data)
	gt.NoError(t, err).Required()
	rebuilt := riff.Build(f.Form, f.Chunks)
	gt.Equal(t, rebuilt, data)
}

func TestParseRejects(t *testing.T) {
	_, err := riff.Parse([]byte("RIFX\x04\x00\x00\x00WAVE"))
	gt.Error(t, err)

	data := sample()
	_, err = riff.Parse(data[:len(data)-2])
	gt.Error(t, err)
}

func TestText(t *testing.T) {
	gt.Equal(t, riff.Text([]byte(" Jos\xe9 \x00junk")), "José")
	gt.Equal(t, riff.Text([]byte("plain")), "plain")
	gt.Equal(t, riff.InfoName("ZZZZ"), "ZZZZ")
}

func TestScanAndJunk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	gt.NoError(t, os.WriteFile(path, sample(), 0o644)).Required()

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	gt.NoError(t, err).Required()
	defer f.Close()
	st, err := f.Stat()
	gt.NoError(t, err).Required()

	form, end, err := riff.Header(f, st.Size())
	gt.NoError(t, err).Required()
	gt.Equal(t, form, "WAVE")
	gt.Equal(t, end, st.Size())

	spans, err := riff.Scan(f, 12, end)
	gt.NoError(t, err).Required()
	gt.Equal(t, len(spans), 3)
	gt.Equal(t, spans[1].List, "INFO")

	payload, err := riff.ReadData(f, spans[2])
	gt.NoError(t, err)
	gt.Equal(t, payload, []byte{1, 2, 3})

	gt.NoError(t, riff.Junk(f, spans[1])).Required()
	after, err := riff.Scan(f, 12, end)
	gt.NoError(t, err).Required()
	gt.Equal(t, after[1].ID, "JUNK")
	gt.Equal(t, after[1].Size, spans[1].Size)
	junk, err := riff.ReadData(f, after[1])
	gt.NoError(t, err)
	gt.Equal(t, junk, make([]byte, spans[1].Size))
}
