package engine_test

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/ramsesware/0FF1C3-T00LS/core"
	"github.com/ramsesware/0FF1C3-T00LS/core/engine"
	"github.com/ramsesware/0FF1C3-T00LS/core/riff"
)

func newEngine() *engine.Engine {
	return engine.New(engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	gt.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755)).Required()
	gt.NoError(t, os.WriteFile(path, data, 0o644)).Required()
}

func riffChunk(id string, data []byte) []byte {
	out := append([]byte(id), binary.LittleEndian.AppendUint32(nil, uint32(len(data)))...)
	out = append(out, data...)
	if len(data)%2 != 0 {
		out = append(out, 0)
	}
	return out
}

func infoList() riff.Chunk {
	return riff.Chunk{ID: "LIST", Data: append([]byte("INFO"), riffChunk("INAM", []byte("Title\x00"))...)}
}

func buildAVI() []byte {
	movi := riff.Chunk{ID: "LIST", Data: append([]byte("movi"), riffChunk("00dc", []byte{1, 2, 3, 4})...)}
	return riff.Build("AVI ", []riff.Chunk{infoList(), movi})
}

func buildWAV() []byte {
	return riff.Build("WAVE", []riff.Chunk{
		{ID: "fmt ", Data: make([]byte, 16)},
		infoList(),
		{ID: "data", Data: []byte{0, 0, 1, 0}},
	})
}

func paths(r *core.Report) []string {
	out := make([]string, 0, r.Len())
	for _, o := range r.Outcomes {
		out = append(out, o.Path)
	}
	return out
}

// ─── Single-file operations ──────────────────────────────────────────────────

func TestExtractDispatchesByExtension(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "notes.txt"), []byte("plain"))
	writeFile(t, filepath.Join(dir, "clip.avi"), buildAVI())
	writeFile(t, filepath.Join(dir, "fake.mkv"), []byte("plain"))
	e := newEngine()

	out, err := e.Extract(filepath.Join(dir, "notes.txt"))
	gt.NoError(t, err).Required()
	gt.Value(t, out.Format).Equal(core.FmtGeneric)
	_, ok := out.Metadata.Get("Ruta")
	gt.True(t, ok)

	out, err = e.Extract(filepath.Join(dir, "clip.avi"))
	gt.NoError(t, err).Required()
	gt.Value(t, out.Status).Equal(core.StatusOK)
	v, _ := out.Metadata.Get("INFO/Title")
	gt.Value(t, v).Equal("Title")

	out, err = e.Extract(filepath.Join(dir, "fake.mkv"))
	gt.NoError(t, err).Required()
	gt.Value(t, out.Status).Equal(core.StatusUnparseable)
}

func TestSingleFileErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "broken.docx"), []byte("not a zip"))
	e := newEngine()

	_, err := e.Extract(filepath.Join(dir, "missing.pdf"))
	gt.Error(t, err)
	gt.True(t, core.IsIO(err))

	_, err = e.Strip(dir)
	gt.Error(t, err)
	gt.True(t, core.IsIO(err))

	_, err = e.Extract(filepath.Join(dir, "broken.docx"))
	gt.Error(t, err)
	gt.True(t, core.IsCorrupt(err))
}

func TestStripGenericIsUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "archive.zip")
	writeFile(t, path, []byte("PK"))

	out, err := newEngine().Strip(path)
	gt.NoError(t, err).Required()
	gt.Value(t, out.Status).Equal(core.StatusUnsupported)
}

func TestFormats(t *testing.T) {
	infos := newEngine().Formats()
	gt.Number(t, len(infos)).Equal(21)
	gt.Value(t, infos[0].Name).Equal("PDF")
	gt.Value(t, infos[len(infos)-1].Family).Equal(core.FamilyGeneric)
	for _, info := range infos {
		gt.Value(t, info.Name).NotEqual("")
	}
}

// ─── Batch walker ────────────────────────────────────────────────────────────

func TestWalkReportsEveryFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), []byte("a"))
	writeFile(t, filepath.Join(root, "b", "c.txt"), []byte("c"))
	writeFile(t, filepath.Join(root, "bad.jpg"), []byte("not a jpeg"))
	writeFile(t, filepath.Join(root, "broken.docx"), []byte("not a zip"))

	report, err := newEngine().WalkAndAnalyze(context.Background(), root)
	gt.NoError(t, err).Required()
	gt.Equal(t, paths(report), []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b", "c.txt"),
		filepath.Join(root, "bad.jpg"),
		filepath.Join(root, "broken.docx"),
	})

	counts := report.Counts()
	gt.Number(t, counts[core.StatusOK]).Equal(2)
	gt.Number(t, counts[core.StatusError]).Equal(2)
	for _, o := range report.Failed() {
		gt.String(t, o.Message).Contains("ERROR: No se pudo procesar el archivo")
		gt.Value(t, o.Err).NotNil()
	}
}

func TestWalkFollowsSymlinksWithoutLooping(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "sub", "file.txt"), []byte("x"))
	gt.NoError(t, os.Symlink(root, filepath.Join(root, "sub", "loop"))).Required()
	gt.NoError(t, os.Symlink(filepath.Join(root, "sub", "file.txt"), filepath.Join(root, "alias.txt"))).Required()

	report, err := newEngine().WalkAndAnalyze(context.Background(), root)
	gt.NoError(t, err).Required()
	gt.Number(t, report.Len()).Equal(1)
	gt.Value(t, report.Outcomes[0].Path).Equal(filepath.Join(root, "alias.txt"))
}

func TestWalkSymlinkedDirectory(t *testing.T) {
	outside := t.TempDir()
	writeFile(t, filepath.Join(outside, "linked.txt"), []byte("x"))
	root := t.TempDir()
	gt.NoError(t, os.Symlink(outside, filepath.Join(root, "ext"))).Required()

	report, err := newEngine().WalkAndAnalyze(context.Background(), root)
	gt.NoError(t, err).Required()
	gt.Equal(t, paths(report), []string{filepath.Join(root, "ext", "linked.txt")})
}

func TestWalkCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.txt"), []byte("a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := newEngine().WalkAndAnalyze(ctx, root)
	gt.Error(t, err)
	gt.True(t, err == context.Canceled)
	gt.Value(t, report).NotNil().Required()
	gt.Number(t, report.Len()).Equal(0)
}

func TestWalkSingleFileRoot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "only.txt")
	writeFile(t, path, []byte("x"))

	report, err := newEngine().WalkAndAnalyze(context.Background(), path)
	gt.NoError(t, err).Required()
	gt.Equal(t, paths(report), []string{path})
}

func TestWalkMissingRoot(t *testing.T) {
	_, err := newEngine().WalkAndAnalyze(context.Background(), filepath.Join(t.TempDir(), "nope"))
	gt.Error(t, err)
	gt.True(t, core.IsIO(err))
}

func TestWalkUnreadableDirectory(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for root")
	}
	root := t.TempDir()
	locked := filepath.Join(root, "locked")
	writeFile(t, filepath.Join(locked, "hidden.txt"), []byte("x"))
	writeFile(t, filepath.Join(root, "open.txt"), []byte("x"))
	gt.NoError(t, os.Chmod(locked, 0)).Required()
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	report, err := newEngine().WalkAndAnalyze(context.Background(), root)
	gt.NoError(t, err).Required()
	gt.Equal(t, paths(report), []string{locked, filepath.Join(root, "open.txt")})
	gt.Value(t, report.Outcomes[0].Status).Equal(core.StatusError)
}

func TestWalkAndStrip(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "clip.avi"), buildAVI())
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("keep me"))
	writeFile(t, filepath.Join(root, "take.wav"), buildWAV())

	report, err := newEngine().WalkAndStrip(context.Background(), root)
	gt.NoError(t, err).Required()
	gt.Number(t, report.Len()).Equal(3)

	byPath := map[string]*core.Outcome{}
	for _, o := range report.Outcomes {
		byPath[filepath.Base(o.Path)] = o
	}
	gt.Value(t, byPath["clip.avi"].Status).Equal(core.StatusCopied)
	gt.Value(t, byPath["clip.avi"].Output).Equal(filepath.Join(root, "clip_cleaned.avi"))
	gt.Value(t, byPath["notes.txt"].Status).Equal(core.StatusUnsupported)
	gt.Value(t, byPath["take.wav"].Status).Equal(core.StatusOK)

	_, err = os.Stat(filepath.Join(root, "clip_cleaned.avi"))
	gt.NoError(t, err)
	original, err := os.ReadFile(filepath.Join(root, "clip.avi"))
	gt.NoError(t, err).Required()
	gt.Equal(t, original, buildAVI())
	wav, err := os.ReadFile(filepath.Join(root, "take.wav"))
	gt.NoError(t, err).Required()
	gt.False(t, bytes.Contains(wav, []byte("INAM")))
}

func assertLinkedWAVStripped(t *testing.T, link, target string) {
	t.Helper()
	st, err := os.Lstat(link)
	gt.NoError(t, err).Required()
	gt.True(t, st.Mode()&os.ModeSymlink != 0)

	data, err := os.ReadFile(target)
	gt.NoError(t, err).Required()
	gt.False(t, bytes.Contains(data, []byte("INAM")))
}

func TestStripThroughSymlinkCleansTarget(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "real.wav")
	link := filepath.Join(dir, "link.wav")
	writeFile(t, target, buildWAV())
	gt.NoError(t, os.Symlink(target, link)).Required()

	out, err := newEngine().Strip(link)
	gt.NoError(t, err).Required()
	gt.Value(t, out.Status).Equal(core.StatusOK)
	assertLinkedWAVStripped(t, link, target)

	entries, err := os.ReadDir(dir)
	gt.NoError(t, err)
	gt.Number(t, len(entries)).Equal(2)
}

func TestWalkAndStripThroughSymlink(t *testing.T) {
	root := t.TempDir()
	target := filepath.Join(root, "b_real.wav")
	link := filepath.Join(root, "a_link.wav")
	writeFile(t, target, buildWAV())
	gt.NoError(t, os.Symlink(target, link)).Required()

	report, err := newEngine().WalkAndStrip(context.Background(), root)
	gt.NoError(t, err).Required()
	gt.Equal(t, paths(report), []string{link})
	gt.Value(t, report.Outcomes[0].Status).Equal(core.StatusOK)
	assertLinkedWAVStripped(t, link, target)
}
