package engine

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ramsesware/0FF1C3-T00LS/core"
)

// WalkAndAnalyze extracts metadata from every regular file under root.
func (e *Engine) WalkAndAnalyze(ctx context.Context, root string) (*core.Report, error) {
	return e.walk(ctx, root, opExtract)
}

// WalkAndStrip strips every regular file under root.
func (e *Engine) WalkAndStrip(ctx context.Context, root string) (*core.Report, error) {
	return e.walk(ctx, root, opStrip)
}

// walker holds the state of one traversal. Real paths of visited
// directories and files are recorded so symlink cycles terminate and no
// file is processed twice.
type walker struct {
	engine    *Engine
	op        operation
	report    *core.Report
	seenDirs  map[string]struct{}
	seenFiles map[string]struct{}
}

// walk visits root depth-first. Per-file failures become error outcomes;
// only a missing root or cancellation end the walk with an error, and a
// cancelled walk still returns the outcomes gathered so far.
func (e *Engine) walk(ctx context.Context, root string, op operation) (*core.Report, error) {
	st, err := os.Stat(root)
	if err != nil {
		return nil, core.IOError(err, "failed to stat root", root)
	}

	w := &walker{
		engine:    e,
		op:        op,
		report:    core.NewReport(root),
		seenDirs:  make(map[string]struct{}),
		seenFiles: make(map[string]struct{}),
	}
	switch {
	case st.IsDir():
		err = w.dir(ctx, root)
	case st.Mode().IsRegular():
		if err = ctx.Err(); err == nil {
			w.file(root)
		}
	}

	e.logger.Info("walk finished",
		slog.String("root", root),
		slog.String("op", op.name),
		slog.Int("files", w.report.Len()),
		slog.Int("failed", len(w.report.Failed())),
	)
	return w.report, err
}

func (w *walker) dir(ctx context.Context, path string) error {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		w.fail(path, core.IOError(err, "failed to resolve directory", path))
		return nil
	}
	if _, ok := w.seenDirs[real]; ok {
		return nil
	}
	w.seenDirs[real] = struct{}{}

	// The listing is read in full first, so files written while
	// processing this directory are not visited.
	entries, err := os.ReadDir(path)
	if err != nil {
		w.fail(path, core.IOError(err, "failed to read directory", path))
		return nil
	}

	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		p := filepath.Join(path, entry.Name())
		st, err := os.Stat(p)
		if err != nil {
			w.fail(p, core.IOError(err, "failed to stat file", p))
			continue
		}
		switch {
		case st.IsDir():
			if err := w.dir(ctx, p); err != nil {
				return err
			}
		case st.Mode().IsRegular():
			w.file(p)
		}
	}
	return nil
}

func (w *walker) file(path string) {
	real, err := filepath.EvalSymlinks(path)
	if err != nil {
		w.fail(path, core.IOError(err, "failed to resolve file", path))
		return
	}
	if _, ok := w.seenFiles[real]; ok {
		return
	}
	w.seenFiles[real] = struct{}{}

	out, err := w.engine.dispatch(path, w.op)
	if err != nil {
		w.fail(path, err)
		return
	}
	w.report.Add(out)
}

func (w *walker) fail(path string, err error) {
	w.engine.logger.Warn("file failed",
		slog.String("path", path),
		slog.String("op", w.op.name),
		slog.Any("error", err),
	)
	w.report.Add(core.Failed(path, core.Classify(path), err))
}
