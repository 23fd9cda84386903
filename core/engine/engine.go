// Package engine dispatches single-file and directory operations to the
// format handlers.
package engine

import (
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"

	"github.com/ramsesware/0FF1C3-T00LS/core"
	"github.com/ramsesware/0FF1C3-T00LS/core/audio"
	"github.com/ramsesware/0FF1C3-T00LS/core/document"
	"github.com/ramsesware/0FF1C3-T00LS/core/generic"
	"github.com/ramsesware/0FF1C3-T00LS/core/image"
	"github.com/ramsesware/0FF1C3-T00LS/core/video"
)

// Engine runs extract and strip operations.
type Engine struct {
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for dispatch and batch events.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New returns an Engine. Without WithLogger it logs to slog.Default().
func New(opts ...Option) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// registry lists every format in display order.
var registry = []core.FormatID{
	core.FmtPDF, core.FmtDOCX, core.FmtXLSX, core.FmtPPTX,
	core.FmtJPEG, core.FmtPNG, core.FmtGIF, core.FmtWebP, core.FmtTIFF,
	core.FmtMP3, core.FmtFLAC, core.FmtOGG, core.FmtOpus, core.FmtM4A, core.FmtWAV,
	core.FmtMP4, core.FmtMOV, core.FmtMKV, core.FmtWebM, core.FmtAVI,
	core.FmtGeneric,
}

// handlerFor returns the handler of the family format belongs to.
func handlerFor(format core.FormatID) core.Handler {
	switch core.FamilyOf(format) {
	case core.FamilyPDF, core.FamilyOffice:
		return document.New(format)
	case core.FamilyImage:
		return image.New(format)
	case core.FamilyAudio:
		return audio.New(format)
	case core.FamilyVideo:
		return video.New(format)
	default:
		return generic.New()
	}
}

// Formats returns the capabilities of every supported format.
func (e *Engine) Formats() []core.FormatInfo {
	infos := make([]core.FormatInfo, 0, len(registry))
	for _, f := range registry {
		infos = append(infos, handlerFor(f).Info())
	}
	return infos
}

// operation is one of the handler methods.
type operation struct {
	name string
	run  func(h core.Handler, path string) (*core.Outcome, error)
}

var (
	opExtract = operation{name: "extract", run: core.Handler.Extract}
	opStrip   = operation{name: "strip", run: core.Handler.Strip}
)

// Extract reads the metadata of a single file.
func (e *Engine) Extract(path string) (*core.Outcome, error) {
	return e.single(path, opExtract)
}

// Strip removes the metadata of a single file.
func (e *Engine) Strip(path string) (*core.Outcome, error) {
	return e.single(path, opStrip)
}

func (e *Engine) single(path string, op operation) (*core.Outcome, error) {
	st, err := os.Stat(path)
	if err != nil {
		return nil, core.IOError(err, "failed to stat file", path)
	}
	if !st.Mode().IsRegular() {
		return nil, goerr.New("not a regular file", goerr.V("path", path), goerr.T(core.TagIO))
	}
	return e.dispatch(path, op)
}

func (e *Engine) dispatch(path string, op operation) (*core.Outcome, error) {
	format := core.Classify(path)
	e.logger.Debug("dispatching file",
		slog.String("path", path),
		slog.String("format", string(format)),
		slog.String("op", op.name),
	)
	return op.run(handlerFor(format), path)
}
