package main

import (
	"context"
	"io"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/ramsesware/0FF1C3-T00LS/core"
	"github.com/ramsesware/0FF1C3-T00LS/core/engine"
)

type app struct {
	engine *engine.Engine
	out    io.Writer
}

func (a *app) printer(json bool) *core.Printer {
	p := core.NewPrinter(json)
	p.Writer = a.out
	return p
}

func requirePaths(c *cli.Command) ([]string, error) {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return nil, goerr.New("at least one path is required", goerr.V("command", c.Name))
	}
	return paths, nil
}

// ─── view ────────────────────────────────────────────────────────────────────

func (a *app) cmdView() *cli.Command {
	var (
		asJSON bool
		tag    string
	)
	return &cli.Command{
		Name:      "view",
		Usage:     "Show the metadata of files or directories",
		ArgsUsage: "<path>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print results as JSON", Destination: &asJSON},
			&cli.StringFlag{Name: "tag", Usage: "Only show directory entries carrying this key", Destination: &tag},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			paths, err := requirePaths(c)
			if err != nil {
				return err
			}
			p := a.printer(asJSON)
			failed := false
			for _, path := range paths {
				if isDir(path) {
					report, err := a.engine.WalkAndAnalyze(ctx, path)
					if err != nil {
						p.PrintOutcome(core.Failed(path, core.Classify(path), err))
						failed = true
						continue
					}
					if tag != "" {
						p.PrintMatches(tag, report.FilterByTag(tag))
					} else {
						p.PrintReport(report)
					}
					continue
				}
				if !a.single(p, path, a.engine.Extract) {
					failed = true
				}
			}
			if failed {
				return errFailed
			}
			return nil
		},
	}
}

// ─── strip ───────────────────────────────────────────────────────────────────

func (a *app) cmdStrip() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:      "strip",
		Usage:     "Remove metadata from files or directories",
		ArgsUsage: "<path>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print results as JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			paths, err := requirePaths(c)
			if err != nil {
				return err
			}
			p := a.printer(asJSON)
			failed := false
			for _, path := range paths {
				if isDir(path) {
					report, err := a.engine.WalkAndStrip(ctx, path)
					if err != nil {
						p.PrintOutcome(core.Failed(path, core.Classify(path), err))
						failed = true
						continue
					}
					p.PrintReport(report)
					continue
				}
				if !a.single(p, path, a.engine.Strip) {
					failed = true
				}
			}
			if failed {
				return errFailed
			}
			return nil
		},
	}
}

// ─── tags ────────────────────────────────────────────────────────────────────

func (a *app) cmdTags() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:      "tags",
		Usage:     "List every metadata key found under a directory",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print results as JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			if c.Args().Len() != 1 {
				return goerr.New("exactly one directory is required", goerr.V("args", c.Args().Slice()))
			}
			report, err := a.engine.WalkAndAnalyze(ctx, c.Args().First())
			if err != nil {
				return err
			}
			a.printer(asJSON).PrintTags(report.Tags())
			return nil
		},
	}
}

// ─── formats ─────────────────────────────────────────────────────────────────

func (a *app) cmdFormats() *cli.Command {
	var asJSON bool
	return &cli.Command{
		Name:  "formats",
		Usage: "List supported formats",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "json", Usage: "Print results as JSON", Destination: &asJSON},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			a.printer(asJSON).PrintFormats(a.engine.Formats())
			return nil
		},
	}
}

// single runs op on one file and prints its outcome. It reports whether
// the file was processed without error.
func (a *app) single(p *core.Printer, path string, op func(string) (*core.Outcome, error)) bool {
	out, err := op(path)
	if err != nil {
		p.PrintOutcome(core.Failed(path, core.Classify(path), err))
		return false
	}
	p.PrintOutcome(out)
	return out.Status != core.StatusError
}

func isDir(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.IsDir()
}
