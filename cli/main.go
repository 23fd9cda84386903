// Command metascrub views and removes metadata from documents, images,
// audio and video files.
package main

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/ramsesware/0FF1C3-T00LS/cli/config"
	"github.com/ramsesware/0FF1C3-T00LS/core"
	"github.com/ramsesware/0FF1C3-T00LS/core/engine"
)

func main() {
	if err := run(context.Background(), os.Args, os.Stdout); err != nil {
		core.PrintError(err.Error())
		os.Exit(1)
	}
}

// run executes the CLI with args, writing results to w.
func run(ctx context.Context, args []string, w io.Writer) error {
	var loggerCfg config.Logger
	var logger *slog.Logger
	app := &app{out: w}

	cmd := &cli.Command{
		Name:  "metascrub",
		Usage: "View and remove file metadata",
		Flags: loggerCfg.Flags(),
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			var err error
			logger, err = loggerCfg.Configure()
			if err != nil {
				return nil, err
			}
			slog.SetDefault(logger)
			app.engine = engine.New(engine.WithLogger(logger))
			return ctx, nil
		},
		Commands: []*cli.Command{
			app.cmdView(),
			app.cmdStrip(),
			app.cmdTags(),
			app.cmdFormats(),
		},
	}

	if err := cmd.Run(ctx, args); err != nil {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("CLI execution failed", slog.Any("error", err))
		return err
	}
	return nil
}

// errFailed is returned when at least one path could not be processed.
var errFailed = goerr.New("one or more files failed")
