package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/vk/ctwgo/internal/app"
	"github.com/vk/ctwgo/internal/cli"
	"github.com/vk/ctwgo/internal/runner"
)

// main is the entrypoint for the crash-recovery runner.
func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		stop()
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run parses the arguments and drives every phase. Banners go to outW and
// logs to errW.
func run(ctx context.Context, outW, errW io.Writer, args []string) error {
	cfg, shouldExit, err := cli.ParseRunner(args, outW)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	logger := app.NewLogger(cfg.LogLevel, cfg.LogFormat, errW)
	r, err := runner.New(cfg.Runner, cfg.Launcher,
		runner.WithLogger(logger),
		runner.WithBannerOutput(outW),
	)
	if err != nil {
		return &cli.ExitError{Code: 2, Message: err.Error()}
	}

	_, err = r.Run(ctx)
	return err
}
