package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hamed0406/checkboard/internal/app"
	"github.com/hamed0406/checkboard/internal/config"
	"github.com/hamed0406/checkboard/internal/console"
	"github.com/hamed0406/checkboard/internal/logging"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	// The terminal belongs to the dashboard; logs only go to the file.
	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	in := console.NewInput(os.Stdin)
	printer := console.NewPrinter(os.Stdout)
	core, err := app.Build(ctx, cfg, logger, console.NewPrompter(in, printer), printer)
	if err != nil {
		fmt.Fprintln(os.Stderr, "✖", err)
		os.Exit(1)
	}
	defer core.Close()

	printer.List(core.Checks, core.Engine.States())
	core.Engine.Start(ctx)

	shell := console.NewShell(core.Engine, core.Status, printer, in)
	if err := shell.Run(ctx); err != nil {
		logger.Warn("cli_input_error", zap.Error(err))
	}
	stop()
	core.Engine.Wait()
}
