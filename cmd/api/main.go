package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hamed0406/checkboard/internal/app"
	"github.com/hamed0406/checkboard/internal/config"
	"github.com/hamed0406/checkboard/internal/httpapi"
	"github.com/hamed0406/checkboard/internal/logging"
	"github.com/hamed0406/checkboard/internal/secret"
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

	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Console: cfg.LogConsole})
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := httpapi.NewHub(logger)
	// Operators answer the secret prompt through the refresh request header.
	core, err := app.Build(ctx, cfg, logger, secret.ContextPrompter{}, hub)
	if err != nil {
		logger.Fatal("startup_failed", zap.Error(err))
	}
	defer func() {
		if err := core.Close(); err != nil {
			logger.Warn("shutdown_close_error", zap.Error(err))
		}
	}()

	api := httpapi.NewServer(logger, core.Engine, core.Status, hub)
	api.Diagram = core.Diagram
	api.Store = core.Store

	core.Engine.Start(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.Router(cfg.AllowedOrigins, cfg.RefreshRPM, cfg.RefreshBurst),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("api_listen", zap.String("addr", cfg.Addr), zap.Int("checks", len(core.Checks)))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_listen_failed", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("api_shutdown")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("api_shutdown_error", zap.Error(err))
	}
	core.Engine.Wait()
	logger.Info("api_stopped")
}
