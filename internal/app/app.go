// Package app wires the dashboard components from configuration. Both
// binaries share it; only the prompter and the front-end observers differ.
package app

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/checkboard/internal/catalog"
	"github.com/hamed0406/checkboard/internal/config"
	"github.com/hamed0406/checkboard/internal/diagram"
	"github.com/hamed0406/checkboard/internal/domain"
	"github.com/hamed0406/checkboard/internal/engine"
	"github.com/hamed0406/checkboard/internal/notify"
	"github.com/hamed0406/checkboard/internal/probe"
	"github.com/hamed0406/checkboard/internal/publish"
	"github.com/hamed0406/checkboard/internal/repo"
	"github.com/hamed0406/checkboard/internal/repo/memory"
	pg "github.com/hamed0406/checkboard/internal/repo/postgres"
	"github.com/hamed0406/checkboard/internal/secret"
	"github.com/hamed0406/checkboard/internal/status"
)

// Core is everything except the front end.
type Core struct {
	Checks  []domain.Check
	Engine  *engine.Engine
	Status  *status.Aggregator
	Diagram *diagram.SVG // nil when no diagram is loaded
	Store   repo.StateStore

	closers []func() error
}

// Build loads the catalog and assembles the engine with its observers.
// extra observers run after the built-in ones. The engine is not started.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger, prompt secret.Prompter, extra ...engine.Observer) (*Core, error) {
	checks, err := Catalog(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	c := &Core{Checks: checks}

	persist, closePersist := SecretPersister(cfg)
	c.closers = append(c.closers, closePersist)
	secrets := secret.NewStore(log, persist, prompt)

	c.Status = status.NewAggregator()
	alerter := status.NewAlerter(log, Notifier(cfg, log), status.AlerterConfig{
		AlertOnRecovery: cfg.AlertOnRecovery,
		Cooldown:        cfg.AlertCooldown,
	})
	c.Status.OnChange(alerter.Listen)

	c.Diagram = Diagram(cfg, log)
	var doc diagram.Document
	if c.Diagram != nil {
		doc = c.Diagram
	}
	annotator := diagram.NewAnnotator(log, doc)
	bound := annotator.BindAll(checks)
	log.Info("diagram_bound", zap.Int("bound", bound), zap.Int("checks", len(checks)))

	store, closeStore, err := StateStore(ctx, cfg, log)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	c.Store = store
	c.closers = append(c.closers, closeStore)

	observers := []engine.Observer{
		c.Status,
		annotator,
		repo.Recorder{Store: store, Logger: log},
	}
	if len(cfg.KafkaBrokers) > 0 {
		k, err := publish.NewKafka(log, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.closers = append(c.closers, k.Close)
		observers = append(observers, k)
	}
	observers = append(observers, extra...)

	fetcher := &probe.Retry{
		Inner:    probe.NewClient(cfg.ChecksServer, cfg.HTTPTimeout),
		Attempts: cfg.FetchRetryAttempts,
		Backoff:  cfg.FetchRetryBackoff,
	}
	c.Engine = engine.New(log, fetcher, secrets, checks, observers...)
	return c, nil
}

// Close releases connections in reverse order of creation.
func (c *Core) Close() error {
	var err error
	for i := len(c.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, c.closers[i]())
	}
	c.closers = nil
	return err
}

// Catalog loads the checks from CATALOG_FILE or the checks service and validates them.
func Catalog(ctx context.Context, cfg config.Config, log *zap.Logger) ([]domain.Check, error) {
	var src catalog.Source
	if cfg.CatalogFile != "" {
		src = catalog.FileSource{Path: cfg.CatalogFile}
	} else {
		src = catalog.NewHTTPSource(log, cfg.ChecksServer, cfg.HTTPTimeout, cfg.CatalogRetryAttempts, cfg.CatalogRetryBackoff)
	}
	checks, err := src.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	if err := catalog.Validate(checks); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	return checks, nil
}

func SecretPersister(cfg config.Config) (secret.Persister, func() error) {
	switch cfg.SecretBackend {
	case config.SecretBackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		return secret.NewRedis(client, cfg.SecretRedisKey), client.Close
	case config.SecretBackendMemory:
		return secret.NewMemory(), noop
	default:
		return secret.NewFile(cfg.SecretFile), noop
	}
}

// Notifier sends fleet alerts to Slack when a webhook is set, and always to the log.
func Notifier(cfg config.Config, log *zap.Logger) status.Notifier {
	l := notify.Log{Logger: log}
	if cfg.SlackWebhook == "" {
		return l
	}
	return notify.Multi{notify.NewSlack(cfg.SlackWebhook), l}
}

// Diagram loads the SVG diagram. A missing or unreadable file disables
// annotation instead of failing startup.
func Diagram(cfg config.Config, log *zap.Logger) *diagram.SVG {
	if cfg.DiagramPath == "" {
		return nil
	}
	svg, err := diagram.LoadSVG(cfg.DiagramPath)
	if err != nil {
		log.Warn("diagram_load_error", zap.String("path", cfg.DiagramPath), zap.Error(err))
		return nil
	}
	return svg
}

// StateStore returns Postgres when DATABASE_URL is set, memory otherwise.
func StateStore(ctx context.Context, cfg config.Config, log *zap.Logger) (repo.StateStore, func() error, error) {
	if cfg.DatabaseURL == "" {
		return memory.New(), noop, nil
	}
	store, err := pg.New(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, fmt.Errorf("connect state store: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, nil, err
	}
	return store, func() error { store.Close(); return nil }, nil
}

func noop() error { return nil }
