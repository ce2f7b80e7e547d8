package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/hamed0406/checkboard/internal/domain"
)

// HTTPSource fetches GET {BaseURL}/checks, retrying transient failures.
type HTTPSource struct {
	BaseURL  string
	Client   *http.Client
	Attempts int
	Backoff  time.Duration
	Logger   *zap.Logger
}

func NewHTTPSource(log *zap.Logger, baseURL string, timeout time.Duration, attempts int, wait time.Duration) *HTTPSource {
	return &HTTPSource{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Client:   &http.Client{Timeout: timeout},
		Attempts: attempts,
		Backoff:  wait,
		Logger:   log,
	}
}

func (s *HTTPSource) Load(ctx context.Context) ([]domain.Check, error) {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = s.Backoff
	eb.MaxElapsedTime = 0
	attempts := s.Attempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(attempts-1)), ctx)

	var checks []domain.Check
	op := func() error {
		var err error
		checks, err = s.fetch(ctx)
		return err
	}
	notify := func(err error, wait time.Duration) {
		s.Logger.Warn("catalog_fetch_retry", zap.Error(err), zap.Duration("wait", wait))
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, fmt.Errorf("load catalog from %s: %w", s.BaseURL, err)
	}
	s.Logger.Info("catalog_loaded", zap.String("source", s.BaseURL), zap.Int("checks", len(checks)))
	return checks, nil
}

func (s *HTTPSource) fetch(ctx context.Context) ([]domain.Check, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/checks", nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("catalog returned %s", resp.Status)
	case resp.StatusCode != http.StatusOK:
		return nil, backoff.Permanent(fmt.Errorf("catalog returned %s", resp.Status))
	}

	var checks []domain.Check
	if err := json.NewDecoder(resp.Body).Decode(&checks); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode catalog: %w", err))
	}
	return checks, nil
}
