// Package secret holds the single refresh secret shared by every manual refresh.
package secret

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Persister keeps the secret across restarts. Load returns "" when nothing is stored.
type Persister interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, secret string) error
	Clear(ctx context.Context) error
}

// Prompter asks the operator for the secret. An empty answer means they declined.
type Prompter interface {
	Prompt(ctx context.Context) (string, error)
}

// Store hands out the persisted secret, prompting for one when none is held.
// Prompts are serialized so concurrent callers reuse a freshly supplied secret.
type Store struct {
	mu      sync.Mutex
	log     *zap.Logger
	persist Persister
	prompt  Prompter
}

func NewStore(log *zap.Logger, persist Persister, prompt Prompter) *Store {
	if persist == nil {
		persist = NewMemory()
	}
	return &Store{log: log, persist: persist, prompt: prompt}
}

// Get returns the persisted secret or acquires one from the operator.
// A declined prompt yields "" and nil: the refresh goes out unauthenticated.
func (s *Store) Get(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.persist.Load(ctx)
	if err != nil {
		s.log.Warn("secret_load_error", zap.Error(err))
	}
	if v != "" {
		return v, nil
	}
	if s.prompt == nil {
		return "", nil
	}

	v, err = s.prompt.Prompt(ctx)
	if err != nil {
		return "", fmt.Errorf("prompt for refresh secret: %w", err)
	}
	v = strings.TrimSpace(v)
	if v == "" {
		s.log.Info("secret_declined")
		return "", nil
	}
	if err := s.persist.Save(ctx, v); err != nil {
		s.log.Warn("secret_save_error", zap.Error(err))
	}
	return v, nil
}

// Invalidate forgets the stored secret so the next Get prompts again.
func (s *Store) Invalidate(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.persist.Clear(ctx); err != nil {
		return fmt.Errorf("clear refresh secret: %w", err)
	}
	s.log.Info("secret_invalidated")
	return nil
}
