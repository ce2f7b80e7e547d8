package repo

import (
	"context"

	"go.uber.org/zap"

	"github.com/hamed0406/checkboard/internal/domain"
)

// StateStore keeps the latest completed state per check. No history.
type StateStore interface {
	Save(ctx context.Context, st domain.State) error
	// Get returns nil, nil if the check has no saved state yet.
	Get(ctx context.Context, key domain.Key) (*domain.State, error)
	List(ctx context.Context) ([]domain.State, error)
}

// Recorder saves every completed transition.
type Recorder struct {
	Store  StateStore
	Logger *zap.Logger
}

func (r Recorder) Observe(ctx context.Context, t domain.Transition) {
	if !t.Phase.Completed() {
		return
	}
	if err := r.Store.Save(ctx, t.State()); err != nil {
		r.Logger.Warn("repo_save_error", zap.String("check", t.Key.String()), zap.Error(err))
	}
}
