package engine

import (
	"context"

	"github.com/hamed0406/checkboard/internal/domain"
)

// Observer receives every phase transition. Observe is called from the
// check's own goroutine, so implementations must be safe for concurrent use
// across checks and must not call back into TriggerManual.
type Observer interface {
	Observe(ctx context.Context, t domain.Transition)
}
