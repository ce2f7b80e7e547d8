package probe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hamed0406/checkboard/internal/domain"
)

// Retry repeats fetches that failed in transport. A rejected secret or a
// malformed body is an answer, not an outage, and is returned at once.
type Retry struct {
	Inner    Fetcher
	Attempts int
	Backoff  time.Duration
}

func (r *Retry) Fetch(ctx context.Context, check domain.Check, secret string) (domain.Result, error) {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		var res domain.Result
		res, err = r.Inner.Fetch(ctx, check, secret)
		if err == nil || !retryable(err) {
			return res, err
		}
		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return domain.Result{}, ctx.Err()
			case <-time.After(r.Backoff):
			}
		}
	}
	if attempts > 1 {
		// annotate so the failure shows it was a retry series
		err = fmt.Errorf("%w (after %d attempts)", err, attempts)
	}
	return domain.Result{}, err
}

func retryable(err error) bool {
	return !errors.Is(err, ErrInvalidSecret) &&
		!errors.Is(err, ErrMalformedResult) &&
		!errors.Is(err, context.Canceled)
}
