package probe

import (
	"context"
	"errors"

	"github.com/hamed0406/checkboard/internal/domain"
)

var (
	// ErrInvalidSecret means the upstream service rejected the refresh secret.
	ErrInvalidSecret = errors.New("invalid refresh secret")
	// ErrMalformedResult means the response body is not a check result.
	ErrMalformedResult = errors.New("malformed check result")
)

// Fetcher performs one result fetch for one check. An empty secret means
// a scheduled, non-privileged request.
type Fetcher interface {
	Fetch(ctx context.Context, check domain.Check, secret string) (domain.Result, error)
}
