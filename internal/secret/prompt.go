package secret

import (
	"context"
	"sync/atomic"
)

// Exchange carries an operator-supplied answer into a non-interactive prompt
// (HTTP requests) and records whether the prompt was reached.
type Exchange struct {
	Answer string
	asked  atomic.Bool
}

// Asked reports whether a prompt consulted the exchange, that is, whether
// no secret was stored when the refresh ran.
func (e *Exchange) Asked() bool { return e.asked.Load() }

type exchangeKey struct{}

func WithExchange(ctx context.Context, e *Exchange) context.Context {
	return context.WithValue(ctx, exchangeKey{}, e)
}

// WithAnswer attaches an operator-supplied secret to ctx.
func WithAnswer(ctx context.Context, secret string) context.Context {
	return WithExchange(ctx, &Exchange{Answer: secret})
}

// ContextPrompter answers the prompt from the ctx exchange; no answer means declined.
type ContextPrompter struct{}

func (ContextPrompter) Prompt(ctx context.Context) (string, error) {
	e, _ := ctx.Value(exchangeKey{}).(*Exchange)
	if e == nil {
		return "", nil
	}
	e.asked.Store(true)
	return e.Answer, nil
}
