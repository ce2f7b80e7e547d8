// Package engine runs the refresh loop of every check.
//
// Each check gets its own goroutine: refresh immediately, then wait ttl after
// each completed refresh and go again. Manual refreshes run on the caller's
// goroutine and never arm a timer. A check has at most one refresh in flight.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hamed0406/checkboard/internal/domain"
	"github.com/hamed0406/checkboard/internal/probe"
)

var (
	ErrAlreadyLoading = errors.New("check is already loading")
	ErrUnknownCheck   = errors.New("unknown check")
)

// Secrets supplies the credential for manual refreshes.
type Secrets interface {
	Get(ctx context.Context) (string, error)
	Invalidate(ctx context.Context) error
}

type Engine struct {
	log      *zap.Logger
	fetcher  probe.Fetcher
	secrets  Secrets
	observer []Observer

	order   []domain.Key
	runners map[domain.Key]*runner

	after func(time.Duration) <-chan time.Time
	now   func() time.Time
	newID func() string

	mu   sync.Mutex
	base context.Context
	wg   sync.WaitGroup
}

// runner owns the state of one check.
type runner struct {
	check domain.Check

	// seq orders phase changes with their notifications, so observers see
	// Loading and its completion back to back.
	seq sync.Mutex

	mu    sync.RWMutex
	state domain.State
}

func New(log *zap.Logger, fetcher probe.Fetcher, secrets Secrets, checks []domain.Check, observers ...Observer) *Engine {
	e := &Engine{
		log:      log,
		fetcher:  fetcher,
		secrets:  secrets,
		observer: observers,
		runners:  make(map[domain.Key]*runner, len(checks)),
		after:    time.After,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
		base:     context.Background(),
	}
	for _, c := range checks {
		k := c.Key()
		if _, dup := e.runners[k]; dup {
			log.Warn("engine_duplicate_check", zap.String("check", k.String()))
			continue
		}
		e.order = append(e.order, k)
		e.runners[k] = &runner{check: c, state: domain.State{Key: k, Phase: domain.PhaseIdle}}
	}
	return e
}

// Start launches one refresh loop per check and returns. Loops stop when ctx
// is cancelled; Wait blocks until they have.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	e.base = ctx
	e.mu.Unlock()

	for _, k := range e.order {
		r := e.runners[k]
		e.wg.Add(1)
		go e.loop(ctx, r)
	}
	e.log.Info("engine_started", zap.Int("checks", len(e.order)))
}

func (e *Engine) Wait() { e.wg.Wait() }

func (e *Engine) loop(ctx context.Context, r *runner) {
	defer e.wg.Done()
	for ctx.Err() == nil {
		if _, err := e.refresh(ctx, r, false, ctx); errors.Is(err, ErrAlreadyLoading) {
			e.log.Debug("engine_scheduled_skip", zap.String("check", r.check.Key().String()))
		}
		select {
		case <-ctx.Done():
		case <-e.after(r.check.Interval()):
		}
	}
}

// TriggerManual refreshes one check now with the refresh secret, prompting
// through ctx when none is stored. It blocks until the attempt completes and
// does not touch the check's schedule.
func (e *Engine) TriggerManual(ctx context.Context, key domain.Key) (domain.State, error) {
	r, ok := e.runners[key]
	if !ok {
		return domain.State{}, fmt.Errorf("%w: %s", ErrUnknownCheck, key)
	}
	e.mu.Lock()
	base := e.base
	e.mu.Unlock()
	return e.refresh(base, r, true, ctx)
}

// refresh performs one attempt. The fetch runs on ctx; the secret prompt on promptCtx.
func (e *Engine) refresh(ctx context.Context, r *runner, manual bool, promptCtx context.Context) (domain.State, error) {
	key := r.check.Key()
	if !e.begin(ctx, r, manual) {
		return r.snapshot(), ErrAlreadyLoading
	}

	secret := ""
	if manual && e.secrets != nil {
		s, err := e.secrets.Get(promptCtx)
		if err != nil {
			e.log.Warn("engine_secret_unavailable", zap.String("check", key.String()), zap.Error(err))
		}
		secret = s
	}

	start := time.Now()
	res, err := e.fetch(ctx, r.check, secret)
	if err != nil {
		if manual && e.secrets != nil && errors.Is(err, probe.ErrInvalidSecret) {
			if ierr := e.secrets.Invalidate(ctx); ierr != nil {
				e.log.Warn("engine_secret_invalidate_error", zap.Error(ierr))
			}
		}
		e.log.Warn("engine_fetch_error",
			zap.String("check", key.String()),
			zap.Bool("manual", manual),
			zap.Error(err),
		)
		res = domain.FailureResult(err)
	}

	st := e.finish(ctx, r, manual, res)
	e.log.Debug("engine_refresh_done",
		zap.String("check", key.String()),
		zap.String("phase", string(st.Phase)),
		zap.Bool("manual", manual),
		zap.Duration("elapsed", time.Since(start)),
	)
	return st, nil
}

func (e *Engine) fetch(ctx context.Context, check domain.Check, secret string) (res domain.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("fetch panicked: %v", p)
		}
	}()
	return e.fetcher.Fetch(ctx, check, secret)
}

func (e *Engine) begin(ctx context.Context, r *runner, manual bool) bool {
	r.seq.Lock()
	defer r.seq.Unlock()

	r.mu.Lock()
	if r.state.Phase == domain.PhaseLoading {
		r.mu.Unlock()
		return false
	}
	r.state = domain.State{Key: r.check.Key(), Phase: domain.PhaseLoading, Manual: manual, UpdatedAt: e.now()}
	st := r.state
	r.mu.Unlock()

	e.emit(ctx, r.check, st)
	return true
}

func (e *Engine) finish(ctx context.Context, r *runner, manual bool, res domain.Result) domain.State {
	r.seq.Lock()
	defer r.seq.Unlock()

	r.mu.Lock()
	r.state = domain.State{
		Key:       r.check.Key(),
		Phase:     domain.PhaseOf(res),
		Result:    &res,
		Manual:    manual,
		UpdatedAt: e.now(),
	}
	st := r.state
	r.mu.Unlock()

	e.emit(ctx, r.check, st)
	return st
}

func (e *Engine) emit(ctx context.Context, check domain.Check, st domain.State) {
	t := domain.Transition{
		ID:     e.newID(),
		Check:  check,
		Key:    st.Key,
		Phase:  st.Phase,
		Result: st.Result,
		Manual: st.Manual,
		At:     st.UpdatedAt,
	}
	for _, ob := range e.observer {
		e.notify(ctx, ob, t)
	}
}

func (e *Engine) notify(ctx context.Context, ob Observer, t domain.Transition) {
	defer func() {
		if p := recover(); p != nil {
			e.log.Error("engine_observer_panic", zap.String("check", t.Key.String()), zap.Any("panic", p))
		}
	}()
	if ob != nil {
		ob.Observe(ctx, t)
	}
}

func (r *runner) snapshot() domain.State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// State returns the current state of one check.
func (e *Engine) State(key domain.Key) (domain.State, bool) {
	r, ok := e.runners[key]
	if !ok {
		return domain.State{}, false
	}
	return r.snapshot(), true
}

// States returns every check's state in catalog order.
func (e *Engine) States() []domain.State {
	out := make([]domain.State, 0, len(e.order))
	for _, k := range e.order {
		out = append(out, e.runners[k].snapshot())
	}
	return out
}

// Checks returns the catalog in order.
func (e *Engine) Checks() []domain.Check {
	out := make([]domain.Check, 0, len(e.order))
	for _, k := range e.order {
		out = append(out, e.runners[k].check)
	}
	return out
}

func (e *Engine) Check(key domain.Key) (domain.Check, bool) {
	r, ok := e.runners[key]
	if !ok {
		return domain.Check{}, false
	}
	return r.check, true
}
