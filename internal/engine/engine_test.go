package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hamed0406/checkboard/internal/domain"
	"github.com/hamed0406/checkboard/internal/probe"
)

// --- fakes ---

type fetchCall struct {
	key    domain.Key
	secret string
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls []fetchCall
	fn    func(ctx context.Context, c domain.Check, secret string) (domain.Result, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, c domain.Check, secret string) (domain.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{key: c.Key(), secret: secret})
	f.mu.Unlock()
	return f.fn(ctx, c, secret)
}

func (f *fakeFetcher) Calls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fetchCall(nil), f.calls...)
}

type fakeSecrets struct {
	mu          sync.Mutex
	value       string
	prompts     []string
	invalidated int
}

func (s *fakeSecrets) Get(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == "" && len(s.prompts) > 0 {
		s.value, s.prompts = s.prompts[0], s.prompts[1:]
	}
	return s.value, nil
}

func (s *fakeSecrets) Invalidate(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = ""
	s.invalidated++
	return nil
}

type recorder struct {
	mu sync.Mutex
	ts []domain.Transition
}

func (r *recorder) Observe(_ context.Context, t domain.Transition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ts = append(r.ts, t)
}

func (r *recorder) Phases(k domain.Key) []domain.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Phase
	for _, t := range r.ts {
		if t.Key == k {
			out = append(out, t.Phase)
		}
	}
	return out
}

// timers hands out channels that only fire when the test says so.
type timers struct {
	mu    sync.Mutex
	armed []time.Duration
	chans []chan time.Time
}

func (tm *timers) after(d time.Duration) <-chan time.Time {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	c := make(chan time.Time, 1)
	tm.armed = append(tm.armed, d)
	tm.chans = append(tm.chans, c)
	return c
}

func (tm *timers) Armed() []time.Duration {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return append([]time.Duration(nil), tm.armed...)
}

func (tm *timers) fire(i int) {
	tm.mu.Lock()
	c := tm.chans[i]
	tm.mu.Unlock()
	c <- time.Now()
}

var ping = domain.Check{Project: "A", Name: "ping", URL: "/ping", TTL: 30}

func okResult() domain.Result {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return domain.Result{Success: true, Data: map[string]any{"ok": true}, Duration: 0.12, Datetime: &ts}
}

func newTestEngine(f probe.Fetcher, s Secrets, tm *timers, checks []domain.Check, obs ...Observer) *Engine {
	e := New(zap.NewNop(), f, s, checks, obs...)
	e.after = tm.after
	return e
}

func waitArmed(t *testing.T, tm *timers, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return len(tm.Armed()) >= n }, time.Second, time.Millisecond)
}

// --- tests ---

func TestEngine_ScheduledRefreshSucceedsAndRearms(t *testing.T) {
	f := &fakeFetcher{fn: func(context.Context, domain.Check, string) (domain.Result, error) { return okResult(), nil }}
	rec := &recorder{}
	tm := &timers{}
	e := newTestEngine(f, &fakeSecrets{}, tm, []domain.Check{ping}, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); e.Wait() }()
	e.Start(ctx)

	waitArmed(t, tm, 1)
	assert.Equal(t, 30*time.Second, tm.Armed()[0])

	st, ok := e.State(ping.Key())
	require.True(t, ok)
	assert.Equal(t, domain.PhaseSuccess, st.Phase)
	require.NotNil(t, st.Result)
	assert.InDelta(t, 0.12, st.Result.Duration, 1e-9)
	assert.Equal(t, []domain.Phase{domain.PhaseLoading, domain.PhaseSuccess}, rec.Phases(ping.Key()))
	assert.Equal(t, "", f.Calls()[0].secret)

	tm.fire(0)
	waitArmed(t, tm, 2)
	assert.Len(t, f.Calls(), 2)
	assert.Equal(t, []domain.Phase{
		domain.PhaseLoading, domain.PhaseSuccess,
		domain.PhaseLoading, domain.PhaseSuccess,
	}, rec.Phases(ping.Key()))
}

func TestEngine_TransportErrorBecomesFailure(t *testing.T) {
	f := &fakeFetcher{fn: func(context.Context, domain.Check, string) (domain.Result, error) {
		return domain.Result{}, errors.New("dial tcp: connection refused")
	}}
	tm := &timers{}
	e := newTestEngine(f, &fakeSecrets{}, tm, []domain.Check{ping})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); e.Wait() }()
	e.Start(ctx)
	waitArmed(t, tm, 1)

	st, _ := e.State(ping.Key())
	assert.Equal(t, domain.PhaseFailure, st.Phase)
	require.NotNil(t, st.Result)
	assert.False(t, st.Result.Success)
	assert.Zero(t, st.Result.Duration)
	assert.Contains(t, st.Result.Data, "connection refused")
}

func TestEngine_PanickingFetcherBecomesFailure(t *testing.T) {
	f := &fakeFetcher{fn: func(context.Context, domain.Check, string) (domain.Result, error) { panic("boom") }}
	tm := &timers{}
	e := newTestEngine(f, &fakeSecrets{}, tm, []domain.Check{ping})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); e.Wait() }()
	e.Start(ctx)
	waitArmed(t, tm, 1)

	st, _ := e.State(ping.Key())
	assert.Equal(t, domain.PhaseFailure, st.Phase)
}

func TestEngine_ManualInvalidSecretClearsAndArmsNoTimer(t *testing.T) {
	f := &fakeFetcher{fn: func(_ context.Context, _ domain.Check, secret string) (domain.Result, error) {
		if secret != "" {
			return domain.Result{}, probe.ErrInvalidSecret
		}
		return okResult(), nil
	}}
	secrets := &fakeSecrets{prompts: []string{"abc123", "def456"}}
	rec := &recorder{}
	tm := &timers{}
	e := newTestEngine(f, secrets, tm, []domain.Check{ping}, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); e.Wait() }()
	e.Start(ctx)
	waitArmed(t, tm, 1)

	st, err := e.TriggerManual(context.Background(), ping.Key())
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseFailure, st.Phase)
	assert.True(t, st.Manual)
	assert.Equal(t, 1, secrets.invalidated)

	calls := f.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "abc123", calls[1].secret)

	// the next manual refresh prompts again instead of reusing abc123
	_, err = e.TriggerManual(context.Background(), ping.Key())
	require.NoError(t, err)
	assert.Equal(t, "def456", f.Calls()[2].secret)

	assert.Len(t, tm.Armed(), 1, "manual refreshes must not arm timers")
}

func TestEngine_ManualWhileLoadingIsRejected(t *testing.T) {
	release := make(chan struct{})
	f := &fakeFetcher{fn: func(context.Context, domain.Check, string) (domain.Result, error) {
		<-release
		return okResult(), nil
	}}
	tm := &timers{}
	e := newTestEngine(f, &fakeSecrets{value: "abc123"}, tm, []domain.Check{ping})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); e.Wait() }()
	e.Start(ctx)

	require.Eventually(t, func() bool {
		st, _ := e.State(ping.Key())
		return st.Phase == domain.PhaseLoading
	}, time.Second, time.Millisecond)

	_, err := e.TriggerManual(context.Background(), ping.Key())
	assert.ErrorIs(t, err, ErrAlreadyLoading)
	assert.Len(t, f.Calls(), 1)

	close(release)
	waitArmed(t, tm, 1)
}

func TestEngine_ScheduledTickDuringManualIsSkipped(t *testing.T) {
	release := make(chan struct{})
	f := &fakeFetcher{fn: func(_ context.Context, _ domain.Check, secret string) (domain.Result, error) {
		if secret != "" {
			<-release
		}
		return okResult(), nil
	}}
	tm := &timers{}
	e := newTestEngine(f, &fakeSecrets{value: "abc123"}, tm, []domain.Check{ping})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); e.Wait() }()
	e.Start(ctx)
	waitArmed(t, tm, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = e.TriggerManual(context.Background(), ping.Key())
	}()
	require.Eventually(t, func() bool { return len(f.Calls()) == 2 }, time.Second, time.Millisecond)

	tm.fire(0)
	waitArmed(t, tm, 2)
	assert.Len(t, f.Calls(), 2, "tick during manual refresh must not fetch")

	close(release)
	<-done
	st, _ := e.State(ping.Key())
	assert.Equal(t, domain.PhaseSuccess, st.Phase)
}

func TestEngine_UnknownCheck(t *testing.T) {
	e := newTestEngine(&fakeFetcher{}, &fakeSecrets{}, &timers{}, []domain.Check{ping})
	_, err := e.TriggerManual(context.Background(), domain.Key{Project: "B", Name: "nope"})
	assert.ErrorIs(t, err, ErrUnknownCheck)
}

func TestEngine_ChecksAreIndependent(t *testing.T) {
	broken := domain.Check{Project: "B", Name: "lag", URL: "/lag", TTL: 60}
	f := &fakeFetcher{fn: func(_ context.Context, c domain.Check, _ string) (domain.Result, error) {
		if c.Name == "lag" {
			return domain.Result{}, errors.New("unreachable")
		}
		return okResult(), nil
	}}
	tm := &timers{}
	e := newTestEngine(f, &fakeSecrets{}, tm, []domain.Check{ping, broken, ping})

	ctx, cancel := context.WithCancel(context.Background())
	defer func() { cancel(); e.Wait() }()
	e.Start(ctx)
	waitArmed(t, tm, 2)

	states := e.States()
	require.Len(t, states, 2, "duplicate keys are dropped")
	assert.Equal(t, domain.PhaseSuccess, states[0].Phase)
	assert.Equal(t, domain.PhaseFailure, states[1].Phase)
}

func TestEngine_IdleBeforeStart(t *testing.T) {
	e := newTestEngine(&fakeFetcher{}, &fakeSecrets{}, &timers{}, []domain.Check{ping})
	st, ok := e.State(ping.Key())
	require.True(t, ok)
	assert.Equal(t, domain.PhaseIdle, st.Phase)
	assert.Nil(t, st.Result)
}
