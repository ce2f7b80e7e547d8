package status

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type AlerterConfig struct {
	AlertOnRecovery bool
	Cooldown        time.Duration
}

type Notifier interface {
	Send(ctx context.Context, title, text string) error
}

// Alerter notifies when the fleet flips between healthy and failing.
type Alerter struct {
	log      *zap.Logger
	notifier Notifier
	cfg      AlerterConfig
	now      func() time.Time
	spawn    func(func())

	mu         sync.Mutex
	known      bool
	lastHealth bool
	lastSentAt time.Time
}

func NewAlerter(log *zap.Logger, notifier Notifier, cfg AlerterConfig) *Alerter {
	return &Alerter{
		log:      log,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		spawn:    func(f func()) { go f() },
	}
}

// Listen is registered with Aggregator.OnChange: the decision is taken in
// transition order, delivery happens in the background.
func (a *Alerter) Listen(s Summary) {
	if title, text, ok := a.evaluate(s); ok {
		a.spawn(func() { a.send(title, text, len(s.Failing)) })
	}
}

func (a *Alerter) evaluate(s Summary) (string, string, bool) {
	if s.Indicator == IndicatorLoading && s.Healthy {
		// still settling; only a real failure is worth acting on mid-refresh
		return "", "", false
	}
	return a.decide(s)
}

func (a *Alerter) send(title, text string, failing int) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.notifier.Send(ctx, title, text); err != nil {
		a.log.Warn("alerter_send_error", zap.String("title", title), zap.Error(err))
		return
	}
	a.log.Info("alerter_sent", zap.String("title", title), zap.Int("failing", failing))
}

func (a *Alerter) decide(s Summary) (string, string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()

	// Has the fleet state changed compared to what we last recorded?
	stateChanged := !a.known || a.lastHealth != s.Healthy
	if !stateChanged {
		return "", "", false
	}
	firstSeen := !a.known
	a.known = true
	a.lastHealth = s.Healthy

	// Cooldown only matters for DOWN alerts (suppresses flapping).
	cooled := a.lastSentAt.IsZero() || now.Sub(a.lastSentAt) >= a.cfg.Cooldown

	downAlert := !s.Healthy && cooled
	recoveryAlert := s.Healthy && !firstSeen && a.cfg.AlertOnRecovery
	if !downAlert && !recoveryAlert {
		return "", "", false
	}
	a.lastSentAt = now

	if s.Healthy {
		return "🟢 Checks RECOVERED", fmt.Sprintf("All %d checks are passing.", s.Total), true
	}
	names := make([]string, 0, len(s.Failing))
	for _, k := range s.Failing {
		names = append(names, k.String())
	}
	text := fmt.Sprintf("%d of %d checks failing:\n%s\nAt: %s",
		len(s.Failing), s.Total, strings.Join(names, "\n"), now.UTC().Format(time.RFC3339))
	return "🔴 Checks FAILING", text, true
}
