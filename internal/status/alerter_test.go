package status

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/hamed0406/checkboard/internal/domain"
)

type memNotifier struct {
	mu     sync.Mutex
	titles []string
}

func (m *memNotifier) Send(_ context.Context, title, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles = append(m.titles, title)
	return nil
}

func (m *memNotifier) N() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.titles)
}

// newTestAlerter delivers on the caller's goroutine.
func newTestAlerter(nt Notifier, cfg AlerterConfig) *Alerter {
	al := NewAlerter(zap.NewNop(), nt, cfg)
	al.spawn = func(f func()) { f() }
	return al
}

func failing(keys ...domain.Key) Summary {
	return Summary{Healthy: len(keys) == 0, Indicator: IndicatorFailing, Total: 3, Failing: keys}
}

func healthy() Summary {
	return Summary{Healthy: true, Indicator: IndicatorSuccess, Total: 3, Failing: []domain.Key{}}
}

func TestAlerter_SendsOnDown_RespectsCooldown(t *testing.T) {
	nt := &memNotifier{}
	al := newTestAlerter(nt, AlerterConfig{AlertOnRecovery: true, Cooldown: time.Minute})
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	al.now = func() time.Time { return clock }

	a := domain.Key{Project: "A", Name: "ping"}

	al.Listen(failing(a))
	assert.Equal(t, 1, nt.N(), "first failure alerts")

	al.Listen(failing(a))
	assert.Equal(t, 1, nt.N(), "no change, no alert")

	al.Listen(healthy())
	assert.Equal(t, 2, nt.N(), "recovery alert bypasses cooldown")

	clock = clock.Add(10 * time.Second)
	al.Listen(failing(a))
	assert.Equal(t, 2, nt.N(), "flap within cooldown is suppressed")

	al.Listen(healthy())
	clock = clock.Add(2 * time.Minute)
	al.Listen(failing(a))
	assert.Equal(t, 4, nt.N())
	assert.Equal(t, "🔴 Checks FAILING", nt.titles[3])
}

func TestAlerter_NoRecoveryIfDisabled(t *testing.T) {
	nt := &memNotifier{}
	al := newTestAlerter(nt, AlerterConfig{AlertOnRecovery: false})

	// first healthy observation is not a recovery
	al.Listen(healthy())
	assert.Equal(t, 0, nt.N())

	al.Listen(failing(domain.Key{Project: "B", Name: "lag"}))
	assert.Equal(t, 1, nt.N())

	al.Listen(healthy())
	assert.Equal(t, 1, nt.N())
}

func TestAlerter_IgnoresHealthyWhileLoading(t *testing.T) {
	nt := &memNotifier{}
	al := newTestAlerter(nt, AlerterConfig{AlertOnRecovery: true})

	al.Listen(failing(domain.Key{Project: "A", Name: "ping"}))
	al.Listen(Summary{Healthy: true, Indicator: IndicatorLoading, Total: 3, Loading: 1})
	assert.Equal(t, 1, nt.N())
}

func TestAlerter_ListenDeliversInBackground(t *testing.T) {
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), nt, AlerterConfig{Cooldown: time.Minute})

	al.Listen(failing(domain.Key{Project: "A", Name: "ping"}))

	assert.Eventually(t, func() bool { return nt.N() == 1 }, time.Second, 5*time.Millisecond)
}

func TestAlerter_DrivenByAggregator(t *testing.T) {
	nt := &memNotifier{}
	al := newTestAlerter(nt, AlerterConfig{AlertOnRecovery: true})
	agg := NewAggregator()
	agg.OnChange(al.Listen)

	k := domain.Key{Project: "A", Name: "ping"}
	ctx := context.Background()
	agg.Observe(ctx, domain.Transition{Key: k, Phase: domain.PhaseLoading})
	agg.Observe(ctx, domain.Transition{Key: k, Phase: domain.PhaseFailure})
	agg.Observe(ctx, domain.Transition{Key: k, Phase: domain.PhaseLoading})
	agg.Observe(ctx, domain.Transition{Key: k, Phase: domain.PhaseSuccess})

	nt.mu.Lock()
	defer nt.mu.Unlock()
	assert.Equal(t, []string{"🔴 Checks FAILING", "🟢 Checks RECOVERED"}, nt.titles)
}
