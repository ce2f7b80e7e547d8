package status

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamed0406/checkboard/internal/domain"
)

func move(a *Aggregator, k domain.Key, p domain.Phase) {
	a.Observe(context.Background(), domain.Transition{Key: k, Phase: p})
}

func TestAggregator_FailureFlipsHealth(t *testing.T) {
	a := NewAggregator()
	ping := domain.Key{Project: "A", Name: "ping"}
	lag := domain.Key{Project: "B", Name: "lag"}

	assert.True(t, a.IsAllHealthy(), "no checks known")

	move(a, ping, domain.PhaseSuccess)
	move(a, lag, domain.PhaseSuccess)
	assert.True(t, a.IsAllHealthy())

	move(a, lag, domain.PhaseFailure)
	assert.False(t, a.IsAllHealthy())
	assert.Equal(t, IndicatorFailing, a.Indicator())

	move(a, lag, domain.PhaseLoading)
	assert.True(t, a.IsAllHealthy(), "loading does not count as failing")

	move(a, lag, domain.PhaseSuccess)
	assert.True(t, a.IsAllHealthy())
	assert.Equal(t, IndicatorSuccess, a.Indicator())
}

func TestAggregator_IndicatorLoadingWinsWhileInFlight(t *testing.T) {
	a := NewAggregator()
	ping := domain.Key{Project: "A", Name: "ping"}
	lag := domain.Key{Project: "B", Name: "lag"}

	move(a, lag, domain.PhaseFailure)
	move(a, ping, domain.PhaseLoading)
	s := a.Summary()
	assert.Equal(t, IndicatorLoading, s.Indicator)
	assert.False(t, s.Healthy)
	assert.Equal(t, []domain.Key{lag}, s.Failing)

	move(a, ping, domain.PhaseSuccess)
	assert.Equal(t, IndicatorFailing, a.Indicator())
}

func TestAggregator_OnChangeSeesEveryTransition(t *testing.T) {
	a := NewAggregator()
	var got []Indicator
	a.OnChange(func(s Summary) { got = append(got, s.Indicator) })

	k := domain.Key{Project: "A", Name: "ping"}
	move(a, k, domain.PhaseLoading)
	move(a, k, domain.PhaseFailure)

	require.Len(t, got, 2)
	assert.Equal(t, []Indicator{IndicatorLoading, IndicatorFailing}, got)
}
