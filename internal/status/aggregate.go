// Package status derives the fleet-wide signal from per-check phases.
package status

import (
	"context"
	"sort"
	"sync"

	"github.com/hamed0406/checkboard/internal/domain"
)

// Indicator is what the status icon shows.
type Indicator string

const (
	IndicatorLoading Indicator = "loading"
	IndicatorSuccess Indicator = "success"
	IndicatorFailing Indicator = "failing"
)

type Summary struct {
	Healthy   bool         `json:"healthy"`
	Indicator Indicator    `json:"indicator"`
	Total     int          `json:"total"`
	Loading   int          `json:"loading"`
	Failing   []domain.Key `json:"failing"`
}

// Aggregator tracks the latest phase of every check it has seen.
// Checks never seen, Idle or Loading do not count as failing.
type Aggregator struct {
	mu     sync.RWMutex
	phases map[domain.Key]domain.Phase

	// notifyMu keeps listeners seeing summaries in transition order.
	notifyMu  sync.Mutex
	listeners []func(Summary)
}

func NewAggregator() *Aggregator {
	return &Aggregator{phases: make(map[domain.Key]domain.Phase)}
}

// OnChange registers fn to run after every transition with the new summary.
// Register before the engine starts.
func (a *Aggregator) OnChange(fn func(Summary)) {
	a.listeners = append(a.listeners, fn)
}

func (a *Aggregator) Observe(_ context.Context, t domain.Transition) {
	a.notifyMu.Lock()
	defer a.notifyMu.Unlock()

	a.mu.Lock()
	a.phases[t.Key] = t.Phase
	s := a.summaryLocked()
	a.mu.Unlock()

	for _, fn := range a.listeners {
		fn(s)
	}
}

// IsAllHealthy reports whether no check is currently in Failure.
func (a *Aggregator) IsAllHealthy() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	for _, p := range a.phases {
		if p == domain.PhaseFailure {
			return false
		}
	}
	return true
}

// Indicator is loading while any check is loading, otherwise success or failing.
func (a *Aggregator) Indicator() Indicator {
	return a.Summary().Indicator
}

func (a *Aggregator) Summary() Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.summaryLocked()
}

func (a *Aggregator) summaryLocked() Summary {
	s := Summary{Total: len(a.phases), Failing: []domain.Key{}}
	for k, p := range a.phases {
		switch p {
		case domain.PhaseLoading:
			s.Loading++
		case domain.PhaseFailure:
			s.Failing = append(s.Failing, k)
		}
	}
	sort.Slice(s.Failing, func(i, j int) bool { return s.Failing[i].String() < s.Failing[j].String() })

	s.Healthy = len(s.Failing) == 0
	switch {
	case s.Loading > 0:
		s.Indicator = IndicatorLoading
	case s.Healthy:
		s.Indicator = IndicatorSuccess
	default:
		s.Indicator = IndicatorFailing
	}
	return s
}
