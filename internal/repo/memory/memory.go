package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/hamed0406/checkboard/internal/domain"
)

type Store struct {
	mu     sync.RWMutex
	states map[domain.Key]domain.State
}

func New() *Store {
	return &Store{states: make(map[domain.Key]domain.State)}
}

func (m *Store) Save(ctx context.Context, st domain.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[st.Key] = st
	return nil
}

func (m *Store) Get(ctx context.Context, key domain.Key) (*domain.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.states[key]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (m *Store) List(ctx context.Context) ([]domain.State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.State, 0, len(m.states))
	for _, st := range m.states {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key.String() < out[j].Key.String() })
	return out, nil
}
