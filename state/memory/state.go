// Package memory is the in-memory global state backend.
package memory

import (
	"context"
	"sync"

	"github.com/govm-net/counter/state"
	"github.com/govm-net/counter/types"
)

func init() {
	if err := state.Register(state.MemoryType, New); err != nil {
		panic(err)
	}
}

// State keeps global state in a map.
type State struct {
	mu     sync.RWMutex
	values map[string]state.StoredValue
}

// New creates an empty state. It takes no parameters.
func New(map[string]any) (state.GlobalState, error) {
	return NewState(), nil
}

func NewState() *State {
	return &State{values: make(map[string]state.StoredValue)}
}

func (s *State) Get(_ context.Context, key types.Key) (state.StoredValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key.StateID()]
	if !ok {
		return state.StoredValue{}, state.ErrNotFound
	}
	return v.Clone(), nil
}

func (s *State) Apply(_ context.Context, effects state.Effects) error {
	for _, w := range effects {
		if w.Value.Kind() == "" {
			return state.ErrEmptyValue
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range effects {
		s.values[w.Key.StateID()] = w.Value.Clone()
	}
	return nil
}

// Len returns the number of stored values.
func (s *State) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}

func (s *State) Close() error {
	return nil
}
