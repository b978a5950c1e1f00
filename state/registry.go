package state

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// Type names a global state backend.
type Type string

const (
	// MemoryType keeps state in process memory.
	MemoryType Type = "memory"
	// DBType keeps state in an SQLite database.
	DBType Type = "db"
)

// Constructor opens a backend from its parameters.
type Constructor func(params map[string]any) (GlobalState, error)

// Registry tracks the available backends.
type Registry interface {
	// Register adds a backend
	Register(t Type, constructor Constructor) error
	// SetDefault sets the backend used when none is named
	SetDefault(t Type) error
	// Open returns a new instance of the named backend
	Open(t Type, params map[string]any) (GlobalState, error)
	// DefaultType returns the backend used when none is named
	DefaultType() Type
	// ListRegistered returns the registered backends
	ListRegistered() []Type
}

type registry struct {
	mu           sync.RWMutex
	constructors map[Type]Constructor
	defaultType  Type
}

var defaultRegistry Registry = &registry{constructors: make(map[Type]Constructor)}

// GetRegistry returns the global Registry instance
func GetRegistry() Registry {
	return defaultRegistry
}

func (r *registry) Register(t Type, constructor Constructor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[t]; exists {
		return errors.Errorf("state type %s already registered", t)
	}
	r.constructors[t] = constructor
	return nil
}

func (r *registry) SetDefault(t Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.constructors[t]; !exists {
		return errors.Errorf("state type %s not registered", t)
	}
	r.defaultType = t
	return nil
}

func (r *registry) Open(t Type, params map[string]any) (GlobalState, error) {
	if t == "" {
		t = r.DefaultType()
	}
	r.mu.RLock()
	constructor, exists := r.constructors[t]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.Errorf("state type %s not found", t)
	}
	gs, err := constructor(params)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s state", t)
	}
	return gs, nil
}

func (r *registry) DefaultType() Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultType == "" {
		return MemoryType
	}
	return r.defaultType
}

func (r *registry) ListRegistered() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Type, 0, len(r.constructors))
	for t := range r.constructors {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Package level functions that delegate to the global registry

// Register adds a backend to the global registry.
func Register(t Type, constructor Constructor) error {
	return GetRegistry().Register(t, constructor)
}

// SetDefault sets the default backend of the global registry.
func SetDefault(t Type) error {
	return GetRegistry().SetDefault(t)
}

// Open opens a backend from the global registry. An empty type opens the default.
func Open(t Type, params map[string]any) (GlobalState, error) {
	return GetRegistry().Open(t, params)
}

// ListRegistered returns the backends of the global registry.
func ListRegistered() []Type {
	return GetRegistry().ListRegistered()
}
