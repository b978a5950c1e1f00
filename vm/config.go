package vm

import (
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/govm-net/counter/state"
)

// Config represents engine configuration
type Config struct {
	// Global state backend and its parameters
	StateType   state.Type
	StateParams map[string]any

	// CodeDir, when set, keeps module bytes in a code repository instead of
	// global state
	CodeDir string

	MaxModuleSize  int    // Maximum size of session module bytes
	MaxMemoryPages uint32 // Linear memory limit of wasm instances
	ProtocolMajor  uint32 // Protocol major version new contract versions are filed under

	// ExecutionTimeout bounds a single wasm execution; zero disables it. Native
	// contracts are not preempted.
	ExecutionTimeout time.Duration
}

// DefaultConfig returns a configuration for an in-memory engine.
func DefaultConfig() *Config {
	return &Config{
		StateType:      state.MemoryType,
		StateParams:    map[string]any{},
		MaxModuleSize:  1 << 20,
		MaxMemoryPages: 16,
		ProtocolMajor:  1,
	}
}

func validateConfig(config *Config) error {
	if config == nil {
		return errors.New("config is nil")
	}
	if config.MaxModuleSize <= 0 {
		return errors.Errorf("invalid max module size: %d", config.MaxModuleSize)
	}
	if config.ExecutionTimeout < 0 {
		return errors.Errorf("invalid execution timeout: %s", config.ExecutionTimeout)
	}
	if config.ProtocolMajor == 0 {
		return errors.New("protocol major version must be positive")
	}
	return nil
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithRegisterer registers the engine metrics with r instead of a private registry.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(e *Engine) {
		e.registerer = r
	}
}

// WithState runs the engine on gs instead of opening the configured backend.
func WithState(gs state.GlobalState) Option {
	return func(e *Engine) {
		e.state = gs
	}
}
