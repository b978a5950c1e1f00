// Package vm is the execution engine: it runs session code and stored contract
// entry points against global state, one request at a time.
package vm

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/govm-net/counter/native"
	"github.com/govm-net/counter/repository"
	"github.com/govm-net/counter/state"
	_ "github.com/govm-net/counter/state/memory"
	"github.com/govm-net/counter/types"
	"github.com/govm-net/counter/wasi"
)

// Engine is responsible for contract deployment and execution
type Engine struct {
	mu sync.Mutex

	config      *Config
	state       state.GlobalState
	ownsState   bool
	executor    *wasi.Executor
	codeManager *repository.Manager // nil unless Config.CodeDir is set

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	metrics    *metrics
	logger     *zap.Logger

	// nonce makes derived deploy hashes unique
	nonce uint64
}

// NewEngine creates a new engine
func NewEngine(config *Config, opts ...Option) (*Engine, error) {
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	e := &Engine{config: config}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}

	if e.registerer == nil {
		registry := prometheus.NewRegistry()
		e.registerer = registry
		e.gatherer = registry
	} else if g, ok := e.registerer.(prometheus.Gatherer); ok {
		e.gatherer = g
	}
	m, err := newMetrics(e.registerer)
	if err != nil {
		return nil, errors.Wrap(err, "failed to register metrics")
	}
	e.metrics = m

	if e.state == nil {
		gs, err := state.Open(config.StateType, config.StateParams)
		if err != nil {
			return nil, errors.Wrap(err, "failed to open global state")
		}
		e.state = gs
		e.ownsState = true
	}

	if config.CodeDir != "" {
		codeManager, err := repository.NewManager(config.CodeDir, e.logger.Named("repository"))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create code manager")
		}
		e.codeManager = codeManager
	}

	e.executor = wasi.NewExecutor(e.logger.Named("wasi"), config.MaxMemoryPages)
	return e, nil
}

// Gatherer exposes the engine metrics. It is nil when the registerer passed with
// WithRegisterer cannot gather.
func (e *Engine) Gatherer() prometheus.Gatherer {
	return e.gatherer
}

// Execute runs req and returns its outcome without committing it. Failures of the
// execution itself are reported in ExecutionResult.Err; the error return is for
// requests that could not be attempted.
func (e *Engine) Execute(ctx context.Context, req *ExecuteRequest) (*ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.execute(ctx, req)
}

// Commit applies effects to global state.
func (e *Engine) Commit(ctx context.Context, effects state.Effects) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commit(ctx, effects)
}

// ExecuteAndCommit runs req and commits its effects if it succeeded.
func (e *Engine) ExecuteAndCommit(ctx context.Context, req *ExecuteRequest) (*ExecutionResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	result, err := e.execute(ctx, req)
	if err != nil {
		return nil, err
	}
	if result.Success() {
		if err := e.commit(ctx, result.Effects); err != nil {
			return result, err
		}
	}
	return result, nil
}

func (e *Engine) execute(ctx context.Context, req *ExecuteRequest) (*ExecutionResult, error) {
	if req == nil {
		return nil, errors.New("execute request is nil")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	result := e.run(ctx, req)
	result.Elapsed = time.Since(start)
	e.metrics.observe(req.Kind, result)

	fields := []zap.Field{
		zap.Stringer("kind", req.Kind),
		zap.String("entry_point", req.EntryPoint),
		zap.Stringer("caller", req.Caller),
		zap.Duration("elapsed", result.Elapsed),
	}
	if result.Err != nil {
		e.logger.Debug("execution failed", append(fields, zap.Error(result.Err))...)
	} else {
		e.logger.Debug("execution succeeded", append(fields, zap.Int("writes", len(result.Effects)))...)
	}
	return result, nil
}

func (e *Engine) run(ctx context.Context, req *ExecuteRequest) *ExecutionResult {
	if e.config.ExecutionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.ExecutionTimeout)
		defer cancel()
	}
	tc := state.NewTrackingCopy(e.state)

	rt, err := e.prepare(ctx, tc, req)
	if err != nil {
		return &ExecutionResult{Err: err}
	}
	entryPoint := req.EntryPoint
	if req.Kind == KindSession && entryPoint == "" {
		entryPoint = types.InstallEntryPoint
	}

	h, err := e.invoke(ctx, rt, entryPoint)
	switch {
	case err != nil:
		return &ExecutionResult{Err: err}
	case h != nil && h.err != nil:
		return &ExecutionResult{Err: h.err}
	case h != nil && h.reverted:
		return &ExecutionResult{Err: h.code}
	}

	result := &ExecutionResult{Effects: tc.Effects()}
	if h != nil {
		result.Ret = h.ret
	}
	return result
}

// prepare resolves what req runs and builds the runtime for it.
func (e *Engine) prepare(ctx context.Context, tc *state.TrackingCopy, req *ExecuteRequest) (*runtime, error) {
	account, err := getAccount(ctx, tc, req.Caller)
	if err != nil {
		return nil, err
	}

	rt := &runtime{
		ctx:       ctx,
		tc:        tc,
		addrGen:   types.NewAddressGenerator(e.deployHash(req)),
		major:     e.config.ProtocolMajor,
		caller:    req.Caller,
		blockTime: req.BlockTime,
		args:      req.Args,
		known:     make(map[types.Hash]types.AccessRights),
	}

	if req.Kind == KindSession {
		switch {
		case len(req.ModuleBytes) == 0:
			return nil, ErrEmptyModule
		case len(req.ModuleBytes) > e.config.MaxModuleSize:
			return nil, errors.Wrapf(ErrModuleTooLarge, "%d > %d bytes", len(req.ModuleBytes), e.config.MaxModuleSize)
		}
		rt.module = req.ModuleBytes
	} else {
		hash, err := e.resolveContract(ctx, tc, account, req)
		if err != nil {
			return nil, err
		}
		contract, err := getContract(ctx, tc, hash)
		if err != nil {
			return nil, err
		}
		ep, ok := contract.EntryPoints.Get(req.EntryPoint)
		if !ok {
			return nil, errors.Wrapf(ErrNoSuchMethod, "%q", req.EntryPoint)
		}
		if err := checkArgs(ep, req.Args); err != nil {
			return nil, err
		}
		module, err := e.loadModule(ctx, tc, contract.Wasm)
		if err != nil {
			return nil, err
		}
		rt.entryPoint = &ep
		rt.module = module
		if ep.Type == types.EntryPointContract {
			rt.contextKey = types.ContractKey(hash)
			rt.namedKeys = contract.NamedKeys.Clone()
		}
	}

	if rt.namedKeys == nil {
		rt.contextKey = types.AccountKey(req.Caller)
		rt.namedKeys = account.NamedKeys.Clone()
	}
	rt.grantNamedKeys(rt.namedKeys)
	return rt, nil
}

// deployHash returns the seed of the addresses an execution creates.
func (e *Engine) deployHash(req *ExecuteRequest) types.Hash {
	if req.DeployHash != types.ZeroHash {
		return req.DeployHash
	}
	e.nonce++
	var payload []byte
	switch req.Kind {
	case KindSession:
		payload = req.ModuleBytes
	case KindStoredByHash:
		payload = req.ContractHash[:]
	case KindVersionedByHash:
		payload = req.PackageHash[:]
	default:
		payload = []byte(req.Name)
	}
	return types.Blake2b(
		req.Caller[:],
		[]byte{byte(req.Kind)},
		payload,
		[]byte(req.EntryPoint),
		binary.LittleEndian.AppendUint64(nil, e.nonce),
	)
}

func (e *Engine) resolveContract(ctx context.Context, r state.Reader, account *types.Account, req *ExecuteRequest) (types.ContractHash, error) {
	switch req.Kind {
	case KindStoredByHash:
		return req.ContractHash, nil
	case KindStoredByName:
		hash, err := namedHash(account, req.Name)
		if err != nil {
			return types.ContractHash{}, errors.Wrap(ErrContractNotFound, err.Error())
		}
		return types.ContractHash(hash), nil
	case KindVersionedByHash:
		return e.resolveVersion(ctx, r, req.PackageHash, req.Version)
	case KindVersionedByName:
		hash, err := namedHash(account, req.Name)
		if err != nil {
			return types.ContractHash{}, errors.Wrap(ErrPackageNotFound, err.Error())
		}
		return e.resolveVersion(ctx, r, types.ContractPackageHash(hash), req.Version)
	default:
		return types.ContractHash{}, errors.Errorf("unknown request kind %d", req.Kind)
	}
}

func namedHash(account *types.Account, name string) (types.Hash, error) {
	key, ok := account.NamedKeys[name]
	if !ok {
		return types.Hash{}, errors.Errorf("no named key %q", name)
	}
	hash, ok := key.IntoHash()
	if !ok {
		return types.Hash{}, errors.Errorf("named key %q is %s, not a hash", name, key)
	}
	return hash, nil
}

// resolveVersion picks version of the package, or its latest version under the
// engine protocol major when version is nil.
func (e *Engine) resolveVersion(ctx context.Context, r state.Reader, hash types.ContractPackageHash, version *uint32) (types.ContractHash, error) {
	pkg, err := getContractPackage(ctx, r, hash)
	if err != nil {
		return types.ContractHash{}, err
	}
	var (
		cv types.ContractVersion
		ok bool
	)
	if version == nil {
		cv, ok = pkg.Latest(e.config.ProtocolMajor)
	} else {
		cv, ok = pkg.Lookup(e.config.ProtocolMajor, *version)
	}
	if !ok {
		return types.ContractHash{}, errors.Wrapf(ErrVersionNotFound, "package %s", hash)
	}
	return cv.Contract, nil
}

// checkArgs verifies the declared arguments of ep are present with their types.
func checkArgs(ep types.EntryPoint, args types.RuntimeArgs) error {
	for _, param := range ep.Args {
		value, ok := args.Get(param.Name)
		if !ok {
			return types.ErrMissingArgument
		}
		if value.Type != param.Type {
			return types.ErrInvalidArgument
		}
	}
	return nil
}

func (e *Engine) loadModule(ctx context.Context, r state.Reader, hash types.ContractWasmHash) ([]byte, error) {
	v, err := r.Get(ctx, types.ContractWasmKey(hash))
	if errors.Is(err, state.ErrNotFound) {
		return nil, errors.Wrapf(ErrContractNotFound, "wasm %s", hash)
	}
	if err != nil {
		return nil, err
	}
	if v.ContractWasm == nil {
		return nil, errors.Errorf("wasm %s holds %s", hash, v.Kind())
	}
	if !v.ContractWasm.Stored {
		return v.ContractWasm.Bytes, nil
	}
	if e.codeManager == nil {
		return nil, ErrCodeStoreDisabled
	}
	code, err := e.codeManager.GetCode(hash)
	if err != nil {
		return nil, err
	}
	return code.Code, nil
}

// invoke runs entryPoint of the module held by rt.
func (e *Engine) invoke(ctx context.Context, rt *runtime, entryPoint string) (h *halt, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			if hh, ok := rec.(*halt); ok {
				h, err = hh, nil
				return
			}
			h, err = nil, errors.Wrapf(ErrContractPanic, "%v", rec)
		}
	}()

	switch {
	case native.IsNative(rt.module):
		module, loadErr := native.Load(rt.module)
		if loadErr != nil {
			return nil, errors.Wrap(ErrUnknownModule, loadErr.Error())
		}
		if !module.Has(entryPoint) {
			return nil, errors.Wrapf(ErrNoSuchMethod, "%s.%s", module.Name(), entryPoint)
		}
		return nil, module.Invoke(rt, entryPoint)
	case wasi.IsWasm(rt.module):
		invokeErr := e.executor.Invoke(ctx, rt.module, entryPoint, rt)
		var hh *halt
		switch {
		case invokeErr == nil:
			return nil, nil
		case errors.As(invokeErr, &hh):
			return hh, nil
		case errors.Is(invokeErr, wasi.ErrNoSuchExport):
			return nil, errors.Wrap(ErrNoSuchMethod, invokeErr.Error())
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, errors.Wrap(ErrExecutionTimeout, invokeErr.Error())
		default:
			return nil, invokeErr
		}
	default:
		return nil, ErrUnknownModule
	}
}

func (e *Engine) commit(ctx context.Context, effects state.Effects) error {
	if e.codeManager != nil {
		stored, err := e.storeCode(effects)
		if err != nil {
			return errors.Wrap(err, "failed to store contract code")
		}
		effects = stored
	}
	if err := e.state.Apply(ctx, effects); err != nil {
		return errors.Wrap(err, "failed to apply effects")
	}
	e.metrics.commits.Inc()
	e.metrics.writes.Add(float64(len(effects)))
	return nil
}

// storeCode moves module bytes out of effects into the code repository.
func (e *Engine) storeCode(effects state.Effects) (state.Effects, error) {
	out := make(state.Effects, len(effects))
	for i, w := range effects {
		out[i] = w
		wasm := w.Value.ContractWasm
		if wasm == nil || wasm.Stored {
			continue
		}
		hash := types.ContractWasmHash(w.Key.Addr)
		if err := e.codeManager.RegisterCode(hash, wasm.Bytes); err != nil {
			return nil, err
		}
		out[i].Value = state.NewContractWasm(&types.ContractWasm{Stored: true})
	}
	return out, nil
}

// Close releases the executor and, unless it was passed in with WithState, the
// global state.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	err := e.executor.Close(context.Background())
	if e.ownsState {
		if closeErr := e.state.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}
	return err
}
