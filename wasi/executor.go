// Package wasi runs WebAssembly contracts with wazero.
//
// A contract imports its host functions from the "env" module and exports its
// entry points as functions without parameters or results, plus its memory.
// Every invocation gets a fresh module instance; compiled code is shared through a
// compilation cache.
package wasi

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/types"
)

var (
	ErrNoSuchExport  = errors.New("entry point not exported by module")
	ErrBadEntryPoint = errors.New("entry point must take no parameters and return nothing")
	ErrMissingMemory = errors.New("module does not export memory")
	ErrInvalidModule = errors.New("invalid wasm module")
)

var wasmMagic = []byte{0x00, 0x61, 0x73, 0x6d}

// IsWasm reports whether code starts with the WebAssembly magic.
func IsWasm(code []byte) bool {
	return bytes.HasPrefix(code, wasmMagic)
}

// Executor invokes WASM entry points against a core.Context.
type Executor struct {
	cache       wazero.CompilationCache
	memoryPages uint32
	logger      *zap.Logger
}

// NewExecutor creates an executor. memoryPages caps the linear memory of every
// instance; zero keeps the wazero default.
func NewExecutor(logger *zap.Logger, memoryPages uint32) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		cache:       wazero.NewCompilationCache(),
		memoryPages: memoryPages,
		logger:      logger,
	}
}

func (e *Executor) newRuntime(ctx context.Context) wazero.Runtime {
	config := wazero.NewRuntimeConfig().
		WithCompilationCache(e.cache).
		WithCloseOnContextDone(true)
	if e.memoryPages > 0 {
		config = config.WithMemoryLimitPages(e.memoryPages)
	}
	return wazero.NewRuntimeWithConfig(ctx, config)
}

// Exports lists the entry points code exports.
func (e *Executor) Exports(ctx context.Context, code []byte) ([]string, error) {
	r := e.newRuntime(ctx)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, code)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidModule, err.Error())
	}
	var out []string
	for name, def := range compiled.ExportedFunctions() {
		if len(def.ParamTypes()) == 0 && len(def.ResultTypes()) == 0 {
			out = append(out, name)
		}
	}
	return out, nil
}

// Invoke runs entryPoint of code. Host functions act on host. A call that ends
// through host.Ret or host.Revert surfaces here as the error host panicked with,
// wrapped by wazero; callers unwrap it with errors.As.
func (e *Executor) Invoke(ctx context.Context, code []byte, entryPoint string, host core.Context) error {
	r := e.newRuntime(ctx)
	defer r.Close(ctx)

	compiled, err := r.CompileModule(ctx, code)
	if err != nil {
		return errors.Wrap(ErrInvalidModule, err.Error())
	}
	def, ok := compiled.ExportedFunctions()[entryPoint]
	if !ok {
		return errors.Wrapf(ErrNoSuchExport, "%q", entryPoint)
	}
	if len(def.ParamTypes()) != 0 || len(def.ResultTypes()) != 0 {
		return errors.Wrapf(ErrBadEntryPoint, "%q", entryPoint)
	}
	if _, ok := compiled.ExportedMemories()[types.MemoryExport]; !ok {
		return ErrMissingMemory
	}

	if _, err := newHostModule(r, host).Instantiate(ctx); err != nil {
		return errors.Wrap(err, "instantiate host module")
	}
	mod, err := r.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().
		WithName("contract").
		WithStartFunctions())
	if err != nil {
		return errors.Wrap(err, "instantiate module")
	}
	defer mod.Close(ctx)

	e.logger.Debug("invoking wasm entry point", zap.String("entry_point", entryPoint), zap.Int("code_size", len(code)))
	_, err = mod.ExportedFunction(entryPoint).Call(ctx)
	return err
}

// Close releases compiled code.
func (e *Executor) Close(ctx context.Context) error {
	return e.cache.Close(ctx)
}

// newHostModule binds the contract ABI to host.
func newHostModule(r wazero.Runtime, host core.Context) wazero.HostModuleBuilder {
	builder := r.NewHostModuleBuilder(types.HostModule)

	builder.NewFunctionBuilder().
		WithParameterNames("name_ptr", "name_len", "out_ptr").
		WithFunc(func(_ context.Context, m api.Module, namePtr, nameLen, outPtr uint32) int32 {
			name, ok := read(m, namePtr, nameLen)
			if !ok {
				return status(types.ErrOutOfMemory)
			}
			key, found := host.GetKey(string(name))
			if !found {
				return status(types.ErrMissingKey)
			}
			if !m.Memory().Write(outPtr, key.ToBytes()) {
				return status(types.ErrOutOfMemory)
			}
			return 0
		}).
		Export(types.HostGetKey)

	builder.NewFunctionBuilder().
		WithParameterNames("value_ptr", "value_len", "out_ptr").
		WithFunc(func(_ context.Context, m api.Module, valuePtr, valueLen, outPtr uint32) int32 {
			value, code := readValue(m, valuePtr, valueLen)
			if code != noError {
				return status(code)
			}
			uref := host.NewURef(value)
			out := append(uref.Addr[:], byte(uref.Rights))
			if !m.Memory().Write(outPtr, out) {
				return status(types.ErrOutOfMemory)
			}
			return 0
		}).
		Export(types.HostNewURef)

	builder.NewFunctionBuilder().
		WithParameterNames("key_ptr", "out_ptr", "out_cap").
		WithFunc(func(_ context.Context, m api.Module, keyPtr, outPtr, outCap uint32) int32 {
			uref, code := readURef(m, keyPtr)
			if code != noError {
				return -status(code)
			}
			value, found, err := host.Read(uref)
			if err != nil {
				return -status(types.ErrRead)
			}
			if !found {
				return -status(types.ErrValueNotFound)
			}
			out := value.ToBytes()
			if uint32(len(out)) > outCap || !m.Memory().Write(outPtr, out) {
				return -status(types.ErrOutOfMemory)
			}
			return int32(len(out))
		}).
		Export(types.HostReadValue)

	storage := func(apply func(types.URef, types.CLValue)) func(context.Context, api.Module, uint32, uint32, uint32) int32 {
		return func(_ context.Context, m api.Module, keyPtr, valuePtr, valueLen uint32) int32 {
			uref, code := readURef(m, keyPtr)
			if code != noError {
				return status(code)
			}
			value, code := readValue(m, valuePtr, valueLen)
			if code != noError {
				return status(code)
			}
			apply(uref, value)
			return 0
		}
	}
	builder.NewFunctionBuilder().
		WithParameterNames("key_ptr", "value_ptr", "value_len").
		WithFunc(storage(host.Write)).
		Export(types.HostWrite)
	builder.NewFunctionBuilder().
		WithParameterNames("key_ptr", "value_ptr", "value_len").
		WithFunc(storage(host.Add)).
		Export(types.HostAdd)

	builder.NewFunctionBuilder().
		WithParameterNames("name_ptr", "name_len", "key_ptr").
		WithFunc(func(_ context.Context, m api.Module, namePtr, nameLen, keyPtr uint32) int32 {
			name, ok := read(m, namePtr, nameLen)
			if !ok {
				return status(types.ErrOutOfMemory)
			}
			key, code := readKey(m, keyPtr)
			if code != noError {
				return status(code)
			}
			host.PutKey(string(name), key)
			return 0
		}).
		Export(types.HostPutKey)

	builder.NewFunctionBuilder().
		WithParameterNames("entry_points_ptr", "entry_points_len", "named_keys_ptr", "named_keys_len",
			"package_name_ptr", "package_name_len", "access_name_ptr", "access_name_len",
			"hash_out", "version_out").
		WithFunc(func(_ context.Context, m api.Module,
			epPtr, epLen, nkPtr, nkLen, pkgPtr, pkgLen, accessPtr, accessLen, hashOut, versionOut uint32,
		) int32 {
			args, code := readContractArgs(m, epPtr, epLen, nkPtr, nkLen)
			if code != noError {
				return status(code)
			}
			pkgName, ok := read(m, pkgPtr, pkgLen)
			if !ok {
				return status(types.ErrOutOfMemory)
			}
			accessName, ok := read(m, accessPtr, accessLen)
			if !ok {
				return status(types.ErrOutOfMemory)
			}
			hash, version := host.NewContract(args.entryPoints, args.namedKeys, string(pkgName), string(accessName))
			if !m.Memory().Write(hashOut, hash[:]) || !m.Memory().WriteUint32Le(versionOut, version) {
				return status(types.ErrOutOfMemory)
			}
			return 0
		}).
		Export(types.HostNewContract)

	builder.NewFunctionBuilder().
		WithParameterNames("value_ptr", "value_len").
		WithFunc(func(_ context.Context, m api.Module, valuePtr, valueLen uint32) {
			value, code := readValue(m, valuePtr, valueLen)
			if code != noError {
				host.Revert(code)
			}
			host.Ret(value)
		}).
		Export(types.HostRet)

	builder.NewFunctionBuilder().
		WithParameterNames("code").
		WithFunc(func(_ context.Context, _ api.Module, code uint32) {
			host.Revert(types.ApiError(code))
		}).
		Export(types.HostRevert)

	return builder
}
