package wasi_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/govm-net/counter/contract/counter"
	"github.com/govm-net/counter/types"
	"github.com/govm-net/counter/wasi"
	"github.com/govm-net/counter/wasm"
)

type stop struct {
	ret  *types.CLValue
	code types.ApiError
}

func (s *stop) Error() string {
	if s.ret != nil {
		return "ret " + s.ret.String()
	}
	return s.code.Error()
}

// fakeHost keeps a single set of named keys and a map of slots.
type fakeHost struct {
	namedKeys   types.NamedKeys
	slots       map[types.Hash]types.CLValue
	next        byte
	entryPoints types.EntryPoints
	contracts   int
}

func newFakeHost() *fakeHost {
	return &fakeHost{namedKeys: types.NamedKeys{}, slots: make(map[types.Hash]types.CLValue)}
}

func (h *fakeHost) GetKey(name string) (types.Key, bool) {
	k, ok := h.namedKeys[name]
	return k, ok
}

func (h *fakeHost) HasKey(name string) bool {
	_, ok := h.namedKeys[name]
	return ok
}

func (h *fakeHost) PutKey(name string, key types.Key) { h.namedKeys[name] = key }

func (h *fakeHost) GetNamedArg(string) (types.CLValue, bool) { return types.CLValue{}, false }

func (h *fakeHost) NewURef(value types.CLValue) types.URef {
	h.next++
	addr := types.Hash{h.next}
	h.slots[addr] = value
	return types.NewURef(addr, types.AccessReadAddWrite)
}

func (h *fakeHost) Read(uref types.URef) (types.CLValue, bool, error) {
	v, ok := h.slots[uref.Addr]
	return v, ok, nil
}

func (h *fakeHost) Write(uref types.URef, value types.CLValue) { h.slots[uref.Addr] = value }

func (h *fakeHost) Add(uref types.URef, delta types.CLValue) {
	sum, err := h.slots[uref.Addr].WrappingAdd(delta)
	if err != nil {
		panic(&stop{code: types.ErrCLTypeMismatch})
	}
	h.slots[uref.Addr] = sum
}

func (h *fakeHost) NewContract(eps types.EntryPoints, nks types.NamedKeys, pkgName, accessName string) (types.ContractHash, uint32) {
	h.contracts++
	h.entryPoints = eps
	for name, key := range nks {
		h.namedKeys[name] = key
	}
	h.namedKeys[pkgName] = types.HashKey(types.Hash{0xee})
	h.namedKeys[accessName] = types.URefKey(h.NewURef(types.Unit()))
	return types.ContractHash{0xcc}, 1
}

func (h *fakeHost) AddContractVersion(types.ContractPackageHash, types.EntryPoints, types.NamedKeys) (types.ContractHash, uint32) {
	panic(&stop{code: types.ErrPermissionDenied})
}

func (h *fakeHost) Ret(value types.CLValue)    { panic(&stop{ret: &value}) }
func (h *fakeHost) Revert(code types.ApiError) { panic(&stop{code: code}) }
func (h *fakeHost) Caller() types.AccountHash  { return types.AccountHash{} }
func (h *fakeHost) BlockTime() uint64          { return 0 }

func newExecutor(t *testing.T) *wasi.Executor {
	e := wasi.NewExecutor(zaptest.NewLogger(t), 16)
	t.Cleanup(func() { e.Close(context.Background()) })
	return e
}

func TestInvokeCounter(t *testing.T) {
	ctx := context.Background()
	code, err := counter.WasmModule()
	require.NoError(t, err)
	e := newExecutor(t)
	host := newFakeHost()

	require.NoError(t, e.Invoke(ctx, code, types.InstallEntryPoint, host))
	assert.Equal(t, 1, host.contracts)
	assert.Equal(t, counter.EntryPoints().Names(), host.entryPoints.Names())
	for _, name := range []string{counter.CountKey, counter.ContractKey, counter.VersionKey, counter.PackageName, counter.AccessURefName} {
		assert.True(t, host.HasKey(name), name)
	}
	assert.Equal(t, types.ContractKey(types.ContractHash{0xcc}), host.namedKeys[counter.ContractKey])

	versionKey := host.namedKeys[counter.VersionKey]
	version, _, _ := host.Read(types.NewURef(versionKey.Addr, types.AccessRead))
	assert.Equal(t, types.U32(1), version)

	for _, ep := range []string{counter.EntryPointInc, counter.EntryPointInc, counter.EntryPointDec, counter.EntryPointInc} {
		require.NoError(t, e.Invoke(ctx, code, ep, host), ep)
	}

	err = e.Invoke(ctx, code, counter.EntryPointGet, host)
	var s *stop
	require.True(t, errors.As(err, &s), fmt.Sprint(err))
	require.NotNil(t, s.ret)
	assert.Equal(t, types.I64(2), *s.ret)

	require.NoError(t, e.Invoke(ctx, code, counter.EntryPointReset, host))
	err = e.Invoke(ctx, code, counter.EntryPointGet, host)
	require.True(t, errors.As(err, &s))
	assert.Equal(t, types.I64(0), *s.ret)
}

func TestInvokeRevert(t *testing.T) {
	code, err := counter.WasmModule()
	require.NoError(t, err)

	err = newExecutor(t).Invoke(context.Background(), code, counter.EntryPointInc, newFakeHost())
	var s *stop
	require.True(t, errors.As(err, &s), fmt.Sprint(err))
	assert.Nil(t, s.ret)
	assert.Equal(t, types.ErrMissingKey, s.code)
}

func TestInvokeCountNotURef(t *testing.T) {
	code, err := counter.WasmModule()
	require.NoError(t, err)
	host := newFakeHost()
	host.PutKey(counter.CountKey, types.HashKey(types.Hash{1}))

	err = newExecutor(t).Invoke(context.Background(), code, counter.EntryPointDec, host)
	var s *stop
	require.True(t, errors.As(err, &s), fmt.Sprint(err))
	assert.Equal(t, types.ErrUnexpectedKeyVariant, s.code)
}

func TestInvokeErrors(t *testing.T) {
	ctx := context.Background()
	e := newExecutor(t)
	code, err := counter.WasmModule()
	require.NoError(t, err)

	err = e.Invoke(ctx, code, "counter_double", newFakeHost())
	assert.ErrorIs(t, err, wasi.ErrNoSuchExport)

	err = e.Invoke(ctx, []byte("\x00asm\x02"), "call", newFakeHost())
	assert.ErrorIs(t, err, wasi.ErrInvalidModule)

	m := wasm.NewModule(1, 0)
	noMemory := m.Func(wasm.FuncType{}, nil, wasm.NewCode())
	m.Export("call", noMemory)
	withParams := m.Func(wasm.FuncType{Params: []wasm.ValueType{wasm.I32}}, nil, wasm.NewCode())
	m.Export("takes_args", withParams)
	bare, err := m.Encode()
	require.NoError(t, err)

	err = e.Invoke(ctx, bare, "takes_args", newFakeHost())
	assert.ErrorIs(t, err, wasi.ErrBadEntryPoint)
	err = e.Invoke(ctx, bare, "call", newFakeHost())
	assert.ErrorIs(t, err, wasi.ErrMissingMemory)

	exports, err := e.Exports(ctx, bare)
	require.NoError(t, err)
	assert.Equal(t, []string{"call"}, exports)

	assert.True(t, wasi.IsWasm(code))
	assert.False(t, wasi.IsWasm([]byte("gonative")))
}
