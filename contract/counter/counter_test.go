package counter_test

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/govm-net/counter/contract/counter"
	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/native"
	"github.com/govm-net/counter/state"
	"github.com/govm-net/counter/state/memory"
	"github.com/govm-net/counter/types"
	"github.com/govm-net/counter/vm"
	"github.com/govm-net/counter/vm/enginetest"
)

type form struct {
	name string
	code func(t *testing.T) []byte
}

var forms = []form{
	{name: "native", code: func(*testing.T) []byte { return counter.ModuleBytes() }},
	{name: "wasm", code: func(t *testing.T) []byte {
		code, err := counter.WasmModule()
		require.NoError(t, err)
		return code
	}},
}

func forEachForm(t *testing.T, fn func(t *testing.T, code []byte)) {
	for _, f := range forms {
		t.Run(f.name, func(t *testing.T) {
			fn(t, f.code(t))
		})
	}
}

var account = types.AccountKey(vm.DefaultAccountAddr)

func deploy(t *testing.T, code []byte, opts ...vm.Option) *enginetest.Builder {
	b := enginetest.New(t, opts...).RunGenesis(vm.ProductionGenesisRequest())
	b.Exec(vm.NewStandardRequest(vm.DefaultAccountAddr, code, nil)).ExpectSuccess().Commit()
	return b
}

func call(b *enginetest.Builder, entryPoint string) *enginetest.Builder {
	return b.Exec(vm.NewContractCallByName(vm.DefaultAccountAddr, counter.ContractKey, entryPoint, nil))
}

func count(b *enginetest.Builder) int64 {
	return b.QueryInt64(account, counter.ContractKey, counter.CountKey)
}

func TestDeploy(t *testing.T) {
	forEachForm(t, func(t *testing.T, code []byte) {
		b := deploy(t, code)

		assert.Equal(t, uint32(1), b.QueryUint32(account, counter.VersionKey))
		assert.Equal(t, int64(0), count(b))

		named := b.GetExpectedAccount(vm.DefaultAccountAddr).NamedKeys
		for _, name := range []string{counter.ContractKey, counter.VersionKey, counter.PackageName, counter.AccessURefName} {
			assert.Contains(t, named, name)
		}

		contractHash, ok := named[counter.ContractKey].IntoHash()
		require.True(t, ok)
		contract := b.GetContract(types.ContractHash(contractHash))
		assert.ElementsMatch(t,
			[]string{counter.EntryPointInc, counter.EntryPointDec, counter.EntryPointReset, counter.EntryPointGet},
			contract.EntryPoints.Names())
		get, ok := contract.EntryPoints.Get(counter.EntryPointGet)
		require.True(t, ok)
		assert.Equal(t, types.CLTypeI64, get.Ret)
		assert.Equal(t, types.EntryPointContract, get.Type)

		pkgHash, ok := named[counter.PackageName].IntoHash()
		require.True(t, ok)
		assert.Equal(t, types.ContractPackageHash(pkgHash), contract.Package)
		pkg := b.GetContractPackage(contract.Package)
		latest, ok := pkg.Latest(1)
		require.True(t, ok)
		assert.Equal(t, uint32(1), latest.Version)
		assert.Equal(t, types.ContractHash(contractHash), latest.Contract)

		access, ok := named[counter.AccessURefName].IntoURef()
		require.True(t, ok)
		assert.Equal(t, pkg.AccessKey, access)
	})
}

func TestIncrement(t *testing.T) {
	forEachForm(t, func(t *testing.T, code []byte) {
		b := deploy(t, code)
		call(b, counter.EntryPointInc).ExpectSuccess().Commit()
		assert.Equal(t, int64(1), count(b))
		call(b, counter.EntryPointInc).ExpectSuccess().Commit()
		assert.Equal(t, int64(2), count(b))
	})
}

func TestDecrement(t *testing.T) {
	forEachForm(t, func(t *testing.T, code []byte) {
		b := deploy(t, code)
		call(b, counter.EntryPointDec).ExpectSuccess().Commit()
		assert.Equal(t, int64(-1), count(b))
	})
}

func TestReset(t *testing.T) {
	forEachForm(t, func(t *testing.T, code []byte) {
		b := deploy(t, code)
		for i := 0; i < 3; i++ {
			call(b, counter.EntryPointInc).ExpectSuccess().Commit()
		}
		require.Equal(t, int64(3), count(b))

		call(b, counter.EntryPointReset).ExpectSuccess().Commit()
		assert.Equal(t, int64(0), count(b))

		// resetting an already zero counter is fine too
		call(b, counter.EntryPointReset).ExpectSuccess().Commit()
		assert.Equal(t, int64(0), count(b))
	})
}

func TestGet(t *testing.T) {
	forEachForm(t, func(t *testing.T, code []byte) {
		b := deploy(t, code)
		call(b, counter.EntryPointInc).ExpectSuccess().Commit()
		call(b, counter.EntryPointInc).ExpectSuccess().Commit()
		call(b, counter.EntryPointDec).ExpectSuccess().Commit()

		call(b, counter.EntryPointGet).ExpectSuccess()
		assert.Equal(t, types.I64(1), b.LastReturn())
		assert.Empty(t, b.LastResult().Effects)
	})
}

func TestNetSum(t *testing.T) {
	forEachForm(t, func(t *testing.T, code []byte) {
		b := deploy(t, code)
		rng := rand.New(rand.NewSource(7))

		var want int64
		for i := 0; i < 40; i++ {
			if rng.Intn(2) == 0 {
				call(b, counter.EntryPointInc).ExpectSuccess().Commit()
				want++
			} else {
				call(b, counter.EntryPointDec).ExpectSuccess().Commit()
				want--
			}
		}
		assert.Equal(t, want, count(b))

		call(b, counter.EntryPointGet).ExpectSuccess()
		assert.Equal(t, types.I64(want), b.LastReturn())
	})
}

func TestUncommittedCallsLeaveStateAlone(t *testing.T) {
	forEachForm(t, func(t *testing.T, code []byte) {
		b := deploy(t, code)
		call(b, counter.EntryPointInc).ExpectSuccess()
		call(b, counter.EntryPointInc).ExpectSuccess()
		assert.Equal(t, int64(0), count(b))
	})
}

func TestVersionedCall(t *testing.T) {
	forEachForm(t, func(t *testing.T, code []byte) {
		b := deploy(t, code)
		version := uint32(1)
		b.Exec(vm.NewVersionedContractCallByName(vm.DefaultAccountAddr, counter.PackageName, &version, counter.EntryPointInc, nil)).
			ExpectSuccess().Commit()
		b.Exec(vm.NewVersionedContractCallByName(vm.DefaultAccountAddr, counter.PackageName, nil, counter.EntryPointGet, nil)).
			ExpectSuccess()
		assert.Equal(t, types.I64(1), b.LastReturn())

		missing := uint32(2)
		b.Exec(vm.NewVersionedContractCallByName(vm.DefaultAccountAddr, counter.PackageName, &missing, counter.EntryPointGet, nil)).
			ExpectFailure()
		assert.ErrorIs(t, b.LastError(), vm.ErrVersionNotFound)
	})
}

func TestUnknownEntryPoint(t *testing.T) {
	forEachForm(t, func(t *testing.T, code []byte) {
		b := deploy(t, code)
		call(b, "counter_double").ExpectFailure()
		assert.ErrorIs(t, b.LastError(), vm.ErrNoSuchMethod)
	})
}

// withoutCount installs the counter entry points with no count key.
type withoutCount struct {
	counter.Contract
}

func (withoutCount) Call(ctx core.Context) {
	hash, _ := ctx.NewContract(counter.EntryPoints(), nil, "", "")
	ctx.PutKey(counter.ContractKey, types.ContractKey(hash))
}

// countNotURef installs the counter entry points with count pointing at a hash.
type countNotURef struct {
	counter.Contract
}

func (countNotURef) Call(ctx core.Context) {
	namedKeys := types.NamedKeys{counter.CountKey: types.HashKey(types.Hash{1})}
	hash, _ := ctx.NewContract(counter.EntryPoints(), namedKeys, "", "")
	ctx.PutKey(counter.ContractKey, types.ContractKey(hash))
}

func init() {
	native.MustRegister("counter_without_count", withoutCount{})
	native.MustRegister("counter_count_not_uref", countNotURef{})
}

func TestCountKeyErrors(t *testing.T) {
	tests := []struct {
		module string
		want   types.ApiError
	}{
		{module: "counter_without_count", want: types.ErrMissingKey},
		{module: "counter_count_not_uref", want: types.ErrUnexpectedKeyVariant},
	}
	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			b := deploy(t, native.ModuleBytes(tt.module))
			for _, ep := range []string{counter.EntryPointInc, counter.EntryPointDec, counter.EntryPointReset, counter.EntryPointGet} {
				call(b, ep).ExpectFailure()
				code, ok := b.LastResult().ApiError()
				require.True(t, ok, ep)
				assert.Equal(t, tt.want, code, ep)
				assert.Empty(t, b.LastResult().Effects)
			}
		})
	}
}

func nativeEntryPoints(t *testing.T) []string {
	module, err := native.Load(counter.ModuleBytes())
	require.NoError(t, err)
	return module.EntryPoints()
}

// installedContract returns the hash and record of the deployed counter.
func installedContract(t *testing.T, b *enginetest.Builder) (types.ContractHash, *types.Contract) {
	hash, ok := b.NamedKey(vm.DefaultAccountAddr, counter.ContractKey).IntoHash()
	require.True(t, ok)
	return types.ContractHash(hash), b.GetContract(types.ContractHash(hash))
}

func countSlot(t *testing.T, b *enginetest.Builder) types.URef {
	_, contract := installedContract(t, b)
	uref, ok := contract.NamedKeys[counter.CountKey].IntoURef()
	require.True(t, ok)
	return uref
}

func expectRevert(t *testing.T, b *enginetest.Builder, entryPoint string, want types.ApiError) {
	t.Helper()
	call(b, entryPoint).ExpectFailure()
	code, ok := b.LastResult().ApiError()
	require.True(t, ok, "%s: %v", entryPoint, b.LastError())
	assert.Equal(t, want, code, entryPoint)
	assert.Empty(t, b.LastResult().Effects)
}

func TestCountValueNotFound(t *testing.T) {
	forEachForm(t, func(t *testing.T, code []byte) {
		b := deploy(t, code)

		// point count at a slot that was never written
		hash, contract := installedContract(t, b)
		contract.NamedKeys[counter.CountKey] = types.URefKey(types.NewURef(types.Blake2b([]byte("unwritten")), types.AccessReadAddWrite))
		require.NoError(t, b.Engine().Commit(context.Background(), state.Effects{
			{Key: types.ContractKey(hash), Value: state.NewContract(contract)},
		}))

		expectRevert(t, b, counter.EntryPointGet, types.ErrValueNotFound)
		expectRevert(t, b, counter.EntryPointInc, types.ErrValueNotFound)
		expectRevert(t, b, counter.EntryPointDec, types.ErrValueNotFound)

		call(b, counter.EntryPointReset).ExpectSuccess().Commit()
		assert.Equal(t, int64(0), count(b))
	})
}

func TestCountTypeMismatch(t *testing.T) {
	forEachForm(t, func(t *testing.T, code []byte) {
		b := deploy(t, code)

		slot := countSlot(t, b)
		require.NoError(t, b.Engine().Commit(context.Background(), state.Effects{
			{Key: types.URefKey(slot), Value: state.NewCLValue(types.String("x"))},
		}))

		expectRevert(t, b, counter.EntryPointGet, types.ErrCLTypeMismatch)
		expectRevert(t, b, counter.EntryPointInc, types.ErrCLTypeMismatch)
		expectRevert(t, b, counter.EntryPointDec, types.ErrCLTypeMismatch)

		call(b, counter.EntryPointReset).ExpectSuccess().Commit()
		call(b, counter.EntryPointGet).ExpectSuccess()
		assert.Equal(t, types.I64(0), b.LastReturn())
	})
}

var errDisk = errors.New("disk read failed")

// failingState fails reads of selected keys.
type failingState struct {
	*memory.State
	failing map[string]bool
}

func (s *failingState) Get(ctx context.Context, key types.Key) (state.StoredValue, error) {
	if s.failing[key.StateID()] {
		return state.StoredValue{}, errDisk
	}
	return s.State.Get(ctx, key)
}

func TestCountReadFailure(t *testing.T) {
	forEachForm(t, func(t *testing.T, code []byte) {
		gs := &failingState{State: memory.NewState(), failing: map[string]bool{}}
		b := deploy(t, code, vm.WithState(gs))
		gs.failing[types.URefKey(countSlot(t, b)).StateID()] = true

		expectRevert(t, b, counter.EntryPointGet, types.ErrRead)

		// add reads the slot on the host side, so the failure is the host's
		call(b, counter.EntryPointInc).ExpectFailure()
		assert.ErrorIs(t, b.LastError(), errDisk)
		_, reverted := b.LastResult().ApiError()
		assert.False(t, reverted)

		call(b, counter.EntryPointReset).ExpectSuccess()
	})
}
