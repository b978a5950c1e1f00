// Package enginetest drives an in-memory engine from tests.
//
//	b := enginetest.New(t).RunGenesis(vm.ProductionGenesisRequest())
//	b.Exec(vm.NewStandardRequest(vm.DefaultAccountAddr, code, nil)).ExpectSuccess().Commit()
package enginetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/govm-net/counter/state"
	"github.com/govm-net/counter/state/memory"
	"github.com/govm-net/counter/types"
	"github.com/govm-net/counter/vm"
)

// Builder wraps an engine and fails the test on unexpected outcomes.
type Builder struct {
	t       testing.TB
	ctx     context.Context
	engine  *vm.Engine
	results []*vm.ExecutionResult
}

// New creates a builder over a fresh in-memory state.
func New(t testing.TB, opts ...vm.Option) *Builder {
	t.Helper()
	opts = append([]vm.Option{vm.WithState(memory.NewState())}, opts...)
	engine, err := vm.NewEngine(vm.DefaultConfig(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return &Builder{t: t, ctx: context.Background(), engine: engine}
}

func (b *Builder) Engine() *vm.Engine {
	return b.engine
}

func (b *Builder) RunGenesis(req *vm.GenesisRequest) *Builder {
	b.t.Helper()
	require.NoError(b.t, b.engine.RunGenesis(b.ctx, req))
	return b
}

// Exec runs req without committing it.
func (b *Builder) Exec(req *vm.ExecuteRequest) *Builder {
	b.t.Helper()
	result, err := b.engine.Execute(b.ctx, req)
	require.NoError(b.t, err)
	b.results = append(b.results, result)
	return b
}

func (b *Builder) ExpectSuccess() *Builder {
	b.t.Helper()
	require.NoError(b.t, b.LastResult().Err, "expected execution to succeed")
	return b
}

func (b *Builder) ExpectFailure() *Builder {
	b.t.Helper()
	require.Error(b.t, b.LastResult().Err, "expected execution to fail")
	return b
}

// Commit applies the effects of the last execution.
func (b *Builder) Commit() *Builder {
	b.t.Helper()
	require.NoError(b.t, b.engine.Commit(b.ctx, b.LastResult().Effects))
	return b
}

func (b *Builder) LastResult() *vm.ExecutionResult {
	b.t.Helper()
	require.NotEmpty(b.t, b.results, "nothing executed yet")
	return b.results[len(b.results)-1]
}

func (b *Builder) LastError() error {
	b.t.Helper()
	return b.LastResult().Err
}

// LastReturn is the value the last execution returned.
func (b *Builder) LastReturn() types.CLValue {
	b.t.Helper()
	ret := b.LastResult().Ret
	require.NotNil(b.t, ret, "last execution returned nothing")
	return *ret
}

func (b *Builder) GetExpectedAccount(hash types.AccountHash) *types.Account {
	b.t.Helper()
	account, err := b.engine.GetAccount(b.ctx, hash)
	require.NoError(b.t, err)
	return account
}

func (b *Builder) GetContract(hash types.ContractHash) *types.Contract {
	b.t.Helper()
	contract, err := b.engine.GetContract(b.ctx, hash)
	require.NoError(b.t, err)
	return contract
}

func (b *Builder) GetContractPackage(hash types.ContractPackageHash) *types.ContractPackage {
	b.t.Helper()
	pkg, err := b.engine.GetContractPackage(b.ctx, hash)
	require.NoError(b.t, err)
	return pkg
}

// NamedKey returns the key account publishes under name.
func (b *Builder) NamedKey(account types.AccountHash, name string) types.Key {
	b.t.Helper()
	key, ok := b.GetExpectedAccount(account).NamedKeys[name]
	require.True(b.t, ok, "account %s has no named key %q", account, name)
	return key
}

func (b *Builder) Query(key types.Key, path ...string) state.StoredValue {
	b.t.Helper()
	value, err := b.engine.Query(b.ctx, key, path...)
	require.NoError(b.t, err)
	return value
}

func (b *Builder) queryCLValue(key types.Key, path ...string) types.CLValue {
	b.t.Helper()
	value := b.Query(key, path...)
	require.NotNil(b.t, value.CLValue, "%s holds %s, not a CL value", key, value.Kind())
	return *value.CLValue
}

func (b *Builder) QueryInt64(key types.Key, path ...string) int64 {
	b.t.Helper()
	n, err := b.queryCLValue(key, path...).Int64()
	require.NoError(b.t, err)
	return n
}

func (b *Builder) QueryUint32(key types.Key, path ...string) uint32 {
	b.t.Helper()
	n, err := b.queryCLValue(key, path...).Uint32()
	require.NoError(b.t, err)
	return n
}
