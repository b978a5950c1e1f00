// Package counter is a contract holding a single signed counter.
//
// Installing the contract (running its "call" entry point as session code)
// creates a contract package whose only contract version exposes counter_inc,
// counter_dec, counter_reset and counter_get. The counter lives in a URef
// published as "count" in the contract's named keys.
package counter

import (
	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/native"
	"github.com/govm-net/counter/types"
)

// Name is the native module name of the contract.
const Name = "counter"

// Named keys.
const (
	PackageName    = "counter_package_name"
	AccessURefName = "counter_access_uref"
	VersionKey     = "version"
	ContractKey    = "counter"
	CountKey       = "count"
)

// Entry points.
const (
	EntryPointInc   = "counter_inc"
	EntryPointDec   = "counter_dec"
	EntryPointReset = "counter_reset"
	EntryPointGet   = "counter_get"
)

func init() {
	native.MustRegister(Name, Contract{})
}

// EntryPoints declares the public entry points of the installed contract.
func EntryPoints() types.EntryPoints {
	var eps types.EntryPoints
	eps.Add(types.NewEntryPoint(EntryPointInc, nil, types.CLTypeUnit, types.AccessPublic, types.EntryPointContract))
	eps.Add(types.NewEntryPoint(EntryPointGet, nil, types.CLTypeI64, types.AccessPublic, types.EntryPointContract))
	eps.Add(types.NewEntryPoint(EntryPointDec, nil, types.CLTypeUnit, types.AccessPublic, types.EntryPointContract))
	eps.Add(types.NewEntryPoint(EntryPointReset, nil, types.CLTypeUnit, types.AccessPublic, types.EntryPointContract))
	return eps
}

// Contract is the native form of the counter.
type Contract struct{}

// Call installs the contract.
func (Contract) Call(ctx core.Context) {
	count := ctx.NewURef(types.I64(0))
	namedKeys := types.NamedKeys{CountKey: types.URefKey(count)}

	hash, version := ctx.NewContract(EntryPoints(), namedKeys, PackageName, AccessURefName)

	versionURef := ctx.NewURef(types.U32(version))
	ctx.PutKey(VersionKey, types.URefKey(versionURef))
	ctx.PutKey(ContractKey, types.ContractKey(hash))
}

func (Contract) CounterInc(ctx core.Context) {
	ctx.Add(countURef(ctx), types.I64(1))
}

func (Contract) CounterDec(ctx core.Context) {
	ctx.Add(countURef(ctx), types.I64(-1))
}

func (Contract) CounterReset(ctx core.Context) {
	ctx.Write(countURef(ctx), types.I64(0))
}

func (Contract) CounterGet(ctx core.Context) {
	value, found, err := ctx.Read(countURef(ctx))
	core.Require(ctx, err, types.ErrRead)
	core.Assert(ctx, found, types.ErrValueNotFound)
	n, err := value.Int64()
	core.Require(ctx, err, types.ErrCLTypeMismatch)
	ctx.Ret(types.I64(n))
}

// countURef resolves the counter slot, reverting if it is missing or not a URef.
func countURef(ctx core.Context) types.URef {
	key, ok := ctx.GetKey(CountKey)
	core.Assert(ctx, ok, types.ErrMissingKey)
	uref, ok := key.IntoURef()
	core.Assert(ctx, ok, types.ErrUnexpectedKeyVariant)
	return uref
}

// ModuleBytes returns the session code that installs the native form.
func ModuleBytes() []byte {
	return native.ModuleBytes(Name)
}
