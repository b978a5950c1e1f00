// Package core defines the interface a contract uses to talk to its host.
// Contract authors only need this package and the types package.
package core

import "github.com/govm-net/counter/types"

// Context is the host as seen from a running entry point.
//
// Calls that cannot fail in a well-formed contract (storage writes, key
// publication, contract creation) abort the current call on failure instead of
// returning an error; the host reports the abort to the caller.
type Context interface {
	// Named keys of the current context: the caller's account for session code,
	// the contract for contract entry points.
	GetKey(name string) (types.Key, bool)
	HasKey(name string) bool
	PutKey(name string, key types.Key)

	// Arguments of the current call.
	GetNamedArg(name string) (types.CLValue, bool)

	// Storage.
	NewURef(value types.CLValue) types.URef
	Read(uref types.URef) (value types.CLValue, found bool, err error)
	Write(uref types.URef, value types.CLValue)
	Add(uref types.URef, delta types.CLValue)

	// Contract packages.
	NewContract(entryPoints types.EntryPoints, namedKeys types.NamedKeys, packageName, accessName string) (types.ContractHash, uint32)
	AddContractVersion(pkg types.ContractPackageHash, entryPoints types.EntryPoints, namedKeys types.NamedKeys) (types.ContractHash, uint32)

	// Ret ends the call successfully with a return value.
	Ret(value types.CLValue)
	// Revert ends the call with an error code.
	Revert(code types.ApiError)

	Caller() types.AccountHash
	BlockTime() uint64
}

// Assert reverts with code unless ok holds.
func Assert(ctx Context, ok bool, code types.ApiError) {
	if !ok {
		ctx.Revert(code)
	}
}

// Require reverts with code if err is set.
func Require(ctx Context, err error, code types.ApiError) {
	if err != nil {
		ctx.Revert(code)
	}
}
