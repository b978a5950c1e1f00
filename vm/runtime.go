package vm

import (
	"context"

	"github.com/pkg/errors"

	"github.com/govm-net/counter/state"
	"github.com/govm-net/counter/types"
)

// halt ends a call early. The runtime panics with it; the engine recovers it
// directly for native contracts and unwraps it from the wazero error for wasm.
type halt struct {
	ret      *types.CLValue
	reverted bool
	code     types.ApiError
	err      error
}

func (h *halt) Error() string {
	switch {
	case h.err != nil:
		return h.err.Error()
	case h.reverted:
		return h.code.Error()
	default:
		return "call returned"
	}
}

// runtime is the core.Context of one call.
type runtime struct {
	ctx       context.Context
	tc        *state.TrackingCopy
	addrGen   *types.AddressGenerator
	major     uint32
	caller    types.AccountHash
	blockTime uint64
	args      types.RuntimeArgs

	// entryPoint is nil for session code
	entryPoint *types.EntryPoint
	module     []byte

	// namedKeys belong to contextKey: the caller's account, or the contract
	// for contract entry points
	contextKey types.Key
	namedKeys  types.NamedKeys

	// known holds the URefs the call may use and the rights it holds on them
	known map[types.Hash]types.AccessRights
}

func (r *runtime) fail(err error) {
	panic(&halt{err: err})
}

func (r *runtime) Revert(code types.ApiError) {
	panic(&halt{reverted: true, code: code})
}

// Ret ends the call. The value must have the declared return type.
func (r *runtime) Ret(value types.CLValue) {
	if r.entryPoint != nil && r.entryPoint.Ret != value.Type {
		r.Revert(types.ErrCLTypeMismatch)
	}
	panic(&halt{ret: &value})
}

func (r *runtime) Caller() types.AccountHash {
	return r.caller
}

func (r *runtime) BlockTime() uint64 {
	return r.blockTime
}

func (r *runtime) GetNamedArg(name string) (types.CLValue, bool) {
	return r.args.Get(name)
}

func (r *runtime) grant(uref types.URef) {
	r.known[uref.Addr] |= uref.Rights
}

func (r *runtime) grantNamedKeys(namedKeys types.NamedKeys) {
	for _, key := range namedKeys {
		if uref, ok := key.IntoURef(); ok {
			r.grant(uref)
		}
	}
}

// checkURef fails the call unless uref was granted to it, and reverts unless uref
// carries want.
func (r *runtime) checkURef(uref types.URef, want types.AccessRights) {
	rights, ok := r.known[uref.Addr]
	if !ok || !rights.Allows(uref.Rights) {
		r.fail(errors.Wrapf(ErrForgedReference, "%s", uref))
	}
	if !uref.Rights.Allows(want) {
		r.Revert(types.ErrNoAccessRights)
	}
}

func (r *runtime) GetKey(name string) (types.Key, bool) {
	key, ok := r.namedKeys[name]
	return key, ok
}

func (r *runtime) HasKey(name string) bool {
	_, ok := r.namedKeys[name]
	return ok
}

// PutKey publishes key under name and persists the named keys of the context.
func (r *runtime) PutKey(name string, key types.Key) {
	if uref, ok := key.IntoURef(); ok {
		r.checkURef(uref, types.AccessNone)
	}
	r.namedKeys[name] = key

	v, err := r.tc.Get(r.ctx, r.contextKey)
	if err != nil {
		r.fail(errors.Wrapf(err, "read %s", r.contextKey))
	}
	switch {
	case v.Account != nil:
		v.Account.NamedKeys = r.namedKeys.Clone()
	case v.Contract != nil:
		v.Contract.NamedKeys = r.namedKeys.Clone()
	default:
		r.fail(errors.Errorf("%s holds %s, not named keys", r.contextKey, v.Kind()))
	}
	r.tc.Write(r.contextKey, v)
}

func (r *runtime) NewURef(value types.CLValue) types.URef {
	uref := types.NewURef(r.addrGen.Next(), types.AccessReadAddWrite)
	r.tc.Write(types.URefKey(uref), state.NewCLValue(value))
	r.grant(uref)
	return uref
}

func (r *runtime) Read(uref types.URef) (types.CLValue, bool, error) {
	r.checkURef(uref, types.AccessRead)
	v, err := r.tc.Get(r.ctx, types.URefKey(uref))
	if errors.Is(err, state.ErrNotFound) {
		return types.CLValue{}, false, nil
	}
	if err != nil {
		return types.CLValue{}, false, err
	}
	if v.CLValue == nil {
		return types.CLValue{}, false, errors.Wrapf(types.ErrCLTypeMismatch, "%s holds %s", uref, v.Kind())
	}
	return *v.CLValue, true, nil
}

func (r *runtime) Write(uref types.URef, value types.CLValue) {
	r.checkURef(uref, types.AccessWrite)
	r.tc.Write(types.URefKey(uref), state.NewCLValue(value))
}

func (r *runtime) Add(uref types.URef, delta types.CLValue) {
	r.checkURef(uref, types.AccessAdd)
	err := r.tc.Add(r.ctx, types.URefKey(uref), delta)
	switch {
	case err == nil:
	case errors.Is(err, state.ErrNotFound):
		r.Revert(types.ErrValueNotFound)
	case errors.Is(err, types.ErrCLTypeMismatch):
		r.Revert(types.ErrCLTypeMismatch)
	default:
		r.fail(err)
	}
}

// NewContract creates a package holding one contract version and publishes the
// package hash and its access URef under the given names.
func (r *runtime) NewContract(entryPoints types.EntryPoints, namedKeys types.NamedKeys, packageName, accessName string) (types.ContractHash, uint32) {
	pkgHash := types.ContractPackageHash(r.addrGen.Next())
	access := r.NewURef(types.Unit())
	pkg := &types.ContractPackage{AccessKey: access}

	hash, version := r.installVersion(pkgHash, pkg, entryPoints, namedKeys)

	if packageName != "" {
		r.PutKey(packageName, types.ContractPackageKey(pkgHash))
	}
	if accessName != "" {
		r.PutKey(accessName, types.URefKey(access))
	}
	return hash, version
}

// AddContractVersion adds a version to an existing package. The call must hold
// the package access URef.
func (r *runtime) AddContractVersion(pkgHash types.ContractPackageHash, entryPoints types.EntryPoints, namedKeys types.NamedKeys) (types.ContractHash, uint32) {
	v, err := r.tc.Get(r.ctx, types.ContractPackageKey(pkgHash))
	if errors.Is(err, state.ErrNotFound) {
		r.Revert(types.ErrContractNotFound)
	}
	if err != nil {
		r.fail(err)
	}
	if v.ContractPackage == nil {
		r.Revert(types.ErrUnexpectedContractRefVariant)
	}
	if _, ok := r.known[v.ContractPackage.AccessKey.Addr]; !ok {
		r.Revert(types.ErrPermissionDenied)
	}
	return r.installVersion(pkgHash, v.ContractPackage, entryPoints, namedKeys)
}

func (r *runtime) installVersion(pkgHash types.ContractPackageHash, pkg *types.ContractPackage, entryPoints types.EntryPoints, namedKeys types.NamedKeys) (types.ContractHash, uint32) {
	if err := entryPoints.Validate(); err != nil {
		var code types.ApiError
		if !errors.As(err, &code) {
			code = types.ErrInvalidArgument
		}
		r.Revert(code)
	}
	for _, key := range namedKeys {
		if uref, ok := key.IntoURef(); ok {
			r.checkURef(uref, types.AccessNone)
		}
	}

	wasmHash := types.ContractWasmHash(r.addrGen.Next())
	contractHash := types.ContractHash(r.addrGen.Next())

	r.tc.Write(types.ContractWasmKey(wasmHash), state.NewContractWasm(&types.ContractWasm{
		Bytes: append([]byte(nil), r.module...),
	}))
	r.tc.Write(types.ContractKey(contractHash), state.NewContract(&types.Contract{
		Package:       pkgHash,
		Wasm:          wasmHash,
		NamedKeys:     namedKeys.Clone(),
		EntryPoints:   append(types.EntryPoints(nil), entryPoints...),
		ProtocolMajor: r.major,
	}))
	version := pkg.Insert(r.major, contractHash)
	r.tc.Write(types.ContractPackageKey(pkgHash), state.NewContractPackage(pkg))
	return contractHash, version
}
