package vm

import (
	"github.com/govm-net/counter/core"
	"github.com/govm-net/counter/native"
	"github.com/govm-net/counter/types"
)

const probeModule = "probe"

func init() {
	native.MustRegister(probeModule, probe{})
}

func probeEntryPoints() types.EntryPoints {
	contract := func(name string, args []types.Parameter, ret types.CLType) types.EntryPoint {
		return types.NewEntryPoint(name, args, ret, types.AccessPublic, types.EntryPointContract)
	}
	var eps types.EntryPoints
	eps.Add(contract("echo", []types.Parameter{{Name: "value", Type: types.CLTypeString}}, types.CLTypeString))
	eps.Add(contract("wrong_ret", nil, types.CLTypeI64))
	eps.Add(contract("forge", nil, types.CLTypeUnit))
	eps.Add(contract("read_only", nil, types.CLTypeUnit))
	eps.Add(contract("boom", nil, types.CLTypeUnit))
	eps.Add(contract("user_error", nil, types.CLTypeUnit))
	eps.Add(contract("not_implemented", nil, types.CLTypeUnit))
	eps.Add(contract("hijack", []types.Parameter{{Name: "package", Type: types.CLTypeKey}}, types.CLTypeUnit))
	eps.Add(contract("bump", nil, types.CLTypeUnit))
	eps.Add(types.NewEntryPoint("upgrade", nil, types.CLTypeUnit, types.AccessPublic, types.EntryPointSession))
	return eps
}

// probe exercises the host from a native contract.
type probe struct{}

func (probe) Call(ctx core.Context) {
	slot := ctx.NewURef(types.I64(5))
	namedKeys := types.NamedKeys{
		"slot": types.URefKey(slot),
		"ro":   types.URefKey(types.NewURef(slot.Addr, types.AccessRead)),
	}
	hash, _ := ctx.NewContract(probeEntryPoints(), namedKeys, "probe_package", "probe_access")
	ctx.PutKey("probe", types.ContractKey(hash))
}

func (probe) Echo(ctx core.Context) {
	v, ok := ctx.GetNamedArg("value")
	core.Assert(ctx, ok, types.ErrMissingArgument)
	ctx.Ret(v)
}

func (probe) WrongRet(ctx core.Context) {
	ctx.Ret(types.String("not an i64"))
}

func (probe) Forge(ctx core.Context) {
	ctx.Write(types.NewURef(types.Hash{9}, types.AccessReadAddWrite), types.I64(1))
}

func (probe) ReadOnly(ctx core.Context) {
	key, _ := ctx.GetKey("ro")
	uref, _ := key.IntoURef()
	ctx.Write(uref, types.I64(1))
}

func (probe) Boom(core.Context) {
	panic("boom")
}

func (probe) UserError(ctx core.Context) {
	ctx.Revert(types.UserError(3))
}

func (probe) Hijack(ctx core.Context) {
	arg, _ := ctx.GetNamedArg("package")
	key, err := arg.KeyValue()
	core.Require(ctx, err, types.ErrInvalidArgument)
	hash, ok := key.IntoHash()
	core.Assert(ctx, ok, types.ErrUnexpectedKeyVariant)
	ctx.AddContractVersion(types.ContractPackageHash(hash), probeEntryPoints(), nil)
}

func (probe) Bump(ctx core.Context) {
	key, _ := ctx.GetKey("slot")
	uref, _ := key.IntoURef()
	ctx.Add(uref, types.I64(1))
}

// Upgrade runs in the caller's context, which holds the package access URef.
func (probe) Upgrade(ctx core.Context) {
	key, ok := ctx.GetKey("probe_package")
	core.Assert(ctx, ok, types.ErrMissingKey)
	hash, _ := key.IntoHash()
	contract, version := ctx.AddContractVersion(types.ContractPackageHash(hash), probeEntryPoints(), types.NamedKeys{})
	ctx.PutKey("probe_latest", types.ContractKey(contract))
	ctx.PutKey("probe_version", types.URefKey(ctx.NewURef(types.U32(version))))
}
