package counter

import (
	"github.com/near/borsh-go"
	"github.com/pkg/errors"

	"github.com/govm-net/counter/types"
	"github.com/govm-net/counter/wasm"
)

const (
	wasmPages    = 1
	wasmDataBase = 1024
	retBufSize   = 64
)

var (
	i32 = wasm.I32

	sigStatus3  = wasm.FuncType{Params: []wasm.ValueType{i32, i32, i32}, Results: []wasm.ValueType{i32}}
	sigContract = wasm.FuncType{
		Params:  []wasm.ValueType{i32, i32, i32, i32, i32, i32, i32, i32, i32, i32},
		Results: []wasm.ValueType{i32},
	}
	sigRet    = wasm.FuncType{Params: []wasm.ValueType{i32, i32}}
	sigRevert = wasm.FuncType{Params: []wasm.ValueType{i32}}
	sigVoid   = wasm.FuncType{}
)

type hostImports struct {
	getKey, newURef, readValue, write, add, putKey, newContract, ret, revert uint32
}

type segment struct {
	ptr, len uint32
}

func data(m *wasm.Module, b []byte) segment {
	return segment{ptr: m.Data(b), len: uint32(len(b))}
}

// WasmModule assembles the WebAssembly form of the contract. It has the same
// entry points and named keys as the native form.
func WasmModule() ([]byte, error) {
	m := wasm.NewModule(wasmPages, wasmDataBase)

	h := hostImports{
		getKey:      m.Import(types.HostModule, types.HostGetKey, sigStatus3),
		newURef:     m.Import(types.HostModule, types.HostNewURef, sigStatus3),
		readValue:   m.Import(types.HostModule, types.HostReadValue, sigStatus3),
		write:       m.Import(types.HostModule, types.HostWrite, sigStatus3),
		add:         m.Import(types.HostModule, types.HostAdd, sigStatus3),
		putKey:      m.Import(types.HostModule, types.HostPutKey, sigStatus3),
		newContract: m.Import(types.HostModule, types.HostNewContract, sigContract),
		ret:         m.Import(types.HostModule, types.HostRet, sigRet),
		revert:      m.Import(types.HostModule, types.HostRevert, sigRevert),
	}

	entryPoints, err := borsh.Serialize(EntryPoints())
	if err != nil {
		return nil, errors.Wrap(err, "encode entry points")
	}
	// the count URef is filled in by new_uref over the trailing key bytes
	namedKeys, err := borsh.Serialize([]types.NamedKey{{Name: CountKey, Key: types.Key{Tag: types.KeyTagURef}}})
	if err != nil {
		return nil, errors.Wrap(err, "encode named keys")
	}

	var (
		countName   = data(m, []byte(CountKey))
		zero        = data(m, types.I64(0).ToBytes())
		one         = data(m, types.I64(1).ToBytes())
		minusOne    = data(m, types.I64(-1).ToBytes())
		eps         = data(m, entryPoints)
		nks         = data(m, namedKeys)
		pkgName     = data(m, []byte(PackageName))
		accessName  = data(m, []byte(AccessURefName))
		hashKey     = data(m, types.HashKey(types.Hash{}).ToBytes())
		versionCL   = data(m, types.U32(0).ToBytes())
		versionKey  = data(m, types.URefKey(types.URef{}).ToBytes())
		versionName = data(m, []byte(VersionKey))
		counterName = data(m, []byte(ContractKey))
		keyBuf      = m.Reserve(types.KeySize)
		retBuf      = m.Reserve(retBufSize)
	)

	// check(status): revert with status unless it is zero
	check := m.Func(sigRevert, nil, wasm.NewCode().
		LocalGet(0).If().
		LocalGet(0).Call(h.revert).
		End())

	// lookup(): load the count key into keyBuf
	lookup := m.Func(sigVoid, nil, wasm.NewCode().
		I32Const(int32(countName.ptr)).I32Const(int32(countName.len)).I32Const(int32(keyBuf)).
		Call(h.getKey).Call(check).
		I32Const(int32(keyBuf)).I32Load8U(0).I32Const(int32(types.KeyTagURef)).I32Ne().If().
		I32Const(int32(types.ErrUnexpectedKeyVariant)).Call(h.revert).
		End())

	update := func(hostFn uint32, value segment) *wasm.Code {
		return wasm.NewCode().
			Call(lookup).
			I32Const(int32(keyBuf)).I32Const(int32(value.ptr)).I32Const(int32(value.len)).
			Call(hostFn).Call(check)
	}

	inc := m.Func(sigVoid, nil, update(h.add, one))
	dec := m.Func(sigVoid, nil, update(h.add, minusOne))
	reset := m.Func(sigVoid, nil, update(h.write, zero))

	get := m.Func(sigVoid, []wasm.ValueType{i32}, wasm.NewCode().
		Call(lookup).
		I32Const(int32(keyBuf)).I32Const(int32(retBuf)).I32Const(retBufSize).
		Call(h.readValue).LocalTee(0).
		I32Const(0).I32LtS().If().
		I32Const(0).LocalGet(0).I32Sub().Call(h.revert).
		End().
		I32Const(int32(retBuf)).LocalGet(0).Call(h.ret))

	install := m.Func(sigVoid, nil, wasm.NewCode().
		I32Const(int32(zero.ptr)).I32Const(int32(zero.len)).I32Const(int32(nks.ptr+nks.len-types.URefSize)).
		Call(h.newURef).Call(check).
		I32Const(int32(eps.ptr)).I32Const(int32(eps.len)).
		I32Const(int32(nks.ptr)).I32Const(int32(nks.len)).
		I32Const(int32(pkgName.ptr)).I32Const(int32(pkgName.len)).
		I32Const(int32(accessName.ptr)).I32Const(int32(accessName.len)).
		I32Const(int32(hashKey.ptr+1)).I32Const(int32(versionCL.ptr+1)).
		Call(h.newContract).Call(check).
		I32Const(int32(versionCL.ptr)).I32Const(int32(versionCL.len)).I32Const(int32(versionKey.ptr+1)).
		Call(h.newURef).Call(check).
		I32Const(int32(versionName.ptr)).I32Const(int32(versionName.len)).I32Const(int32(versionKey.ptr)).
		Call(h.putKey).Call(check).
		I32Const(int32(counterName.ptr)).I32Const(int32(counterName.len)).I32Const(int32(hashKey.ptr)).
		Call(h.putKey).Call(check))

	m.Export(types.InstallEntryPoint, install)
	m.Export(EntryPointInc, inc)
	m.Export(EntryPointDec, dec)
	m.Export(EntryPointReset, reset)
	m.Export(EntryPointGet, get)
	m.ExportMemory(types.MemoryExport)

	return m.Encode()
}
