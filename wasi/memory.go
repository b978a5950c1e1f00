package wasi

import (
	"github.com/near/borsh-go"
	"github.com/pkg/errors"
	"github.com/tetratelabs/wazero/api"

	"github.com/govm-net/counter/types"
)

// noError marks a successful decode. ApiError codes start at 1.
const noError types.ApiError = 0

func status(code types.ApiError) int32 {
	return int32(code)
}

// apiError maps a decoding failure onto the code reported to the contract.
func apiError(err error, fallback types.ApiError) types.ApiError {
	var code types.ApiError
	if errors.As(err, &code) {
		return code
	}
	return fallback
}

// read copies size bytes out of the module memory.
func read(m api.Module, ptr, size uint32) ([]byte, bool) {
	b, ok := m.Memory().Read(ptr, size)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), b...), true
}

func readKey(m api.Module, ptr uint32) (types.Key, types.ApiError) {
	b, ok := read(m, ptr, types.KeySize)
	if !ok {
		return types.Key{}, types.ErrOutOfMemory
	}
	key, err := types.KeyFromBytes(b)
	if err != nil {
		return types.Key{}, apiError(err, types.ErrFormatting)
	}
	return key, noError
}

func readURef(m api.Module, ptr uint32) (types.URef, types.ApiError) {
	key, code := readKey(m, ptr)
	if code != noError {
		return types.URef{}, code
	}
	uref, ok := key.IntoURef()
	if !ok {
		return types.URef{}, types.ErrUnexpectedKeyVariant
	}
	return uref, noError
}

func readValue(m api.Module, ptr, size uint32) (types.CLValue, types.ApiError) {
	b, ok := read(m, ptr, size)
	if !ok {
		return types.CLValue{}, types.ErrOutOfMemory
	}
	value, err := types.CLValueFromBytes(b)
	if err != nil {
		return types.CLValue{}, apiError(err, types.ErrDeserialize)
	}
	return value, noError
}

type contractArgs struct {
	entryPoints types.EntryPoints
	namedKeys   types.NamedKeys
}

// readContractArgs decodes the borsh encoded entry points and named keys passed
// to new_contract.
func readContractArgs(m api.Module, epPtr, epLen, nkPtr, nkLen uint32) (contractArgs, types.ApiError) {
	epBytes, ok := read(m, epPtr, epLen)
	if !ok {
		return contractArgs{}, types.ErrOutOfMemory
	}
	nkBytes, ok := read(m, nkPtr, nkLen)
	if !ok {
		return contractArgs{}, types.ErrOutOfMemory
	}

	var entryPoints types.EntryPoints
	if err := borsh.Deserialize(&entryPoints, epBytes); err != nil {
		return contractArgs{}, types.ErrDeserialize
	}
	if err := entryPoints.Validate(); err != nil {
		return contractArgs{}, apiError(err, types.ErrInvalidArgument)
	}
	var list []types.NamedKey
	if err := borsh.Deserialize(&list, nkBytes); err != nil {
		return contractArgs{}, types.ErrDeserialize
	}
	namedKeys, err := types.NamedKeysFromList(list)
	if err != nil {
		return contractArgs{}, apiError(err, types.ErrDuplicateKey)
	}
	return contractArgs{entryPoints: entryPoints, namedKeys: namedKeys}, noError
}
