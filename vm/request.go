package vm

import (
	"github.com/govm-net/counter/types"
)

// RequestKind selects what an ExecuteRequest runs.
type RequestKind uint8

const (
	// KindSession runs module bytes as session code, entering at "call".
	KindSession RequestKind = iota
	// KindStoredByHash calls an entry point of a contract given its hash.
	KindStoredByHash
	// KindStoredByName calls an entry point of the contract a caller's named key points at.
	KindStoredByName
	// KindVersionedByHash calls a version of a contract package given its hash.
	KindVersionedByHash
	// KindVersionedByName calls a version of the package a caller's named key points at.
	KindVersionedByName
)

var requestKindNames = map[RequestKind]string{
	KindSession:         "session",
	KindStoredByHash:    "stored_by_hash",
	KindStoredByName:    "stored_by_name",
	KindVersionedByHash: "versioned_by_hash",
	KindVersionedByName: "versioned_by_name",
}

func (k RequestKind) String() string {
	if name, ok := requestKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// ExecuteRequest is a single deploy.
type ExecuteRequest struct {
	Kind   RequestKind
	Caller types.AccountHash

	ModuleBytes  []byte                    // KindSession
	ContractHash types.ContractHash        // KindStoredByHash
	PackageHash  types.ContractPackageHash // KindVersionedByHash
	Name         string                    // KindStoredByName, KindVersionedByName
	Version      *uint32                   // versioned kinds; nil picks the latest

	EntryPoint string
	Args       types.RuntimeArgs

	// DeployHash seeds the addresses the execution creates. When zero the engine
	// derives one.
	DeployHash types.Hash
	BlockTime  uint64
}

// NewStandardRequest runs moduleBytes as session code.
func NewStandardRequest(caller types.AccountHash, moduleBytes []byte, args types.RuntimeArgs) *ExecuteRequest {
	return &ExecuteRequest{
		Kind:        KindSession,
		Caller:      caller,
		ModuleBytes: moduleBytes,
		EntryPoint:  types.InstallEntryPoint,
		Args:        args,
	}
}

func NewContractCallByHash(caller types.AccountHash, hash types.ContractHash, entryPoint string, args types.RuntimeArgs) *ExecuteRequest {
	return &ExecuteRequest{
		Kind:         KindStoredByHash,
		Caller:       caller,
		ContractHash: hash,
		EntryPoint:   entryPoint,
		Args:         args,
	}
}

func NewContractCallByName(caller types.AccountHash, name, entryPoint string, args types.RuntimeArgs) *ExecuteRequest {
	return &ExecuteRequest{
		Kind:       KindStoredByName,
		Caller:     caller,
		Name:       name,
		EntryPoint: entryPoint,
		Args:       args,
	}
}

func NewVersionedContractCallByHash(caller types.AccountHash, hash types.ContractPackageHash, version *uint32, entryPoint string, args types.RuntimeArgs) *ExecuteRequest {
	return &ExecuteRequest{
		Kind:        KindVersionedByHash,
		Caller:      caller,
		PackageHash: hash,
		Version:     version,
		EntryPoint:  entryPoint,
		Args:        args,
	}
}

func NewVersionedContractCallByName(caller types.AccountHash, name string, version *uint32, entryPoint string, args types.RuntimeArgs) *ExecuteRequest {
	return &ExecuteRequest{
		Kind:       KindVersionedByName,
		Caller:     caller,
		Name:       name,
		Version:    version,
		EntryPoint: entryPoint,
		Args:       args,
	}
}

func (r *ExecuteRequest) WithDeployHash(hash types.Hash) *ExecuteRequest {
	r.DeployHash = hash
	return r
}

func (r *ExecuteRequest) WithBlockTime(t uint64) *ExecuteRequest {
	r.BlockTime = t
	return r
}
