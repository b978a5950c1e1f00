package vm

import "github.com/pkg/errors"

var (
	ErrAccountNotFound   = errors.New("account not found")
	ErrContractNotFound  = errors.New("contract not found")
	ErrPackageNotFound   = errors.New("contract package not found")
	ErrVersionNotFound   = errors.New("contract version not found")
	ErrNoSuchMethod      = errors.New("no such method")
	ErrForgedReference   = errors.New("forged reference")
	ErrEmptyModule       = errors.New("module bytes are empty")
	ErrModuleTooLarge    = errors.New("module bytes exceed the size limit")
	ErrUnknownModule     = errors.New("module bytes are neither wasm nor a native module")
	ErrContractPanic     = errors.New("contract panicked")
	ErrExecutionTimeout  = errors.New("execution timed out")
	ErrInvalidPath       = errors.New("invalid query path")
	ErrGenesisAlreadyRun = errors.New("genesis already run")
	ErrCodeStoreDisabled = errors.New("contract code is stored outside global state but no code directory is configured")
)
