package vm

import (
	"time"

	"github.com/pkg/errors"

	"github.com/govm-net/counter/state"
	"github.com/govm-net/counter/types"
)

// ExecutionResult is the outcome of one execution. Effects are only set when the
// execution succeeded; a failed execution leaves global state untouched.
type ExecutionResult struct {
	Err     error
	Ret     *types.CLValue
	Effects state.Effects
	Elapsed time.Duration
}

func (r *ExecutionResult) Success() bool {
	return r.Err == nil
}

// ApiError returns the code the execution reverted with.
func (r *ExecutionResult) ApiError() (types.ApiError, bool) {
	var code types.ApiError
	if errors.As(r.Err, &code) {
		return code, true
	}
	return 0, false
}
