package vm

import (
	"context"

	"github.com/pkg/errors"

	"github.com/govm-net/counter/state"
	"github.com/govm-net/counter/types"
)

// Query reads the value at key, then follows path through named keys of the
// accounts and contracts along the way.
func (e *Engine) Query(ctx context.Context, key types.Key, path ...string) (state.StoredValue, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := key
	value, err := e.state.Get(ctx, current)
	if err != nil {
		return state.StoredValue{}, errors.Wrapf(err, "query %s", current)
	}
	for _, name := range path {
		var namedKeys types.NamedKeys
		switch {
		case value.Account != nil:
			namedKeys = value.Account.NamedKeys
		case value.Contract != nil:
			namedKeys = value.Contract.NamedKeys
		default:
			return state.StoredValue{}, errors.Wrapf(ErrInvalidPath, "%s holds %s", current, value.Kind())
		}
		next, ok := namedKeys[name]
		if !ok {
			return state.StoredValue{}, errors.Wrapf(ErrInvalidPath, "no named key %q under %s", name, current)
		}
		current = next
		if value, err = e.state.Get(ctx, current); err != nil {
			return state.StoredValue{}, errors.Wrapf(err, "query %s", current)
		}
	}
	return value, nil
}

func (e *Engine) GetAccount(ctx context.Context, hash types.AccountHash) (*types.Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return getAccount(ctx, e.state, hash)
}

func (e *Engine) GetContract(ctx context.Context, hash types.ContractHash) (*types.Contract, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return getContract(ctx, e.state, hash)
}

func (e *Engine) GetContractPackage(ctx context.Context, hash types.ContractPackageHash) (*types.ContractPackage, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return getContractPackage(ctx, e.state, hash)
}

func getAccount(ctx context.Context, r state.Reader, hash types.AccountHash) (*types.Account, error) {
	v, err := r.Get(ctx, types.AccountKey(hash))
	if errors.Is(err, state.ErrNotFound) {
		return nil, errors.Wrapf(ErrAccountNotFound, "%s", hash)
	}
	if err != nil {
		return nil, err
	}
	if v.Account == nil {
		return nil, errors.Wrapf(ErrAccountNotFound, "%s holds %s", hash, v.Kind())
	}
	return v.Account, nil
}

func getContract(ctx context.Context, r state.Reader, hash types.ContractHash) (*types.Contract, error) {
	v, err := r.Get(ctx, types.ContractKey(hash))
	if errors.Is(err, state.ErrNotFound) {
		return nil, errors.Wrapf(ErrContractNotFound, "%s", hash)
	}
	if err != nil {
		return nil, err
	}
	if v.Contract == nil {
		return nil, errors.Wrapf(ErrContractNotFound, "%s holds %s", hash, v.Kind())
	}
	return v.Contract, nil
}

func getContractPackage(ctx context.Context, r state.Reader, hash types.ContractPackageHash) (*types.ContractPackage, error) {
	v, err := r.Get(ctx, types.ContractPackageKey(hash))
	if errors.Is(err, state.ErrNotFound) {
		return nil, errors.Wrapf(ErrPackageNotFound, "%s", hash)
	}
	if err != nil {
		return nil, err
	}
	if v.ContractPackage == nil {
		return nil, errors.Wrapf(ErrPackageNotFound, "%s holds %s", hash, v.Kind())
	}
	return v.ContractPackage, nil
}
