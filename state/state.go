// Package state holds the global state the engine executes against.
//
// Global state maps keys to stored values. Executions never write to it
// directly: they run against a TrackingCopy and hand back Effects, which are
// applied in one step when the caller commits.
package state

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/govm-net/counter/types"
)

var (
	ErrNotFound    = errors.New("value not found in global state")
	ErrEmptyValue  = errors.New("stored value has no variant set")
	ErrUnknownKind = errors.New("unknown stored value kind")
)

// Kind names the variant held by a StoredValue.
type Kind string

const (
	KindCLValue         Kind = "cl_value"
	KindAccount         Kind = "account"
	KindContract        Kind = "contract"
	KindContractPackage Kind = "contract_package"
	KindContractWasm    Kind = "contract_wasm"
)

// StoredValue is a value in global state. Exactly one field is set.
type StoredValue struct {
	CLValue         *types.CLValue         `json:"cl_value,omitempty"`
	Account         *types.Account         `json:"account,omitempty"`
	Contract        *types.Contract        `json:"contract,omitempty"`
	ContractPackage *types.ContractPackage `json:"contract_package,omitempty"`
	ContractWasm    *types.ContractWasm    `json:"contract_wasm,omitempty"`
}

func NewCLValue(v types.CLValue) StoredValue {
	return StoredValue{CLValue: &v}
}

func NewAccount(a *types.Account) StoredValue {
	return StoredValue{Account: a}
}

func NewContract(c *types.Contract) StoredValue {
	return StoredValue{Contract: c}
}

func NewContractPackage(p *types.ContractPackage) StoredValue {
	return StoredValue{ContractPackage: p}
}

func NewContractWasm(w *types.ContractWasm) StoredValue {
	return StoredValue{ContractWasm: w}
}

func (v StoredValue) Kind() Kind {
	switch {
	case v.CLValue != nil:
		return KindCLValue
	case v.Account != nil:
		return KindAccount
	case v.Contract != nil:
		return KindContract
	case v.ContractPackage != nil:
		return KindContractPackage
	case v.ContractWasm != nil:
		return KindContractWasm
	default:
		return ""
	}
}

// Clone returns a deep copy, so callers may mutate the result freely.
func (v StoredValue) Clone() StoredValue {
	var out StoredValue
	switch {
	case v.CLValue != nil:
		cl := types.CLValue{Type: v.CLValue.Type, Bytes: append([]byte{}, v.CLValue.Bytes...)}
		out.CLValue = &cl
	case v.Account != nil:
		out.Account = v.Account.Clone()
	case v.Contract != nil:
		out.Contract = v.Contract.Clone()
	case v.ContractPackage != nil:
		out.ContractPackage = v.ContractPackage.Clone()
	case v.ContractWasm != nil:
		w := *v.ContractWasm
		w.Bytes = append([]byte(nil), v.ContractWasm.Bytes...)
		out.ContractWasm = &w
	}
	return out
}

// Marshal encodes the value for persistent backends.
func (v StoredValue) Marshal() ([]byte, error) {
	if v.Kind() == "" {
		return nil, ErrEmptyValue
	}
	return json.Marshal(v)
}

// Unmarshal decodes the output of Marshal.
func Unmarshal(data []byte) (StoredValue, error) {
	var v StoredValue
	if err := json.Unmarshal(data, &v); err != nil {
		return StoredValue{}, errors.Wrap(err, "decode stored value")
	}
	if v.Kind() == "" {
		return StoredValue{}, ErrEmptyValue
	}
	return v, nil
}

// Write sets Key to Value.
type Write struct {
	Key   types.Key
	Value StoredValue
}

// Effects is the write set of one execution, sorted by key.
type Effects []Write

// Digest identifies an effect set; persistent backends record it per commit.
func (e Effects) Digest() (types.Hash, error) {
	parts := make([][]byte, 0, 2*len(e))
	for _, w := range e {
		value, err := w.Value.Marshal()
		if err != nil {
			return types.Hash{}, errors.Wrapf(err, "key %s", w.Key)
		}
		parts = append(parts, []byte(w.Key.StateID()), value)
	}
	return types.Blake2b(parts...), nil
}

func (e Effects) sort() {
	sort.Slice(e, func(i, j int) bool { return e[i].Key.StateID() < e[j].Key.StateID() })
}

// Reader reads global state.
type Reader interface {
	// Get returns ErrNotFound for absent keys. Access rights on key are ignored.
	Get(ctx context.Context, key types.Key) (StoredValue, error)
}

// GlobalState is a backend for global state.
type GlobalState interface {
	Reader
	// Apply writes every effect atomically.
	Apply(ctx context.Context, effects Effects) error
	Close() error
}
