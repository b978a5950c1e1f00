// Package types contains shared type definitions and constants
// used by both the host environment and contracts.
package types

import (
	"encoding/binary"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"
)

// HashLength is the size of every hash and address used by the host.
const HashLength = 32

// Hash is a blake2b-256 digest.
type Hash [HashLength]byte

// AccountHash identifies an account.
type AccountHash Hash

// ContractHash identifies a single contract version.
type ContractHash Hash

// ContractPackageHash identifies a contract package, the container of all versions.
type ContractPackageHash Hash

// ContractWasmHash identifies the module bytes backing a contract.
type ContractWasmHash Hash

var (
	ZeroHash        = Hash{}
	ZeroAccountHash = AccountHash{}
)

// Blake2b hashes data with blake2b-256.
func Blake2b(data ...[]byte) Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		// only fails for oversized keys
		panic(err)
	}
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

func (h Hash) String() string                { return hex.EncodeToString(h[:]) }
func (h AccountHash) String() string         { return "account-hash-" + hex.EncodeToString(h[:]) }
func (h ContractHash) String() string        { return "contract-" + hex.EncodeToString(h[:]) }
func (h ContractPackageHash) String() string { return "contract-package-" + hex.EncodeToString(h[:]) }
func (h ContractWasmHash) String() string    { return "contract-wasm-" + hex.EncodeToString(h[:]) }

// MarshalText encodes the hash as hex.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText decodes a hex hash, with or without 0x prefix.
func (h *Hash) UnmarshalText(text []byte) error {
	parsed, err := HashFromString(string(text))
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

func (h AccountHash) MarshalText() ([]byte, error) { return Hash(h).MarshalText() }

func (h *AccountHash) UnmarshalText(text []byte) error {
	return (*Hash)(h).UnmarshalText([]byte(strings.TrimPrefix(string(text), "account-hash-")))
}

func (h ContractHash) MarshalText() ([]byte, error)         { return Hash(h).MarshalText() }
func (h *ContractHash) UnmarshalText(text []byte) error     { return (*Hash)(h).UnmarshalText(text) }
func (h ContractPackageHash) MarshalText() ([]byte, error)  { return Hash(h).MarshalText() }
func (h *ContractPackageHash) UnmarshalText(t []byte) error { return (*Hash)(h).UnmarshalText(t) }
func (h ContractWasmHash) MarshalText() ([]byte, error)     { return Hash(h).MarshalText() }
func (h *ContractWasmHash) UnmarshalText(t []byte) error    { return (*Hash)(h).UnmarshalText(t) }

// HashFromString parses a 32 byte hex string.
func HashFromString(s string) (Hash, error) {
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ZeroHash, errors.Wrapf(err, "invalid hash %q", s)
	}
	if len(raw) != HashLength {
		return ZeroHash, errors.Errorf("invalid hash length %d", len(raw))
	}
	var h Hash
	copy(h[:], raw)
	return h, nil
}

// AddressGenerator derives unique addresses from a seed, usually the deploy hash.
type AddressGenerator struct {
	seed  Hash
	index uint64
}

func NewAddressGenerator(seed Hash) *AddressGenerator {
	return &AddressGenerator{seed: seed}
}

// Next returns blake2b(seed || index) and advances the index.
func (g *AddressGenerator) Next() Hash {
	var idx [8]byte
	binary.LittleEndian.PutUint64(idx[:], g.index)
	g.index++
	return Blake2b(g.seed[:], idx[:])
}
