package types

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// AccessRights is the permission set carried by a URef.
type AccessRights uint8

const (
	AccessNone         AccessRights = 0
	AccessRead         AccessRights = 1
	AccessWrite        AccessRights = 2
	AccessAdd          AccessRights = 4
	AccessReadAddWrite AccessRights = AccessRead | AccessWrite | AccessAdd
)

// Allows reports whether every right in want is present.
func (r AccessRights) Allows(want AccessRights) bool {
	return r&want == want
}

// URef is an unforgeable reference to a single storage slot.
type URef struct {
	Addr   Hash
	Rights AccessRights
}

func NewURef(addr Hash, rights AccessRights) URef {
	return URef{Addr: addr, Rights: rights}
}

func (u URef) String() string {
	return fmt.Sprintf("uref-%s-%03o", u.Addr, u.Rights)
}

func (u URef) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

func (u *URef) UnmarshalText(text []byte) error {
	k, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	parsed, ok := k.IntoURef()
	if !ok {
		return errors.Errorf("not a uref: %q", text)
	}
	*u = parsed
	return nil
}

// KeyTag selects the variant of a Key.
type KeyTag uint8

const (
	KeyTagAccount KeyTag = 0
	KeyTagHash    KeyTag = 1
	KeyTagURef    KeyTag = 2
)

// KeySize is the wire size of a Key: tag, address and rights.
const KeySize = 1 + HashLength + 1

// URefSize is the wire size of a URef: address and rights.
const URefSize = HashLength + 1

// Key addresses a value in global state.
type Key struct {
	Tag    KeyTag
	Addr   Hash
	Rights AccessRights
}

func AccountKey(a AccountHash) Key { return Key{Tag: KeyTagAccount, Addr: Hash(a)} }
func HashKey(h Hash) Key           { return Key{Tag: KeyTagHash, Addr: h} }
func URefKey(u URef) Key           { return Key{Tag: KeyTagURef, Addr: u.Addr, Rights: u.Rights} }

func ContractKey(h ContractHash) Key               { return HashKey(Hash(h)) }
func ContractPackageKey(h ContractPackageHash) Key { return HashKey(Hash(h)) }
func ContractWasmKey(h ContractWasmHash) Key       { return HashKey(Hash(h)) }

// IntoURef returns the URef if the key is a URef variant.
func (k Key) IntoURef() (URef, bool) {
	if k.Tag != KeyTagURef {
		return URef{}, false
	}
	return URef{Addr: k.Addr, Rights: k.Rights}, true
}

// IntoHash returns the hash if the key is a Hash variant.
func (k Key) IntoHash() (Hash, bool) {
	if k.Tag != KeyTagHash {
		return ZeroHash, false
	}
	return k.Addr, true
}

// IntoAccount returns the account hash if the key is an Account variant.
func (k Key) IntoAccount() (AccountHash, bool) {
	if k.Tag != KeyTagAccount {
		return ZeroAccountHash, false
	}
	return AccountHash(k.Addr), true
}

// Normalize drops the access rights, which do not take part in addressing.
func (k Key) Normalize() Key {
	k.Rights = AccessNone
	return k
}

// StateID is the identity of the addressed value in global state.
func (k Key) StateID() string {
	return k.Normalize().String()
}

func (k Key) String() string {
	switch k.Tag {
	case KeyTagAccount:
		return AccountHash(k.Addr).String()
	case KeyTagHash:
		return "hash-" + k.Addr.String()
	case KeyTagURef:
		return URef{Addr: k.Addr, Rights: k.Rights}.String()
	default:
		return fmt.Sprintf("key-%d-%s", k.Tag, k.Addr)
	}
}

func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Key) UnmarshalText(text []byte) error {
	parsed, err := ParseKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKey parses the String form of a key.
func ParseKey(s string) (Key, error) {
	switch {
	case strings.HasPrefix(s, "account-hash-"):
		h, err := HashFromString(strings.TrimPrefix(s, "account-hash-"))
		if err != nil {
			return Key{}, err
		}
		return AccountKey(AccountHash(h)), nil
	case strings.HasPrefix(s, "hash-"):
		h, err := HashFromString(strings.TrimPrefix(s, "hash-"))
		if err != nil {
			return Key{}, err
		}
		return HashKey(h), nil
	case strings.HasPrefix(s, "uref-"):
		parts := strings.Split(strings.TrimPrefix(s, "uref-"), "-")
		if len(parts) != 2 {
			return Key{}, errors.Errorf("invalid uref %q", s)
		}
		h, err := HashFromString(parts[0])
		if err != nil {
			return Key{}, err
		}
		rights, err := strconv.ParseUint(parts[1], 8, 8)
		if err != nil {
			return Key{}, errors.Wrapf(err, "invalid access rights in %q", s)
		}
		return URefKey(NewURef(h, AccessRights(rights))), nil
	default:
		return Key{}, errors.Errorf("unknown key format %q", s)
	}
}

// ToBytes encodes the key as tag, address, rights.
func (k Key) ToBytes() []byte {
	out := make([]byte, 0, KeySize)
	out = append(out, byte(k.Tag))
	out = append(out, k.Addr[:]...)
	return append(out, byte(k.Rights))
}

// KeyFromBytes decodes the output of ToBytes.
func KeyFromBytes(b []byte) (Key, error) {
	if len(b) < KeySize {
		return Key{}, ErrEarlyEndOfStream
	}
	if len(b) > KeySize {
		return Key{}, ErrLeftOverBytes
	}
	k := Key{Tag: KeyTag(b[0]), Rights: AccessRights(b[KeySize-1])}
	if k.Tag > KeyTagURef {
		return Key{}, ErrFormatting
	}
	copy(k.Addr[:], b[1:1+HashLength])
	return k, nil
}

// NamedKey is a single entry of NamedKeys in its wire form.
type NamedKey struct {
	Name string
	Key  Key
}

// NamedKeys maps names to keys for an account or a contract.
type NamedKeys map[string]Key

func (n NamedKeys) Clone() NamedKeys {
	out := make(NamedKeys, len(n))
	for name, key := range n {
		out[name] = key
	}
	return out
}

// List returns the entries sorted by name.
func (n NamedKeys) List() []NamedKey {
	out := make([]NamedKey, 0, len(n))
	for name, key := range n {
		out = append(out, NamedKey{Name: name, Key: key})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// NamedKeysFromList builds NamedKeys, rejecting duplicate names.
func NamedKeysFromList(list []NamedKey) (NamedKeys, error) {
	out := make(NamedKeys, len(list))
	for _, nk := range list {
		if _, ok := out[nk.Name]; ok {
			return nil, ErrDuplicateKey
		}
		out[nk.Name] = nk.Key
	}
	return out, nil
}
