package types

import (
	"encoding/binary"
	"fmt"

	"github.com/near/borsh-go"
)

// CLType tags the type of a CLValue.
type CLType uint8

const (
	CLTypeBool   CLType = 0
	CLTypeI32    CLType = 1
	CLTypeI64    CLType = 2
	CLTypeU8     CLType = 3
	CLTypeU32    CLType = 4
	CLTypeU64    CLType = 5
	CLTypeUnit   CLType = 9
	CLTypeString CLType = 10
	CLTypeKey    CLType = 11
	CLTypeURef   CLType = 12
)

var clTypeNames = map[CLType]string{
	CLTypeBool:   "Bool",
	CLTypeI32:    "I32",
	CLTypeI64:    "I64",
	CLTypeU8:     "U8",
	CLTypeU32:    "U32",
	CLTypeU64:    "U64",
	CLTypeUnit:   "Unit",
	CLTypeString: "String",
	CLTypeKey:    "Key",
	CLTypeURef:   "URef",
}

func (t CLType) String() string {
	if name, ok := clTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("CLType(%d)", uint8(t))
}

// Valid reports whether t is a type the host understands.
func (t CLType) Valid() bool {
	_, ok := clTypeNames[t]
	return ok
}

// size returns the payload size of fixed-width types.
func (t CLType) size() (int, bool) {
	switch t {
	case CLTypeBool, CLTypeU8:
		return 1, true
	case CLTypeI32, CLTypeU32:
		return 4, true
	case CLTypeI64, CLTypeU64:
		return 8, true
	case CLTypeUnit:
		return 0, true
	case CLTypeKey:
		return KeySize, true
	case CLTypeURef:
		return URefSize, true
	default:
		return 0, false
	}
}

// CLValue is a typed value as stored by the host and exchanged with contracts.
type CLValue struct {
	Type  CLType `json:"cl_type"`
	Bytes []byte `json:"bytes"`
}

func mustSerialize(v any) []byte {
	b, err := borsh.Serialize(v)
	if err != nil {
		panic(fmt.Sprintf("borsh: serialize %T: %v", v, err))
	}
	return b
}

func I32(v int32) CLValue  { return CLValue{Type: CLTypeI32, Bytes: mustSerialize(v)} }
func I64(v int64) CLValue  { return CLValue{Type: CLTypeI64, Bytes: mustSerialize(v)} }
func U8(v uint8) CLValue   { return CLValue{Type: CLTypeU8, Bytes: []byte{v}} }
func U32(v uint32) CLValue { return CLValue{Type: CLTypeU32, Bytes: mustSerialize(v)} }
func U64(v uint64) CLValue { return CLValue{Type: CLTypeU64, Bytes: mustSerialize(v)} }
func Unit() CLValue        { return CLValue{Type: CLTypeUnit, Bytes: []byte{}} }
func String(v string) CLValue {
	return CLValue{Type: CLTypeString, Bytes: mustSerialize(v)}
}

func Bool(v bool) CLValue {
	if v {
		return CLValue{Type: CLTypeBool, Bytes: []byte{1}}
	}
	return CLValue{Type: CLTypeBool, Bytes: []byte{0}}
}

func KeyValue(k Key) CLValue { return CLValue{Type: CLTypeKey, Bytes: k.ToBytes()} }

func URefValue(u URef) CLValue {
	return CLValue{Type: CLTypeURef, Bytes: append(append([]byte{}, u.Addr[:]...), byte(u.Rights))}
}

// check verifies the type and the payload length of v.
func (v CLValue) check(want CLType) error {
	if v.Type != want {
		return ErrCLTypeMismatch
	}
	return v.validate()
}

func (v CLValue) validate() error {
	if !v.Type.Valid() {
		return ErrFormatting
	}
	if size, fixed := v.Type.size(); fixed {
		switch {
		case len(v.Bytes) < size:
			return ErrEarlyEndOfStream
		case len(v.Bytes) > size:
			return ErrLeftOverBytes
		}
		return nil
	}
	// strings carry a u32 length prefix
	if len(v.Bytes) < 4 {
		return ErrEarlyEndOfStream
	}
	n := int(binary.LittleEndian.Uint32(v.Bytes))
	switch {
	case len(v.Bytes)-4 < n:
		return ErrEarlyEndOfStream
	case len(v.Bytes)-4 > n:
		return ErrLeftOverBytes
	}
	return nil
}

func (v CLValue) Int32() (int32, error) {
	var out int32
	if err := v.check(CLTypeI32); err != nil {
		return 0, err
	}
	if err := borsh.Deserialize(&out, v.Bytes); err != nil {
		return 0, ErrDeserialize
	}
	return out, nil
}

func (v CLValue) Int64() (int64, error) {
	var out int64
	if err := v.check(CLTypeI64); err != nil {
		return 0, err
	}
	if err := borsh.Deserialize(&out, v.Bytes); err != nil {
		return 0, ErrDeserialize
	}
	return out, nil
}

func (v CLValue) Uint32() (uint32, error) {
	var out uint32
	if err := v.check(CLTypeU32); err != nil {
		return 0, err
	}
	if err := borsh.Deserialize(&out, v.Bytes); err != nil {
		return 0, ErrDeserialize
	}
	return out, nil
}

func (v CLValue) Uint64() (uint64, error) {
	var out uint64
	if err := v.check(CLTypeU64); err != nil {
		return 0, err
	}
	if err := borsh.Deserialize(&out, v.Bytes); err != nil {
		return 0, ErrDeserialize
	}
	return out, nil
}

func (v CLValue) Uint8() (uint8, error) {
	if err := v.check(CLTypeU8); err != nil {
		return 0, err
	}
	return v.Bytes[0], nil
}

func (v CLValue) BoolValue() (bool, error) {
	if err := v.check(CLTypeBool); err != nil {
		return false, err
	}
	switch v.Bytes[0] {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, ErrFormatting
	}
}

func (v CLValue) StringValue() (string, error) {
	var out string
	if err := v.check(CLTypeString); err != nil {
		return "", err
	}
	if err := borsh.Deserialize(&out, v.Bytes); err != nil {
		return "", ErrDeserialize
	}
	return out, nil
}

func (v CLValue) KeyValue() (Key, error) {
	if err := v.check(CLTypeKey); err != nil {
		return Key{}, err
	}
	return KeyFromBytes(v.Bytes)
}

func (v CLValue) URefValue() (URef, error) {
	if err := v.check(CLTypeURef); err != nil {
		return URef{}, err
	}
	var u URef
	copy(u.Addr[:], v.Bytes[:HashLength])
	u.Rights = AccessRights(v.Bytes[HashLength])
	return u, nil
}

// WrappingAdd adds delta to v. Both must carry the same integer type; overflow
// wraps around.
func (v CLValue) WrappingAdd(delta CLValue) (CLValue, error) {
	if v.Type != delta.Type {
		return CLValue{}, ErrCLTypeMismatch
	}
	switch v.Type {
	case CLTypeI32:
		a, err := v.Int32()
		if err != nil {
			return CLValue{}, err
		}
		b, err := delta.Int32()
		if err != nil {
			return CLValue{}, err
		}
		return I32(a + b), nil
	case CLTypeI64:
		a, err := v.Int64()
		if err != nil {
			return CLValue{}, err
		}
		b, err := delta.Int64()
		if err != nil {
			return CLValue{}, err
		}
		return I64(a + b), nil
	case CLTypeU8:
		a, err := v.Uint8()
		if err != nil {
			return CLValue{}, err
		}
		b, err := delta.Uint8()
		if err != nil {
			return CLValue{}, err
		}
		return U8(a + b), nil
	case CLTypeU32:
		a, err := v.Uint32()
		if err != nil {
			return CLValue{}, err
		}
		b, err := delta.Uint32()
		if err != nil {
			return CLValue{}, err
		}
		return U32(a + b), nil
	case CLTypeU64:
		a, err := v.Uint64()
		if err != nil {
			return CLValue{}, err
		}
		b, err := delta.Uint64()
		if err != nil {
			return CLValue{}, err
		}
		return U64(a + b), nil
	default:
		return CLValue{}, ErrCLTypeMismatch
	}
}

// ToBytes encodes the value for the contract boundary: one type byte followed by
// the payload.
func (v CLValue) ToBytes() []byte {
	out := make([]byte, 0, 1+len(v.Bytes))
	out = append(out, byte(v.Type))
	return append(out, v.Bytes...)
}

// CLValueFromBytes decodes the output of ToBytes.
func CLValueFromBytes(b []byte) (CLValue, error) {
	if len(b) == 0 {
		return CLValue{}, ErrEarlyEndOfStream
	}
	v := CLValue{Type: CLType(b[0]), Bytes: append([]byte{}, b[1:]...)}
	if err := v.validate(); err != nil {
		return CLValue{}, err
	}
	return v, nil
}

func (v CLValue) String() string {
	var (
		out any
		err error
	)
	switch v.Type {
	case CLTypeI32:
		out, err = v.Int32()
	case CLTypeI64:
		out, err = v.Int64()
	case CLTypeU8:
		out, err = v.Uint8()
	case CLTypeU32:
		out, err = v.Uint32()
	case CLTypeU64:
		out, err = v.Uint64()
	case CLTypeBool:
		out, err = v.BoolValue()
	case CLTypeString:
		out, err = v.StringValue()
	case CLTypeKey:
		out, err = v.KeyValue()
	case CLTypeURef:
		out, err = v.URefValue()
	case CLTypeUnit:
		return "Unit"
	default:
		return fmt.Sprintf("%s(%x)", v.Type, v.Bytes)
	}
	if err != nil {
		return fmt.Sprintf("%s(invalid: %x)", v.Type, v.Bytes)
	}
	return fmt.Sprintf("%s(%v)", v.Type, out)
}
