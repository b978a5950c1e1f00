package wasm

// Opcodes used by Code.
const (
	opUnreachable = 0x00
	opLoop        = 0x03
	opIf          = 0x04
	opElse        = 0x05
	opEnd         = 0x0b
	opBr          = 0x0c
	opReturn      = 0x0f
	opCall        = 0x10
	opDrop        = 0x1a
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opLocalTee    = 0x22
	opI32Load     = 0x28
	opI32Load8U   = 0x2d
	opI32Store    = 0x36
	opI32Const    = 0x41
	opI64Const    = 0x42
	opI32Eqz      = 0x45
	opI32Eq       = 0x46
	opI32Ne       = 0x47
	opI32LtS      = 0x48
	opI32Add      = 0x6a
	opI32Sub      = 0x6b

	blockTypeEmpty = 0x40
)

// Code accumulates the instructions of a function body. The final end opcode is
// added by the module encoder.
type Code struct {
	buf []byte
}

func NewCode() *Code {
	return &Code{}
}

func (c *Code) op(b ...byte) *Code {
	c.buf = append(c.buf, b...)
	return c
}

func (c *Code) I32Const(v int32) *Code {
	c.buf = appendSleb128(append(c.buf, opI32Const), int64(v))
	return c
}

func (c *Code) I64Const(v int64) *Code {
	c.buf = appendSleb128(append(c.buf, opI64Const), v)
	return c
}

func (c *Code) Call(funcIndex uint32) *Code {
	c.buf = appendUleb128(append(c.buf, opCall), uint64(funcIndex))
	return c
}

func (c *Code) LocalGet(i uint32) *Code {
	c.buf = appendUleb128(append(c.buf, opLocalGet), uint64(i))
	return c
}

func (c *Code) LocalSet(i uint32) *Code {
	c.buf = appendUleb128(append(c.buf, opLocalSet), uint64(i))
	return c
}

func (c *Code) LocalTee(i uint32) *Code {
	c.buf = appendUleb128(append(c.buf, opLocalTee), uint64(i))
	return c
}

func (c *Code) memarg(op byte, align, offset uint32) *Code {
	c.buf = append(c.buf, op)
	c.buf = appendUleb128(c.buf, uint64(align))
	c.buf = appendUleb128(c.buf, uint64(offset))
	return c
}

// I32Load8U loads one byte at address+offset, zero extended.
func (c *Code) I32Load8U(offset uint32) *Code { return c.memarg(opI32Load8U, 0, offset) }

// I32Load loads four bytes at address+offset.
func (c *Code) I32Load(offset uint32) *Code { return c.memarg(opI32Load, 2, offset) }

// I32Store stores four bytes at address+offset.
func (c *Code) I32Store(offset uint32) *Code { return c.memarg(opI32Store, 2, offset) }

func (c *Code) I32Eqz() *Code      { return c.op(opI32Eqz) }
func (c *Code) I32Eq() *Code       { return c.op(opI32Eq) }
func (c *Code) I32Ne() *Code       { return c.op(opI32Ne) }
func (c *Code) I32LtS() *Code      { return c.op(opI32LtS) }
func (c *Code) I32Add() *Code      { return c.op(opI32Add) }
func (c *Code) I32Sub() *Code      { return c.op(opI32Sub) }
func (c *Code) Drop() *Code        { return c.op(opDrop) }
func (c *Code) Return() *Code      { return c.op(opReturn) }
func (c *Code) Unreachable() *Code { return c.op(opUnreachable) }

// If opens a block without results, taken when the popped i32 is non-zero.
func (c *Code) If() *Code   { return c.op(opIf, blockTypeEmpty) }
func (c *Code) Else() *Code { return c.op(opElse) }

// Loop opens a block whose label branches back to its start.
func (c *Code) Loop() *Code { return c.op(opLoop, blockTypeEmpty) }

// Br branches to the enclosing block depth levels out.
func (c *Code) Br(depth uint32) *Code {
	c.buf = appendUleb128(append(c.buf, opBr), uint64(depth))
	return c
}
func (c *Code) End() *Code { return c.op(opEnd) }

// Bytes returns the instructions without the trailing end.
func (c *Code) Bytes() []byte {
	return append([]byte(nil), c.buf...)
}
