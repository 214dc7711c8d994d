package wasmgen

import "math"

const (
	opUnreachable = 0x00
	opBlock       = 0x02
	opLoop        = 0x03
	opIf          = 0x04
	opElse        = 0x05
	opEnd         = 0x0b
	opBr          = 0x0c
	opBrIf        = 0x0d
	opReturn      = 0x0f
	opCall        = 0x10
	opDrop        = 0x1a
	opSelect      = 0x1b
	opLocalGet    = 0x20
	opLocalSet    = 0x21
	opLocalTee    = 0x22
	opGlobalGet   = 0x23
	opGlobalSet   = 0x24
	opI32Load     = 0x28
	opI64Load     = 0x29
	opF64Load     = 0x2b
	opI32Load8U   = 0x2d
	opI32Store    = 0x36
	opI64Store    = 0x37
	opF64Store    = 0x39
	opI32Store8   = 0x3a
	opMemorySize  = 0x3f
	opMemoryGrow  = 0x40
	opI32Const    = 0x41
	opI64Const    = 0x42
	opF64Const    = 0x44
	opI32Eqz      = 0x45
	opI32Eq       = 0x46
	opI32Ne       = 0x47
	opI32LtS      = 0x48
	opI32LtU      = 0x49
	opI32GtU      = 0x4b
	opI32GeU      = 0x4f
	opI64Eqz      = 0x50
	opI64LtS      = 0x53
	opI64GtS      = 0x55
	opI64GeU      = 0x5a
	opI32Add      = 0x6a
	opI32Sub      = 0x6b
	opI32Mul      = 0x6c
	opI32And      = 0x71
	opI32Shl      = 0x74
	opI32ShrU     = 0x76
	opI64Add      = 0x7c
	opI64Sub      = 0x7d
	opI64Mul      = 0x7e
	opI64RemS     = 0x81
	opF64Add      = 0xa0
	opF64Mul      = 0xa2
	opF64Div      = 0xa3
	opI32WrapI64  = 0xa7
	opI64ExtendS  = 0xac
	opI64ExtendU  = 0xad
	opF64ConvertU = 0xb8
	blockEmpty    = 0x40
)

// Code assembles a function body. Methods append one instruction each and
// return the receiver so bodies read as instruction sequences.
type Code struct {
	w      writer
	locals []ValType
	params int
}

// NewCode starts a body for a function with the given number of params.
// Locals declared with Local are numbered after them.
func NewCode(params int) *Code {
	return &Code{params: params}
}

// Local declares a local and returns its index.
func (c *Code) Local(t ValType) uint32 {
	c.locals = append(c.locals, t)
	return uint32(c.params + len(c.locals) - 1)
}

func (c *Code) finish() []byte {
	c.w.byte(opEnd)
	return c.w.bytes()
}

func (c *Code) op(b byte) *Code {
	c.w.byte(b)
	return c
}

func (c *Code) opIdx(b byte, idx uint32) *Code {
	c.w.byte(b)
	c.w.u32(idx)
	return c
}

// mem writes a memory immediate; align is log2 of the access width.
func (c *Code) mem(b byte, align, offset uint32) *Code {
	c.w.byte(b)
	c.w.u32(align)
	c.w.u32(offset)
	return c
}

func (c *Code) Unreachable() *Code { return c.op(opUnreachable) }
func (c *Code) Return() *Code      { return c.op(opReturn) }
func (c *Code) Drop() *Code        { return c.op(opDrop) }
func (c *Code) Select() *Code      { return c.op(opSelect) }
func (c *Code) End() *Code         { return c.op(opEnd) }
func (c *Code) Else() *Code        { return c.op(opElse) }

// Block opens a block with no result.
func (c *Code) Block() *Code {
	c.w.byte(opBlock)
	c.w.byte(blockEmpty)
	return c
}

// Loop opens a loop with no result.
func (c *Code) Loop() *Code {
	c.w.byte(opLoop)
	c.w.byte(blockEmpty)
	return c
}

// If opens an if. With a result type both arms must leave one value.
func (c *Code) If(result ...ValType) *Code {
	c.w.byte(opIf)
	if len(result) == 0 {
		c.w.byte(blockEmpty)
	} else {
		c.w.byte(byte(result[0]))
	}
	return c
}

func (c *Code) Br(depth uint32) *Code      { return c.opIdx(opBr, depth) }
func (c *Code) BrIf(depth uint32) *Code    { return c.opIdx(opBrIf, depth) }
func (c *Code) Call(fn uint32) *Code       { return c.opIdx(opCall, fn) }
func (c *Code) LocalGet(i uint32) *Code    { return c.opIdx(opLocalGet, i) }
func (c *Code) LocalSet(i uint32) *Code    { return c.opIdx(opLocalSet, i) }
func (c *Code) LocalTee(i uint32) *Code    { return c.opIdx(opLocalTee, i) }
func (c *Code) GlobalGet(i uint32) *Code   { return c.opIdx(opGlobalGet, i) }
func (c *Code) GlobalSet(i uint32) *Code   { return c.opIdx(opGlobalSet, i) }
func (c *Code) I32Load(off uint32) *Code   { return c.mem(opI32Load, 2, off) }
func (c *Code) I64Load(off uint32) *Code   { return c.mem(opI64Load, 3, off) }
func (c *Code) F64Load(off uint32) *Code   { return c.mem(opF64Load, 3, off) }
func (c *Code) I32Load8U(off uint32) *Code { return c.mem(opI32Load8U, 0, off) }
func (c *Code) I32Store(off uint32) *Code  { return c.mem(opI32Store, 2, off) }
func (c *Code) I64Store(off uint32) *Code  { return c.mem(opI64Store, 3, off) }
func (c *Code) F64Store(off uint32) *Code  { return c.mem(opF64Store, 3, off) }
func (c *Code) I32Store8(off uint32) *Code { return c.mem(opI32Store8, 0, off) }

func (c *Code) MemorySize() *Code {
	c.w.byte(opMemorySize)
	c.w.byte(0)
	return c
}

func (c *Code) MemoryGrow() *Code {
	c.w.byte(opMemoryGrow)
	c.w.byte(0)
	return c
}

func (c *Code) I32Const(v int32) *Code {
	c.w.byte(opI32Const)
	c.w.s64(int64(v))
	return c
}

func (c *Code) I64Const(v int64) *Code {
	c.w.byte(opI64Const)
	c.w.s64(v)
	return c
}

func (c *Code) F64Const(v float64) *Code {
	c.w.byte(opF64Const)
	c.w.u64le(math.Float64bits(v))
	return c
}

func (c *Code) I32Eqz() *Code         { return c.op(opI32Eqz) }
func (c *Code) I32Eq() *Code          { return c.op(opI32Eq) }
func (c *Code) I32Ne() *Code          { return c.op(opI32Ne) }
func (c *Code) I32LtS() *Code         { return c.op(opI32LtS) }
func (c *Code) I32LtU() *Code         { return c.op(opI32LtU) }
func (c *Code) I32GtU() *Code         { return c.op(opI32GtU) }
func (c *Code) I32GeU() *Code         { return c.op(opI32GeU) }
func (c *Code) I64Eqz() *Code         { return c.op(opI64Eqz) }
func (c *Code) I64LtS() *Code         { return c.op(opI64LtS) }
func (c *Code) I64GtS() *Code         { return c.op(opI64GtS) }
func (c *Code) I64GeU() *Code         { return c.op(opI64GeU) }
func (c *Code) I32Add() *Code         { return c.op(opI32Add) }
func (c *Code) I32Sub() *Code         { return c.op(opI32Sub) }
func (c *Code) I32Mul() *Code         { return c.op(opI32Mul) }
func (c *Code) I32And() *Code         { return c.op(opI32And) }
func (c *Code) I32Shl() *Code         { return c.op(opI32Shl) }
func (c *Code) I32ShrU() *Code        { return c.op(opI32ShrU) }
func (c *Code) I64Add() *Code         { return c.op(opI64Add) }
func (c *Code) I64Sub() *Code         { return c.op(opI64Sub) }
func (c *Code) I64Mul() *Code         { return c.op(opI64Mul) }
func (c *Code) I64RemS() *Code        { return c.op(opI64RemS) }
func (c *Code) F64Add() *Code         { return c.op(opF64Add) }
func (c *Code) F64Mul() *Code         { return c.op(opF64Mul) }
func (c *Code) F64Div() *Code         { return c.op(opF64Div) }
func (c *Code) I32WrapI64() *Code     { return c.op(opI32WrapI64) }
func (c *Code) I64ExtendI32S() *Code  { return c.op(opI64ExtendS) }
func (c *Code) I64ExtendI32U() *Code  { return c.op(opI64ExtendU) }
func (c *Code) F64ConvertI32U() *Code { return c.op(opF64ConvertU) }
