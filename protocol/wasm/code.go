package wasm

import (
	"fmt"

	"github.com/InterCooperative-Network/icn-core-sub007/encoding/leb128"
)

// Func builds the body of one local function. Emit methods append
// instructions and return the receiver so calls chain. Structured
// instructions (Block, Loop, If, Else) must be closed with End; the
// end opcode that closes the function itself is appended by
// Module.Encode and must not be emitted here.
//
// Emit methods panic on immediate misuse. That is a defect in the
// caller, not an input error.
type Func struct {
	Index   uint32 // position in the function index space
	typ     FuncType
	typeIdx uint32
	locals  []ValType
	body    []byte
}

// Type returns the function's signature.
func (f *Func) Type() FuncType {
	return f.typ
}

// AddLocal declares another local of type t and returns its index in
// the local index space, where indices 0..len(params)-1 name the
// parameters.
func (f *Func) AddLocal(t ValType) uint32 {
	f.locals = append(f.locals, t)
	return uint32(len(f.typ.Params) + len(f.locals) - 1)
}

// Op emits an instruction that takes no immediate.
func (f *Func) Op(op Op) *Func {
	if ops[op].name == "" {
		panic(fmt.Sprintf("wasm: emit of unknown opcode 0x%02x", uint8(op)))
	}
	if ops[op].imm != immNone {
		panic(fmt.Sprintf("wasm: %s requires an immediate", op))
	}
	f.body = append(f.body, byte(op))
	return f
}

func (f *Func) I32Const(v int32) *Func {
	f.body = append(f.body, byte(I32Const))
	f.body = leb128.AppendSigned(f.body, int64(v))
	return f
}

func (f *Func) I64Const(v int64) *Func {
	f.body = append(f.body, byte(I64Const))
	f.body = leb128.AppendSigned(f.body, v)
	return f
}

func (f *Func) LocalGet(i uint32) *Func  { return f.index(LocalGet, i) }
func (f *Func) LocalSet(i uint32) *Func  { return f.index(LocalSet, i) }
func (f *Func) LocalTee(i uint32) *Func  { return f.index(LocalTee, i) }
func (f *Func) GlobalGet(i uint32) *Func { return f.index(GlobalGet, i) }
func (f *Func) GlobalSet(i uint32) *Func { return f.index(GlobalSet, i) }

// Call emits a call to the function at index fn in the function index
// space (imports included).
func (f *Func) Call(fn uint32) *Func { return f.index(Call, fn) }

// Br emits a branch to the depth-th enclosing structured instruction,
// where 0 is the innermost.
func (f *Func) Br(depth uint32) *Func   { return f.index(Br, depth) }
func (f *Func) BrIf(depth uint32) *Func { return f.index(BrIf, depth) }

func (f *Func) Block(bt BlockType) *Func { return f.block(Block, bt) }
func (f *Func) Loop(bt BlockType) *Func  { return f.block(Loop, bt) }
func (f *Func) If(bt BlockType) *Func    { return f.block(If, bt) }
func (f *Func) Else() *Func              { return f.Op(Else) }
func (f *Func) End() *Func               { return f.Op(End) }

// Load emits a load instruction with natural alignment and the given
// constant byte offset.
func (f *Func) Load(op Op, offset uint32) *Func { return f.mem(op, offset) }

// Store emits a store instruction with natural alignment and the
// given constant byte offset.
func (f *Func) Store(op Op, offset uint32) *Func { return f.mem(op, offset) }

func (f *Func) MemorySize() *Func { return f.reserved(MemorySize) }
func (f *Func) MemoryGrow() *Func { return f.reserved(MemoryGrow) }

func (f *Func) index(op Op, i uint32) *Func {
	f.body = append(f.body, byte(op))
	f.body = leb128.AppendUnsigned(f.body, uint64(i))
	return f
}

func (f *Func) block(op Op, bt BlockType) *Func {
	f.body = append(f.body, byte(op), byte(bt))
	return f
}

func (f *Func) mem(op Op, offset uint32) *Func {
	var align uint64
	switch op {
	case I32Load8U, I32Store8:
		align = 0
	case I32Load, I32Store:
		align = 2
	case I64Load, I64Store:
		align = 3
	default:
		panic(fmt.Sprintf("wasm: %s is not a memory access", op))
	}
	f.body = append(f.body, byte(op))
	f.body = leb128.AppendUnsigned(f.body, align)
	f.body = leb128.AppendUnsigned(f.body, uint64(offset))
	return f
}

func (f *Func) reserved(op Op) *Func {
	f.body = append(f.body, byte(op), 0x00)
	return f
}
