package wasm

import (
	"bytes"
	"fmt"
	"io"

	"github.com/InterCooperative-Network/icn-core-sub007/encoding/leb128"
	"github.com/InterCooperative-Network/icn-core-sub007/errors"
)

// Op is a wasm opcode.
type Op uint8

func (op Op) String() string {
	if ops[op].name == "" {
		return fmt.Sprintf("op(0x%02x)", uint8(op))
	}
	return ops[op].name
}

// Instruction is a single decoded instruction: the opcode, its decoded
// immediates, and its total encoded length.
type Instruction struct {
	Op  Op
	Imm []int64
	Len int
}

const (
	Unreachable Op = 0x00
	Nop         Op = 0x01
	Block       Op = 0x02
	Loop        Op = 0x03
	If          Op = 0x04
	Else        Op = 0x05
	End         Op = 0x0b
	Br          Op = 0x0c
	BrIf        Op = 0x0d
	Return      Op = 0x0f
	Call        Op = 0x10

	Drop   Op = 0x1a
	Select Op = 0x1b

	LocalGet  Op = 0x20
	LocalSet  Op = 0x21
	LocalTee  Op = 0x22
	GlobalGet Op = 0x23
	GlobalSet Op = 0x24

	I32Load   Op = 0x28
	I64Load   Op = 0x29
	I32Load8U Op = 0x2d
	I32Store  Op = 0x36
	I64Store  Op = 0x37
	I32Store8 Op = 0x3a

	MemorySize Op = 0x3f
	MemoryGrow Op = 0x40

	I32Const Op = 0x41
	I64Const Op = 0x42

	I32Eqz Op = 0x45
	I32Eq  Op = 0x46
	I32Ne  Op = 0x47
	I32LtS Op = 0x48
	I32GtS Op = 0x4a
	I32LeS Op = 0x4c
	I32GeS Op = 0x4e

	I64Eqz Op = 0x50
	I64Eq  Op = 0x51
	I64Ne  Op = 0x52
	I64LtS Op = 0x53
	I64GtS Op = 0x55
	I64LeS Op = 0x57
	I64GeS Op = 0x59

	I32Add  Op = 0x6a
	I32Sub  Op = 0x6b
	I32Mul  Op = 0x6c
	I32DivS Op = 0x6d
	I32RemS Op = 0x6f
	I32And  Op = 0x71
	I32Or   Op = 0x72
	I32Xor  Op = 0x73
	I32Shl  Op = 0x74
	I32ShrS Op = 0x75
	I32ShrU Op = 0x76

	I64Add  Op = 0x7c
	I64Sub  Op = 0x7d
	I64Mul  Op = 0x7e
	I64DivS Op = 0x7f
	I64RemS Op = 0x81
	I64And  Op = 0x83
	I64Or   Op = 0x84
	I64Xor  Op = 0x85
	I64Shl  Op = 0x86
	I64ShrS Op = 0x87
	I64ShrU Op = 0x88

	I32WrapI64    Op = 0xa7
	I64ExtendI32S Op = 0xac
	I64ExtendI32U Op = 0xad
)

// immKind says how to decode the immediate bytes that follow an opcode.
type immKind uint8

const (
	immNone      immKind = iota
	immBlockType         // one blocktype byte
	immIndex             // one u32: label, local, global or function index
	immMemArg            // two u32s: alignment exponent, byte offset
	immI32               // one s32
	immI64               // one s64
	immReserved          // one fixed 0x00 byte
)

type opInfo struct {
	op   Op
	name string
	imm  immKind
}

var ops = [256]opInfo{
	Unreachable: {Unreachable, "unreachable", immNone},
	Nop:         {Nop, "nop", immNone},
	Block:       {Block, "block", immBlockType},
	Loop:        {Loop, "loop", immBlockType},
	If:          {If, "if", immBlockType},
	Else:        {Else, "else", immNone},
	End:         {End, "end", immNone},
	Br:          {Br, "br", immIndex},
	BrIf:        {BrIf, "br_if", immIndex},
	Return:      {Return, "return", immNone},
	Call:        {Call, "call", immIndex},

	Drop:   {Drop, "drop", immNone},
	Select: {Select, "select", immNone},

	LocalGet:  {LocalGet, "local.get", immIndex},
	LocalSet:  {LocalSet, "local.set", immIndex},
	LocalTee:  {LocalTee, "local.tee", immIndex},
	GlobalGet: {GlobalGet, "global.get", immIndex},
	GlobalSet: {GlobalSet, "global.set", immIndex},

	I32Load:   {I32Load, "i32.load", immMemArg},
	I64Load:   {I64Load, "i64.load", immMemArg},
	I32Load8U: {I32Load8U, "i32.load8_u", immMemArg},
	I32Store:  {I32Store, "i32.store", immMemArg},
	I64Store:  {I64Store, "i64.store", immMemArg},
	I32Store8: {I32Store8, "i32.store8", immMemArg},

	MemorySize: {MemorySize, "memory.size", immReserved},
	MemoryGrow: {MemoryGrow, "memory.grow", immReserved},

	I32Const: {I32Const, "i32.const", immI32},
	I64Const: {I64Const, "i64.const", immI64},

	I32Eqz: {I32Eqz, "i32.eqz", immNone},
	I32Eq:  {I32Eq, "i32.eq", immNone},
	I32Ne:  {I32Ne, "i32.ne", immNone},
	I32LtS: {I32LtS, "i32.lt_s", immNone},
	I32GtS: {I32GtS, "i32.gt_s", immNone},
	I32LeS: {I32LeS, "i32.le_s", immNone},
	I32GeS: {I32GeS, "i32.ge_s", immNone},

	I64Eqz: {I64Eqz, "i64.eqz", immNone},
	I64Eq:  {I64Eq, "i64.eq", immNone},
	I64Ne:  {I64Ne, "i64.ne", immNone},
	I64LtS: {I64LtS, "i64.lt_s", immNone},
	I64GtS: {I64GtS, "i64.gt_s", immNone},
	I64LeS: {I64LeS, "i64.le_s", immNone},
	I64GeS: {I64GeS, "i64.ge_s", immNone},

	I32Add:  {I32Add, "i32.add", immNone},
	I32Sub:  {I32Sub, "i32.sub", immNone},
	I32Mul:  {I32Mul, "i32.mul", immNone},
	I32DivS: {I32DivS, "i32.div_s", immNone},
	I32RemS: {I32RemS, "i32.rem_s", immNone},
	I32And:  {I32And, "i32.and", immNone},
	I32Or:   {I32Or, "i32.or", immNone},
	I32Xor:  {I32Xor, "i32.xor", immNone},
	I32Shl:  {I32Shl, "i32.shl", immNone},
	I32ShrS: {I32ShrS, "i32.shr_s", immNone},
	I32ShrU: {I32ShrU, "i32.shr_u", immNone},

	I64Add:  {I64Add, "i64.add", immNone},
	I64Sub:  {I64Sub, "i64.sub", immNone},
	I64Mul:  {I64Mul, "i64.mul", immNone},
	I64DivS: {I64DivS, "i64.div_s", immNone},
	I64RemS: {I64RemS, "i64.rem_s", immNone},
	I64And:  {I64And, "i64.and", immNone},
	I64Or:   {I64Or, "i64.or", immNone},
	I64Xor:  {I64Xor, "i64.xor", immNone},
	I64Shl:  {I64Shl, "i64.shl", immNone},
	I64ShrS: {I64ShrS, "i64.shr_s", immNone},
	I64ShrU: {I64ShrU, "i64.shr_u", immNone},

	I32WrapI64:    {I32WrapI64, "i32.wrap_i64", immNone},
	I64ExtendI32S: {I64ExtendI32S, "i64.extend_i32_s", immNone},
	I64ExtendI32U: {I64ExtendI32U, "i64.extend_i32_u", immNone},
}

var (
	ErrUnknownOp    = errors.New("unknown opcode")
	ErrShortProgram = errors.New("instruction stream ends mid-instruction")
)

// ParseOp parses the instruction at position pc in body, returning the
// decoded instruction (opcode plus any immediates).
func ParseOp(body []byte, pc int) (inst Instruction, err error) {
	if pc >= len(body) {
		return inst, ErrShortProgram
	}
	opcode := Op(body[pc])
	info := ops[opcode]
	if info.name == "" {
		return inst, errors.Wrapf(ErrUnknownOp, "0x%02x at %d", uint8(opcode), pc)
	}
	inst.Op = opcode
	inst.Len = 1

	r := bytes.NewReader(body[pc+1:])
	readIndex := func() error {
		v, n, err := leb128.ReadUnsigned32(r)
		if err != nil {
			return err
		}
		inst.Imm = append(inst.Imm, int64(v))
		inst.Len += n
		return nil
	}

	switch info.imm {
	case immNone:

	case immBlockType:
		if pc+1 >= len(body) {
			return inst, ErrShortProgram
		}
		bt := BlockType(body[pc+1])
		if bt != BlockVoid && !validValType(ValType(bt)) {
			return inst, errors.Wrapf(ErrUnknownOp, "blocktype 0x%02x at %d", uint8(bt), pc+1)
		}
		inst.Imm = append(inst.Imm, int64(bt))
		inst.Len++

	case immIndex:
		err = readIndex()

	case immMemArg:
		err = readIndex()
		if err == nil {
			err = readIndex()
		}

	case immI32:
		var v int64
		var n int
		v, n, err = leb128.ReadSigned(r)
		if err == nil && int64(int32(v)) != v {
			err = leb128.ErrRange
		}
		if err == nil {
			inst.Imm = append(inst.Imm, v)
			inst.Len += n
		}

	case immI64:
		var v int64
		var n int
		v, n, err = leb128.ReadSigned(r)
		if err == nil {
			inst.Imm = append(inst.Imm, v)
			inst.Len += n
		}

	case immReserved:
		if pc+1 >= len(body) {
			return inst, ErrShortProgram
		}
		if body[pc+1] != 0 {
			return inst, errors.Wrapf(ErrUnknownOp, "nonzero reserved byte at %d", pc+1)
		}
		inst.Len++
	}
	if err != nil {
		if errors.Root(err) == io.EOF {
			err = ErrShortProgram
		}
		return inst, errors.Wrapf(err, "immediate of %s at %d", inst.Op, pc)
	}
	return inst, nil
}

// render prints one instruction the way wat spells it.
func (inst Instruction) render() string {
	info := ops[inst.Op]
	switch info.imm {
	case immBlockType:
		bt := BlockType(inst.Imm[0])
		if bt == BlockVoid {
			return info.name
		}
		return info.name + " " + bt.String()
	case immIndex:
		return fmt.Sprintf("%s %d", info.name, inst.Imm[0])
	case immMemArg:
		if inst.Imm[1] == 0 {
			return info.name
		}
		return fmt.Sprintf("%s offset=%d", info.name, inst.Imm[1])
	case immI32, immI64:
		return fmt.Sprintf("%s %d", info.name, inst.Imm[0])
	}
	return info.name
}
