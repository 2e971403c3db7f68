package wasm

import (
	"reflect"
	"testing"

	"github.com/InterCooperative-Network/icn-core-sub007/errors"
)

func TestParseOp(t *testing.T) {
	cases := []struct {
		hex  string
		want Instruction
	}{
		{"0b", Instruction{Op: End, Len: 1}},
		{"7c", Instruction{Op: I64Add, Len: 1}},
		{"0240", Instruction{Op: Block, Imm: []int64{0x40}, Len: 2}},
		{"047e", Instruction{Op: If, Imm: []int64{0x7e}, Len: 2}},
		{"0d01", Instruction{Op: BrIf, Imm: []int64{1}, Len: 2}},
		{"2003", Instruction{Op: LocalGet, Imm: []int64{3}, Len: 2}},
		{"10ab02", Instruction{Op: Call, Imm: []int64{299}, Len: 3}},
		{"41e58e26", Instruction{Op: I32Const, Imm: []int64{624485}, Len: 4}},
		{"427b", Instruction{Op: I64Const, Imm: []int64{-5}, Len: 2}},
		{"290308", Instruction{Op: I64Load, Imm: []int64{3, 8}, Len: 3}},
		{"360200", Instruction{Op: I32Store, Imm: []int64{2, 0}, Len: 3}},
		{"4000", Instruction{Op: MemoryGrow, Len: 2}},
	}
	for _, c := range cases {
		got, err := ParseOp(mustDecodeHex(c.hex), 0)
		if err != nil {
			t.Errorf("ParseOp(%s): %v", c.hex, err)
			continue
		}
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("ParseOp(%s) = %+v want %+v", c.hex, got, c.want)
		}
	}
}

func TestParseOpErrors(t *testing.T) {
	cases := []struct {
		name string
		hex  string
		want error
	}{
		{"empty", "", ErrShortProgram},
		{"unknown opcode", "fe", ErrUnknownOp},
		{"bad blocktype", "02ff", ErrUnknownOp},
		{"truncated const", "42", ErrShortProgram},
		{"truncated index", "20", ErrShortProgram},
		{"nonzero reserved", "4001", ErrUnknownOp},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ParseOp(mustDecodeHex(c.hex), 0)
			if errors.Root(err) != c.want {
				t.Errorf("ParseOp err = %v want %v", err, c.want)
			}
		})
	}
}

func TestOpString(t *testing.T) {
	cases := []struct {
		op   Op
		want string
	}{
		{I64Add, "i64.add"},
		{LocalGet, "local.get"},
		{BrIf, "br_if"},
		{I64ExtendI32U, "i64.extend_i32_u"},
		{Op(0xfe), "op(0xfe)"},
	}
	for _, c := range cases {
		if got := c.op.String(); got != c.want {
			t.Errorf("Op(%#x).String() = %q want %q", uint8(c.op), got, c.want)
		}
	}
}
