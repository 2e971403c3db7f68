package compiler

import (
	"fmt"

	"github.com/InterCooperative-Network/icn-core-sub007/protocol/wasm"
)

// Type is the static type of a CCL expression. Scalar types lower to
// a single wasm value; composite types lower to an i32 pointer into
// linear memory.
type Type interface {
	String() string

	// ValType is the wasm representation.
	ValType() wasm.ValType
}

// Basic is a built-in scalar or string-like type. The singletons
// below are the only values; identity comparison is safe.
type Basic struct {
	name string
	vt   wasm.ValType
}

func (b *Basic) String() string        { return b.name }
func (b *Basic) ValType() wasm.ValType { return b.vt }

var (
	IntegerType = &Basic{"Integer", wasm.I64}
	ManaType    = &Basic{"Mana", wasm.I64}
	BooleanType = &Basic{"Boolean", wasm.I32}
	StringType  = &Basic{"String", wasm.I32}
	DidType     = &Basic{"Did", wasm.I32}

	// VoidType marks functions with no return. It never types an
	// expression.
	VoidType = &Basic{"Void", wasm.I32}
)

// ArrayType is Array<Elem>.
type ArrayType struct {
	Elem Type
}

func (t *ArrayType) String() string        { return fmt.Sprintf("Array<%s>", t.Elem) }
func (t *ArrayType) ValType() wasm.ValType { return wasm.I32 }

// OptionType is Option<Elem>.
type OptionType struct {
	Elem Type
}

func (t *OptionType) String() string        { return fmt.Sprintf("Option<%s>", t.Elem) }
func (t *OptionType) ValType() wasm.ValType { return wasm.I32 }

// ResultType is Result<Ok>. The error arm always carries a String.
type ResultType struct {
	Ok Type
}

func (t *ResultType) String() string        { return fmt.Sprintf("Result<%s>", t.Ok) }
func (t *ResultType) ValType() wasm.ValType { return wasm.I32 }

// RecordType is a user-declared record. Identity is nominal: two
// records are the same type only when they come from the same
// declaration, so the checker compares RecordType pointers.
type RecordType struct {
	Name   string
	Fields []RecordField
}

type RecordField struct {
	Name string
	Type Type
}

func (t *RecordType) String() string        { return t.Name }
func (t *RecordType) ValType() wasm.ValType { return wasm.I32 }

// fieldIndex returns the declared index of name, or -1.
func (t *RecordType) fieldIndex(name string) int {
	for i, f := range t.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// typesEqual reports whether a and b are the same CCL type. Integer
// and Mana are deliberately not equal here; substitutability between
// them is handled by assignable.
func typesEqual(a, b Type) bool {
	switch a := a.(type) {
	case *Basic:
		return a == b
	case *ArrayType:
		b, ok := b.(*ArrayType)
		return ok && typesEqual(a.Elem, b.Elem)
	case *OptionType:
		b, ok := b.(*OptionType)
		return ok && typesEqual(a.Elem, b.Elem)
	case *ResultType:
		b, ok := b.(*ResultType)
		return ok && typesEqual(a.Ok, b.Ok)
	case *RecordType:
		return a == b
	}
	return false
}

// assignable reports whether a value of type src may be used where
// dst is required. Integer and Mana substitute for each other in both
// directions; everything else requires equality.
func assignable(dst, src Type) bool {
	if typesEqual(dst, src) {
		return true
	}
	return isNumeric(dst) && isNumeric(src)
}

// mergeNumeric picks the type of an arithmetic result. Mana is
// sticky: mixing Mana with Integer yields Mana.
func mergeNumeric(a, b Type) Type {
	if a == ManaType || b == ManaType {
		return ManaType
	}
	return IntegerType
}

func isNumeric(t Type) bool {
	return t == IntegerType || t == ManaType
}

// isScalar reports whether t is directly comparable with == and !=.
func isScalar(t Type) bool {
	switch t {
	case IntegerType, ManaType, BooleanType:
		return true
	}
	return false
}

// isStringLike reports whether t compares by byte content.
func isStringLike(t Type) bool {
	return t == StringType || t == DidType
}
