package wasm

import "strings"

// ValType is a wasm value type code.
type ValType byte

const (
	I32 ValType = 0x7f
	I64 ValType = 0x7e
)

func (t ValType) String() string {
	switch t {
	case I32:
		return "i32"
	case I64:
		return "i64"
	}
	return "valtype(unknown)"
}

func validValType(t ValType) bool {
	return t == I32 || t == I64
}

// BlockType is the result arity marker carried by block, loop and if.
// A structured instruction either yields nothing or yields a single
// value of the named type.
type BlockType byte

const (
	BlockVoid BlockType = 0x40
	BlockI32  BlockType = BlockType(I32)
	BlockI64  BlockType = BlockType(I64)
)

func (t BlockType) String() string {
	switch t {
	case BlockVoid:
		return ""
	case BlockI32:
		return "(result i32)"
	case BlockI64:
		return "(result i64)"
	}
	return "blocktype(unknown)"
}

// ExternKind distinguishes entries in the import and export sections.
type ExternKind byte

const (
	ExternFunc   ExternKind = 0
	ExternTable  ExternKind = 1
	ExternMemory ExternKind = 2
	ExternGlobal ExternKind = 3
)

func (k ExternKind) String() string {
	switch k {
	case ExternFunc:
		return "func"
	case ExternTable:
		return "table"
	case ExternMemory:
		return "memory"
	case ExternGlobal:
		return "global"
	}
	return "extern(unknown)"
}

// Section ids, in the order the binary format requires them to appear.
const (
	sectionCustom   byte = 0
	sectionType     byte = 1
	sectionImport   byte = 2
	sectionFunction byte = 3
	sectionTable    byte = 4
	sectionMemory   byte = 5
	sectionGlobal   byte = 6
	sectionExport   byte = 7
	sectionStart    byte = 8
	sectionElement  byte = 9
	sectionCode     byte = 10
	sectionData     byte = 11
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

func (t FuncType) String() string {
	var b strings.Builder
	b.WriteString("(func")
	if len(t.Params) > 0 {
		b.WriteString(" (param")
		for _, p := range t.Params {
			b.WriteString(" ")
			b.WriteString(p.String())
		}
		b.WriteString(")")
	}
	if len(t.Results) > 0 {
		b.WriteString(" (result")
		for _, r := range t.Results {
			b.WriteString(" ")
			b.WriteString(r.String())
		}
		b.WriteString(")")
	}
	b.WriteString(")")
	return b.String()
}

// key is the dedup identity of a signature in the type section.
func (t FuncType) key() string {
	b := make([]byte, 0, len(t.Params)+len(t.Results)+1)
	for _, p := range t.Params {
		b = append(b, byte(p))
	}
	b = append(b, 0)
	for _, r := range t.Results {
		b = append(b, byte(r))
	}
	return string(b)
}

// Limits bounds a linear memory, in 64 KiB pages.
type Limits struct {
	Min    uint32
	Max    uint32
	HasMax bool
}

// PageSize is the wasm linear memory page size in bytes.
const PageSize = 65536

// Import is one entry of the import section.
type Import struct {
	Module string
	Name   string
	Kind   ExternKind
	Type   FuncType // Kind == ExternFunc
	Mem    Limits   // Kind == ExternMemory
}

// Export is one entry of the export section.
type Export struct {
	Name  string
	Kind  ExternKind
	Index uint32
}

// Global is one entry of the global section. Init must be expressible
// as a single i32.const or i64.const instruction.
type Global struct {
	Type    ValType
	Mutable bool
	Init    int64
}

// DataSeg is one entry of the data section: Bytes copied to Offset in
// memory 0 at instantiation.
type DataSeg struct {
	Offset uint32
	Bytes  []byte
}
