/*
Package wasm assembles, parses and disassembles WebAssembly (MVP)
binary modules restricted to the two integer value types. It is the
bytecode target of the contract compiler: module.go builds and encodes
modules, code.go builds function bodies, parse.go reads encoded
modules back, and disasm.go renders them for humans.

Encoding is deterministic: sections appear in the mandatory id order,
entries appear in insertion order, and no map iteration contributes
bytes, so identical content always encodes to identical bytes.
*/
package wasm

import (
	"github.com/InterCooperative-Network/icn-core-sub007/encoding/leb128"
	"github.com/InterCooperative-Network/icn-core-sub007/errors"
)

// Magic header bytes: "\0asm" then version 1.
var moduleHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

var (
	ErrBadMagic    = errors.New("not a wasm module")
	ErrImportOrder = errors.New("function import added after local function")
	ErrNoMemory    = errors.New("module has data segments but no memory")
	ErrBadExport   = errors.New("export references unknown index")
	ErrDupMemory   = errors.New("module already has a memory")
	ErrBadSection  = errors.New("malformed section")
	ErrUnsupported = errors.New("unsupported module feature")
)

// Module accumulates the parts of a wasm module and encodes them into
// the binary format. The zero value is not usable; call NewModule.
//
// Function index space: imported functions first, in the order
// imported, then local functions in the order added. ImportFunc
// therefore returns an error once AddFunc has been called.
type Module struct {
	types     []FuncType
	typeIndex map[string]uint32

	imports    []Import
	numImpFns  int
	memory     *Limits // local memory, nil if absent or imported
	hasMemImp  bool
	funcs      []*Func
	globals    []Global
	exports    []Export
	data       []DataSeg
}

func NewModule() *Module {
	return &Module{typeIndex: make(map[string]uint32)}
}

// TypeIndex returns the type section index for t, adding an entry the
// first time each distinct signature is seen.
func (m *Module) TypeIndex(t FuncType) uint32 {
	if idx, ok := m.typeIndex[t.key()]; ok {
		return idx
	}
	idx := uint32(len(m.types))
	m.types = append(m.types, t)
	m.typeIndex[t.key()] = idx
	return idx
}

// ImportFunc declares a function import and returns its index in the
// function index space.
func (m *Module) ImportFunc(module, name string, t FuncType) (uint32, error) {
	if len(m.funcs) > 0 {
		return 0, errors.Wrapf(ErrImportOrder, "%s.%s", module, name)
	}
	m.TypeIndex(t)
	m.imports = append(m.imports, Import{Module: module, Name: name, Kind: ExternFunc, Type: t})
	idx := uint32(m.numImpFns)
	m.numImpFns++
	return idx, nil
}

// ImportMemory declares linear memory 0 as an import.
func (m *Module) ImportMemory(module, name string, lim Limits) error {
	if m.hasMemImp || m.memory != nil {
		return ErrDupMemory
	}
	m.imports = append(m.imports, Import{Module: module, Name: name, Kind: ExternMemory, Mem: lim})
	m.hasMemImp = true
	return nil
}

// AddMemory declares linear memory 0 in the module itself.
func (m *Module) AddMemory(lim Limits) error {
	if m.hasMemImp || m.memory != nil {
		return ErrDupMemory
	}
	m.memory = &lim
	return nil
}

// AddFunc adds a local function with the given signature and returns
// its body builder. The function's index in the function index space
// is fixed at this point.
func (m *Module) AddFunc(t FuncType) *Func {
	f := &Func{
		Index:   uint32(m.numImpFns + len(m.funcs)),
		typ:     t,
		typeIdx: m.TypeIndex(t),
	}
	m.funcs = append(m.funcs, f)
	return f
}

// AddGlobal adds a global and returns its index.
func (m *Module) AddGlobal(t ValType, mutable bool, init int64) uint32 {
	m.globals = append(m.globals, Global{Type: t, Mutable: mutable, Init: init})
	return uint32(len(m.globals) - 1)
}

// AddExport adds an export section entry.
func (m *Module) AddExport(name string, kind ExternKind, index uint32) {
	m.exports = append(m.exports, Export{Name: name, Kind: kind, Index: index})
}

// AddData adds a data segment copied to offset in memory 0 at
// instantiation.
func (m *Module) AddData(offset uint32, b []byte) {
	m.data = append(m.data, DataSeg{Offset: offset, Bytes: b})
}

// Encode produces the binary module.
func (m *Module) Encode() ([]byte, error) {
	if err := m.validate(); err != nil {
		return nil, err
	}

	out := append([]byte{}, moduleHeader...)

	// Type section.
	if len(m.types) > 0 {
		var sec []byte
		sec = leb128.AppendUnsigned(sec, uint64(len(m.types)))
		for _, t := range m.types {
			sec = append(sec, 0x60)
			sec = leb128.AppendUnsigned(sec, uint64(len(t.Params)))
			for _, p := range t.Params {
				sec = append(sec, byte(p))
			}
			sec = leb128.AppendUnsigned(sec, uint64(len(t.Results)))
			for _, r := range t.Results {
				sec = append(sec, byte(r))
			}
		}
		out = appendSection(out, sectionType, sec)
	}

	// Import section.
	if len(m.imports) > 0 {
		var sec []byte
		sec = leb128.AppendUnsigned(sec, uint64(len(m.imports)))
		for _, imp := range m.imports {
			sec = appendName(sec, imp.Module)
			sec = appendName(sec, imp.Name)
			sec = append(sec, byte(imp.Kind))
			switch imp.Kind {
			case ExternFunc:
				sec = leb128.AppendUnsigned(sec, uint64(m.typeIndex[imp.Type.key()]))
			case ExternMemory:
				sec = appendLimits(sec, imp.Mem)
			default:
				return nil, errors.Wrapf(ErrUnsupported, "%s import", imp.Kind)
			}
		}
		out = appendSection(out, sectionImport, sec)
	}

	// Function section.
	if len(m.funcs) > 0 {
		var sec []byte
		sec = leb128.AppendUnsigned(sec, uint64(len(m.funcs)))
		for _, f := range m.funcs {
			sec = leb128.AppendUnsigned(sec, uint64(f.typeIdx))
		}
		out = appendSection(out, sectionFunction, sec)
	}

	// Memory section.
	if m.memory != nil {
		var sec []byte
		sec = leb128.AppendUnsigned(sec, 1)
		sec = appendLimits(sec, *m.memory)
		out = appendSection(out, sectionMemory, sec)
	}

	// Global section.
	if len(m.globals) > 0 {
		var sec []byte
		sec = leb128.AppendUnsigned(sec, uint64(len(m.globals)))
		for _, g := range m.globals {
			sec = append(sec, byte(g.Type))
			if g.Mutable {
				sec = append(sec, 1)
			} else {
				sec = append(sec, 0)
			}
			if g.Type == I32 {
				sec = append(sec, byte(I32Const))
			} else {
				sec = append(sec, byte(I64Const))
			}
			sec = leb128.AppendSigned(sec, g.Init)
			sec = append(sec, byte(End))
		}
		out = appendSection(out, sectionGlobal, sec)
	}

	// Export section.
	if len(m.exports) > 0 {
		var sec []byte
		sec = leb128.AppendUnsigned(sec, uint64(len(m.exports)))
		for _, e := range m.exports {
			sec = appendName(sec, e.Name)
			sec = append(sec, byte(e.Kind))
			sec = leb128.AppendUnsigned(sec, uint64(e.Index))
		}
		out = appendSection(out, sectionExport, sec)
	}

	// Code section.
	if len(m.funcs) > 0 {
		var sec []byte
		sec = leb128.AppendUnsigned(sec, uint64(len(m.funcs)))
		for _, f := range m.funcs {
			sec = appendCodeEntry(sec, f)
		}
		out = appendSection(out, sectionCode, sec)
	}

	// Data section.
	if len(m.data) > 0 {
		var sec []byte
		sec = leb128.AppendUnsigned(sec, uint64(len(m.data)))
		for _, d := range m.data {
			sec = leb128.AppendUnsigned(sec, 0) // memory 0
			sec = append(sec, byte(I32Const))
			sec = leb128.AppendSigned(sec, int64(int32(d.Offset)))
			sec = append(sec, byte(End))
			sec = leb128.AppendUnsigned(sec, uint64(len(d.Bytes)))
			sec = append(sec, d.Bytes...)
		}
		out = appendSection(out, sectionData, sec)
	}

	return out, nil
}

func (m *Module) validate() error {
	if len(m.data) > 0 && m.memory == nil && !m.hasMemImp {
		return ErrNoMemory
	}
	numFns := uint32(m.numImpFns + len(m.funcs))
	for _, e := range m.exports {
		switch e.Kind {
		case ExternFunc:
			if e.Index >= numFns {
				return errors.Wrapf(ErrBadExport, "func %d of %d in %q", e.Index, numFns, e.Name)
			}
		case ExternGlobal:
			if e.Index >= uint32(len(m.globals)) {
				return errors.Wrapf(ErrBadExport, "global %d of %d in %q", e.Index, len(m.globals), e.Name)
			}
		case ExternMemory:
			if m.memory == nil && !m.hasMemImp {
				return errors.Wrapf(ErrBadExport, "memory in %q", e.Name)
			}
		default:
			return errors.Wrapf(ErrUnsupported, "%s export", e.Kind)
		}
	}
	return nil
}

// appendSection appends a section id and size-prefixed contents.
func appendSection(out []byte, id byte, contents []byte) []byte {
	out = append(out, id)
	out = leb128.AppendUnsigned(out, uint64(len(contents)))
	return append(out, contents...)
}

func appendName(out []byte, s string) []byte {
	out = leb128.AppendUnsigned(out, uint64(len(s)))
	return append(out, s...)
}

func appendLimits(out []byte, lim Limits) []byte {
	if lim.HasMax {
		out = append(out, 1)
		out = leb128.AppendUnsigned(out, uint64(lim.Min))
		return leb128.AppendUnsigned(out, uint64(lim.Max))
	}
	out = append(out, 0)
	return leb128.AppendUnsigned(out, uint64(lim.Min))
}

// appendCodeEntry appends one code section entry: a size prefix, the
// run-length-compressed local declarations, the body, and the closing
// end opcode (the builder's body never includes it).
func appendCodeEntry(sec []byte, f *Func) []byte {
	var entry []byte

	var runs [][2]uint64 // count, valtype
	for _, t := range f.locals {
		if n := len(runs); n > 0 && runs[n-1][1] == uint64(t) {
			runs[n-1][0]++
		} else {
			runs = append(runs, [2]uint64{1, uint64(t)})
		}
	}
	entry = leb128.AppendUnsigned(entry, uint64(len(runs)))
	for _, run := range runs {
		entry = leb128.AppendUnsigned(entry, run[0])
		entry = append(entry, byte(run[1]))
	}
	entry = append(entry, f.body...)
	entry = append(entry, byte(End))

	sec = leb128.AppendUnsigned(sec, uint64(len(entry)))
	return append(sec, entry...)
}
