package wasm

import (
	"bytes"

	"github.com/InterCooperative-Network/icn-core-sub007/encoding/leb128"
	"github.com/InterCooperative-Network/icn-core-sub007/errors"
)

// ParsedModule is the decoded form of a binary module, restricted to
// the features Module can encode.
type ParsedModule struct {
	Types   []FuncType
	Imports []Import
	Funcs   []ParsedFunc
	Memory  *Limits // local memory, nil if absent or imported
	Globals []Global
	Exports []Export
	Data    []DataSeg
}

// ParsedFunc is one local function: its signature by type index, its
// declared locals (expanded from the run-length encoding), and its
// body instruction stream including the closing end.
type ParsedFunc struct {
	TypeIdx uint32
	Locals  []ValType
	Body    []byte
}

// NumImportFuncs returns the number of imported functions, which is
// also the function index of the first local function.
func (p *ParsedModule) NumImportFuncs() int {
	n := 0
	for _, imp := range p.Imports {
		if imp.Kind == ExternFunc {
			n++
		}
	}
	return n
}

// FuncType returns the signature of the function at index fn in the
// function index space, imports included.
func (p *ParsedModule) FuncType(fn uint32) (FuncType, error) {
	i := int(fn)
	for _, imp := range p.Imports {
		if imp.Kind != ExternFunc {
			continue
		}
		if i == 0 {
			return imp.Type, nil
		}
		i--
	}
	if i < len(p.Funcs) {
		t := p.Funcs[i].TypeIdx
		if int(t) >= len(p.Types) {
			return FuncType{}, errors.Wrapf(ErrBadSection, "func %d has type %d of %d", fn, t, len(p.Types))
		}
		return p.Types[t], nil
	}
	return FuncType{}, errors.Wrapf(ErrBadSection, "no function %d", fn)
}

// ExportedFunc returns the function index exported under name.
func (p *ParsedModule) ExportedFunc(name string) (uint32, bool) {
	for _, e := range p.Exports {
		if e.Kind == ExternFunc && e.Name == name {
			return e.Index, true
		}
	}
	return 0, false
}

// HasMemory reports whether the module has a linear memory, local or
// imported, and returns its limits.
func (p *ParsedModule) HasMemory() (Limits, bool) {
	if p.Memory != nil {
		return *p.Memory, true
	}
	for _, imp := range p.Imports {
		if imp.Kind == ExternMemory {
			return imp.Mem, true
		}
	}
	return Limits{}, false
}

// ParseModule decodes a binary module. Custom sections are skipped;
// any section or feature outside what Module encodes is an error.
func ParseModule(b []byte) (*ParsedModule, error) {
	if len(b) < len(moduleHeader) || !bytes.Equal(b[:len(moduleHeader)], moduleHeader) {
		return nil, ErrBadMagic
	}

	p := new(ParsedModule)
	r := &reader{b: b, off: len(moduleHeader)}
	var funcTypes []uint32
	prevSection := byte(0)

	for !r.done() {
		id, err := r.byte()
		if err != nil {
			return nil, err
		}
		size, err := r.uleb()
		if err != nil {
			return nil, errors.Wrapf(err, "size of section %d", id)
		}
		body, err := r.take(int(size))
		if err != nil {
			return nil, errors.Wrapf(err, "contents of section %d", id)
		}
		if id == sectionCustom {
			continue
		}
		if id <= prevSection {
			return nil, errors.Wrapf(ErrBadSection, "section %d after section %d", id, prevSection)
		}
		prevSection = id

		sr := &reader{b: body}
		switch id {
		case sectionType:
			err = p.parseTypes(sr)
		case sectionImport:
			err = p.parseImports(sr)
		case sectionFunction:
			funcTypes, err = parseFuncDecls(sr)
		case sectionMemory:
			err = p.parseMemory(sr)
		case sectionGlobal:
			err = p.parseGlobals(sr)
		case sectionExport:
			err = p.parseExports(sr)
		case sectionCode:
			err = p.parseCode(sr, funcTypes)
		case sectionData:
			err = p.parseData(sr)
		default:
			err = errors.Wrapf(ErrUnsupported, "section %d", id)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "section %d", id)
		}
		if !sr.done() {
			return nil, errors.Wrapf(ErrBadSection, "section %d has %d trailing bytes", id, len(sr.b)-sr.off)
		}
	}

	if len(funcTypes) > 0 && len(p.Funcs) != len(funcTypes) {
		return nil, errors.Wrapf(ErrBadSection, "%d function declarations, %d bodies", len(funcTypes), len(p.Funcs))
	}
	return p, nil
}

func (p *ParsedModule) parseTypes(r *reader) error {
	n, err := r.uleb()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		form, err := r.byte()
		if err != nil {
			return err
		}
		if form != 0x60 {
			return errors.Wrapf(ErrBadSection, "type %d has form 0x%02x", i, form)
		}
		var t FuncType
		t.Params, err = r.valtypes()
		if err != nil {
			return err
		}
		t.Results, err = r.valtypes()
		if err != nil {
			return err
		}
		p.Types = append(p.Types, t)
	}
	return nil
}

func (p *ParsedModule) parseImports(r *reader) error {
	n, err := r.uleb()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		var imp Import
		imp.Module, err = r.name()
		if err != nil {
			return err
		}
		imp.Name, err = r.name()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		imp.Kind = ExternKind(kind)
		switch imp.Kind {
		case ExternFunc:
			idx, err := r.uleb()
			if err != nil {
				return err
			}
			if int(idx) >= len(p.Types) {
				return errors.Wrapf(ErrBadSection, "import %s.%s has type %d of %d", imp.Module, imp.Name, idx, len(p.Types))
			}
			imp.Type = p.Types[idx]
		case ExternMemory:
			imp.Mem, err = r.limits()
			if err != nil {
				return err
			}
		default:
			return errors.Wrapf(ErrUnsupported, "%s import %s.%s", imp.Kind, imp.Module, imp.Name)
		}
		p.Imports = append(p.Imports, imp)
	}
	return nil
}

func parseFuncDecls(r *reader) ([]uint32, error) {
	n, err := r.uleb()
	if err != nil {
		return nil, err
	}
	types := make([]uint32, 0, n)
	for i := uint64(0); i < n; i++ {
		idx, err := r.uleb()
		if err != nil {
			return nil, err
		}
		types = append(types, uint32(idx))
	}
	return types, nil
}

func (p *ParsedModule) parseMemory(r *reader) error {
	n, err := r.uleb()
	if err != nil {
		return err
	}
	if n != 1 {
		return errors.Wrapf(ErrUnsupported, "%d memories", n)
	}
	lim, err := r.limits()
	if err != nil {
		return err
	}
	p.Memory = &lim
	return nil
}

func (p *ParsedModule) parseGlobals(r *reader) error {
	n, err := r.uleb()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		var g Global
		t, err := r.byte()
		if err != nil {
			return err
		}
		g.Type = ValType(t)
		if !validValType(g.Type) {
			return errors.Wrapf(ErrUnsupported, "global %d of type 0x%02x", i, t)
		}
		mut, err := r.byte()
		if err != nil {
			return err
		}
		g.Mutable = mut == 1
		g.Init, err = r.constExpr(g.Type)
		if err != nil {
			return errors.Wrapf(err, "init of global %d", i)
		}
		p.Globals = append(p.Globals, g)
	}
	return nil
}

func (p *ParsedModule) parseExports(r *reader) error {
	n, err := r.uleb()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		var e Export
		e.Name, err = r.name()
		if err != nil {
			return err
		}
		kind, err := r.byte()
		if err != nil {
			return err
		}
		e.Kind = ExternKind(kind)
		idx, err := r.uleb()
		if err != nil {
			return err
		}
		e.Index = uint32(idx)
		p.Exports = append(p.Exports, e)
	}
	return nil
}

func (p *ParsedModule) parseCode(r *reader, funcTypes []uint32) error {
	n, err := r.uleb()
	if err != nil {
		return err
	}
	if int(n) != len(funcTypes) {
		return errors.Wrapf(ErrBadSection, "%d bodies for %d declared functions", n, len(funcTypes))
	}
	for i := uint64(0); i < n; i++ {
		size, err := r.uleb()
		if err != nil {
			return err
		}
		entry, err := r.take(int(size))
		if err != nil {
			return err
		}
		er := &reader{b: entry}

		var f ParsedFunc
		f.TypeIdx = funcTypes[i]
		runs, err := er.uleb()
		if err != nil {
			return err
		}
		for j := uint64(0); j < runs; j++ {
			count, err := er.uleb()
			if err != nil {
				return err
			}
			t, err := er.byte()
			if err != nil {
				return err
			}
			if !validValType(ValType(t)) {
				return errors.Wrapf(ErrUnsupported, "local of type 0x%02x in body %d", t, i)
			}
			for k := uint64(0); k < count; k++ {
				f.Locals = append(f.Locals, ValType(t))
			}
		}
		f.Body = entry[er.off:]
		if len(f.Body) == 0 || f.Body[len(f.Body)-1] != byte(End) {
			return errors.Wrapf(ErrBadSection, "body %d does not end in end", i)
		}
		p.Funcs = append(p.Funcs, f)
	}
	return nil
}

func (p *ParsedModule) parseData(r *reader) error {
	n, err := r.uleb()
	if err != nil {
		return err
	}
	for i := uint64(0); i < n; i++ {
		memidx, err := r.uleb()
		if err != nil {
			return err
		}
		if memidx != 0 {
			return errors.Wrapf(ErrUnsupported, "data segment %d in memory %d", i, memidx)
		}
		off, err := r.constExpr(I32)
		if err != nil {
			return errors.Wrapf(err, "offset of data segment %d", i)
		}
		size, err := r.uleb()
		if err != nil {
			return err
		}
		b, err := r.take(int(size))
		if err != nil {
			return err
		}
		p.Data = append(p.Data, DataSeg{Offset: uint32(off), Bytes: b})
	}
	return nil
}

// reader is a cursor over one byte slice.
type reader struct {
	b   []byte
	off int
}

func (r *reader) done() bool {
	return r.off >= len(r.b)
}

func (r *reader) byte() (byte, error) {
	if r.done() {
		return 0, errors.Wrapf(ErrBadSection, "unexpected end at offset %d", r.off)
	}
	b := r.b[r.off]
	r.off++
	return b, nil
}

func (r *reader) take(n int) ([]byte, error) {
	if n < 0 || r.off+n > len(r.b) {
		return nil, errors.Wrapf(ErrBadSection, "%d bytes wanted at offset %d of %d", n, r.off, len(r.b))
	}
	b := r.b[r.off : r.off+n]
	r.off += n
	return b, nil
}

func (r *reader) uleb() (uint64, error) {
	br := bytes.NewReader(r.b[r.off:])
	v, n, err := leb128.ReadUnsigned(br)
	if err != nil {
		return 0, errors.Wrapf(err, "varint at offset %d", r.off)
	}
	r.off += n
	return v, nil
}

func (r *reader) sleb() (int64, error) {
	br := bytes.NewReader(r.b[r.off:])
	v, n, err := leb128.ReadSigned(br)
	if err != nil {
		return 0, errors.Wrapf(err, "varint at offset %d", r.off)
	}
	r.off += n
	return v, nil
}

func (r *reader) name() (string, error) {
	n, err := r.uleb()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *reader) limits() (Limits, error) {
	flags, err := r.byte()
	if err != nil {
		return Limits{}, err
	}
	if flags > 1 {
		return Limits{}, errors.Wrapf(ErrUnsupported, "limits flags 0x%02x", flags)
	}
	var lim Limits
	min, err := r.uleb()
	if err != nil {
		return Limits{}, err
	}
	lim.Min = uint32(min)
	if flags == 1 {
		max, err := r.uleb()
		if err != nil {
			return Limits{}, err
		}
		lim.Max = uint32(max)
		lim.HasMax = true
	}
	return lim, nil
}

func (r *reader) valtypes() ([]ValType, error) {
	n, err := r.uleb()
	if err != nil {
		return nil, err
	}
	var ts []ValType
	for i := uint64(0); i < n; i++ {
		b, err := r.byte()
		if err != nil {
			return nil, err
		}
		if !validValType(ValType(b)) {
			return nil, errors.Wrapf(ErrUnsupported, "value type 0x%02x", b)
		}
		ts = append(ts, ValType(b))
	}
	return ts, nil
}

// constExpr reads the single-instruction initializer form this
// package encodes: an i32.const or i64.const followed by end.
func (r *reader) constExpr(want ValType) (int64, error) {
	op, err := r.byte()
	if err != nil {
		return 0, err
	}
	if (want == I32 && Op(op) != I32Const) || (want == I64 && Op(op) != I64Const) {
		return 0, errors.Wrapf(ErrUnsupported, "initializer opcode %s", Op(op))
	}
	v, err := r.sleb()
	if err != nil {
		return 0, err
	}
	end, err := r.byte()
	if err != nil {
		return 0, err
	}
	if Op(end) != End {
		return 0, errors.Wrapf(ErrBadSection, "initializer not terminated, got %s", Op(end))
	}
	return v, nil
}
