package compiler

import (
	"encoding/binary"
	"fmt"

	"github.com/InterCooperative-Network/icn-core-sub007/protocol/wasm"
)

// Codegen lowers a checked, optimized program to a wasm module. It
// runs in two passes over the same walk order: the first interns
// every string literal and records each host function at first
// reference, fixing the import list and the heap base before any
// code is emitted; the second emits function bodies. Local slot i of
// a function is wasm local i; scratch locals that construction sites
// need are declared after the last slot, in emission order, so the
// whole module is a pure function of the program.
//
// Codegen requires an error-free program. Shape violations that the
// checker rules out panic here rather than producing diagnostics.

// litBase is where interned string literals start in linear memory.
// Offset 0 is reserved so no live pointer is ever zero.
const litBase = 8

type gen struct {
	m  *wasm.Module
	rt runtimeFns

	hosts   []hostFunc
	hostIdx map[string]uint32
	fnIdx   map[*FuncDecl]uint32
	strOff  map[string]int
	lits    []byte

	f *wasm.Func // body under construction
}

func generate(prog *Program) ([]byte, error) {
	g := &gen{
		m:       wasm.NewModule(),
		hostIdx: make(map[string]uint32),
		fnIdx:   make(map[*FuncDecl]uint32),
		strOff:  make(map[string]int),
	}

	for _, fn := range prog.Funcs {
		g.collectStmts(fn.Body)
	}
	heapStart := litBase + len(g.lits)

	pages := uint32((heapStart + wasm.PageSize - 1) / wasm.PageSize)
	if pages == 0 {
		pages = 1
	}
	if err := g.m.ImportMemory(hostModule, "memory", wasm.Limits{Min: pages}); err != nil {
		return nil, err
	}
	for _, h := range g.hosts {
		idx, err := g.m.ImportFunc(hostModule, h.name, hostType(h))
		if err != nil {
			return nil, err
		}
		g.hostIdx[h.name] = idx
	}

	heap := g.m.AddGlobal(wasm.I32, true, int64(heapStart))
	g.rt = emitRuntime(g.m, heap)

	bodies := make([]*wasm.Func, len(prog.Funcs))
	for i, fn := range prog.Funcs {
		bodies[i] = g.m.AddFunc(funcType(fn))
		g.fnIdx[fn] = bodies[i].Index
	}
	for i, fn := range prog.Funcs {
		g.emitFunc(bodies[i], fn)
	}

	for _, fn := range prog.Funcs {
		if fn.Name == "run" {
			g.m.AddExport("run", wasm.ExternFunc, g.fnIdx[fn])
			break
		}
	}
	if len(g.lits) > 0 {
		g.m.AddData(litBase, g.lits)
	}
	return g.m.Encode()
}

func funcType(fn *FuncDecl) wasm.FuncType {
	var t wasm.FuncType
	for _, par := range fn.Params {
		t.Params = append(t.Params, par.typ.ValType())
	}
	if fn.retType != VoidType {
		t.Results = []wasm.ValType{fn.retType.ValType()}
	}
	return t
}

func hostType(h hostFunc) wasm.FuncType {
	var t wasm.FuncType
	for _, p := range h.params {
		t.Params = append(t.Params, p.ValType())
	}
	t.Results = []wasm.ValType{h.result.ValType()}
	return t
}

// the collection pass

func (g *gen) collectStmts(stmts []Stmt) {
	for _, s := range stmts {
		switch s := s.(type) {
		case *LetStmt:
			g.collectExpr(s.Value)
		case *AssignStmt:
			g.collectExpr(s.Value)
		case *ReturnStmt:
			if s.Value != nil {
				g.collectExpr(s.Value)
			}
		case *IfStmt:
			for _, br := range s.Branches {
				g.collectExpr(br.Cond)
				g.collectStmts(br.Body)
			}
			g.collectStmts(s.Else)
		case *WhileStmt:
			g.collectExpr(s.Cond)
			g.collectStmts(s.Body)
		case *ForStmt:
			g.collectExpr(s.Seq)
			g.collectStmts(s.Body)
		case *ExprStmt:
			g.collectExpr(s.X)
		}
	}
}

func (g *gen) collectExpr(e Expr) {
	switch e := e.(type) {
	case *StrLit:
		g.intern(e.Val)
	case *UnaryExpr:
		g.collectExpr(e.X)
	case *BinExpr:
		g.collectExpr(e.X)
		g.collectExpr(e.Y)
	case *CallExpr:
		if e.host != nil {
			if _, ok := g.hostIdx[e.host.name]; !ok {
				g.hostIdx[e.host.name] = uint32(len(g.hosts))
				g.hosts = append(g.hosts, *e.host)
			}
		}
		for _, a := range e.Args {
			g.collectExpr(a)
		}
	case *MethodExpr:
		g.collectExpr(e.X)
		for _, a := range e.Args {
			g.collectExpr(a)
		}
	case *FieldExpr:
		g.collectExpr(e.X)
	case *IndexExpr:
		g.collectExpr(e.X)
		g.collectExpr(e.Index)
	case *ArrayLit:
		for _, el := range e.Elems {
			g.collectExpr(el)
		}
	case *RecordLit:
		for i := range e.Fields {
			g.collectExpr(e.Fields[i].Value)
		}
	case *CtorExpr:
		if e.Arg != nil {
			g.collectExpr(e.Arg)
		}
	case *MatchExpr:
		g.collectExpr(e.Subj)
		for _, arm := range e.Arms {
			g.collectStmts(arm.Stmts)
			g.collectExpr(arm.Value)
		}
	}
}

// intern places s in the literal image, 8-aligned, deduplicated, and
// returns its memory offset.
func (g *gen) intern(s string) int {
	if off, ok := g.strOff[s]; ok {
		return off
	}
	off := litBase + len(g.lits)
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(s)))
	g.lits = append(g.lits, n[:]...)
	g.lits = append(g.lits, s...)
	for len(g.lits)%8 != 0 {
		g.lits = append(g.lits, 0)
	}
	g.strOff[s] = off
	return off
}

// the emission pass

func (g *gen) emitFunc(f *wasm.Func, fn *FuncDecl) {
	g.f = f
	for _, t := range fn.slots[len(fn.Params):] {
		f.AddLocal(t.ValType())
	}
	g.stmts(fn.Body)
	if fn.retType != VoidType {
		// Every path returns, so the fall-through end is dead code;
		// the unreachable keeps it type-correct for strict engines.
		f.Op(wasm.Unreachable)
	}
	g.f = nil
}

func (g *gen) stmts(stmts []Stmt) {
	for _, s := range stmts {
		g.stmt(s)
	}
}

func (g *gen) stmt(s Stmt) {
	switch s := s.(type) {
	case *LetStmt:
		g.expr(s.Value)
		g.f.LocalSet(uint32(s.slot))

	case *AssignStmt:
		g.expr(s.Value)
		g.f.LocalSet(uint32(s.slot))

	case *ReturnStmt:
		if s.Value != nil {
			g.expr(s.Value)
		}
		g.f.Op(wasm.Return)

	case *IfStmt:
		g.ifChain(s.Branches, s.Else)

	case *WhileStmt:
		g.f.Block(wasm.BlockVoid).Loop(wasm.BlockVoid)
		g.expr(s.Cond)
		g.f.Op(wasm.I32Eqz).BrIf(1)
		g.stmts(s.Body)
		g.f.Br(0)
		g.f.End().End()

	case *ForStmt:
		g.forStmt(s)

	case *ExprStmt:
		g.expr(s.X)
		if s.X.typ() != VoidType {
			g.f.Op(wasm.Drop)
		}

	default:
		panic(fmt.Errorf("codegen: unknown statement %T", s))
	}
}

// ifChain nests each else-if branch inside the else of the previous
// one. A trailing else with no statements emits nothing.
func (g *gen) ifChain(branches []IfBranch, els []Stmt) {
	if len(branches) == 0 {
		g.stmts(els)
		return
	}
	g.expr(branches[0].Cond)
	g.f.If(wasm.BlockVoid)
	g.stmts(branches[0].Body)
	if len(branches) > 1 || len(els) > 0 {
		g.f.Else()
		g.ifChain(branches[1:], els)
	}
	g.f.End()
}

func (g *gen) forStmt(s *ForStmt) {
	seq := g.f.AddLocal(wasm.I32)
	idx := g.f.AddLocal(wasm.I32)
	g.expr(s.Seq)
	g.f.LocalSet(seq)
	g.f.I32Const(0).LocalSet(idx)

	g.f.Block(wasm.BlockVoid).Loop(wasm.BlockVoid)
	g.f.LocalGet(idx)
	g.f.LocalGet(seq).Load(wasm.I32Load, arrLenOff)
	g.f.Op(wasm.I32GeS).BrIf(1)

	g.f.LocalGet(seq).LocalGet(idx).I32Const(3).Op(wasm.I32Shl).Op(wasm.I32Add)
	g.f.Load(wasm.I64Load, arrHeader)
	g.wrap(s.elemType)
	g.f.LocalSet(uint32(s.slot))

	g.stmts(s.Body)
	g.f.LocalGet(idx).I32Const(1).Op(wasm.I32Add).LocalSet(idx)
	g.f.Br(0)
	g.f.End().End()
}

func (g *gen) expr(e Expr) {
	switch e := e.(type) {
	case *IntLit:
		g.f.I64Const(e.Val)

	case *StrLit:
		off, ok := g.strOff[e.Val]
		if !ok {
			panic(fmt.Errorf("codegen: literal %q not interned", e.Val))
		}
		g.f.I32Const(int32(off))

	case *BoolLit:
		if e.Val {
			g.f.I32Const(1)
		} else {
			g.f.I32Const(0)
		}

	case *VarRef:
		if e.kind != refVar {
			panic(fmt.Errorf("codegen: constant %s not inlined", e.Name))
		}
		g.f.LocalGet(uint32(e.slot))

	case *UnaryExpr:
		switch e.Op {
		case "-":
			g.f.I64Const(0)
			g.expr(e.X)
			g.f.Op(wasm.I64Sub)
		case "!":
			g.expr(e.X)
			g.f.Op(wasm.I32Eqz)
		default:
			panic(fmt.Errorf("codegen: unknown unary operator %s", e.Op))
		}

	case *BinExpr:
		g.bin(e)

	case *CallExpr:
		for _, a := range e.Args {
			g.expr(a)
		}
		if e.host != nil {
			g.f.Call(g.hostIdx[e.host.name])
		} else {
			g.f.Call(g.fnIdx[e.fn])
		}

	case *MethodExpr:
		g.method(e)

	case *FieldExpr:
		g.expr(e.X)
		g.f.Load(wasm.I64Load, uint32(8*e.idx))
		g.wrap(e.t)

	case *IndexExpr:
		g.index(e)

	case *ArrayLit:
		g.arrayLit(e)

	case *RecordLit:
		g.recordLit(e)

	case *CtorExpr:
		g.ctor(e)

	case *MatchExpr:
		g.match(e)

	default:
		panic(fmt.Errorf("codegen: unknown expression %T", e))
	}
}

func (g *gen) bin(e *BinExpr) {
	switch e.Op {
	case "&&":
		g.expr(e.X)
		g.f.If(wasm.BlockI32)
		g.expr(e.Y)
		g.f.Else().I32Const(0).End()
		return
	case "||":
		g.expr(e.X)
		g.f.If(wasm.BlockI32).I32Const(1).Else()
		g.expr(e.Y)
		g.f.End()
		return
	}

	xt := e.X.typ()
	if e.Op == "==" || e.Op == "!=" {
		if isStringLike(xt) {
			g.expr(e.X)
			g.expr(e.Y)
			g.f.Call(g.rt.streq)
			if e.Op == "!=" {
				g.f.Op(wasm.I32Eqz)
			}
			return
		}
		if xt == BooleanType {
			g.expr(e.X)
			g.expr(e.Y)
			if e.Op == "==" {
				g.f.Op(wasm.I32Eq)
			} else {
				g.f.Op(wasm.I32Ne)
			}
			return
		}
	}

	g.expr(e.X)
	g.expr(e.Y)
	var op wasm.Op
	switch e.Op {
	case "+":
		op = wasm.I64Add
	case "-":
		op = wasm.I64Sub
	case "*":
		op = wasm.I64Mul
	case "/":
		op = wasm.I64DivS
	case "%":
		op = wasm.I64RemS
	case "==":
		op = wasm.I64Eq
	case "!=":
		op = wasm.I64Ne
	case "<":
		op = wasm.I64LtS
	case ">":
		op = wasm.I64GtS
	case "<=":
		op = wasm.I64LeS
	case ">=":
		op = wasm.I64GeS
	default:
		panic(fmt.Errorf("codegen: unknown operator %s", e.Op))
	}
	g.f.Op(op)
}

func (g *gen) method(e *MethodExpr) {
	switch e.sig.kind {
	case methLength:
		g.expr(e.X)
		if _, ok := e.X.typ().(*ArrayType); ok {
			g.f.Load(wasm.I32Load, arrLenOff)
		} else {
			g.f.Load(wasm.I32Load, 0)
		}
		g.f.Op(wasm.I64ExtendI32U)

	case methConcat:
		g.expr(e.X)
		g.expr(e.Args[0])
		g.f.Call(g.rt.strconcat)

	case methPush:
		g.expr(e.X)
		g.expr(e.Args[0])
		g.extend(e.Args[0].typ())
		g.f.Call(g.rt.arrpush)

	case methPop:
		g.expr(e.X)
		g.f.Call(g.rt.arrpop)

	default:
		panic(fmt.Errorf("codegen: unknown method %s", e.Name))
	}
}

// index loads an element after checking 0 <= i < len. A bad index
// traps before any memory access.
func (g *gen) index(e *IndexExpr) {
	base := g.f.AddLocal(wasm.I32)
	idx := g.f.AddLocal(wasm.I64)

	g.expr(e.X)
	g.f.LocalSet(base)
	g.expr(e.Index)
	g.f.LocalTee(idx)

	g.f.I64Const(0).Op(wasm.I64LtS)
	g.f.If(wasm.BlockVoid).Op(wasm.Unreachable).End()
	g.f.LocalGet(idx)
	g.f.LocalGet(base).Load(wasm.I32Load, arrLenOff).Op(wasm.I64ExtendI32U)
	g.f.Op(wasm.I64GeS)
	g.f.If(wasm.BlockVoid).Op(wasm.Unreachable).End()

	g.f.LocalGet(base)
	g.f.LocalGet(idx).Op(wasm.I32WrapI64)
	g.f.I32Const(3).Op(wasm.I32Shl).Op(wasm.I32Add)
	g.f.Load(wasm.I64Load, arrHeader)
	g.wrap(e.t)
}

// arrayCap is the capacity allocated for n elements: at least 4,
// always a power of two.
func arrayCap(n int) int {
	c := 4
	for c < n {
		c *= 2
	}
	return c
}

func (g *gen) arrayLit(e *ArrayLit) {
	n := arrayCap(len(e.Elems))
	ptr := g.f.AddLocal(wasm.I32)
	g.f.I32Const(int32(arrHeader + 8*n)).Call(g.rt.alloc).LocalSet(ptr)
	g.f.LocalGet(ptr).I32Const(int32(n)).Store(wasm.I32Store, arrCapOff)
	g.f.LocalGet(ptr).I32Const(int32(len(e.Elems))).Store(wasm.I32Store, arrLenOff)
	for i, el := range e.Elems {
		g.f.LocalGet(ptr)
		g.expr(el)
		g.extend(el.typ())
		g.f.Store(wasm.I64Store, uint32(arrHeader+8*i))
	}
	g.f.LocalGet(ptr)
}

// recordLit evaluates initializers in source order, storing each at
// its declared field offset.
func (g *gen) recordLit(e *RecordLit) {
	rec := e.t.(*RecordType)
	ptr := g.f.AddLocal(wasm.I32)
	g.f.I32Const(int32(8 * len(rec.Fields))).Call(g.rt.alloc).LocalSet(ptr)
	for i := range e.Fields {
		fi := &e.Fields[i]
		g.f.LocalGet(ptr)
		g.expr(fi.Value)
		g.extend(fi.Value.typ())
		g.f.Store(wasm.I64Store, uint32(8*fi.idx))
	}
	g.f.LocalGet(ptr)
}

func (g *gen) ctor(e *CtorExpr) {
	var tag int32
	switch e.Ctor {
	case "Some":
		tag = tagSome
	case "None":
		tag = tagNone
	case "Ok":
		tag = tagOk
	case "Err":
		tag = tagErr
	default:
		panic(fmt.Errorf("codegen: unknown constructor %s", e.Ctor))
	}
	ptr := g.f.AddLocal(wasm.I32)
	g.f.I32Const(boxSize).Call(g.rt.alloc).LocalSet(ptr)
	g.f.LocalGet(ptr).I32Const(tag).Store(wasm.I32Store, boxTagOff)
	// None leaves the payload at the allocator's zero fill.
	if e.Arg != nil {
		g.f.LocalGet(ptr)
		g.expr(e.Arg)
		g.extend(e.Arg.typ())
		g.f.Store(wasm.I64Store, boxPayload)
	}
	g.f.LocalGet(ptr)
}

func (g *gen) match(e *MatchExpr) {
	subj := g.f.AddLocal(wasm.I32)
	g.expr(e.Subj)
	g.f.LocalSet(subj)

	taken, other := e.Arms[0], e.Arms[1]
	g.f.LocalGet(subj).Load(wasm.I32Load, boxTagOff)
	switch e.Subj.typ().(type) {
	case *OptionType:
		// A nonzero tag is Some.
		if taken.Ctor != "Some" {
			taken, other = other, taken
		}
	case *ResultType:
		// A zero tag is Ok.
		if taken.Ctor != "Ok" {
			taken, other = other, taken
		}
		g.f.Op(wasm.I32Eqz)
	default:
		panic(fmt.Errorf("codegen: match on %s", e.Subj.typ()))
	}

	g.f.If(blockResult(e.t))
	g.arm(taken, subj)
	g.f.Else()
	g.arm(other, subj)
	g.f.End()
}

func (g *gen) arm(arm *MatchArm, subj uint32) {
	if arm.Bind != "" {
		g.f.LocalGet(subj).Load(wasm.I64Load, boxPayload)
		g.wrap(arm.bindType)
		g.f.LocalSet(uint32(arm.slot))
	}
	g.stmts(arm.Stmts)
	g.expr(arm.Value)
}

func blockResult(t Type) wasm.BlockType {
	if t.ValType() == wasm.I64 {
		return wasm.BlockI64
	}
	return wasm.BlockI32
}

// extend widens an i32 value on the stack to the i64 slot it is being
// stored into. Pointers and Booleans are non-negative, so the
// extension is unsigned.
func (g *gen) extend(t Type) {
	if t.ValType() == wasm.I32 {
		g.f.Op(wasm.I64ExtendI32U)
	}
}

// wrap narrows an i64 slot value back to its i32 form.
func (g *gen) wrap(t Type) {
	if t.ValType() == wasm.I32 {
		g.f.Op(wasm.I32WrapI64)
	}
}
