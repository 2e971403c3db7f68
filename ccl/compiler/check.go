package compiler

// The checker resolves every name, types every expression, assigns
// storage slots, and runs return-flow analysis. All diagnostics for a
// program are collected in one pass over the AST; checking recovers
// and continues wherever that is sound, so authors see every error at
// once. Maps are used for name lookup only and never iterated;
// diagnostic order comes from sorting by source position.

type checker struct {
	buf  []byte
	prog *Program

	records map[string]*RecordDecl
	consts  map[string]*ConstDecl
	funcs   map[string]*FuncDecl
	seen    map[string]int // top-level name -> first nameOff

	global *scope // constant bindings, parent of every function scope
	diags  ErrorList

	// per-function state
	fn     *FuncDecl
	nslots int
	depth  int // if/while/for body nesting, for shadow warnings
}

// check validates prog against the static semantics, filling in the
// type and slot annotations codegen relies on.
func check(buf []byte, prog *Program) ErrorList {
	c := &checker{
		buf:     buf,
		prog:    prog,
		records: make(map[string]*RecordDecl),
		consts:  make(map[string]*ConstDecl),
		funcs:   make(map[string]*FuncDecl),
		seen:    make(map[string]int),
		global:  new(scope),
	}
	c.collectDecls()
	c.resolveRecords()
	c.checkConsts()
	c.resolveSignatures()
	for _, fn := range prog.Funcs {
		c.checkFunc(fn)
	}
	c.checkEntry()
	return c.diags.sorted()
}

func (c *checker) errorf(off int, kind Kind, format string, args ...interface{}) {
	c.diags = append(c.diags, diag(c.buf, off, kind, SevError, format, args...))
}

func (c *checker) warnf(off int, kind Kind, format string, args ...interface{}) {
	c.diags = append(c.diags, diag(c.buf, off, kind, SevWarning, format, args...))
}

// known reports whether every type resolved; checks involving a type
// that already failed are skipped to avoid diagnostic cascades.
func known(ts ...Type) bool {
	for _, t := range ts {
		if t == nil {
			return false
		}
	}
	return true
}

// declarations

// declareTop registers a top-level name. All declarations share one
// namespace; the later of two colliding declarations is blamed.
func (c *checker) declareTop(name string, nameOff int) bool {
	if _, ok := hostFuncByName(name); ok {
		c.errorf(nameOff, DuplicateDeclaration, "%s collides with the host function of the same name", name)
		return false
	}
	if prev, ok := c.seen[name]; ok {
		at := nameOff
		if prev > at {
			at, c.seen[name] = prev, at
		}
		c.errorf(at, DuplicateDeclaration, "%s redeclared", name)
		return false
	}
	c.seen[name] = nameOff
	return true
}

func (c *checker) collectDecls() {
	for _, r := range c.prog.Records {
		switch r.Name {
		case "Integer", "Mana", "Boolean", "String", "Did", "Array", "Option", "Result":
			c.errorf(r.nameOff, DuplicateDeclaration, "record %s redefines a built-in type", r.Name)
			continue
		}
		if !c.declareTop(r.Name, r.nameOff) {
			continue
		}
		r.typ = &RecordType{Name: r.Name}
		c.records[r.Name] = r
	}
	for _, con := range c.prog.Consts {
		if !c.declareTop(con.Name, con.nameOff) {
			continue
		}
		c.consts[con.Name] = con
	}
	for _, fn := range c.prog.Funcs {
		if !c.declareTop(fn.Name, fn.nameOff) {
			continue
		}
		c.funcs[fn.Name] = fn
	}
}

// resolveRecords fills in field types. Records were registered first,
// so fields may reference records declared later, including the
// record itself behind an Option.
func (c *checker) resolveRecords() {
	for _, r := range c.prog.Records {
		if r.typ == nil {
			continue // duplicate; the first declaration won
		}
		for _, f := range r.Fields {
			if r.typ.fieldIndex(f.Name) >= 0 {
				c.errorf(f.off, DuplicateDeclaration, "field %s redeclared in record %s", f.Name, r.Name)
				continue
			}
			r.typ.Fields = append(r.typ.Fields, RecordField{Name: f.Name, Type: c.resolveType(f.Type)})
		}
	}
}

func (c *checker) resolveType(ref *TypeRef) Type {
	switch ref.Name {
	case "Integer":
		return IntegerType
	case "Mana":
		return ManaType
	case "Boolean":
		return BooleanType
	case "String":
		return StringType
	case "Did":
		return DidType
	case "Array":
		return &ArrayType{Elem: c.resolveType(ref.Arg)}
	case "Option":
		return &OptionType{Elem: c.resolveType(ref.Arg)}
	case "Result":
		return &ResultType{Ok: c.resolveType(ref.Arg)}
	}
	if r, ok := c.records[ref.Name]; ok {
		return r.typ
	}
	c.errorf(ref.off, UndefinedSymbol, "unknown type %s", ref.Name)
	return nil
}

func (c *checker) checkConsts() {
	for _, con := range c.prog.Consts {
		con.typ = c.resolveType(con.Type)
		got := c.checkExpr(con.Value, new(scope), con.typ)
		if known(con.typ, got) && !assignable(con.typ, got) {
			c.errorf(con.Value.pos(), TypeMismatch, "cannot use %s value as %s in const %s", got, con.typ, con.Name)
		}
		if c.consts[con.Name] == con {
			c.global.declare(binding{name: con.Name, typ: con.typ, slot: -1, c: con})
		}
	}
}

// resolveSignatures types every function's parameters and return
// before any body is checked, so calls between functions resolve in
// either direction. Parameter i always occupies slot i, even when a
// duplicate name is reported.
func (c *checker) resolveSignatures() {
	for _, fn := range c.prog.Funcs {
		for i, par := range fn.Params {
			for _, prev := range fn.Params[:i] {
				if prev.Name == par.Name {
					c.errorf(par.off, DuplicateDeclaration, "parameter %s redeclared", par.Name)
					break
				}
			}
			par.typ = c.resolveType(par.Type)
			fn.slots = append(fn.slots, par.typ)
		}
		if fn.Ret != nil {
			fn.retType = c.resolveType(fn.Ret)
		} else {
			fn.retType = VoidType
		}
	}
}

func (c *checker) checkFunc(fn *FuncDecl) {
	c.fn = fn
	c.nslots = len(fn.Params)
	c.depth = 0

	top := &scope{parent: c.global}
	for i, par := range fn.Params {
		top.declare(binding{name: par.Name, typ: par.typ, slot: i})
	}

	body := &scope{parent: top}
	returns := c.checkStmts(fn.Body, body)
	if fn.retType != VoidType && !returns {
		c.errorf(fn.nameOff, UnreachableReturn, "function %s does not return %s on every path", fn.Name, fn.retType)
	}
	c.fn = nil
}

// checkEntry enforces the run contract: it must exist and its
// signature must use scalar types only.
func (c *checker) checkEntry() {
	fn, ok := c.funcs["run"]
	if !ok {
		c.errorf(0, UndefinedSymbol, "missing entry function run")
		return
	}
	for _, par := range fn.Params {
		if known(par.typ) && !isEntryScalar(par.typ) {
			c.errorf(par.off, TypeMismatch, "run parameter %s must be a scalar type, not %s", par.Name, par.typ)
		}
	}
	if fn.retType == VoidType {
		c.errorf(fn.nameOff, TypeMismatch, "run must declare a scalar return type")
	} else if known(fn.retType) && !isEntryScalar(fn.retType) {
		c.errorf(fn.nameOff, TypeMismatch, "run must return a scalar type, not %s", fn.retType)
	}
}

func isEntryScalar(t Type) bool {
	b, ok := t.(*Basic)
	return ok && b != VoidType
}

func (c *checker) addSlot(t Type) int {
	c.fn.slots = append(c.fn.slots, t)
	n := c.nslots
	c.nslots++
	return n
}

// statements

// checkStmts checks a statement list in its own inherited frame and
// reports whether every path through it returns. The first statement
// following a definite return is flagged unreachable; the rest are
// still checked.
func (c *checker) checkStmts(stmts []Stmt, sc *scope) bool {
	returned := false
	flagged := false
	for _, s := range stmts {
		if returned && !flagged {
			c.errorf(s.pos(), UnreachableReturn, "unreachable statement")
			flagged = true
		}
		if c.checkStmt(s, sc) {
			returned = true
		}
	}
	return returned
}

func (c *checker) checkStmt(s Stmt, sc *scope) bool {
	switch s := s.(type) {
	case *LetStmt:
		var want Type
		if s.Type != nil {
			want = c.resolveType(s.Type)
		}
		got := c.checkExpr(s.Value, sc, want)
		t := want
		if t == nil {
			t = got
		} else if known(want, got) && !assignable(want, got) {
			c.errorf(s.Value.pos(), TypeMismatch, "cannot use %s value as %s in let %s", got, want, s.Name)
		}
		if t == VoidType {
			c.errorf(s.Value.pos(), TypeMismatch, "let %s binds an expression with no value", s.Name)
			t = nil
		}
		if c.depth > 0 && sc.shadows(s.Name) {
			c.warnf(s.off, DuplicateDeclaration, "let %s shadows an outer binding; assign instead to mutate it", s.Name)
		}
		s.typ = t
		s.slot = c.addSlot(t)
		sc.declare(binding{name: s.Name, typ: t, slot: s.slot})
		return false

	case *AssignStmt:
		b := sc.lookup(s.Name)
		if b == nil {
			c.errorf(s.off, UndefinedSymbol, "assignment to undeclared name %s", s.Name)
			c.checkExpr(s.Value, sc, nil)
			return false
		}
		if b.c != nil {
			c.errorf(s.off, TypeMismatch, "cannot assign to constant %s", s.Name)
			c.checkExpr(s.Value, sc, b.typ)
			return false
		}
		got := c.checkExpr(s.Value, sc, b.typ)
		if known(b.typ, got) && !assignable(b.typ, got) {
			c.errorf(s.Value.pos(), TypeMismatch, "cannot assign %s value to %s %s", got, b.typ, s.Name)
		}
		s.slot = b.slot
		return false

	case *ReturnStmt:
		want := c.fn.retType
		if s.Value == nil {
			if want != VoidType {
				c.errorf(s.off, TypeMismatch, "missing return value in function %s returning %s", c.fn.Name, want)
			}
			return true
		}
		if want == VoidType {
			c.errorf(s.off, TypeMismatch, "function %s returns no value", c.fn.Name)
			c.checkExpr(s.Value, sc, nil)
			return true
		}
		got := c.checkExpr(s.Value, sc, want)
		if known(want, got) && !assignable(want, got) {
			c.errorf(s.Value.pos(), TypeMismatch, "cannot return %s from function %s returning %s", got, c.fn.Name, want)
		}
		return true

	case *IfStmt:
		all := true
		for i := range s.Branches {
			br := &s.Branches[i]
			c.checkCond(br.Cond, sc, "if")
			c.depth++
			if !c.checkStmts(br.Body, &scope{parent: sc}) {
				all = false
			}
			c.depth--
		}
		if len(s.Else) == 0 {
			return false
		}
		c.depth++
		elseRet := c.checkStmts(s.Else, &scope{parent: sc})
		c.depth--
		return all && elseRet

	case *WhileStmt:
		c.checkCond(s.Cond, sc, "while")
		c.depth++
		c.checkStmts(s.Body, &scope{parent: sc})
		c.depth--
		return false

	case *ForStmt:
		st := c.checkExpr(s.Seq, sc, nil)
		var elem Type
		if known(st) {
			if at, ok := st.(*ArrayType); ok {
				elem = at.Elem
			} else {
				c.errorf(s.Seq.pos(), TypeMismatch, "for loop requires an Array, not %s", st)
			}
		}
		s.elemType = elem
		s.slot = c.addSlot(elem)
		c.depth++
		sub := &scope{parent: sc}
		sub.declare(binding{name: s.Name, typ: elem, slot: s.slot})
		c.checkStmts(s.Body, sub)
		c.depth--
		return false

	case *ExprStmt:
		c.checkExpr(s.X, sc, nil)
		return false
	}
	return false
}

func (c *checker) checkCond(cond Expr, sc *scope, form string) {
	t := c.checkExpr(cond, sc, BooleanType)
	if known(t) && t != BooleanType {
		c.errorf(cond.pos(), TypeMismatch, "%s condition must be Boolean, not %s", form, t)
	}
}

// expressions

// checkExpr types e against the static semantics. want, when non-nil,
// is the type the context requires: it lets integer literals adopt
// Mana, string literals adopt Did, and gives None, Err, and [] the
// context they need. It never weakens a check; mismatches against
// want are reported by the caller.
func (c *checker) checkExpr(e Expr, sc *scope, want Type) Type {
	switch e := e.(type) {
	case *IntLit:
		if want == ManaType {
			e.t = ManaType
		} else {
			e.t = IntegerType
		}
		return e.t

	case *StrLit:
		if want == DidType {
			e.t = DidType
		} else {
			e.t = StringType
		}
		return e.t

	case *BoolLit:
		return BooleanType

	case *VarRef:
		b := sc.lookup(e.Name)
		if b == nil {
			c.errorf(e.off, UndefinedSymbol, "undefined name %s", e.Name)
			return nil
		}
		e.t = b.typ
		if b.c != nil {
			e.kind = refConst
			e.c = b.c
		} else {
			e.kind = refVar
			e.slot = b.slot
		}
		return e.t

	case *UnaryExpr:
		if e.Op == "!" {
			t := c.checkExpr(e.X, sc, BooleanType)
			if known(t) && t != BooleanType {
				c.errorf(e.X.pos(), TypeMismatch, "operator ! requires Boolean, not %s", t)
			}
			e.t = BooleanType
			return e.t
		}
		t := c.checkExpr(e.X, sc, want)
		if known(t) && !isNumeric(t) {
			c.errorf(e.X.pos(), TypeMismatch, "unary - requires Integer or Mana, not %s", t)
			return nil
		}
		e.t = t
		return e.t

	case *BinExpr:
		return c.checkBinExpr(e, sc, want)

	case *CallExpr:
		return c.checkCallExpr(e, sc)

	case *MethodExpr:
		return c.checkMethodExpr(e, sc)

	case *FieldExpr:
		rt := c.checkExpr(e.X, sc, nil)
		if !known(rt) {
			return nil
		}
		rec, ok := rt.(*RecordType)
		if !ok {
			c.errorf(e.off, TypeMismatch, "%s is not a record", rt)
			return nil
		}
		i := rec.fieldIndex(e.Name)
		if i < 0 {
			c.errorf(e.off, UndefinedSymbol, "record %s has no field %s", rec.Name, e.Name)
			return nil
		}
		e.idx = i
		e.t = rec.Fields[i].Type
		return e.t

	case *IndexExpr:
		xt := c.checkExpr(e.X, sc, nil)
		it := c.checkExpr(e.Index, sc, IntegerType)
		if known(it) && !isNumeric(it) {
			c.errorf(e.Index.pos(), TypeMismatch, "array index must be Integer, not %s", it)
		}
		if !known(xt) {
			return nil
		}
		at, ok := xt.(*ArrayType)
		if !ok {
			c.errorf(e.X.pos(), TypeMismatch, "cannot index %s", xt)
			return nil
		}
		e.t = at.Elem
		return e.t

	case *ArrayLit:
		return c.checkArrayLit(e, sc, want)

	case *RecordLit:
		return c.checkRecordLit(e, sc)

	case *CtorExpr:
		return c.checkCtorExpr(e, sc, want)

	case *MatchExpr:
		return c.checkMatchExpr(e, sc, want)
	}
	return nil
}

func (c *checker) checkBinExpr(e *BinExpr, sc *scope, want Type) Type {
	switch e.Op {
	case "+", "-", "*", "/", "%":
		xt := c.checkExpr(e.X, sc, want)
		yt := c.checkExpr(e.Y, sc, want)
		ok := true
		if known(xt) && !isNumeric(xt) {
			c.errorf(e.X.pos(), TypeMismatch, "operator %s requires Integer or Mana, not %s", e.Op, xt)
			ok = false
		}
		if known(yt) && !isNumeric(yt) {
			c.errorf(e.Y.pos(), TypeMismatch, "operator %s requires Integer or Mana, not %s", e.Op, yt)
			ok = false
		}
		if !ok || !known(xt, yt) {
			return nil
		}
		e.t = mergeNumeric(xt, yt)
		return e.t

	case "==", "!=":
		// Check the non-literal side first so a leading literal can
		// adopt the other side's Did or Mana.
		x, y := e.X, e.Y
		if isAdoptingLiteral(x) && !isAdoptingLiteral(y) {
			x, y = y, x
		}
		xt := c.checkExpr(x, sc, nil)
		yt := c.checkExpr(y, sc, xt)
		e.t = BooleanType
		if !known(xt, yt) {
			return e.t
		}
		if !isScalar(xt) && !isStringLike(xt) {
			c.errorf(x.pos(), TypeMismatch, "operator %s requires scalar operands, not %s", e.Op, xt)
			return e.t
		}
		if !typesEqual(xt, yt) && !(isNumeric(xt) && isNumeric(yt)) {
			c.errorf(e.off, TypeMismatch, "cannot compare %s with %s", xt, yt)
		}
		return e.t

	case "<", ">", "<=", ">=":
		xt := c.checkExpr(e.X, sc, nil)
		yt := c.checkExpr(e.Y, sc, xt)
		if known(xt) && !isNumeric(xt) {
			c.errorf(e.X.pos(), TypeMismatch, "operator %s requires Integer or Mana, not %s", e.Op, xt)
		}
		if known(yt) && !isNumeric(yt) {
			c.errorf(e.Y.pos(), TypeMismatch, "operator %s requires Integer or Mana, not %s", e.Op, yt)
		}
		e.t = BooleanType
		return e.t

	case "&&", "||":
		xt := c.checkExpr(e.X, sc, BooleanType)
		yt := c.checkExpr(e.Y, sc, BooleanType)
		if known(xt) && xt != BooleanType {
			c.errorf(e.X.pos(), TypeMismatch, "operator %s requires Boolean operands, not %s", e.Op, xt)
		}
		if known(yt) && yt != BooleanType {
			c.errorf(e.Y.pos(), TypeMismatch, "operator %s requires Boolean operands, not %s", e.Op, yt)
		}
		e.t = BooleanType
		return e.t
	}
	return nil
}

func isAdoptingLiteral(e Expr) bool {
	switch e.(type) {
	case *IntLit, *StrLit:
		return true
	}
	return false
}

func (c *checker) checkCallExpr(e *CallExpr, sc *scope) Type {
	if fn, ok := c.funcs[e.Name]; ok {
		e.fn = fn
		e.t = fn.retType
		if len(e.Args) != len(fn.Params) {
			c.errorf(e.off, ArityMismatch, "function %s takes %d arguments, got %d", e.Name, len(fn.Params), len(e.Args))
			c.checkExprs(e.Args, sc)
			return e.t
		}
		for i, a := range e.Args {
			pt := fn.Params[i].typ
			at := c.checkExpr(a, sc, pt)
			if known(at, pt) && !assignable(pt, at) {
				c.errorf(a.pos(), TypeMismatch, "cannot use %s value as %s in argument %d to %s", at, pt, i+1, e.Name)
			}
		}
		return e.t
	}
	if h, ok := hostFuncByName(e.Name); ok {
		e.host = &h
		e.t = h.result
		if len(e.Args) != len(h.params) {
			c.errorf(e.off, ArityMismatch, "host function %s takes %d arguments, got %d", e.Name, len(h.params), len(e.Args))
			c.checkExprs(e.Args, sc)
			return e.t
		}
		for i, a := range e.Args {
			at := c.checkExpr(a, sc, h.params[i])
			if known(at) && !assignable(h.params[i], at) {
				c.errorf(a.pos(), TypeMismatch, "cannot use %s value as %s in argument %d to %s", at, h.params[i], i+1, e.Name)
			}
		}
		return e.t
	}
	c.errorf(e.off, UndefinedSymbol, "call to undefined function %s", e.Name)
	c.checkExprs(e.Args, sc)
	return nil
}

func (c *checker) checkExprs(args []Expr, sc *scope) {
	for _, a := range args {
		c.checkExpr(a, sc, nil)
	}
}

func (c *checker) checkMethodExpr(e *MethodExpr, sc *scope) Type {
	rt := c.checkExpr(e.X, sc, nil)
	if !known(rt) {
		c.checkExprs(e.Args, sc)
		return nil
	}
	sig, ok := resolveMethod(rt, e.Name)
	if !ok {
		c.errorf(e.off, UndefinedSymbol, "type %s has no method %s", rt, e.Name)
		c.checkExprs(e.Args, sc)
		return nil
	}
	e.sig = sig
	e.t = sig.result
	if len(e.Args) != len(sig.params) {
		c.errorf(e.off, ArityMismatch, "method %s takes %d arguments, got %d", e.Name, len(sig.params), len(e.Args))
		c.checkExprs(e.Args, sc)
		return e.t
	}
	for i, a := range e.Args {
		at := c.checkExpr(a, sc, sig.params[i])
		if known(at) && !assignable(sig.params[i], at) {
			c.errorf(a.pos(), TypeMismatch, "cannot use %s value as %s in argument to %s", at, sig.params[i], e.Name)
		}
	}
	return e.t
}

func (c *checker) checkArrayLit(e *ArrayLit, sc *scope, want Type) Type {
	var wantElem Type
	if at, ok := want.(*ArrayType); ok {
		wantElem = at.Elem
	}
	if len(e.Elems) == 0 {
		if wantElem == nil {
			c.errorf(e.off, TypeMismatch, "cannot infer the element type of an empty array literal")
			return nil
		}
		e.t = want
		return e.t
	}
	elem := c.checkExpr(e.Elems[0], sc, wantElem)
	for i := 1; i < len(e.Elems); i++ {
		et := c.checkExpr(e.Elems[i], sc, wantElem)
		if !known(elem, et) {
			if elem == nil {
				elem = et
			}
			continue
		}
		if isNumeric(elem) && isNumeric(et) {
			elem = mergeNumeric(elem, et)
		} else if !typesEqual(elem, et) {
			c.errorf(e.Elems[i].pos(), TypeMismatch, "array element is %s, previous elements are %s", et, elem)
		}
	}
	if wantElem != nil {
		if known(elem) && !assignable(wantElem, elem) {
			c.errorf(e.off, TypeMismatch, "cannot use %s elements in %s", elem, want)
		}
		e.t = want
		return e.t
	}
	if !known(elem) {
		return nil
	}
	e.t = &ArrayType{Elem: elem}
	return e.t
}

func (c *checker) checkRecordLit(e *RecordLit, sc *scope) Type {
	rdecl, ok := c.records[e.Name]
	if !ok {
		c.errorf(e.off, UndefinedSymbol, "unknown record %s", e.Name)
		for i := range e.Fields {
			c.checkExpr(e.Fields[i].Value, sc, nil)
		}
		return nil
	}
	rt := rdecl.typ
	e.t = rt
	used := make([]bool, len(rt.Fields))
	for i := range e.Fields {
		f := &e.Fields[i]
		di := rt.fieldIndex(f.Name)
		if di < 0 {
			c.errorf(f.off, UndefinedSymbol, "record %s has no field %s", e.Name, f.Name)
			c.checkExpr(f.Value, sc, nil)
			continue
		}
		if used[di] {
			c.errorf(f.off, DuplicateDeclaration, "field %s given twice in record literal", f.Name)
			c.checkExpr(f.Value, sc, nil)
			continue
		}
		used[di] = true
		f.idx = di
		ft := rt.Fields[di].Type
		vt := c.checkExpr(f.Value, sc, ft)
		if known(vt, ft) && !assignable(ft, vt) {
			c.errorf(f.Value.pos(), TypeMismatch, "cannot use %s value as %s for field %s", vt, ft, f.Name)
		}
	}
	for di, u := range used {
		if !u {
			c.errorf(e.off, ArityMismatch, "record literal %s missing field %s", e.Name, rt.Fields[di].Name)
		}
	}
	return rt
}

func (c *checker) checkCtorExpr(e *CtorExpr, sc *scope, want Type) Type {
	switch e.Ctor {
	case "Some":
		var wantPayload Type
		if ot, ok := want.(*OptionType); ok {
			wantPayload = ot.Elem
		}
		at := c.checkExpr(e.Arg, sc, wantPayload)
		if wantPayload != nil {
			if known(at) && !assignable(wantPayload, at) {
				c.errorf(e.Arg.pos(), TypeMismatch, "cannot use %s value as %s in Some", at, wantPayload)
			}
			e.t = want
			return e.t
		}
		if !known(at) {
			return nil
		}
		if at == VoidType {
			c.errorf(e.Arg.pos(), TypeMismatch, "Some requires a value")
			return nil
		}
		e.t = &OptionType{Elem: at}
		return e.t

	case "None":
		if _, ok := want.(*OptionType); !ok {
			c.errorf(e.off, TypeMismatch, "cannot infer the type of None here")
			return nil
		}
		e.t = want
		return e.t

	case "Ok":
		var wantPayload Type
		if rt, ok := want.(*ResultType); ok {
			wantPayload = rt.Ok
		}
		at := c.checkExpr(e.Arg, sc, wantPayload)
		if wantPayload != nil {
			if known(at) && !assignable(wantPayload, at) {
				c.errorf(e.Arg.pos(), TypeMismatch, "cannot use %s value as %s in Ok", at, wantPayload)
			}
			e.t = want
			return e.t
		}
		if !known(at) {
			return nil
		}
		if at == VoidType {
			c.errorf(e.Arg.pos(), TypeMismatch, "Ok requires a value")
			return nil
		}
		e.t = &ResultType{Ok: at}
		return e.t

	case "Err":
		at := c.checkExpr(e.Arg, sc, StringType)
		if known(at) && !typesEqual(at, StringType) {
			c.errorf(e.Arg.pos(), TypeMismatch, "Err payload must be String, not %s", at)
		}
		if _, ok := want.(*ResultType); !ok {
			c.errorf(e.off, TypeMismatch, "cannot infer the type of Err here")
			return nil
		}
		e.t = want
		return e.t
	}
	return nil
}

func (c *checker) checkMatchExpr(e *MatchExpr, sc *scope, want Type) Type {
	st := c.checkExpr(e.Subj, sc, nil)
	var payload [2]Type // payload type per arm, by constructor
	if known(st) {
		switch t := st.(type) {
		case *OptionType:
			c.checkArmPair(e, "Some", "None")
			for i, arm := range e.Arms {
				if arm.Ctor == "Some" {
					payload[i] = t.Elem
				}
			}
		case *ResultType:
			c.checkArmPair(e, "Ok", "Err")
			for i, arm := range e.Arms {
				switch arm.Ctor {
				case "Ok":
					payload[i] = t.Ok
				case "Err":
					payload[i] = StringType
				}
			}
		default:
			c.errorf(e.Subj.pos(), TypeMismatch, "match requires an Option or Result, not %s", st)
		}
	}

	// Slots are assigned in source-arm order no matter which arm's
	// value gets typed first below.
	for i, arm := range e.Arms {
		if arm.Bind != "" {
			arm.bindType = payload[i]
			arm.slot = c.addSlot(arm.bindType)
		}
	}

	// When nothing upstream supplies a type and one arm is a bare
	// None/Err/[], the other arm's type is its context.
	order := [2]int{0, 1}
	if want == nil && needsContext(e.Arms[0].Value) && !needsContext(e.Arms[1].Value) {
		order = [2]int{1, 0}
	}
	var ts [2]Type
	for _, i := range order {
		arm := e.Arms[i]
		armWant := want
		if armWant == nil {
			armWant = ts[order[0]]
		}
		sub := &scope{parent: sc}
		if arm.Bind != "" {
			sub.declare(binding{name: arm.Bind, typ: arm.bindType, slot: arm.slot})
		}
		armRet := c.checkStmts(arm.Stmts, sub)
		vt := c.checkExpr(arm.Value, sub, armWant)
		if armRet {
			c.errorf(arm.Value.pos(), UnreachableReturn, "unreachable expression")
		}
		if vt == VoidType {
			c.errorf(arm.Value.pos(), TypeMismatch, "match arm yields no value")
			vt = nil
		}
		ts[i] = vt
	}
	if !known(ts[0], ts[1]) {
		if known(ts[0]) {
			e.t = ts[0]
		} else {
			e.t = ts[1]
		}
		return e.t
	}
	if isNumeric(ts[0]) && isNumeric(ts[1]) {
		e.t = mergeNumeric(ts[0], ts[1])
	} else if typesEqual(ts[0], ts[1]) {
		e.t = ts[0]
	} else {
		c.errorf(e.off, TypeMismatch, "match arms disagree: %s vs %s", ts[0], ts[1])
		e.t = ts[0]
	}
	return e.t
}

// checkArmPair requires the two arms to name the two constructors of
// the subject's type, in either order.
func (c *checker) checkArmPair(e *MatchExpr, a, b string) {
	if (e.Arms[0].Ctor == a && e.Arms[1].Ctor == b) ||
		(e.Arms[0].Ctor == b && e.Arms[1].Ctor == a) {
		return
	}
	c.errorf(e.off, TypeMismatch, "match needs one %s arm and one %s arm, got %s and %s",
		a, b, e.Arms[0].Ctor, e.Arms[1].Ctor)
}

// needsContext reports whether an expression cannot be typed without
// an expected type from its context.
func needsContext(e Expr) bool {
	switch e := e.(type) {
	case *CtorExpr:
		switch e.Ctor {
		case "None", "Err":
			return true
		}
		return needsContext(e.Arg)
	case *ArrayLit:
		return len(e.Elems) == 0
	}
	return false
}
