package compiler

import "fmt"

// The AST builder converts the parse tree into the typed AST,
// carrying positions through. Name and type resolution belong to the
// checker; nothing here can fail on well-formed parser output.

func buildProgram(items []pItem) *Program {
	prog := new(Program)
	for _, item := range items {
		switch item := item.(type) {
		case *pRecord:
			prog.Records = append(prog.Records, buildRecord(item))
		case *pConst:
			prog.Consts = append(prog.Consts, buildConst(item))
		case *pFn:
			prog.Funcs = append(prog.Funcs, buildFn(item))
		}
	}
	return prog
}

func buildRecord(r *pRecord) *RecordDecl {
	decl := &RecordDecl{Name: r.name, off: r.off, nameOff: r.nameOff}
	for _, f := range r.fields {
		decl.Fields = append(decl.Fields, &FieldDecl{
			Name: f.name,
			Type: buildType(f.typ),
			off:  f.off,
		})
	}
	return decl
}

func buildConst(c *pConst) *ConstDecl {
	return &ConstDecl{
		Name:    c.name,
		Type:    buildType(c.typ),
		Value:   buildExpr(c.value),
		off:     c.off,
		nameOff: c.nameOff,
	}
}

func buildFn(f *pFn) *FuncDecl {
	decl := &FuncDecl{Name: f.name, off: f.off, nameOff: f.nameOff}
	for _, par := range f.params {
		decl.Params = append(decl.Params, &ParamDecl{
			Name: par.name,
			Type: buildType(par.typ),
			off:  par.off,
		})
	}
	if f.ret != nil {
		decl.Ret = buildType(*f.ret)
	}
	decl.Body = buildStmts(f.body.stmts)
	return decl
}

func buildType(t pType) *TypeRef {
	ref := &TypeRef{Name: t.name, off: t.off}
	if len(t.args) > 0 {
		ref.Arg = buildType(t.args[0])
	}
	return ref
}

func buildStmts(stmts []pStmt) []Stmt {
	var out []Stmt
	for _, s := range stmts {
		out = append(out, buildStmt(s))
	}
	return out
}

func buildStmt(s pStmt) Stmt {
	switch s := s.(type) {
	case *pLet:
		let := &LetStmt{Name: s.name, Value: buildExpr(s.value), off: s.off}
		if s.typ != nil {
			let.Type = buildType(*s.typ)
		}
		return let
	case *pAssign:
		return &AssignStmt{Name: s.name, Value: buildExpr(s.value), off: s.off}
	case *pReturn:
		ret := &ReturnStmt{off: s.off}
		if s.value != nil {
			ret.Value = buildExpr(s.value)
		}
		return ret
	case *pIf:
		n := &IfStmt{off: s.off}
		for _, br := range s.branches {
			n.Branches = append(n.Branches, IfBranch{
				Cond: buildExpr(br.cond),
				Body: buildStmts(br.body.stmts),
			})
		}
		if s.elseBody != nil {
			n.Else = buildStmts(s.elseBody.stmts)
		}
		return n
	case *pWhile:
		return &WhileStmt{Cond: buildExpr(s.cond), Body: buildStmts(s.body.stmts), off: s.off}
	case *pFor:
		return &ForStmt{
			Name:    s.name,
			Seq:     buildExpr(s.seq),
			Body:    buildStmts(s.body.stmts),
			off:     s.off,
			nameOff: s.nameOff,
		}
	case *pExprStmt:
		return &ExprStmt{X: buildExpr(s.x), off: s.off}
	}
	panic(fmt.Errorf("unknown statement node %T", s))
}

func buildExpr(e pExpr) Expr {
	switch e := e.(type) {
	case *pInt:
		return &IntLit{Val: e.val, off: e.off}
	case *pStr:
		return &StrLit{Val: e.val, off: e.off}
	case *pBool:
		return &BoolLit{Val: e.val, off: e.off}
	case *pIdent:
		return &VarRef{Name: e.name, off: e.off}
	case *pUnary:
		return &UnaryExpr{Op: e.op, X: buildExpr(e.x), off: e.off}
	case *pBin:
		return &BinExpr{Op: e.op, X: buildExpr(e.x), Y: buildExpr(e.y), off: e.off}
	case *pCall:
		n := &CallExpr{Name: e.name, off: e.off}
		for _, a := range e.args {
			n.Args = append(n.Args, buildExpr(a))
		}
		return n
	case *pDot:
		if e.call {
			n := &MethodExpr{X: buildExpr(e.x), Name: e.name, off: e.off}
			for _, a := range e.args {
				n.Args = append(n.Args, buildExpr(a))
			}
			return n
		}
		return &FieldExpr{X: buildExpr(e.x), Name: e.name, off: e.off}
	case *pIndex:
		return &IndexExpr{X: buildExpr(e.x), Index: buildExpr(e.idx), off: e.off}
	case *pArrayLit:
		n := &ArrayLit{off: e.off}
		for _, el := range e.elems {
			n.Elems = append(n.Elems, buildExpr(el))
		}
		return n
	case *pRecordLit:
		n := &RecordLit{Name: e.name, off: e.off}
		for _, f := range e.fields {
			n.Fields = append(n.Fields, FieldInit{Name: f.name, Value: buildExpr(f.value), off: f.off})
		}
		return n
	case *pCtor:
		n := &CtorExpr{Ctor: e.name, off: e.off}
		if e.arg != nil {
			n.Arg = buildExpr(e.arg)
		}
		return n
	case *pMatch:
		n := &MatchExpr{Subj: buildExpr(e.subj), off: e.off}
		for i := range e.arms {
			n.Arms[i] = buildArm(e.arms[i])
		}
		return n
	}
	panic(fmt.Errorf("unknown expression node %T", e))
}

func buildArm(a pArm) *MatchArm {
	return &MatchArm{
		Ctor:    a.ctor,
		Bind:    a.bind,
		Stmts:   buildStmts(a.stmts),
		Value:   buildExpr(a.expr),
		off:     a.off,
		bindOff: a.bindOff,
	}
}
