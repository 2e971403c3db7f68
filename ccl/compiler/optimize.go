package compiler

import "github.com/InterCooperative-Network/icn-core-sub007/math/checked"

// The optimizer rewrites a checked, error-free AST into a cheaper one
// with identical meaning. Every arithmetic fold goes through
// math/checked: a fold that would overflow, or hit a zero divisor, is
// abandoned so the expression keeps its runtime trap. Folds preserve
// the checker's types exactly, Mana included.
//
// Rewrites performed:
//   - integer and boolean constant folding, including comparisons
//   - constant references inlined as typed literals
//   - && and || with a literal left side reduced per short-circuit
//     evaluation (a literal right side is kept: the left side must
//     still evaluate)
//   - if branches with literal false guards dropped; a literal true
//     guard absorbs the rest of its chain
//   - while loops with literal false conditions dropped
//   - expression statements that are bare literals dropped

func optimize(prog *Program) {
	for _, fn := range prog.Funcs {
		fn.Body = optStmts(fn.Body)
	}
}

func optStmts(stmts []Stmt) []Stmt {
	var out []Stmt
	for _, s := range stmts {
		out = append(out, optStmt(s)...)
	}
	return out
}

func optStmt(s Stmt) []Stmt {
	switch s := s.(type) {
	case *LetStmt:
		s.Value = optExpr(s.Value)
	case *AssignStmt:
		s.Value = optExpr(s.Value)
	case *ReturnStmt:
		if s.Value != nil {
			s.Value = optExpr(s.Value)
		}
	case *IfStmt:
		return optIf(s)
	case *WhileStmt:
		s.Cond = optExpr(s.Cond)
		if b, ok := s.Cond.(*BoolLit); ok && !b.Val {
			return nil
		}
		s.Body = optStmts(s.Body)
	case *ForStmt:
		s.Seq = optExpr(s.Seq)
		s.Body = optStmts(s.Body)
	case *ExprStmt:
		s.X = optExpr(s.X)
		switch s.X.(type) {
		case *IntLit, *StrLit, *BoolLit:
			return nil
		}
	}
	return []Stmt{s}
}

func optIf(s *IfStmt) []Stmt {
	var kept []IfBranch
	for i := range s.Branches {
		br := s.Branches[i]
		br.Cond = optExpr(br.Cond)
		if b, ok := br.Cond.(*BoolLit); ok {
			if !b.Val {
				continue
			}
			// Always taken once reached: this branch becomes the else
			// of whatever guards remain, and later branches fall away.
			br.Body = optStmts(br.Body)
			if len(kept) == 0 {
				return br.Body
			}
			s.Branches = kept
			s.Else = br.Body
			return []Stmt{s}
		}
		br.Body = optStmts(br.Body)
		kept = append(kept, br)
	}
	s.Branches = kept
	s.Else = optStmts(s.Else)
	if len(s.Branches) == 0 {
		return s.Else
	}
	return []Stmt{s}
}

func optExpr(e Expr) Expr {
	switch e := e.(type) {
	case *VarRef:
		if e.kind == refConst && e.c != nil {
			return inlineConst(e)
		}
	case *UnaryExpr:
		e.X = optExpr(e.X)
		switch e.Op {
		case "-":
			if x, ok := e.X.(*IntLit); ok {
				if v, ok := checked.NegateInt64(x.Val); ok {
					return &IntLit{Val: v, off: e.off, t: e.t}
				}
			}
		case "!":
			if x, ok := e.X.(*BoolLit); ok {
				return &BoolLit{Val: !x.Val, off: e.off}
			}
		}
	case *BinExpr:
		e.X = optExpr(e.X)
		e.Y = optExpr(e.Y)
		return foldBin(e)
	case *CallExpr:
		for i := range e.Args {
			e.Args[i] = optExpr(e.Args[i])
		}
	case *MethodExpr:
		e.X = optExpr(e.X)
		for i := range e.Args {
			e.Args[i] = optExpr(e.Args[i])
		}
	case *FieldExpr:
		e.X = optExpr(e.X)
	case *IndexExpr:
		e.X = optExpr(e.X)
		e.Index = optExpr(e.Index)
	case *ArrayLit:
		for i := range e.Elems {
			e.Elems[i] = optExpr(e.Elems[i])
		}
	case *RecordLit:
		for i := range e.Fields {
			e.Fields[i].Value = optExpr(e.Fields[i].Value)
		}
	case *CtorExpr:
		if e.Arg != nil {
			e.Arg = optExpr(e.Arg)
		}
	case *MatchExpr:
		e.Subj = optExpr(e.Subj)
		for _, arm := range e.Arms {
			arm.Stmts = optStmts(arm.Stmts)
			arm.Value = optExpr(arm.Value)
		}
	}
	return e
}

func foldBin(e *BinExpr) Expr {
	switch e.Op {
	case "&&":
		if x, ok := e.X.(*BoolLit); ok {
			if !x.Val {
				return &BoolLit{Val: false, off: e.off}
			}
			return e.Y
		}
		return e
	case "||":
		if x, ok := e.X.(*BoolLit); ok {
			if x.Val {
				return &BoolLit{Val: true, off: e.off}
			}
			return e.Y
		}
		return e
	}

	if x, ok := e.X.(*IntLit); ok {
		if y, ok := e.Y.(*IntLit); ok {
			return foldIntBin(e, x.Val, y.Val)
		}
	}
	if x, ok := e.X.(*BoolLit); ok {
		if y, ok := e.Y.(*BoolLit); ok {
			switch e.Op {
			case "==":
				return &BoolLit{Val: x.Val == y.Val, off: e.off}
			case "!=":
				return &BoolLit{Val: x.Val != y.Val, off: e.off}
			}
		}
	}
	return e
}

func foldIntBin(e *BinExpr, x, y int64) Expr {
	var (
		v  int64
		ok bool
	)
	switch e.Op {
	case "+":
		v, ok = checked.AddInt64(x, y)
	case "-":
		v, ok = checked.SubInt64(x, y)
	case "*":
		v, ok = checked.MulInt64(x, y)
	case "/":
		v, ok = checked.DivInt64(x, y)
	case "%":
		v, ok = checked.ModInt64(x, y)
	case "==":
		return &BoolLit{Val: x == y, off: e.off}
	case "!=":
		return &BoolLit{Val: x != y, off: e.off}
	case "<":
		return &BoolLit{Val: x < y, off: e.off}
	case ">":
		return &BoolLit{Val: x > y, off: e.off}
	case "<=":
		return &BoolLit{Val: x <= y, off: e.off}
	case ">=":
		return &BoolLit{Val: x >= y, off: e.off}
	default:
		return e
	}
	if !ok {
		return e
	}
	return &IntLit{Val: v, off: e.off, t: e.t}
}

// inlineConst replaces a constant reference with its literal value,
// typed as the constant was declared.
func inlineConst(e *VarRef) Expr {
	switch v := e.c.Value.(type) {
	case *IntLit:
		return &IntLit{Val: v.Val, off: e.off, t: e.t}
	case *StrLit:
		return &StrLit{Val: v.Val, off: e.off, t: e.t}
	case *BoolLit:
		return &BoolLit{Val: v.Val, off: e.off}
	}
	return e
}
