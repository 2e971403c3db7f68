package compiler

import (
	"fmt"
	"strings"
	"testing"
)

func TestParseForms(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{
			"minimal",
			`fn run() -> Integer { return 0; }`,
		},
		{
			"comments and whitespace",
			`// governance policy
fn run() -> Integer {
    // counts nothing yet
    return 0; // inline
}`,
		},
		{
			"string escapes",
			`fn run() -> String { return "a\"b\\c\nd\te"; }`,
		},
		{
			"negative const literal",
			`const FLOOR: Integer = -3;
fn run() -> Integer { return FLOOR; }`,
		},
		{
			"record with trailing comma",
			`record Vote {
    voter: Did,
    weight: Integer,
}
fn run() -> Integer { return 0; }`,
		},
		{
			"record literal trailing comma",
			`record Vote { weight: Integer }
fn run() -> Integer {
    let v = Vote{ weight: 2, };
    return v.weight;
}`,
		},
		{
			"nested generics",
			`fn run() -> Integer {
    let grid: Array<Array<Integer>> = [[1, 2], [3, 4]];
    return grid[0][1];
}`,
		},
		{
			"match with trailing comma",
			`fn run() -> Integer {
    return match Some(1) {
        Some(v) => v,
        None => 0,
    };
}`,
		},
		{
			"match block arms",
			`fn run() -> Integer {
    return match Some(2) {
        Some(v) => {
            let doubled = v * 2;
            doubled
        },
        None => 0,
    };
}`,
		},
		{
			"all statement forms",
			`const CAP: Integer = 10;
record Tally { yes: Integer, no: Integer }
fn run(n: Integer) -> Integer {
    let t = Tally{ yes: 0, no: 0 };
    let total = 0;
    let i = 0;
    while i < n {
        i = i + 1;
        if i % 2 == 0 {
            total = total + i;
        } else if i > CAP {
            total = total - 1;
        } else {
            total = total + 1;
        }
    }
    for x in [1, 2, 3] {
        total = total + x;
    }
    host_dag_put("checkpoint");
    return total + t.yes;
}`,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if _, err := parse([]byte(c.src)); err != nil {
				t.Errorf("parse: %v", err)
			}
		})
	}
}

// exprString renders a parsed expression with explicit grouping so
// precedence tests can assert tree shape as text.
func exprString(e pExpr) string {
	switch e := e.(type) {
	case *pBin:
		return fmt.Sprintf("(%s %s %s)", exprString(e.x), e.op, exprString(e.y))
	case *pUnary:
		return fmt.Sprintf("(%s%s)", e.op, exprString(e.x))
	case *pInt:
		return fmt.Sprintf("%d", e.val)
	case *pIdent:
		return e.name
	case *pCall:
		args := make([]string, len(e.args))
		for i, a := range e.args {
			args[i] = exprString(a)
		}
		return e.name + "(" + strings.Join(args, ", ") + ")"
	case *pDot:
		s := exprString(e.x) + "." + e.name
		if e.call {
			s += "()"
		}
		return s
	case *pIndex:
		return exprString(e.x) + "[" + exprString(e.idx) + "]"
	}
	return fmt.Sprintf("%T", e)
}

// parseReturnExpr parses a program whose run body is a single return
// and hands back the returned expression's parse tree.
func parseReturnExpr(t *testing.T, expr string) pExpr {
	t.Helper()
	src := "fn run() -> Integer { return " + expr + "; }"
	items, err := parse([]byte(src))
	if err != nil {
		t.Fatalf("parse %q: %v", expr, err)
	}
	fn := items[0].(*pFn)
	ret := fn.body.stmts[0].(*pReturn)
	return ret.value
}

func TestExprPrecedence(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"1 + 2 * 3", "(1 + (2 * 3))"},
		{"1 * 2 + 3", "((1 * 2) + 3)"},
		{"1 + 2 - 3", "((1 + 2) - 3)"},
		{"10 / 2 % 3", "((10 / 2) % 3)"},
		{"1 + 2 < 3 * 4", "((1 + 2) < (3 * 4))"},
		{"a < b == c < d", "((a < b) == (c < d))"},
		{"a == b != c", "((a == b) != c)"},
		{"a == b && c == d", "((a == b) && (c == d))"},
		{"a && b || c && d", "((a && b) || (c && d))"},
		{"!a && b", "((!a) && b)"},
		{"-a * b", "((-a) * b)"},
		{"-(a * b)", "(-(a * b))"},
		{"(1 + 2) * 3", "((1 + 2) * 3)"},
		{"xs[0] + m.f", "(xs[0] + m.f)"},
		{"s.length() * 2", "(s.length() * 2)"},
		{"f(1, 2 + 3)", "f(1, (2 + 3))"},
	}
	for _, c := range cases {
		got := exprString(parseReturnExpr(t, c.in))
		if got != c.want {
			t.Errorf("%q parsed as %s want %s", c.in, got, c.want)
		}
	}
}

func TestElseIfChain(t *testing.T) {
	src := `
fn run(score: Integer) -> Integer {
    if score >= 90 {
        return 4;
    } else if score >= 80 {
        return 3;
    } else if score >= 70 {
        return 2;
    } else if score >= 60 {
        return 1;
    } else {
        return 0;
    }
}
`
	items, err := parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	fn := items[0].(*pFn)
	ifs, ok := fn.body.stmts[0].(*pIf)
	if !ok {
		t.Fatalf("statement is %T want *pIf", fn.body.stmts[0])
	}
	// The whole chain is one node: four guarded branches plus the
	// trailing else, not nested independent ifs.
	if len(ifs.branches) != 4 {
		t.Errorf("chain has %d branches want 4", len(ifs.branches))
	}
	if ifs.elseBody == nil {
		t.Error("trailing else was dropped")
	} else if len(ifs.elseBody.stmts) != 1 {
		t.Errorf("else body has %d statements want 1", len(ifs.elseBody.stmts))
	}
}

func TestParseErrors(t *testing.T) {
	cases := []struct {
		name string
		src  string
		frag string
	}{
		{
			"top-level statement",
			`let x = 5;`,
			"expected fn, record, or const declaration",
		},
		{
			"missing semicolon",
			`fn run() -> Integer { return 1 }`,
			"expected ; token",
		},
		{
			"missing parameter name",
			`fn run( -> Integer { return 1; }`,
			"expected identifier",
		},
		{
			"reserved word binding",
			`fn run() -> Integer { let fn = 5; return 0; }`,
			"fn is a reserved word",
		},
		{
			"empty record",
			`record Empty { }`,
			"record Empty needs at least one field",
		},
		{
			"const wants a literal",
			`const X: Integer = 1 + 2;`,
			"expected ; token",
		},
		{
			"else needs a block",
			`fn run(f: Boolean) -> Integer { if f { return 1; } else return 0; }`,
			"expected { token",
		},
		{
			"match needs two arms",
			`fn run() -> Integer { return match Some(1) { Some(v) => v }; }`,
			"expected , token",
		},
		{
			"match arm constructor",
			`fn run() -> Integer { return match Some(1) { Bogus(v) => v, None => 0 }; }`,
			"expected Some, None, Ok, or Err match arm",
		},
		{
			"match block arm needs a value",
			`fn run() -> Integer { return match Some(1) { Some(v) => { let x = v; }, None => 0 }; }`,
			"match arm block must end with an expression",
		},
		{
			"integer overflow",
			`fn run() -> Integer { return 99999999999999999999; }`,
			"integer literal out of range",
		},
		{
			"unterminated string",
			`fn run() -> String { return "unterminated; }`,
			"unterminated string literal",
		},
		{
			"bad escape",
			`fn run() -> String { return "bad\q"; }`,
			`invalid escape \q in string literal`,
		},
		{
			"keyword as expression",
			`fn run() -> Integer { return while; }`,
			"unexpected keyword while",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := parse([]byte(c.src))
			if err == nil {
				t.Fatal("parse succeeded")
			}
			pe, ok := err.(parserErr)
			if !ok {
				t.Fatalf("err is %T want parserErr", err)
			}
			if !strings.Contains(pe.Error(), c.frag) {
				t.Errorf("err = %q, missing %q", pe, c.frag)
			}
			d := pe.diag()
			if d.Kind != SyntaxError || d.Sev != SevError {
				t.Errorf("diag = %+v want a SyntaxError error", d)
			}
			if d.Line < 1 {
				t.Errorf("line = %d want >= 1", d.Line)
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	src := "fn run() -> Integer {\n    let x = 1\n    return x;\n}\n"
	_, err := parse([]byte(src))
	pe, ok := err.(parserErr)
	if !ok {
		t.Fatalf("err is %T want parserErr", err)
	}
	d := pe.diag()
	// The parser stands just after the 1, so the diagnostic points
	// at the end of line 2 where the semicolon belongs.
	if d.Line != 2 || d.Col != 13 {
		t.Errorf("position = %d:%d want 2:13", d.Line, d.Col)
	}
	if !strings.Contains(d.Msg, "expected ; token") {
		t.Errorf("message = %q", d.Msg)
	}
}
