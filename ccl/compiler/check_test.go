package compiler

import (
	"strings"
	"testing"
)

func checkSource(t *testing.T, src string) ErrorList {
	t.Helper()
	items, err := parse([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return check([]byte(src), buildProgram(items))
}

func TestCheckErrors(t *testing.T) {
	type want struct {
		kind Kind
		frag string
	}
	cases := []struct {
		name string
		src  string
		want []want
	}{
		{
			"undefined variable",
			`fn run() -> Integer { return missing; }`,
			[]want{{UndefinedSymbol, "undefined name missing"}},
		},
		{
			"undefined function",
			`fn run() -> Integer { return frob(1); }`,
			[]want{{UndefinedSymbol, "call to undefined function frob"}},
		},
		{
			"assign to undeclared",
			`fn run() -> Integer { total = 5; return 0; }`,
			[]want{{UndefinedSymbol, "assignment to undeclared name total"}},
		},
		{
			"missing entry",
			`fn helper() -> Integer { return 1; }`,
			[]want{{UndefinedSymbol, "missing entry function run"}},
		},
		{
			"entry parameter not scalar",
			`fn run(xs: Array<Integer>) -> Integer { return 0; }`,
			[]want{{TypeMismatch, "run parameter xs must be a scalar type"}},
		},
		{
			"entry returns nothing",
			`fn run() { return; }`,
			[]want{{TypeMismatch, "run must declare a scalar return type"}},
		},
		{
			"arithmetic on booleans",
			`fn run() -> Integer { let x = true + 1; return x; }`,
			[]want{{TypeMismatch, "operator + requires Integer or Mana, not Boolean"}},
		},
		{
			"logical on integers",
			`fn run() -> Boolean { return 1 && true; }`,
			[]want{{TypeMismatch, "operator && requires Boolean operands, not Integer"}},
		},
		{
			"mixed comparison",
			`fn run() -> Boolean { return "a" == 1; }`,
			[]want{{TypeMismatch, "cannot compare String with Integer"}},
		},
		{
			"function arity",
			`fn add(a: Integer, b: Integer) -> Integer { return a + b; }
fn run() -> Integer { return add(1); }`,
			[]want{{ArityMismatch, "function add takes 2 arguments, got 1"}},
		},
		{
			"host arity",
			`fn run() -> Integer { return host_get_reputation(); }`,
			[]want{{ArityMismatch, "host function host_get_reputation takes 1 arguments, got 0"}},
		},
		{
			// A bare literal would adopt Did from the parameter; a
			// String-typed variable must not.
			"string variable is not a Did",
			`fn run() -> Integer {
    let name = "alice";
    return host_get_reputation(name);
}`,
			[]want{{TypeMismatch, "cannot use String value as Did in argument 1"}},
		},
		{
			"redeclared function",
			`fn run() -> Integer { return 1; }
fn run() -> Integer { return 2; }`,
			[]want{{DuplicateDeclaration, "run redeclared"}},
		},
		{
			"host name collision",
			`fn host_dag_put(s: String) -> String { return s; }
fn run() -> String { return host_dag_put("x"); }`,
			[]want{{DuplicateDeclaration, "collides with the host function"}},
		},
		{
			"duplicate parameter",
			`fn run(a: Integer, a: Integer) -> Integer { return 0; }`,
			[]want{{DuplicateDeclaration, "parameter a redeclared"}},
		},
		{
			"duplicate record field",
			`record Pair { x: Integer, x: Integer }
fn run() -> Integer { return 0; }`,
			[]want{{DuplicateDeclaration, "field x redeclared in record Pair"}},
		},
		{
			"unknown type",
			`fn run(a: Widget) -> Integer { return 0; }`,
			[]want{{UndefinedSymbol, "unknown type Widget"}},
		},
		{
			"const initializer type",
			`const LIMIT: Integer = true;
fn run() -> Integer { return 0; }`,
			[]want{{TypeMismatch, "cannot use Boolean value as Integer in const LIMIT"}},
		},
		{
			"assign to const",
			`const LIMIT: Integer = 10;
fn run() -> Integer { LIMIT = 5; return LIMIT; }`,
			[]want{{TypeMismatch, "cannot assign to constant LIMIT"}},
		},
		{
			"missing return path",
			`fn run(flag: Boolean) -> Integer {
    if flag {
        return 1;
    }
}`,
			[]want{{UnreachableReturn, "does not return Integer on every path"}},
		},
		{
			"unreachable statement",
			`fn run() -> Integer {
    return 1;
    let x = 2;
    return x;
}`,
			[]want{{UnreachableReturn, "unreachable statement"}},
		},
		{
			"if condition type",
			`fn run() -> Integer {
    if 1 {
        return 1;
    }
    return 0;
}`,
			[]want{{TypeMismatch, "if condition must be Boolean, not Integer"}},
		},
		{
			"while condition type",
			`fn run() -> Integer {
    while "x" {
        return 1;
    }
    return 0;
}`,
			[]want{{TypeMismatch, "while condition must be Boolean, not String"}},
		},
		{
			"for over non-array",
			`fn run() -> Integer {
    for x in 5 {
        return x;
    }
    return 0;
}`,
			[]want{{TypeMismatch, "for loop requires an Array, not Integer"}},
		},
		{
			"index must be integer",
			`fn run() -> Integer {
    let xs = [1, 2, 3];
    return xs["0"];
}`,
			[]want{{TypeMismatch, "array index must be Integer, not String"}},
		},
		{
			"index non-array",
			`fn run() -> Integer {
    let n = 4;
    return n[0];
}`,
			[]want{{TypeMismatch, "cannot index Integer"}},
		},
		{
			"field on non-record",
			`fn run() -> Integer {
    let n = 4;
    return n.count;
}`,
			[]want{{TypeMismatch, "Integer is not a record"}},
		},
		{
			"unknown field",
			`record Member { reputation: Integer }
fn run() -> Integer {
    let m = Member{ reputation: 3 };
    return m.mana;
}`,
			[]want{{UndefinedSymbol, "record Member has no field mana"}},
		},
		{
			"record literal missing field",
			`record Member { reputation: Integer, active: Boolean }
fn run() -> Integer {
    let m = Member{ reputation: 3 };
    return m.reputation;
}`,
			[]want{{ArityMismatch, "record literal Member missing field active"}},
		},
		{
			"record literal duplicate field",
			`record Member { reputation: Integer }
fn run() -> Integer {
    let m = Member{ reputation: 3, reputation: 4 };
    return m.reputation;
}`,
			[]want{{DuplicateDeclaration, "field reputation given twice"}},
		},
		{
			"empty array needs context",
			`fn run() -> Integer {
    let xs = [];
    return 0;
}`,
			[]want{{TypeMismatch, "cannot infer the element type of an empty array literal"}},
		},
		{
			"none needs context",
			`fn run() -> Integer {
    let o = None;
    return 0;
}`,
			[]want{{TypeMismatch, "cannot infer the type of None here"}},
		},
		{
			"match arms must cover both constructors",
			`fn run() -> Integer {
    let o = Some(5);
    return match o {
        Some(v) => v,
        Ok(w) => w,
    };
}`,
			[]want{{TypeMismatch, "match needs one Some arm and one None arm, got Some and Ok"}},
		},
		{
			"match subject type",
			`fn run() -> Integer {
    return match 5 {
        Some(v) => v,
        None => 0,
    };
}`,
			[]want{{TypeMismatch, "match requires an Option or Result, not Integer"}},
		},
		{
			"match arm yields no value",
			`fn nothing() {
}
fn run() -> Integer {
    let o = Some(1);
    return match o {
        Some(v) => nothing(),
        None => 0,
    };
}`,
			[]want{{TypeMismatch, "match arm yields no value"}},
		},
		{
			"no method on integers",
			`fn run() -> Integer {
    let n = 4;
    return n.length();
}`,
			[]want{{UndefinedSymbol, "type Integer has no method length"}},
		},
		{
			"method arity",
			`fn run() -> Integer {
    let s = "ab";
    return s.concat().length();
}`,
			[]want{{ArityMismatch, "method concat takes 1 arguments, got 0"}},
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := checkSource(t, c.src)
			if len(got) != len(c.want) {
				t.Fatalf("got %d diagnostics want %d:\n%v", len(got), len(c.want), got)
			}
			for i, w := range c.want {
				if got[i].Kind != w.kind {
					t.Errorf("diagnostic %d kind = %v want %v", i, got[i].Kind, w.kind)
				}
				if !strings.Contains(got[i].Msg, w.frag) {
					t.Errorf("diagnostic %d = %q, missing %q", i, got[i].Msg, w.frag)
				}
			}
		})
	}
}

func TestCheckClean(t *testing.T) {
	cases := []struct {
		name string
		src  string
	}{
		{
			"typed empty array",
			`fn run() -> Integer {
    let xs: Array<Integer> = [];
    return xs.length();
}`,
		},
		{
			"mana and integer mix",
			`fn run(budget: Mana) -> Mana {
    let fee = 3;
    return budget - fee * 2;
}`,
		},
		{
			"did equality",
			`fn run() -> Boolean {
    let a = host_get_caller();
    let b = host_get_caller();
    return a == b;
}`,
		},
		{
			"did literal adoption",
			`fn is_admin(who: Did) -> Boolean {
    return who == "did:icn:admin";
}
fn run() -> Boolean {
    return is_admin(host_get_caller());
}`,
		},
		{
			"forward reference",
			`fn run() -> Integer {
    return helper(4);
}
fn helper(n: Integer) -> Integer {
    return n * 2;
}`,
		},
		{
			"resequenced let",
			`fn run() -> Integer {
    let x = 1;
    let x = x + 1;
    return x;
}`,
		},
		{
			"match arms in either order",
			`fn run() -> Integer {
    let o = Some(7);
    return match o {
        None => 0,
        Some(v) => v,
    };
}`,
		},
		{
			"err binding is a string",
			`fn attempt() -> Result<Integer> {
    return Err("nope");
}
fn run() -> Integer {
    return match attempt() {
        Ok(v) => v,
        Err(msg) => msg.length(),
    };
}`,
		},
		{
			"typed none",
			`fn run() -> Integer {
    let pending: Option<Mana> = None;
    return match pending {
        Some(m) => m,
        None => 0,
    };
}`,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := checkSource(t, c.src)
			if len(got) != 0 {
				t.Errorf("unexpected diagnostics:\n%v", got)
			}
		})
	}
}

func TestDiagPositions(t *testing.T) {
	src := "fn run() -> Integer {\n    return missing;\n}\n"
	got := checkSource(t, src)
	if len(got) != 1 {
		t.Fatalf("got %d diagnostics want 1: %v", len(got), got)
	}
	if got[0].Line != 2 || got[0].Col != 11 {
		t.Errorf("position = %d:%d want 2:11", got[0].Line, got[0].Col)
	}
	if got[0].Sev != SevError {
		t.Errorf("severity = %v want error", got[0].Sev)
	}
}

func TestDiagsSorted(t *testing.T) {
	// The entry check runs last but its diagnostic points at offset
	// zero, so sorting must move it first.
	src := `fn helper() -> Integer {
    return missing;
}`
	got := checkSource(t, src)
	if len(got) != 2 {
		t.Fatalf("got %d diagnostics want 2: %v", len(got), got)
	}
	if !strings.Contains(got[0].Msg, "missing entry function run") {
		t.Errorf("first diagnostic = %q, want the entry error first", got[0].Msg)
	}
	if !strings.Contains(got[1].Msg, "undefined name missing") {
		t.Errorf("second diagnostic = %q", got[1].Msg)
	}
}

func TestShadowWarningSeverity(t *testing.T) {
	src := `fn run() -> Integer {
    let total = 0;
    while total < 3 {
        let total = total + 1;
    }
    return total;
}`
	got := checkSource(t, src)
	if got.HasErrors() {
		t.Fatalf("shadowing must not fail the compile: %v", got)
	}
	w := got.Warnings()
	if len(w) != 1 {
		t.Fatalf("got %d warnings want 1: %v", len(w), w)
	}
	if w[0].Kind != DuplicateDeclaration || w[0].Line != 4 {
		t.Errorf("warning = %+v want DuplicateDeclaration at line 4", w[0])
	}
	if !strings.Contains(w[0].Msg, "shadows an outer binding") {
		t.Errorf("warning message = %q", w[0].Msg)
	}
}
