package compiler

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/InterCooperative-Network/icn-core-sub007/errors"
	"github.com/InterCooperative-Network/icn-core-sub007/protocol/wasm/wasmtest"
	"github.com/InterCooperative-Network/icn-core-sub007/testutil"
)

const calculateTotal = `
fn calculate_total(base: Integer, multiplier: Integer, bonus: Integer) -> Integer {
    return base * multiplier + bonus;
}

fn run(base: Integer, multiplier: Integer, bonus: Integer) -> Integer {
    return calculate_total(base, multiplier, bonus);
}
`

const grader = `
fn grade(score: Integer) -> String {
    if score >= 90 {
        return "A";
    } else if score >= 80 {
        return "B";
    } else if score >= 70 {
        return "C";
    } else if score >= 60 {
        return "D";
    } else {
        return "F";
    }
}

fn run(score: Integer) -> String {
    return grade(score);
}
`

const manaGate = `
record Request {
    who: Did,
    amount: Mana,
}

fn gate(req: Request) -> Result<Mana> {
    let balance = host_account_get_mana(req.who);
    if balance < req.amount {
        return Err("insufficient mana");
    }
    if host_account_spend_mana(req.who, req.amount) {
        return Ok(balance - req.amount);
    }
    return Err("spend rejected");
}

fn run(amount: Mana) -> Mana {
    let req = Request{ who: host_get_caller(), amount: amount };
    return match gate(req) {
        Ok(rest) => rest,
        Err(msg) => 0 - msg.length(),
    };
}
`

func mustCompile(t *testing.T, src string) *Contract {
	t.Helper()
	c, err := Compile(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	return c
}

func compileErrs(t *testing.T, src string) ErrorList {
	t.Helper()
	c, err := Compile(strings.NewReader(src))
	if err == nil {
		t.Fatal("Compile succeeded, want diagnostics")
	}
	if c != nil {
		t.Fatal("Compile returned a contract alongside an error")
	}
	list, ok := err.(ErrorList)
	if !ok {
		t.Fatalf("Compile err is %T, want ErrorList", err)
	}
	return list
}

func machine(t *testing.T, c *Contract, hosts map[string]wasmtest.HostFunc) *wasmtest.Machine {
	t.Helper()
	m, err := wasmtest.New(c.Program, hosts)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

// execute compiles src and invokes its run export once.
func execute(t *testing.T, src string, hosts map[string]wasmtest.HostFunc, args ...int64) int64 {
	t.Helper()
	m := machine(t, mustCompile(t, src), hosts)
	got, err := m.Run(args...)
	if err != nil {
		t.Fatalf("Run(%v): %v", args, err)
	}
	return got
}

func TestCalculateTotal(t *testing.T) {
	if got := execute(t, calculateTotal, nil, 5, 3, 2); got != 17 {
		t.Errorf("calculate_total(5, 3, 2) = %d want 17", got)
	}
}

func TestGraderChain(t *testing.T) {
	c := mustCompile(t, grader)
	cases := []struct {
		score int64
		want  string
	}{
		{95, "A"},
		{90, "A"},
		{85, "B"},
		{72, "C"},
		{60, "D"},
		{55, "F"},
		{0, "F"},
	}
	for _, cs := range cases {
		m := machine(t, c, nil)
		ptr, err := m.Run(cs.score)
		if err != nil {
			t.Fatalf("Run(%d): %v", cs.score, err)
		}
		got, err := m.ReadString(ptr)
		if err != nil {
			t.Fatal(err)
		}
		if got != cs.want {
			t.Errorf("grade(%d) = %q want %q", cs.score, got, cs.want)
		}
	}
}

func TestLoopTermination(t *testing.T) {
	const src = `
fn run() -> Integer {
    let count = 0;
    while count < 5 {
        count = count + 1;
    }
    return count;
}
`
	if got := execute(t, src, nil); got != 5 {
		t.Errorf("counter stopped at %d want 5", got)
	}
}

func TestMembershipSearch(t *testing.T) {
	const src = `
fn run(needle: Integer) -> Boolean {
    let xs = [1, 2, 3];
    for x in xs {
        if x == needle {
            return true;
        }
    }
    return false;
}
`
	c := mustCompile(t, src)
	for _, cs := range []struct{ needle, want int64 }{{2, 1}, {1, 1}, {3, 1}, {9, 0}} {
		got, err := machine(t, c, nil).Run(cs.needle)
		if err != nil {
			t.Fatalf("Run(%d): %v", cs.needle, err)
		}
		if got != cs.want {
			t.Errorf("search for %d = %d want %d", cs.needle, got, cs.want)
		}
	}
}

func TestNestedLoops(t *testing.T) {
	const src = `
fn run() -> Integer {
    let hits = 0;
    let i = 0;
    while i < 3 {
        let j = 0;
        while j < 2 {
            hits = hits + 1;
            j = j + 1;
        }
        i = i + 1;
    }
    return hits;
}
`
	if got := execute(t, src, nil); got != 6 {
		t.Errorf("inner body ran %d times want 6", got)
	}
}

func TestShadowingIsNotMutation(t *testing.T) {
	const src = `
fn run(flip: Boolean) -> Integer {
    let x = 1;
    if flip {
        let x = 99;
        x = x + 1;
    }
    return x;
}
`
	c := mustCompile(t, src)
	if len(c.Warnings) != 1 {
		t.Fatalf("got %d warnings want 1: %v", len(c.Warnings), c.Warnings)
	}
	if c.Warnings[0].Kind != DuplicateDeclaration {
		t.Errorf("warning kind = %v want %v", c.Warnings[0].Kind, DuplicateDeclaration)
	}

	// The inner let writes its own slot; the outer binding survives.
	for _, flip := range []int64{0, 1} {
		got, err := machine(t, c, nil).Run(flip)
		if err != nil {
			t.Fatal(err)
		}
		if got != 1 {
			t.Errorf("run(%d) = %d want 1", flip, got)
		}
	}
}

func TestAssignUndeclared(t *testing.T) {
	const src = `
fn run() -> Integer {
    total = 5;
    return 0;
}
`
	list := compileErrs(t, src)
	if len(list) == 0 || list[0].Kind != UndefinedSymbol {
		t.Fatalf("diagnostics = %v want leading UndefinedSymbol", list)
	}
	if !strings.Contains(list[0].Msg, "total") {
		t.Errorf("message %q does not name the symbol", list[0].Msg)
	}
}

func TestDeterministicOutput(t *testing.T) {
	a := mustCompile(t, manaGate)
	b := mustCompile(t, manaGate)
	if !bytes.Equal(a.Program, b.Program) {
		t.Error("same source compiled to different bytes")
	}
	if !bytes.Equal(a.Metadata.ContentHash, b.Metadata.ContentHash) {
		t.Error("same source produced different content hashes")
	}
	if !testutil.DeepEqual(a.Metadata.Imports, b.Metadata.Imports) {
		t.Errorf("import order differs: %v vs %v", a.Metadata.Imports, b.Metadata.Imports)
	}
}

func TestCompileAtomic(t *testing.T) {
	const src = `
fn run(a: Integer) -> Integer {
    let s = "x" + 1;
    frob(a);
    return true;
}
`
	list := compileErrs(t, src)
	wantKinds := []Kind{TypeMismatch, UndefinedSymbol, TypeMismatch}
	if len(list) != len(wantKinds) {
		t.Fatalf("got %d diagnostics want %d: %v", len(list), len(wantKinds), list)
	}
	for i, d := range list {
		if d.Kind != wantKinds[i] {
			t.Errorf("diagnostic %d kind = %v want %v", i, d.Kind, wantKinds[i])
		}
		if i > 0 && d.Line < list[i-1].Line {
			t.Errorf("diagnostic %d at line %d precedes line %d", i, d.Line, list[i-1].Line)
		}
	}
}

func TestContractJSON(t *testing.T) {
	c := mustCompile(t, manaGate)
	raw, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}

	var doc struct {
		Name     string `json:"name"`
		Program  string `json:"program"`
		Metadata struct {
			Export      string   `json:"export"`
			Returns     string   `json:"returns"`
			SizeBytes   int      `json:"size_bytes"`
			ContentHash string   `json:"content_hash"`
			Imports     []string `json:"imports"`
		} `json:"metadata"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatal(err)
	}

	if doc.Name != "run" || doc.Metadata.Export != "run" {
		t.Errorf("name/export = %q/%q want run/run", doc.Name, doc.Metadata.Export)
	}
	if doc.Metadata.Returns != "Mana" {
		t.Errorf("returns = %q want Mana", doc.Metadata.Returns)
	}
	prog, err := hex.DecodeString(doc.Program)
	if err != nil {
		t.Fatalf("program is not hex: %v", err)
	}
	if !bytes.Equal(prog, c.Program) {
		t.Error("program JSON does not round-trip")
	}
	if doc.Metadata.SizeBytes != len(c.Program) {
		t.Errorf("size_bytes = %d want %d", doc.Metadata.SizeBytes, len(c.Program))
	}
	if len(doc.Metadata.ContentHash) != 64 {
		t.Errorf("content_hash %q is not a 32-byte hex digest", doc.Metadata.ContentHash)
	}
}

func TestDiagJSON(t *testing.T) {
	raw, err := json.Marshal(Diag{Kind: TypeMismatch, Line: 3, Col: 7, Msg: "boom"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"kind":"type mismatch","line":3,"col":7,"message":"boom"}`
	if string(raw) != want {
		t.Errorf("diag JSON = %s want %s", raw, want)
	}
}

type failReader struct{}

func (failReader) Read([]byte) (int, error) { return 0, errors.New("disk gone") }

func TestReadFailure(t *testing.T) {
	_, err := Compile(failReader{})
	if err == nil {
		t.Fatal("Compile succeeded on a failing reader")
	}
	if !strings.Contains(err.Error(), "reading input") {
		t.Errorf("err = %q, missing read context", err)
	}
}
