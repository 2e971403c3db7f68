package compiler

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"golang.org/x/crypto/sha3"

	"github.com/InterCooperative-Network/icn-core-sub007/protocol/wasm"
	"github.com/InterCooperative-Network/icn-core-sub007/testutil"
)

func TestMetadataShape(t *testing.T) {
	c := mustCompile(t, calculateTotal)
	md := c.Metadata

	if md.Export != "run" {
		t.Errorf("Export = %q want %q", md.Export, "run")
	}
	if md.Returns != "Integer" {
		t.Errorf("Returns = %q want %q", md.Returns, "Integer")
	}
	wantParams := []ParamInfo{
		{Name: "base", Type: "Integer"},
		{Name: "multiplier", Type: "Integer"},
		{Name: "bonus", Type: "Integer"},
	}
	if !testutil.DeepEqual(md.Params, wantParams) {
		t.Errorf("Params = %v want %v", md.Params, wantParams)
	}
	if md.SizeBytes != len(c.Program) {
		t.Errorf("SizeBytes = %d, program is %d bytes", md.SizeBytes, len(c.Program))
	}
	hash := sha3.Sum256(c.Program)
	if !bytes.Equal(md.ContentHash, hash[:]) {
		t.Errorf("ContentHash = %x want %x", md.ContentHash, hash[:])
	}
	if len(md.Imports) != 0 {
		t.Errorf("Imports = %v want none", md.Imports)
	}
}

func TestEntryListing(t *testing.T) {
	// The five runtime helpers occupy indices 0 through 4, so the
	// contract function declared first is function 5.
	md := mustCompile(t, calculateTotal).Metadata
	const want = "local.get 0 local.get 1 local.get 2 call 5 return unreachable"
	if md.Opcodes != want {
		t.Errorf("Opcodes = %q want %q", md.Opcodes, want)
	}
}

func TestParamTypeNames(t *testing.T) {
	const src = `
fn run(who: Did, amount: Mana, force: Boolean) -> Boolean {
    if force {
        return host_account_spend_mana(who, amount);
    }
    return false;
}`
	md := mustCompile(t, src).Metadata
	wantParams := []ParamInfo{
		{Name: "who", Type: "Did"},
		{Name: "amount", Type: "Mana"},
		{Name: "force", Type: "Boolean"},
	}
	if !testutil.DeepEqual(md.Params, wantParams) {
		t.Errorf("Params = %v want %v", md.Params, wantParams)
	}
	if md.Returns != "Boolean" {
		t.Errorf("Returns = %q want %q", md.Returns, "Boolean")
	}

	doc, err := json.Marshal(md.Params[0])
	if err != nil {
		t.Fatal(err)
	}
	const wantDoc = `{"name":"who","declared_type":"Did"}`
	if string(doc) != wantDoc {
		t.Errorf("param doc = %s want %s", doc, wantDoc)
	}
}

func TestImportFirstReferenceOrder(t *testing.T) {
	const src = `
fn run(amount: Mana) -> Mana {
    let who = host_get_caller();
    let also = host_get_caller();
    if host_account_get_mana(who) < amount {
        return 0;
    }
    if host_account_spend_mana(also, amount) {
        return amount;
    }
    return 0;
}`
	md := mustCompile(t, src).Metadata
	want := []string{"host_get_caller", "host_account_get_mana", "host_account_spend_mana"}
	if !testutil.DeepEqual(md.Imports, want) {
		t.Errorf("Imports = %v want %v", md.Imports, want)
	}
}

func TestMetadataRejectsMissingEntry(t *testing.T) {
	const src = `
fn run() -> Integer {
    return 1;
}`
	items, err := parse([]byte(src))
	if err != nil {
		t.Fatal(err)
	}
	prog := buildProgram(items)
	if diags := check([]byte(src), prog); diags.HasErrors() {
		t.Fatal(diags)
	}
	entry := prog.Funcs[0]

	// A module that exports nothing cannot describe an entry.
	code, err := wasm.NewModule().Encode()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := buildMetadata(code, entry); err == nil || !strings.Contains(err.Error(), "no run export") {
		t.Errorf("buildMetadata err = %v, want no run export", err)
	}
}
