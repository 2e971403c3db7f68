package wasm

import (
	"testing"
)

func buildAbsModule(t *testing.T) []byte {
	m := NewModule()
	f := m.AddFunc(FuncType{Params: []ValType{I64}, Results: []ValType{I64}})
	f.LocalGet(0).I64Const(0).Op(I64LtS)
	f.If(BlockI64)
	f.I64Const(0).LocalGet(0).Op(I64Sub)
	f.Else()
	f.LocalGet(0)
	f.End()
	m.AddExport("abs", ExternFunc, f.Index)

	enc, err := m.Encode()
	if err != nil {
		t.Fatal(err)
	}
	return enc
}

func TestDisassemble(t *testing.T) {
	got, err := Disassemble(buildAbsModule(t))
	if err != nil {
		t.Fatal(err)
	}

	want := `(module
  (type 0 (func (param i64) (result i64)))
  (func 0 (type 0)
    local.get 0
    i64.const 0
    i64.lt_s
    if (result i64)
      i64.const 0
      local.get 0
      i64.sub
    else
      local.get 0
    end
  )
  (export "abs" (func 0))
)
`
	if got != want {
		t.Errorf("Disassemble:\n%s\nwant:\n%s", got, want)
	}
}

func TestFuncOpcodes(t *testing.T) {
	p, err := ParseModule(buildAbsModule(t))
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.FuncOpcodes(0)
	if err != nil {
		t.Fatal(err)
	}
	want := "local.get 0 i64.const 0 i64.lt_s if (result i64) i64.const 0 local.get 0 i64.sub else local.get 0 end"
	if got != want {
		t.Errorf("FuncOpcodes = %q want %q", got, want)
	}
}

func TestDisasmFuncRange(t *testing.T) {
	p, err := ParseModule(buildAbsModule(t))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := p.DisasmFunc(7); err == nil {
		t.Error("DisasmFunc(7) succeeded, want error")
	}
}
