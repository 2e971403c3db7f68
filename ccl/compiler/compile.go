package compiler

import (
	"io"

	chainjson "github.com/InterCooperative-Network/icn-core-sub007/encoding/json"
	"github.com/InterCooperative-Network/icn-core-sub007/errors"
)

// Contract is the result of one successful compilation.
type Contract struct {
	// Name is the contract's entry name, which is also its export.
	Name string `json:"name"`

	// Params lists the entry parameters in declaration order.
	Params []ParamInfo `json:"params,omitempty"`

	// Program is the complete encoded wasm module.
	Program chainjson.HexBytes `json:"program"`

	// Metadata describes the module for schedulers and auditors.
	Metadata Metadata `json:"metadata"`

	// Warnings carries the warning-severity diagnostics. Warnings
	// never fail a compile.
	Warnings []Diag `json:"warnings,omitempty"`
}

// Compile reads one CCL program from r and compiles it to a
// deterministic wasm module. Compilation is atomic: it returns either
// a complete contract or an ErrorList carrying every diagnostic,
// never partial output. Compiling the same source twice produces
// identical bytes.
func Compile(r io.Reader) (*Contract, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "reading input")
	}
	return compile(src)
}

func compile(src []byte) (*Contract, error) {
	items, err := parse(src)
	if err != nil {
		pe, ok := err.(parserErr)
		if !ok {
			return nil, err
		}
		return nil, ErrorList{pe.diag()}
	}

	prog := buildProgram(items)
	diags := check(src, prog)
	if diags.HasErrors() {
		return nil, diags
	}

	var entry *FuncDecl
	for _, fn := range prog.Funcs {
		if fn.Name == "run" {
			entry = fn
			break
		}
	}

	optimize(prog)

	code, err := generate(prog)
	if err != nil {
		return nil, codegenFailure(err)
	}
	md, err := buildMetadata(code, entry)
	if err != nil {
		return nil, codegenFailure(err)
	}

	return &Contract{
		Name:     "run",
		Params:   md.Params,
		Program:  code,
		Metadata: md,
		Warnings: diags.Warnings(),
	}, nil
}

// codegenFailure presents an internal emission failure the same way
// every other compile failure presents: as an ErrorList.
func codegenFailure(err error) error {
	return ErrorList{{Kind: CodegenError, Sev: SevError, Line: 1, Col: 0, Msg: err.Error()}}
}
