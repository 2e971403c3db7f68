// Command cclc compiles a CCL contract to a wasm module.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/InterCooperative-Network/icn-core-sub007/ccl/compiler"
	"github.com/InterCooperative-Network/icn-core-sub007/env"
	"github.com/InterCooperative-Network/icn-core-sub007/protocol/wasm"
)

const help = `Usage: cclc <contract.ccl

Command cclc reads one CCL contract from stdin, compiles it, and
writes the result to stdout.

The output format comes from $CCLC_FORMAT:

	json    contract document with hex program and metadata (default)
	wasm    raw module bytes
	asm     disassembled module text

Diagnostics print to stderr, one per line. Warnings do not fail
the compile.

Exit code 0 indicates success.
Exit code 1 indicates the contract did not compile.
Exit code 2 indicates a usage or I/O error.
`

var format = env.String("CCLC_FORMAT", "json")

func main() {
	env.Parse()
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, help)
	}
	flag.Parse()

	if flag.NArg() != 0 {
		fmt.Fprint(os.Stderr, help)
		os.Exit(2)
	}

	contract, err := compiler.Compile(os.Stdin)
	if err != nil {
		if list, ok := err.(compiler.ErrorList); ok {
			for _, d := range list {
				fmt.Fprintln(os.Stderr, d.Error())
			}
			os.Exit(1)
		}
		fatalf("%v\n", err)
	}
	for _, w := range contract.Warnings {
		fmt.Fprintln(os.Stderr, w.Error())
	}

	switch *format {
	case "json":
		doc, err := json.MarshalIndent(contract, "", "  ")
		if err != nil {
			fatalf("error json-marshaling: %s\n", err)
		}
		fmt.Println(string(doc))
	case "wasm":
		if _, err := os.Stdout.Write(contract.Program); err != nil {
			fatalf("%v\n", err)
		}
	case "asm":
		text, err := wasm.Disassemble(contract.Program)
		if err != nil {
			fatalf("%v\n", err)
		}
		fmt.Print(text)
	default:
		fatalf("unknown CCLC_FORMAT %q\n", *format)
	}
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
	os.Exit(2)
}
