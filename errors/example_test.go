package errors_test

import (
	"fmt"
	"io"

	"github.com/InterCooperative-Network/icn-core-sub007/errors"
)

func ExampleWrap() {
	err := errors.Wrap(io.EOF, "reading contract source")
	fmt.Println(err)
	fmt.Println(errors.Root(err) == io.EOF)
	// Output:
	// reading contract source: EOF
	// true
}

func ExampleWithDetail() {
	err := errors.New("type mismatch")
	err = errors.WithDetailf(err, "operand of %q must be Boolean", "&&")
	fmt.Println(err)
	fmt.Println(errors.Detail(err))
	// Output:
	// operand of "&&" must be Boolean: type mismatch
	// operand of "&&" must be Boolean
}
