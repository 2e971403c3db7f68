package compiler

import (
	"fmt"
	"sort"
)

// Severity distinguishes diagnostics that fail the compile from ones
// that merely accompany a successful result.
type Severity int

const (
	SevWarning Severity = iota
	SevError
)

func (s Severity) String() string {
	if s == SevWarning {
		return "warning"
	}
	return "error"
}

/// Kind classifies a diagnostic. The set is closed: every author-facing
// failure is one of these.
type Kind int

const (
	SyntaxError Kind = iota
	UndefinedSymbol
	TypeMismatch
	ArityMismatch
	DuplicateDeclaration
	UnreachableReturn
	CodegenError
)

var kindNames = [...]string{
	SyntaxError:          "syntax error",
	UndefinedSymbol:      "undefined symbol",
	TypeMismatch:         "type mismatch",
	ArityMismatch:        "arity mismatch",
	DuplicateDeclaration: "duplicate declaration",
	UnreachableReturn:    "unreachable return",
	CodegenError:         "codegen error",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Diag is one diagnostic with its source position.
type Diag struct {
	Kind Kind     `json:"kind"`
	Sev  Severity `json:"-"`
	Line int      `json:"line"`
	Col  int      `json:"col"`
	Msg  string   `json:"message"`
}

func (d Diag) Error() string {
	if d.Sev == SevWarning {
		return fmt.Sprintf("line %d, col %d: warning: %s: %s", d.Line, d.Col, d.Kind, d.Msg)
	}
	return fmt.Sprintf("line %d, col %d: %s: %s", d.Line, d.Col, d.Kind, d.Msg)
}

// diag builds a Diag, locating the offset in buf.
func diag(buf []byte, off int, kind Kind, sev Severity, format string, args ...interface{}) Diag {
	line, col := lineCol(buf, off)
	return Diag{
		Kind: kind,
		Sev:  sev,
		Line: line,
		Col:  col,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// ErrorList is every diagnostic produced by one compile, in source
// order. It satisfies error so a failed compile can return it
// directly.
type ErrorList []Diag

func (l ErrorList) Error() string {
	errs := 0
	var first *Diag
	for i := range l {
		if l[i].Sev == SevError {
			if first == nil {
				first = &l[i]
			}
			errs++
		}
	}
	if first == nil {
		if len(l) == 0 {
			return "no diagnostics"
		}
		first = &l[0]
		errs = len(l)
	}
	if errs == 1 {
		return first.Error()
	}
	return fmt.Sprintf("%s (and %d more diagnostics)", first.Error(), errs-1)
}

// HasErrors reports whether any diagnostic is error severity.
// Warnings alone do not fail a compile.
func (l ErrorList) HasErrors() bool {
	for _, d := range l {
		if d.Sev == SevError {
			return true
		}
	}
	return false
}

// Warnings returns only the warning-severity diagnostics.
func (l ErrorList) Warnings() []Diag {
	var w []Diag
	for _, d := range l {
		if d.Sev == SevWarning {
			w = append(w, d)
		}
	}
	return w
}

// sorted orders diagnostics by position. Checking walks declarations
// in several passes, so raw collection order is not source order.
func (l ErrorList) sorted() ErrorList {
	out := append(ErrorList{}, l...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Col < out[j].Col
	})
	return out
}
