package wasm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/InterCooperative-Network/icn-core-sub007/errors"
)

// Disassemble renders an encoded module in a wat-like text form. It
// is meant for humans: debugging output, test failure reports, and
// the asm output mode of the compile driver.
func Disassemble(b []byte) (string, error) {
	p, err := ParseModule(b)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("(module\n")

	for i, t := range p.Types {
		fmt.Fprintf(&sb, "  (type %d %s)\n", i, t)
	}

	impFn := 0
	for _, imp := range p.Imports {
		switch imp.Kind {
		case ExternFunc:
			fmt.Fprintf(&sb, "  (import %q %q (func %d %s))\n", imp.Module, imp.Name, impFn, imp.Type)
			impFn++
		case ExternMemory:
			fmt.Fprintf(&sb, "  (import %q %q (memory %s))\n", imp.Module, imp.Name, limitsString(imp.Mem))
		}
	}

	if p.Memory != nil {
		fmt.Fprintf(&sb, "  (memory %s)\n", limitsString(*p.Memory))
	}

	for i, g := range p.Globals {
		t := g.Type.String()
		if g.Mutable {
			t = "(mut " + t + ")"
		}
		fmt.Fprintf(&sb, "  (global %d %s (%s.const %d))\n", i, t, g.Type, g.Init)
	}

	for i, f := range p.Funcs {
		fn := uint32(impFn + i)
		header := fmt.Sprintf("  (func %d (type %d)", fn, f.TypeIdx)
		if len(f.Locals) > 0 {
			header += " (local"
			for _, l := range f.Locals {
				header += " " + l.String()
			}
			header += ")"
		}
		sb.WriteString(header + "\n")
		lines, err := renderBody(f.Body)
		if err != nil {
			return "", errors.Wrapf(err, "func %d", fn)
		}
		for _, ln := range lines {
			sb.WriteString("    " + ln + "\n")
		}
		sb.WriteString("  )\n")
	}

	for _, e := range p.Exports {
		fmt.Fprintf(&sb, "  (export %q (%s %d))\n", e.Name, e.Kind, e.Index)
	}

	for _, d := range p.Data {
		fmt.Fprintf(&sb, "  (data (i32.const %d) %s)\n", d.Offset, strconv.Quote(string(d.Bytes)))
	}

	sb.WriteString(")\n")
	return sb.String(), nil
}

// DisasmFunc renders the body of the local function at index fn in
// the function index space, one instruction per line, indented by
// block structure.
func (p *ParsedModule) DisasmFunc(fn uint32) (string, error) {
	f, err := p.localFunc(fn)
	if err != nil {
		return "", err
	}
	lines, err := renderBody(f.Body)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// FuncOpcodes renders the body of the local function at index fn as a
// single space-separated line. This is the compact listing carried in
// contract metadata.
func (p *ParsedModule) FuncOpcodes(fn uint32) (string, error) {
	f, err := p.localFunc(fn)
	if err != nil {
		return "", err
	}
	var parts []string
	for pc := 0; pc < len(f.Body); {
		inst, err := ParseOp(f.Body, pc)
		if err != nil {
			return "", err
		}
		pc += inst.Len
		if inst.Op == End && pc == len(f.Body) {
			break
		}
		parts = append(parts, inst.render())
	}
	return strings.Join(parts, " "), nil
}

func (p *ParsedModule) localFunc(fn uint32) (ParsedFunc, error) {
	li := int(fn) - p.NumImportFuncs()
	if li < 0 || li >= len(p.Funcs) {
		return ParsedFunc{}, errors.Wrapf(ErrBadSection, "no local function at index %d", fn)
	}
	return p.Funcs[li], nil
}

// renderBody lists a body's instructions, indented by nesting depth
// and without the end that closes the function.
func renderBody(body []byte) ([]string, error) {
	var (
		lines []string
		depth = 0
	)
	for pc := 0; pc < len(body); {
		inst, err := ParseOp(body, pc)
		if err != nil {
			return nil, err
		}
		pc += inst.Len

		indent := depth
		switch inst.Op {
		case Block, Loop, If:
			depth++
		case End:
			if pc == len(body) && depth == 0 {
				continue
			}
			depth--
			indent = depth
		case Else:
			indent = depth - 1
		}
		if indent < 0 {
			return nil, errors.Wrapf(ErrBadSection, "unbalanced end at %d", pc-inst.Len)
		}
		lines = append(lines, strings.Repeat("  ", indent)+inst.render())
	}
	return lines, nil
}

func limitsString(lim Limits) string {
	if lim.HasMax {
		return fmt.Sprintf("%d %d", lim.Min, lim.Max)
	}
	return fmt.Sprintf("%d", lim.Min)
}
