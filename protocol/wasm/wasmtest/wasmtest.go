/*
Package wasmtest instantiates and executes encoded wasm modules so
tests can assert what compiled contracts actually compute, not just
what bytes they contain. It supports exactly the instruction subset
the compiler emits and is not a general runtime: branches may only
target void blocks, and every host function takes scalar arguments
and returns one scalar.

Host functions are supplied as Go closures keyed by import name. The
machine gives them access to linear memory so they can follow pointer
arguments. Strings a host needs to hand back are placed at the top of
memory, growing down, well away from the module's own allocations.
*/
package wasmtest

import (
	"encoding/binary"

	"github.com/InterCooperative-Network/icn-core-sub007/errors"
	"github.com/InterCooperative-Network/icn-core-sub007/protocol/wasm"
)

// ErrTrap is the root of every runtime fault: unreachable, division
// by zero, out-of-bounds access, exhausted budgets.
var ErrTrap = errors.New("trap")

const (
	maxSteps    = 1 << 24
	maxDepth    = 256
	maxMemPages = 64
)

// HostFunc implements one imported function.
type HostFunc func(m *Machine, args []int64) (int64, error)

type hostBinding struct {
	name string
	typ  wasm.FuncType
	fn   HostFunc
}

// Machine is one instantiated module.
type Machine struct {
	Module  *wasm.ParsedModule
	Memory  []byte
	Globals []int64

	hosts   []hostBinding
	hostTop int
	steps   int
	depth   int
}

// New instantiates an encoded module. hosts supplies an
// implementation for every function import, keyed by import name.
func New(code []byte, hosts map[string]HostFunc) (*Machine, error) {
	p, err := wasm.ParseModule(code)
	if err != nil {
		return nil, err
	}

	m := &Machine{Module: p}

	if lim, ok := p.HasMemory(); ok {
		pages := lim.Min
		if pages == 0 {
			pages = 1
		}
		if pages > maxMemPages {
			return nil, errors.Wrapf(ErrTrap, "%d pages of memory requested", pages)
		}
		m.Memory = make([]byte, int(pages)*wasm.PageSize)
		m.hostTop = len(m.Memory)
	}

	for _, d := range p.Data {
		if int(d.Offset)+len(d.Bytes) > len(m.Memory) {
			return nil, errors.Wrapf(ErrTrap, "data segment at %d overruns memory", d.Offset)
		}
		copy(m.Memory[d.Offset:], d.Bytes)
	}

	for _, g := range p.Globals {
		m.Globals = append(m.Globals, g.Init)
	}

	for _, imp := range p.Imports {
		if imp.Kind != wasm.ExternFunc {
			continue
		}
		fn := hosts[imp.Name]
		if fn == nil {
			return nil, errors.Wrapf(ErrTrap, "no host implementation for %s.%s", imp.Module, imp.Name)
		}
		m.hosts = append(m.hosts, hostBinding{name: imp.Name, typ: imp.Type, fn: fn})
	}

	return m, nil
}

// Run invokes the function exported as "run".
func (m *Machine) Run(args ...int64) (int64, error) {
	idx, ok := m.Module.ExportedFunc("run")
	if !ok {
		return 0, errors.Wrap(ErrTrap, `no "run" export`)
	}
	res, err := m.call(idx, args)
	if err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, nil
	}
	return res[0], nil
}

// ReadString reads a length-prefixed string at ptr in linear memory.
func (m *Machine) ReadString(ptr int64) (string, error) {
	n, err := m.ReadU32(ptr)
	if err != nil {
		return "", err
	}
	if ptr+4+int64(n) > int64(len(m.Memory)) {
		return "", errors.Wrapf(ErrTrap, "string of %d bytes at %d overruns memory", n, ptr)
	}
	return string(m.Memory[ptr+4 : ptr+4+int64(n)]), nil
}

// WriteString places s in memory as a length-prefixed string and
// returns its pointer. Allocations grow down from the top of memory.
func (m *Machine) WriteString(s string) (int64, error) {
	n := (4 + len(s) + 7) &^ 7
	top := m.hostTop - n
	if top < 0 {
		return 0, errors.Wrap(ErrTrap, "host string space exhausted")
	}
	m.hostTop = top
	binary.LittleEndian.PutUint32(m.Memory[top:], uint32(len(s)))
	copy(m.Memory[top+4:], s)
	return int64(top), nil
}

// ReadU32 reads a little-endian u32 at addr.
func (m *Machine) ReadU32(addr int64) (uint32, error) {
	if addr < 0 || addr+4 > int64(len(m.Memory)) {
		return 0, errors.Wrapf(ErrTrap, "u32 read at %d of %d", addr, len(m.Memory))
	}
	return binary.LittleEndian.Uint32(m.Memory[addr:]), nil
}

// ReadI64 reads a little-endian i64 at addr.
func (m *Machine) ReadI64(addr int64) (int64, error) {
	if addr < 0 || addr+8 > int64(len(m.Memory)) {
		return 0, errors.Wrapf(ErrTrap, "i64 read at %d of %d", addr, len(m.Memory))
	}
	return int64(binary.LittleEndian.Uint64(m.Memory[addr:])), nil
}

func (m *Machine) call(fn uint32, args []int64) ([]int64, error) {
	if m.depth >= maxDepth {
		return nil, errors.Wrap(ErrTrap, "call stack exhausted")
	}
	m.depth++
	defer func() { m.depth-- }()

	if int(fn) < len(m.hosts) {
		h := m.hosts[fn]
		if len(args) != len(h.typ.Params) {
			return nil, errors.Wrapf(ErrTrap, "%s called with %d args for %d params", h.name, len(args), len(h.typ.Params))
		}
		v, err := h.fn(m, args)
		if err != nil {
			return nil, errors.Wrapf(err, "host %s", h.name)
		}
		if len(h.typ.Results) == 0 {
			return nil, nil
		}
		return []int64{v}, nil
	}

	li := int(fn) - len(m.hosts)
	if li >= len(m.Module.Funcs) {
		return nil, errors.Wrapf(ErrTrap, "call of unknown function %d", fn)
	}
	f := m.Module.Funcs[li]
	ft, err := m.Module.FuncType(fn)
	if err != nil {
		return nil, err
	}
	if len(args) != len(ft.Params) {
		return nil, errors.Wrapf(ErrTrap, "function %d called with %d args for %d params", fn, len(args), len(ft.Params))
	}

	locals := make([]int64, len(ft.Params)+len(f.Locals))
	copy(locals, args)
	return m.exec(f.Body, locals, ft)
}

// ctrl records the structure of one block, loop or if: where its else
// and end live in the body.
type ctrl struct {
	op     wasm.Op
	bt     wasm.BlockType
	elsePC int
	endPC  int
}

// scanCtrl matches every structured instruction with its else and end
// so execution can jump without rescanning.
func scanCtrl(body []byte) (map[int]*ctrl, error) {
	table := make(map[int]*ctrl)
	var open []int
	for pc := 0; pc < len(body); {
		inst, err := wasm.ParseOp(body, pc)
		if err != nil {
			return nil, err
		}
		switch inst.Op {
		case wasm.Block, wasm.Loop, wasm.If:
			table[pc] = &ctrl{op: inst.Op, bt: wasm.BlockType(inst.Imm[0]), elsePC: -1}
			open = append(open, pc)
		case wasm.Else:
			if len(open) == 0 {
				return nil, errors.Wrapf(ErrTrap, "else outside block at %d", pc)
			}
			table[open[len(open)-1]].elsePC = pc
		case wasm.End:
			if len(open) > 0 {
				table[open[len(open)-1]].endPC = pc
				open = open[:len(open)-1]
			}
		}
		pc += inst.Len
	}
	if len(open) > 0 {
		return nil, errors.Wrapf(ErrTrap, "unterminated block at %d", open[len(open)-1])
	}
	return table, nil
}

// frame is one active structured instruction.
type frame struct {
	c      *ctrl
	loopPC int // pc just after the loop opcode, -1 otherwise
	sp     int // value stack height at entry
}

func (m *Machine) exec(body []byte, locals []int64, ft wasm.FuncType) ([]int64, error) {
	table, err := scanCtrl(body)
	if err != nil {
		return nil, err
	}

	var (
		stack  []int64
		frames []frame
		pc     = 0
	)

	push := func(v int64) { stack = append(stack, v) }
	pop := func() int64 {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	trap := func(format string, args ...interface{}) error {
		return errors.Wrapf(errors.Wrapf(ErrTrap, format, args...), "at %d", pc)
	}

	for {
		m.steps++
		if m.steps > maxSteps {
			return nil, trap("step budget exhausted")
		}

		inst, err := wasm.ParseOp(body, pc)
		if err != nil {
			return nil, err
		}
		next := pc + inst.Len

		switch inst.Op {
		case wasm.Unreachable:
			return nil, trap("unreachable executed")

		case wasm.Nop:

		case wasm.Block, wasm.If:
			c := table[pc]
			fr := frame{c: c, loopPC: -1, sp: len(stack)}
			if inst.Op == wasm.If {
				fr.sp--
				cond := pop()
				if cond == 0 {
					if c.elsePC >= 0 {
						elseInst, err := wasm.ParseOp(body, c.elsePC)
						if err != nil {
							return nil, err
						}
						next = c.elsePC + elseInst.Len
					} else {
						next = c.endPC
					}
				}
			}
			frames = append(frames, fr)

		case wasm.Loop:
			frames = append(frames, frame{c: table[pc], loopPC: next, sp: len(stack)})

		case wasm.Else:
			// Reached by falling out of the then branch; skip to end.
			next = frames[len(frames)-1].c.endPC

		case wasm.End:
			if len(frames) == 0 {
				// Function end.
				want := len(ft.Results)
				if len(stack) < want {
					return nil, trap("function left %d values for %d results", len(stack), want)
				}
				return stack[len(stack)-want:], nil
			}
			frames = frames[:len(frames)-1]

		case wasm.Br, wasm.BrIf:
			if inst.Op == wasm.BrIf && pop() == 0 {
				break
			}
			n := int(inst.Imm[0])
			if n >= len(frames) {
				return nil, trap("branch depth %d of %d", n, len(frames))
			}
			target := frames[len(frames)-1-n]
			if target.c.bt != wasm.BlockVoid {
				return nil, trap("branch to value-yielding block")
			}
			if target.loopPC >= 0 {
				next = target.loopPC
				frames = frames[:len(frames)-n]
			} else {
				next = target.c.endPC
				frames = frames[:len(frames)-n]
			}
			stack = stack[:target.sp]

		case wasm.Return:
			want := len(ft.Results)
			if len(stack) < want {
				return nil, trap("return with %d values for %d results", len(stack), want)
			}
			return stack[len(stack)-want:], nil

		case wasm.Call:
			fn := uint32(inst.Imm[0])
			ct, err := m.Module.FuncType(fn)
			if err != nil {
				return nil, err
			}
			n := len(ct.Params)
			if len(stack) < n {
				return nil, trap("call of %d with %d of %d args", fn, len(stack), n)
			}
			args := make([]int64, n)
			copy(args, stack[len(stack)-n:])
			stack = stack[:len(stack)-n]
			res, err := m.call(fn, args)
			if err != nil {
				return nil, err
			}
			stack = append(stack, res...)

		case wasm.Drop:
			pop()

		case wasm.Select:
			c := pop()
			b := pop()
			a := pop()
			if c != 0 {
				push(a)
			} else {
				push(b)
			}

		case wasm.LocalGet:
			push(locals[inst.Imm[0]])
		case wasm.LocalSet:
			locals[inst.Imm[0]] = pop()
		case wasm.LocalTee:
			locals[inst.Imm[0]] = stack[len(stack)-1]
		case wasm.GlobalGet:
			push(m.Globals[inst.Imm[0]])
		case wasm.GlobalSet:
			m.Globals[inst.Imm[0]] = pop()

		case wasm.I32Load:
			addr := uint64(uint32(pop())) + uint64(inst.Imm[1])
			if addr+4 > uint64(len(m.Memory)) {
				return nil, trap("i32 load at %d of %d", addr, len(m.Memory))
			}
			push(int64(int32(binary.LittleEndian.Uint32(m.Memory[addr:]))))

		case wasm.I32Load8U:
			addr := uint64(uint32(pop())) + uint64(inst.Imm[1])
			if addr+1 > uint64(len(m.Memory)) {
				return nil, trap("byte load at %d of %d", addr, len(m.Memory))
			}
			push(int64(m.Memory[addr]))

		case wasm.I64Load:
			addr := uint64(uint32(pop())) + uint64(inst.Imm[1])
			if addr+8 > uint64(len(m.Memory)) {
				return nil, trap("i64 load at %d of %d", addr, len(m.Memory))
			}
			push(int64(binary.LittleEndian.Uint64(m.Memory[addr:])))

		case wasm.I32Store:
			v := pop()
			addr := uint64(uint32(pop())) + uint64(inst.Imm[1])
			if addr+4 > uint64(len(m.Memory)) {
				return nil, trap("i32 store at %d of %d", addr, len(m.Memory))
			}
			binary.LittleEndian.PutUint32(m.Memory[addr:], uint32(v))

		case wasm.I32Store8:
			v := pop()
			addr := uint64(uint32(pop())) + uint64(inst.Imm[1])
			if addr+1 > uint64(len(m.Memory)) {
				return nil, trap("byte store at %d of %d", addr, len(m.Memory))
			}
			m.Memory[addr] = byte(v)

		case wasm.I64Store:
			v := pop()
			addr := uint64(uint32(pop())) + uint64(inst.Imm[1])
			if addr+8 > uint64(len(m.Memory)) {
				return nil, trap("i64 store at %d of %d", addr, len(m.Memory))
			}
			binary.LittleEndian.PutUint64(m.Memory[addr:], uint64(v))

		case wasm.MemorySize:
			push(int64(len(m.Memory) / wasm.PageSize))

		case wasm.MemoryGrow:
			delta := pop()
			old := len(m.Memory) / wasm.PageSize
			if delta < 0 || old+int(delta) > maxMemPages {
				push(-1)
				break
			}
			m.Memory = append(m.Memory, make([]byte, int(delta)*wasm.PageSize)...)
			push(int64(old))

		case wasm.I32Const, wasm.I64Const:
			push(inst.Imm[0])

		case wasm.I32Eqz:
			push(b2i(int32(pop()) == 0))
		case wasm.I32Eq:
			b, a := int32(pop()), int32(pop())
			push(b2i(a == b))
		case wasm.I32Ne:
			b, a := int32(pop()), int32(pop())
			push(b2i(a != b))
		case wasm.I32LtS:
			b, a := int32(pop()), int32(pop())
			push(b2i(a < b))
		case wasm.I32GtS:
			b, a := int32(pop()), int32(pop())
			push(b2i(a > b))
		case wasm.I32LeS:
			b, a := int32(pop()), int32(pop())
			push(b2i(a <= b))
		case wasm.I32GeS:
			b, a := int32(pop()), int32(pop())
			push(b2i(a >= b))

		case wasm.I64Eqz:
			push(b2i(pop() == 0))
		case wasm.I64Eq:
			b, a := pop(), pop()
			push(b2i(a == b))
		case wasm.I64Ne:
			b, a := pop(), pop()
			push(b2i(a != b))
		case wasm.I64LtS:
			b, a := pop(), pop()
			push(b2i(a < b))
		case wasm.I64GtS:
			b, a := pop(), pop()
			push(b2i(a > b))
		case wasm.I64LeS:
			b, a := pop(), pop()
			push(b2i(a <= b))
		case wasm.I64GeS:
			b, a := pop(), pop()
			push(b2i(a >= b))

		case wasm.I32Add:
			b, a := int32(pop()), int32(pop())
			push(int64(a + b))
		case wasm.I32Sub:
			b, a := int32(pop()), int32(pop())
			push(int64(a - b))
		case wasm.I32Mul:
			b, a := int32(pop()), int32(pop())
			push(int64(a * b))
		case wasm.I32DivS:
			b, a := int32(pop()), int32(pop())
			if b == 0 {
				return nil, trap("integer divide by zero")
			}
			if a == -1<<31 && b == -1 {
				return nil, trap("integer overflow")
			}
			push(int64(a / b))
		case wasm.I32RemS:
			b, a := int32(pop()), int32(pop())
			if b == 0 {
				return nil, trap("integer divide by zero")
			}
			if a == -1<<31 && b == -1 {
				push(0)
				break
			}
			push(int64(a % b))
		case wasm.I32And:
			b, a := int32(pop()), int32(pop())
			push(int64(a & b))
		case wasm.I32Or:
			b, a := int32(pop()), int32(pop())
			push(int64(a | b))
		case wasm.I32Xor:
			b, a := int32(pop()), int32(pop())
			push(int64(a ^ b))
		case wasm.I32Shl:
			b, a := uint32(pop()), int32(pop())
			push(int64(a << (b % 32)))
		case wasm.I32ShrS:
			b, a := uint32(pop()), int32(pop())
			push(int64(a >> (b % 32)))
		case wasm.I32ShrU:
			b, a := uint32(pop()), uint32(pop())
			push(int64(int32(a >> (b % 32))))

		case wasm.I64Add:
			b, a := pop(), pop()
			push(a + b)
		case wasm.I64Sub:
			b, a := pop(), pop()
			push(a - b)
		case wasm.I64Mul:
			b, a := pop(), pop()
			push(a * b)
		case wasm.I64DivS:
			b, a := pop(), pop()
			if b == 0 {
				return nil, trap("integer divide by zero")
			}
			if a == -1<<63 && b == -1 {
				return nil, trap("integer overflow")
			}
			push(a / b)
		case wasm.I64RemS:
			b, a := pop(), pop()
			if b == 0 {
				return nil, trap("integer divide by zero")
			}
			if a == -1<<63 && b == -1 {
				push(0)
				break
			}
			push(a % b)
		case wasm.I64And:
			b, a := pop(), pop()
			push(a & b)
		case wasm.I64Or:
			b, a := pop(), pop()
			push(a | b)
		case wasm.I64Xor:
			b, a := pop(), pop()
			push(a ^ b)
		case wasm.I64Shl:
			b, a := uint64(pop()), pop()
			push(a << (b % 64))
		case wasm.I64ShrS:
			b, a := uint64(pop()), pop()
			push(a >> (b % 64))
		case wasm.I64ShrU:
			b, a := uint64(pop()), uint64(pop())
			push(int64(a >> (b % 64)))

		case wasm.I32WrapI64:
			push(int64(int32(pop())))
		case wasm.I64ExtendI32S:
			push(int64(int32(pop())))
		case wasm.I64ExtendI32U:
			push(int64(uint32(pop())))

		default:
			return nil, trap("unsupported instruction %s", inst.Op)
		}

		pc = next
	}
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
