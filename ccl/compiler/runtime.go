package compiler

import "github.com/InterCooperative-Network/icn-core-sub007/protocol/wasm"

// Heap object layouts. Every allocation is 8-byte aligned, addresses
// are i32, and offset 0 is never handed out, so literals start at 8.
//
//	string  [len u32][bytes]
//	array   [cap u32][len u32][elem i64 x cap]
//	record  [field i64 x n], field i at byte offset 8i
//	box     [tag u32][pad u32][payload i64], for Option and Result
//
// Every element, field and payload occupies a full i64 slot; i32
// values are zero-extended on store and wrapped on load.
const (
	strHeader  = 4
	arrCapOff  = 0
	arrLenOff  = 4
	arrHeader  = 8
	boxTagOff  = 0
	boxPayload = 8
	boxSize    = 16
)

// Box tags.
const (
	tagNone = 0
	tagSome = 1
	tagOk   = 0
	tagErr  = 1
)

// runtimeFns holds the function index of each runtime helper. The
// helpers are emitted before any contract function, so their indices
// directly follow the imports.
type runtimeFns struct {
	alloc     uint32
	strconcat uint32
	streq     uint32
	arrpush   uint32
	arrpop    uint32
}

// emitRuntime adds the runtime helpers to m. heap is the index of the
// mutable i32 global holding the bump allocation cursor.
func emitRuntime(m *wasm.Module, heap uint32) runtimeFns {
	var r runtimeFns
	r.alloc = emitAlloc(m, heap)
	r.strconcat = emitStrconcat(m, r.alloc)
	r.streq = emitStreq(m)
	r.arrpush = emitArrpush(m)
	r.arrpop = emitArrpop(m, r.alloc)
	return r
}

// emitAlloc emits the bump allocator: round the request up to 8
// bytes, grow memory when the cursor would pass the end, trap if
// growth fails. Nothing is ever freed.
func emitAlloc(m *wasm.Module, heap uint32) uint32 {
	f := m.AddFunc(wasm.FuncType{Params: []wasm.ValType{wasm.I32}, Results: []wasm.ValType{wasm.I32}})
	const size = 0
	base := f.AddLocal(wasm.I32)
	end := f.AddLocal(wasm.I32)

	f.GlobalGet(heap).LocalSet(base)
	f.LocalGet(base)
	f.LocalGet(size).I32Const(7).Op(wasm.I32Add).I32Const(-8).Op(wasm.I32And)
	f.Op(wasm.I32Add).LocalSet(end)

	f.LocalGet(end)
	f.MemorySize().I32Const(16).Op(wasm.I32Shl)
	f.Op(wasm.I32GtS)
	f.If(wasm.BlockVoid)
	f.LocalGet(end)
	f.MemorySize().I32Const(16).Op(wasm.I32Shl)
	f.Op(wasm.I32Sub)
	f.I32Const(wasm.PageSize - 1).Op(wasm.I32Add)
	f.I32Const(16).Op(wasm.I32ShrU)
	f.MemoryGrow()
	f.I32Const(-1).Op(wasm.I32Eq)
	f.If(wasm.BlockVoid).Op(wasm.Unreachable).End()
	f.End()

	f.LocalGet(end).GlobalSet(heap)
	f.LocalGet(base)
	return f.Index
}

// emitStrconcat emits string concatenation: allocate the combined
// string, then copy both byte runs.
func emitStrconcat(m *wasm.Module, alloc uint32) uint32 {
	f := m.AddFunc(wasm.FuncType{Params: []wasm.ValType{wasm.I32, wasm.I32}, Results: []wasm.ValType{wasm.I32}})
	const a, b = 0, 1
	alen := f.AddLocal(wasm.I32)
	blen := f.AddLocal(wasm.I32)
	out := f.AddLocal(wasm.I32)
	i := f.AddLocal(wasm.I32)

	f.LocalGet(a).Load(wasm.I32Load, 0).LocalSet(alen)
	f.LocalGet(b).Load(wasm.I32Load, 0).LocalSet(blen)

	f.LocalGet(alen).LocalGet(blen).Op(wasm.I32Add)
	f.I32Const(strHeader).Op(wasm.I32Add)
	f.Call(alloc).LocalSet(out)

	f.LocalGet(out)
	f.LocalGet(alen).LocalGet(blen).Op(wasm.I32Add)
	f.Store(wasm.I32Store, 0)

	f.Block(wasm.BlockVoid).Loop(wasm.BlockVoid)
	f.LocalGet(i).LocalGet(alen).Op(wasm.I32GeS).BrIf(1)
	f.LocalGet(out).LocalGet(i).Op(wasm.I32Add)
	f.LocalGet(a).LocalGet(i).Op(wasm.I32Add).Load(wasm.I32Load8U, strHeader)
	f.Store(wasm.I32Store8, strHeader)
	f.LocalGet(i).I32Const(1).Op(wasm.I32Add).LocalSet(i)
	f.Br(0)
	f.End().End()

	f.I32Const(0).LocalSet(i)
	f.Block(wasm.BlockVoid).Loop(wasm.BlockVoid)
	f.LocalGet(i).LocalGet(blen).Op(wasm.I32GeS).BrIf(1)
	f.LocalGet(out).LocalGet(alen).Op(wasm.I32Add).LocalGet(i).Op(wasm.I32Add)
	f.LocalGet(b).LocalGet(i).Op(wasm.I32Add).Load(wasm.I32Load8U, strHeader)
	f.Store(wasm.I32Store8, strHeader)
	f.LocalGet(i).I32Const(1).Op(wasm.I32Add).LocalSet(i)
	f.Br(0)
	f.End().End()

	f.LocalGet(out)
	return f.Index
}

// emitStreq emits string equality: compare lengths, then bytes.
func emitStreq(m *wasm.Module) uint32 {
	f := m.AddFunc(wasm.FuncType{Params: []wasm.ValType{wasm.I32, wasm.I32}, Results: []wasm.ValType{wasm.I32}})
	const a, b = 0, 1
	alen := f.AddLocal(wasm.I32)
	i := f.AddLocal(wasm.I32)

	f.LocalGet(a).Load(wasm.I32Load, 0).LocalTee(alen)
	f.LocalGet(b).Load(wasm.I32Load, 0)
	f.Op(wasm.I32Ne)
	f.If(wasm.BlockVoid).I32Const(0).Op(wasm.Return).End()

	f.Block(wasm.BlockVoid).Loop(wasm.BlockVoid)
	f.LocalGet(i).LocalGet(alen).Op(wasm.I32GeS).BrIf(1)
	f.LocalGet(a).LocalGet(i).Op(wasm.I32Add).Load(wasm.I32Load8U, strHeader)
	f.LocalGet(b).LocalGet(i).Op(wasm.I32Add).Load(wasm.I32Load8U, strHeader)
	f.Op(wasm.I32Ne)
	f.If(wasm.BlockVoid).I32Const(0).Op(wasm.Return).End()
	f.LocalGet(i).I32Const(1).Op(wasm.I32Add).LocalSet(i)
	f.Br(0)
	f.End().End()

	f.I32Const(1)
	return f.Index
}

// emitArrpush emits array append. Capacity is fixed at construction;
// pushing past it traps.
func emitArrpush(m *wasm.Module) uint32 {
	f := m.AddFunc(wasm.FuncType{Params: []wasm.ValType{wasm.I32, wasm.I64}})
	const arr, v = 0, 1
	n := f.AddLocal(wasm.I32)

	f.LocalGet(arr).Load(wasm.I32Load, arrLenOff).LocalTee(n)
	f.LocalGet(arr).Load(wasm.I32Load, arrCapOff)
	f.Op(wasm.I32GeS)
	f.If(wasm.BlockVoid).Op(wasm.Unreachable).End()

	f.LocalGet(arr).LocalGet(n).I32Const(3).Op(wasm.I32Shl).Op(wasm.I32Add)
	f.LocalGet(v)
	f.Store(wasm.I64Store, arrHeader)

	f.LocalGet(arr)
	f.LocalGet(n).I32Const(1).Op(wasm.I32Add)
	f.Store(wasm.I32Store, arrLenOff)
	return f.Index
}

// emitArrpop emits array pop, yielding an option box: None when the
// array is empty, Some of the last element otherwise.
func emitArrpop(m *wasm.Module, alloc uint32) uint32 {
	f := m.AddFunc(wasm.FuncType{Params: []wasm.ValType{wasm.I32}, Results: []wasm.ValType{wasm.I32}})
	const arr = 0
	out := f.AddLocal(wasm.I32)
	n := f.AddLocal(wasm.I32)

	f.I32Const(boxSize).Call(alloc).LocalSet(out)

	f.LocalGet(arr).Load(wasm.I32Load, arrLenOff).LocalTee(n)
	f.Op(wasm.I32Eqz)
	f.If(wasm.BlockVoid)
	f.LocalGet(out).I32Const(tagNone).Store(wasm.I32Store, boxTagOff)
	f.LocalGet(out).I64Const(0).Store(wasm.I64Store, boxPayload)
	f.Else()
	f.LocalGet(arr)
	f.LocalGet(n).I32Const(1).Op(wasm.I32Sub).LocalTee(n)
	f.Store(wasm.I32Store, arrLenOff)
	f.LocalGet(out).I32Const(tagSome).Store(wasm.I32Store, boxTagOff)
	f.LocalGet(out)
	f.LocalGet(arr).LocalGet(n).I32Const(3).Op(wasm.I32Shl).Op(wasm.I32Add).Load(wasm.I64Load, arrHeader)
	f.Store(wasm.I64Store, boxPayload)
	f.End()

	f.LocalGet(out)
	return f.Index
}
