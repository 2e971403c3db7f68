package compiler

// hostModule is the wasm module name every host import lives under,
// including the linear memory itself.
const hostModule = "icn"

// hostFunc describes one function the execution environment provides.
// The wasm import field name equals the CCL name.
type hostFunc struct {
	name   string
	params []Type
	result Type
}

// hostFuncs is the full host interface. Contracts call these like
// ordinary functions; the compiler turns each first use into a wasm
// import.
var hostFuncs = []hostFunc{
	{"host_get_caller", nil, DidType},
	{"host_get_reputation", []Type{DidType}, IntegerType},
	{"host_account_get_mana", []Type{DidType}, ManaType},
	{"host_account_spend_mana", []Type{DidType, ManaType}, BooleanType},
	{"host_dag_put", []Type{StringType}, StringType},
	{"host_dag_get", []Type{StringType}, StringType},
}

func hostFuncByName(name string) (hostFunc, bool) {
	for _, h := range hostFuncs {
		if h.name == name {
			return h, true
		}
	}
	return hostFunc{}, false
}

// methodKind tags a resolved built-in method so codegen can dispatch
// without re-inspecting the receiver type.
type methodKind int

const (
	methLength methodKind = iota
	methPush
	methPop
	methConcat
)

// methodSig is a built-in method resolved against a concrete
// receiver type.
type methodSig struct {
	name   string
	params []Type
	result Type
	kind   methodKind
}

// resolveMethod looks up name on recv. Strings support length and
// concat; arrays support length, push, and pop. No other type has
// methods.
func resolveMethod(recv Type, name string) (methodSig, bool) {
	switch t := recv.(type) {
	case *Basic:
		if t != StringType {
			break
		}
		switch name {
		case "length":
			return methodSig{name, nil, IntegerType, methLength}, true
		case "concat":
			return methodSig{name, []Type{StringType}, StringType, methConcat}, true
		}
	case *ArrayType:
		switch name {
		case "length":
			return methodSig{name, nil, IntegerType, methLength}, true
		case "push":
			return methodSig{name, []Type{t.Elem}, VoidType, methPush}, true
		case "pop":
			return methodSig{name, nil, &OptionType{Elem: t.Elem}, methPop}, true
		}
	}
	return methodSig{}, false
}
