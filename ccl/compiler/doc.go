/*
Package compiler compiles CCL, the Cooperative Contract Language, to
deterministic WebAssembly (MVP) bytecode.

CCL is a small statically typed language for cooperative governance
contracts: membership rules, mana budgeting, voting thresholds, and
similar policy expressed as a single entry function over scalar
inputs. A program is a flat sequence of items:

	contract   = item*
	item       = fn | record | const
	fn         = "fn" ident "(" [params] ")" ["->" type] block
	params     = param ("," param)*
	param      = ident ":" type
	record     = "record" ident "{" field ("," field)* [","] "}"
	field      = ident ":" type
	const      = "const" ident ":" type "=" literal ";"
	type       = "Integer" | "Mana" | "Boolean" | "String" | "Did"
	           | "Array" "<" type ">" | "Option" "<" type ">"
	           | "Result" "<" type ">" | ident
	block      = "{" stmt* "}"
	stmt       = let | assign | ret | ifchain | while | forin | exprstmt
	let        = "let" ident [":" type] "=" expr ";"
	assign     = ident "=" expr ";"
	ret        = "return" [expr] ";"
	ifchain    = "if" expr block ("else" "if" expr block)* ["else" block]
	while      = "while" expr block
	forin      = "for" ident "in" expr block
	exprstmt   = expr ";"
	primary    = literal | ident | call | "(" expr ")" | arraylit
	           | recordlit | matchexpr | ctor
	call       = ident "(" [args] ")"
	postfix    = primary { "[" expr "]" | "." ident ["(" [args] ")"] }
	arraylit   = "[" [expr ("," expr)*] "]"
	recordlit  = ident "{" ident ":" expr ("," ident ":" expr)* [","] "}"
	matchexpr  = "match" expr "{" arm "," arm [","] "}"
	arm        = ctor-pattern "=>" (expr | block)
	ctor       = "Some" "(" expr ")" | "None" | "Ok" "(" expr ")"
	           | "Err" "(" expr ")"
	literal    = int | string | "true" | "false"

Comments run from // to end of line. Binary operators climb by
precedence: || then && then == != then < > <= >= then + - then * / %,
with unary - and ! binding tightest.

Integer and Mana are 64-bit signed and mutually substitutable in
arithmetic; an expression touching Mana stays Mana. Boolean, String,
and Did round out the scalars. Strings and Dids are immutable and
compare by contents. Arrays are fixed-capacity with a length; records
are nominal; Option and Result are matched with exactly two arms, one
per constructor, in either order. A block arm yields its trailing
expression. None, Err, and the empty array literal need an expected
type from context.

Built-in methods:

	Array<T>.length() -> Integer
	Array<T>.push(v: T)              traps past capacity
	Array<T>.pop() -> Option<T>
	String.length() -> Integer
	String.concat(other: String) -> String

Host functions are called like ordinary functions; each first use
becomes a wasm import under the "icn" module:

	host_get_caller() -> Did
	host_get_reputation(who: Did) -> Integer
	host_account_get_mana(who: Did) -> Mana
	host_account_spend_mana(who: Did, amount: Mana) -> Boolean
	host_dag_put(data: String) -> String
	host_dag_get(cid: String) -> String

Every program must define the entry function run with scalar
parameters and a scalar return; the module exports it as "run".
Integer division by zero, signed overflow of division, out-of-range
array indexing, and pushing past capacity trap at runtime.

Compile is atomic: it yields a complete module with metadata, or a
complete diagnostic list, never both. The same source always compiles
to the same bytes; nothing in the pipeline consults maps, clocks, or
randomness for output order.
*/
package compiler
