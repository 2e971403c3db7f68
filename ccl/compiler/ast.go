package compiler

// Typed AST. astbuild produces it from the parse tree; the checker
// fills in the unexported type and slot annotations; the optimizer
// replaces subtrees wholesale; codegen consumes the result. Nodes
// carry byte offsets, converted to line/col only when a diagnostic is
// rendered.

// Program is one compilation's declarations in source order.
type Program struct {
	Records []*RecordDecl
	Consts  []*ConstDecl
	Funcs   []*FuncDecl
}

// TypeRef is a syntactic type reference, resolved to a Type by the
// checker. Arg is the parameter of Array/Option/Result.
type TypeRef struct {
	Name string
	Arg  *TypeRef
	off  int
}

type RecordDecl struct {
	Name    string
	Fields  []*FieldDecl
	off     int
	nameOff int
	typ     *RecordType
}

type FieldDecl struct {
	Name string
	Type *TypeRef
	off  int
}

type ConstDecl struct {
	Name    string
	Type    *TypeRef
	Value   Expr
	off     int
	nameOff int
	typ     Type
}

type FuncDecl struct {
	Name    string
	Params  []*ParamDecl
	Ret     *TypeRef // nil when the function returns nothing
	Body    []Stmt
	off     int
	nameOff int

	retType Type
	// slots maps storage-slot index to CCL type: parameters first in
	// declaration order, then each let/for binding in first-appearance
	// order. Slot index equals wasm local index.
	slots []Type
}

type ParamDecl struct {
	Name string
	Type *TypeRef
	off  int
	typ  Type
}

// statements

type Stmt interface{ pos() int }

type LetStmt struct {
	Name  string
	Type  *TypeRef // nil when inferred from Value
	Value Expr
	off   int
	slot  int
	typ   Type
}

type AssignStmt struct {
	Name  string
	Value Expr
	off   int
	slot  int
}

type ReturnStmt struct {
	Value Expr // nil for a bare return
	off   int
}

// IfStmt is a whole if/else-if/else chain.
type IfStmt struct {
	Branches []IfBranch
	Else     []Stmt
	off      int
}

type IfBranch struct {
	Cond Expr
	Body []Stmt
}

type WhileStmt struct {
	Cond Expr
	Body []Stmt
	off  int
}

type ForStmt struct {
	Name string
	Seq  Expr
	Body []Stmt
	off  int

	nameOff  int
	slot     int // the element binding
	elemType Type
}

type ExprStmt struct {
	X   Expr
	off int
}

func (s *LetStmt) pos() int    { return s.off }
func (s *AssignStmt) pos() int { return s.off }
func (s *ReturnStmt) pos() int { return s.off }
func (s *IfStmt) pos() int     { return s.off }
func (s *WhileStmt) pos() int  { return s.off }
func (s *ForStmt) pos() int    { return s.off }
func (s *ExprStmt) pos() int   { return s.off }

// expressions

type Expr interface {
	pos() int
	typ() Type
}

type IntLit struct {
	Val int64
	off int
	t   Type // Integer, or Mana by expected type
}

type StrLit struct {
	Val string
	off int
	t   Type // String, or Did by expected type
}

type BoolLit struct {
	Val bool
	off int
}

type refKind int

const (
	refVar refKind = iota
	refConst
)

// VarRef names either a local slot or a top-level constant; the
// optimizer inlines constant references, so codegen only ever sees
// slots.
type VarRef struct {
	Name string
	off  int
	t    Type
	kind refKind
	slot int
	c    *ConstDecl
}

type UnaryExpr struct {
	Op  string
	X   Expr
	off int
	t   Type
}

type BinExpr struct {
	Op   string
	X, Y Expr
	off  int
	t    Type
}

// CallExpr calls a user function or a host function; exactly one of
// fn and host is set after checking.
type CallExpr struct {
	Name string
	Args []Expr
	off  int
	t    Type
	fn   *FuncDecl
	host *hostFunc
}

type MethodExpr struct {
	X    Expr
	Name string
	Args []Expr
	off  int
	t    Type
	sig  methodSig
}

type FieldExpr struct {
	X    Expr
	Name string
	off  int
	t    Type
	idx  int // declared field index
}

type IndexExpr struct {
	X, Index Expr
	off      int
	t        Type
}

type ArrayLit struct {
	Elems []Expr
	off   int
	t     Type
}

// RecordLit keeps initializers in source order; codegen evaluates in
// that order and stores each to its declared offset.
type RecordLit struct {
	Name   string
	Fields []FieldInit
	off    int
	t      Type
}

type FieldInit struct {
	Name  string
	Value Expr
	off   int
	idx   int
}

// CtorExpr is Some(x), Ok(x), Err(x), or None (Arg nil).
type CtorExpr struct {
	Ctor string
	Arg  Expr
	off  int
	t    Type
}

type MatchExpr struct {
	Subj Expr
	Arms [2]*MatchArm
	off  int
	t    Type
}

// MatchArm binds the payload (when its constructor has one), runs its
// statements, and yields Value.
type MatchArm struct {
	Ctor  string
	Bind  string
	Stmts []Stmt
	Value Expr

	off      int
	bindOff  int
	slot     int
	bindType Type
}

func (e *IntLit) pos() int     { return e.off }
func (e *StrLit) pos() int     { return e.off }
func (e *BoolLit) pos() int    { return e.off }
func (e *VarRef) pos() int     { return e.off }
func (e *UnaryExpr) pos() int  { return e.off }
func (e *BinExpr) pos() int    { return e.off }
func (e *CallExpr) pos() int   { return e.off }
func (e *MethodExpr) pos() int { return e.off }
func (e *FieldExpr) pos() int  { return e.off }
func (e *IndexExpr) pos() int  { return e.off }
func (e *ArrayLit) pos() int   { return e.off }
func (e *RecordLit) pos() int  { return e.off }
func (e *CtorExpr) pos() int   { return e.off }
func (e *MatchExpr) pos() int  { return e.off }

func (e *IntLit) typ() Type     { return e.t }
func (e *StrLit) typ() Type     { return e.t }
func (e *BoolLit) typ() Type    { return BooleanType }
func (e *VarRef) typ() Type     { return e.t }
func (e *UnaryExpr) typ() Type  { return e.t }
func (e *BinExpr) typ() Type    { return e.t }
func (e *CallExpr) typ() Type   { return e.t }
func (e *MethodExpr) typ() Type { return e.t }
func (e *FieldExpr) typ() Type  { return e.t }
func (e *IndexExpr) typ() Type  { return e.t }
func (e *ArrayLit) typ() Type   { return e.t }
func (e *RecordLit) typ() Type  { return e.t }
func (e *CtorExpr) typ() Type   { return e.t }
func (e *MatchExpr) typ() Type  { return e.t }
