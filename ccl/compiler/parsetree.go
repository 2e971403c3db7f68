package compiler

// Parse-tree nodes. These are the raw grammar shapes, carrying byte
// offsets into the source buffer and nothing else; astbuild turns
// them into the typed AST. Offsets convert to line/col only when a
// diagnostic needs rendering.

type pItem interface{ itemOff() int }

type pFn struct {
	off     int
	name    string
	nameOff int
	params  []pParam
	ret     *pType
	body    pBlock
}

type pRecord struct {
	off     int
	name    string
	nameOff int
	fields  []pParam
}

type pConst struct {
	off     int
	name    string
	nameOff int
	typ     pType
	value   pExpr
}

func (i *pFn) itemOff() int     { return i.off }
func (i *pRecord) itemOff() int { return i.off }
func (i *pConst) itemOff() int  { return i.off }

// pParam is one name:type pair, used for both function parameters
// and record fields.
type pParam struct {
	off  int
	name string
	typ  pType
}

// pType is type syntax. args holds the parameter of
// Array/Option/Result; a bare name has none.
type pType struct {
	off  int
	name string
	args []pType
}

type pBlock struct {
	off   int
	stmts []pStmt
}

type pStmt interface{ stmtOff() int }

type pLet struct {
	off   int
	name  string
	typ   *pType
	value pExpr
}

type pAssign struct {
	off   int
	name  string
	value pExpr
}

type pReturn struct {
	off   int
	value pExpr // nil for a bare return
}

// pIf is a whole if/else-if/else chain as one node, one branch per
// guard in source order.
type pIf struct {
	off      int
	branches []pIfBranch
	elseBody *pBlock
}

type pIfBranch struct {
	off  int
	cond pExpr
	body pBlock
}

type pWhile struct {
	off  int
	cond pExpr
	body pBlock
}

type pFor struct {
	off     int
	name    string
	nameOff int
	seq     pExpr
	body    pBlock
}

type pExprStmt struct {
	off int
	x   pExpr
}

func (s *pLet) stmtOff() int      { return s.off }
func (s *pAssign) stmtOff() int   { return s.off }
func (s *pReturn) stmtOff() int   { return s.off }
func (s *pIf) stmtOff() int       { return s.off }
func (s *pWhile) stmtOff() int    { return s.off }
func (s *pFor) stmtOff() int      { return s.off }
func (s *pExprStmt) stmtOff() int { return s.off }

type pExpr interface{ exprOff() int }

type pBin struct {
	off  int // operator offset
	op   string
	x, y pExpr
}

type pUnary struct {
	off int
	op  string
	x   pExpr
}

type pCall struct {
	off  int
	name string
	args []pExpr
}

// pDot is postfix dot access: a record field when call is false, a
// built-in method invocation when true.
type pDot struct {
	off  int // offset of the name after the dot
	x    pExpr
	name string
	args []pExpr
	call bool
}

type pIndex struct {
	off int // offset of '['
	x   pExpr
	idx pExpr
}

type pIdent struct {
	off  int
	name string
}

type pInt struct {
	off int
	val int64
}

type pStr struct {
	off int
	val string
}

type pBool struct {
	off int
	val bool
}

type pArrayLit struct {
	off   int
	elems []pExpr
}

type pRecordLit struct {
	off    int
	name   string
	fields []pFieldInit
}

type pFieldInit struct {
	off   int
	name  string
	value pExpr
}

// pCtor is Some(x), Ok(x), Err(x), or bare None (arg nil).
type pCtor struct {
	off  int
	name string
	arg  pExpr
}

// pMatch has exactly two arms; which constructors they name is a
// semantic question, not a syntactic one.
type pMatch struct {
	off  int
	subj pExpr
	arms [2]pArm
}

// pArm is one match arm. Exactly one of expr and block is set; a
// block arm ends with the expression the arm yields.
type pArm struct {
	off     int
	ctor    string
	bind    string // payload name; empty for None
	bindOff int
	stmts   []pStmt
	expr    pExpr
	isBlock bool
}

func (e *pBin) exprOff() int       { return e.off }
func (e *pUnary) exprOff() int     { return e.off }
func (e *pCall) exprOff() int      { return e.off }
func (e *pDot) exprOff() int       { return e.off }
func (e *pIndex) exprOff() int     { return e.off }
func (e *pIdent) exprOff() int     { return e.off }
func (e *pInt) exprOff() int       { return e.off }
func (e *pStr) exprOff() int       { return e.off }
func (e *pBool) exprOff() int      { return e.off }
func (e *pArrayLit) exprOff() int  { return e.off }
func (e *pRecordLit) exprOff() int { return e.off }
func (e *pCtor) exprOff() int      { return e.off }
func (e *pMatch) exprOff() int     { return e.off }
