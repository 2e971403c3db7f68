package compiler

import "fmt"

type parser struct {
	buf []byte
	pos int

	// noRecordLit is set while parsing the guard expression of
	// if/while/for/match, where a { after an identifier begins the
	// construct's block rather than a record literal. Bracketed
	// subexpressions clear it again.
	noRecordLit bool
}

func (p *parser) errorf(format string, args ...interface{}) {
	panic(parserErr{buf: p.buf, offset: p.pos, format: format, args: args})
}

// parse is the main entry point to the parser.
func parse(buf []byte) (items []pItem, err error) {
	defer func() {
		if val := recover(); val != nil {
			if e, ok := val.(parserErr); ok {
				err = e
			} else {
				panic(val)
			}
		}
	}()
	p := &parser{buf: buf}
	items = parseContract(p)
	return
}

// parse functions

func parseContract(p *parser) []pItem {
	var items []pItem
	for {
		switch peekKeyword(p) {
		case "fn":
			items = append(items, parseFn(p))
		case "record":
			items = append(items, parseRecord(p))
		case "const":
			items = append(items, parseConst(p))
		default:
			if pos := skipWsAndComments(p.buf, p.pos); pos < len(p.buf) {
				p.pos = pos
				p.errorf("expected fn, record, or const declaration")
			}
			return items
		}
	}
}

// fn name(p1: t1, p2: t2) -> t { ... }
func parseFn(p *parser) *pFn {
	off := skipWsAndComments(p.buf, p.pos)
	consumeKeyword(p, "fn")
	name, nameOff := consumeIdentifier(p)
	params := parseParams(p)
	var ret *pType
	if peekTok(p, "->") {
		consumeTok(p, "->")
		t := parseType(p)
		ret = &t
	}
	body := parseBlock(p)
	return &pFn{off: off, name: name, nameOff: nameOff, params: params, ret: ret, body: body}
}

func parseParams(p *parser) []pParam {
	var params []pParam
	consumeTok(p, "(")
	first := true
	for !peekTok(p, ")") {
		if first {
			first = false
		} else {
			consumeTok(p, ",")
		}
		name, off := consumeIdentifier(p)
		consumeTok(p, ":")
		typ := parseType(p)
		params = append(params, pParam{off: off, name: name, typ: typ})
	}
	consumeTok(p, ")")
	return params
}

// record name { f1: t1, f2: t2 }
func parseRecord(p *parser) *pRecord {
	off := skipWsAndComments(p.buf, p.pos)
	consumeKeyword(p, "record")
	name, nameOff := consumeIdentifier(p)
	consumeTok(p, "{")
	var fields []pParam
	first := true
	for !peekTok(p, "}") {
		if first {
			first = false
		} else {
			consumeTok(p, ",")
			if peekTok(p, "}") {
				break
			}
		}
		fname, foff := consumeIdentifier(p)
		consumeTok(p, ":")
		ftyp := parseType(p)
		fields = append(fields, pParam{off: foff, name: fname, typ: ftyp})
	}
	if len(fields) == 0 {
		p.errorf("record %s needs at least one field", name)
	}
	consumeTok(p, "}")
	return &pRecord{off: off, name: name, nameOff: nameOff, fields: fields}
}

// const name: type = literal;
func parseConst(p *parser) *pConst {
	off := skipWsAndComments(p.buf, p.pos)
	consumeKeyword(p, "const")
	name, nameOff := consumeIdentifier(p)
	consumeTok(p, ":")
	typ := parseType(p)
	consumeTok(p, "=")
	value := parseLiteral(p)
	consumeTok(p, ";")
	return &pConst{off: off, name: name, nameOff: nameOff, typ: typ, value: value}
}

func parseLiteral(p *parser) pExpr {
	off := skipWsAndComments(p.buf, p.pos)
	if v, pos := scanIntLiteral(p.buf, p.pos); pos >= 0 {
		p.pos = pos
		return &pInt{off: off, val: v}
	}
	if s, pos := scanStrLiteral(p.buf, p.pos); pos >= 0 {
		p.pos = pos
		return &pStr{off: off, val: s}
	}
	switch peekKeyword(p) {
	case "true", "false":
		kw := peekKeyword(p)
		consumeKeyword(p, kw)
		return &pBool{off: off, val: kw == "true"}
	}
	p.errorf("expected literal")
	return nil
}

func parseType(p *parser) pType {
	off := skipWsAndComments(p.buf, p.pos)
	name, pos := scanIdentifier(p.buf, p.pos)
	if pos < 0 || isReserved(name) {
		p.errorf("expected type")
	}
	p.pos = pos
	t := pType{off: off, name: name}
	switch name {
	case "Array", "Option", "Result":
		consumeTok(p, "<")
		arg := parseType(p)
		t.args = []pType{arg}
		consumeTok(p, ">")
	}
	return t
}

func parseBlock(p *parser) pBlock {
	off := skipWsAndComments(p.buf, p.pos)
	consumeTok(p, "{")
	var stmts []pStmt
	for !peekTok(p, "}") {
		stmts = append(stmts, parseStatement(p))
	}
	consumeTok(p, "}")
	return pBlock{off: off, stmts: stmts}
}

func parseStatement(p *parser) pStmt {
	switch peekKeyword(p) {
	case "let":
		return parseLet(p)
	case "return":
		return parseReturn(p)
	case "if":
		return parseIf(p)
	case "while":
		return parseWhile(p)
	case "for":
		return parseFor(p)
	}

	// A lone = after a leading identifier distinguishes assignment
	// from an expression statement.
	if name, pos := scanIdentifier(p.buf, p.pos); pos >= 0 && !isReserved(name) {
		if eq := scanAssignEq(p.buf, pos); eq >= 0 {
			p.pos = eq
			value := parseExpr(p)
			consumeTok(p, ";")
			return &pAssign{off: pos - len(name), name: name, value: value}
		}
	}

	off := skipWsAndComments(p.buf, p.pos)
	x := parseExpr(p)
	consumeTok(p, ";")
	return &pExprStmt{off: off, x: x}
}

// let name[: type] = expr;
func parseLet(p *parser) pStmt {
	off := skipWsAndComments(p.buf, p.pos)
	consumeKeyword(p, "let")
	name, _ := consumeIdentifier(p)
	var typ *pType
	if peekTok(p, ":") {
		consumeTok(p, ":")
		t := parseType(p)
		typ = &t
	}
	consumeTok(p, "=")
	value := parseExpr(p)
	consumeTok(p, ";")
	return &pLet{off: off, name: name, typ: typ, value: value}
}

func parseReturn(p *parser) pStmt {
	off := skipWsAndComments(p.buf, p.pos)
	consumeKeyword(p, "return")
	if peekTok(p, ";") {
		consumeTok(p, ";")
		return &pReturn{off: off}
	}
	value := parseExpr(p)
	consumeTok(p, ";")
	return &pReturn{off: off, value: value}
}

// parseIf consumes a whole if/else-if/else chain as one node.
func parseIf(p *parser) pStmt {
	off := skipWsAndComments(p.buf, p.pos)
	consumeKeyword(p, "if")
	node := &pIf{off: off}
	for {
		condOff := skipWsAndComments(p.buf, p.pos)
		cond := parseCond(p)
		body := parseBlock(p)
		node.branches = append(node.branches, pIfBranch{off: condOff, cond: cond, body: body})
		if peekKeyword(p) != "else" {
			return node
		}
		consumeKeyword(p, "else")
		if peekKeyword(p) == "if" {
			consumeKeyword(p, "if")
			continue
		}
		b := parseBlock(p)
		node.elseBody = &b
		return node
	}
}

func parseWhile(p *parser) pStmt {
	off := skipWsAndComments(p.buf, p.pos)
	consumeKeyword(p, "while")
	cond := parseCond(p)
	body := parseBlock(p)
	return &pWhile{off: off, cond: cond, body: body}
}

// for name in expr { ... }
func parseFor(p *parser) pStmt {
	off := skipWsAndComments(p.buf, p.pos)
	consumeKeyword(p, "for")
	name, nameOff := consumeIdentifier(p)
	consumeKeyword(p, "in")
	seq := parseCond(p)
	body := parseBlock(p)
	return &pFor{off: off, name: name, nameOff: nameOff, seq: seq, body: body}
}

// expressions

// parseCond parses a guard expression: record literals are off so the
// following { reads as the construct's block.
func parseCond(p *parser) pExpr {
	save := p.noRecordLit
	p.noRecordLit = true
	e := parseExpr(p)
	p.noRecordLit = save
	return e
}

// parseInner parses an expression inside brackets, where a record
// literal is unambiguous again.
func parseInner(p *parser) pExpr {
	save := p.noRecordLit
	p.noRecordLit = false
	e := parseExpr(p)
	p.noRecordLit = save
	return e
}

func parseExpr(p *parser) pExpr {
	// Uses the precedence-climbing algorithm
	// <https://en.wikipedia.org/wiki/Operator-precedence_parser#Precedence_climbing_method>
	expr := parseUnaryExpr(p)
	expr2, pos := parseExprCont(p, expr, 0)
	if pos < 0 {
		p.errorf("expected expression")
	}
	p.pos = pos
	return expr2
}

func parseUnaryExpr(p *parser) pExpr {
	op, pos := scanUnaryOp(p.buf, p.pos)
	if pos < 0 {
		return parsePostfix(p, parsePrimary(p))
	}
	off := pos - len(op)
	p.pos = pos
	expr := parseUnaryExpr(p)
	return &pUnary{off: off, op: op, x: expr}
}

func parseExprCont(p *parser, lhs pExpr, minPrecedence int) (pExpr, int) {
	for {
		op, pos := scanBinaryOp(p.buf, p.pos)
		if pos < 0 || op.precedence < minPrecedence {
			break
		}
		opOff := pos - len(op.op)
		p.pos = pos

		rhs := parseUnaryExpr(p)

		for {
			op2, pos2 := scanBinaryOp(p.buf, p.pos)
			if pos2 < 0 || op2.precedence <= op.precedence {
				break
			}
			rhs, p.pos = parseExprCont(p, rhs, op2.precedence)
			if p.pos < 0 {
				return nil, -1
			}
		}
		lhs = &pBin{off: opOff, op: op.op, x: lhs, y: rhs}
	}
	return lhs, p.pos
}

// parsePostfix wraps x in any number of [index] and .name suffixes.
func parsePostfix(p *parser, x pExpr) pExpr {
	for {
		if peekTok(p, "[") {
			off := skipWsAndComments(p.buf, p.pos)
			consumeTok(p, "[")
			idx := parseInner(p)
			consumeTok(p, "]")
			x = &pIndex{off: off, x: x, idx: idx}
			continue
		}
		if peekTok(p, ".") {
			consumeTok(p, ".")
			name, nameOff := consumeIdentifier(p)
			dot := &pDot{off: nameOff, x: x, name: name}
			if peekTok(p, "(") {
				dot.call = true
				dot.args = parseArgs(p)
			}
			x = dot
			continue
		}
		return x
	}
}

func parsePrimary(p *parser) pExpr {
	off := skipWsAndComments(p.buf, p.pos)
	if v, pos := scanIntLiteral(p.buf, p.pos); pos >= 0 {
		p.pos = pos
		return &pInt{off: off, val: v}
	}
	if s, pos := scanStrLiteral(p.buf, p.pos); pos >= 0 {
		p.pos = pos
		return &pStr{off: off, val: s}
	}
	if peekTok(p, "(") {
		consumeTok(p, "(")
		e := parseInner(p)
		consumeTok(p, ")")
		return e
	}
	if peekTok(p, "[") {
		consumeTok(p, "[")
		var elems []pExpr
		first := true
		for !peekTok(p, "]") {
			if first {
				first = false
			} else {
				consumeTok(p, ",")
			}
			elems = append(elems, parseInner(p))
		}
		consumeTok(p, "]")
		return &pArrayLit{off: off, elems: elems}
	}
	switch kw := peekKeyword(p); kw {
	case "true", "false":
		consumeKeyword(p, kw)
		return &pBool{off: off, val: kw == "true"}
	case "None":
		consumeKeyword(p, "None")
		return &pCtor{off: off, name: "None"}
	case "Some", "Ok", "Err":
		consumeKeyword(p, kw)
		consumeTok(p, "(")
		arg := parseInner(p)
		consumeTok(p, ")")
		return &pCtor{off: off, name: kw, arg: arg}
	case "match":
		return parseMatch(p)
	}

	name, pos := scanIdentifier(p.buf, p.pos)
	if pos < 0 {
		p.errorf("expected expression")
	}
	if isReserved(name) {
		p.errorf("unexpected keyword %s", name)
	}
	p.pos = pos
	if peekTok(p, "(") {
		args := parseArgs(p)
		return &pCall{off: off, name: name, args: args}
	}
	if !p.noRecordLit && peekTok(p, "{") {
		return parseRecordLit(p, name, off)
	}
	return &pIdent{off: off, name: name}
}

func parseArgs(p *parser) []pExpr {
	var exprs []pExpr
	consumeTok(p, "(")
	first := true
	for !peekTok(p, ")") {
		if first {
			first = false
		} else {
			consumeTok(p, ",")
		}
		exprs = append(exprs, parseInner(p))
	}
	consumeTok(p, ")")
	return exprs
}

// name { f1: e1, f2: e2 }
func parseRecordLit(p *parser, name string, off int) pExpr {
	consumeTok(p, "{")
	var fields []pFieldInit
	first := true
	for !peekTok(p, "}") {
		if first {
			first = false
		} else {
			consumeTok(p, ",")
			if peekTok(p, "}") {
				break
			}
		}
		fname, foff := consumeIdentifier(p)
		consumeTok(p, ":")
		value := parseInner(p)
		fields = append(fields, pFieldInit{off: foff, name: fname, value: value})
	}
	if len(fields) == 0 {
		p.errorf("record literal %s needs at least one field", name)
	}
	consumeTok(p, "}")
	return &pRecordLit{off: off, name: name, fields: fields}
}

// match expr { Arm1 => body, Arm2 => body }
func parseMatch(p *parser) pExpr {
	off := skipWsAndComments(p.buf, p.pos)
	consumeKeyword(p, "match")
	subj := parseCond(p)
	consumeTok(p, "{")
	var arms [2]pArm
	arms[0] = parseArm(p)
	consumeTok(p, ",")
	arms[1] = parseArm(p)
	if peekTok(p, ",") {
		consumeTok(p, ",")
	}
	consumeTok(p, "}")
	return &pMatch{off: off, subj: subj, arms: arms}
}

func parseArm(p *parser) pArm {
	arm := pArm{off: skipWsAndComments(p.buf, p.pos)}
	switch kw := peekKeyword(p); kw {
	case "Some", "Ok", "Err":
		consumeKeyword(p, kw)
		arm.ctor = kw
		consumeTok(p, "(")
		arm.bind, arm.bindOff = consumeIdentifier(p)
		consumeTok(p, ")")
	case "None":
		consumeKeyword(p, "None")
		arm.ctor = "None"
	default:
		p.errorf("expected Some, None, Ok, or Err match arm")
	}
	consumeTok(p, "=>")
	if peekTok(p, "{") {
		arm.isBlock = true
		arm.stmts, arm.expr = parseArmBlock(p)
	} else {
		arm.expr = parseInner(p)
	}
	return arm
}

// parseArmBlock parses { stmt* expr }: statements followed by the
// expression the arm yields, which has no trailing semicolon.
func parseArmBlock(p *parser) ([]pStmt, pExpr) {
	consumeTok(p, "{")
	var stmts []pStmt
	for {
		if peekTok(p, "}") {
			p.errorf("match arm block must end with an expression")
		}
		switch peekKeyword(p) {
		case "let", "return", "if", "while", "for":
			stmts = append(stmts, parseStatement(p))
			continue
		}
		if name, pos := scanIdentifier(p.buf, p.pos); pos >= 0 && !isReserved(name) {
			if eq := scanAssignEq(p.buf, pos); eq >= 0 {
				p.pos = eq
				value := parseExpr(p)
				consumeTok(p, ";")
				stmts = append(stmts, &pAssign{off: pos - len(name), name: name, value: value})
				continue
			}
		}
		x := parseInner(p)
		if peekTok(p, ";") {
			consumeTok(p, ";")
			stmts = append(stmts, &pExprStmt{off: x.exprOff(), x: x})
			continue
		}
		consumeTok(p, "}")
		return stmts, x
	}
}

// operator tables

type binaryOp struct {
	op         string
	precedence int
}

var binaryOps = []binaryOp{
	{"||", 1},
	{"&&", 2},
	{"==", 3}, {"!=", 3},
	{"<", 4}, {">", 4}, {"<=", 4}, {">=", 4},
	{"+", 5}, {"-", 5},
	{"*", 6}, {"/", 6}, {"%", 6},
}

var unaryOps = []string{"-", "!"}

func scanUnaryOp(buf []byte, offset int) (string, int) {
	// Maximum munch. Make sure "-3" scans as ("-3"), not ("-", "3").
	if _, pos := scanIntLiteral(buf, offset); pos >= 0 {
		return "", -1
	}
	for _, op := range unaryOps {
		newOffset := scanTok(buf, offset, op)
		if newOffset >= 0 {
			return op, newOffset
		}
	}
	return "", -1
}

func scanBinaryOp(buf []byte, offset int) (*binaryOp, int) {
	offset = skipWsAndComments(buf, offset)
	var (
		found     *binaryOp
		newOffset = -1
	)
	for i, op := range binaryOps {
		offset2 := scanTok(buf, offset, op.op)
		if offset2 >= 0 {
			if found == nil || len(op.op) > len(found.op) {
				found = &binaryOps[i]
				newOffset = offset2
			}
		}
	}
	return found, newOffset
}

// errors

type parserErr struct {
	buf    []byte
	offset int
	format string
	args   []interface{}
}

func parseErr(buf []byte, offset int, format string, args ...interface{}) error {
	return parserErr{buf: buf, offset: offset, format: format, args: args}
}

func (p parserErr) Error() string {
	line, col := lineCol(p.buf, p.offset)
	args := []interface{}{line, col}
	args = append(args, p.args...)
	return fmt.Sprintf("line %d, col %d: "+p.format, args...)
}

// diag converts the panic payload into the diagnostic the compile
// result carries.
func (p parserErr) diag() Diag {
	line, col := lineCol(p.buf, p.offset)
	return Diag{
		Kind: SyntaxError,
		Sev:  SevError,
		Line: line,
		Col:  col,
		Msg:  fmt.Sprintf(p.format, p.args...),
	}
}
