package compiler

import (
	"bytes"
	"strconv"
	"unicode"
)

// Terminal naming conventions:
//
//   scanX     takes buf and position, returns a new position (and maybe a
//             value); a negative position means no match
//   peekX     takes *parser, returns bool or string
//   consumeX  takes *parser and maybe a required literal, maybe returns a
//             value, and updates the parser position
//
// Nonterminals (parseX) live in parse.go.

// reserved words can never be identifiers.
var reserved = []string{
	"fn", "record", "const", "let", "return",
	"if", "else", "while", "for", "in",
	"match", "Some", "None", "Ok", "Err",
	"true", "false",
}

func isReserved(name string) bool {
	for _, w := range reserved {
		if name == w {
			return true
		}
	}
	return false
}

// peek functions

func peekKeyword(p *parser) string {
	name, _ := scanIdentifier(p.buf, p.pos)
	return name
}

func peekTok(p *parser, token string) bool {
	pos := scanTok(p.buf, p.pos, token)
	return pos >= 0
}

// consume functions

func consumeKeyword(p *parser, keyword string) {
	pos := scanKeyword(p.buf, p.pos, keyword)
	if pos < 0 {
		p.errorf("expected keyword %s", keyword)
	}
	p.pos = pos
}

// consumeIdentifier returns the identifier and its start offset.
func consumeIdentifier(p *parser) (string, int) {
	name, pos := scanIdentifier(p.buf, p.pos)
	if pos < 0 {
		p.errorf("expected identifier")
	}
	if isReserved(name) {
		p.errorf("%s is a reserved word", name)
	}
	p.pos = pos
	return name, pos - len(name)
}

func consumeTok(p *parser, token string) {
	pos := scanTok(p.buf, p.pos, token)
	if pos < 0 {
		p.errorf("expected %s token", token)
	}
	p.pos = pos
}

// scan functions

func scanIdentifier(buf []byte, offset int) (string, int) {
	offset = skipWsAndComments(buf, offset)
	i := offset
	for ; i < len(buf) && isIDChar(buf[i], i == offset); i++ {
	}
	if i == offset {
		return "", -1
	}
	return string(buf[offset:i]), i
}

func scanTok(buf []byte, offset int, s string) int {
	offset = skipWsAndComments(buf, offset)
	prefix := []byte(s)
	if bytes.HasPrefix(buf[offset:], prefix) {
		return offset + len(prefix)
	}
	return -1
}

func scanKeyword(buf []byte, offset int, keyword string) int {
	id, newOffset := scanIdentifier(buf, offset)
	if newOffset < 0 {
		return -1
	}
	if id != keyword {
		return -1
	}
	return newOffset
}

// scanAssignEq matches a lone "=", refusing the first half of "==".
func scanAssignEq(buf []byte, offset int) int {
	offset = skipWsAndComments(buf, offset)
	if offset >= len(buf) || buf[offset] != '=' {
		return -1
	}
	if offset+1 < len(buf) && buf[offset+1] == '=' {
		return -1
	}
	return offset + 1
}

func scanIntLiteral(buf []byte, offset int) (int64, int) {
	offset = skipWsAndComments(buf, offset)
	start := offset
	if offset < len(buf) && buf[offset] == '-' {
		offset++
	}
	i := offset
	for ; i < len(buf) && unicode.IsDigit(rune(buf[i])); i++ {
	}
	if i == offset {
		return 0, -1
	}
	n, err := strconv.ParseInt(string(buf[start:i]), 10, 64)
	if err != nil {
		panic(parseErr(buf, start, "integer literal out of range"))
	}
	return n, i
}

// scanStrLiteral scans a double-quoted string, decoding \" \\ \n \t
// escapes. Raw newlines terminate nothing and are an error.
func scanStrLiteral(buf []byte, offset int) (string, int) {
	offset = skipWsAndComments(buf, offset)
	if offset >= len(buf) || buf[offset] != '"' {
		return "", -1
	}
	var val []byte
	for i := offset + 1; i < len(buf); i++ {
		switch buf[i] {
		case '"':
			return string(val), i + 1
		case '\n':
			panic(parseErr(buf, offset, "unterminated string literal"))
		case '\\':
			i++
			if i >= len(buf) {
				panic(parseErr(buf, offset, "unterminated string literal"))
			}
			switch buf[i] {
			case '"', '\\':
				val = append(val, buf[i])
			case 'n':
				val = append(val, '\n')
			case 't':
				val = append(val, '\t')
			default:
				panic(parseErr(buf, i-1, "invalid escape \\%c in string literal", buf[i]))
			}
		default:
			val = append(val, buf[i])
		}
	}
	panic(parseErr(buf, offset, "unterminated string literal"))
}

func skipWsAndComments(buf []byte, offset int) int {
	var inComment bool
	for ; offset < len(buf); offset++ {
		c := buf[offset]
		if inComment {
			if c == '\n' {
				inComment = false
			}
		} else {
			if c == '/' && offset < len(buf)-1 && buf[offset+1] == '/' {
				inComment = true
				offset++ // skip two chars instead of one
			} else if !unicode.IsSpace(rune(c)) {
				break
			}
		}
	}
	return offset
}

func isIDChar(c byte, initial bool) bool {
	if c >= 'a' && c <= 'z' {
		return true
	}
	if c >= 'A' && c <= 'Z' {
		return true
	}
	if c == '_' {
		return true
	}
	if initial {
		return false
	}
	return unicode.IsDigit(rune(c))
}

// lineCol locates offset in buf. Lines start at 1, columns at 0.
func lineCol(buf []byte, offset int) (line, col int) {
	line = 1
	for i := 0; i < offset && i < len(buf); i++ {
		if buf[i] == '\n' {
			line++
			col = 0
		} else {
			col++
		}
	}
	return line, col
}
