package ir

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF     tokenKind = iota
	tokBareID            // module, func.func, f32, true, ...
	tokValueID           // %name
	tokSymbol            // @name
	tokBangID            // !dialect.type
	tokString            // "text"
	tokInteger           // 12, -3
	tokFloat             // 1.5, -2e3
	tokPunct             // ( ) { } [ ] < > , : = * ?
	tokArrow             // ->
)

var tokenKindNames = [...]string{
	tokEOF:     "end of input",
	tokBareID:  "identifier",
	tokValueID: "value",
	tokSymbol:  "symbol",
	tokBangID:  "dialect type",
	tokString:  "string",
	tokInteger: "integer",
	tokFloat:   "float",
	tokPunct:   "punctuation",
	tokArrow:   "'->'",
}

func (k tokenKind) String() string { return tokenKindNames[k] }

type token struct {
	kind tokenKind
	// text of the token: identifiers without their sigil, strings unquoted.
	text string
	loc  Location
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	case tokValueID:
		return "'%" + t.text + "'"
	case tokSymbol:
		return "'@" + t.text + "'"
	case tokBangID:
		return "'!" + t.text + "'"
	case tokString:
		return strconv.Quote(t.text)
	}
	return "'" + t.text + "'"
}

// ParseError is returned by Parse, with the location of the offending text.
type ParseError struct {
	Loc Location
	Msg string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Loc, e.Msg)
}

type lexer struct {
	src       string
	pos       int
	line, col int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) loc() Location { return Location{Line: l.line, Col: l.col} }

func (l *lexer) failf(loc Location, format string, args ...any) {
	panic(&ParseError{Loc: loc, Msg: fmt.Sprintf(format, args...)})
}

func (l *lexer) peekByte(offset int) byte {
	if l.pos+offset >= len(l.src) {
		return 0
	}
	return l.src[l.pos+offset]
}

func (l *lexer) advance(n int) {
	for range n {
		if l.src[l.pos] == '\n' {
			l.line++
			l.col = 1
		} else {
			l.col++
		}
		l.pos++
	}
}

func (l *lexer) skipSpaceAndComments() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.advance(1)
		case c == '/' && l.peekByte(1) == '/':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.advance(1)
			}
		default:
			return
		}
	}
}

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }
func isIDChar(c byte) bool { return isLetter(c) || isDigit(c) || c == '.' || c == '$' }

// isBareIdentifier returns whether name can be printed without quotes.
func isBareIdentifier(name string) bool {
	if name == "" || !isLetter(name[0]) {
		return false
	}
	for ii := range len(name) {
		if !isIDChar(name[ii]) {
			return false
		}
	}
	return true
}

func (l *lexer) readWhile(pred func(byte) bool) string {
	start := l.pos
	for l.pos < len(l.src) && pred(l.src[l.pos]) {
		l.advance(1)
	}
	return l.src[start:l.pos]
}

// next returns the next token. It panics with a *ParseError on invalid input.
func (l *lexer) next() token {
	l.skipSpaceAndComments()
	loc := l.loc()
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, loc: loc}
	}
	c := l.src[l.pos]
	switch {
	case isLetter(c):
		return token{kind: tokBareID, text: l.readWhile(isIDChar), loc: loc}

	case c == '%' || c == '!':
		l.advance(1)
		text := l.readWhile(isIDChar)
		if text == "" {
			l.failf(loc, "expected identifier after %q", c)
		}
		kind := tokValueID
		if c == '!' {
			kind = tokBangID
		}
		return token{kind: kind, text: text, loc: loc}

	case c == '@':
		l.advance(1)
		if l.peekByte(0) == '"' {
			return token{kind: tokSymbol, text: l.readString(loc), loc: loc}
		}
		text := l.readWhile(isIDChar)
		if text == "" {
			l.failf(loc, "expected symbol name after '@'")
		}
		return token{kind: tokSymbol, text: text, loc: loc}

	case c == '"':
		return token{kind: tokString, text: l.readString(loc), loc: loc}

	case c == '-' && l.peekByte(1) == '>':
		l.advance(2)
		return token{kind: tokArrow, text: "->", loc: loc}

	case isDigit(c) || (c == '-' && isDigit(l.peekByte(1))):
		return l.readNumber(loc)

	case strings.IndexByte("(){}[]<>,:=*?", c) >= 0:
		l.advance(1)
		return token{kind: tokPunct, text: string(c), loc: loc}
	}
	l.failf(loc, "unexpected character %q", c)
	panic(nil)
}

func (l *lexer) readString(loc Location) string {
	start := l.pos
	l.advance(1) // Opening quote.
	for {
		if l.pos >= len(l.src) || l.src[l.pos] == '\n' {
			l.failf(loc, "unterminated string")
		}
		c := l.src[l.pos]
		if c == '\\' {
			l.advance(2)
			continue
		}
		l.advance(1)
		if c == '"' {
			break
		}
	}
	text, err := strconv.Unquote(l.src[start:l.pos])
	if err != nil {
		l.failf(loc, "invalid string literal %s: %v", l.src[start:l.pos], err)
	}
	return text
}

func (l *lexer) readNumber(loc Location) token {
	start := l.pos
	if l.src[l.pos] == '-' {
		l.advance(1)
	}
	l.readWhile(isDigit)
	kind := tokInteger
	if l.peekByte(0) == '.' && isDigit(l.peekByte(1)) {
		kind = tokFloat
		l.advance(1)
		l.readWhile(isDigit)
	}
	if c := l.peekByte(0); c == 'e' || c == 'E' {
		next := l.peekByte(1)
		if isDigit(next) || ((next == '+' || next == '-') && isDigit(l.peekByte(2))) {
			kind = tokFloat
			l.advance(2)
			l.readWhile(isDigit)
		}
	}
	return token{kind: kind, text: l.src[start:l.pos], loc: loc}
}

// scanDimensions reads the dimension list of a shaped type body, after its '<':
// "2x?x" of "2x?xf32", or "*x" of "*xf32". It stops right before the element type.
func (l *lexer) scanDimensions() (dims []int64, unranked bool) {
	dims = []int64{}
	for {
		l.skipSpaceAndComments()
		loc := l.loc()
		c := l.peekByte(0)
		switch {
		case c == '*' && !unranked && len(dims) == 0:
			l.advance(1)
			l.expectX(loc)
			unranked = true
			return

		case c == '?':
			l.advance(1)
			l.expectX(loc)
			dims = append(dims, DynamicSize)

		case isDigit(c):
			text := l.readWhile(isDigit)
			dim, err := strconv.ParseInt(text, 10, 64)
			if err != nil {
				l.failf(loc, "invalid dimension %q", text)
			}
			l.expectX(loc)
			dims = append(dims, dim)

		default:
			return
		}
	}
}

func (l *lexer) expectX(loc Location) {
	if l.peekByte(0) != 'x' {
		l.failf(loc, "expected 'x' after dimension")
	}
	l.advance(1)
}
