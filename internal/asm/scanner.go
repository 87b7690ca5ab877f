package asm

import (
	"fmt"
	"io"
	"strings"

	"github.com/you-not-fish/destack/internal/il"
)

// Scanner performs lexical analysis on assembly text.
type Scanner struct {
	source

	tok    Token
	lit    string // name, number or decoded string content
	tokPos Pos

	litBuf strings.Builder
}

// NewScanner creates a new Scanner for the given source.
// The errh function is called for each lexical error; if nil, errors are silently ignored.
func NewScanner(filename string, src io.Reader, errh func(line, col uint32, msg string)) *Scanner {
	return &Scanner{source: *newSource(filename, src, errh)}
}

// Next advances to the next token.
func (s *Scanner) Next() {
redo:
	s.skipSpace()
	s.tokPos = s.pos()

	switch {
	case s.ch < 0:
		s.tok = _EOF
		s.lit = ""

	case il.IsNameChar(s.ch, true):
		s.scanName()

	case isDigit(s.ch), s.ch == '-', s.ch == '+':
		s.scanNumber()

	case s.ch == '"':
		s.scanString()

	default:
		if !s.scanPunct() {
			s.error(fmt.Sprintf("unexpected character %q", s.ch))
			s.nextch()
			goto redo
		}
	}
}

// Token returns the current token type.
func (s *Scanner) Token() Token {
	return s.tok
}

// Literal returns the current token's literal value.
func (s *Scanner) Literal() string {
	return s.lit
}

// Pos returns the current token's start position.
func (s *Scanner) Pos() Pos {
	return s.tokPos
}

func (s *Scanner) scanName() {
	s.litBuf.Reset()
	for il.IsNameChar(s.ch, false) {
		s.litBuf.WriteRune(s.ch)
		s.nextch()
	}
	s.lit = s.litBuf.String()
	s.tok = _Name
}

// scanNumber scans a decimal, hexadecimal or floating point literal with
// an optional sign.
func (s *Scanner) scanNumber() {
	s.litBuf.Reset()
	s.tok = _Int
	if s.ch == '-' || s.ch == '+' {
		s.litBuf.WriteRune(s.ch)
		s.nextch()
		if !isDigit(s.ch) {
			s.error("sign not followed by a digit")
			s.lit = s.litBuf.String()
			return
		}
	}
	if s.ch == '0' {
		s.litBuf.WriteRune(s.ch)
		s.nextch()
		if lower(s.ch) == 'x' {
			s.litBuf.WriteRune(s.ch)
			s.nextch()
			if !isHexDigit(s.ch) {
				s.error("invalid hex digit")
			}
			for isHexDigit(s.ch) {
				s.litBuf.WriteRune(s.ch)
				s.nextch()
			}
			s.lit = s.litBuf.String()
			return
		}
	}
	for isDigit(s.ch) {
		s.litBuf.WriteRune(s.ch)
		s.nextch()
	}
	if s.ch == '.' {
		s.tok = _Float
		s.litBuf.WriteRune(s.ch)
		s.nextch()
		for isDigit(s.ch) {
			s.litBuf.WriteRune(s.ch)
			s.nextch()
		}
	}
	if lower(s.ch) == 'e' {
		s.tok = _Float
		s.litBuf.WriteRune(s.ch)
		s.nextch()
		if s.ch == '+' || s.ch == '-' {
			s.litBuf.WriteRune(s.ch)
			s.nextch()
		}
		if !isDigit(s.ch) {
			s.error("exponent has no digits")
		}
		for isDigit(s.ch) {
			s.litBuf.WriteRune(s.ch)
			s.nextch()
		}
	}
	s.lit = s.litBuf.String()
}

// scanString scans a double-quoted string with Go-style escapes.
// The literal is the decoded content.
func (s *Scanner) scanString() {
	s.nextch() // skip opening "
	var b strings.Builder
	s.tok = _String
	for {
		switch {
		case s.ch == '"':
			s.nextch()
			s.lit = b.String()
			return
		case s.ch == '\\':
			if r, ok := s.scanEscape(); ok {
				b.WriteRune(r)
			}
		case s.ch == '\n' || s.ch < 0:
			s.error("string not terminated")
			s.lit = b.String()
			return
		default:
			b.WriteRune(s.ch)
			s.nextch()
		}
	}
}

func (s *Scanner) scanEscape() (rune, bool) {
	s.nextch() // skip \
	switch s.ch {
	case 'n':
		s.nextch()
		return '\n', true
	case 't':
		s.nextch()
		return '\t', true
	case 'r':
		s.nextch()
		return '\r', true
	case '\\', '"':
		r := s.ch
		s.nextch()
		return r, true
	case '0':
		s.nextch()
		return 0, true
	case 'x', 'u':
		n := 2
		if s.ch == 'u' {
			n = 4
		}
		s.nextch()
		var val rune
		for i := 0; i < n; i++ {
			if !isHexDigit(s.ch) {
				s.error("invalid hex escape")
				return 0, false
			}
			val = val*16 + hexValue(s.ch)
			s.nextch()
		}
		return val, true
	}
	s.error(fmt.Sprintf("unknown escape sequence: \\%c", s.ch))
	s.nextch()
	return 0, false
}

func hexValue(r rune) rune {
	switch {
	case '0' <= r && r <= '9':
		return r - '0'
	case 'a' <= lower(r) && lower(r) <= 'f':
		return lower(r) - 'a' + 10
	}
	return 0
}

func (s *Scanner) scanPunct() bool {
	switch s.ch {
	case '{':
		s.tok = _Lbrace
	case '}':
		s.tok = _Rbrace
	case '(':
		s.tok = _Lparen
	case ')':
		s.tok = _Rparen
	case '[':
		s.tok = _Lbrack
	case ']':
		s.tok = _Rbrack
	case ',':
		s.tok = _Comma
	case '&':
		s.tok = _Amp
	case '*':
		s.tok = _Star
	case '=':
		s.tok = _Assign
	case ':':
		s.nextch()
		if s.ch == ':' {
			s.nextch()
			s.tok = _DColon
		} else {
			s.tok = _Colon
		}
		s.lit = s.tok.String()
		return true
	default:
		return false
	}
	s.nextch()
	s.lit = s.tok.String()
	return true
}
