package asm

import (
	"bytes"
	"io"
	"unicode/utf8"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// source hands out the characters of an assembly file one at a time and
// tracks where they are. A leading byte order mark is dropped and "\r\n"
// reads as a single '\n', so files saved on any platform report the same
// positions.
type source struct {
	buf  []byte
	offs int // offset of the next character

	filename string
	line     uint32
	col      uint32 // byte column of ch

	ch rune // -1 at EOF

	errh func(line, col uint32, msg string)
}

func newSource(filename string, src io.Reader, errh func(line, col uint32, msg string)) *source {
	s := &source{filename: filename, line: 1, ch: -1, errh: errh}
	buf, err := io.ReadAll(src)
	if err != nil {
		s.error("error reading source file: " + err.Error())
		return s
	}
	s.buf = bytes.TrimPrefix(buf, bom)
	s.nextch()
	return s
}

func (s *source) nextch() {
	if s.ch == '\n' {
		s.line, s.col = s.line+1, 1
	} else {
		s.col++
	}
	if s.offs >= len(s.buf) {
		s.ch = -1
		return
	}
	if b := s.buf[s.offs]; b < utf8.RuneSelf {
		s.offs++
		if b == '\r' && s.offs < len(s.buf) && s.buf[s.offs] == '\n' {
			s.offs++
			b = '\n'
		}
		s.ch = rune(b)
		return
	}
	r, w := utf8.DecodeRune(s.buf[s.offs:])
	if r == utf8.RuneError && w == 1 {
		s.error("invalid UTF-8 encoding")
	}
	s.ch = r
	s.offs += w
}

// skipSpace moves past blanks and "//" line comments. A '/' that does
// not start a comment is reported and skipped.
func (s *source) skipSpace() {
	for {
		switch s.ch {
		case ' ', '\t', '\r', '\n':
			s.nextch()
		case '/':
			s.nextch()
			if s.ch != '/' {
				s.error("unexpected character '/'")
				continue
			}
			for s.ch != '\n' && s.ch >= 0 {
				s.nextch()
			}
		default:
			return
		}
	}
}

func (s *source) pos() Pos {
	return NewPos(s.filename, s.line, s.col)
}

func (s *source) error(msg string) {
	if s.errh != nil {
		s.errh(s.line, s.col, msg)
	}
}

func isDigit(r rune) bool {
	return '0' <= r && r <= '9'
}

func isHexDigit(r rune) bool {
	return isDigit(r) || 'a' <= lower(r) && lower(r) <= 'f'
}

// lower maps ASCII letters to lower case.
func lower(r rune) rune {
	return ('a' - 'A') | r
}
