package asm

import (
	"strings"
	"testing"
)

func TestScannerTokens(t *testing.T) {
	src := `.method static int "<>c"::Foo(int&, string[,]) { // comment
	IL_0000: ldc.i4 -12
	ldstr "a\"b\n"
	switch (L1, L2)
}`
	want := []struct {
		tok Token
		lit string
	}{
		{_Name, ".method"},
		{_Name, "static"},
		{_Name, "int"},
		{_String, "<>c"},
		{_DColon, "::"},
		{_Name, "Foo"},
		{_Lparen, "("},
		{_Name, "int"},
		{_Amp, "&"},
		{_Comma, ","},
		{_Name, "string"},
		{_Lbrack, "["},
		{_Comma, ","},
		{_Rbrack, "]"},
		{_Rparen, ")"},
		{_Lbrace, "{"},
		{_Name, "IL_0000"},
		{_Colon, ":"},
		{_Name, "ldc.i4"},
		{_Int, "-12"},
		{_Name, "ldstr"},
		{_String, "a\"b\n"},
		{_Name, "switch"},
		{_Lparen, "("},
		{_Name, "L1"},
		{_Comma, ","},
		{_Name, "L2"},
		{_Rparen, ")"},
		{_Rbrace, "}"},
		{_EOF, ""},
	}

	var errs []string
	s := NewScanner("test.il", strings.NewReader(src), func(line, col uint32, msg string) {
		errs = append(errs, msg)
	})
	for i, w := range want {
		s.Next()
		if s.Token() != w.tok || s.Literal() != w.lit {
			t.Fatalf("token %d = %s %q, want %s %q", i, s.Token(), s.Literal(), w.tok, w.lit)
		}
	}
	if len(errs) != 0 {
		t.Errorf("unexpected errors: %v", errs)
	}
}

func TestScannerErrors(t *testing.T) {
	var errs []string
	s := NewScanner("", strings.NewReader("nop # \"open"), func(line, col uint32, msg string) {
		errs = append(errs, msg)
	})
	for s.Next(); s.Token() != _EOF; s.Next() {
	}
	if len(errs) != 2 {
		t.Errorf("got %d errors, want 2: %v", len(errs), errs)
	}
}

func TestScannerNumbers(t *testing.T) {
	tests := []struct {
		src string
		tok Token
		lit string
	}{
		{"42", _Int, "42"},
		{"-7", _Int, "-7"},
		{"0x1F", _Int, "0x1F"},
		{"3.25", _Float, "3.25"},
		{"1e-3", _Float, "1e-3"},
	}
	for _, tt := range tests {
		s := NewScanner("", strings.NewReader(tt.src), nil)
		s.Next()
		if s.Token() != tt.tok || s.Literal() != tt.lit {
			t.Errorf("scan %q = %s %q, want %s %q", tt.src, s.Token(), s.Literal(), tt.tok, tt.lit)
		}
	}
}

func TestScannerPositions(t *testing.T) {
	s := NewScanner("f.il", strings.NewReader("nop\n  ret"), nil)
	s.Next()
	if p := s.Pos(); p.Line() != 1 || p.Col() != 1 {
		t.Errorf("nop at %s, want 1:1", p)
	}
	s.Next()
	if p := s.Pos(); p.Line() != 2 || p.Col() != 3 {
		t.Errorf("ret at %s, want 2:3", p)
	}
	if got := s.Pos().String(); got != "f.il:2:3" {
		t.Errorf("Pos.String() = %q", got)
	}
}

func TestScannerLineEndings(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"lf", "nop // x\n  ret"},
		{"crlf", "nop // x\r\n  ret"},
		{"bom", "\xEF\xBB\xBFnop // x\r\n  ret"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var errs []string
			s := NewScanner("", strings.NewReader(tt.src), func(line, col uint32, msg string) {
				errs = append(errs, msg)
			})
			s.Next()
			if s.Literal() != "nop" || s.Pos().Col() != 1 {
				t.Errorf("first token %q at %s, want nop at 1:1", s.Literal(), s.Pos())
			}
			s.Next()
			if p := s.Pos(); s.Literal() != "ret" || p.Line() != 2 || p.Col() != 3 {
				t.Errorf("second token %q at %s, want ret at 2:3", s.Literal(), p)
			}
			if len(errs) != 0 {
				t.Errorf("unexpected errors: %v", errs)
			}
		})
	}
}
