package asm

// Token is a lexical token of the assembly format.
type Token int

const (
	_EOF Token = iota
	_Name
	_Int
	_Float
	_String

	_Lbrace // {
	_Rbrace // }
	_Lparen // (
	_Rparen // )
	_Lbrack // [
	_Rbrack // ]
	_Comma  // ,
	_Colon  // :
	_DColon // ::
	_Amp    // &
	_Star   // *
	_Assign // =

	tokenCount
)

var tokenNames = [tokenCount]string{
	_EOF:    "EOF",
	_Name:   "name",
	_Int:    "integer",
	_Float:  "float",
	_String: "string",
	_Lbrace: "{",
	_Rbrace: "}",
	_Lparen: "(",
	_Rparen: ")",
	_Lbrack: "[",
	_Rbrack: "]",
	_Comma:  ",",
	_Colon:  ":",
	_DColon: "::",
	_Amp:    "&",
	_Star:   "*",
	_Assign: "=",
}

func (t Token) String() string {
	if t >= 0 && t < tokenCount {
		return tokenNames[t]
	}
	return "?"
}
