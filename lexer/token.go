package lexer

import (
	"github.com/ava12/rdl/source"
)

// Token is one lexeme together with the position of its first byte. Tokens
// are immutable; the parser keeps them around for error positioning.
type Token struct {
	tokenType int
	typeName  string
	text      string
	source    *source.Source
	line, col int
}

func (t *Token) Type() int {
	return t.tokenType
}

func (t *Token) TypeName() string {
	return t.typeName
}

func (t *Token) Text() string {
	return t.text
}

func (t *Token) Source() *source.Source {
	return t.source
}

func (t *Token) SourceName() string {
	if t.source == nil {
		return ""
	}
	return t.source.Name()
}

func (t *Token) Line() int {
	return t.line
}

func (t *Token) Col() int {
	return t.col
}

func NewToken(tokenType int, typeName, text string, pos source.Pos) *Token {
	return &Token{tokenType, typeName, text, pos.Source(), pos.Line(), pos.Col()}
}

const (
	EofTokenType    = -2
	EoiTokenType    = -3
	LowestTokenType = -3
	EofTokenName    = "-end-of-file-"
	EoiTokenName    = "-end-of-input-"
)

// EofToken marks the end of one source file.
func EofToken(s *source.Source) *Token {
	line := 0
	col := 0
	if s != nil {
		line, col = s.LineCol(s.Len())
	}
	return &Token{tokenType: EofTokenType, typeName: EofTokenName, source: s, line: line, col: col}
}

// EoiToken marks the end of all queued input.
func EoiToken() *Token {
	return &Token{tokenType: EoiTokenType, typeName: EoiTokenName}
}
