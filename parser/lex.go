package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ava12/rdl/lexer"
)

// Token type names. Keywords and punctuation are matched by token text,
// so none of these names may collide with a keyword.
const (
	stringTok  = "string literal"
	codeTok    = "code fragment"
	numberTok  = "number"
	nameTok    = "identifier"
	bangTok    = "operator"
	varNameTok = "dag argument name"
	opTok      = "op"
)

var rdlLexer *lexer.Lexer

func init() {
	tokenTypes := []lexer.TokenType{
		{Type: 0, TypeName: stringTok},
		{Type: 1, TypeName: codeTok},
		{Type: 2, TypeName: numberTok},
		{Type: 3, TypeName: nameTok},
		{Type: 4, TypeName: bangTok},
		{Type: 5, TypeName: varNameTok},
		{Type: 6, TypeName: opTok},
		{Type: lexer.ErrorTokenType, TypeName: lexer.ErrorTokenName},
	}
	re := regexp.MustCompile("^(?:[\\s]+" +
		"|//[^\\n]*" +
		"|/\\*(?s:.*?)\\*/" +
		"|(\"(?:[^\"\\\\\\n]|\\\\.)*\")" +
		"|(\\[\\{(?s:.*?)\\}\\])" +
		"|(0[xX][0-9a-fA-F]+|0[bB][01]+|[0-9]+)" +
		"|([a-zA-Z_][a-zA-Z_0-9]*)" +
		"|(![a-zA-Z]+)" +
		"|(\\$[a-zA-Z_][a-zA-Z_0-9]*)" +
		"|(\\.\\.\\.|[-+{}\\[\\]()<>:;,.=?#])" +
		"|(\"[^\"\\n]*|\\[\\{(?s:.*)|/\\*(?s:.*)))")
	rdlLexer = lexer.New(re, tokenTypes)
}

var keywords = map[string]bool{
	"class": true, "def": true, "defm": true, "multiclass": true,
	"let": true, "foreach": true, "in": true, "field": true, "include": true,
	"bit": true, "bits": true, "int": true, "string": true, "code": true,
	"list": true, "dag": true,
}

// objectKeywords start a statement at file scope; used for error resynchronization.
var objectKeywords = map[string]bool{
	"class": true, "def": true, "defm": true, "multiclass": true,
	"let": true, "foreach": true, "include": true,
}

func isName(t *lexer.Token) bool {
	return t.TypeName() == nameTok && !keywords[t.Text()]
}

// decodeInt parses a number token. Plain digits are decimal even with a
// leading zero, 0x and 0b prefixes select the base.
func decodeInt(text string) (int64, error) {
	if len(text) > 1 && text[0] == '0' && (text[1] == 'x' || text[1] == 'X' || text[1] == 'b' || text[1] == 'B') {
		return strconv.ParseInt(text, 0, 64)
	}
	return strconv.ParseInt(text, 10, 64)
}

// decodeString strips the quotes and processes escape sequences.
func decodeString(text string) string {
	text = text[1 : len(text)-1]
	if !strings.ContainsRune(text, '\\') {
		return text
	}

	var b strings.Builder
	b.Grow(len(text))
	escaped := false
	for _, c := range text {
		if !escaped {
			if c == '\\' {
				escaped = true
			} else {
				b.WriteRune(c)
			}
			continue
		}

		escaped = false
		switch c {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteRune(c)
		}
	}
	return b.String()
}

// decodeCode strips the [{ }] brackets around a code fragment.
func decodeCode(text string) string {
	return text[2 : len(text)-2]
}
