// Package lexer turns queued source text into positioned tokens.
package lexer

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/ava12/rdl"
	"github.com/ava12/rdl/errors"
	"github.com/ava12/rdl/source"
)

const (
	// ErrorTokenType marks capturing groups that match broken lexemes, e.g. an
	// unterminated string literal. Such a match never becomes a token: Next
	// reports a BadTokenError quoting the matched text instead.
	ErrorTokenType = LowestTokenType - 1

	// ErrorTokenName is the type name for ErrorTokenType.
	ErrorTokenName = "-error-"
)

// Error codes used by lexer:
const (
	// WrongCharError: no lexeme can be fetched at the current position.
	// The message names the offending rune.
	WrongCharError = rdl.LexicalErrors + iota

	// BadTokenError: the fetched lexeme matched an ErrorTokenType group.
	BadTokenError
)

// TokenType describes the token type assigned to one capturing group of the
// lexer regexp.
type TokenType struct {
	// Type is any non-negative value; ErrorTokenType is treated specially.
	Type int

	TypeName string
}

// Lexer tokenizes the current source of a source.Queue with a single regexp.
// The lexer itself is immutable and stateless; all position state lives in
// the queue. Token types map one-to-one to regexp capturing groups, a match
// with no captured group is an insignificant lexeme (whitespace, comment) and
// is skipped. Every byte of a source must belong to some lexeme.
type Lexer struct {
	types []TokenType
	re    *regexp.Regexp
}

// New creates a Lexer. The n-th element of types describes the (n+1)-th
// capturing group; groups without a description or with a negative type are
// treated as ErrorTokenType.
func New(re *regexp.Regexp, types []TokenType) *Lexer {
	ts := make([]TokenType, len(types))
	for i, t := range types {
		ts[i].TypeName = t.TypeName
		if t.Type >= 0 {
			ts[i].Type = t.Type
		} else {
			ts[i].Type = ErrorTokenType
		}
	}
	return &Lexer{types: ts, re: re}
}

func wrongCharError(s *source.Source, content []byte, pos int) *errors.Error {
	r, _ := utf8.DecodeRune(content)
	line, col := s.LineCol(pos)
	msg := fmt.Sprintf("wrong char %q (u+%x)", r, r)
	return errors.New(WrongCharError, msg, s.Name(), line, col)
}

func wrongTokenError(t *Token) *errors.Error {
	return errors.FormatPos(t, BadTokenError, "bad token %q", t.Text())
}

func (l *Lexer) matchToken(src *source.Source, content []byte, pos int) (*Token, int, error) {
	content = content[pos:]
	match := l.re.FindSubmatchIndex(content)
	if len(match) == 0 || match[0] != 0 || match[1] <= match[0] {
		return nil, 0, wrongCharError(src, content, pos)
	}

	for i := 2; i < len(match); i += 2 {
		if match[i] < 0 || match[i+1] < 0 {
			continue
		}

		sp := source.NewPos(src, pos+match[i])
		tokenType := ErrorTokenType
		typeName := ErrorTokenName
		if len(l.types) >= (i >> 1) {
			tokenType = l.types[(i>>1)-1].Type
			typeName = l.types[(i>>1)-1].TypeName
		}
		token := NewToken(tokenType, typeName, string(content[match[i]:match[i+1]]), sp)
		if tokenType == ErrorTokenType {
			return nil, 0, wrongTokenError(token)
		}

		return token, match[1], nil
	}

	return nil, match[1], nil
}

func (l *Lexer) fetch(q *source.Queue) (*Token, error) {
	content, pos := q.ContentPos()
	src := q.Source()
	if src == nil {
		return EoiToken(), nil
	}
	if len(content)-pos <= 0 {
		q.NextSource()
		return EofToken(src), nil
	}

	tok, advance, e := l.matchToken(src, content, pos)
	q.Skip(advance)
	return tok, e
}

// Next fetches the token at the current queue position and advances past it.
// At the end of the current source it discards that source and returns an EoF
// token; with nothing left to read it returns an EoI token. On a lexical
// error the position does not advance.
func (l *Lexer) Next(q *source.Queue) (*Token, error) {
	for {
		t, e := l.fetch(q)
		if t != nil || e != nil {
			return t, e
		}
	}
}
