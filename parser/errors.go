package parser

import (
	"github.com/ava12/rdl"
	err "github.com/ava12/rdl/errors"
	"github.com/ava12/rdl/lexer"
	"github.com/ava12/rdl/value"
)

// Syntax error codes used by parser:
const (
	UnexpectedEofError = rdl.SyntaxErrors + iota
	UnexpectedTokenError
	ExpectedIntError
	IncludeError
)

// Semantic error codes used by parser:
const (
	UnresolvedError = rdl.SemanticErrors + iota
	TypeMismatchError
	WidthError
	OverlappingBitsError
	DuplicateFieldError
	DuplicateClassError
	DuplicateMultiClassError
	DuplicateTemplateArgError
	UnboundTemplateArgError
	TooManyArgsError
	InheritanceConflictError
	UnknownFieldError
	NotAListError
	BadNameError
	ValueError
)

func eofError(token *lexer.Token) *err.Error {
	return err.FormatPos(token, UnexpectedEofError, "unexpected end of input")
}

func unexpectedTokenError(token *lexer.Token) *err.Error {
	if token.Type() == lexer.EoiTokenType {
		return eofError(token)
	}
	text := token.Text()
	if text == "" {
		return err.FormatPos(token, UnexpectedTokenError, "unexpected %s token", token.TypeName())
	}
	return err.FormatPos(token, UnexpectedTokenError, "unexpected %q", text)
}

func expectedIntError(token *lexer.Token) *err.Error {
	return err.FormatPos(token, ExpectedIntError, "expected an integer, got %q", token.Text())
}

func includeError(token *lexer.Token, path string, e error) *err.Error {
	return err.FormatPos(token, IncludeError, "cannot include %q: %s", path, e.Error())
}

func unresolvedError(token *lexer.Token, name string) *err.Error {
	return err.FormatPos(token, UnresolvedError, "unknown identifier %q", name)
}

func unknownClassError(token *lexer.Token, name string) *err.Error {
	return err.FormatPos(token, UnresolvedError, "unknown class %q", name)
}

func unknownBaseError(token *lexer.Token, name string) *err.Error {
	return err.FormatPos(token, UnresolvedError, "unknown class or multiclass %q", name)
}

func typeMismatchError(pos err.SourcePos, what string, expected, got value.Type) *err.Error {
	e := "?"
	if expected != nil {
		e = expected.String()
	}
	g := "?"
	if got != nil {
		g = got.String()
	}
	return err.FormatPos(pos, TypeMismatchError, "%s expects a value of type %s, got %s", what, e, g)
}

func widthError(pos err.SourcePos, field string, bit, width int) *err.Error {
	return err.FormatPos(pos, WidthError, "bit %d out of range for field %q of width %d", bit, field, width)
}

func notBitsError(pos err.SourcePos, field string, t value.Type) *err.Error {
	return err.FormatPos(pos, WidthError, "cannot assign bits of field %q of type %s", field, t.String())
}

func overlappingBitsError(pos err.SourcePos, field string, bit int) *err.Error {
	return err.FormatPos(pos, OverlappingBitsError, "bit %d of field %q already assigned", bit, field)
}

func duplicateFieldError(token *lexer.Token, name string) *err.Error {
	return err.FormatPos(token, DuplicateFieldError, "field %q already declared", name)
}

func duplicateClassError(token *lexer.Token, name string) *err.Error {
	return err.FormatPos(token, DuplicateClassError, "class %q already defined", name)
}

func duplicateMultiClassError(token *lexer.Token, name string) *err.Error {
	return err.FormatPos(token, DuplicateMultiClassError, "multiclass %q already defined", name)
}

func duplicateTemplateArgError(token *lexer.Token, name string) *err.Error {
	return err.FormatPos(token, DuplicateTemplateArgError, "template argument %q already declared", name)
}

func unboundTemplateArgError(pos err.SourcePos, owner, arg string) *err.Error {
	return err.FormatPos(pos, UnboundTemplateArgError, "template argument %q of %q has no value and no default", arg, owner)
}

func tooManyArgsError(pos err.SourcePos, owner string, want, got int) *err.Error {
	return err.FormatPos(pos, TooManyArgsError, "%q takes %d template arguments, got %d", owner, want, got)
}

func inheritanceConflictError(pos err.SourcePos, field, base string, oldType, newType value.Type) *err.Error {
	return err.FormatPos(pos, InheritanceConflictError,
		"field %q of type %s redeclared by %q with incompatible type %s", field, oldType.String(), base, newType.String())
}

func unknownFieldError(pos err.SourcePos, name string) *err.Error {
	return err.FormatPos(pos, UnknownFieldError, "unknown field %q", name)
}

func notAListError(token *lexer.Token) *err.Error {
	return err.FormatPos(token, NotAListError, "foreach requires a list value")
}

func badNameError(pos err.SourcePos, rendered string) *err.Error {
	return err.FormatPos(pos, BadNameError, "record name %s does not resolve to a string", rendered)
}

func unresolvedValueError(pos err.SourcePos, field, ref string) *err.Error {
	return err.FormatPos(pos, UnresolvedError, "field %q references unbound %q", field, ref)
}

func errCannotSlice(rendered string) *err.Error {
	return err.Format(ValueError, "cannot slice unresolved list %s", rendered)
}

// valueError re-positions a coded error reported by the value package.
func valueError(pos err.SourcePos, e error) *err.Error {
	ee, is := e.(*err.Error)
	if is {
		return err.FormatPos(pos, ee.Code, "%s", ee.Message)
	}
	return err.FormatPos(pos, ValueError, "%s", e.Error())
}
