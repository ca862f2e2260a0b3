// Package errors defines the error type used by all rdl subpackages.
package errors

import (
	"fmt"
)

// Error carries an error code and, when known, the source position of the
// offending construct.
type Error struct {
	// Code contains non-zero error code.
	Code int

	// Message contains non-empty error message including source name and position information if provided.
	Message string

	// SourceName contains source name that caused this error or empty string.
	SourceName string

	// Line contains line number in source file or 0.
	Line int

	// Col contains column number in source file or 0.
	Col int
}

// SourcePos is used to retrieve source name and position information when constructing an error;
// source.Pos and lexer.Token implement this interface.
type SourcePos interface {
	SourceName() string
	Line() int
	Col() int
}

func New(code int, msg, name string, line, col int) *Error {
	if name != "" && line != 0 && col != 0 {
		msg += fmt.Sprintf(" in %s at %d:%d", name, line, col)
	}
	return &Error{code, msg, name, line, col}
}

func (e *Error) Error() string {
	return e.Message
}

func Format(code int, msg string, params ...interface{}) *Error {
	if len(params) > 0 {
		msg = fmt.Sprintf(msg, params...)
	}
	return New(code, msg, "", 0, 0)
}

func FormatPos(pos SourcePos, code int, msg string, params ...interface{}) *Error {
	if len(params) > 0 {
		msg = fmt.Sprintf(msg, params...)
	}
	return New(code, msg, pos.SourceName(), pos.Line(), pos.Col())
}

// Code returns the error code of e if it is an *Error, 0 otherwise.
func Code(e error) int {
	ee, is := e.(*Error)
	if is {
		return ee.Code
	}
	return 0
}
