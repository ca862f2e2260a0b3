package value

import (
	"github.com/ava12/rdl"
	"github.com/ava12/rdl/errors"
)

// Error codes used by value:
const (
	UnknownOperatorError = rdl.ValueErrors + iota
	OperatorArityError
	OperatorTypeError
)

func unknownOperatorError(name string) *errors.Error {
	return errors.Format(UnknownOperatorError, "unknown operator %s", name)
}

func arityError(name string, op *opImpl, got int) *errors.Error {
	if op.maxArgs < 0 {
		return errors.Format(OperatorArityError, "%s expects at least %d arguments, got %d", name, op.minArgs, got)
	}
	if op.minArgs == op.maxArgs {
		return errors.Format(OperatorArityError, "%s expects %d arguments, got %d", name, op.minArgs, got)
	}
	return errors.Format(OperatorArityError, "%s expects %d to %d arguments, got %d", name, op.minArgs, op.maxArgs, got)
}

func operandTypeError(name string, index int, expected string, got Type) *errors.Error {
	return errors.Format(OperatorTypeError, "%s: argument #%d must be %s, got %s", name, index+1, expected, typeKey(got))
}

func castTypeError(name string) *errors.Error {
	return errors.Format(OperatorTypeError, "%s requires an explicit result type: %s<type>(...)", name, name)
}
