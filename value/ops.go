package value

import (
	"strconv"
)

// opImpl describes one bang operator: its arity, how its result type is
// derived from the (already type-checked) arguments, and an optional constant
// fold applied when enough operands are literal. The set is a table so new
// operators can be added without touching the parser.
type opImpl struct {
	minArgs, maxArgs int // maxArgs < 0 means variadic
	needsType        bool
	resultType       func(p *Pool, name string, explicit Type, args []Ref) (Type, error)
	fold             func(p *Pool, args []Ref, t Type) (Ref, bool)
}

var builtinOps map[string]*opImpl

func init() {
	builtinOps = map[string]*opImpl{
		"!strconcat":  {2, -1, false, stringsType, foldStrConcat},
		"!add":        {2, -1, false, intsType, foldInts(func(a, b int64) int64 { return a + b })},
		"!mul":        {2, -1, false, intsType, foldInts(func(a, b int64) int64 { return a * b })},
		"!shl":        {2, 2, false, intsType, foldInts(func(a, b int64) int64 { return a << uint(b) })},
		"!srl":        {2, 2, false, intsType, foldInts(func(a, b int64) int64 { return int64(uint64(a) >> uint(b)) })},
		"!sra":        {2, 2, false, intsType, foldInts(func(a, b int64) int64 { return a >> uint(b) })},
		"!listconcat": {2, -1, false, listsType, foldListConcat},
		"!head":       {1, 1, false, headType, foldHead},
		"!tail":       {1, 1, false, tailType, foldTail},
		"!empty":      {1, 1, false, emptyType, foldEmpty},
		"!size":       {1, 1, false, emptyType, foldSize},
		"!if":         {3, 3, false, ifType, foldIf},
		"!eq":         {2, 2, false, eqType, foldEq},
		"!cast":       {1, 1, true, castType, foldCast},
	}
}

// Op builds a bang-operator application, checking arity and operand types
// against the operator table and folding when the operands allow it.
// explicit is the <type> parameter for operators that take one, nil otherwise.
func (p *Pool) Op(name string, explicit Type, args []Ref) (Ref, error) {
	op, has := builtinOps[name]
	if !has {
		return Nil, unknownOperatorError(name)
	}
	if len(args) < op.minArgs || (op.maxArgs >= 0 && len(args) > op.maxArgs) {
		return Nil, arityError(name, op, len(args))
	}
	if op.needsType && explicit == nil {
		return Nil, castTypeError(name)
	}

	t, e := op.resultType(p, name, explicit, args)
	if e != nil {
		return Nil, e
	}

	if op.fold != nil {
		r, ok := op.fold(p, args, t)
		if ok {
			return r, nil
		}
	}

	return p.add(node{kind: OpKind, typ: t, text: name, operands: args}), nil
}

func stringsType(p *Pool, name string, _ Type, args []Ref) (Type, error) {
	for i, a := range args {
		t := p.TypeOf(a)
		if t == nil {
			continue
		}
		switch t.(type) {
		case StringType, CodeType, IntType, BitType:
		default:
			return nil, operandTypeError(name, i, "a string", t)
		}
	}
	return StringType{}, nil
}

func intsType(p *Pool, name string, _ Type, args []Ref) (Type, error) {
	for i, a := range args {
		t := p.TypeOf(a)
		if t != nil && !Convertible(IntType{}, t, nil) {
			return nil, operandTypeError(name, i, "an int", t)
		}
	}
	return IntType{}, nil
}

func listsType(p *Pool, name string, _ Type, args []Ref) (Type, error) {
	var lt Type
	for i, a := range args {
		t := p.TypeOf(a)
		if t == nil {
			continue
		}
		l, is := t.(ListType)
		if !is {
			return nil, operandTypeError(name, i, "a list", t)
		}
		if lt == nil {
			lt = l
		} else if !Same(lt, l) {
			return nil, operandTypeError(name, i, lt.String(), t)
		}
	}
	if lt == nil {
		return nil, operandTypeError(name, 0, "a list", nil)
	}
	return lt, nil
}

func headType(p *Pool, name string, _ Type, args []Ref) (Type, error) {
	t := p.TypeOf(args[0])
	l, is := t.(ListType)
	if !is {
		return nil, operandTypeError(name, 0, "a list", t)
	}
	return l.Elem, nil
}

func tailType(p *Pool, name string, _ Type, args []Ref) (Type, error) {
	t := p.TypeOf(args[0])
	if _, is := t.(ListType); !is {
		return nil, operandTypeError(name, 0, "a list", t)
	}
	return t, nil
}

func emptyType(p *Pool, name string, _ Type, args []Ref) (Type, error) {
	t := p.TypeOf(args[0])
	switch t.(type) {
	case ListType, StringType, nil:
		return IntType{}, nil
	}
	return nil, operandTypeError(name, 0, "a list or string", t)
}

func ifType(p *Pool, name string, _ Type, args []Ref) (Type, error) {
	ct := p.TypeOf(args[0])
	if ct != nil && !Convertible(IntType{}, ct, nil) {
		return nil, operandTypeError(name, 0, "an int", ct)
	}
	a, b := p.TypeOf(args[1]), p.TypeOf(args[2])
	if a == nil {
		return b, nil
	}
	if b == nil || Convertible(a, b, p.inherits) {
		return a, nil
	}
	if Convertible(b, a, p.inherits) {
		return b, nil
	}
	return nil, operandTypeError(name, 2, a.String(), b)
}

func eqType(p *Pool, name string, _ Type, args []Ref) (Type, error) {
	for i, a := range args {
		t := p.TypeOf(a)
		if t == nil {
			continue
		}
		switch t.(type) {
		case StringType, CodeType, IntType, BitType, BitsType:
		default:
			return nil, operandTypeError(name, i, "a string or int", t)
		}
	}
	return BitType{}, nil
}

func castType(p *Pool, name string, explicit Type, args []Ref) (Type, error) {
	return explicit, nil
}

func (p *Pool) stringArg(r Ref) (string, bool) {
	n := p.node(r)
	switch n.kind {
	case StringKind, CodeKind:
		return n.text, true
	case IntKind, BitKind:
		return strconv.FormatInt(n.num, 10), true
	}
	return "", false
}

func foldStrConcat(p *Pool, args []Ref, _ Type) (Ref, bool) {
	var parts []string
	for _, a := range args {
		s, ok := p.stringArg(a)
		if !ok {
			return Nil, false
		}
		parts = append(parts, s)
	}
	all := ""
	for _, s := range parts {
		all += s
	}
	return p.Str(all), true
}

func foldInts(combine func(a, b int64) int64) func(p *Pool, args []Ref, t Type) (Ref, bool) {
	return func(p *Pool, args []Ref, _ Type) (Ref, bool) {
		acc, ok := p.Int64(args[0])
		if !ok {
			return Nil, false
		}
		for _, a := range args[1:] {
			v, ok := p.Int64(a)
			if !ok {
				return Nil, false
			}
			acc = combine(acc, v)
		}
		return p.Int(acc), true
	}
}

func foldListConcat(p *Pool, args []Ref, t Type) (Ref, bool) {
	var items []Ref
	for _, a := range args {
		n := p.node(a)
		if n.kind != ListKind {
			return Nil, false
		}
		items = append(items, n.operands...)
	}
	return p.List(items, t.(ListType).Elem), true
}

func foldHead(p *Pool, args []Ref, _ Type) (Ref, bool) {
	n := p.node(args[0])
	if n.kind != ListKind || len(n.operands) == 0 {
		return Nil, false
	}
	return n.operands[0], true
}

func foldTail(p *Pool, args []Ref, t Type) (Ref, bool) {
	n := p.node(args[0])
	if n.kind != ListKind || len(n.operands) == 0 {
		return Nil, false
	}
	return p.List(n.operands[1:], t.(ListType).Elem), true
}

func foldEmpty(p *Pool, args []Ref, _ Type) (Ref, bool) {
	n := p.node(args[0])
	switch n.kind {
	case ListKind:
		if len(n.operands) == 0 {
			return p.Int(1), true
		}
		return p.Int(0), true
	case StringKind:
		if n.text == "" {
			return p.Int(1), true
		}
		return p.Int(0), true
	}
	return Nil, false
}

func foldSize(p *Pool, args []Ref, _ Type) (Ref, bool) {
	n := p.node(args[0])
	switch n.kind {
	case ListKind:
		return p.Int(int64(len(n.operands))), true
	case StringKind:
		return p.Int(int64(len(n.text))), true
	}
	return Nil, false
}

func foldIf(p *Pool, args []Ref, t Type) (Ref, bool) {
	v, ok := p.Int64(args[0])
	if !ok {
		return Nil, false
	}
	var branch Ref
	if v != 0 {
		branch = args[1]
	} else {
		branch = args[2]
	}
	c, ok := p.Convert(branch, t)
	if ok {
		return c, true
	}
	return branch, true
}

func foldEq(p *Pool, args []Ref, _ Type) (Ref, bool) {
	a, okA := p.stringArg(args[0])
	b, okB := p.stringArg(args[1])
	if !okA || !okB {
		return Nil, false
	}
	return p.Bit(a == b), true
}

func foldCast(p *Pool, args []Ref, t Type) (Ref, bool) {
	ct, isClass := t.(ClassType)
	if isClass {
		n := p.node(args[0])
		if n.kind == StringKind && p.lookupDef != nil {
			d, has := p.lookupDef(n.text)
			if has {
				c, ok := p.Convert(d, ct)
				if ok {
					return c, true
				}
			}
		}
		return Nil, false
	}
	if _, is := t.(StringType); is {
		s, ok := p.stringArg(args[0])
		if ok {
			return p.Str(s), true
		}
	}
	c, ok := p.Convert(args[0], t)
	if ok {
		return c, true
	}
	return Nil, false
}

// Paste implements the # operator used to build generated record names:
// integer operands are coerced to decimal strings and the result is a
// !strconcat application, folded when both sides are literal.
func (p *Pool) Paste(a, b Ref) (Ref, error) {
	return p.Op("!strconcat", nil, []Ref{a, b})
}
