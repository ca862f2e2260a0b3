package parser

import (
	"github.com/ava12/rdl/lexer"
	"github.com/ava12/rdl/value"
)

// parseMode controls how unresolved identifiers are treated: in nameMode
// (record names, paste operands) they become string literals, in valueMode
// they are an error.
type parseMode int

const (
	valueMode parseMode = iota
	nameMode
)

// parseValue parses a value expression with optional suffixes: bit selection,
// list slicing, field access, and # concatenation. b is the record under
// construction whose fields are in scope, nil at file scope. expected guides
// list element deduction only, the caller converts the result.
func (c *parseContext) parseValue(b *builder, expected value.Type, m parseMode) (value.Ref, error) {
	v, e := c.parseSimpleValue(b, expected, m)
	if e != nil {
		return value.Nil, e
	}

	for {
		t, e := c.fetchAny()
		if e != nil {
			return value.Nil, e
		}

		switch t.Text() {
		case "{":
			// a body may follow a record name, not a bit selection
			if m == nameMode {
				c.put(t)
				return v, nil
			}
			v, e = c.parseBitSelect(t, v)

		case "[":
			v, e = c.parseListSlice(t, v)

		case ".":
			var ft *lexer.Token
			ft, e = c.fetch(nameTok)
			if e == nil {
				v, e = c.fieldAccess(ft, v)
			}

		case "#":
			var rhs value.Ref
			rhs, e = c.parseValue(b, nil, nameMode)
			if e == nil {
				v, e = c.pasteValues(t, v, rhs)
			}

		default:
			c.put(t)
			return v, nil
		}

		if e != nil {
			return value.Nil, e
		}
	}
}

func (c *parseContext) pasteValues(t *lexer.Token, a, b value.Ref) (value.Ref, error) {
	v, e := c.pool.Paste(a, b)
	if e != nil {
		return value.Nil, valueError(t, e)
	}
	return v, nil
}

// parseBitSelect handles v{rangelist}; the opening brace is consumed.
func (c *parseContext) parseBitSelect(t *lexer.Token, v value.Ref) (value.Ref, error) {
	bits, e := c.parseRangeList("}")
	if e != nil {
		return value.Nil, e
	}

	p := c.pool
	bt, isBits := p.TypeOf(v).(value.BitsType)
	if !isBits {
		return value.Nil, typeMismatchError(t, "bit selection", value.BitsType{Width: len(bits)}, p.TypeOf(v))
	}

	var items []value.Ref
	if p.Kind(v) == value.BitsKind {
		items = p.Operands(v)
	}
	sel := make([]value.Ref, len(bits))
	for i, idx := range bits {
		if idx < 0 || idx >= bt.Width {
			return value.Nil, widthError(t, p.String(v), idx, bt.Width)
		}
		if items != nil {
			sel[len(bits)-1-i] = items[idx]
		} else {
			sel[len(bits)-1-i] = p.VarBit(v, idx)
		}
	}

	if len(sel) == 1 {
		return sel[0], nil
	}
	return p.Bits(sel), nil
}

// parseListSlice handles v[rangelist]; the opening bracket is consumed.
// A single index yields the element, several yield a sub-list.
func (c *parseContext) parseListSlice(t *lexer.Token, v value.Ref) (value.Ref, error) {
	idxs, e := c.parseRangeList("]")
	if e != nil {
		return value.Nil, e
	}

	p := c.pool
	lt, isList := p.TypeOf(v).(value.ListType)
	if !isList {
		return value.Nil, typeMismatchError(t, "list slice", value.ListType{Elem: value.IntType{}}, p.TypeOf(v))
	}
	if p.Kind(v) != value.ListKind {
		return value.Nil, valueError(t, errCannotSlice(p.String(v)))
	}

	items := p.Operands(v)
	sel := make([]value.Ref, len(idxs))
	for i, idx := range idxs {
		if idx < 0 || idx >= len(items) {
			return value.Nil, widthError(t, p.String(v), idx, len(items))
		}
		sel[i] = items[idx]
	}

	if len(sel) == 1 {
		return sel[0], nil
	}
	return p.List(sel, lt.Elem), nil
}

// fieldAccess handles v.name; the base must be a record reference or a value
// of some class type.
func (c *parseContext) fieldAccess(t *lexer.Token, v value.Ref) (value.Ref, error) {
	p := c.pool
	ct, isClass := p.TypeOf(v).(value.ClassType)
	if !isClass {
		return value.Nil, typeMismatchError(t, "field access", value.ClassType{Name: "?"}, p.TypeOf(v))
	}

	name := t.Text()
	ft := c.fieldType(ct.Name, name)
	if ft == nil {
		return value.Nil, unknownFieldError(t, ct.Name+"."+name)
	}
	return p.FieldAccess(v, name, ft), nil
}

// fieldType finds the declared type of a field of a class or a record.
func (c *parseContext) fieldType(owner, field string) value.Type {
	cd := c.classes[owner]
	if cd != nil {
		s := cd.rec.slot(field)
		if s == nil {
			return nil
		}
		return s.typ
	}
	r := c.db.Get(owner)
	if r != nil {
		f := r.Field(field)
		if f == nil {
			return nil
		}
		return f.Type
	}
	return nil
}

func (c *parseContext) parseSimpleValue(b *builder, expected value.Type, m parseMode) (value.Ref, error) {
	t, e := c.fetchAny()
	if e != nil {
		return value.Nil, e
	}
	p := c.pool

	switch t.TypeName() {
	case numberTok:
		n, e := decodeInt(t.Text())
		if e != nil {
			return value.Nil, expectedIntError(t)
		}
		return p.Int(n), nil

	case stringTok:
		return p.Str(decodeString(t.Text())), nil

	case codeTok:
		return p.Code(decodeCode(t.Text())), nil

	case bangTok:
		return c.parseBangOp(t, b)

	case nameTok:
		if keywords[t.Text()] {
			return value.Nil, unexpectedTokenError(t)
		}
		return c.parseIDValue(t, b, m)
	}

	switch t.Text() {
	case "?":
		return p.Unset(), nil

	case "-":
		nt, e := c.fetch(numberTok)
		if e != nil {
			return value.Nil, e
		}
		n, de := decodeInt(nt.Text())
		if de != nil {
			return value.Nil, expectedIntError(nt)
		}
		return p.Int(-n), nil

	case "{":
		return c.parseBitsLiteral(t, b)

	case "[":
		return c.parseListLiteral(t, b, expected)

	case "(":
		return c.parseDagLiteral(b)
	}

	return value.Nil, unexpectedTokenError(t)
}

// parseIDValue resolves an identifier in a value context. Scopes are searched
// innermost first: template arguments, fields of the record being built, loop
// variables, then finalized records. In nameMode an unresolved identifier
// becomes a string literal, which is what allows "def Rec#i".
func (c *parseContext) parseIDValue(t *lexer.Token, b *builder, m parseMode) (value.Ref, error) {
	name := t.Text()
	p := c.pool

	arg := c.findTemplArg(name)
	if arg != nil {
		return p.Var(arg.qualified, arg.typ), nil
	}

	if b != nil {
		s := b.slot(name)
		if s != nil {
			return p.Var(name, s.typ), nil
		}
	}

	for i := len(c.loops) - 1; i >= 0; i-- {
		if c.loops[i].name == name {
			return p.Var(name, c.loops[i].elem), nil
		}
	}

	// in name mode an identifier is a name fragment even when a record with
	// the same name exists; duplicates are caught at registration
	if m != nameMode && c.db.Get(name) != nil {
		return p.Def(name), nil
	}

	if c.classes[name] != nil {
		nt, e := c.fetchAny()
		if e != nil {
			return value.Nil, e
		}
		if nt.Text() == "<" {
			return c.parseAnonymousDef(t, b)
		}
		c.put(nt)
	}

	if m == nameMode {
		return p.Str(name), nil
	}
	return value.Nil, unresolvedError(t, name)
}

// parseAnonymousDef handles Class<args> in a value position: an anonymous
// record is instantiated immediately and the value is a reference to it.
// The opening angle bracket is consumed.
func (c *parseContext) parseAnonymousDef(t *lexer.Token, b *builder) (value.Ref, error) {
	cd := c.classes[t.Text()]
	args, e := c.parseArgValueList(b, cd.name, cd.args)
	if e != nil {
		return value.Nil, e
	}

	nb := newBuilder(value.Nil, t)
	e = c.addSubClass(nb, cd, args, t)
	if e != nil {
		return value.Nil, e
	}
	rec, e := c.register(nb)
	if e != nil {
		return value.Nil, e
	}
	return c.pool.Def(rec.Name), nil
}

// parseBangOp parses !op or !cast<type>(args); the operator token is consumed.
func (c *parseContext) parseBangOp(t *lexer.Token, b *builder) (value.Ref, error) {
	var explicit value.Type
	nt, e := c.fetchAny()
	if e != nil {
		return value.Nil, e
	}
	if nt.Text() == "<" {
		explicit, e = c.parseType()
		if e != nil {
			return value.Nil, e
		}
		e = c.skip(">")
	} else {
		c.put(nt)
	}
	if e != nil {
		return value.Nil, e
	}

	e = c.skip("(")
	if e != nil {
		return value.Nil, e
	}
	args, e := c.parseValueList(b, ")", nil)
	if e != nil {
		return value.Nil, e
	}

	v, oe := c.pool.Op(t.Text(), explicit, args)
	if oe != nil {
		return value.Nil, valueError(t, oe)
	}
	return v, nil
}

// parseBitsLiteral handles { v, ... }: items are written most significant
// first, stored least significant first. The opening brace is consumed.
func (c *parseContext) parseBitsLiteral(t *lexer.Token, b *builder) (value.Ref, error) {
	items, e := c.parseValueList(b, "}", value.BitType{})
	if e != nil {
		return value.Nil, e
	}

	p := c.pool
	rev := make([]value.Ref, len(items))
	for i, it := range items {
		bit, ok := p.Convert(it, value.BitType{})
		if !ok {
			return value.Nil, typeMismatchError(t, "bits literal item", value.BitType{}, p.TypeOf(it))
		}
		rev[len(items)-1-i] = bit
	}
	return p.Bits(rev), nil
}

// parseListLiteral handles [ v, ... ] with an optional <type> suffix.
// The opening bracket is consumed.
func (c *parseContext) parseListLiteral(t *lexer.Token, b *builder, expected value.Type) (value.Ref, error) {
	var elem value.Type
	lt, isList := expected.(value.ListType)
	if isList {
		elem = lt.Elem
	}

	items, e := c.parseValueList(b, "]", elem)
	if e != nil {
		return value.Nil, e
	}

	nt, e := c.fetchAny()
	if e != nil {
		return value.Nil, e
	}
	if nt.Text() == "<" {
		elem, e = c.parseType()
		if e == nil {
			e = c.skip(">")
		}
		if e != nil {
			return value.Nil, e
		}
	} else {
		c.put(nt)
	}

	p := c.pool
	if elem == nil {
		if len(items) == 0 {
			return value.Nil, typeMismatchError(t, "empty list", nil, nil)
		}
		elem = p.TypeOf(items[0])
	}
	for i, it := range items {
		conv, ok := p.Convert(it, elem)
		if !ok {
			return value.Nil, typeMismatchError(t, "list item", elem, p.TypeOf(it))
		}
		items[i] = conv
	}
	return p.List(items, elem), nil
}

// parseDagLiteral handles (op arg:$name, ...); the opening parenthesis is
// consumed. The operator must be an identifier resolving to a value.
func (c *parseContext) parseDagLiteral(b *builder) (value.Ref, error) {
	ot, e := c.fetch(nameTok)
	if e != nil {
		return value.Nil, e
	}
	op, e := c.parseIDValue(ot, b, valueMode)
	if e != nil {
		return value.Nil, e
	}

	var args []value.Ref
	var names []string
	t, e := c.fetchAny()
	if e != nil {
		return value.Nil, e
	}
	for t.Text() != ")" {
		c.put(t)
		v, e := c.parseValue(b, nil, valueMode)
		if e != nil {
			return value.Nil, e
		}
		name := ""
		t, e = c.fetchAny()
		if e != nil {
			return value.Nil, e
		}
		if t.Text() == ":" {
			var vt *lexer.Token
			vt, e = c.fetch(varNameTok)
			if e != nil {
				return value.Nil, e
			}
			name = vt.Text()[1:]
			t, e = c.fetchAny()
			if e != nil {
				return value.Nil, e
			}
		}
		args = append(args, v)
		names = append(names, name)
		if t.Text() == "," {
			t, e = c.fetchAny()
			if e != nil {
				return value.Nil, e
			}
		} else if t.Text() != ")" {
			return value.Nil, unexpectedTokenError(t)
		}
	}

	return c.pool.Dag(op, args, names), nil
}

// parseValueList parses comma-separated values up to the closing token, which
// is consumed. An empty list is allowed.
func (c *parseContext) parseValueList(b *builder, close string, elem value.Type) ([]value.Ref, error) {
	t, e := c.fetchAny()
	if e != nil {
		return nil, e
	}
	if t.Text() == close {
		return nil, nil
	}
	c.put(t)

	var items []value.Ref
	for {
		v, e := c.parseValue(b, elem, valueMode)
		if e != nil {
			return nil, e
		}
		items = append(items, v)

		t, e = c.fetchAny()
		if e != nil {
			return nil, e
		}
		if t.Text() == close {
			return items, nil
		}
		if t.Text() != "," {
			return nil, unexpectedTokenError(t)
		}
	}
}

// parseRangeList parses comma-separated bit indexes or ranges (a-b or a...b,
// inclusive, in either direction) up to the closing token, which is consumed.
// Indexes are returned in listed order.
func (c *parseContext) parseRangeList(close string) ([]int, error) {
	var out []int
	for {
		t, e := c.fetch(numberTok)
		if e != nil {
			return nil, e
		}
		from, de := decodeInt(t.Text())
		if de != nil {
			return nil, expectedIntError(t)
		}
		to := from

		t, e = c.fetchAny()
		if e != nil {
			return nil, e
		}
		if t.Text() == "-" || t.Text() == "..." {
			var tt *lexer.Token
			tt, e = c.fetch(numberTok)
			if e != nil {
				return nil, e
			}
			to, de = decodeInt(tt.Text())
			if de != nil {
				return nil, expectedIntError(tt)
			}
			t, e = c.fetchAny()
			if e != nil {
				return nil, e
			}
		}

		if from <= to {
			for i := from; i <= to; i++ {
				out = append(out, int(i))
			}
		} else {
			for i := from; i >= to; i-- {
				out = append(out, int(i))
			}
		}

		if t.Text() == close {
			return out, nil
		}
		if t.Text() != "," {
			return nil, unexpectedTokenError(t)
		}
	}
}

// parseType parses a type: a builtin, bits<n>, list<type>, or the name of an
// already defined class.
func (c *parseContext) parseType() (value.Type, error) {
	t, e := c.fetch(nameTok)
	if e != nil {
		return nil, e
	}

	switch t.Text() {
	case "bit":
		return value.BitType{}, nil
	case "int":
		return value.IntType{}, nil
	case "string":
		return value.StringType{}, nil
	case "code":
		return value.CodeType{}, nil
	case "dag":
		return value.DagType{}, nil

	case "bits":
		e = c.skip("<")
		if e != nil {
			return nil, e
		}
		nt, e := c.fetch(numberTok)
		if e != nil {
			return nil, e
		}
		w, de := decodeInt(nt.Text())
		if de != nil || w <= 0 {
			return nil, expectedIntError(nt)
		}
		return value.BitsType{Width: int(w)}, c.skip(">")

	case "list":
		e = c.skip("<")
		if e != nil {
			return nil, e
		}
		elem, e := c.parseType()
		if e != nil {
			return nil, e
		}
		return value.ListType{Elem: elem}, c.skip(">")
	}

	if c.classes[t.Text()] == nil {
		return nil, unknownClassError(t, t.Text())
	}
	return value.ClassType{Name: t.Text()}, nil
}
