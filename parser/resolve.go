package parser

import (
	err "github.com/ava12/rdl/errors"
	"github.com/ava12/rdl/lexer"
	"github.com/ava12/rdl/record"
	"github.com/ava12/rdl/value"
)

// templateArg is a formal template argument of a class or multiclass. Inside
// bodies it is referenced by its qualified name ("Owner:arg"), so arguments of
// different owners never collide during substitution.
type templateArg struct {
	name      string
	qualified string
	typ       value.Type
	def       value.Ref // value.Nil when there is no default
	tok       *lexer.Token
}

type classDef struct {
	name string
	args []templateArg
	rec  *builder
}

type multiClass struct {
	name   string
	args   []templateArg
	protos []*builder
}

// findTemplArg looks up a name among the template arguments of the class or
// multiclass currently being parsed.
func (c *parseContext) findTemplArg(name string) *templateArg {
	for i := range c.templArgs {
		if c.templArgs[i].name == name {
			return &c.templArgs[i]
		}
	}
	return nil
}

// bindArgs maps formal template arguments to actual values: positional values
// first, then defaults (which may reference earlier arguments). Returns the
// substitution map and the bound values in declaration order.
func (c *parseContext) bindArgs(owner string, formals []templateArg, args []value.Ref, pos err.SourcePos) (map[string]value.Ref, []value.Ref, error) {
	if len(args) > len(formals) {
		return nil, nil, tooManyArgsError(pos, owner, len(formals), len(args))
	}

	p := c.pool
	bind := make(map[string]value.Ref, len(formals))
	bound := make([]value.Ref, len(formals))
	for i, f := range formals {
		var v value.Ref
		if i < len(args) {
			conv, ok := p.Convert(args[i], f.typ)
			if !ok {
				return nil, nil, typeMismatchError(pos, "template argument "+f.name, f.typ, p.TypeOf(args[i]))
			}
			v = conv
		} else if f.def != value.Nil {
			v = p.Substitute(f.def, bind)
		} else {
			return nil, nil, unboundTemplateArgError(pos, owner, f.name)
		}
		bind[f.qualified] = v
		bound[i] = v
	}
	return bind, bound, nil
}

// addSubClass merges a parent class into b: parent fields are copied with the
// template arguments substituted, fields already present keep their local type
// and take the parent's value when it is set. The parent and all of its
// ancestors are recorded as bases.
func (c *parseContext) addSubClass(b *builder, cd *classDef, args []value.Ref, pos err.SourcePos) error {
	bind, bound, e := c.bindArgs(cd.name, cd.args, args, pos)
	if e != nil {
		return e
	}

	p := c.pool
	for _, s := range cd.rec.slots {
		v := p.Substitute(s.val, bind)
		if cv, ok := p.Convert(v, s.typ); ok {
			v = cv
		}
		ex := b.slot(s.name)
		if ex == nil {
			ns := &slot{name: s.name, typ: s.typ, val: v, tagged: s.tagged, inherited: true}
			if s.setBits != nil {
				ns.setBits = make([]bool, len(s.setBits))
				copy(ns.setBits, s.setBits)
			}
			b.addSlot(ns)
			continue
		}

		if !p.Convertible(ex.typ, s.typ) && !p.Convertible(s.typ, ex.typ) {
			return inheritanceConflictError(pos, s.name, cd.name, ex.typ, s.typ)
		}
		if p.Kind(v) != value.UnsetKind {
			conv, ok := p.Convert(v, ex.typ)
			if !ok {
				return inheritanceConflictError(pos, s.name, cd.name, ex.typ, p.TypeOf(v))
			}
			ex.val = conv
			ex.setBits = nil
		}
	}

	for _, base := range cd.rec.bases {
		if b.ancestors[base.Name] {
			continue
		}
		baseArgs, _ := substituteRefs(p, base.Args, bind)
		b.bases = append(b.bases, record.Base{Name: base.Name, Args: baseArgs})
		b.ancestors[base.Name] = true
	}
	if !b.ancestors[cd.name] {
		b.bases = append(b.bases, record.Base{Name: cd.name, Args: bound})
		b.ancestors[cd.name] = true
	}
	return nil
}

// addSubMultiClass instantiates the prototypes of a parent multiclass with the
// given arguments and appends them to the multiclass being parsed.
func (c *parseContext) addSubMultiClass(cur *multiClass, base *multiClass, args []value.Ref, pos err.SourcePos) error {
	bind, _, e := c.bindArgs(base.name, base.args, args, pos)
	if e != nil {
		return e
	}

	for _, proto := range base.protos {
		nb := proto.clone()
		nb.substitute(c.pool, bind)
		cur.protos = append(cur.protos, nb)
	}
	return nil
}

// parseArgValueList parses template argument values up to the closing angle
// bracket, which is consumed; the opening one already is. Expected types are
// taken from the formal arguments positionally.
func (c *parseContext) parseArgValueList(b *builder, owner string, formals []templateArg) ([]value.Ref, error) {
	t, e := c.fetchAny()
	if e != nil {
		return nil, e
	}
	if t.Text() == ">" {
		return nil, nil
	}
	c.put(t)

	var args []value.Ref
	for {
		var expected value.Type
		if len(args) < len(formals) {
			expected = formals[len(args)].typ
		}
		v, e := c.parseValue(b, expected, valueMode)
		if e != nil {
			return nil, e
		}
		args = append(args, v)

		t, e = c.fetchAny()
		if e != nil {
			return nil, e
		}
		if t.Text() == ">" {
			if len(args) > len(formals) {
				return nil, tooManyArgsError(t, owner, len(formals), len(args))
			}
			return args, nil
		}
		if t.Text() != "," {
			return nil, unexpectedTokenError(t)
		}
	}
}
