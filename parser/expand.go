package parser

import (
	err "github.com/ava12/rdl/errors"
	"github.com/ava12/rdl/lexer"
	"github.com/ava12/rdl/record"
	"github.com/ava12/rdl/value"
)

// letRecord is one binding of an active let statement.
type letRecord struct {
	name string
	bits []int // nil for a whole-field override
	val  value.Ref
	tok  *lexer.Token
}

// foreachLoop is one active foreach statement; records defined in its body are
// replicated once per item.
type foreachLoop struct {
	name  string
	elem  value.Type
	items []value.Ref
}

// applyLetStack overrides fields of a newly parsed record with the bindings of
// the enclosing let statements, outermost first. A let naming a field the
// record does not have is an error.
func (c *parseContext) applyLetStack(b *builder) error {
	for _, scope := range c.letStack {
		for _, lr := range scope {
			e := b.setValue(c.pool, lr.name, lr.bits, lr.val, lr.tok, true)
			if e != nil {
				return e
			}
		}
	}
	return nil
}

// finalizeAndRegister runs the tail of def processing: let overrides, then
// either direct registration or replication over the active foreach loops.
func (c *parseContext) finalizeAndRegister(b *builder) error {
	e := c.applyLetStack(b)
	if e != nil {
		return e
	}
	if len(c.loops) == 0 {
		_, e = c.register(b)
		return e
	}
	return c.expandLoops(b, 0, make(map[string]value.Ref))
}

// expandLoops recursively iterates the cross product of the active loops,
// registering one substituted copy of b per combination.
func (c *parseContext) expandLoops(b *builder, depth int, bind map[string]value.Ref) error {
	if depth == len(c.loops) {
		nb := b.clone()
		nb.substitute(c.pool, bind)
		_, e := c.register(nb)
		return e
	}

	loop := &c.loops[depth]
	for _, item := range loop.items {
		bind[loop.name] = item
		e := c.expandLoops(b, depth+1, bind)
		if e != nil {
			return e
		}
	}
	delete(bind, loop.name)
	return nil
}

// register resolves sibling field references, finalizes the record, and
// inserts it into the database.
func (c *parseContext) register(b *builder) (*record.Record, error) {
	b.resolveSelf(c.pool)
	rec, e := b.finalize(c.pool, c.db)
	if e != nil {
		return nil, e
	}
	e = c.db.Insert(rec)
	if e != nil {
		return nil, e
	}
	return rec, nil
}

// instantiateMultiClass stamps out the prototypes of a multiclass with the
// given template arguments. Every prototype name is prefixed with the defm
// name; a prototype defined anonymously takes the prefix alone.
func (c *parseContext) instantiateMultiClass(mc *multiClass, args []value.Ref, prefix value.Ref, pos err.SourcePos) ([]*builder, error) {
	bind, _, e := c.bindArgs(mc.name, mc.args, args, pos)
	if e != nil {
		return nil, e
	}

	p := c.pool
	out := make([]*builder, 0, len(mc.protos))
	for _, proto := range mc.protos {
		nb := proto.clone()
		nb.substitute(p, bind)
		if nb.nameRef == value.Nil {
			nb.nameRef = prefix
		} else if prefix != value.Nil {
			named, pe := p.Paste(prefix, nb.nameRef)
			if pe != nil {
				return nil, valueError(pos, pe)
			}
			nb.nameRef = named
		}
		out = append(out, nb)
	}
	return out, nil
}
