package parser

import (
	"strconv"
	"strings"

	err "github.com/ava12/rdl/errors"
	"github.com/ava12/rdl/lexer"
	"github.com/ava12/rdl/record"
	"github.com/ava12/rdl/value"
)

// slot is a mutable field of a record under construction.
type slot struct {
	name      string
	typ       value.Type
	val       value.Ref
	tagged    bool
	inherited bool
	setBits   []bool // non-nil after a partial (bit-range) assignment
}

// builder is a record under construction: a class body, a multiclass
// prototype, or a def before finalization. Values may still contain
// references to template arguments, loop variables, and sibling fields.
type builder struct {
	nameRef   value.Ref // value.Nil for anonymous defs
	tok       *lexer.Token
	slots     []*slot
	index     map[string]int
	bases     []record.Base
	ancestors map[string]bool
}

func newBuilder(nameRef value.Ref, tok *lexer.Token) *builder {
	return &builder{
		nameRef:   nameRef,
		tok:       tok,
		index:     make(map[string]int),
		ancestors: make(map[string]bool),
	}
}

func (b *builder) slot(name string) *slot {
	i, has := b.index[name]
	if !has {
		return nil
	}
	return b.slots[i]
}

func (b *builder) addSlot(s *slot) bool {
	_, has := b.index[s.name]
	if has {
		return false
	}
	b.index[s.name] = len(b.slots)
	b.slots = append(b.slots, s)
	return true
}

func (b *builder) clone() *builder {
	nb := newBuilder(b.nameRef, b.tok)
	nb.slots = make([]*slot, len(b.slots))
	for i, s := range b.slots {
		ns := *s
		if s.setBits != nil {
			ns.setBits = make([]bool, len(s.setBits))
			copy(ns.setBits, s.setBits)
		}
		nb.slots[i] = &ns
	}
	for name, i := range b.index {
		nb.index[name] = i
	}
	nb.bases = make([]record.Base, len(b.bases))
	copy(nb.bases, b.bases)
	for name := range b.ancestors {
		nb.ancestors[name] = true
	}
	return nb
}

// substitute rewrites the record name and every field value with bind.
// Substitution converts a bound value to the reference's own type, which may
// be wider than the slot's (let Num = n binds at the template-arg type), so
// slot values are re-converted to their declared types afterwards.
func (b *builder) substitute(p *value.Pool, bind map[string]value.Ref) {
	b.nameRef = p.Substitute(b.nameRef, bind)
	for _, s := range b.slots {
		s.val = p.Substitute(s.val, bind)
		if cv, ok := p.Convert(s.val, s.typ); ok {
			s.val = cv
		}
	}
	for i := range b.bases {
		args, changed := substituteRefs(p, b.bases[i].Args, bind)
		if changed {
			b.bases[i].Args = args
		}
	}
}

func substituteRefs(p *value.Pool, refs []value.Ref, bind map[string]value.Ref) ([]value.Ref, bool) {
	changed := false
	out := make([]value.Ref, len(refs))
	for i, r := range refs {
		out[i] = p.Substitute(r, bind)
		changed = changed || out[i] != r
	}
	if !changed {
		return refs, false
	}
	return out, true
}

// setValue assigns a field, or a bit range of a bits-typed field when bits is
// not nil. Body assignments reject overlapping bit ranges; let overrides and
// subclass merges pass override.
func (b *builder) setValue(p *value.Pool, name string, bits []int, v value.Ref, pos err.SourcePos, override bool) error {
	s := b.slot(name)
	if s == nil {
		return unknownFieldError(pos, name)
	}

	if bits == nil {
		c, ok := p.Convert(v, s.typ)
		if !ok {
			return typeMismatchError(pos, "field "+name, s.typ, p.TypeOf(v))
		}
		s.val = c
		s.setBits = nil
		return nil
	}

	bt, isBits := s.typ.(value.BitsType)
	if !isBits {
		return notBitsError(pos, name, s.typ)
	}
	for _, idx := range bits {
		if idx < 0 || idx >= bt.Width {
			return widthError(pos, name, idx, bt.Width)
		}
	}
	if s.setBits == nil {
		s.setBits = make([]bool, bt.Width)
	}
	if !override {
		for _, idx := range bits {
			if s.setBits[idx] {
				return overlappingBitsError(pos, name, idx)
			}
		}
	}

	items, e := b.bitItems(p, s, bt.Width, pos)
	if e != nil {
		return e
	}

	if len(bits) == 1 {
		c, ok := p.Convert(v, value.BitType{})
		if !ok {
			return typeMismatchError(pos, "bit of field "+name, value.BitType{}, p.TypeOf(v))
		}
		items[bits[0]] = c
	} else {
		c, ok := p.Convert(v, value.BitsType{Width: len(bits)})
		if !ok {
			return typeMismatchError(pos, "bits of field "+name, value.BitsType{Width: len(bits)}, p.TypeOf(v))
		}
		vb := p.Operands(c)
		if p.Kind(c) != value.BitsKind {
			// unresolved reference, take its bits one by one
			vb = make([]value.Ref, len(bits))
			for j := range vb {
				vb[j] = p.VarBit(c, j)
			}
		}
		// bits are listed most significant first, vb least significant first
		for i, idx := range bits {
			items[idx] = vb[len(bits)-1-i]
		}
	}

	for _, idx := range bits {
		s.setBits[idx] = true
	}
	s.val = p.Bits(items)
	return nil
}

// bitItems materializes the current value of a bits-typed slot as one Ref per
// bit, least significant first.
func (b *builder) bitItems(p *value.Pool, s *slot, width int, pos err.SourcePos) ([]value.Ref, error) {
	items := make([]value.Ref, width)
	switch p.Kind(s.val) {
	case value.UnsetKind:
		for i := range items {
			items[i] = p.Unset()
		}
	case value.BitsKind:
		ops := p.Operands(s.val)
		for i := range items {
			if i < len(ops) {
				items[i] = ops[i]
			} else {
				items[i] = p.Unset()
			}
		}
	case value.VarKind, value.FieldKind, value.OpKind:
		for i := range items {
			items[i] = p.VarBit(s.val, i)
		}
	default:
		return nil, notBitsError(pos, s.name, p.TypeOf(s.val))
	}
	return items, nil
}

// resolveSelf substitutes references to sibling fields with their current
// values, iterating until a fixpoint. Reference cycles are left as is.
func (b *builder) resolveSelf(p *value.Pool) {
	for range b.slots {
		bind := make(map[string]value.Ref)
		for _, s := range b.slots {
			if p.Kind(s.val) != value.UnsetKind {
				bind[s.name] = s.val
			}
		}
		if len(bind) == 0 {
			return
		}

		changed := false
		for _, s := range b.slots {
			nv := p.Substitute(s.val, bind)
			if cv, ok := p.Convert(nv, s.typ); ok {
				nv = cv
			}
			if nv != s.val {
				s.val = nv
				changed = true
			}
		}
		b.nameRef = p.Substitute(b.nameRef, bind)
		if !changed {
			return
		}
	}
}

// finalize resolves the record name and produces an immutable record.
// Leftover references to template arguments (qualified names) are an error;
// references to unset sibling fields are kept as is.
func (b *builder) finalize(p *value.Pool, db *record.Database) (*record.Record, error) {
	var name string
	anonymous := false
	switch p.Kind(b.nameRef) {
	case value.UnsetKind:
		name = db.AnonymousName()
		anonymous = true
	case value.StringKind, value.CodeKind:
		name = p.Text(b.nameRef)
	case value.IntKind:
		n, _ := p.Int64(b.nameRef)
		name = strconv.FormatInt(n, 10)
	default:
		return nil, badNameError(b.tok, p.String(b.nameRef))
	}

	rec := record.NewRecord(name, anonymous, b.tok.SourceName(), b.tok.Line(), b.tok.Col())
	for _, s := range b.slots {
		ref := unboundRef(p, s.val, b)
		if ref != "" {
			return nil, unresolvedValueError(b.tok, s.name, ref)
		}
		cv, ok := p.Convert(s.val, s.typ)
		if !ok {
			return nil, typeMismatchError(b.tok, "field "+s.name, s.typ, p.TypeOf(s.val))
		}
		rec.AddField(record.Field{Name: s.name, Type: s.typ, Value: cv, Tagged: s.tagged})
	}
	rec.Bases = b.bases
	return rec, nil
}

// unboundRef returns the name of the first var reference in v that is neither
// a sibling field of b nor resolvable at all (a leftover template argument).
func unboundRef(p *value.Pool, v value.Ref, b *builder) string {
	if v == value.Nil {
		return ""
	}
	switch p.Kind(v) {
	case value.VarKind:
		name := p.Text(v)
		if strings.ContainsRune(name, ':') {
			return name
		}
		if b.slot(name) == nil {
			return name
		}
	case value.BitsKind, value.ListKind, value.DagKind, value.VarBitKind, value.FieldKind, value.OpKind:
		for _, op := range p.Operands(v) {
			ref := unboundRef(p, op, b)
			if ref != "" {
				return ref
			}
		}
	}
	return ""
}
