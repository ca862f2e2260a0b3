package value

import (
	"strconv"
	"strings"
)

// Ref is an index of a value node in a Pool.
type Ref int

// Nil marks the absence of a value (e.g. a template argument with no default).
const Nil Ref = -1

type Kind int

const (
	UnsetKind Kind = iota // explicitly unset, convertible to anything
	BitKind
	BitsKind // bit positions stored least significant first
	IntKind
	StringKind
	CodeKind
	ListKind
	DagKind   // operands[0] is the operator, the rest are arguments
	VarKind   // reference to a template argument, loop variable, or sibling field
	VarBitKind
	DefKind   // reference to a finalized record
	FieldKind // operands[0].name field access
	OpKind    // bang-operator application
)

type node struct {
	kind     Kind
	typ      Type
	text     string // literal text or referenced name or operator name
	num      int64  // int literal, bit value, bit index
	operands []Ref
	argNames []string // dag argument names, aligned with operands[1:]
}

// Pool is an interning arena of value nodes. Equal nodes share a Ref, so
// substitution results and repeated literals are deduplicated for free.
// A Pool is owned by one record database and is not safe for concurrent use.
type Pool struct {
	nodes []node
	index map[string]Ref

	// inherits reports the class-inheritance relation, lookupDef resolves a
	// record name to a def reference, defField reads a field of a finalized
	// record. All are optional and installed by the parser.
	inherits  func(sub, base string) bool
	lookupDef func(name string) (Ref, bool)
	defField  func(def, field string) (Ref, bool)
}

func NewPool() *Pool {
	return &Pool{index: make(map[string]Ref)}
}

// SetHooks installs the record-resolution callbacks used for class-type
// compatibility, !cast folding, and field-access folding.
func (p *Pool) SetHooks(
	inherits func(sub, base string) bool,
	lookupDef func(name string) (Ref, bool),
	defField func(def, field string) (Ref, bool),
) {
	p.inherits = inherits
	p.lookupDef = lookupDef
	p.defField = defField
}

func (p *Pool) add(n node) Ref {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(int(n.kind)))
	sb.WriteByte('|')
	sb.WriteString(typeKey(n.typ))
	sb.WriteByte('|')
	sb.WriteString(n.text)
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatInt(n.num, 10))
	for _, r := range n.operands {
		sb.WriteByte(',')
		sb.WriteString(strconv.Itoa(int(r)))
	}
	for _, a := range n.argNames {
		sb.WriteByte(':')
		sb.WriteString(a)
	}

	key := sb.String()
	r, has := p.index[key]
	if has {
		return r
	}

	r = Ref(len(p.nodes))
	p.nodes = append(p.nodes, n)
	p.index[key] = r
	return r
}

func (p *Pool) node(r Ref) *node {
	return &p.nodes[r]
}

func (p *Pool) Kind(r Ref) Kind {
	if r == Nil {
		return UnsetKind
	}
	return p.node(r).kind
}

// TypeOf returns the static type of a value node, nil for unset.
func (p *Pool) TypeOf(r Ref) Type {
	if r == Nil {
		return nil
	}
	return p.node(r).typ
}

// Text returns the payload of string-like nodes: the literal for string and
// code nodes, the referenced name for var and def nodes, the accessed field
// name for field nodes, the operator name for op nodes.
func (p *Pool) Text(r Ref) string {
	return p.node(r).text
}

// Int64 returns the numeric payload of an int or bit node.
func (p *Pool) Int64(r Ref) (int64, bool) {
	n := p.node(r)
	if n.kind != IntKind && n.kind != BitKind {
		return 0, false
	}
	return n.num, true
}

// Operands returns child Refs: list items, bits (lsb first), dag operator
// plus arguments, op arguments, or the field-access base.
func (p *Pool) Operands(r Ref) []Ref {
	return p.node(r).operands
}

// ArgNames returns dag argument names aligned with Operands(r)[1:].
func (p *Pool) ArgNames(r Ref) []string {
	return p.node(r).argNames
}

func (p *Pool) Unset() Ref {
	return p.add(node{kind: UnsetKind})
}

func (p *Pool) Bit(v bool) Ref {
	var num int64
	if v {
		num = 1
	}
	return p.add(node{kind: BitKind, typ: BitType{}, num: num})
}

func (p *Pool) Int(v int64) Ref {
	return p.add(node{kind: IntKind, typ: IntType{}, num: v})
}

func (p *Pool) Str(s string) Ref {
	return p.add(node{kind: StringKind, typ: StringType{}, text: s})
}

func (p *Pool) Code(s string) Ref {
	return p.add(node{kind: CodeKind, typ: CodeType{}, text: s})
}

// Bits builds a bits<len(items)> value; items must already be bit-typed or
// unset, stored least significant first.
func (p *Pool) Bits(items []Ref) Ref {
	return p.add(node{kind: BitsKind, typ: BitsType{len(items)}, operands: items})
}

func (p *Pool) List(items []Ref, elem Type) Ref {
	return p.add(node{kind: ListKind, typ: ListType{elem}, operands: items})
}

// Dag builds a dag value; op is the operator node, names holds an optional
// name per argument ("" for unnamed).
func (p *Pool) Dag(op Ref, args []Ref, names []string) Ref {
	operands := make([]Ref, 0, len(args)+1)
	operands = append(operands, op)
	operands = append(operands, args...)
	return p.add(node{kind: DagKind, typ: DagType{}, operands: operands, argNames: names})
}

// Var builds a typed reference to a not-yet-bound name: a template argument
// (qualified "Class:arg"), a loop variable, or a sibling field.
func (p *Pool) Var(name string, t Type) Ref {
	return p.add(node{kind: VarKind, typ: t, text: name})
}

// VarBit selects a single bit of a bits-typed reference.
func (p *Pool) VarBit(v Ref, index int) Ref {
	return p.add(node{kind: VarBitKind, typ: BitType{}, num: int64(index), operands: []Ref{v}})
}

// Def builds a reference to the finalized record with the given name.
func (p *Pool) Def(name string) Ref {
	return p.add(node{kind: DefKind, typ: ClassType{name}, text: name})
}

// FieldAccess builds base.field of the given result type; folds immediately
// when base is a def reference whose field is known and set.
func (p *Pool) FieldAccess(base Ref, field string, t Type) Ref {
	if p.node(base).kind == DefKind && p.defField != nil {
		v, ok := p.defField(p.node(base).text, field)
		if ok {
			return v
		}
	}
	return p.add(node{kind: FieldKind, typ: t, text: field, operands: []Ref{base}})
}

// Convertible reports assignability of src to dst under this pool's
// inheritance relation.
func (p *Pool) Convertible(dst, src Type) bool {
	return Convertible(dst, src, p.inherits)
}

// fitsBits reports whether v is representable in a bits<width> field.
func fitsBits(v int64, width int) bool {
	if width >= 64 {
		return true
	}
	shifted := v >> uint(width)
	return shifted == 0 || shifted == -1
}

// Convert coerces a value to the given type, returning Nil and false when the
// value cannot have that type. A nil dst accepts anything unchanged. Unset
// converts to any type (the slot keeps its declared type).
func (p *Pool) Convert(r Ref, dst Type) (Ref, bool) {
	if dst == nil || r == Nil {
		return r, true
	}
	n := p.node(r)
	if n.kind == UnsetKind {
		return r, true
	}
	if Same(n.typ, dst) {
		return r, true
	}

	switch d := dst.(type) {
	case BitType:
		switch n.kind {
		case IntKind:
			if n.num == 0 || n.num == 1 {
				return p.Bit(n.num != 0), true
			}
		case BitsKind:
			if len(n.operands) == 1 {
				return p.Convert(n.operands[0], dst)
			}
		}

	case IntType:
		switch n.kind {
		case BitKind:
			return p.Int(n.num), true
		case BitsKind:
			var v int64
			for i, b := range n.operands {
				bn := p.node(b)
				if bn.kind != BitKind {
					return Nil, false
				}
				v |= bn.num << uint(i)
			}
			return p.Int(v), true
		}

	case BitsType:
		switch n.kind {
		case BitKind:
			if d.Width >= 1 {
				items := make([]Ref, d.Width)
				for i := range items {
					items[i] = p.Unset()
				}
				items[0] = r
				return p.Bits(items), true
			}
		case IntKind:
			if fitsBits(n.num, d.Width) {
				items := make([]Ref, d.Width)
				for i := range items {
					items[i] = p.Bit((n.num>>uint(i))&1 != 0)
				}
				return p.Bits(items), true
			}
		case BitsKind:
			// narrowing is fine as long as the dropped high bits carry nothing
			for i := d.Width; i < len(n.operands); i++ {
				bn := p.node(n.operands[i])
				if bn.kind != UnsetKind && (bn.kind != BitKind || bn.num != 0) {
					return Nil, false
				}
			}
			items := make([]Ref, d.Width)
			for i := range items {
				if i < len(n.operands) {
					items[i] = n.operands[i]
				} else {
					items[i] = p.Unset()
				}
			}
			return p.Bits(items), true
		}

	case StringType:
		if n.kind == CodeKind {
			return p.Str(n.text), true
		}

	case CodeType:
		if n.kind == StringKind {
			return p.Code(n.text), true
		}

	case ListType:
		if n.kind == ListKind {
			items := make([]Ref, len(n.operands))
			for i, it := range n.operands {
				c, ok := p.Convert(it, d.Elem)
				if !ok {
					return Nil, false
				}
				items[i] = c
			}
			return p.List(items, d.Elem), true
		}

	case ClassType:
		if n.kind == DefKind {
			s := n.typ.(ClassType)
			if s.Name == d.Name || (p.inherits != nil && p.inherits(s.Name, d.Name)) {
				return r, true
			}
			return Nil, false
		}
	}

	// References and unfolded operators keep their node; only the static
	// types must be compatible.
	switch n.kind {
	case VarKind, VarBitKind, FieldKind, OpKind:
		if p.Convertible(dst, n.typ) {
			return r, true
		}
	}

	return Nil, false
}

// Substitute replaces every var node whose name is bound in bind, rebuilding
// and re-folding enclosing nodes. The original value is left untouched.
func (p *Pool) Substitute(r Ref, bind map[string]Ref) Ref {
	if r == Nil || len(bind) == 0 {
		return r
	}
	n := p.node(r)

	switch n.kind {
	case VarKind:
		b, has := bind[n.text]
		if !has {
			return r
		}
		c, ok := p.Convert(b, n.typ)
		if ok {
			return c
		}
		return b

	case VarBitKind:
		base := p.Substitute(n.operands[0], bind)
		if base == n.operands[0] {
			return r
		}
		bn := p.node(base)
		if bn.kind == BitsKind && int(n.num) < len(bn.operands) {
			return bn.operands[n.num]
		}
		return p.VarBit(base, int(n.num))

	case FieldKind:
		base := p.Substitute(n.operands[0], bind)
		if base == n.operands[0] {
			return r
		}
		return p.FieldAccess(base, n.text, n.typ)

	case BitsKind, ListKind, DagKind:
		items, changed := p.substituteAll(n.operands, bind)
		if !changed {
			return r
		}
		nn := node{kind: n.kind, typ: n.typ, operands: items, argNames: n.argNames}
		return p.add(nn)

	case OpKind:
		args, changed := p.substituteAll(n.operands, bind)
		if !changed {
			return r
		}
		folded, e := p.Op(n.text, n.typ, args)
		if e == nil {
			return folded
		}
		return p.add(node{kind: OpKind, typ: n.typ, text: n.text, operands: args})
	}

	return r
}

func (p *Pool) substituteAll(refs []Ref, bind map[string]Ref) ([]Ref, bool) {
	changed := false
	items := make([]Ref, len(refs))
	for i, r := range refs {
		items[i] = p.Substitute(r, bind)
		changed = changed || items[i] != r
	}
	if !changed {
		return refs, false
	}
	return items, true
}

// String renders a value as source-like text.
func (p *Pool) String(r Ref) string {
	if r == Nil {
		return "?"
	}
	n := p.node(r)

	switch n.kind {
	case UnsetKind:
		return "?"
	case BitKind, IntKind:
		return strconv.FormatInt(n.num, 10)
	case StringKind:
		return strconv.Quote(n.text)
	case CodeKind:
		return "[{" + n.text + "}]"
	case BitsKind:
		parts := make([]string, len(n.operands))
		for i, b := range n.operands { // most significant first
			parts[len(parts)-1-i] = p.String(b)
		}
		return "{ " + strings.Join(parts, ", ") + " }"
	case ListKind:
		parts := make([]string, len(n.operands))
		for i, it := range n.operands {
			parts[i] = p.String(it)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case DagKind:
		parts := make([]string, 0, len(n.operands)-1)
		for i, a := range n.operands[1:] {
			s := p.String(a)
			if i < len(n.argNames) && n.argNames[i] != "" {
				s += ":$" + n.argNames[i]
			}
			parts = append(parts, s)
		}
		return "(" + p.String(n.operands[0]) + " " + strings.Join(parts, ", ") + ")"
	case VarKind, DefKind:
		return n.text
	case VarBitKind:
		return p.String(n.operands[0]) + "{" + strconv.FormatInt(n.num, 10) + "}"
	case FieldKind:
		return p.String(n.operands[0]) + "." + n.text
	case OpKind:
		parts := make([]string, len(n.operands))
		for i, a := range n.operands {
			parts[i] = p.String(a)
		}
		return n.text + "(" + strings.Join(parts, ", ") + ")"
	}

	return "?"
}

// IsLiteral reports whether a value contains no unresolved references.
func (p *Pool) IsLiteral(r Ref) bool {
	if r == Nil {
		return false
	}
	n := p.node(r)
	switch n.kind {
	case VarKind, VarBitKind, FieldKind, OpKind:
		return false
	case BitsKind, ListKind, DagKind:
		for _, it := range n.operands {
			if !p.IsLiteral(it) && p.node(it).kind != UnsetKind {
				return false
			}
		}
	}
	return true
}
