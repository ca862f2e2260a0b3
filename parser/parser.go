// Package parser reads record description sources and fills a record database.
// Parsing resolves everything eagerly: subclass merging, template argument
// binding, let overrides, and foreach replication all happen as the statements
// are read, so the database only ever holds finalized records.
package parser

import (
	"os"
	"path/filepath"

	"github.com/ava12/rdl/lexer"
	"github.com/ava12/rdl/record"
	"github.com/ava12/rdl/source"
	"github.com/ava12/rdl/value"
)

// Parser accumulates parsed classes and records. Several sources may be
// parsed by the same parser, later ones seeing the classes and records of
// earlier ones. Not safe for concurrent use.
type Parser struct {
	db          *record.Database
	classes     map[string]*classDef
	multis      map[string]*multiClass
	includeDirs []string
	readFile    func(name string) ([]byte, error)
	deps        []string
	diags       int
}

func New(db *record.Database) *Parser {
	p := &Parser{
		db:       db,
		classes:  make(map[string]*classDef),
		multis:   make(map[string]*multiClass),
		readFile: os.ReadFile,
	}
	db.Pool().SetHooks(p.inherits, p.lookupDef, p.defField)
	return p
}

// AddIncludeDir appends a directory to search for included files.
func (p *Parser) AddIncludeDir(dir string) {
	p.includeDirs = append(p.includeDirs, dir)
}

// SetFileReader replaces os.ReadFile for resolving includes, e.g. in tests.
func (p *Parser) SetFileReader(read func(name string) ([]byte, error)) {
	p.readFile = read
}

// Dependencies lists the files pulled in by include statements, in the order
// they were read.
func (p *Parser) Dependencies() []string {
	return p.deps
}

// Diagnostics returns the total number of errors seen. After an error the
// parser skips to the next file-scope statement and goes on, so this may
// exceed one even though Parse returns only the first error.
func (p *Parser) Diagnostics() int {
	return p.diags
}

// Parse reads one source (plus anything it includes) into the database.
// Returns the first error encountered, nil if there were none.
func (p *Parser) Parse(s *source.Source) error {
	c := &parseContext{
		parser:  p,
		pool:    p.db.Pool(),
		db:      p.db,
		classes: p.classes,
		multis:  p.multis,
		queue:   source.NewQueue().Append(s),
	}
	return c.parseObjectList()
}

// ParseString parses a single named source into the database.
func ParseString(db *record.Database, name, content string) error {
	return New(db).Parse(source.New(name, []byte(content)))
}

func (p *Parser) inherits(sub, base string) bool {
	cd := p.classes[sub]
	if cd != nil {
		return cd.rec.ancestors[base]
	}
	r := p.db.Get(sub)
	return r != nil && r.Inherits(base)
}

func (p *Parser) lookupDef(name string) (value.Ref, bool) {
	if p.db.Get(name) == nil {
		return value.Nil, false
	}
	return p.db.Pool().Def(name), true
}

func (p *Parser) defField(name, field string) (value.Ref, bool) {
	r := p.db.Get(name)
	if r == nil {
		return value.Nil, false
	}
	f := r.Field(field)
	if f == nil || p.db.Pool().Kind(f.Value) == value.UnsetKind {
		return value.Nil, false
	}
	return f.Value, true
}

// parseContext is the state of one Parse call.
type parseContext struct {
	parser   *Parser
	pool     *value.Pool
	db       *record.Database
	classes  map[string]*classDef
	multis   map[string]*multiClass
	queue    *source.Queue
	saved    *lexer.Token
	firstErr error

	templArgs []templateArg // arguments of the class or multiclass being parsed
	curMulti  *multiClass
	letStack  [][]letRecord
	loops     []foreachLoop
}

// next returns the next significant token. End-of-file tokens are transparent:
// the lexer switches to the including or the next queued source by itself.
func (c *parseContext) next() (*lexer.Token, error) {
	if c.saved != nil {
		t := c.saved
		c.saved = nil
		return t, nil
	}
	for {
		t, e := rdlLexer.Next(c.queue)
		if e != nil {
			return nil, e
		}
		if t.Type() != lexer.EofTokenType {
			return t, nil
		}
	}
}

func (c *parseContext) put(t *lexer.Token) {
	c.saved = t
}

// fetchAny returns the next token, including the end-of-input one.
func (c *parseContext) fetchAny() (*lexer.Token, error) {
	return c.next()
}

// fetch returns the next token if it matches one of the given type names or
// texts, an error otherwise.
func (c *parseContext) fetch(types ...string) (*lexer.Token, error) {
	t, e := c.next()
	if e != nil {
		return nil, e
	}
	if t.Type() == lexer.EoiTokenType {
		return nil, eofError(t)
	}
	for _, typ := range types {
		if t.TypeName() == typ || t.Text() == typ {
			return t, nil
		}
	}
	return nil, unexpectedTokenError(t)
}

// fetchName returns the next token if it is a non-keyword identifier.
func (c *parseContext) fetchName() (*lexer.Token, error) {
	t, e := c.fetch(nameTok)
	if e != nil {
		return nil, e
	}
	if !isName(t) {
		return nil, unexpectedTokenError(t)
	}
	return t, nil
}

func (c *parseContext) skip(text string) error {
	_, e := c.fetch(text)
	return e
}

// match consumes the next token if its text matches, puts it back otherwise.
func (c *parseContext) match(text string) (bool, error) {
	t, e := c.next()
	if e != nil {
		return false, e
	}
	if t.Text() == text {
		return true, nil
	}
	c.put(t)
	return false, nil
}

func (c *parseContext) diag(e error) {
	c.parser.diags++
	if c.firstErr == nil {
		c.firstErr = e
	}
}

// parseObjectList is the file-scope loop. On error it records the diagnostic,
// resynchronizes at the next statement keyword, and goes on.
func (c *parseContext) parseObjectList() error {
	for {
		t, e := c.fetchAny()
		if e != nil {
			c.diag(e)
			return c.firstErr
		}
		if t.Type() == lexer.EoiTokenType {
			return c.firstErr
		}

		e = c.parseObject(t, false)
		if e == nil {
			continue
		}
		c.diag(e)
		e = c.skipToTopLevel()
		if e != nil {
			c.diag(e)
			return c.firstErr
		}
	}
}

// skipToTopLevel discards tokens until something that can start a file-scope
// statement, skipping over balanced braces.
func (c *parseContext) skipToTopLevel() error {
	depth := 0
	for {
		t, e := c.next()
		if e != nil {
			return e
		}
		if t.Type() == lexer.EoiTokenType {
			c.put(t)
			return nil
		}

		switch t.Text() {
		case "{":
			depth++
		case "}":
			if depth > 0 {
				depth--
			}
		case ";":
			if depth == 0 {
				return nil
			}
		default:
			if depth == 0 && objectKeywords[t.Text()] {
				c.put(t)
				return nil
			}
		}
	}
}

func (c *parseContext) parseObject(t *lexer.Token, inMulti bool) error {
	switch t.Text() {
	case "def":
		return c.parseDef(t, inMulti)
	case "defm":
		return c.parseDefm(t, inMulti)
	case "let":
		return c.parseLet(t, inMulti)
	case "foreach":
		return c.parseForeach(t, inMulti)
	case "class":
		if !inMulti {
			return c.parseClass(t)
		}
	case "multiclass":
		if !inMulti {
			return c.parseMultiClass(t)
		}
	case "include":
		if !inMulti {
			return c.parseInclude(t)
		}
	}
	return unexpectedTokenError(t)
}

// parseObjectBlock parses the body of a let or foreach statement: either a
// single object or a braced list of objects.
func (c *parseContext) parseObjectBlock(inMulti bool) error {
	t, e := c.fetchAny()
	if e != nil {
		return e
	}
	if t.Text() != "{" {
		return c.parseObject(t, inMulti)
	}

	for {
		t, e = c.fetch("}", "def", "defm", "let", "foreach", "class", "multiclass", "include")
		if e != nil {
			return e
		}
		if t.Text() == "}" {
			return nil
		}
		e = c.parseObject(t, inMulti)
		if e != nil {
			return e
		}
	}
}

func (c *parseContext) parseClass(kw *lexer.Token) error {
	nt, e := c.fetchName()
	if e != nil {
		return e
	}
	name := nt.Text()
	if c.classes[name] != nil {
		return duplicateClassError(nt, name)
	}

	b := newBuilder(c.pool.Str(name), nt)
	cd := &classDef{name: name, rec: b}
	c.classes[name] = cd

	savedArgs := c.templArgs
	c.templArgs = nil
	defer func() { c.templArgs = savedArgs }()

	ok, e := c.match("<")
	if e != nil {
		return e
	}
	if ok {
		cd.args, e = c.parseTemplateArgDecls(name, b)
		if e != nil {
			return e
		}
	}
	return c.parseObjectBody(b)
}

// parseTemplateArgDecls parses declarations up to the closing angle bracket.
// Defaults may reference the arguments declared before them.
func (c *parseContext) parseTemplateArgDecls(owner string, b *builder) ([]templateArg, error) {
	for {
		typ, e := c.parseType()
		if e != nil {
			return nil, e
		}
		nt, e := c.fetchName()
		if e != nil {
			return nil, e
		}
		name := nt.Text()
		if c.findTemplArg(name) != nil {
			return nil, duplicateTemplateArgError(nt, name)
		}

		dflt := value.Nil
		ok, e := c.match("=")
		if e != nil {
			return nil, e
		}
		if ok {
			v, e := c.parseValue(b, typ, valueMode)
			if e != nil {
				return nil, e
			}
			dflt, ok = c.pool.Convert(v, typ)
			if !ok {
				return nil, typeMismatchError(nt, "default of "+name, typ, c.pool.TypeOf(v))
			}
		}
		c.templArgs = append(c.templArgs, templateArg{name, owner + ":" + name, typ, dflt, nt})

		t, e := c.fetch(",", ">")
		if e != nil {
			return nil, e
		}
		if t.Text() == ">" {
			return c.templArgs, nil
		}
	}
}

// parseObjectBody parses the optional subclass list and the body of a class
// or def: [: Base<...>, ...] ({ items } | ;)
func (c *parseContext) parseObjectBody(b *builder) error {
	t, e := c.fetchAny()
	if e != nil {
		return e
	}
	if t.Text() == ":" {
		for {
			e = c.parseSubClassRef(b)
			if e != nil {
				return e
			}
			ok, e := c.match(",")
			if e != nil {
				return e
			}
			if !ok {
				break
			}
		}
		t, e = c.fetchAny()
		if e != nil {
			return e
		}
	}

	switch t.Text() {
	case ";":
		return nil
	case "{":
		return c.parseBody(b)
	}
	return unexpectedTokenError(t)
}

func (c *parseContext) parseSubClassRef(b *builder) error {
	nt, e := c.fetchName()
	if e != nil {
		return e
	}
	cd := c.classes[nt.Text()]
	if cd == nil {
		return unknownClassError(nt, nt.Text())
	}

	var args []value.Ref
	ok, e := c.match("<")
	if e != nil {
		return e
	}
	if ok {
		args, e = c.parseArgValueList(b, cd.name, cd.args)
		if e != nil {
			return e
		}
	}
	return c.addSubClass(b, cd, args, nt)
}

func (c *parseContext) parseBody(b *builder) error {
	for {
		t, e := c.fetchAny()
		if e != nil {
			return e
		}
		switch t.Text() {
		case "}":
			return nil
		case "let":
			e = c.parseBodyLet(b)
		default:
			c.put(t)
			e = c.parseDeclaration(b)
		}
		if e != nil {
			return e
		}
	}
}

// parseBodyLet overrides a field (or a bit range of it) declared here or
// inherited: let name[{bits}] = value;
func (c *parseContext) parseBodyLet(b *builder) error {
	nt, e := c.fetchName()
	if e != nil {
		return e
	}

	var bits []int
	ok, e := c.match("{")
	if e != nil {
		return e
	}
	if ok {
		bits, e = c.parseRangeList("}")
		if e != nil {
			return e
		}
	}

	e = c.skip("=")
	if e != nil {
		return e
	}

	var expected value.Type
	s := b.slot(nt.Text())
	if s != nil && bits == nil {
		expected = s.typ
	}
	v, e := c.parseValue(b, expected, valueMode)
	if e != nil {
		return e
	}
	e = c.skip(";")
	if e != nil {
		return e
	}
	return b.setValue(c.pool, nt.Text(), bits, v, nt, false)
}

// parseDeclaration parses a field declaration: [field] type name [= value];
// Redeclaring an inherited field with the same or a narrower type is allowed.
func (c *parseContext) parseDeclaration(b *builder) error {
	tagged, e := c.match("field")
	if e != nil {
		return e
	}
	typ, e := c.parseType()
	if e != nil {
		return e
	}
	nt, e := c.fetchName()
	if e != nil {
		return e
	}
	name := nt.Text()

	s := b.slot(name)
	if s != nil {
		if !s.inherited {
			return duplicateFieldError(nt, name)
		}
		if !c.narrowerType(typ, s.typ) {
			return typeMismatchError(nt, "redeclaration of field "+name, s.typ, typ)
		}
		s.typ = typ
		s.inherited = false
		s.tagged = s.tagged || tagged
		cv, ok := c.pool.Convert(s.val, typ)
		if ok {
			s.val = cv
		} else {
			s.val = c.pool.Unset()
			s.setBits = nil
		}
	} else {
		b.addSlot(&slot{name: name, typ: typ, val: c.pool.Unset(), tagged: tagged})
	}

	ok, e := c.match("=")
	if e != nil {
		return e
	}
	if ok {
		v, e := c.parseValue(b, typ, valueMode)
		if e != nil {
			return e
		}
		e = b.setValue(c.pool, name, nil, v, nt, false)
		if e != nil {
			return e
		}
	}
	return c.skip(";")
}

// narrowerType reports whether every value of a redeclared field type is also
// a value of the inherited type. Unlike value.Convertible it is not
// value-dependent: int does not narrow to bit although a 0 or 1 converts.
func (c *parseContext) narrowerType(newT, oldT value.Type) bool {
	if value.Same(newT, oldT) {
		return true
	}
	switch n := newT.(type) {
	case value.BitType:
		switch o := oldT.(type) {
		case value.IntType:
			return true
		case value.BitsType:
			return o.Width >= 1
		}
	case value.BitsType:
		switch o := oldT.(type) {
		case value.IntType:
			return true
		case value.BitsType:
			return n.Width <= o.Width
		}
	case value.CodeType:
		_, is := oldT.(value.StringType)
		return is
	case value.ListType:
		o, is := oldT.(value.ListType)
		return is && c.narrowerType(n.Elem, o.Elem)
	case value.ClassType:
		o, is := oldT.(value.ClassType)
		return is && c.parser.inherits(n.Name, o.Name)
	}
	return false
}

// parseDef parses def [name] objectbody. Inside a multiclass the result
// becomes a prototype, otherwise it is finalized right away.
func (c *parseContext) parseDef(kw *lexer.Token, inMulti bool) error {
	nameRef := value.Nil
	tok := kw
	t, e := c.fetchAny()
	if e != nil {
		return e
	}
	c.put(t)
	switch t.Text() {
	case ":", ";", "{":
	default:
		tok = t
		nameRef, e = c.parseValue(nil, value.StringType{}, nameMode)
		if e != nil {
			return e
		}
	}

	b := newBuilder(nameRef, tok)
	e = c.parseObjectBody(b)
	if e != nil {
		return e
	}

	if inMulti {
		return c.addProto(b)
	}
	return c.finalizeAndRegister(b)
}

// addProto stores a def parsed inside a multiclass body as a prototype,
// applying the let statements and foreach loops enclosing it there.
func (c *parseContext) addProto(b *builder) error {
	e := c.applyLetStack(b)
	if e != nil {
		return e
	}
	if len(c.loops) == 0 {
		c.curMulti.protos = append(c.curMulti.protos, b)
		return nil
	}
	c.expandProtos(b, 0, make(map[string]value.Ref))
	return nil
}

func (c *parseContext) expandProtos(b *builder, depth int, bind map[string]value.Ref) {
	if depth == len(c.loops) {
		nb := b.clone()
		nb.substitute(c.pool, bind)
		c.curMulti.protos = append(c.curMulti.protos, nb)
		return
	}
	loop := &c.loops[depth]
	for _, item := range loop.items {
		bind[loop.name] = item
		c.expandProtos(b, depth+1, bind)
	}
	delete(bind, loop.name)
}

// parseDefm parses defm [name] : MC<...>, ..., RegularClass<...>, ... ;
// Multiclass references stamp out prototypes, trailing regular classes are
// merged into every record produced so far.
func (c *parseContext) parseDefm(kw *lexer.Token, inMulti bool) error {
	prefix := value.Nil
	t, e := c.fetchAny()
	if e != nil {
		return e
	}
	c.put(t)
	if t.Text() != ":" {
		prefix, e = c.parseValue(nil, value.StringType{}, nameMode)
		if e != nil {
			return e
		}
	}
	e = c.skip(":")
	if e != nil {
		return e
	}
	if prefix == value.Nil {
		prefix = c.pool.Str(c.db.AnonymousName())
	}

	var made []*builder
	for {
		nt, e := c.fetchName()
		if e != nil {
			return e
		}
		name := nt.Text()

		mc := c.multis[name]
		cd := c.classes[name]
		switch {
		case mc != nil:
			var args []value.Ref
			ok, e := c.match("<")
			if e != nil {
				return e
			}
			if ok {
				args, e = c.parseArgValueList(nil, mc.name, mc.args)
				if e != nil {
					return e
				}
			}
			bs, e := c.instantiateMultiClass(mc, args, prefix, nt)
			if e != nil {
				return e
			}
			made = append(made, bs...)

		case cd != nil && len(made) > 0:
			var args []value.Ref
			ok, e := c.match("<")
			if e != nil {
				return e
			}
			if ok {
				args, e = c.parseArgValueList(nil, cd.name, cd.args)
				if e != nil {
					return e
				}
			}
			for _, nb := range made {
				e = c.addSubClass(nb, cd, args, nt)
				if e != nil {
					return e
				}
			}

		default:
			return unknownBaseError(nt, name)
		}

		ok, e := c.match(",")
		if e != nil {
			return e
		}
		if !ok {
			break
		}
	}

	e = c.skip(";")
	if e != nil {
		return e
	}

	for _, nb := range made {
		if inMulti {
			e = c.addProto(nb)
		} else {
			e = c.finalizeAndRegister(nb)
		}
		if e != nil {
			return e
		}
	}
	return nil
}

func (c *parseContext) parseMultiClass(kw *lexer.Token) error {
	nt, e := c.fetchName()
	if e != nil {
		return e
	}
	name := nt.Text()
	if c.multis[name] != nil {
		return duplicateMultiClassError(nt, name)
	}
	mc := &multiClass{name: name}
	c.multis[name] = mc

	savedArgs := c.templArgs
	c.templArgs = nil
	defer func() { c.templArgs = savedArgs }()

	ok, e := c.match("<")
	if e != nil {
		return e
	}
	if ok {
		mc.args, e = c.parseTemplateArgDecls(name, nil)
		if e != nil {
			return e
		}
	}

	ok, e = c.match(":")
	if e != nil {
		return e
	}
	if ok {
		for {
			bt, e := c.fetchName()
			if e != nil {
				return e
			}
			base := c.multis[bt.Text()]
			if base == nil {
				return unknownBaseError(bt, bt.Text())
			}
			var args []value.Ref
			ok, e = c.match("<")
			if e != nil {
				return e
			}
			if ok {
				args, e = c.parseArgValueList(nil, base.name, base.args)
				if e != nil {
					return e
				}
			}
			e = c.addSubMultiClass(mc, base, args, bt)
			if e != nil {
				return e
			}
			ok, e = c.match(",")
			if e != nil {
				return e
			}
			if !ok {
				break
			}
		}
	}

	savedMulti := c.curMulti
	c.curMulti = mc
	defer func() { c.curMulti = savedMulti }()

	e = c.skip("{")
	if e != nil {
		return e
	}
	for {
		t, e := c.fetch("}", "def", "defm", "let", "foreach")
		if e != nil {
			return e
		}
		if t.Text() == "}" {
			return nil
		}
		e = c.parseObject(t, true)
		if e != nil {
			return e
		}
	}
}

// parseForeach parses foreach var = listvalue in (object | { objects }).
func (c *parseContext) parseForeach(kw *lexer.Token, inMulti bool) error {
	nt, e := c.fetchName()
	if e != nil {
		return e
	}
	e = c.skip("=")
	if e != nil {
		return e
	}
	v, e := c.parseValue(nil, nil, valueMode)
	if e != nil {
		return e
	}
	if c.pool.Kind(v) != value.ListKind {
		return notAListError(nt)
	}
	e = c.skip("in")
	if e != nil {
		return e
	}

	lt := c.pool.TypeOf(v).(value.ListType)
	c.loops = append(c.loops, foreachLoop{nt.Text(), lt.Elem, c.pool.Operands(v)})
	defer func() { c.loops = c.loops[:len(c.loops)-1] }()

	return c.parseObjectBlock(inMulti)
}

// parseLet parses let name[{bits}] = value, ... in (object | { objects }).
// The bindings override fields of every record defined in the body.
func (c *parseContext) parseLet(kw *lexer.Token, inMulti bool) error {
	var scope []letRecord
	for {
		nt, e := c.fetchName()
		if e != nil {
			return e
		}
		var bits []int
		ok, e := c.match("{")
		if e != nil {
			return e
		}
		if ok {
			bits, e = c.parseRangeList("}")
			if e != nil {
				return e
			}
		}
		e = c.skip("=")
		if e != nil {
			return e
		}
		v, e := c.parseValue(nil, nil, valueMode)
		if e != nil {
			return e
		}
		scope = append(scope, letRecord{nt.Text(), bits, v, nt})

		ok, e = c.match(",")
		if e != nil {
			return e
		}
		if !ok {
			break
		}
	}

	e := c.skip("in")
	if e != nil {
		return e
	}

	c.letStack = append(c.letStack, scope)
	defer func() { c.letStack = c.letStack[:len(c.letStack)-1] }()

	return c.parseObjectBlock(inMulti)
}

// parseInclude reads the named file and splices it in at the current position.
func (c *parseContext) parseInclude(kw *lexer.Token) error {
	st, e := c.fetch(stringTok)
	if e != nil {
		return e
	}
	path := decodeString(st.Text())

	p := c.parser
	data, re := p.readFile(path)
	full := path
	if re != nil {
		for _, dir := range p.includeDirs {
			full = filepath.Join(dir, path)
			data, re = p.readFile(full)
			if re == nil {
				break
			}
		}
	}
	if re != nil {
		return includeError(st, path, re)
	}

	p.deps = append(p.deps, full)
	c.queue.Prepend(source.New(full, data))
	return nil
}
