// Package record defines finalized records and the database that owns them.
// Records are produced by the parser and are immutable once inserted; the
// database is the only output of a parse and the only thing downstream
// consumers (emitters, validators) read.
package record

import (
	"strconv"
	"strings"

	"github.com/ava12/rdl"
	"github.com/ava12/rdl/errors"
	"github.com/ava12/rdl/value"
)

// Error codes used by record:
const (
	// DuplicateRecordError indicates an attempt to register a record under an
	// already taken name.
	DuplicateRecordError = rdl.RecordErrors + iota
)

// Field is one finalized value slot of a record. Value is either fully
// resolved or Unset; partially assigned bits fields are materialized as bits
// literals with unset positions.
type Field struct {
	Name  string
	Type  value.Type
	Value value.Ref

	// Tagged marks fields declared with the `field` keyword.
	Tagged bool
}

// Base names one resolved base class together with the template-argument
// values it was instantiated with. A record lists its bases transitively, in
// resolution order.
type Base struct {
	Name string
	Args []value.Ref
}

type Record struct {
	Name      string
	Anonymous bool

	// Source position of the defining declaration.
	Source    string
	Line, Col int

	Fields []Field
	Bases  []Base

	index map[string]int
}

func NewRecord(name string, anonymous bool, src string, line, col int) *Record {
	return &Record{
		Name:      name,
		Anonymous: anonymous,
		Source:    src,
		Line:      line,
		Col:       col,
		index:     make(map[string]int),
	}
}

// AddField appends a field; returns false if the name is taken.
func (r *Record) AddField(f Field) bool {
	_, has := r.index[f.Name]
	if has {
		return false
	}
	r.index[f.Name] = len(r.Fields)
	r.Fields = append(r.Fields, f)
	return true
}

// Field returns the named field or nil.
func (r *Record) Field(name string) *Field {
	i, has := r.index[name]
	if !has {
		return nil
	}
	return &r.Fields[i]
}

// Inherits reports whether the record resolved the named class as one of its
// (transitive) bases.
func (r *Record) Inherits(base string) bool {
	for _, b := range r.Bases {
		if b.Name == base {
			return true
		}
	}
	return false
}

// String renders the record roughly as it could have been written by hand
// with all templates and substitutions applied.
func (r *Record) String(pool *value.Pool) string {
	var sb strings.Builder
	sb.WriteString("def ")
	sb.WriteString(r.Name)
	sb.WriteString(" {")
	for _, f := range r.Fields {
		sb.WriteString("\n\t")
		sb.WriteString(f.Type.String())
		sb.WriteByte(' ')
		sb.WriteString(f.Name)
		sb.WriteString(" = ")
		sb.WriteString(pool.String(f.Value))
		sb.WriteByte(';')
	}
	sb.WriteString("\n}")
	return sb.String()
}

// Database owns the value pool and all finalized records, in registration
// order. Insertion is append-only with a uniqueness check; records are never
// modified or removed afterwards. A Database serves one sequential parse at
// a time.
type Database struct {
	pool    *value.Pool
	records []*Record
	index   map[string]*Record
	anonCnt int
}

func NewDatabase() *Database {
	return &Database{
		pool:  value.NewPool(),
		index: make(map[string]*Record),
	}
}

func (d *Database) Pool() *value.Pool {
	return d.pool
}

// Insert registers a finalized record. The uniqueness check and the append
// are a single step: on failure the database is unchanged.
func (d *Database) Insert(r *Record) error {
	_, has := d.index[r.Name]
	if has {
		msg := "record \"" + r.Name + "\" already defined"
		return errors.New(DuplicateRecordError, msg, r.Source, r.Line, r.Col)
	}
	d.index[r.Name] = r
	d.records = append(d.records, r)
	return nil
}

// Get returns the record with the given name or nil.
func (d *Database) Get(name string) *Record {
	return d.index[name]
}

// All returns all records in registration order. The returned slice must not
// be modified.
func (d *Database) All() []*Record {
	return d.records
}

func (d *Database) Len() int {
	return len(d.records)
}

// AnonymousName reserves the next name for a record declared without one.
func (d *Database) AnonymousName() string {
	name := "anonymous." + strconv.Itoa(d.anonCnt)
	d.anonCnt++
	return name
}
