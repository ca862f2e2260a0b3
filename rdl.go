/*
Package rdl is the front end of a declarative record-description language.

Source text defines classes (parameterized record templates), defs (concrete
records), multiclasses (templates expanding into record families), and
foreach/let constructs. The front end resolves all templates, expansions, and
overrides and produces a database of finalized records for downstream
consumers (emitters, validators).

Consists of subpackages:
  - cmd/rdldump: console utility parsing source files and dumping the record database;
  - errors: error type carrying an error code and source position;
  - lexer: lexical analyzer;
  - parser: declaration parser and semantic-resolution engine;
  - record: finalized records and the record database;
  - source: source files and source queue used by lexer;
  - value: typed value expressions and their interning pool.

Typical usage is:

	db := record.NewDatabase()
	p := parser.New(db)
	e := p.Parse(source.New(name, content))
	if e != nil { ... }
	for _, r := range db.All() { ... }
*/
package rdl

import (
	"github.com/ava12/rdl/errors"
)

// Error classes used by subpackages, each class contains up to 99 error codes:
const (
	LexicalErrors  = 101 // used by lexer
	SyntaxErrors   = 201 // used by parser
	SemanticErrors = 301 // used by parser
	ValueErrors    = 401 // used by value
	RecordErrors   = 501 // used by record
)

// Error is the error type used by rdl subpackages.
type Error = errors.Error
