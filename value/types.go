// Package value defines the typed value expressions of the record-description
// language: their types, an interning pool holding value nodes, and the table
// of bang operators. Values are addressed by Ref indexes into the pool;
// rewriting (template-argument binding, loop-variable substitution) never
// mutates a node, it produces new pool entries.
package value

import (
	"strconv"
)

// Type is the declared type of a field, template argument, or value node.
// Types are plain comparable-by-structure values; compatibility checks that
// need the class-inheritance relation live on Pool.
type Type interface {
	String() string
}

type BitType struct{}

type BitsType struct{ Width int }

type IntType struct{}

type StringType struct{}

type CodeType struct{}

type ListType struct{ Elem Type }

type DagType struct{}

// ClassType is the type of a reference to a record inheriting the named class.
type ClassType struct{ Name string }

func (BitType) String() string    { return "bit" }
func (t BitsType) String() string { return "bits<" + strconv.Itoa(t.Width) + ">" }
func (IntType) String() string    { return "int" }
func (StringType) String() string { return "string" }
func (CodeType) String() string   { return "code" }
func (t ListType) String() string { return "list<" + t.Elem.String() + ">" }
func (DagType) String() string    { return "dag" }
func (t ClassType) String() string {
	return t.Name
}

// Same reports structural type equality.
func Same(a, b Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	la, isA := a.(ListType)
	lb, isB := b.(ListType)
	if isA || isB {
		return isA && isB && Same(la.Elem, lb.Elem)
	}
	return a == b
}

func typeKey(t Type) string {
	if t == nil {
		return ""
	}
	return t.String()
}

// Convertible reports whether a value of type src may be assigned to a slot
// of type dst without knowing the concrete value. inherits supplies the
// class-inheritance relation (nil treats distinct classes as unrelated).
func Convertible(dst, src Type, inherits func(sub, base string) bool) bool {
	if src == nil || Same(dst, src) {
		return true
	}

	switch d := dst.(type) {
	case BitType:
		switch src.(type) {
		case IntType:
			return true
		case BitsType:
			return src.(BitsType).Width == 1
		}
	case IntType:
		switch src.(type) {
		case BitType, BitsType:
			return true
		}
	case BitsType:
		switch s := src.(type) {
		case BitType:
			return d.Width >= 1
		case IntType:
			return true
		case BitsType:
			return s.Width <= d.Width
		}
	case StringType:
		_, is := src.(CodeType)
		return is
	case CodeType:
		_, is := src.(StringType)
		return is
	case ListType:
		s, is := src.(ListType)
		return is && Convertible(d.Elem, s.Elem, inherits)
	case ClassType:
		s, is := src.(ClassType)
		if !is {
			return false
		}
		if s.Name == d.Name {
			return true
		}
		return inherits != nil && inherits(s.Name, d.Name)
	}

	return false
}
