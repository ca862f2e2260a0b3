package value

import (
	"testing"

	"github.com/ava12/rdl/errors"
)

func checkOpErrorCode(t *testing.T, e error, code int) {
	t.Helper()
	if e == nil {
		t.Fatalf("expected error %d, got none", code)
	}
	ee, is := e.(*errors.Error)
	if !is {
		t.Fatalf("expected error %d, got %q", code, e.Error())
	}
	if ee.Code != code {
		t.Fatalf("expected error %d, got %d (%s)", code, ee.Code, ee.Message)
	}
}

func TestOpFolding(t *testing.T) {
	p := NewPool()
	ints := func(vs ...int64) []Ref {
		rs := make([]Ref, len(vs))
		for i, v := range vs {
			rs[i] = p.Int(v)
		}
		return rs
	}
	list := p.List(ints(1, 2, 3), IntType{})
	empty := p.List(nil, IntType{})

	samples := []struct {
		name string
		args []Ref
		want string
	}{
		{"!add", ints(1, 2, 3), "6"},
		{"!mul", ints(4, 5), "20"},
		{"!shl", ints(1, 4), "16"},
		{"!srl", ints(-1, 62), "3"},
		{"!sra", ints(-8, 2), "-2"},
		{"!strconcat", []Ref{p.Str("a"), p.Str("b")}, `"ab"`},
		{"!listconcat", []Ref{list, list}, "[1, 2, 3, 1, 2, 3]"},
		{"!head", []Ref{list}, "1"},
		{"!tail", []Ref{list}, "[2, 3]"},
		{"!empty", []Ref{empty}, "1"},
		{"!empty", []Ref{list}, "0"},
		{"!size", []Ref{list}, "3"},
		{"!if", []Ref{p.Int(1), p.Str("y"), p.Str("n")}, `"y"`},
		{"!if", []Ref{p.Int(0), p.Str("y"), p.Str("n")}, `"n"`},
		{"!eq", []Ref{p.Str("a"), p.Str("a")}, "1"},
		{"!eq", ints(1, 2), "0"},
	}
	for i, s := range samples {
		r, e := p.Op(s.name, nil, s.args)
		if e != nil {
			t.Errorf("sample #%d (%s): %s", i, s.name, e.Error())
			continue
		}
		if p.String(r) != s.want {
			t.Errorf("sample #%d (%s): expected %s, got %s", i, s.name, s.want, p.String(r))
		}
	}
}

func TestOpDeferred(t *testing.T) {
	p := NewPool()
	v := p.Var("x", IntType{})
	r, e := p.Op("!add", nil, []Ref{v, p.Int(1)})
	if e != nil {
		t.Fatal(e.Error())
	}
	if p.Kind(r) != OpKind {
		t.Fatal("operator with unresolved argument must stay unfolded")
	}
	if !Same(p.TypeOf(r), IntType{}) {
		t.Fatal("unfolded !add must still be typed int")
	}
}

func TestOpErrors(t *testing.T) {
	p := NewPool()

	_, e := p.Op("!bogus", nil, []Ref{p.Int(1)})
	checkOpErrorCode(t, e, UnknownOperatorError)

	_, e = p.Op("!head", nil, nil)
	checkOpErrorCode(t, e, OperatorArityError)

	_, e = p.Op("!add", nil, []Ref{p.Int(1), p.Str("s")})
	checkOpErrorCode(t, e, OperatorTypeError)

	_, e = p.Op("!cast", nil, []Ref{p.Str("x")})
	checkOpErrorCode(t, e, OperatorTypeError)
}

func TestCastFolding(t *testing.T) {
	p := NewPool()
	p.SetHooks(nil, func(name string) (Ref, bool) {
		if name == "R" {
			return p.Def("R"), true
		}
		return Nil, false
	}, nil)

	r, e := p.Op("!cast", ClassType{"R"}, []Ref{p.Str("R")})
	if e != nil {
		t.Fatal(e.Error())
	}
	if p.Kind(r) != DefKind || p.Text(r) != "R" {
		t.Fatal("!cast must resolve a record by name")
	}

	r, e = p.Op("!cast", StringType{}, []Ref{p.Int(7)})
	if e != nil {
		t.Fatal(e.Error())
	}
	if p.String(r) != `"7"` {
		t.Fatalf("expected \"7\", got %s", p.String(r))
	}
}

func TestPaste(t *testing.T) {
	p := NewPool()
	r, e := p.Paste(p.Str("R"), p.Int(3))
	if e != nil {
		t.Fatal(e.Error())
	}
	if p.String(r) != `"R3"` {
		t.Fatalf("got %s", p.String(r))
	}

	v := p.Var("i", IntType{})
	r, e = p.Paste(p.Str("R"), v)
	if e != nil {
		t.Fatal(e.Error())
	}
	if p.Kind(r) != OpKind {
		t.Fatal("paste with an unresolved side must stay unfolded")
	}
	if p.String(p.Substitute(r, map[string]Ref{"i": p.Int(5)})) != `"R5"` {
		t.Fatal("substituted paste must fold")
	}
}
