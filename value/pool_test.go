package value

import (
	"testing"
)

func TestInterning(t *testing.T) {
	p := NewPool()
	if p.Int(5) != p.Int(5) {
		t.Error("equal int literals must share a node")
	}
	if p.Int(5) == p.Int(6) {
		t.Error("different int literals must not share a node")
	}
	if p.Str("a") != p.Str("a") {
		t.Error("equal string literals must share a node")
	}
	if p.Str("5") == p.Int(5) {
		t.Error("a string and an int must not share a node")
	}

	a := p.List([]Ref{p.Int(1), p.Int(2)}, IntType{})
	b := p.List([]Ref{p.Int(1), p.Int(2)}, IntType{})
	if a != b {
		t.Error("equal lists must share a node")
	}
}

func TestConvertScalars(t *testing.T) {
	p := NewPool()
	samples := []struct {
		v    Ref
		t    Type
		want string
		ok   bool
	}{
		{p.Int(1), BitType{}, "1", true},
		{p.Int(0), BitType{}, "0", true},
		{p.Int(2), BitType{}, "", false},
		{p.Bit(true), IntType{}, "1", true},
		{p.Int(5), BitsType{4}, "{ 0, 1, 0, 1 }", true},
		{p.Int(-1), BitsType{2}, "{ 1, 1 }", true},
		{p.Int(7), BitsType{2}, "", false},
		{p.Str("x"), CodeType{}, "[{x}]", true},
		{p.Code("x"), StringType{}, "\"x\"", true},
		{p.Str("x"), IntType{}, "", false},
		{p.Unset(), IntType{}, "?", true},
	}
	for i, s := range samples {
		c, ok := p.Convert(s.v, s.t)
		if ok != s.ok {
			t.Errorf("sample #%d: expected ok=%v", i, s.ok)
			continue
		}
		if ok && p.String(c) != s.want {
			t.Errorf("sample #%d: expected %s, got %s", i, s.want, p.String(c))
		}
	}
}

func TestConvertBitsToInt(t *testing.T) {
	p := NewPool()
	bits, ok := p.Convert(p.Int(6), BitsType{4})
	if !ok {
		t.Fatal("cannot make bits")
	}
	back, ok := p.Convert(bits, IntType{})
	if !ok {
		t.Fatal("cannot convert back to int")
	}
	n, _ := p.Int64(back)
	if n != 6 {
		t.Fatalf("expected 6, got %d", n)
	}
}

func TestConvertBitsNarrowing(t *testing.T) {
	p := NewPool()
	wide, _ := p.Convert(p.Int(3), BitsType{8})
	narrow, ok := p.Convert(wide, BitsType{4})
	if !ok {
		t.Fatal("narrowing with zero high bits must succeed")
	}
	if p.String(narrow) != "{ 0, 0, 1, 1 }" {
		t.Fatalf("got %s", p.String(narrow))
	}

	wide, _ = p.Convert(p.Int(300), BitsType{16})
	_, ok = p.Convert(wide, BitsType{4})
	if ok {
		t.Fatal("narrowing must fail when set bits are dropped")
	}
}

func TestConvertList(t *testing.T) {
	p := NewPool()
	l := p.List([]Ref{p.Int(0), p.Int(1)}, IntType{})
	c, ok := p.Convert(l, ListType{BitType{}})
	if !ok {
		t.Fatal("int list with bit values must convert to bit list")
	}
	if p.String(c) != "[0, 1]" {
		t.Fatalf("got %s", p.String(c))
	}

	l = p.List([]Ref{p.Int(0), p.Int(7)}, IntType{})
	_, ok = p.Convert(l, ListType{BitType{}})
	if ok {
		t.Fatal("7 is not a bit")
	}
}

func TestConvertClass(t *testing.T) {
	p := NewPool()
	p.SetHooks(func(sub, base string) bool {
		return sub == "D" && base == "B"
	}, nil, nil)

	d := p.Def("D")
	if _, ok := p.Convert(d, ClassType{"B"}); !ok {
		t.Error("D inherits B")
	}
	if _, ok := p.Convert(d, ClassType{"C"}); ok {
		t.Error("D does not inherit C")
	}
}

func TestSubstitute(t *testing.T) {
	p := NewPool()
	v := p.Var("x", IntType{})
	bind := map[string]Ref{"x": p.Int(3)}

	if p.Substitute(v, bind) != p.Int(3) {
		t.Error("plain var substitution failed")
	}

	l := p.List([]Ref{v, p.Int(1)}, IntType{})
	if p.String(p.Substitute(l, bind)) != "[3, 1]" {
		t.Error("list substitution failed")
	}

	op, e := p.Op("!add", nil, []Ref{v, p.Int(4)})
	if e != nil {
		t.Fatal(e.Error())
	}
	if p.Substitute(op, bind) != p.Int(7) {
		t.Error("operator application must fold after substitution")
	}

	unbound := p.Var("y", IntType{})
	if p.Substitute(unbound, bind) != unbound {
		t.Error("unbound var must stay untouched")
	}
}

func TestSubstituteVarBit(t *testing.T) {
	p := NewPool()
	v := p.Var("f", BitsType{4})
	vb := p.VarBit(v, 2)
	bits, _ := p.Convert(p.Int(4), BitsType{4})

	r := p.Substitute(vb, map[string]Ref{"f": bits})
	if p.String(r) != "1" {
		t.Fatalf("expected 1, got %s", p.String(r))
	}
}

func TestIsLiteral(t *testing.T) {
	p := NewPool()
	if !p.IsLiteral(p.Int(1)) || !p.IsLiteral(p.Str("s")) {
		t.Error("literals must be literal")
	}
	v := p.Var("x", IntType{})
	if p.IsLiteral(v) {
		t.Error("a var is not literal")
	}
	if p.IsLiteral(p.List([]Ref{v}, IntType{})) {
		t.Error("a list holding a var is not literal")
	}
}

func TestRender(t *testing.T) {
	p := NewPool()
	nested := p.List([]Ref{p.Str("a"), p.Str("b")}, StringType{})
	dag := p.Dag(p.Def("op"), []Ref{p.Int(1), nested}, []string{"lhs", ""})
	got := p.String(dag)
	if got != `(op 1:$lhs, ["a", "b"])` {
		t.Fatalf("got %s", got)
	}
}
