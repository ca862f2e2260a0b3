package parser

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"testing"

	err "github.com/ava12/rdl/errors"
	"github.com/ava12/rdl/record"
	"github.com/ava12/rdl/source"
)

func parse(src string) (*record.Database, *Parser, error) {
	db := record.NewDatabase()
	p := New(db)
	e := p.Parse(source.New("test", []byte(src)))
	return db, p, e
}

func checkErrorCode(t *testing.T, samples []string, code int) {
	eCode := strconv.Itoa(code)
	for index, src := range samples {
		errPrefix := "input #" + strconv.Itoa(index)
		_, _, e := parse(src)

		if code == 0 {
			if e != nil {
				t.Error(errPrefix + ": unexpected error: " + e.Error())
				return
			}
			continue
		}

		if e == nil {
			t.Error(errPrefix + ": error expected, got success")
			return
		}

		pe, is := e.(*err.Error)
		if !is {
			t.Error(errPrefix + ": coded error expected, got \"" + e.Error() + "\"")
			return
		}

		if pe.Code != code {
			t.Error(errPrefix + ": expected error code " + eCode + ", got " + strconv.Itoa(pe.Code) + " (" + pe.Message + ")")
			return
		}
	}
}

// checkFields verifies that a record exists and its fields render as given.
func checkFields(db *record.Database, name string, fields map[string]string) error {
	rec := db.Get(name)
	if rec == nil {
		return errors.New("no record " + name)
	}
	pool := db.Pool()
	for fn, want := range fields {
		f := rec.Field(fn)
		if f == nil {
			return errors.New(name + ": no field " + fn)
		}
		got := pool.String(f.Value)
		if got != want {
			return fmt.Errorf("%s.%s: expected %s, got %s", name, fn, want, got)
		}
	}
	return nil
}

func checkRecords(t *testing.T, src string, recs map[string]map[string]string) {
	db, _, e := parse(src)
	if e != nil {
		t.Fatal("unexpected error: " + e.Error())
	}
	for name, fields := range recs {
		e = checkFields(db, name, fields)
		if e != nil {
			t.Error(e.Error())
		}
	}
}

func TestFieldValues(t *testing.T) {
	src := `
def Op0;
def D {
	int I = 10;
	int N = -4;
	int H = 0x1f;
	string S = "a\tb";
	code C = [{ return x; }];
	bit B = 1;
	bits<4> W = 6;
	list<int> L = [1, 2, 3];
	list<string> E = []<string>;
	dag G = (Op0 Op0:$lhs, 5);
	int U = ?;
}`
	checkRecords(t, src, map[string]map[string]string{
		"D": {
			"I": "10",
			"N": "-4",
			"H": "31",
			"S": `"a\tb"`,
			"C": "[{ return x; }]",
			"B": "1",
			"W": "{ 0, 1, 1, 0 }",
			"L": "[1, 2, 3]",
			"E": "[]",
			"G": "(Op0 Op0:$lhs, 5)",
			"U": "?",
		},
	})
}

func TestInheritanceMerge(t *testing.T) {
	src := `
class A {
	int X = 1;
	string S;
}
class B : A {
	int Y = 2;
	let X = 3;
}
def D : B {
	string S = "s";
}`
	db, _, e := parse(src)
	if e != nil {
		t.Fatal("unexpected error: " + e.Error())
	}
	e = checkFields(db, "D", map[string]string{"X": "3", "Y": "2", "S": `"s"`})
	if e != nil {
		t.Fatal(e.Error())
	}

	rec := db.Get("D")
	if !rec.Inherits("A") || !rec.Inherits("B") {
		t.Fatal("expected D to inherit both A and B")
	}
	if len(rec.Bases) != 2 || rec.Bases[0].Name != "A" || rec.Bases[1].Name != "B" {
		t.Fatalf("expected bases [A B], got %v", rec.Bases)
	}
	if db.Get("A") != nil || db.Get("B") != nil {
		t.Fatal("classes must not become records")
	}
}

func TestDiamondInheritance(t *testing.T) {
	src := `
class Root { int V = 1; }
class L : Root { let V = 2; }
class R : Root;
def D : L, R;`
	// R carries Root's original value and is merged last
	checkRecords(t, src, map[string]map[string]string{"D": {"V": "1"}})
}

func TestTemplateArgs(t *testing.T) {
	src := `
class Reg<int n, string pfx = "R"> {
	int Num = n;
	string Name = pfx # n;
}
def R5 : Reg<5>;
def X2 : Reg<2, "X">;`
	checkRecords(t, src, map[string]map[string]string{
		"R5": {"Num": "5", "Name": `"R5"`},
		"X2": {"Num": "2", "Name": `"X2"`},
	})
}

func TestTemplateArgDefaultChain(t *testing.T) {
	src := `
class C<int a, int b = !add(a, 1)> { int S = !add(a, b); }
def D : C<10>;`
	checkRecords(t, src, map[string]map[string]string{"D": {"S": "21"}})
}

func TestUnboundTemplateArg(t *testing.T) {
	samples := []string{
		"class A<int n>; def D : A;",
		"class A<int n, string s>; def D : A<1>;",
	}
	checkErrorCode(t, samples, UnboundTemplateArgError)
}

func TestTooManyArgs(t *testing.T) {
	samples := []string{
		"class A<int n>; def D : A<1, 2>;",
		"class A; def D : A<1>;",
	}
	checkErrorCode(t, samples, TooManyArgsError)
}

func TestLetScoping(t *testing.T) {
	src := `
class C { int X; int Y; }
let X = 1 in {
	def A : C;
	let X = 2, Y = 3 in def B : C;
}`
	checkRecords(t, src, map[string]map[string]string{
		"A": {"X": "1", "Y": "?"},
		"B": {"X": "2", "Y": "3"},
	})
}

func TestLetUnknownField(t *testing.T) {
	samples := []string{
		"let Q = 1 in def D;",
		"class C { int X; } let Y = 2 in def D : C;",
	}
	checkErrorCode(t, samples, UnknownFieldError)
}

func TestForeach(t *testing.T) {
	src := `foreach i = [1, 2, 3] in def Rec#i { int N = i; }`
	db, _, e := parse(src)
	if e != nil {
		t.Fatal("unexpected error: " + e.Error())
	}
	if db.Len() != 3 {
		t.Fatalf("expected 3 records, got %d", db.Len())
	}
	for i := 1; i <= 3; i++ {
		n := strconv.Itoa(i)
		e = checkFields(db, "Rec"+n, map[string]string{"N": n})
		if e != nil {
			t.Error(e.Error())
		}
	}
}

func TestNestedForeach(t *testing.T) {
	src := `
class C<int a, int b> { int P = !mul(a, b); }
foreach i = [1, 2] in
	foreach j = [3, 4] in
		def D#i#j : C<i, j>;`
	db, _, e := parse(src)
	if e != nil {
		t.Fatal("unexpected error: " + e.Error())
	}

	names := make([]string, 0, 4)
	for _, rec := range db.All() {
		names = append(names, rec.Name)
	}
	want := []string{"D13", "D14", "D23", "D24"}
	if len(names) != len(want) {
		t.Fatalf("expected %v, got %v", want, names)
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("expected %v, got %v", want, names)
		}
	}
	e = checkFields(db, "D23", map[string]string{"P": "6"})
	if e != nil {
		t.Error(e.Error())
	}
}

func TestForeachOverStrings(t *testing.T) {
	src := `
foreach s = ["a", "b"] in def pre_#s { string V = s; }`
	checkRecords(t, src, map[string]map[string]string{
		"pre_a": {"V": `"a"`},
		"pre_b": {"V": `"b"`},
	})
}

func TestForeachNotAList(t *testing.T) {
	samples := []string{
		"foreach i = 5 in def D;",
		`foreach i = "abc" in def D;`,
	}
	checkErrorCode(t, samples, NotAListError)
}

func TestMultiClass(t *testing.T) {
	src := `
multiclass M<int base> {
	def _lo { int V = base; }
	def _hi { int V = !add(base, 1); }
}
defm N : M<10>;`
	checkRecords(t, src, map[string]map[string]string{
		"N_lo": {"V": "10"},
		"N_hi": {"V": "11"},
	})
}

func TestMultiClassForeachRoundTrip(t *testing.T) {
	src := `
multiclass M<int base> {
	def _lo { int V = base; }
	def _hi { int V = !add(base, 1); }
}
foreach p = [10, 20] in defm N#p : M<p>;`
	checkRecords(t, src, map[string]map[string]string{
		"N10_lo": {"V": "10"},
		"N10_hi": {"V": "11"},
		"N20_lo": {"V": "20"},
		"N20_hi": {"V": "21"},
	})
}

func TestDefmTrailingClass(t *testing.T) {
	src := `
class Extra<int e = 7> { int E = e; }
multiclass M { def _a { int V = 1; } }
defm X : M, Extra;`
	checkRecords(t, src, map[string]map[string]string{
		"X_a": {"V": "1", "E": "7"},
	})
}

func TestMultiClassInheritance(t *testing.T) {
	src := `
multiclass Base<int n> {
	def _b { int V = n; }
}
multiclass Derived<int n> : Base<n> {
	def _d { int W = !mul(n, 2); }
}
defm P : Derived<3>;`
	checkRecords(t, src, map[string]map[string]string{
		"P_b": {"V": "3"},
		"P_d": {"W": "6"},
	})
}

func TestDefmInsideMultiClass(t *testing.T) {
	src := `
multiclass Inner { def _i { int V = 1; } }
multiclass Outer {
	def _o { int V = 2; }
	defm _n : Inner;
}
defm T : Outer;`
	checkRecords(t, src, map[string]map[string]string{
		"T_o":   {"V": "2"},
		"T_n_i": {"V": "1"},
	})
}

func TestForeachInsideMultiClass(t *testing.T) {
	src := `
multiclass M {
	foreach i = [1, 2] in def _v#i { int V = i; }
}
defm F : M;`
	checkRecords(t, src, map[string]map[string]string{
		"F_v1": {"V": "1"},
		"F_v2": {"V": "2"},
	})
}

func TestLetAroundDefm(t *testing.T) {
	src := `
multiclass M { def _a { int V = 1; } }
let V = 9 in defm L : M;`
	checkRecords(t, src, map[string]map[string]string{
		"L_a": {"V": "9"},
	})
}

func TestAnonymousDefs(t *testing.T) {
	src := `
def { int X = 1; }
def { int X = 2; }`
	db, _, e := parse(src)
	if e != nil {
		t.Fatal("unexpected error: " + e.Error())
	}
	recs := db.All()
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	for _, rec := range recs {
		if !rec.Anonymous {
			t.Fatal(rec.Name + ": expected an anonymous record")
		}
	}
	if recs[0].Name == recs[1].Name {
		t.Fatal("anonymous names must be unique")
	}
}

func TestAnonymousValueInstance(t *testing.T) {
	src := `
class C<int n> { int V = n; }
def U { C ref = C<9>; }`
	db, _, e := parse(src)
	if e != nil {
		t.Fatal("unexpected error: " + e.Error())
	}
	if db.Len() != 2 {
		t.Fatalf("expected 2 records, got %d", db.Len())
	}

	u := db.Get("U")
	if u == nil {
		t.Fatal("no record U")
	}
	anon := db.Pool().Text(u.Field("ref").Value)
	e = checkFields(db, anon, map[string]string{"V": "9"})
	if e != nil {
		t.Error(e.Error())
	}
	if !db.Get(anon).Anonymous {
		t.Error("expected an anonymous record")
	}
}

func TestBitAssignment(t *testing.T) {
	src := `
def B {
	bits<4> F;
	let F{3-2} = 2;
	let F{1-0} = 1;
	bits<4> G;
	let G{0} = 1;
}`
	checkRecords(t, src, map[string]map[string]string{
		"B": {"F": "{ 1, 0, 0, 1 }", "G": "{ ?, ?, ?, 1 }"},
	})
}

func TestBitSelection(t *testing.T) {
	src := `
def S {
	bits<4> F = 0b1010;
	bits<2> Hi = F{3-2};
	bit Lsb = F{0};
}`
	checkRecords(t, src, map[string]map[string]string{
		"S": {"Hi": "{ 1, 0 }", "Lsb": "0"},
	})
}

func TestOverlappingBits(t *testing.T) {
	samples := []string{
		"def D { bits<4> F; let F{2} = 1; let F{2} = 0; }",
		"def D { bits<4> F; let F{3-1} = 1; let F{1} = 0; }",
	}
	checkErrorCode(t, samples, OverlappingBitsError)
}

func TestWidthViolation(t *testing.T) {
	samples := []string{
		"def D { bits<4> F; let F{4} = 1; }",
		"def D { bits<2> F; let F{3-0} = 1; }",
	}
	checkErrorCode(t, samples, WidthError)
}

func TestTypeMismatch(t *testing.T) {
	samples := []string{
		`def D { int X = "s"; }`,
		"def D { bits<2> F = 7; }",
		"def D { list<int> L = [1, \"s\"]; }",
		"class A<string s>; def D : A<[1]>;",
	}
	checkErrorCode(t, samples, TypeMismatchError)
}

func TestUnresolvedIdentifier(t *testing.T) {
	samples := []string{
		"def D { int X = Y; }",
		"def D : Missing;",
		"defm X : Missing;",
		"let X = boo in def D;",
	}
	checkErrorCode(t, samples, UnresolvedError)
}

func TestDuplicates(t *testing.T) {
	checkErrorCode(t, []string{"def D; def D;", "foreach i = [1, 1] in def R#i;"}, record.DuplicateRecordError)
	checkErrorCode(t, []string{"class C; class C;"}, DuplicateClassError)
	checkErrorCode(t, []string{"multiclass M { def _a; } multiclass M { def _b; }"}, DuplicateMultiClassError)
	checkErrorCode(t, []string{"def D { int X; int X; }"}, DuplicateFieldError)
	checkErrorCode(t, []string{"class C<int n, int n>;"}, DuplicateTemplateArgError)
}

func TestInheritedRedeclaration(t *testing.T) {
	src := `
class A { bits<8> F = 3; }
def D : A { bits<4> F; }`
	checkRecords(t, src, map[string]map[string]string{
		"D": {"F": "{ 0, 0, 1, 1 }"},
	})

	samples := []string{
		"class A { bits<4> F; } def D : A { bits<8> F; }",
		"class A { int X; } def D : A { string X; }",
		"class A { bit X; } def D : A { int X; }",
		"class A { bit X; } def D : A { bits<2> X; }",
	}
	checkErrorCode(t, samples, TypeMismatchError)
}

func TestTemplateArgConversion(t *testing.T) {
	src := `
class Register<int n> {
	bits<4> Num;
	let Num = n;
}
def R3 : Register<3>;
def S {
	int Y = 3;
	bits<4> X = Y;
}`
	checkRecords(t, src, map[string]map[string]string{
		"R3": {"Num": "{ 0, 0, 1, 1 }"},
		"S":  {"X": "{ 0, 0, 1, 1 }"},
	})
}

func TestBitRangeFromTemplateArg(t *testing.T) {
	src := `
class Inst<bits<4> op> {
	bits<8> Encoding;
	let Encoding{7-4} = op;
}
def I5 : Inst<0b0101>;
def I6 : Inst<6> {
	let Encoding{3-0} = 0b1001;
}`
	checkRecords(t, src, map[string]map[string]string{
		"I5": {"Encoding": "{ 0, 1, 0, 1, ?, ?, ?, ? }"},
		"I6": {"Encoding": "{ 0, 1, 1, 0, 1, 0, 0, 1 }"},
	})
}

func TestSelfReference(t *testing.T) {
	src := `
def S {
	int Y = 5;
	int X = Y;
	int Z = !add(X, 1);
}`
	checkRecords(t, src, map[string]map[string]string{
		"S": {"X": "5", "Z": "6"},
	})
}

func TestFieldTag(t *testing.T) {
	src := `def F { field int X = 1; int Y = 2; }`
	db, _, e := parse(src)
	if e != nil {
		t.Fatal("unexpected error: " + e.Error())
	}
	rec := db.Get("F")
	if !rec.Field("X").Tagged {
		t.Error("expected X to be tagged")
	}
	if rec.Field("Y").Tagged {
		t.Error("expected Y not to be tagged")
	}
}

func TestFieldAccess(t *testing.T) {
	src := `
class C { int V = 4; }
def Base : C;
def User {
	int W = Base.V;
}`
	checkRecords(t, src, map[string]map[string]string{
		"User": {"W": "4"},
	})
}

func TestBangOperators(t *testing.T) {
	src := `
def O {
	int A = !add(1, 2, 3);
	int M = !mul(2, !shl(1, 3));
	list<int> L = !listconcat([1], [2, 3]);
	int H = !head(L);
	list<int> T = !tail(L);
	bit E = !empty([]<int>);
	int Z = !size(L);
	string S = !if(!eq("a", "a"), "y", "n");
}`
	checkRecords(t, src, map[string]map[string]string{
		"O": {
			"A": "6",
			"M": "16",
			"L": "[1, 2, 3]",
			"H": "1",
			"T": "[2, 3]",
			"E": "1",
			"Z": "3",
			"S": `"y"`,
		},
	})
}

func TestCast(t *testing.T) {
	src := `
class K { int V = 2; }
def T1 : K;
def C {
	K r = !cast<K>("T" # 1);
	int V = r.V;
}`
	checkRecords(t, src, map[string]map[string]string{
		"C": {"r": "T1", "V": "2"},
	})
}

func TestComments(t *testing.T) {
	src := `
// line comment
def D { /* block
comment */ int X = 1; // trailing
}`
	checkRecords(t, src, map[string]map[string]string{"D": {"X": "1"}})
}

func TestResynchronization(t *testing.T) {
	src := `
def A : Missing;
class;
def Good { int X = 1; }`
	db, p, e := parse(src)
	if e == nil {
		t.Fatal("error expected, got success")
	}
	pe, is := e.(*err.Error)
	if !is || pe.Code != UnresolvedError {
		t.Fatalf("expected the first error, got %s", e.Error())
	}
	if p.Diagnostics() != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", p.Diagnostics())
	}
	if checkFields(db, "Good", map[string]string{"X": "1"}) != nil {
		t.Fatal("expected parsing to resume after errors")
	}
}

func TestInclude(t *testing.T) {
	files := map[string]string{
		"defs.rdl": "class Ext { int V = 1; }",
	}
	db := record.NewDatabase()
	p := New(db)
	p.SetFileReader(func(name string) ([]byte, error) {
		content, has := files[name]
		if !has {
			return nil, errors.New("no such file")
		}
		return []byte(content), nil
	})

	e := p.Parse(source.New("main.rdl", []byte("include \"defs.rdl\"\ndef D : Ext;")))
	if e != nil {
		t.Fatal("unexpected error: " + e.Error())
	}
	if checkFields(db, "D", map[string]string{"V": "1"}) != nil {
		t.Fatal("expected the included class to be visible")
	}
	deps := p.Dependencies()
	if len(deps) != 1 || deps[0] != "defs.rdl" {
		t.Fatalf("expected [defs.rdl], got %v", deps)
	}
}

func TestIncludeMissing(t *testing.T) {
	db := record.NewDatabase()
	p := New(db)
	p.SetFileReader(func(name string) ([]byte, error) {
		return nil, errors.New("no such file")
	})
	e := p.Parse(source.New("main.rdl", []byte("include \"nope.rdl\"")))
	pe, is := e.(*err.Error)
	if !is || pe.Code != IncludeError {
		t.Fatal("expected an include error")
	}
}

func TestErrorPosition(t *testing.T) {
	_, _, e := parse("def D {\n\tint X = Y;\n}")
	pe, is := e.(*err.Error)
	if !is {
		t.Fatal("coded error expected")
	}
	if pe.SourceName != "test" || pe.Line != 2 {
		t.Fatalf("expected test:2, got %s:%d", pe.SourceName, pe.Line)
	}
}

func TestUnexpectedEof(t *testing.T) {
	samples := []string{
		"def",
		"class C {",
		"def D { int X = ",
		"let X = 1",
	}
	checkErrorCode(t, samples, UnexpectedEofError)
}

func TestExampleFile(t *testing.T) {
	data, e := os.ReadFile("../examples/insts.rdl")
	if e != nil {
		t.Fatal(e.Error())
	}
	db, _, e := parse(string(data))
	if e != nil {
		t.Fatal(e.Error())
	}

	if db.Len() != 16 {
		t.Fatalf("expected 16 records, got %d", db.Len())
	}

	e = checkFields(db, "R3", map[string]string{
		"Num":     "{ 0, 0, 1, 1 }",
		"AsmName": `"r3"`,
	})
	if e == nil {
		e = checkFields(db, "ADD", map[string]string{
			"Mnemonic":   `"add"`,
			"Commutable": "1",
			"Operands":   "(ops Dst:$dst, Src:$src)",
		})
	}
	if e == nil {
		e = checkFields(db, "SUB_imm", map[string]string{
			"Mnemonic":   `"subi"`,
			"Commutable": "0",
		})
	}
	if e == nil {
		e = checkFields(db, "NOP", map[string]string{
			"Encoding": "{ 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0 }",
		})
	}
	if e != nil {
		t.Fatal(e.Error())
	}

	if !db.Get("ADD").Inherits("Inst") || !db.Get("ADD").Inherits("BinOp") {
		t.Fatal("ADD must list both bases")
	}
}
