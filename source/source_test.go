package source

import (
	"testing"
)

func TestLineCol(t *testing.T) {
	s := New("test", []byte("one\ntwo²\nthree"))
	samples := []struct {
		pos, line, col int
	}{
		{0, 1, 1},
		{3, 1, 4},
		{4, 2, 1},
		{7, 2, 4},
		{9, 2, 5}, // ² is two bytes, one column
		{10, 3, 1},
		{15, 3, 6},
		{-5, 1, 1},
		{100, 3, 6},
	}
	for i, sm := range samples {
		line, col := s.LineCol(sm.pos)
		if line != sm.line || col != sm.col {
			t.Errorf("sample #%d: expected %d:%d, got %d:%d", i, sm.line, sm.col, line, col)
		}
	}
}

func TestEmptySource(t *testing.T) {
	s := New("test", nil)
	line, col := s.LineCol(0)
	if line != 1 || col != 1 {
		t.Fatalf("got %d:%d", line, col)
	}
}

func TestQueueAppend(t *testing.T) {
	q := NewQueue()
	if !q.IsEmpty() {
		t.Fatal("new queue must be empty")
	}

	q.Append(New("a", []byte("aa"))).Append(New("b", []byte("bb")))
	if q.Source().Name() != "a" {
		t.Fatal("first appended source must become current")
	}
	if q.IsEmpty() {
		t.Fatal("queue has content")
	}

	q.Skip(2)
	if !q.NextSource() || q.Source().Name() != "b" {
		t.Fatal("expected source b")
	}
	if q.NextSource() {
		t.Fatal("no more sources expected")
	}
	if !q.IsEmpty() {
		t.Fatal("drained queue must be empty")
	}
}

func TestQueuePrepend(t *testing.T) {
	q := NewQueue()
	q.Append(New("outer", []byte("outer")))
	q.Skip(3)
	q.Prepend(New("inner", []byte("in")))

	if q.Source().Name() != "inner" || q.Pos() != 0 {
		t.Fatal("prepended source must become current at position 0")
	}

	q.Skip(2)
	if !q.NextSource() {
		t.Fatal("outer source must resume")
	}
	if q.Source().Name() != "outer" || q.Pos() != 3 {
		t.Fatalf("outer source must resume at saved position, got %s:%d", q.Source().Name(), q.Pos())
	}
}

func TestQueueSkipClamps(t *testing.T) {
	q := NewQueue()
	q.Append(New("a", []byte("abc")))
	q.Skip(100)
	if q.Pos() != 3 {
		t.Fatalf("got %d", q.Pos())
	}
	q.Skip(-1)
	if q.Pos() != 3 {
		t.Fatal("negative skip must be ignored")
	}
}

func TestSourcePos(t *testing.T) {
	q := NewQueue()
	q.Append(New("a", []byte("x\ny")))
	q.Skip(2)
	p := q.SourcePos()
	if p.SourceName() != "a" || p.Line() != 2 || p.Col() != 1 || p.Pos() != 2 {
		t.Fatalf("got %s %d:%d at %d", p.SourceName(), p.Line(), p.Col(), p.Pos())
	}
}
