// Package source defines source file contents and the source queue used by lexer.
// The queue allows nesting included files: prepending a source suspends the
// current one until the included source is exhausted.
package source

import (
	"bytes"
	"unicode/utf8"
)

type Source struct {
	name       string
	content    []byte
	lineStarts []int
}

func New(name string, content []byte) *Source {
	s := &Source{name: name, content: content}
	lineCnt := bytes.Count(content, []byte("\n")) + 1
	s.lineStarts = make([]int, 1, lineCnt)
	for i, c := range content {
		if c == '\n' {
			s.lineStarts = append(s.lineStarts, i+1)
		}
	}
	return s
}

func (s *Source) Name() string {
	return s.name
}

func (s *Source) Content() []byte {
	return s.content
}

func (s *Source) Len() int {
	return len(s.content)
}

// LineCol converts a byte offset to 1-based line and column numbers.
// Column counts runes, not bytes.
func (s *Source) LineCol(pos int) (line, col int) {
	if pos < 0 {
		pos = 0
	} else if pos > len(s.content) {
		pos = len(s.content)
	}

	left, right := 0, len(s.lineStarts)-1
	for left < right {
		middle := (left + right + 1) >> 1
		if s.lineStarts[middle] <= pos {
			left = middle
		} else {
			right = middle - 1
		}
	}

	lineStart := s.lineStarts[left]
	return left + 1, utf8.RuneCount(s.content[lineStart:pos]) + 1
}

// Pos is a resolved position in a source, used for error reporting.
type Pos struct {
	src            *Source
	pos, line, col int
}

func NewPos(src *Source, pos int) Pos {
	res := Pos{src: src, pos: pos}
	if src != nil {
		res.line, res.col = src.LineCol(pos)
	}
	return res
}

func (p Pos) Source() *Source {
	return p.src
}

func (p Pos) SourceName() string {
	if p.src == nil {
		return ""
	}
	return p.src.Name()
}

func (p Pos) Pos() int {
	return p.pos
}

func (p Pos) Line() int {
	return p.line
}

func (p Pos) Col() int {
	return p.col
}

type queueItem struct {
	source *Source
	pos    int
}

// Queue holds the source currently being read plus any suspended and pending
// sources. Prepend pushes an included file on top of the current one,
// Append adds a source to be read after all current ones are exhausted.
type Queue struct {
	current *Source
	pos     int
	stack   []queueItem // suspended by Prepend, innermost last
	pending []queueItem // waiting Appends, first is next
}

func NewQueue() *Queue {
	return &Queue{}
}

func (q *Queue) Source() *Source {
	return q.current
}

func (q *Queue) Pos() int {
	return q.pos
}

func (q *Queue) SourcePos() Pos {
	return NewPos(q.current, q.pos)
}

func (q *Queue) Append(s *Source) *Queue {
	if q.current == nil {
		q.current = s
	} else {
		q.pending = append(q.pending, queueItem{s, 0})
	}
	return q
}

// Prepend suspends the current source and makes s current.
func (q *Queue) Prepend(s *Source) *Queue {
	if q.current != nil {
		q.stack = append(q.stack, queueItem{q.current, q.pos})
	}
	q.current = s
	q.pos = 0
	return q
}

// IsEmpty reports whether there is nothing left to read in any queued source.
func (q *Queue) IsEmpty() bool {
	if q.current != nil && q.pos < q.current.Len() {
		return false
	}
	for _, it := range q.stack {
		if it.pos < it.source.Len() {
			return false
		}
	}
	for _, it := range q.pending {
		if it.pos < it.source.Len() {
			return false
		}
	}
	return true
}

// ContentPos returns the content of the current source and the position in it.
func (q *Queue) ContentPos() ([]byte, int) {
	if q.current == nil {
		return nil, 0
	}
	return q.current.Content(), q.pos
}

// NextSource discards the current source and resumes the innermost suspended
// source, or switches to the next pending one. Returns false if no sources remain.
func (q *Queue) NextSource() bool {
	if len(q.stack) > 0 {
		last := len(q.stack) - 1
		q.current = q.stack[last].source
		q.pos = q.stack[last].pos
		q.stack = q.stack[:last]
		return true
	}
	if len(q.pending) > 0 {
		q.current = q.pending[0].source
		q.pos = q.pending[0].pos
		q.pending = q.pending[1:]
		return true
	}
	q.current = nil
	q.pos = 0
	return false
}

func (q *Queue) Skip(size int) {
	if q.current == nil || size <= 0 {
		return
	}
	q.pos += size
	if q.pos > q.current.Len() {
		q.pos = q.current.Len()
	}
}

func (q *Queue) LineCol(pos int) (line, col int) {
	if q.current == nil {
		return 0, 0
	}
	return q.current.LineCol(pos)
}
