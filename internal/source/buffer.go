// Package source implements the compile job's source buffer: filename plus
// byte content plus line/column tracking, generalized from the line counter
// embedded directly in the teacher's lexer (lang/ylex/lexer.go's Lexer.line
// field, bumped by advance() on every '\n').
package source

import "github.com/gmofishsauce/occ/internal/diag"

// Buffer holds one translation unit's source text and answers byte-offset
// to (line, column) queries, which the lexer, preprocessor and parser all
// need to attach a diag.Loc to every token, node and diagnostic.
type Buffer struct {
	Filename string
	Text     []byte

	// lineStarts[i] is the byte offset of the first byte of line i+1
	// (1-based lines, like spec.md §3). Computed lazily on first use.
	lineStarts []int
}

// New wraps raw bytes as a named source Buffer. Reading the bytes from disk
// is the driver's job (file I/O is out of scope per spec.md §1); this
// constructor only ever receives already-read content.
func New(filename string, text []byte) *Buffer {
	return &Buffer{Filename: filename, Text: text}
}

func (b *Buffer) ensureLineStarts() {
	if b.lineStarts != nil {
		return
	}
	starts := make([]int, 1, 64)
	starts[0] = 0
	for i, c := range b.Text {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	b.lineStarts = starts
}

// LocAt converts a byte offset into the source into a diag.Loc.
func (b *Buffer) LocAt(offset int) diag.Loc {
	b.ensureLineStarts()
	// binary search for the last lineStart <= offset
	lo, hi := 0, len(b.lineStarts)-1
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if b.lineStarts[mid] <= offset {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	line := lo + 1
	col := offset - b.lineStarts[lo] + 1
	return diag.Loc{File: b.Filename, Line: line, Column: col}
}

// Len returns the number of bytes in the buffer.
func (b *Buffer) Len() int { return len(b.Text) }
