package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/occ/internal/diag"
	"github.com/gmofishsauce/occ/internal/source"
	"github.com/gmofishsauce/occ/internal/token"
)

func lexAll(t *testing.T, src string) ([]token.Token, *diag.Sink) {
	t.Helper()
	sink := diag.NewSink(false)
	buf := source.New("t.c", []byte(src))
	stream := New(buf, sink).Lex()
	return stream.Remaining(), sink
}

func TestLexIdentifiersAndKeywords(t *testing.T) {
	toks, sink := lexAll(t, "int x = foo;")
	require.False(t, sink.HasErrors())

	require.True(t, toks[0].IsKeyword("int"))
	assert.Equal(t, token.Ident, toks[1].Kind)
	assert.Equal(t, "x", toks[1].Text)
	assert.True(t, toks[2].IsPunct("="))
	assert.Equal(t, token.Ident, toks[3].Kind)
	assert.True(t, toks[4].IsPunct(";"))
	assert.Equal(t, token.EOF, toks[len(toks)-1].Kind)
}

func TestLexIntegerLiteralBases(t *testing.T) {
	toks, sink := lexAll(t, "0x1F 010 42 7u")
	require.False(t, sink.HasErrors())

	require.NotNil(t, toks[0].Int)
	assert.Equal(t, uint64(31), toks[0].Int.Value)
	assert.Equal(t, 16, toks[0].Int.Base)

	require.NotNil(t, toks[1].Int)
	assert.Equal(t, uint64(8), toks[1].Int.Value)
	assert.Equal(t, 8, toks[1].Int.Base)

	require.NotNil(t, toks[2].Int)
	assert.Equal(t, uint64(42), toks[2].Int.Value)
	assert.Equal(t, 10, toks[2].Int.Base)

	require.NotNil(t, toks[3].Int)
	assert.Equal(t, "u", toks[3].Int.Suffix)
}

func TestLexFloatLiteral(t *testing.T) {
	toks, sink := lexAll(t, "3.14 2e3 1.5f")
	require.False(t, sink.HasErrors())

	require.NotNil(t, toks[0].Float)
	assert.InDelta(t, 3.14, toks[0].Float.Value, 1e-9)

	require.NotNil(t, toks[1].Float)
	assert.InDelta(t, 2000.0, toks[1].Float.Value, 1e-9)

	require.NotNil(t, toks[2].Float)
	assert.Equal(t, "f", toks[2].Float.Suffix)
}

func TestLexStringAndCharLiterals(t *testing.T) {
	toks, sink := lexAll(t, `"hi\n" 'a' '\t'`)
	require.False(t, sink.HasErrors())

	require.NotNil(t, toks[0].String)
	assert.Equal(t, []byte("hi\n"), toks[0].String.Bytes)

	require.NotNil(t, toks[1].Char)
	assert.Equal(t, int64('a'), toks[1].Char.Value)

	require.NotNil(t, toks[2].Char)
	assert.Equal(t, int64('\t'), toks[2].Char.Value)
}

func TestLexCommentsAreSkipped(t *testing.T) {
	toks, sink := lexAll(t, "int x; // trailing\n/* block */ int y;")
	require.False(t, sink.HasErrors())

	var kinds []token.Kind
	var texts []string
	for _, tk := range toks {
		kinds = append(kinds, tk.Kind)
		if tk.Kind != token.Newline && tk.Kind != token.EOF {
			texts = append(texts, tk.Text)
		}
	}
	assert.Contains(t, kinds, token.Newline)
	assert.Equal(t, []string{"int", "x", ";", "int", "y", ";"}, texts)
}

func TestLexMultiCharOperators(t *testing.T) {
	toks, sink := lexAll(t, "a <<= b; c->d; e <= f;")
	require.False(t, sink.HasErrors())

	var ops []string
	for _, tk := range toks {
		if tk.Kind == token.Operator {
			ops = append(ops, tk.Text)
		}
	}
	assert.Contains(t, ops, "<<=")
	assert.Contains(t, ops, "->")
	assert.Contains(t, ops, "<=")
}

func TestLexUnterminatedStringReportsError(t *testing.T) {
	_, sink := lexAll(t, "\"unterminated")
	assert.True(t, sink.HasErrors())
}

func TestLexLineStartAndSpaceFlags(t *testing.T) {
	toks, sink := lexAll(t, "  #define X\nY")
	require.False(t, sink.HasErrors())
	require.Equal(t, token.Hash, toks[0].Kind)
	assert.True(t, toks[0].AtLineStart)
	assert.True(t, toks[0].SpaceBefore)

	// find "Y" token after the newline
	for _, tk := range toks {
		if tk.Kind == token.Ident && tk.Text == "Y" {
			assert.True(t, tk.AtLineStart)
		}
	}
}
