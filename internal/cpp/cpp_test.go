package cpp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmofishsauce/occ/internal/diag"
	"github.com/gmofishsauce/occ/internal/features"
	"github.com/gmofishsauce/occ/internal/lexer"
	"github.com/gmofishsauce/occ/internal/source"
	"github.com/gmofishsauce/occ/internal/token"
)

type fakeProvider struct {
	files map[string][]byte
}

func (f *fakeProvider) Resolve(name, fromDir string, local bool) (string, []byte, bool) {
	text, ok := f.files[name]
	return name, text, ok
}

func (f *fakeProvider) Dir(path string) string { return "" }

func lexStr(t *testing.T, filename, src string) (*token.Stream, *diag.Sink) {
	t.Helper()
	sink := diag.NewSink(false)
	buf := source.New(filename, []byte(src))
	return lexer.New(buf, sink).Lex(), sink
}

func runPreprocessor(t *testing.T, src string, provider FileProvider) ([]token.Token, *diag.Sink) {
	t.Helper()
	toks, sink := lexStr(t, "t.c", src)
	feat := features.NewContext(features.C99)
	lexFunc := func(path string, text []byte, s *diag.Sink) *token.Stream {
		buf := source.New(path, text)
		return lexer.New(buf, s).Lex()
	}
	pp := New("t.c", toks, sink, feat, provider, lexFunc)
	out := pp.Run()
	return out.Remaining(), sink
}

func TestObjectLikeMacroExpansion(t *testing.T) {
	out, sink := runPreprocessor(t, "#define FOO 1\nint x = FOO;", &fakeProvider{})
	require.False(t, sink.HasErrors())

	var text []string
	for _, tk := range out {
		if tk.Kind != token.EOF {
			text = append(text, tk.Text)
		}
	}
	assert.Equal(t, []string{"int", "x", "=", "1", ";"}, text)
}

func TestFunctionLikeMacroExpansion(t *testing.T) {
	out, sink := runPreprocessor(t, "#define SQR(n) ((n)*(n))\nint y = SQR(3+1);", &fakeProvider{})
	require.False(t, sink.HasErrors())

	var text []string
	for _, tk := range out {
		if tk.Kind != token.EOF {
			text = append(text, tk.Text)
		}
	}
	assert.Equal(t, []string{
		"int", "y", "=", "(", "(", "3", "+", "1", ")", "*", "(", "3", "+", "1", ")", ")", ";",
	}, text)
}

func TestMacroReentryGuard(t *testing.T) {
	out, sink := runPreprocessor(t, "#define A A B\nA", &fakeProvider{})
	require.False(t, sink.HasErrors())

	var text []string
	for _, tk := range out {
		if tk.Kind != token.EOF {
			text = append(text, tk.Text)
		}
	}
	assert.Equal(t, []string{"A", "B"}, text)
}

func TestConditionalCompilationSkipsFalseBranch(t *testing.T) {
	out, sink := runPreprocessor(t, "#if 0\nint skipped;\n#else\nint kept;\n#endif\n", &fakeProvider{})
	require.False(t, sink.HasErrors())

	var text []string
	for _, tk := range out {
		if tk.Kind != token.EOF {
			text = append(text, tk.Text)
		}
	}
	assert.Equal(t, []string{"int", "kept", ";"}, text)
}

func TestIfdefAndDefined(t *testing.T) {
	out, sink := runPreprocessor(t, "#define X\n#ifdef X\nint a;\n#endif\n#if defined(X)\nint yes;\n#endif\n", &fakeProvider{})
	require.False(t, sink.HasErrors())

	var text []string
	for _, tk := range out {
		if tk.Kind != token.EOF {
			text = append(text, tk.Text)
		}
	}
	assert.Equal(t, []string{"int", "a", ";", "int", "yes", ";"}, text)
}

func TestIncludeResolution(t *testing.T) {
	provider := &fakeProvider{files: map[string][]byte{
		"h.h": []byte("int included;\n"),
	}}
	out, sink := runPreprocessor(t, "#include \"h.h\"\nint main;", provider)
	require.False(t, sink.HasErrors())

	var text []string
	for _, tk := range out {
		if tk.Kind != token.EOF {
			text = append(text, tk.Text)
		}
	}
	assert.Equal(t, []string{"int", "included", ";", "int", "main", ";"}, text)
}

func TestIncludeNotFoundReportsError(t *testing.T) {
	_, sink := runPreprocessor(t, "#include \"missing.h\"\n", &fakeProvider{})
	assert.True(t, sink.HasErrors())
}

func TestUnterminatedConditionalReportsError(t *testing.T) {
	_, sink := runPreprocessor(t, "#if 1\nint x;\n", &fakeProvider{})
	assert.True(t, sink.HasErrors())
}

func TestDivisionByZeroInConstExprReportsError(t *testing.T) {
	_, sink := runPreprocessor(t, "#if 1/0\n#endif\n", &fakeProvider{})
	assert.True(t, sink.HasErrors())
}

func TestStringizeAndPaste(t *testing.T) {
	out, sink := runPreprocessor(t, "#define STR(x) #x\n#define CAT(a,b) a##b\nSTR(hi) CAT(fo,o)", &fakeProvider{})
	require.False(t, sink.HasErrors())

	var text []string
	for _, tk := range out {
		if tk.Kind != token.EOF {
			text = append(text, tk.Text)
		}
	}
	assert.Contains(t, text, "\"hi\"")
	assert.Contains(t, text, "foo")
}
