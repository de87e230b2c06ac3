package lang

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cserr "github.com/codescout-dev/codescout/internal/errors"
)

func TestRegistry_ByExtension(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		ext      string
		wantName string
		wantOK   bool
	}{
		{".go", "go", true},
		{"go", "go", true}, // missing dot is normalized
		{".PY", "python", true},
		{".ts", "typescript", true},
		{".tsx", "tsx", true},
		{".js", "javascript", true},
		{".mjs", "javascript", true},
		{".rb", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		cfg, ok := r.ByExtension(tt.ext)
		assert.Equal(t, tt.wantOK, ok, "ext %q", tt.ext)
		if tt.wantOK {
			assert.Equal(t, tt.wantName, cfg.Name)
		}
	}
}

func TestRegistry_Detect(t *testing.T) {
	r := NewRegistry()

	lang, supported := r.Detect("cmd/main.go", []byte("package main"))
	assert.Equal(t, "go", lang)
	assert.True(t, supported)

	// Known to enry but outside the parser table.
	lang, supported = r.Detect("app.rb", []byte("class App\nend\n"))
	assert.Equal(t, "ruby", lang)
	assert.False(t, supported)
}

func TestParser_ParseGo(t *testing.T) {
	p := NewParser()
	defer p.Close()

	source := []byte(`package main

import "fmt"

func greet(name string) string {
	return fmt.Sprintf("hello %s", name)
}
`)

	tree, err := p.Parse(context.Background(), source, "go")
	require.NoError(t, err)
	require.NotNil(t, tree.Root)
	assert.Equal(t, "source_file", tree.Root.Type)
	assert.NotNil(t, tree.Root.FindChildByType("function_declaration"))
	assert.NotNil(t, tree.Root.FindChildByType("import_declaration"))
}

func TestParser_UnsupportedLanguage(t *testing.T) {
	p := NewParser()
	defer p.Close()

	_, err := p.Parse(context.Background(), []byte("puts 'hi'"), "ruby")
	require.Error(t, err)
	assert.True(t, cserr.Is(err, cserr.ErrUnsupportedLanguage))
}

func TestRegistry_RegisterWithoutGrammar(t *testing.T) {
	// A detection-only registration claims the extension but cannot parse.
	r := NewRegistry()
	r.Register(&Config{Name: "ruby", Extensions: []string{".rb"}}, nil)

	name, supported := r.Detect("app.rb", []byte("class App\nend\n"))
	assert.Equal(t, "ruby", name)
	assert.True(t, supported)

	p := NewParserWithRegistry(r)
	defer p.Close()
	_, err := p.Parse(context.Background(), []byte("puts 'hi'"), "ruby")
	require.Error(t, err)
	assert.True(t, cserr.Is(err, cserr.ErrUnsupportedLanguage))
}

func TestParser_PartialTreeOnSyntaxError(t *testing.T) {
	p := NewParser()
	defer p.Close()

	// The second function is malformed; the first must still be reachable.
	source := []byte(`package main

func ok() {}

func broken( {
`)

	tree, err := p.Parse(context.Background(), source, "go")
	require.NoError(t, err, "malformed-but-parseable content must not fail")

	var functions int
	tree.Root.Walk(func(n *Node) bool {
		if n.Type == "function_declaration" {
			functions++
		}
		return true
	})
	assert.GreaterOrEqual(t, functions, 1)
}

func TestNode_Content(t *testing.T) {
	source := []byte("package main")
	n := &Node{StartByte: 0, EndByte: 7}
	assert.Equal(t, "package", n.Content(source))

	// Out-of-range nodes return empty, not panic.
	bad := &Node{StartByte: 5, EndByte: 100}
	assert.Equal(t, "", bad.Content(source))
}
