// Package lang wraps per-language tree-sitter grammars behind a fixed
// registry keyed by file extension. Dispatch is a closed table over the
// supported languages; files outside the table are reported as unsupported,
// never guessed at via reflection.
package lang

import (
	"path/filepath"
	"strings"
	"sync"

	enry "github.com/go-enry/go-enry/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// Config describes how entities are recognized in one language's parse
// trees. The node-type lists come from the language's tree-sitter grammar.
type Config struct {
	Name       string
	Extensions []string

	// Node types that declare free-standing functions.
	FunctionTypes []string

	// Node types that declare methods.
	MethodTypes []string

	// Node types that declare classes (or the closest construct).
	ClassTypes []string

	// Node types that declare imports.
	ImportTypes []string
}

// Registry maps file extensions to language configurations and their
// tree-sitter grammars.
type Registry struct {
	mu          sync.RWMutex
	configs     map[string]*Config
	extToLang   map[string]string
	tsLanguages map[string]*sitter.Language
}

// NewRegistry creates a registry with all supported languages registered.
func NewRegistry() *Registry {
	r := &Registry{
		configs:     make(map[string]*Config),
		extToLang:   make(map[string]string),
		tsLanguages: make(map[string]*sitter.Language),
	}

	r.registerGo()
	r.registerPython()
	r.registerJavaScript()
	r.registerTypeScript()

	return r
}

// ByExtension returns the language configuration for a file extension.
func (r *Registry) ByExtension(ext string) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ext = strings.ToLower(ext)
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	name, ok := r.extToLang[ext]
	if !ok {
		return nil, false
	}
	config, ok := r.configs[name]
	return config, ok
}

// ByName returns the language configuration by language name.
func (r *Registry) ByName(name string) (*Config, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, ok := r.configs[name]
	return config, ok
}

// TreeSitterLanguage returns the grammar for a language name.
func (r *Registry) TreeSitterLanguage(name string) (*sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	l, ok := r.tsLanguages[name]
	return l, ok
}

// Detect returns the language for a file. Supported languages are resolved
// through the extension table; for everything else enry supplies a display
// name (recorded on the file, but not parseable) and supported is false.
func (r *Registry) Detect(path string, content []byte) (language string, supported bool) {
	if cfg, ok := r.ByExtension(filepath.Ext(path)); ok {
		return cfg.Name, true
	}

	if name := enry.GetLanguage(filepath.Base(path), content); name != "" {
		return strings.ToLower(name), false
	}
	return "unknown", false
}

// Register adds a language to the registry. A nil grammar registers the
// language for detection only; parsing it fails until a grammar is
// supplied.
func (r *Registry) Register(config *Config, grammar *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[config.Name] = config
	if grammar != nil {
		r.tsLanguages[config.Name] = grammar
	}
	for _, ext := range config.Extensions {
		r.extToLang[ext] = config.Name
	}
}

func (r *Registry) registerGo() {
	r.Register(&Config{
		Name:          "go",
		Extensions:    []string{".go"},
		FunctionTypes: []string{"function_declaration"},
		MethodTypes:   []string{"method_declaration"},
		ClassTypes:    []string{"type_declaration"},
		ImportTypes:   []string{"import_declaration"},
	}, golang.GetLanguage())
}

func (r *Registry) registerPython() {
	r.Register(&Config{
		Name:          "python",
		Extensions:    []string{".py"},
		FunctionTypes: []string{"function_definition"},
		// Python methods are function_definitions nested in a class body;
		// the extractor reclassifies by nesting.
		MethodTypes: []string{},
		ClassTypes:  []string{"class_definition"},
		ImportTypes: []string{"import_statement", "import_from_statement"},
	}, python.GetLanguage())
}

func (r *Registry) registerJavaScript() {
	jsConfig := &Config{
		Name:          "javascript",
		Extensions:    []string{".js", ".mjs"},
		FunctionTypes: []string{"function_declaration"},
		MethodTypes:   []string{"method_definition"},
		ClassTypes:    []string{"class_declaration"},
		ImportTypes:   []string{"import_statement"},
	}
	r.Register(jsConfig, javascript.GetLanguage())

	// JSX uses the same grammar as JS.
	r.Register(&Config{
		Name:          "jsx",
		Extensions:    []string{".jsx"},
		FunctionTypes: jsConfig.FunctionTypes,
		MethodTypes:   jsConfig.MethodTypes,
		ClassTypes:    jsConfig.ClassTypes,
		ImportTypes:   jsConfig.ImportTypes,
	}, javascript.GetLanguage())
}

func (r *Registry) registerTypeScript() {
	tsConfig := &Config{
		Name:          "typescript",
		Extensions:    []string{".ts"},
		FunctionTypes: []string{"function_declaration"},
		MethodTypes:   []string{"method_definition"},
		ClassTypes:    []string{"class_declaration", "interface_declaration"},
		ImportTypes:   []string{"import_statement"},
	}
	r.Register(tsConfig, typescript.GetLanguage())

	r.Register(&Config{
		Name:          "tsx",
		Extensions:    []string{".tsx"},
		FunctionTypes: tsConfig.FunctionTypes,
		MethodTypes:   tsConfig.MethodTypes,
		ClassTypes:    tsConfig.ClassTypes,
		ImportTypes:   tsConfig.ImportTypes,
	}, tsx.GetLanguage())
}

// defaultRegistry is the process-wide language registry.
var defaultRegistry = NewRegistry()

// DefaultRegistry returns the process-wide language registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}
