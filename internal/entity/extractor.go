package entity

import (
	"sort"
	"strings"

	"github.com/codescout-dev/codescout/internal/lang"
)

// Extractor walks parse trees and yields code entities.
//
// Extraction is total: syntax-error subtrees are skipped, anonymous
// constructs get synthesized names, and unknown top-level constructs are
// ignored silently. The result is ordered by start line so repeated runs
// over identical content produce identical sequences.
type Extractor struct {
	registry *lang.Registry
}

// NewExtractor creates an extractor backed by the default language registry.
func NewExtractor() *Extractor {
	return NewExtractorWithRegistry(lang.DefaultRegistry())
}

// NewExtractorWithRegistry creates an extractor with a custom registry.
func NewExtractorWithRegistry(registry *lang.Registry) *Extractor {
	return &Extractor{registry: registry}
}

// Extract returns the entities declared in tree, ordered by start line.
// A nil or empty tree yields an empty slice, never nil.
func (e *Extractor) Extract(tree *lang.Tree) []*Entity {
	entities := []*Entity{}
	if tree == nil || tree.Root == nil {
		return entities
	}

	cfg, ok := e.registry.ByName(tree.Language)
	if !ok {
		return entities
	}

	e.walk(tree.Root, tree.Source, cfg, tree.Language, false, &entities)

	sort.SliceStable(entities, func(i, j int) bool {
		if entities[i].StartLine != entities[j].StartLine {
			return entities[i].StartLine < entities[j].StartLine
		}
		if entities[i].Kind != entities[j].Kind {
			return entities[i].Kind < entities[j].Kind
		}
		return entities[i].Name < entities[j].Name
	})
	return entities
}

// walk descends the tree collecting entities. inClass tracks whether the
// current subtree is a class body, which reclassifies functions as methods
// in languages where the grammar does not distinguish them (Python).
func (e *Extractor) walk(n *lang.Node, source []byte, cfg *lang.Config, language string, inClass bool, out *[]*Entity) {
	// Pure error nodes carry no recoverable structure.
	if n.Type == "ERROR" {
		return
	}

	kind, matched := classify(n, cfg, inClass)
	if !matched {
		for _, child := range n.Children {
			e.walk(child, source, cfg, language, inClass, out)
		}
		return
	}

	if kind == KindImport {
		*out = append(*out, importEntities(n, source, language)...)
		return
	}

	ent := e.buildEntity(n, source, kind, language)
	*out = append(*out, ent)

	// Skip nested detail inside error-bearing declarations; otherwise keep
	// descending so nested declarations (methods, inner functions) surface.
	if n.HasError {
		return
	}
	childInClass := inClass || kind == KindClass
	for _, child := range n.Children {
		e.walk(child, source, cfg, language, childInClass, out)
	}
}

// classify maps a node type onto the entity taxonomy.
func classify(n *lang.Node, cfg *lang.Config, inClass bool) (Kind, bool) {
	for _, t := range cfg.MethodTypes {
		if n.Type == t {
			return KindMethod, true
		}
	}
	for _, t := range cfg.FunctionTypes {
		if n.Type == t {
			if inClass {
				return KindMethod, true
			}
			return KindFunction, true
		}
	}
	for _, t := range cfg.ClassTypes {
		if n.Type == t {
			return KindClass, true
		}
	}
	for _, t := range cfg.ImportTypes {
		if n.Type == t {
			return KindImport, true
		}
	}
	return KindOther, false
}

// buildEntity assembles an Entity from a declaration node.
func (e *Extractor) buildEntity(n *lang.Node, source []byte, kind Kind, language string) *Entity {
	startLine := int(n.StartPoint.Row) + 1
	endLine := int(n.EndPoint.Row) + 1

	name := extractName(n, source, language)
	if name == "" {
		name = SynthesizedName(kind, startLine)
	}

	signature := extractSignature(n, source, language)
	content := n.Content(source)
	if len(content) > maxContentBytes {
		content = content[:maxContentBytes]
	}

	return &Entity{
		Kind:       kind,
		Name:       name,
		StartLine:  startLine,
		EndLine:    endLine,
		Parameters: extractParameters(n, source),
		ReturnType: extractReturnType(signature, language),
		Signature:  signature,
		Content:    content,
	}
}

// nameNodeTypes are the node types that carry declaration names, in
// preference order.
var nameNodeTypes = []string{
	"identifier",
	"type_identifier",
	"field_identifier",
	"property_identifier",
}

// extractName finds the declared name of a declaration node.
func extractName(n *lang.Node, source []byte, language string) string {
	if language == "go" && n.Type == "type_declaration" {
		// Name lives on the nested type_spec.
		if spec := n.FindChildByType("type_spec"); spec != nil {
			if id := spec.FindChildByType("type_identifier"); id != nil {
				return id.Content(source)
			}
		}
		return ""
	}

	for _, nt := range nameNodeTypes {
		if child := n.FindChildByType(nt); child != nil {
			return child.Content(source)
		}
	}
	return ""
}

// parameterNodeTypes are the node types that carry parameter lists.
var parameterNodeTypes = []string{
	"parameter_list",
	"formal_parameters",
	"parameters",
}

// extractParameters returns the declared parameters, one string per
// parameter, or nil when the node has no parameter list.
func extractParameters(n *lang.Node, source []byte) []string {
	var listNode *lang.Node
	for _, nt := range parameterNodeTypes {
		if child := n.FindChildByType(nt); child != nil {
			listNode = child
			break
		}
	}
	if listNode == nil {
		return nil
	}

	// Go methods have two parameter_lists: receiver then parameters.
	// The receiver is a single-entry list directly before the name, so
	// preferring the later list keeps the actual parameters.
	if n.Type == "method_declaration" {
		lists := []*lang.Node{}
		for _, child := range n.Children {
			if child.Type == "parameter_list" {
				lists = append(lists, child)
			}
		}
		if len(lists) > 1 {
			listNode = lists[1]
		}
	}

	raw := strings.TrimSpace(listNode.Content(source))
	raw = strings.TrimPrefix(raw, "(")
	raw = strings.TrimSuffix(raw, ")")
	if raw == "" {
		return nil
	}

	var params []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			params = append(params, p)
		}
	}
	return params
}

// extractSignature returns the declaration line without the body.
func extractSignature(n *lang.Node, source []byte, language string) string {
	content := n.Content(source)
	if content == "" {
		return ""
	}

	firstLine := strings.TrimSpace(strings.SplitN(content, "\n", 2)[0])
	switch language {
	case "python":
		// def name(params) -> T: keeps the trailing colon.
		return firstLine
	default:
		if idx := strings.Index(firstLine, "{"); idx != -1 {
			return strings.TrimSpace(firstLine[:idx])
		}
		return firstLine
	}
}

// extractReturnType pulls the return-type annotation out of a signature.
// Languages without annotations yield empty strings.
func extractReturnType(signature, language string) string {
	switch language {
	case "go":
		idx := strings.LastIndex(signature, ")")
		if idx == -1 || idx+1 >= len(signature) {
			return ""
		}
		return strings.TrimSpace(signature[idx+1:])
	case "python":
		idx := strings.Index(signature, "->")
		if idx == -1 {
			return ""
		}
		ret := signature[idx+2:]
		ret = strings.TrimSuffix(strings.TrimSpace(ret), ":")
		return strings.TrimSpace(ret)
	case "typescript", "tsx":
		idx := strings.LastIndex(signature, "):")
		if idx == -1 || idx+2 >= len(signature) {
			return ""
		}
		return strings.TrimSpace(signature[idx+2:])
	default:
		return ""
	}
}

// importEntities emits one entity per imported module under an import node.
func importEntities(n *lang.Node, source []byte, language string) []*Entity {
	startLine := int(n.StartPoint.Row) + 1
	endLine := int(n.EndPoint.Row) + 1

	names := importedNames(n, source)
	if len(names) == 0 {
		names = []string{SynthesizedName(KindImport, startLine)}
	}

	entities := make([]*Entity, 0, len(names))
	for _, name := range names {
		entities = append(entities, &Entity{
			Kind:      KindImport,
			Name:      name,
			StartLine: startLine,
			EndLine:   endLine,
			Signature: extractSignature(n, source, language),
			Content:   n.Content(source),
		})
	}
	return entities
}

// importNameNodeTypes carry module names inside import statements across
// the supported grammars.
var importNameNodeTypes = map[string]bool{
	"interpreted_string_literal": true, // go
	"string":                     true, // js/ts/python
	"dotted_name":                true, // python
}

// importedNames collects the module names referenced by an import node.
func importedNames(n *lang.Node, source []byte) []string {
	var names []string
	seen := map[string]bool{}
	n.Walk(func(child *lang.Node) bool {
		if !importNameNodeTypes[child.Type] {
			return true
		}
		name := strings.Trim(child.Content(source), `"'`)
		if name != "" && !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return false
	})
	return names
}
