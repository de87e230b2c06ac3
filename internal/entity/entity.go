// Package entity defines code entities and extracts them from parse trees.
package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Kind classifies a code entity.
type Kind string

const (
	KindFunction Kind = "function"
	KindClass    Kind = "class"
	KindMethod   Kind = "method"
	KindImport   Kind = "import"
	KindOther    Kind = "other"
)

// Entity is a named, located code construct extracted from a parsed file.
type Entity struct {
	// Kind is the entity classification (function, class, method, import).
	Kind Kind

	// Name is the declared name, or a synthesized "<kind>_<start_line>"
	// for anonymous constructs.
	Name string

	// StartLine and EndLine are 1-indexed, inclusive.
	StartLine int
	EndLine   int

	// Parameters is the declared parameter list, one entry per parameter.
	Parameters []string

	// ReturnType is the declared return-type annotation, when the
	// language has one. Empty otherwise.
	ReturnType string

	// Signature is the declaration line without the body.
	Signature string

	// Content is the searchable content blob submitted to the index.
	Content string
}

// maxContentBytes caps the searchable blob per entity to keep index
// records bounded.
const maxContentBytes = 4096

// objectIDLen is the hex length of an external-index object identifier.
const objectIDLen = 24

// ObjectID derives the external-index identifier for an entity.
// It is a pure function of (repository id, file path, kind, name, start
// line), so the same logical entity always maps to the same index record
// and retraction can recompute identifiers without any stored side-table.
func ObjectID(repositoryID int64, path string, kind Kind, name string, startLine int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d|%s|%s|%s|%d", repositoryID, path, kind, name, startLine)))
	return hex.EncodeToString(sum[:])[:objectIDLen]
}

// SynthesizedName returns the fallback name for anonymous constructs.
func SynthesizedName(kind Kind, startLine int) string {
	return fmt.Sprintf("%s_%d", kind, startLine)
}
