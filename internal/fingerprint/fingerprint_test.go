package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf_Deterministic(t *testing.T) {
	content := []byte("package main\n\nfunc main() {}\n")
	assert.Equal(t, Of(content), Of(content))
}

func TestOf_ContentSensitive(t *testing.T) {
	assert.NotEqual(t, Of([]byte("a")), Of([]byte("b")))
}

func TestOf_IndependentOfPath(t *testing.T) {
	// Identical content under different paths (a rename) must produce the
	// same fingerprint; only the content participates in the hash.
	content := []byte("def handler(): pass\n")
	assert.Equal(t, Of(content), Of(append([]byte{}, content...)))
}

func TestMatches(t *testing.T) {
	content := []byte("class Foo:\n    pass\n")
	fp := Of(content)

	assert.True(t, Matches(content, fp))
	assert.False(t, Matches([]byte("changed"), fp))
	assert.False(t, Matches(content, ""), "empty recorded fingerprint never matches")
}
