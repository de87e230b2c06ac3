// Package fingerprint computes stable content hashes used to skip
// unchanged files across processing runs. The fingerprint depends only on
// file content, so a file moved within a repository keeps its fingerprint.
// It is an optimization, never a correctness dependency: runs can always
// bypass the check with the force mode.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Of returns the hex-encoded SHA-256 fingerprint of content.
func Of(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Matches reports whether content hashes to the previously recorded
// fingerprint. An empty recorded fingerprint never matches, so files seen
// for the first time are always processed.
func Matches(content []byte, recorded string) bool {
	if recorded == "" {
		return false
	}
	return Of(content) == recorded
}
