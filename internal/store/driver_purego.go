//go:build !cgo || purego
// +build !cgo purego

package store

// Compiled without CGO (or with the purego tag). Uses the pure Go SQLite
// implementation so cross-compilation needs no C toolchain.
//
// Build: CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver to open.
const DriverName = "sqlite"

// BuildMode describes the active driver configuration.
const BuildMode = "purego"
