//go:build cgo && !purego
// +build cgo,!purego

package store

// Compiled when CGO is available. Uses the C SQLite driver, which is the
// faster option for large repositories.
//
// Build: CGO_ENABLED=1 go build ./...

import (
	_ "github.com/mattn/go-sqlite3"
)

// DriverName is the database/sql driver to open.
const DriverName = "sqlite3"

// BuildMode describes the active driver configuration.
const BuildMode = "cgo"
