// Package main provides the entry point for the codescout CLI.
package main

import (
	"os"

	"github.com/codescout-dev/codescout/cmd/codescout/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
