// Package main provides the entry point for the confluence CLI.
package main

import (
	"os"

	"github.com/TomaszPitak/confluence/cmd/confluence/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
