// Package main provides the entry point for the sihmcp CLI.
package main

import (
	"os"

	"github.com/manual-sih/sihmcp/cmd/sihmcp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
