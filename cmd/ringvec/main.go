// Package main is the entry point for the ringvec CLI.
//
// Usage:
//
//	ringvec [flags] <command> [args]
//
// Commands:
//
//	stream    - Ingest stdin line by line, optionally serving HTTP and raising alerts
//	bench     - Measure insert and search throughput on synthetic vectors
//	gen-logs  - Write synthetic log lines to stdout
//	version   - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/hupe1980/ringvec/cmd/ringvec/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
