// Package main is the entry point for the openjd CLI.
package main

import (
	"os"

	"github.com/amarsjac/openjd-sessions/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
