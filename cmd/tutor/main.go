// Package main is the tutor CLI entry point.
package main

import (
	"os"

	"github.com/hyperjump/tutor/cmd/tutor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
