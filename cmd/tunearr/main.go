// Package main is the entry point for the tunearr application.
package main

import (
	"os"

	"github.com/tunearr/tunearr/cmd/tunearr/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
