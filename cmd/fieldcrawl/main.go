// Package main provides the entry point for the fieldcrawl CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/fieldcrawl/cmd/fieldcrawl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
