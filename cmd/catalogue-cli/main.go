// Package main is the entry point for the catalogue-cli binary.
package main

import (
	"os"

	"github.com/jsamuelsen11/selmag/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
