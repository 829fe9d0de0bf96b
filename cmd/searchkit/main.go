package main

import (
	"os"

	"github.com/marketgrid/searchkit/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
