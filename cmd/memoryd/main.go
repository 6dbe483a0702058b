package main

import (
	"os"

	"github.com/gregmulvihill/multi-tiered-memory-architecture/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
