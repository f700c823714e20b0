package main

import (
	"os"

	"github.com/minipack/minipack/cmd"
)

func main() {
	if err := cmd.RootCommand.Execute(); err != nil {
		os.Exit(1)
	}
}
