package main

import (
	"os"

	"github.com/sger/ember/cmd/ember/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
