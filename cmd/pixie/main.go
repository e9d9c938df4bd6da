package main

import (
	"os"

	"github.com/EimisPacheco/pixie/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
