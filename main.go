package main

import (
	"os"

	"github.com/spigell/jobintel/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
