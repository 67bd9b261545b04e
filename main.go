package main

import (
	"os"

	"github.com/helpdeskbr/n1agent/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
