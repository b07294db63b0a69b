package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/benvon/practice-queue/cmd/practicectl/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
