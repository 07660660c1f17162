package main

import (
	"fmt"
	"os"

	_ "time/tzdata"

	"github.com/dukerupert/cadence/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
