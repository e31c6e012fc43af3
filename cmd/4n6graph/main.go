package main

import (
	"fmt"
	"os"

	"github.com/cdtdelta/4n6graph/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
