package main

import (
	"fmt"
	"os"

	"github.com/Iron-Ham/arbor/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "arbor: %v\n", err)
		os.Exit(1)
	}
}
