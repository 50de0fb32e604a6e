package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		// Ctrl-C during `platter run` is a normal exit, not a failure
		// worth printing.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintf(os.Stderr, "platter: %v\n", err)
		}
		os.Exit(1)
	}
}
