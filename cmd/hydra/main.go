// Package main provides the entry point for the hydra acceleration engine CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Continuum-Intelligence/continuum-hydra/pkg/accel/logging"
)

func main() {
	err := Execute()
	_ = logging.Close()
	if err == nil {
		return
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.message != "" {
			fmt.Fprintln(os.Stderr, exit.message)
		}
		os.Exit(exit.code)
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
