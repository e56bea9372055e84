package main

import (
	"fmt"
	"os"

	"github.com/arthur-debert/doarch/cmd/doarch"
	"github.com/arthur-debert/doarch/pkg/style"
)

func main() {
	rootCmd := doarch.NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		// Print the error in red
		errorStyle := style.Get("error")
		fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf("Error: %v", err)))

		os.Exit(1)
	}
}
