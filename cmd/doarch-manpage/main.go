package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra/doc"

	"github.com/arthur-debert/doarch/cmd/doarch"
	"github.com/arthur-debert/doarch/internal/version"
)

func main() {
	rootCmd := doarch.NewRootCmd()

	header := &doc.GenManHeader{
		Title:   "DOARCH",
		Section: "8",
		Source:  "doarch " + version.Version,
		Manual:  "doarch manual",
	}

	err := doc.GenMan(rootCmd, header, os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating man page: %v\n", err)
		os.Exit(1)
	}
}
