// Package main provides the entry point for the cutfang CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/cutfang/cmd/cutfang/commands"
	"github.com/Sumatoshi-tech/cutfang/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
