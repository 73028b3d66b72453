package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "fusego",
	Short:        "Fusego — hybrid retrieval engine tooling",
	SilenceUsage: true, // don't print usage on operational errors
	Long: `Fusego tooling for the hybrid retrieval engine: benchmark vector
index variants against exact ground truth across parameter grids.`,
}

// Execute is called by main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
