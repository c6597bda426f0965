// Package main provides the firestats command line: it runs the Silver /
// Gold pipeline over a manifest of source files and exposes the individual
// rules for inspection.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "firestats",
		Short:         "Fire and rescue statistics pipeline",
		Long:          `Cleanses Home Office fire and rescue statistics into a conformed star schema and validates it before publishing`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config layered over the defaults")

	rootCmd.AddCommand(createRunCmd())
	rootCmd.AddCommand(createCheckRulesCmd())
	rootCmd.AddCommand(createMidpointCmd())
	rootCmd.AddCommand(createRemapCmd())
	rootCmd.AddCommand(createFiscalYearCmd())

	return rootCmd
}
