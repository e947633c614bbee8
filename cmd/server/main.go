package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "plane-tracker",
		Short: "Plane tracker - telemetry device fleet and flight session tracking",
		Long:  `plane-tracker serves the fleet API, ingests device telemetry and exports flight sessions.`,
	}

	rootCmd.AddCommand(
		newServeCommand(),
		newExportCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
