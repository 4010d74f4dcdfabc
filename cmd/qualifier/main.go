// Package main provides the entry point for the applicant qualification CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "qualifier",
	Short: "Applicant qualification pipeline",
	Long:  "Qualifier scores batches of candidate documents against a job definition, applies the job's stage thresholds, and settles the organization's prepaid credits.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
