// Package main provides the resume_builder CLI: the HTTP server plus
// offline compile and inspection commands.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "resume_builder",
	Short: "Resume Builder typesetting server",
	Long:  "Resume Builder compiles structured resume data into PDF and paginated SVG through typst templates, and serves a live preview over websockets.",
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML config file (RESUME_* environment variables override it)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
