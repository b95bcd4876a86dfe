package main

import (
	"fmt"
	"os"

	"github.com/jonathan/resume-builder/internal/pagesplit"
	"github.com/spf13/cobra"
)

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Split a continuous typst SVG into per-page SVGs",
	RunE:  runSplit,
}

var (
	splitInputFile    string
	splitOutputFile   string
	splitKeepTrailing bool
)

func init() {
	splitCmd.Flags().StringVarP(&splitInputFile, "in", "i", "", "Path to the SVG document")
	splitCmd.Flags().StringVarP(&splitOutputFile, "out", "o", "page.svg", "Output path; pages are written as <out>-N.svg")
	splitCmd.Flags().BoolVar(&splitKeepTrailing, "keep-trailing", false, "Keep the blank overflow page typst appends")

	if err := splitCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}

	rootCmd.AddCommand(splitCmd)
}

func runSplit(cmd *cobra.Command, _ []string) error {
	raw, err := os.ReadFile(splitInputFile)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	pages := pagesplit.Split(string(raw))
	if !splitKeepTrailing {
		pages = pagesplit.DropTrailing(pages)
	}

	paths, err := writePages(splitOutputFile, pages)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Split into %d pages\n", len(paths))
	for _, p := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", p)
	}
	return nil
}
