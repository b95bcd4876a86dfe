package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jonathan/resume-builder/internal/compiler"
	"github.com/jonathan/resume-builder/internal/formatting"
	"github.com/jonathan/resume-builder/internal/observability"
	"github.com/jonathan/resume-builder/internal/pagesplit"
	"github.com/jonathan/resume-builder/internal/schemas"
	"github.com/jonathan/resume-builder/internal/types"
	"github.com/spf13/cobra"
)

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile resume form data to PDF or SVG",
	Long: `Compile a form data JSON file through the same path the server uses.
PDF output is written to --out. SVG output is split into one file per page,
named <out>-1.svg, <out>-2.svg and so on.`,
	RunE: runCompile,
}

var (
	compileInputFile  string
	compileTemplateID string
	compileFormat     string
	compileOutputFile string
	compileVerbose    bool
)

func init() {
	compileCmd.Flags().StringVarP(&compileInputFile, "in", "i", "", "Path to a compile request JSON file ({formData, templateId}) or bare form data")
	compileCmd.Flags().StringVarP(&compileTemplateID, "template", "t", "", "Template id (overrides templateId in the input)")
	compileCmd.Flags().StringVarP(&compileFormat, "format", "f", compiler.FormatPDF, "Output format: pdf or svg")
	compileCmd.Flags().StringVarP(&compileOutputFile, "out", "o", "", "Output path")
	compileCmd.Flags().BoolVarP(&compileVerbose, "verbose", "v", false, "Print a summary of the input and result")

	if err := compileCmd.MarkFlagRequired("in"); err != nil {
		panic(fmt.Sprintf("failed to mark in flag as required: %v", err))
	}
	if err := compileCmd.MarkFlagRequired("out"); err != nil {
		panic(fmt.Sprintf("failed to mark out flag as required: %v", err))
	}

	rootCmd.AddCommand(compileCmd)
}

// compileInput is either a full compile request or bare form data.
type compileInput struct {
	FormData   *types.FormData `json:"formData"`
	TemplateID string          `json:"templateId"`
}

// readCompileInput loads the input file. A full request is checked against
// the request schema; bare form data is taken as is.
func readCompileInput(path, templateOverride string) (types.FormData, string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return types.FormData{}, "", fmt.Errorf("failed to read input file: %w", err)
	}

	var in compileInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return types.FormData{}, "", fmt.Errorf("failed to parse input JSON: %w", err)
	}

	var data types.FormData
	templateID := in.TemplateID
	if in.FormData != nil {
		if in.TemplateID != "" {
			if err := schemas.ValidateFormRequest(raw); err != nil {
				return types.FormData{}, "", err
			}
		}
		data = *in.FormData
	} else if err := json.Unmarshal(raw, &data); err != nil {
		return types.FormData{}, "", fmt.Errorf("failed to parse form data: %w", err)
	}

	if templateOverride != "" {
		templateID = templateOverride
	}
	if templateID == "" {
		return types.FormData{}, "", fmt.Errorf("no template id: pass --template or set templateId in the input")
	}
	return data, templateID, nil
}

func runCompile(cmd *cobra.Command, _ []string) error {
	if compileFormat != compiler.FormatPDF && compileFormat != compiler.FormatSVG {
		return fmt.Errorf("unsupported format %q: use pdf or svg", compileFormat)
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	formData, templateID, err := readCompileInput(compileInputFile, compileTemplateID)
	if err != nil {
		return err
	}
	data := formatting.FormatComplete(formData)

	printer := observability.NewPrinter(cmd.OutOrStdout())
	if compileVerbose {
		printer.PrintResumeSummary(&data, templateID)
	}

	adapter := a.adapter(nil, nil)
	start := time.Now()

	if compileFormat == compiler.FormatPDF {
		pdf, err := adapter.RenderPDF(cmd.Context(), data, templateID)
		if err != nil {
			return err
		}
		if err := os.WriteFile(compileOutputFile, pdf, 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if compileVerbose {
			printer.PrintCompileResult(compileFormat, len(pdf), 0, time.Since(start))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", compileOutputFile)
		return nil
	}

	svg, err := adapter.RenderSVG(cmd.Context(), data, templateID)
	if err != nil {
		return err
	}
	pages := pagesplit.DropTrailing(pagesplit.Split(string(svg)))
	paths, err := writePages(compileOutputFile, pages)
	if err != nil {
		return err
	}
	if compileVerbose {
		printer.PrintCompileResult(compileFormat, len(svg), len(pages), time.Since(start))
	}
	for _, p := range paths {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", p)
	}
	return nil
}

// writePages writes page i to <base>-<i>.svg, where base is out without its
// extension.
func writePages(out string, pages []string) ([]string, error) {
	base := strings.TrimSuffix(out, filepath.Ext(out))
	if dir := filepath.Dir(base); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	paths := make([]string, 0, len(pages))
	for i, page := range pages {
		path := fmt.Sprintf("%s-%d.svg", base, i+1)
		if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
			return nil, fmt.Errorf("failed to write page %d: %w", i+1, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}
