package main

import (
	"fmt"

	"github.com/jonathan/resume-builder/internal/observability"
	"github.com/spf13/cobra"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Inspect the template registry",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List template ids and the libraries they use",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		observability.NewPrinter(cmd.OutOrStdout()).PrintTemplates(a.registry.Entries())
		return nil
	},
}

var templatesValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every template and library source is present",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.close()

		problems := validationProblems(a.registry.Validate(a.sources))
		observability.NewPrinter(cmd.OutOrStdout()).PrintValidation(problems)
		if len(problems) > 0 {
			return fmt.Errorf("%d template source problems", len(problems))
		}
		return nil
	},
}

func init() {
	templatesCmd.AddCommand(templatesListCmd, templatesValidateCmd)
	rootCmd.AddCommand(templatesCmd)
}
