package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oneform/formroom/pkg/cli/internal/output"
	"github.com/oneform/formroom/pkg/template"
)

var validateTemplate string

// ValidateOutput reports one checked template in --json output.
type ValidateOutput struct {
	Source string          `json:"source"`
	Valid  bool            `json:"valid"`
	Paths  []string        `json:"paths"`
	Errors []ValidateError `json:"errors"`
}

// ValidateError is one syntax problem.
type ValidateError struct {
	Offset  int    `json:"offset"`
	Message string `json:"message"`
	Text    string `json:"text"`
}

var validateCmd = &cobra.Command{
	Use:   "validate [TEMPLATE_FILE...]",
	Short: "Check templates for placeholder syntax errors",
	Long: `Check templates for empty, malformed, unterminated and multi-line
placeholders. Problems are printed as FILE:OFFSET: MESSAGE and the
command exits with status 1 if any template has one.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVarP(&validateTemplate, "template", "t", "", "Template text (instead of template files)")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	type source struct{ name, text string }
	var sources []source
	switch {
	case validateTemplate != "" && len(args) > 0:
		return ErrTwoTemplates
	case validateTemplate != "":
		sources = append(sources, source{"<template>", validateTemplate})
	case len(args) == 0:
		return ErrNoTemplate
	}
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}
		sources = append(sources, source{path, string(data)})
	}

	results := make([]ValidateOutput, 0, len(sources))
	failed := false
	for _, src := range sources {
		res := ValidateOutput{Source: src.name, Paths: template.Paths(src.text), Errors: []ValidateError{}}
		if res.Paths == nil {
			res.Paths = []string{}
		}
		for _, e := range template.Check(src.text) {
			res.Errors = append(res.Errors, ValidateError{Offset: e.Offset, Message: e.Msg, Text: e.Text})
		}
		res.Valid = len(res.Errors) == 0
		failed = failed || !res.Valid
		results = append(results, res)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := output.JSON(out, results); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			if r.Valid {
				fmt.Fprintf(out, "%s: ok (%d placeholders)\n", r.Source, len(r.Paths))
				continue
			}
			for _, e := range r.Errors {
				fmt.Fprintf(out, "%s:%d: %s\n", r.Source, e.Offset, e.Message)
			}
		}
	}

	if failed {
		return &exitError{code: 1}
	}
	return nil
}
