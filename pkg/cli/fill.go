package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oneform/formroom/pkg/cli/internal/output"
	"github.com/oneform/formroom/pkg/template"
)

var fillFlags struct {
	template string
	records  []string
	strict   bool
}

// FillOutput is one filled record in --json output.
type FillOutput struct {
	Record string `json:"record"`
	template.Result
}

var fillCmd = &cobra.Command{
	Use:   "fill [TEMPLATE_FILE]",
	Short: "Fill a template from JSON or YAML records",
	Long: `Fill a {{placeholder}} template from one or more records.

Records are JSON (.json) or YAML files; --record accepts paths and
doublestar patterns such as 'patients/**/*.yaml' and may be repeated.
Without --record the record is read from stdin.

Placeholders whose path does not resolve to a value are left verbatim.
With --strict the command fails if any placeholder stays unresolved.`,
	Example: `  formroom fill letter.txt --record ann.json
  formroom fill -t 'Dear {{name}}' --record 'people/*.yaml' --json
  echo '{"name":"Ann"}' | formroom fill -t 'Hi {{name}}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFill,
}

func init() {
	fillCmd.Flags().StringVarP(&fillFlags.template, "template", "t", "", "Template text (instead of a template file)")
	fillCmd.Flags().StringArrayVarP(&fillFlags.records, "record", "r", nil, "Record file or glob pattern (repeatable, - for stdin)")
	fillCmd.Flags().BoolVar(&fillFlags.strict, "strict", false, "Fail when a placeholder cannot be resolved")
	rootCmd.AddCommand(fillCmd)
}

func runFill(cmd *cobra.Command, args []string) error {
	tmpl, _, err := readTemplate(fillFlags.template, args)
	if err != nil {
		return err
	}

	patterns := fillFlags.records
	if len(patterns) == 0 {
		patterns = []string{stdinName}
	}
	paths, err := expandRecords(patterns)
	if err != nil {
		return err
	}
	records, err := readRecords(paths, cmd.InOrStdin())
	if err != nil {
		return err
	}

	engine := template.New()
	results := make([]FillOutput, 0, len(records))
	for _, rec := range records {
		res := engine.Fill(tmpl, rec.Fields)
		results = append(results, FillOutput{Record: rec.Name, Result: res})
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := output.JSON(out, results); err != nil {
			return err
		}
	} else {
		for i, r := range results {
			if len(results) > 1 {
				if i > 0 {
					fmt.Fprintln(out)
				}
				fmt.Fprintf(out, "==> %s <==\n", r.Record)
			}
			fmt.Fprint(out, r.Text)
			if !strings.HasSuffix(r.Text, "\n") {
				fmt.Fprintln(out)
			}
		}
	}

	if !fillFlags.strict {
		return nil
	}
	incomplete := 0
	for _, r := range results {
		if !r.Complete() {
			incomplete++
			fmt.Fprintf(cmd.ErrOrStderr(), "%s: unresolved: %s\n", r.Record, strings.Join(r.Unresolved, ", "))
		}
	}
	if incomplete > 0 {
		return &exitError{code: 1}
	}
	return nil
}
