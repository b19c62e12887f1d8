package cli

import (
	"github.com/spf13/cobra"

	"github.com/oneform/formroom/pkg/cli/internal/output"
	"github.com/oneform/formroom/pkg/validation"
)

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Work with room JSON Schemas",
}

var schemaInferCmd = &cobra.Command{
	Use:   "infer RECORD...",
	Short: "Infer a JSON Schema from sample records",
	Long: `Infer a JSON Schema that accepts every sample record. Records are JSON
or YAML files or doublestar patterns. The schema is printed as JSON and
can be used as a room's schema.`,
	Example: `  formroom schema infer samples/*.json > schema.json`,
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		paths, err := expandRecords(args)
		if err != nil {
			return err
		}
		records, err := readRecords(paths, cmd.InOrStdin())
		if err != nil {
			return err
		}
		samples := make([]map[string]any, len(records))
		for i, r := range records {
			samples[i] = r.Fields
		}
		return output.JSON(cmd.OutOrStdout(), validation.InferSchema(samples...))
	},
}

func init() {
	schemaCmd.AddCommand(schemaInferCmd)
	rootCmd.AddCommand(schemaCmd)
}
