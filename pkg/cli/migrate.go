package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oneform/formroom/pkg/cli/internal/output"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Seal plaintext documents and re-seal those under retired keys",
	Long: `Walk forms, rooms and room accesses in the configured store. Documents
that still carry plaintext fields are sealed with the active key, and
documents sealed under another configured key are re-sealed with the
active key. Failures are reported per document; the command exits with
status 1 if any document failed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		report, err := a.forms.Migrate(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			if err := output.JSON(out, report); err != nil {
				return err
			}
		} else {
			fmt.Fprintf(out, "sealed: %d, resealed: %d, skipped: %d, failed: %d\n",
				report.Sealed, report.Resealed, report.Skipped, report.Failed)
			if len(report.Failures) > 0 {
				w := output.Table(out)
				fmt.Fprintln(w, "COLLECTION\tID\tERROR")
				for _, f := range report.Failures {
					fmt.Fprintf(w, "%s\t%s\t%s\n", f.Collection, f.ID, f.Error)
				}
				_ = w.Flush()
			}
		}
		if report.Failed > 0 {
			return &exitError{code: 1}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
