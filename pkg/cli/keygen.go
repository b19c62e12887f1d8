package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oneform/formroom/pkg/cli/internal/output"
	"github.com/oneform/formroom/pkg/crypto"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Print a new random sealing key",
	Long: `Print a new random 256-bit key, base64 encoded, for crypto.keys in the
configuration file or the FORMROOM_CRYPTO_KEY environment variable.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := crypto.GenerateKey()
		if err != nil {
			return err
		}
		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), map[string]string{"key": key})
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
