package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/oneform/formroom/pkg/cli/internal/output"
	"github.com/oneform/formroom/pkg/config"
	"github.com/oneform/formroom/pkg/identity"
)

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage API bearer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue USER_ID",
	Short: "Issue a bearer token for a user",
	Long: `Sign a bearer token for USER_ID with identity.secret. Intended for
local development and scripts; production tokens come from the identity
provider that shares the secret.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}
		v, err := identity.NewVerifier(cfg.Identity.Secret, cfg.Identity.Issuer)
		if err != nil {
			return err
		}
		token, err := v.Issue(args[0], tokenTTL)
		if err != nil {
			return err
		}
		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), map[string]any{
				"token":     token,
				"userId":    args[0],
				"expiresAt": time.Now().Add(tokenTTL).UTC().Format(time.RFC3339),
			})
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "Token lifetime")
	tokenCmd.AddCommand(tokenIssueCmd)
	rootCmd.AddCommand(tokenCmd)
}
