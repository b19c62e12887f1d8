package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/oneform/formroom/pkg/cli/internal/output"
	"github.com/oneform/formroom/pkg/config"
	"github.com/oneform/formroom/pkg/plans"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Inspect plans and manage user accounts",
}

var planListCmd = &cobra.Command{
	Use:   "list",
	Short: "List plans and their limits",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var all []plans.Plan
		for _, name := range plans.Names() {
			p, err := plans.Get(name)
			if err != nil {
				return err
			}
			all = append(all, p)
		}
		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), all)
		}

		w := output.Table(cmd.OutOrStdout())
		fmt.Fprintln(w, "PLAN\tROOMS\tUSERS\tASSISTANT\tUPLOADS")
		for _, p := range all {
			fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\n", p.Name, limit(p.MaxRooms), limit(p.MaxUsers), p.Assistant, limit(p.MaxUploads))
		}
		return w.Flush()
	},
}

var planRulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Show the feature rules in effect",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Read(configPath)
		if err != nil {
			return err
		}
		gate, err := cfg.Gate()
		if err != nil {
			return err
		}

		rules := make(map[string]string)
		for _, f := range gate.Features() {
			rules[f], _ = gate.Rule(f)
		}
		if jsonOutput {
			return output.JSON(cmd.OutOrStdout(), rules)
		}
		w := output.Table(cmd.OutOrStdout())
		fmt.Fprintln(w, "FEATURE\tRULE")
		for _, f := range gate.Features() {
			fmt.Fprintf(w, "%s\t%s\n", f, rules[f])
		}
		return w.Flush()
	},
}

var planGetCmd = &cobra.Command{
	Use:   "get USER_ID",
	Short: "Show a user's plan",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.accounts.Plan(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printAccount(cmd, args[0], p)
	},
}

var planSetCmd = &cobra.Command{
	Use:   "set USER_ID PLAN",
	Short: "Assign a plan to a user",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		defer a.Close()

		p, err := a.accounts.SetPlan(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		return printAccount(cmd, args[0], p)
	},
}

func printAccount(cmd *cobra.Command, userID string, p plans.Plan) error {
	if jsonOutput {
		return output.JSON(cmd.OutOrStdout(), map[string]string{
			"userId":   userID,
			"plan":     p.Name,
			"planName": plans.DisplayName(p.Name),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", userID, plans.DisplayName(p.Name))
	return nil
}

func limit(n int) string {
	if n == plans.Unlimited {
		return "unlimited"
	}
	return strconv.Itoa(n)
}

func init() {
	planCmd.AddCommand(planListCmd, planRulesCmd, planGetCmd, planSetCmd)
	rootCmd.AddCommand(planCmd)
}
