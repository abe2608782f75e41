package main

import (
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the changes a run would make",
	Long: `Computes the per-campaign difference between the desired location criteria
and the live targeting without writing anything. No notifications are sent
and the spreadsheet is left untouched.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRunner(cmd.Context(), cfg, logger, modePlan)
		if err != nil {
			return err
		}
		report, err := r.Run(cmd.Context())
		if report != nil {
			if perr := printReport(cmd.OutOrStdout(), report, true); perr != nil && err == nil {
				err = perr
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(planCmd)
}
