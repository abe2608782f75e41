package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zipsync/zipsync/internal/runner"
)

var fetchZips bool

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Print the desired location criteria",
	Long: `Fetches the pricing feed, applies the price threshold and maps the eligible
zip codes to location criteria. Prints one criterion id per line, or the zip
codes with --zips. Nothing is written.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRunner(cmd.Context(), cfg, logger, modeSelect)
		if err != nil {
			return err
		}
		sel, err := r.Select(cmd.Context())
		if err != nil {
			return err
		}
		return printSelection(cmd.OutOrStdout(), sel, fetchZips)
	},
}

func init() {
	fetchCmd.Flags().BoolVar(&fetchZips, "zips", false, "Print eligible zip codes instead of criterion ids")
	rootCmd.AddCommand(fetchCmd)
}

func printSelection(w io.Writer, sel runner.Selection, zips bool) error {
	if jsonOutput {
		return outputJSON(w, sel)
	}
	ids := sel.Criteria
	if zips {
		ids = sel.Zips
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := fmt.Fprintln(w, strings.Join(ids, "\n"))
	return err
}
