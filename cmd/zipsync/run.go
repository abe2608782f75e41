package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/zipsync/zipsync/internal/notification"
	"github.com/zipsync/zipsync/internal/runner"
	"github.com/zipsync/zipsync/internal/ui"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full synchronization",
	Long: `Fetches the pricing feed, selects the zip codes above the price threshold,
maps them to location criteria and converges every active campaign on that
set. The spreadsheet mirror is refreshed and a report is sent to the admin
channel; failures are reported to the alerts channel.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRunner(cmd.Context(), cfg, logger, modeRun)
		if err != nil {
			return err
		}
		report, err := r.Run(cmd.Context())
		if report != nil {
			if perr := printReport(cmd.OutOrStdout(), report, false); perr != nil && err == nil {
				err = perr
			}
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

// reportJSON is the machine-readable form of a run.
type reportJSON struct {
	Selection runner.Selection `json:"selection"`
	Campaigns int              `json:"campaigns"`
	Stopped   string           `json:"stopped,omitempty"`
	DryRun    bool             `json:"dry_run"`
	Updated   int              `json:"updated"`
	Skipped   int              `json:"skipped"`
	Failed    int              `json:"failed"`
	Pending   int              `json:"pending"`
	FailedIDs []string         `json:"failed_ids,omitempty"`
	Entities  []entityJSON     `json:"entities,omitempty"`
	SinkError string           `json:"sink_error,omitempty"`

	Notification *notification.DispatchResult `json:"notification,omitempty"`
}

type entityJSON struct {
	CampaignID string   `json:"campaign_id"`
	Status     string   `json:"status"`
	Add        []string `json:"add,omitempty"`
	Remove     []string `json:"remove,omitempty"`
	Error      string   `json:"error,omitempty"`
}

func toJSON(report *runner.Report) reportJSON {
	out := reportJSON{
		Selection: report.Selection,
		Campaigns: len(report.Campaigns),
		Stopped:   report.Stopped,

		Notification: report.Notification,
	}
	if report.SinkErr != nil {
		out.SinkError = report.SinkErr.Error()
	}
	if s := report.Summary; s != nil {
		out.DryRun = s.DryRun
		out.Updated, out.Skipped, out.Failed, out.Pending = s.Updated, s.Skipped, s.Failed, s.Pending
		out.FailedIDs = s.FailedIDs
		for _, e := range s.Entities {
			ej := entityJSON{CampaignID: e.CampaignID, Status: string(e.Status), Add: e.ToAdd, Remove: e.ToRemove}
			if e.Err != nil {
				ej.Error = e.Err.Error()
			}
			out.Entities = append(out.Entities, ej)
		}
	}
	return out
}

func printReport(w io.Writer, report *runner.Report, withPlan bool) error {
	if jsonOutput {
		return outputJSON(w, toJSON(report))
	}
	palette := ui.NewPalette(ui.ShouldUseColor())
	if report.Summary == nil {
		if report.Stopped != "" {
			_, err := fmt.Fprintln(w, report.Stopped)
			return err
		}
		return nil
	}
	if withPlan {
		if _, err := fmt.Fprint(w, ui.RenderPlan(report.Summary, palette)); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, ui.RenderSummary(report.Summary, palette))
	if err == nil && report.SinkErr != nil {
		_, err = fmt.Fprintf(w, "Spreadsheet update failed: %v\n", report.SinkErr)
	}
	return err
}
