// Package runner wires one synchronization run: feed, filter, mapping,
// reconciliation and the reporting sinks.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/zipsync/zipsync/internal/feed"
	"github.com/zipsync/zipsync/internal/filter"
	"github.com/zipsync/zipsync/internal/mapping"
	"github.com/zipsync/zipsync/internal/notification"
	"github.com/zipsync/zipsync/internal/reconcile"
)

// DefaultNotifyTimeout bounds the end-of-run notification, which runs even
// after the run's context was cancelled.
const DefaultNotifyTimeout = 30 * time.Second

// Fetcher retrieves the pricing feed.
type Fetcher interface {
	Fetch(ctx context.Context) ([]feed.Entry, error)
}

// CampaignLister enumerates the campaigns to reconcile.
type CampaignLister interface {
	ActiveCampaignIDs(ctx context.Context) ([]string, error)
}

// Reconciler converges campaigns on a desired criterion set.
type Reconciler interface {
	Reconcile(ctx context.Context, desired mapset.Set[string], campaignIDs []string) (*reconcile.RunSummary, error)
}

// SheetWriter mirrors the desired criteria into a spreadsheet.
type SheetWriter interface {
	WriteColumn(ctx context.Context, values []string) error
}

// Selection is the outcome of fetch, filter and map.
type Selection struct {
	Zips     []string `json:"zips"`
	Criteria []string `json:"criteria"`
	Unmapped []string `json:"unmapped,omitempty"`
}

// Report describes a finished run. Summary is nil when the run stopped
// before reconciliation.
type Report struct {
	Selection Selection
	Campaigns []string
	Summary   *reconcile.RunSummary
	// SinkErr collects spreadsheet failures; they never fail the run.
	SinkErr error
	// Stopped explains an early, successful stop.
	Stopped string
	// Notification is the outcome of the end-of-run message, nil when no
	// notifier is configured.
	Notification *notification.DispatchResult
}

// Runner holds the collaborators of a run. Sheet and Notifier are optional.
type Runner struct {
	Feed      Fetcher
	Filter    filter.Options
	Table     *mapping.Table
	Campaigns CampaignLister
	Engine    Reconciler
	Sheet     SheetWriter
	Notifier  notification.Notifier
	Logger    *zap.Logger

	// DryRun skips the spreadsheet sink; the engine is expected to be
	// configured with writes disabled as well.
	DryRun        bool
	NotifyTimeout time.Duration
}

func (r *Runner) log() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Select fetches the feed and turns it into the desired criterion list.
func (r *Runner) Select(ctx context.Context) (Selection, error) {
	if r.Feed == nil || r.Table == nil {
		return Selection{}, errors.New("runner: feed and mapping table are required")
	}
	entries, err := r.Feed.Fetch(ctx)
	if err != nil {
		return Selection{}, err
	}
	zips := filter.Select(entries, r.Filter)
	criteria, unmapped := r.Table.Map(zips)

	log := r.log()
	log.Info("feed filtered",
		zap.Int("entries", len(entries)),
		zap.Int("eligible", len(zips)),
		zap.Int("criteria", len(criteria)))
	if len(unmapped) > 0 {
		log.Warn("zip codes without a location criterion were dropped",
			zap.Int("count", len(unmapped)),
			zap.Strings("zips", unmapped))
	}
	return Selection{Zips: zips, Criteria: criteria, Unmapped: unmapped}, nil
}

// Run performs one synchronization. Exactly one notification is sent on
// every exit path: a summary to admins, or the error to alerts.
func (r *Runner) Run(ctx context.Context) (report *Report, err error) {
	report = &Report{}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("runner: unexpected panic: %v", rec)
		}
		r.notify(ctx, report, err)
	}()

	report.Selection, err = r.Select(ctx)
	if err != nil {
		return report, err
	}
	if len(report.Selection.Criteria) == 0 {
		report.Stopped = "No zip codes above the price threshold map to a location criterion; no campaigns were changed."
		r.log().Warn("no desired criteria, stopping")
		return report, nil
	}

	report.Campaigns, err = r.Campaigns.ActiveCampaignIDs(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to list active campaigns: %w", err)
	}
	if len(report.Campaigns) == 0 {
		report.Stopped = "No active campaigns found; nothing to synchronize."
		r.log().Warn("no active campaigns, stopping")
		return report, nil
	}

	desired := mapset.NewThreadUnsafeSet(report.Selection.Criteria...)
	report.Summary, err = r.Engine.Reconcile(ctx, desired, report.Campaigns)
	if err != nil {
		return report, err
	}

	report.SinkErr = r.writeSheet(ctx, report.Selection.Criteria)
	return report, nil
}

func (r *Runner) writeSheet(ctx context.Context, criteria []string) error {
	if r.Sheet == nil || r.DryRun {
		return nil
	}
	var errs error
	if err := r.Sheet.WriteColumn(ctx, criteria); err != nil {
		r.log().Error("spreadsheet update failed", zap.Error(err))
		errs = multierr.Append(errs, fmt.Errorf("spreadsheet: %w", err))
	}
	return errs
}

// notify sends the end-of-run message. It runs on a context detached from
// cancellation so an interrupted run is still reported.
func (r *Runner) notify(ctx context.Context, report *Report, runErr error) {
	if r.Notifier == nil {
		return
	}
	timeout := r.NotifyTimeout
	if timeout <= 0 {
		timeout = DefaultNotifyTimeout
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	msg := notification.Message{Channel: notification.ChannelAdmin, Text: report.Text()}
	if runErr != nil {
		msg = notification.Message{Channel: notification.ChannelAlerts, Text: AlertText(runErr)}
	}
	res := r.Notifier.Notify(nctx, msg)
	report.Notification = &res
}

// AlertText is the message sent to the alerts channel when a run fails.
func AlertText(err error) string {
	return fmt.Sprintf("Zip code synchronization failed: %v\nThe run terminated; campaigns not yet processed were left unchanged.", err)
}

// Text renders the report for the admin channel.
func (r *Report) Text() string {
	text := r.Stopped
	if r.Summary != nil {
		text = r.Summary.Text()
	}
	if r.SinkErr != nil {
		text += fmt.Sprintf("\nSpreadsheet update failed: %v", r.SinkErr)
	}
	return text
}
