package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/zipsync/zipsync/internal/ads"
	"github.com/zipsync/zipsync/internal/config"
	"github.com/zipsync/zipsync/internal/feed"
	"github.com/zipsync/zipsync/internal/filter"
	"github.com/zipsync/zipsync/internal/mapping"
	"github.com/zipsync/zipsync/internal/notification"
	"github.com/zipsync/zipsync/internal/reconcile"
	"github.com/zipsync/zipsync/internal/runner"
	"github.com/zipsync/zipsync/internal/sheets"
)

// pipelineMode selects which collaborators newRunner wires.
type pipelineMode int

const (
	// modeSelect wires the feed and mapping only.
	modeSelect pipelineMode = iota
	// modePlan adds the campaign API with writes disabled.
	modePlan
	// modeRun wires every collaborator.
	modeRun
)

func filterOptions(c *config.Config) filter.Options {
	return filter.Options{
		PriceField: c.Feed.PriceField,
		IDField:    c.Feed.IDField,
		Threshold:  c.Feed.PriceThreshold,
	}
}

func engineOptions(c *config.Config, mode pipelineMode) reconcile.Options {
	return reconcile.Options{
		ChunkSize:            c.Sync.ChunkSize,
		ChunkPause:           c.Sync.ChunkPause,
		APIActive:            c.Sync.APIActive && mode == modeRun,
		TestMode:             c.Sync.TestMode,
		StrictPartialFailure: c.Sync.StrictPartialFailure,
	}
}

// newRunner validates the configuration for mode and builds the pipeline.
// The feed and the ads API are not contacted before validation passes. In
// modeRun the notifier is built first and any failure here is sent to the
// alerts channel.
func newRunner(ctx context.Context, c *config.Config, log *zap.Logger, mode pipelineMode) (_ *runner.Runner, err error) {
	var notifier *notification.Dispatcher
	if mode == modeRun {
		notifier = notification.NewDispatcher(c.Slack.AdminWebhook, c.Slack.AlertsWebhook,
			notification.WithLogger(log.Named("notify")))
		defer func() {
			if err != nil {
				alertStartupFailure(ctx, notifier, err)
			}
		}()
	}

	scopes := []config.Scope{config.ScopeFeed}
	if mode != modeSelect {
		scopes = append(scopes, config.ScopeAds)
	}
	if err := c.Require(scopes...); err != nil {
		return nil, err
	}

	table, err := mapping.Load(c.Mapping.File)
	if err != nil {
		return nil, fmt.Errorf("failed to load mapping table: %w", err)
	}
	log.Debug("mapping table loaded", zap.String("file", c.Mapping.File), zap.Int("zips", table.Len()))

	r := &runner.Runner{
		Feed: feed.NewFetcher(c.Feed.URL,
			feed.WithRetries(c.Feed.MaxRetries, c.Feed.BackoffFactor),
			feed.WithTimeout(c.Feed.Timeout),
			feed.WithLogger(log.Named("feed"))),
		Filter: filterOptions(c),
		Table:  table,
		Logger: log.Named("runner"),
	}
	if mode == modeSelect {
		return r, nil
	}

	httpClient, err := ads.NewHTTPClient(ctx, c.Ads.CredentialsFile)
	if err != nil {
		return nil, err
	}
	client := ads.NewClient(c.Ads.AccountID, c.Ads.LoginCustomerID, c.Ads.DeveloperToken).
		WithHTTPClient(httpClient).
		WithBaseURL(c.Ads.Endpoint)
	client.Logger = log.Named("ads")

	opts := engineOptions(c, mode)
	r.Campaigns = client
	r.Engine = reconcile.NewEngine(client, client, opts, log.Named("reconcile"))
	r.DryRun = !opts.APIActive

	if mode == modePlan {
		return r, nil
	}

	r.Notifier = notifier

	if c.Sheets.SpreadsheetID != "" && !r.DryRun {
		api, err := sheets.NewGoogleAPI(ctx, c.Sheets.CredentialsFile)
		if err != nil {
			return nil, err
		}
		r.Sheet = sheets.NewWriter(api, c.Sheets.SpreadsheetID,
			sheets.WithColumn(c.Sheets.Column, c.Sheets.StartRow),
			sheets.WithLogger(log.Named("sheets")))
	}
	return r, nil
}

// alertStartupFailure reports a run that failed before the pipeline started.
func alertStartupFailure(ctx context.Context, d *notification.Dispatcher, err error) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), runner.DefaultNotifyTimeout)
	defer cancel()
	d.Alert(nctx, runner.AlertText(err))
}
