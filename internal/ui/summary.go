package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/zipsync/zipsync/internal/reconcile"
)

// MaxListedIDs caps the criterion ids printed per campaign and direction.
const MaxListedIDs = 10

// RenderSummary formats a run summary for the terminal. With color off it is
// the plain-text report sent to operators.
func RenderSummary(s *reconcile.RunSummary, p Palette) string {
	if !p.color {
		return s.Text()
	}

	var b strings.Builder
	title := "Zip code synchronization"
	if s.DryRun {
		title += " plan (dry run)"
	}
	b.WriteString(p.Category(title) + "\n")
	b.WriteString(p.Separator() + "\n")

	if s.DryRun {
		fmt.Fprintf(&b, "  %s %-22s %d\n", p.Warn(IconWarn), "Pending changes", s.Pending)
	} else {
		fmt.Fprintf(&b, "  %s %-22s %d\n", p.Pass(IconPass), "Updated", s.Updated)
	}
	fmt.Fprintf(&b, "  %s %-22s %d\n", p.Muted(IconSkip), "Already in sync", s.Skipped)

	failIcon := p.Muted(IconSkip)
	if s.Failed > 0 {
		failIcon = p.Fail(IconFail)
	}
	fmt.Fprintf(&b, "  %s %-22s %d\n", failIcon, "Errors", s.Failed)
	if len(s.FailedIDs) > 0 {
		b.WriteString(TreeIndent + TreeIndent + p.Muted(TreeLast) + p.Fail(strings.Join(s.FailedIDs, ", ")) + "\n")
	}

	b.WriteString(p.Muted(fmt.Sprintf("%d campaign(s), %d desired criteria, %s",
		s.Processed(), s.Desired, s.Duration().Round(time.Millisecond))))
	return b.String()
}

// RenderPlan lists the per-campaign diff of a run, one block per campaign.
func RenderPlan(s *reconcile.RunSummary, p Palette) string {
	var b strings.Builder
	for _, e := range s.Entities {
		b.WriteString(entityLine(e, p) + "\n")
		if len(e.ToAdd) > 0 {
			b.WriteString(TreeIndent + p.Muted(TreeLast) + p.Pass("add ") + listIDs(e.ToAdd) + "\n")
		}
		if len(e.ToRemove) > 0 {
			b.WriteString(TreeIndent + p.Muted(TreeLast) + p.Fail("remove ") + listIDs(e.ToRemove) + "\n")
		}
		if e.Err != nil {
			b.WriteString(TreeIndent + p.Muted(TreeLast) + p.Fail(e.Err.Error()) + "\n")
		}
	}
	return b.String()
}

func entityLine(e reconcile.EntityResult, p Palette) string {
	counts := fmt.Sprintf("+%d -%d", len(e.ToAdd), len(e.ToRemove))
	switch e.Status {
	case reconcile.StatusUpdated:
		return fmt.Sprintf("%s campaign %s  %s", p.Pass(IconPass), p.Accent(e.CampaignID), counts)
	case reconcile.StatusPending:
		return fmt.Sprintf("%s campaign %s  %s", p.Warn(IconWarn), p.Accent(e.CampaignID), counts)
	case reconcile.StatusFailed:
		return fmt.Sprintf("%s campaign %s  %s", p.Fail(IconFail), p.Accent(e.CampaignID), counts)
	default:
		return fmt.Sprintf("%s campaign %s  %s", p.Muted(IconSkip), p.Accent(e.CampaignID), p.Muted("in sync"))
	}
}

func listIDs(ids []string) string {
	if len(ids) <= MaxListedIDs {
		return strings.Join(ids, ", ")
	}
	return strings.Join(ids[:MaxListedIDs], ", ") + fmt.Sprintf(" … and %d more", len(ids)-MaxListedIDs)
}
