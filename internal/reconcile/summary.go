package reconcile

import (
	"fmt"
	"strings"
	"time"
)

func (s *RunSummary) record(r EntityResult) {
	switch r.Status {
	case StatusUpdated:
		s.Updated++
	case StatusSkipped:
		s.Skipped++
	case StatusPending:
		s.Pending++
	case StatusFailed:
		s.Failed++
		s.FailedIDs = append(s.FailedIDs, r.CampaignID)
	}
	s.Entities = append(s.Entities, r)
}

// Processed returns the number of campaigns that reached a final status.
func (s *RunSummary) Processed() int {
	return s.Updated + s.Skipped + s.Failed + s.Pending
}

// Duration is the wall time of the run, zero until it finished.
func (s *RunSummary) Duration() time.Duration {
	if s.Finished.IsZero() {
		return 0
	}
	return s.Finished.Sub(s.Started)
}

// Text renders the summary as the plain-text report sent to operators.
func (s *RunSummary) Text() string {
	var b strings.Builder
	if s.DryRun {
		b.WriteString("Zip code synchronization plan (dry run, no changes applied):\n")
		fmt.Fprintf(&b, "- Campaigns with pending changes: %d\n", s.Pending)
	} else {
		b.WriteString("Zip code synchronization complete:\n")
		fmt.Fprintf(&b, "- Campaigns successfully updated: %d\n", s.Updated)
	}
	fmt.Fprintf(&b, "- Campaigns already in sync (skipped): %d\n", s.Skipped)
	fmt.Fprintf(&b, "- Campaigns with errors during update: %d", s.Failed)
	if len(s.FailedIDs) > 0 {
		fmt.Fprintf(&b, " (%s)", strings.Join(s.FailedIDs, ", "))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "Total active campaigns processed: %d", s.Processed())
	return b.String()
}
