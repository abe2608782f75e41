package reconcile

import (
	"context"
	"encoding/json"
	"time"
)

// OpKind distinguishes criterion creation from removal.
type OpKind int

const (
	OpAdd OpKind = iota
	OpRemove
)

func (k OpKind) String() string {
	switch k {
	case OpAdd:
		return "add"
	case OpRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// Operation is a single create or remove against one campaign. Removes carry
// the resource name of the live criterion; adds only need the criterion id.
type Operation struct {
	Kind         OpKind
	CriterionID  string
	ResourceName string
}

// OperationError attributes a failure to the operation at Index within the
// chunk that was submitted.
type OperationError struct {
	Index   int
	Message string
}

// MutationOutcome is the aggregated result of one submitted chunk.
type MutationOutcome struct {
	Success           bool
	Submitted         int
	SuccessfulCount   int
	FailedCount       int
	Errors            []OperationError
	DetailUnavailable bool
}

// MutateResponse is what a Mutator hands back for one chunk before
// aggregation. Results holds one resource name per submitted operation, empty
// for slots that failed. PartialFailure is the raw partial-failure status, nil
// when every operation succeeded.
type MutateResponse struct {
	Submitted      int
	Results        []string
	PartialFailure json.RawMessage
}

// Directory reads the live location criteria of campaigns.
type Directory interface {
	// ExistingCriteria returns, for every requested campaign, a map of
	// criterion id to the criterion's resource name. The call is all or
	// nothing: partial data must be reported as an error.
	ExistingCriteria(ctx context.Context, campaignIDs []string) (map[string]map[string]string, error)
}

// Mutator writes location criteria. Each call is one remote request carrying
// a whole chunk. Implementations return an error only when the request as a
// whole failed; per-operation failures travel in MutateResponse.
type Mutator interface {
	ApplyAdd(ctx context.Context, campaignID string, criterionIDs []string) (MutateResponse, error)
	ApplyRemove(ctx context.Context, campaignID string, resourceNames []string) (MutateResponse, error)
}

// Status is the final state of one campaign in a run.
type Status string

const (
	StatusUpdated Status = "updated"
	StatusSkipped Status = "skipped"
	StatusFailed  Status = "failed"
	StatusPending Status = "pending"
)

// EntityResult records what happened to one campaign.
type EntityResult struct {
	CampaignID string
	Status     Status
	// ToAdd and ToRemove are the criterion ids planned for this campaign,
	// after test-mode truncation.
	ToAdd    []string
	ToRemove []string
	Outcomes []MutationOutcome
	Err      error
}

// RunSummary accumulates the per-campaign results of one run.
type RunSummary struct {
	Updated   int
	Skipped   int
	Failed    int
	Pending   int
	FailedIDs []string
	Entities  []EntityResult
	DryRun    bool
	Desired   int
	Started   time.Time
	Finished  time.Time
}
