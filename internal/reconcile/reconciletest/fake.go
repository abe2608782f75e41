// Package reconciletest provides an in-memory campaign account that
// implements reconcile.Directory and reconcile.Mutator for tests.
package reconciletest

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/zipsync/zipsync/internal/reconcile"
)

// Call records one mutate request.
type Call struct {
	Kind       reconcile.OpKind
	CampaignID string
	Items      []string
}

// Account is a fake advertising account. Configure the failure hooks before
// handing it to an engine.
type Account struct {
	mu       sync.Mutex
	criteria map[string]map[string]string

	calls     []Call
	readCalls int

	// DirectoryErr is returned by ExistingCriteria when set.
	DirectoryErr error
	// Omit leaves campaigns out of the ExistingCriteria result.
	Omit map[string]bool
	// Errors makes every mutate request for a campaign fail with the error.
	Errors map[string]error
	// Reject fails individual operations: campaign -> criterion id -> message.
	// Rejected operations are reported through a partial-failure payload and
	// not applied.
	Reject map[string]map[string]string
	// RawPartialFailure replaces the generated payload for a campaign,
	// e.g. to simulate an undecodable response.
	RawPartialFailure map[string]json.RawMessage
	// Panic makes mutate requests for a campaign panic with the value.
	Panic map[string]any
}

// NewAccount returns an empty account.
func NewAccount() *Account {
	return &Account{criteria: make(map[string]map[string]string)}
}

// ResourceName is the handle the fake assigns to a campaign criterion.
func ResourceName(campaignID, criterionID string) string {
	return fmt.Sprintf("customers/0/campaignCriteria/%s~%s", campaignID, criterionID)
}

// Seed registers a campaign with the given live criteria.
func (a *Account) Seed(campaignID string, criterionIDs ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	m, ok := a.criteria[campaignID]
	if !ok {
		m = make(map[string]string)
		a.criteria[campaignID] = m
	}
	for _, id := range criterionIDs {
		m[id] = ResourceName(campaignID, id)
	}
}

// SeedRaw registers a criterion with an explicit resource name, which may
// be empty.
func (a *Account) SeedRaw(campaignID, criterionID, resourceName string) {
	a.Seed(campaignID)
	a.mu.Lock()
	defer a.mu.Unlock()
	a.criteria[campaignID][criterionID] = resourceName
}

// Criteria returns a campaign's live criterion ids, sorted.
func (a *Account) Criteria(campaignID string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.criteria[campaignID]))
	for id := range a.criteria[campaignID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Calls returns the mutate requests received so far.
func (a *Account) Calls() []Call {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Call(nil), a.calls...)
}

// ReadCalls returns how many times ExistingCriteria was called.
func (a *Account) ReadCalls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.readCalls
}

// ResetCalls forgets recorded requests.
func (a *Account) ResetCalls() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = nil
	a.readCalls = 0
}

// ExistingCriteria implements reconcile.Directory.
func (a *Account) ExistingCriteria(_ context.Context, campaignIDs []string) (map[string]map[string]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.readCalls++
	if a.DirectoryErr != nil {
		return nil, a.DirectoryErr
	}
	out := make(map[string]map[string]string, len(campaignIDs))
	for _, id := range campaignIDs {
		if a.Omit[id] {
			continue
		}
		m := make(map[string]string, len(a.criteria[id]))
		for c, rn := range a.criteria[id] {
			m[c] = rn
		}
		out[id] = m
	}
	return out, nil
}

// ApplyAdd implements reconcile.Mutator.
func (a *Account) ApplyAdd(ctx context.Context, campaignID string, criterionIDs []string) (reconcile.MutateResponse, error) {
	return a.apply(ctx, reconcile.OpAdd, campaignID, criterionIDs)
}

// ApplyRemove implements reconcile.Mutator.
func (a *Account) ApplyRemove(ctx context.Context, campaignID string, resourceNames []string) (reconcile.MutateResponse, error) {
	return a.apply(ctx, reconcile.OpRemove, campaignID, resourceNames)
}

func (a *Account) apply(ctx context.Context, kind reconcile.OpKind, campaignID string, items []string) (reconcile.MutateResponse, error) {
	a.mu.Lock()
	a.calls = append(a.calls, Call{Kind: kind, CampaignID: campaignID, Items: append([]string(nil), items...)})
	panicValue, shouldPanic := a.Panic[campaignID]
	a.mu.Unlock()

	if shouldPanic {
		panic(panicValue)
	}
	if err := ctx.Err(); err != nil {
		return reconcile.MutateResponse{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.Errors[campaignID]; err != nil {
		return reconcile.MutateResponse{}, err
	}

	resp := reconcile.MutateResponse{Submitted: len(items), Results: make([]string, len(items))}
	failures := make(map[int]string)
	live, ok := a.criteria[campaignID]
	if !ok {
		live = make(map[string]string)
		a.criteria[campaignID] = live
	}
	for i, item := range items {
		criterionID := item
		if kind == reconcile.OpRemove {
			criterionID = item[strings.LastIndex(item, "~")+1:]
		}
		if msg, rejected := a.Reject[campaignID][criterionID]; rejected {
			failures[i] = msg
			continue
		}
		switch kind {
		case reconcile.OpAdd:
			live[criterionID] = ResourceName(campaignID, criterionID)
			resp.Results[i] = live[criterionID]
		case reconcile.OpRemove:
			delete(live, criterionID)
			resp.Results[i] = item
		}
	}
	if raw, ok := a.RawPartialFailure[campaignID]; ok {
		resp.PartialFailure = raw
	} else if len(failures) > 0 {
		resp.PartialFailure = PartialFailure(failures)
	}
	return resp, nil
}

// PartialFailure builds a partialFailureError payload failing the operations
// at the given indices. It returns nil for no failures.
func PartialFailure(failures map[int]string) json.RawMessage {
	if len(failures) == 0 {
		return nil
	}
	indices := make([]int, 0, len(failures))
	for i := range failures {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	type element struct {
		FieldName string `json:"fieldName"`
		Index     *int   `json:"index,omitempty"`
	}
	type failure struct {
		Message  string `json:"message"`
		Location struct {
			FieldPathElements []element `json:"fieldPathElements"`
		} `json:"location"`
	}
	errs := make([]failure, 0, len(indices))
	for _, i := range indices {
		var f failure
		f.Message = failures[i]
		f.Location.FieldPathElements = []element{{FieldName: "operations", Index: &i}, {FieldName: "create"}}
		errs = append(errs, f)
	}
	status := map[string]any{
		"code":    3,
		"message": "Multiple errors in 'details'. First error: " + failures[indices[0]],
		"details": []map[string]any{{
			"@type":  "type.googleapis.com/google.ads.googleads.v20.errors.GoogleAdsFailure",
			"errors": errs,
		}},
	}
	raw, _ := json.Marshal(status)
	return raw
}
