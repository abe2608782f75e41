package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// DetailUnavailableMessage is reported when a partial failure happened but the
// failing operations could not be identified.
const DetailUnavailableMessage = "partial failure occurred, detail unavailable"

// operationsField is the field path element that carries the failing
// operation's position in the request.
const operationsField = "operations"

// rpcStatus is the JSON form of google.rpc.Status as returned in a mutate
// response's partialFailureError.
type rpcStatus struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Details []failureDetail `json:"details"`
}

// failureDetail is one GoogleAdsFailure entry in the status details.
type failureDetail struct {
	Type   string         `json:"@type"`
	Errors []failureError `json:"errors"`
}

type failureError struct {
	Message  string `json:"message"`
	Location struct {
		FieldPathElements []struct {
			FieldName string `json:"fieldName"`
			Index     *int   `json:"index"`
		} `json:"fieldPathElements"`
	} `json:"location"`
}

// Aggregate turns one chunk's mutate response into a MutationOutcome. With
// strict set, a partial-failure payload that cannot be decoded is returned
// as an error instead of being reported as DetailUnavailable.
func Aggregate(resp MutateResponse, strict bool) (MutationOutcome, error) {
	submitted := resp.Submitted
	if submitted == 0 {
		submitted = len(resp.Results)
	}
	out := MutationOutcome{Submitted: submitted}

	if !hasPayload(resp.PartialFailure) {
		out.Success = true
		out.SuccessfulCount = submitted
		return out, nil
	}

	var st rpcStatus
	if err := json.Unmarshal(resp.PartialFailure, &st); err != nil {
		if strict {
			return out, fmt.Errorf("failed to decode partial failure: %w", err)
		}
		return unavailable(out, resp.Results), nil
	}
	if st.Code == 0 && len(st.Details) == 0 {
		out.Success = true
		out.SuccessfulCount = submitted
		return out, nil
	}

	failed := make(map[int]struct{})
	for _, d := range st.Details {
		for _, e := range d.Errors {
			idx, ok := e.operationIndex()
			if !ok || idx < 0 || idx >= submitted {
				continue
			}
			failed[idx] = struct{}{}
			out.Errors = append(out.Errors, OperationError{Index: idx, Message: e.Message})
		}
	}
	if len(failed) == 0 {
		return unavailable(out, resp.Results), nil
	}

	sort.SliceStable(out.Errors, func(i, j int) bool { return out.Errors[i].Index < out.Errors[j].Index })
	out.FailedCount = len(failed)
	out.SuccessfulCount = submitted - out.FailedCount
	return out, nil
}

func (e failureError) operationIndex() (int, bool) {
	for _, el := range e.Location.FieldPathElements {
		if el.FieldName != operationsField {
			continue
		}
		// proto3 JSON may omit a zero index.
		if el.Index == nil {
			return 0, true
		}
		return *el.Index, true
	}
	return 0, false
}

func hasPayload(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// unavailable records an unattributable partial failure. The failed count
// falls back to the number of empty result slots, and is at least one.
func unavailable(out MutationOutcome, results []string) MutationOutcome {
	empty := 0
	for _, r := range results {
		if r == "" {
			empty++
		}
	}
	failed := max(empty, 1)
	if out.Submitted > 0 {
		failed = min(failed, out.Submitted)
	}
	out.DetailUnavailable = true
	out.FailedCount = failed
	out.SuccessfulCount = max(out.Submitted-failed, 0)
	out.Errors = []OperationError{{Index: -1, Message: DetailUnavailableMessage}}
	return out
}
