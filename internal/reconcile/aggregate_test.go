package reconcile

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoOfSixFailed = `{
  "code": 3,
  "message": "Multiple errors in 'details'.",
  "details": [{
    "@type": "type.googleapis.com/google.ads.googleads.v20.errors.GoogleAdsFailure",
    "errors": [
      {"message": "Geo target constant is invalid.",
       "location": {"fieldPathElements": [{"fieldName": "operations", "index": 5}, {"fieldName": "create"}]}},
      {"message": "Criterion already exists.",
       "location": {"fieldPathElements": [{"fieldName": "operations", "index": 2}, {"fieldName": "create"}]}}
    ]
  }]
}`

func TestAggregateAttributesFailures(t *testing.T) {
	resp := MutateResponse{
		Submitted:      6,
		Results:        []string{"r0", "r1", "", "r3", "r4", ""},
		PartialFailure: json.RawMessage(twoOfSixFailed),
	}

	out, err := Aggregate(resp, false)
	require.NoError(t, err)

	want := MutationOutcome{
		Success:         false,
		Submitted:       6,
		SuccessfulCount: 4,
		FailedCount:     2,
		Errors: []OperationError{
			{Index: 2, Message: "Criterion already exists."},
			{Index: 5, Message: "Geo target constant is invalid."},
		},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("Aggregate() mismatch (-want +got):\n%s", diff)
	}
}

func TestAggregateNoPayload(t *testing.T) {
	for _, raw := range []json.RawMessage{nil, json.RawMessage("null"), json.RawMessage("  "), json.RawMessage(`{}`)} {
		out, err := Aggregate(MutateResponse{Submitted: 3, Results: []string{"a", "b", "c"}, PartialFailure: raw}, true)
		require.NoError(t, err)
		assert.True(t, out.Success, "payload %q", raw)
		assert.Equal(t, 3, out.SuccessfulCount)
		assert.Zero(t, out.FailedCount)
	}
}

func TestAggregateSubmittedDefaultsToResults(t *testing.T) {
	out, err := Aggregate(MutateResponse{Results: []string{"a", "b"}}, false)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Submitted)
	assert.Equal(t, 2, out.SuccessfulCount)
}

func TestAggregateDuplicateIndexCountsOnce(t *testing.T) {
	raw := `{"code":3,"details":[{"errors":[
	  {"message":"a","location":{"fieldPathElements":[{"fieldName":"operations","index":1}]}},
	  {"message":"b","location":{"fieldPathElements":[{"fieldName":"operations","index":1}]}}]}]}`

	out, err := Aggregate(MutateResponse{Submitted: 3, PartialFailure: json.RawMessage(raw)}, false)
	require.NoError(t, err)
	assert.Equal(t, 1, out.FailedCount)
	assert.Equal(t, 2, out.SuccessfulCount)
	assert.Len(t, out.Errors, 2)
}

func TestAggregateMissingIndexMeansZero(t *testing.T) {
	raw := `{"code":3,"details":[{"errors":[{"message":"bad","location":{"fieldPathElements":[{"fieldName":"operations"}]}}]}]}`

	out, err := Aggregate(MutateResponse{Submitted: 2, PartialFailure: json.RawMessage(raw)}, false)
	require.NoError(t, err)
	assert.Equal(t, []OperationError{{Index: 0, Message: "bad"}}, out.Errors)
	assert.Equal(t, 1, out.FailedCount)
}

func TestAggregateDetailUnavailable(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		results    []string
		wantFailed int
	}{
		{"undecodable", `not json`, []string{"a", "", ""}, 2},
		{"no indices", `{"code":3,"message":"oops","details":[{"errors":[{"message":"x"}]}]}`, []string{"a", "b", "c"}, 1},
		{"index out of range", `{"code":3,"details":[{"errors":[{"message":"x","location":{"fieldPathElements":[{"fieldName":"operations","index":9}]}}]}]}`, []string{"", "", ""}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Aggregate(MutateResponse{Submitted: 3, Results: tt.results, PartialFailure: json.RawMessage(tt.raw)}, false)
			require.NoError(t, err)
			assert.False(t, out.Success)
			assert.True(t, out.DetailUnavailable)
			assert.Equal(t, tt.wantFailed, out.FailedCount)
			assert.Equal(t, 3-tt.wantFailed, out.SuccessfulCount)
			require.Len(t, out.Errors, 1)
			assert.Equal(t, DetailUnavailableMessage, out.Errors[0].Message)
		})
	}
}

func TestAggregateStrictRejectsUndecodable(t *testing.T) {
	_, err := Aggregate(MutateResponse{Submitted: 1, PartialFailure: json.RawMessage(`<html>`)}, true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to decode partial failure")
}
