package ads

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zipsync/zipsync/internal/reconcile"
	"github.com/zipsync/zipsync/internal/retry"
	"github.com/zipsync/zipsync/internal/syncerr"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type instantTimer struct {
	c     chan time.Time
	waits []time.Duration
}

func (t *instantTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Time{}
}
func (t *instantTimer) Stop()               {}
func (t *instantTimer) C() <-chan time.Time { return t.c }

func newTestClient(srv *httptest.Server) *Client {
	c := NewClient("123-456-7890", "111-222-3333", "dev-token").
		WithHTTPClient(srv.Client()).
		WithBaseURL(srv.URL + "/v20")
	c.Retry = retry.Policy{Attempts: 3, Initial: time.Second, Timer: &instantTimer{}}
	return c
}

// decodeBody runs inside handlers, so it must not call FailNow.
func decodeBody(t *testing.T, r *http.Request, v any) {
	t.Helper()
	body, err := io.ReadAll(r.Body)
	if assert.NoError(t, err) {
		assert.NoError(t, json.Unmarshal(body, v))
	}
}

func TestActiveCampaignIDsPaginates(t *testing.T) {
	var pages atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v20/customers/1234567890/googleAds:search", r.URL.Path)
		assert.Equal(t, "dev-token", r.Header.Get("developer-token"))
		assert.Equal(t, "1112223333", r.Header.Get("login-customer-id"))

		var req searchRequest
		decodeBody(t, r, &req)
		assert.Contains(t, req.Query, "campaign.status = 'ENABLED'")

		pages.Add(1)
		switch req.PageToken {
		case "":
			_, _ = w.Write([]byte(`{"results":[{"campaign":{"resourceName":"customers/1234567890/campaigns/11","id":"11"}},{"campaign":{"id":"12"}}],"nextPageToken":"p2"}`))
		case "p2":
			_, _ = w.Write([]byte(`{"results":[{"campaign":{"id":"13"}}]}`))
		default:
			t.Errorf("unexpected page token %q", req.PageToken)
		}
	}))
	defer srv.Close()

	ids, err := newTestClient(srv).ActiveCampaignIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"11", "12", "13"}, ids)
	assert.EqualValues(t, 2, pages.Load())
}

func TestExistingCriteria(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req searchRequest
		decodeBody(t, r, &req)
		assert.Contains(t, req.Query, "campaign_criterion.type = 'LOCATION'")
		assert.Contains(t, req.Query, "campaign.id IN (11,12,13)")
		_, _ = w.Write([]byte(`{"results":[
		  {"campaign":{"id":"11"},"campaignCriterion":{"resourceName":"customers/1234567890/campaignCriteria/11~9012345","location":{"geoTargetConstant":"geoTargetConstants/9012345"}}},
		  {"campaign":{"id":"11"},"campaignCriterion":{"resourceName":"customers/1234567890/campaignCriteria/11~9012346","criterionId":"9012346"}},
		  {"campaign":{"id":"12"},"campaignCriterion":{"resourceName":"customers/1234567890/campaignCriteria/12~9012345","location":{"geoTargetConstant":"geoTargetConstants/9012345"}}},
		  {"campaign":{"id":"99"},"campaignCriterion":{"resourceName":"customers/1234567890/campaignCriteria/99~1","criterionId":"1"}}
		]}`))
	}))
	defer srv.Close()

	got, err := newTestClient(srv).ExistingCriteria(context.Background(), []string{"11", "12", "13"})
	require.NoError(t, err)

	want := map[string]map[string]string{
		"11": {
			"9012345": "customers/1234567890/campaignCriteria/11~9012345",
			"9012346": "customers/1234567890/campaignCriteria/11~9012346",
		},
		"12": {"9012345": "customers/1234567890/campaignCriteria/12~9012345"},
		"13": {},
	}
	assert.Equal(t, want, got)
}

func TestExistingCriteriaFailureIsDirectoryReadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":400,"message":"Invalid query.","status":"INVALID_ARGUMENT"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).ExistingCriteria(context.Background(), []string{"11"})
	var dre *syncerr.DirectoryReadError
	require.ErrorAs(t, err, &dre)
	assert.Contains(t, err.Error(), "INVALID_ARGUMENT: Invalid query.")
}

func TestUnauthorizedIsUnavailable(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Request had invalid authentication credentials.","status":"UNAUTHENTICATED"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).ExistingCriteria(context.Background(), []string{"11"})
	require.ErrorIs(t, err, syncerr.ErrUnavailable)
	assert.True(t, syncerr.IsRunFatal(err))
	assert.EqualValues(t, 1, hits.Load())
}

func TestServerErrorsAreRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	ids, err := newTestClient(srv).ActiveCampaignIDs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.EqualValues(t, 3, hits.Load())
}

func TestRetryAfterDelaysNextAttempt(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	timer := &instantTimer{}
	c := newTestClient(srv)
	c.Retry = retry.Policy{Attempts: 3, Initial: time.Millisecond, Timer: timer}

	_, err := c.ActiveCampaignIDs(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, hits.Load())
	assert.Equal(t, []time.Duration{7 * time.Second}, timer.waits)
}

func TestRetriesExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"code":429,"message":"Resource has been exhausted.","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).ActiveCampaignIDs(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries (3) exceeded")
	assert.Contains(t, err.Error(), "RESOURCE_EXHAUSTED")
}

func TestApplyAddBuildsCreateOperations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v20/customers/1234567890/campaignCriteria:mutate", r.URL.Path)

		var req map[string]any
		decodeBody(t, r, &req)
		assert.Equal(t, true, req["partialFailure"])
		_, hasValidate := req["validateOnly"]
		assert.False(t, hasValidate)

		ops, _ := req["operations"].([]any)
		if !assert.Len(t, ops, 2) {
			return
		}
		create := ops[0].(map[string]any)["create"].(map[string]any)
		assert.Equal(t, "customers/1234567890/campaigns/11", create["campaign"])
		assert.Equal(t, "geoTargetConstants/9012345", create["location"].(map[string]any)["geoTargetConstant"])
		assert.Equal(t, false, create["negative"])

		_, _ = w.Write([]byte(`{"results":[{"resourceName":"customers/1234567890/campaignCriteria/11~9012345"},{}],
		  "partialFailureError":{"code":3,"message":"bad","details":[{"@type":"type.googleapis.com/google.ads.googleads.v20.errors.GoogleAdsFailure",
		  "errors":[{"message":"Invalid geo target.","location":{"fieldPathElements":[{"fieldName":"operations","index":1}]}}]}]}}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(srv).ApplyAdd(context.Background(), "11", []string{"9012345", "1"})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Submitted)
	assert.Equal(t, []string{"customers/1234567890/campaignCriteria/11~9012345", ""}, resp.Results)

	out, err := reconcile.Aggregate(resp, true)
	require.NoError(t, err)
	assert.Equal(t, 1, out.FailedCount)
	assert.Equal(t, []reconcile.OperationError{{Index: 1, Message: "Invalid geo target."}}, out.Errors)
}

func TestApplyRemoveValidateOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.True(t, strings.Contains(string(body), `"validateOnly":true`))
		assert.Contains(t, string(body), `{"remove":"customers/1234567890/campaignCriteria/11~9012345"}`)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	c.ValidateOnly = true
	resp, err := c.ApplyRemove(context.Background(), "11", []string{"customers/1234567890/campaignCriteria/11~9012345"})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Submitted)
	assert.Empty(t, resp.PartialFailure)

	out, err := reconcile.Aggregate(resp, false)
	require.NoError(t, err)
	assert.True(t, out.Success)
}

func TestClientSatisfiesEngineInterfaces(t *testing.T) {
	var _ reconcile.Directory = (*Client)(nil)
	var _ reconcile.Mutator = (*Client)(nil)
}
