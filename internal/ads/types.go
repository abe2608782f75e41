package ads

import (
	"encoding/json"
	"time"
)

// API configuration constants.
const (
	// DefaultAPIEndpoint is the Google Ads REST base URL, version included.
	DefaultAPIEndpoint = "https://googleads.googleapis.com/v20"

	// Scope is the OAuth2 scope required by the Google Ads API.
	Scope = "https://www.googleapis.com/auth/adwords"

	// DefaultTimeout is the per-request HTTP timeout.
	DefaultTimeout = 60 * time.Second

	// MaxRetries is the number of attempts for a transient failure.
	MaxRetries = 5

	// RetryDelay is the wait before the first retry; later waits double.
	RetryDelay = time.Second

	// MaxIDsPerQuery bounds the campaign ids placed in one IN (...) clause.
	MaxIDsPerQuery = 500

	// maxResponseSize caps a single response body (50 MB).
	maxResponseSize = 50 * 1024 * 1024
)

const activeCampaignsQuery = `SELECT campaign.id FROM campaign WHERE campaign.status = 'ENABLED' ORDER BY campaign.id`

const locationCriteriaQuery = `SELECT campaign.id, campaign_criterion.resource_name, campaign_criterion.criterion_id, campaign_criterion.location.geo_target_constant ` +
	`FROM campaign_criterion WHERE campaign_criterion.type = 'LOCATION' AND campaign.id IN (%s)`

// searchRequest is the body of googleAds:search.
type searchRequest struct {
	Query     string `json:"query"`
	PageToken string `json:"pageToken,omitempty"`
}

// searchResponse is one page of googleAds:search results.
type searchResponse struct {
	Results       []searchRow `json:"results"`
	NextPageToken string      `json:"nextPageToken"`
}

// searchRow holds the resources selected by a query. Unselected resources
// are absent.
type searchRow struct {
	Campaign          *Campaign          `json:"campaign,omitempty"`
	CampaignCriterion *CampaignCriterion `json:"campaignCriterion,omitempty"`
}

// Campaign is the subset of the campaign resource zipsync reads. Int64
// fields arrive as JSON strings.
type Campaign struct {
	ResourceName string      `json:"resourceName,omitempty"`
	ID           json.Number `json:"id"`
}

// CampaignCriterion is the subset of a location campaign criterion zipsync
// reads and writes.
type CampaignCriterion struct {
	ResourceName string        `json:"resourceName,omitempty"`
	Campaign     string        `json:"campaign,omitempty"`
	CriterionID  json.Number   `json:"criterionId,omitempty"`
	Location     *LocationInfo `json:"location,omitempty"`
	Negative     *bool         `json:"negative,omitempty"`
}

// LocationInfo points a criterion at a geo target constant.
type LocationInfo struct {
	GeoTargetConstant string `json:"geoTargetConstant"`
}

// criterionOperation is one entry of a campaignCriteria:mutate request.
// Exactly one of Create or Remove is set.
type criterionOperation struct {
	Create *CampaignCriterion `json:"create,omitempty"`
	Remove string             `json:"remove,omitempty"`
}

type mutateRequest struct {
	Operations     []criterionOperation `json:"operations"`
	PartialFailure bool                 `json:"partialFailure"`
	ValidateOnly   bool                 `json:"validateOnly,omitempty"`
}

type mutateResponse struct {
	PartialFailureError json.RawMessage `json:"partialFailureError,omitempty"`
	Results             []struct {
		ResourceName string `json:"resourceName"`
	} `json:"results"`
}

// apiError is the error envelope returned for failed requests.
type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}
