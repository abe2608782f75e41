package ads

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/zipsync/zipsync/internal/reconcile"
)

func (c *Client) campaignResource(campaignID string) string {
	return "customers/" + c.CustomerID + "/campaigns/" + campaignID
}

func geoTargetConstant(criterionID string) string {
	return "geoTargetConstants/" + criterionID
}

// ApplyAdd creates positive location criteria on a campaign in one request.
func (c *Client) ApplyAdd(ctx context.Context, campaignID string, criterionIDs []string) (reconcile.MutateResponse, error) {
	ops := make([]criterionOperation, len(criterionIDs))
	negative := false
	for i, id := range criterionIDs {
		ops[i] = criterionOperation{Create: &CampaignCriterion{
			Campaign: c.campaignResource(campaignID),
			Location: &LocationInfo{GeoTargetConstant: geoTargetConstant(id)},
			Negative: &negative,
		}}
	}
	return c.mutate(ctx, campaignID, ops)
}

// ApplyRemove removes campaign criteria by resource name in one request.
func (c *Client) ApplyRemove(ctx context.Context, campaignID string, resourceNames []string) (reconcile.MutateResponse, error) {
	ops := make([]criterionOperation, len(resourceNames))
	for i, rn := range resourceNames {
		ops[i] = criterionOperation{Remove: rn}
	}
	return c.mutate(ctx, campaignID, ops)
}

// mutate submits ops with partial failure enabled so one bad operation does
// not sink the others.
func (c *Client) mutate(ctx context.Context, campaignID string, ops []criterionOperation) (reconcile.MutateResponse, error) {
	req := mutateRequest{
		Operations:     ops,
		PartialFailure: true,
		ValidateOnly:   c.ValidateOnly,
	}
	body, err := c.doRequest(ctx, http.MethodPost, c.customerURL("/campaignCriteria:mutate"), req)
	if err != nil {
		return reconcile.MutateResponse{}, fmt.Errorf("failed to mutate criteria for campaign %s: %w", campaignID, err)
	}

	var resp mutateResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return reconcile.MutateResponse{}, fmt.Errorf("failed to parse mutate response: %w", err)
	}

	out := reconcile.MutateResponse{
		Submitted:      len(ops),
		Results:        make([]string, len(resp.Results)),
		PartialFailure: resp.PartialFailureError,
	}
	for i, r := range resp.Results {
		out.Results[i] = r.ResourceName
	}
	c.log().Debug("mutate request complete",
		zap.String("campaign_id", campaignID),
		zap.Int("operations", len(ops)),
		zap.Int("results", len(resp.Results)),
		zap.Bool("partial_failure", len(resp.PartialFailureError) > 0))
	return out, nil
}
