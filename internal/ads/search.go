package ads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/zipsync/zipsync/internal/syncerr"
)

// search runs a GAQL query and calls fn for every row across all pages.
func (c *Client) search(ctx context.Context, query string, fn func(searchRow) error) error {
	req := searchRequest{Query: query}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := c.doRequest(ctx, http.MethodPost, c.customerURL("/googleAds:search"), req)
		if err != nil {
			return err
		}
		var page searchResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return fmt.Errorf("failed to parse search response: %w", err)
		}
		for _, row := range page.Results {
			if err := fn(row); err != nil {
				return err
			}
		}
		if page.NextPageToken == "" {
			return nil
		}
		req.PageToken = page.NextPageToken
	}
}

// ActiveCampaignIDs returns the ids of all enabled campaigns, ordered by id.
func (c *Client) ActiveCampaignIDs(ctx context.Context) ([]string, error) {
	var ids []string
	err := c.search(ctx, activeCampaignsQuery, func(row searchRow) error {
		if row.Campaign == nil || row.Campaign.ID == "" {
			return nil
		}
		ids = append(ids, row.Campaign.ID.String())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list active campaigns: %w", err)
	}
	c.log().Info("fetched active campaigns", zap.String("customer_id", c.CustomerID), zap.Int("count", len(ids)))
	return ids, nil
}

// ExistingCriteria implements reconcile.Directory. Every requested campaign
// appears in the result, with an empty map when it has no location criteria.
func (c *Client) ExistingCriteria(ctx context.Context, campaignIDs []string) (map[string]map[string]string, error) {
	out := make(map[string]map[string]string, len(campaignIDs))
	for _, id := range campaignIDs {
		out[id] = make(map[string]string)
	}

	for start := 0; start < len(campaignIDs); start += MaxIDsPerQuery {
		end := min(start+MaxIDsPerQuery, len(campaignIDs))
		query := fmt.Sprintf(locationCriteriaQuery, strings.Join(campaignIDs[start:end], ","))
		err := c.search(ctx, query, func(row searchRow) error {
			if row.Campaign == nil || row.CampaignCriterion == nil {
				return nil
			}
			campaignID := row.Campaign.ID.String()
			m, ok := out[campaignID]
			if !ok {
				return nil
			}
			if criterionID := locationCriterionID(row.CampaignCriterion); criterionID != "" {
				m[criterionID] = row.CampaignCriterion.ResourceName
			}
			return nil
		})
		if err != nil {
			if errors.Is(err, syncerr.ErrUnavailable) {
				return nil, err
			}
			return nil, &syncerr.DirectoryReadError{Targets: len(campaignIDs), Err: err}
		}
	}
	return out, nil
}

// locationCriterionID returns the geo target constant id of a location
// criterion. For location criteria it equals the criterion id.
func locationCriterionID(cc *CampaignCriterion) string {
	if cc.Location != nil && cc.Location.GeoTargetConstant != "" {
		gtc := cc.Location.GeoTargetConstant
		return gtc[strings.LastIndex(gtc, "/")+1:]
	}
	return cc.CriterionID.String()
}
