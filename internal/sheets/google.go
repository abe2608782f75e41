package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// GoogleAPI implements API on the Sheets v4 service.
type GoogleAPI struct {
	svc *sheetsapi.Service
}

// NewGoogleAPI builds a Sheets client. An empty credentialsFile uses
// Application Default Credentials. Extra options (endpoint, HTTP client) are
// passed through.
func NewGoogleAPI(ctx context.Context, credentialsFile string, opts ...option.ClientOption) (*GoogleAPI, error) {
	all := []option.ClientOption{option.WithScopes(sheetsapi.SpreadsheetsScope)}
	if credentialsFile != "" {
		all = append(all, option.WithCredentialsFile(credentialsFile))
	}
	all = append(all, opts...)

	svc, err := sheetsapi.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return &GoogleAPI{svc: svc}, nil
}

// SheetTitles returns the titles of all worksheets, in tab order.
func (g *GoogleAPI) SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error) {
	ss, err := g.svc.Spreadsheets.Get(spreadsheetID).
		Fields("sheets.properties.title").
		Context(ctx).
		Do()
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	return titles, nil
}

// ClearRange clears the values in a1Range.
func (g *GoogleAPI) ClearRange(ctx context.Context, spreadsheetID, a1Range string) error {
	_, err := g.svc.Spreadsheets.Values.Clear(spreadsheetID, a1Range, &sheetsapi.ClearValuesRequest{}).
		Context(ctx).
		Do()
	return err
}

// UpdateRange writes values to a1Range as raw strings.
func (g *GoogleAPI) UpdateRange(ctx context.Context, spreadsheetID, a1Range string, values [][]any) error {
	_, err := g.svc.Spreadsheets.Values.Update(spreadsheetID, a1Range, &sheetsapi.ValueRange{
		Range:  a1Range,
		Values: values,
	}).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}
