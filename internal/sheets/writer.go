// Package sheets mirrors the synchronized criterion ids into a spreadsheet
// column so downstream reports see the same list the campaigns target.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/zipsync/zipsync/internal/retry"
)

// Defaults for the target column.
const (
	DefaultColumn   = "A"
	DefaultStartRow = 2

	// MaxAttempts bounds retries of quota and availability errors.
	MaxAttempts = 5
)

// API is the slice of the Sheets service the writer uses.
type API interface {
	SheetTitles(ctx context.Context, spreadsheetID string) ([]string, error)
	ClearRange(ctx context.Context, spreadsheetID, a1Range string) error
	UpdateRange(ctx context.Context, spreadsheetID, a1Range string, values [][]any) error
}

// Writer overwrites one column in every worksheet of a spreadsheet.
type Writer struct {
	api           API
	spreadsheetID string
	column        string
	startRow      int
	policy        retry.Policy
	logger        *zap.Logger
}

// Option configures a Writer.
type Option func(*Writer)

// WithColumn sets the column letter(s) and the first row to write.
func WithColumn(column string, startRow int) Option {
	return func(w *Writer) {
		if column != "" {
			w.column = strings.ToUpper(column)
		}
		if startRow > 0 {
			w.startRow = startRow
		}
	}
}

// WithRetryPolicy replaces the retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(w *Writer) { w.policy = p }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.logger = l
		}
	}
}

// NewWriter creates a writer for spreadsheet, given as an id or a full
// docs.google.com URL.
func NewWriter(api API, spreadsheet string, opts ...Option) *Writer {
	w := &Writer{
		api:           api,
		spreadsheetID: SpreadsheetID(spreadsheet),
		column:        DefaultColumn,
		startRow:      DefaultStartRow,
		policy:        retry.Policy{Attempts: MaxAttempts, Initial: time.Second},
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

var spreadsheetURLPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// SpreadsheetID extracts the id from a spreadsheet URL, or returns s as is.
func SpreadsheetID(s string) string {
	if m := spreadsheetURLPattern.FindStringSubmatch(s); len(m) == 2 {
		return m[1]
	}
	return strings.TrimSpace(s)
}

// WriteColumn replaces the column contents of every worksheet with values,
// one per row starting at the configured row. Rows below the new values are
// cleared.
func (w *Writer) WriteColumn(ctx context.Context, values []string) error {
	var titles []string
	err := w.do(ctx, "list worksheets", func(ctx context.Context) error {
		var err error
		titles, err = w.api.SheetTitles(ctx, w.spreadsheetID)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to list worksheets: %w", err)
	}

	rows := make([][]any, len(values))
	for i, v := range values {
		rows[i] = []any{v}
	}

	for _, title := range titles {
		clearRange := w.openRange(title)
		if err := w.do(ctx, "clear", func(ctx context.Context) error {
			return w.api.ClearRange(ctx, w.spreadsheetID, clearRange)
		}); err != nil {
			return fmt.Errorf("failed to clear %s: %w", clearRange, err)
		}
		if len(rows) == 0 {
			continue
		}
		updateRange := w.boundedRange(title, len(rows))
		if err := w.do(ctx, "update", func(ctx context.Context) error {
			return w.api.UpdateRange(ctx, w.spreadsheetID, updateRange, rows)
		}); err != nil {
			return fmt.Errorf("failed to update %s: %w", updateRange, err)
		}
		w.logger.Info("worksheet column updated",
			zap.String("worksheet", title),
			zap.String("range", updateRange),
			zap.Int("rows", len(rows)))
	}
	return nil
}

// openRange is the column from the start row to the bottom of the sheet.
func (w *Writer) openRange(title string) string {
	return fmt.Sprintf("%s!%s%d:%s", quoteSheet(title), w.column, w.startRow, w.column)
}

func (w *Writer) boundedRange(title string, n int) string {
	return fmt.Sprintf("%s!%s%d:%s%d", quoteSheet(title), w.column, w.startRow, w.column, w.startRow+n-1)
}

func quoteSheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

func (w *Writer) do(ctx context.Context, op string, fn func(context.Context) error) error {
	policy := w.policy
	policy.Notify = func(attempt int, err error, wait time.Duration) {
		w.logger.Warn("spreadsheet call failed, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	return retry.Do(ctx, policy, func(ctx context.Context) error {
		err := fn(ctx)
		if err != nil && !Retryable(err) {
			return retry.Permanent(err)
		}
		return err
	})
}

// Retryable reports whether err is a quota (RESOURCE_EXHAUSTED) or
// availability (UNAVAILABLE, internal) error worth another attempt.
func Retryable(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	switch gerr.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	default:
		return false
	}
}
