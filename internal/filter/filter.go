// Package filter selects the zip codes whose feed price clears the threshold.
package filter

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/zipsync/zipsync/internal/feed"
)

// Defaults for the feed layout.
const (
	DefaultPriceField = "max_call_price"
	DefaultIDField    = "zip_code"
	DefaultThreshold  = 20.0
)

// Options names the fields to read and the price to beat.
type Options struct {
	PriceField string
	IDField    string
	Threshold  float64
}

// DefaultOptions returns the stock feed layout.
func DefaultOptions() Options {
	return Options{
		PriceField: DefaultPriceField,
		IDField:    DefaultIDField,
		Threshold:  DefaultThreshold,
	}
}

func (o Options) withDefaults() Options {
	if o.PriceField == "" {
		o.PriceField = DefaultPriceField
	}
	if o.IDField == "" {
		o.IDField = DefaultIDField
	}
	return o
}

// PriceAbove reports whether entry[field] parses as a number strictly greater
// than threshold. Anything unparsable is simply not above.
func PriceAbove(entry feed.Entry, field string, threshold float64) bool {
	v, ok := number(entry[field])
	return ok && v > threshold
}

// Select returns, in feed order, the identifiers of entries priced above the
// threshold. Entries without an identifier are dropped.
func Select(entries []feed.Entry, opts Options) []string {
	opts = opts.withDefaults()
	var ids []string
	for _, e := range entries {
		if !PriceAbove(e, opts.PriceField, opts.Threshold) {
			continue
		}
		id := identifier(e[opts.IDField])
		if id == "" {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func number(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case json.Number:
		n, err := strconv.ParseFloat(string(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		f = n
	default:
		return 0, false
	}
	if math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

func identifier(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return strconv.FormatInt(n, 10)
		}
		if f, err := x.Float64(); err == nil {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	default:
		return ""
	}
}
