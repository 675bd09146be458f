// Package normalize turns loosely-typed request values into optional typed
// values. None of the functions fail: unusable input maps to "absent" (nil).
package normalize

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// Text returns the trimmed string, or nil when v is not a string or is blank.
func Text(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Number coerces v to a finite float64.
func Number(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return nil
		}
		f = parsed
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return nil
		}
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// Integer is Number truncated toward zero.
func Integer(v any) *int {
	f := Number(v)
	if f == nil {
		return nil
	}
	t := math.Trunc(*f)
	if t < float64(math.MinInt64) || t >= float64(math.MaxInt64) {
		return nil
	}
	i := int(int64(t))
	return &i
}

// Date parses any common date or date-time layout. Values without a zone are
// read as UTC.
func Date(v any) *time.Time {
	s := Text(v)
	if s == nil {
		return nil
	}
	t, err := dateparse.ParseIn(*s, time.UTC)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}

// LinkList accepts a list or a newline-separated block of text. Entries are
// trimmed and blank ones dropped; order and duplicates are kept.
func LinkList(v any) []string {
	var raw []string
	switch l := v.(type) {
	case string:
		raw = strings.Split(strings.ReplaceAll(l, "\r\n", "\n"), "\n")
	case []string:
		raw = l
	case []any:
		raw = make([]string, 0, len(l))
		for _, item := range l {
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			}
		}
	}

	links := make([]string, 0, len(raw))
	for _, s := range raw {
		if s = strings.TrimSpace(s); s != "" {
			links = append(links, s)
		}
	}
	return links
}

// Present reports whether a sparse body supplied key, even as null.
func Present(body map[string]any, key string) bool {
	_, ok := body[key]
	return ok
}
