package normalize_test

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/dom/wartracker/internal/normalize"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *string
	}{
		{name: "nil", in: nil},
		{name: "empty", in: ""},
		{name: "whitespace", in: " \t\n "},
		{name: "number is not text", in: 42.0},
		{name: "bool is not text", in: true},
		{name: "trimmed", in: "  Mira \n", want: strPtr("Mira")},
		{name: "inner spaces kept", in: "Chapter Approved 2025", want: strPtr("Chapter Approved 2025")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.Text(tt.in))
		})
	}
}

func TestText_Idempotent(t *testing.T) {
	inputs := []any{"", "  a  ", "b", nil, 3, "\tc d\n"}
	for _, in := range inputs {
		once := normalize.Text(in)
		var twice *string
		if once != nil {
			twice = normalize.Text(*once)
		}
		assert.Equal(t, once, twice, "input %#v", in)
	}
}

func TestNumber(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{name: "nil", in: nil},
		{name: "empty string", in: ""},
		{name: "blank string", in: "   "},
		{name: "non numeric", in: "abc"},
		{name: "bool", in: true},
		{name: "NaN", in: math.NaN()},
		{name: "infinity", in: math.Inf(1)},
		{name: "infinity string", in: "Inf"},
		{name: "json float", in: 55.0, want: floatPtr(55)},
		{name: "json number", in: json.Number("12.5"), want: floatPtr(12.5)},
		{name: "int", in: 7, want: floatPtr(7)},
		{name: "numeric string", in: " 40 ", want: floatPtr(40)},
		{name: "negative string", in: "-3.25", want: floatPtr(-3.25)},
		{name: "exponent string", in: "1e3", want: floatPtr(1000)},
		{name: "hex integer string", in: "0x10"},
		{name: "binary literal string", in: "0b1"},
		{name: "hex float string", in: "0x1p4", want: floatPtr(16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.Number(tt.in))
		})
	}
}

func TestInteger(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *int
	}{
		{name: "absent", in: ""},
		{name: "whole", in: 2000.0, want: intPtr(2000)},
		{name: "truncates positive", in: 40.9, want: intPtr(40)},
		{name: "truncates negative toward zero", in: "-2.7", want: intPtr(-2)},
		{name: "too large", in: 1e300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.Integer(tt.in))
		})
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want time.Time
		nil  bool
	}{
		{name: "absent", in: "  ", nil: true},
		{name: "not text", in: 20250301, nil: true},
		{name: "garbage", in: "next tuesday-ish", nil: true},
		{name: "date only", in: "2025-03-01", want: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		{name: "rfc3339", in: "2025-03-01T18:30:00Z", want: time.Date(2025, 3, 1, 18, 30, 0, 0, time.UTC)},
		{name: "offset normalized to utc", in: "2025-03-01T18:30:00+02:00", want: time.Date(2025, 3, 1, 16, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalize.Date(tt.in)
			if tt.nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %s", got)
		})
	}
}

func TestLinkList(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{name: "nil", in: nil, want: []string{}},
		{name: "number", in: 3.0, want: []string{}},
		{name: "blank line dropped", in: "a\nb\n\nc", want: []string{"a", "b", "c"}},
		{name: "crlf and padding", in: " a \r\n\r\n b ", want: []string{"a", "b"}},
		{name: "duplicates kept", in: "a\na", want: []string{"a", "a"}},
		{name: "list", in: []any{" x ", "", 4.0, "y", "x"}, want: []string{"x", "y", "x"}},
		{name: "string slice", in: []string{"p", "  "}, want: []string{"p"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.LinkList(tt.in))
		})
	}
}

func TestPresent(t *testing.T) {
	body := map[string]any{"notes": nil, "opponent": "Jun"}
	assert.True(t, normalize.Present(body, "notes"))
	assert.True(t, normalize.Present(body, "opponent"))
	assert.False(t, normalize.Present(body, "selfScore"))
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }
func intPtr(i int) *int           { return &i }
