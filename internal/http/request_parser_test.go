package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"spendhelm/internal/core"
)

func TestParseExpenseFilter(t *testing.T) {
	tests := []struct {
		name    string
		query   url.Values
		wantErr bool
		check   func(t *testing.T, from, to core.Date, category string, limit int)
	}{
		{
			name:  "empty query",
			query: url.Values{},
			check: func(t *testing.T, from, to core.Date, category string, limit int) {
				if !from.IsZero() || !to.IsZero() || category != "" || limit != 0 {
					t.Errorf("expected zero filter")
				}
			},
		},
		{
			name:  "all values provided",
			query: url.Values{"from": {"2024-01-01"}, "to": {"2024-01-31"}, "category": {" Food "}, "limit": {"25"}},
			check: func(t *testing.T, from, to core.Date, category string, limit int) {
				if from.String() != "2024-01-01" || to.String() != "2024-01-31" {
					t.Errorf("range = %s..%s", from, to)
				}
				if category != "Food" {
					t.Errorf("category = %q", category)
				}
				if limit != 25 {
					t.Errorf("limit = %d", limit)
				}
			},
		},
		{name: "invalid date", query: url.Values{"from": {"01/01/2024"}}, wantErr: true},
		{name: "reversed range", query: url.Values{"from": {"2024-02-01"}, "to": {"2024-01-01"}}, wantErr: true},
		{name: "negative limit", query: url.Values{"limit": {"-1"}}, wantErr: true},
		{name: "non numeric offset", query: url.Values{"offset": {"abc"}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseExpenseFilter(tt.query)
			if tt.wantErr {
				if !errors.Is(err, errBadQuery) {
					t.Fatalf("err = %v, want errBadQuery", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			tt.check(t, f.From, f.To, f.Category, f.Limit)
		})
	}
}

func TestParseAggregateFilter(t *testing.T) {
	f, err := ParseAggregateFilter(url.Values{"period_type": {"weekly"}, "start_date": {"2024-03-04"}, "offset": {"10"}})
	if err != nil {
		t.Fatal(err)
	}
	if f.PeriodType != core.PeriodWeekly || f.From.String() != "2024-03-04" || f.Offset != 10 {
		t.Fatalf("filter = %+v", f)
	}

	_, err = ParseAggregateFilter(url.Values{"period_type": {"hourly"}})
	if !errors.Is(err, core.ErrInvalidPeriod) {
		t.Fatalf("err = %v", err)
	}
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"valid", `{"amount": 1.5}`, nil},
		{"empty body", ``, errMalformedBody},
		{"syntax error", `{"amount":`, errMalformedBody},
		{"wrong type", `{"note": 5}`, errMalformedBody},
		{"domain error kept", `{"amount": "abc"}`, core.ErrInvalidAmount},
		{"too large", `{"note":"` + strings.Repeat("x", maxBodyBytes) + `"}`, errMalformedBody},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v struct {
				Amount core.Money `json:"amount"`
				Note   string     `json:"note"`
			}
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			err := decodeJSON(httptest.NewRecorder(), req, &v)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}
}
