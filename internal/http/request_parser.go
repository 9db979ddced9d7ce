package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"spendhelm/internal/aggregates"
	"spendhelm/internal/core"
	"spendhelm/internal/storage"
)

const maxBodyBytes = 1 << 20

var (
	errMalformedBody = errors.New("malformed JSON body")
	errBadQuery      = errors.New("invalid query parameter")
)

// decodeJSON reads a single JSON object from the request body into v.
// Domain validation errors raised while unmarshalling (bad amount, bad date)
// keep their identity so they map to 422; syntax problems become
// errMalformedBody.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if core.IsValidation(err) {
			return err
		}
		return fmt.Errorf("%w: %s", errMalformedBody, describeDecodeError(err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unexpected data after object", errMalformedBody)
	}
	return nil
}

func describeDecodeError(err error) string {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var maxErr *http.MaxBytesError
	switch {
	case errors.Is(err, io.EOF):
		return "empty body"
	case errors.As(err, &syntaxErr):
		return fmt.Sprintf("syntax error at offset %d", syntaxErr.Offset)
	case errors.As(err, &typeErr):
		return fmt.Sprintf("field %q has the wrong type", typeErr.Field)
	case errors.As(err, &maxErr):
		return "body too large"
	default:
		return "unreadable body"
	}
}

func queryDate(q url.Values, key string) (core.Date, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, fmt.Errorf("%w: %s", errBadQuery, key)
	}
	return d, nil
}

func queryInt(q url.Values, key string) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s", errBadQuery, key)
	}
	return n, nil
}

// ParseExpenseFilter reads from, to, category, limit and offset.
func ParseExpenseFilter(q url.Values) (storage.ExpenseFilter, error) {
	var (
		f   storage.ExpenseFilter
		err error
	)
	if f.From, err = queryDate(q, "from"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(q, "to"); err != nil {
		return f, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return f, fmt.Errorf("%w: to is before from", errBadQuery)
	}
	f.Category = strings.TrimSpace(q.Get("category"))
	if f.Limit, err = queryInt(q, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(q, "offset"); err != nil {
		return f, err
	}
	return f, nil
}

// ParseAggregateFilter reads user_id, period_type, start_date, end_date,
// limit and offset.
func ParseAggregateFilter(q url.Values) (aggregates.ListFilter, error) {
	var (
		f   aggregates.ListFilter
		err error
	)
	f.UserID = strings.TrimSpace(q.Get("user_id"))
	if raw := strings.TrimSpace(q.Get("period_type")); raw != "" {
		if f.PeriodType, err = core.ParsePeriodType(raw); err != nil {
			return f, err
		}
	}
	if f.From, err = queryDate(q, "start_date"); err != nil {
		return f, err
	}
	if f.To, err = queryDate(q, "end_date"); err != nil {
		return f, err
	}
	if f.Limit, err = queryInt(q, "limit"); err != nil {
		return f, err
	}
	if f.Offset, err = queryInt(q, "offset"); err != nil {
		return f, err
	}
	return f, nil
}
