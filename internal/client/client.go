// Package client is a typed Go client for the SpendHelm JSON API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"spendhelm/internal/analytics"
	"spendhelm/internal/core"
)

// ErrNotLoggedIn is returned by authenticated calls when no token is stored.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client calls the API on behalf of one user.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	now        func() time.Time
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a client for baseURL. A nil store keeps the token in memory.
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if tokens == nil {
		tokens = NewMemoryTokenStore()
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
		tokens:     tokens,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, authenticated bool) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authenticated {
		token, err := c.tokens.Load()
		if err != nil {
			return err
		}
		if token == "" {
			return ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
	}
	apiErr.StatusCode = resp.StatusCode
	return apiErr
}

// Register creates an account and stores the returned token.
func (c *Client) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	var res AuthResult
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", nil, in, &res, false); err != nil {
		return res, err
	}
	return res, c.tokens.Save(res.Token, res.ExpiresAt)
}

// Login signs in and stores the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var res AuthResult
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, body, &res, false); err != nil {
		return res, err
	}
	return res, c.tokens.Save(res.Token, res.ExpiresAt)
}

// Logout forgets the stored token. Tokens are stateless so the server is
// not contacted.
func (c *Client) Logout() error {
	return c.tokens.Clear()
}

type Validation struct {
	Valid   bool   `json:"valid"`
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

func (c *Client) Validate(ctx context.Context) (Validation, error) {
	var v Validation
	err := c.do(ctx, http.MethodGet, "/api/auth/validate", nil, nil, &v, true)
	return v, err
}

func (c *Client) Me(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, nil, &p, true)
	return p, err
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	body := map[string]string{"current_password": current, "new_password": next}
	return c.do(ctx, http.MethodPost, "/api/auth/change-password", nil, body, nil, true)
}

func (c *Client) Preferences(ctx context.Context) (Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodGet, "/api/user/preferences", nil, nil, &p, true)
	return p, err
}

func (c *Client) UpdatePreferences(ctx context.Context, u PreferencesUpdate) (Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodPut, "/api/user/preferences", nil, u, &p, true)
	return p, err
}

// ExpenseQuery filters ListExpenses. Zero values are omitted.
type ExpenseQuery struct {
	From     core.Date
	To       core.Date
	Category string
	Limit    int
	Offset   int
}

func (q ExpenseQuery) values() url.Values {
	v := url.Values{}
	if !q.From.IsZero() {
		v.Set("from", q.From.String())
	}
	if !q.To.IsZero() {
		v.Set("to", q.To.String())
	}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	return v
}

func (c *Client) ListExpenses(ctx context.Context, q ExpenseQuery) ([]core.Expense, error) {
	var res struct {
		Expenses []core.Expense `json:"expenses"`
	}
	err := c.do(ctx, http.MethodGet, "/api/expenses", q.values(), nil, &res, true)
	return res.Expenses, err
}

func (c *Client) CreateExpense(ctx context.Context, in ExpenseInput) (core.Expense, error) {
	var e core.Expense
	err := c.do(ctx, http.MethodPost, "/api/expenses", nil, in, &e, true)
	return e, err
}

func (c *Client) GetExpense(ctx context.Context, id string) (core.Expense, error) {
	var e core.Expense
	err := c.do(ctx, http.MethodGet, "/api/expenses/"+url.PathEscape(id), nil, nil, &e, true)
	return e, err
}

func (c *Client) UpdateExpense(ctx context.Context, id string, u ExpenseUpdate) (core.Expense, error) {
	var e core.Expense
	err := c.do(ctx, http.MethodPut, "/api/expenses/"+url.PathEscape(id), nil, u, &e, true)
	return e, err
}

func (c *Client) DeleteExpense(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/expenses/"+url.PathEscape(id), nil, nil, nil, true)
}

func (c *Client) ListCategories(ctx context.Context) ([]core.Category, error) {
	var cats []core.Category
	err := c.do(ctx, http.MethodGet, "/api/categories", nil, nil, &cats, true)
	return cats, err
}

func (c *Client) CreateCategory(ctx context.Context, in CategoryInput) (core.Category, error) {
	var cat core.Category
	err := c.do(ctx, http.MethodPost, "/api/categories", nil, in, &cat, true)
	return cat, err
}

func (c *Client) DeleteCategory(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/categories/"+url.PathEscape(id), nil, nil, nil, true)
}

// Analytics returns the report computed by the server.
func (c *Client) Analytics(ctx context.Context, period string) (analytics.Report, error) {
	var r analytics.Report
	err := c.do(ctx, http.MethodGet, "/api/analytics", url.Values{"period": {period}}, nil, &r, true)
	return r, err
}

// AggregateQuery filters ListAggregates. Zero values are omitted.
type AggregateQuery struct {
	UserID     string
	PeriodType core.PeriodType
	From       core.Date
	To         core.Date
	Limit      int
	Offset     int
}

func (c *Client) ListAggregates(ctx context.Context, q AggregateQuery) ([]core.Aggregate, error) {
	v := url.Values{}
	if q.UserID != "" {
		v.Set("user_id", q.UserID)
	}
	if q.PeriodType != "" {
		v.Set("period_type", string(q.PeriodType))
	}
	if !q.From.IsZero() {
		v.Set("start_date", q.From.String())
	}
	if !q.To.IsZero() {
		v.Set("end_date", q.To.String())
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	var res struct {
		Aggregates []core.Aggregate `json:"aggregates"`
	}
	err := c.do(ctx, http.MethodGet, "/api/aggregates", v, nil, &res, true)
	return res.Aggregates, err
}
