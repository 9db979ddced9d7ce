package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"spendhelm/internal/aggregates"
	"spendhelm/internal/auth"
	"spendhelm/internal/core"
	api "spendhelm/internal/http"
	"spendhelm/internal/services"
	"spendhelm/internal/storage"
)

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "cli.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	tokens := auth.NewTokenManager("0123456789abcdef0123456789abcdef", time.Hour, "test")
	authSvc := services.NewAuthService(repo, tokens, nil)
	authSvc.BcryptCost = bcrypt.MinCost
	prefs := services.NewPreferenceService(repo)
	expenses := services.NewExpenseService(repo, nil, aggregates.NewManager(repo, nil), nil, nil)

	srv := api.NewServer(api.Services{
		Auth:        authSvc,
		Expenses:    expenses,
		Categories:  services.NewCategoryService(repo, nil),
		Preferences: prefs,
		Analytics:   services.NewAnalyticsService(expenses, repo, prefs, nil),
		Aggregates:  aggregates.NewService(repo),
		Tokens:      tokens,
		Ready:       repo,
	}, api.Options{RateLimitPerMinute: 1000})

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Shutdown(context.Background())
	})
	return ts
}

type harness struct {
	t         *testing.T
	url       string
	tokenFile string
}

func (h harness) run(stdin string, args ...string) (string, error) {
	h.t.Helper()
	var out bytes.Buffer
	root := newRootCmd(&out, strings.NewReader(stdin))
	root.SetArgs(append([]string{"--api-url", h.url, "--token-file", h.tokenFile}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (h harness) mustRun(args ...string) string {
	h.t.Helper()
	out, err := h.run("", args...)
	require.NoError(h.t, err, "spendhelm %s", strings.Join(args, " "))
	return out
}

func TestCLIWorkflow(t *testing.T) {
	ts := newTestAPI(t)
	h := harness{t: t, url: ts.URL, tokenFile: filepath.Join(t.TempDir(), "token.json")}

	_, err := h.run("", "me")
	require.Error(t, err)

	out, err := h.run("Secret#123\n", "register", "--email", "ada@example.com", "--name", "Ada")
	require.NoError(t, err)
	assert.Contains(t, out, "Registered and logged in as ada@example.com")

	out = h.mustRun("me")
	assert.Contains(t, out, "ada@example.com")
	assert.Contains(t, out, "Ada")

	out = h.mustRun("prefs", "set", "--currency", "EUR")
	assert.Contains(t, out, "EUR")

	h.mustRun("categories", "add", "Coffee", "--color", "#112233")
	out = h.mustRun("categories", "list")
	assert.Contains(t, out, "Coffee")
	assert.Contains(t, out, "Food & Dining")

	out = h.mustRun("expenses", "add", "--amount", "3,50", "--category", "Coffee", "--date", "2024-01-02", "--note", "espresso")
	assert.Contains(t, out, "Added 3.50 EUR on 2024-01-02 in Coffee")

	out = h.mustRun("--json", "expenses", "list")
	var items []core.Expense
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, int64(350), items[0].Amount.Cents)

	out = h.mustRun("report", "--period", "all")
	assert.Contains(t, out, "All Time: 3.50 across 1 expenses")
	assert.Contains(t, out, "100.0%")

	out = h.mustRun("expenses", "delete", items[0].ID)
	assert.Contains(t, out, "Deleted expense")
	assert.Contains(t, h.mustRun("expenses", "list"), "No expenses found.")

	h.mustRun("logout")
	_, err = h.run("", "me")
	require.Error(t, err)

	out, err = h.run("", "login", "--email", "ada@example.com", "--password", "Secret#123")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as ada@example.com")
}

func TestCLIArgumentErrors(t *testing.T) {
	h := harness{t: t, url: "http://127.0.0.1:1", tokenFile: filepath.Join(t.TempDir(), "token.json")}

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad amount", []string{"expenses", "add", "--amount", "abc", "--category", "Food"}, "--amount"},
		{"bad date", []string{"expenses", "list", "--from", "2024-13-01"}, "--from"},
		{"delete needs id", []string{"expenses", "delete"}, "accepts 1 arg"},
		{"empty prefs", []string{"prefs", "set"}, "nothing to change"},
		{"missing email", []string{"login", "--password", "x"}, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.run("", tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPasswordPrompt(t *testing.T) {
	var out bytes.Buffer
	a := &app{out: &out, in: strings.NewReader("")}
	cmd := a.loginCmd()

	_, err := a.password(cmd)
	require.Error(t, err)

	a.in = strings.NewReader("hunter2\r\n")
	pw, err := a.password(cmd)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", pw)
	assert.Contains(t, out.String(), "Password: ")
}
