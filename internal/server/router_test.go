// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querycraft/cli/internal/generator"
	"querycraft/cli/internal/history"
	"querycraft/cli/internal/pipeline"
	"querycraft/cli/internal/schema"
	"querycraft/cli/internal/sqlexec"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubExecutor struct{}

func (stubExecutor) Execute(_ context.Context, _ string, maxRows int) (*sqlexec.Result, error) {
	return &sqlexec.Result{Columns: []string{"total"}}, nil
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

type stubSchema struct{ err error }

func (s stubSchema) Describe(context.Context) (string, error) { return "", s.err }

func newTestRouter(t *testing.T, gen generator.Func, mutate func(*Deps)) (*gin.Engine, *history.Store) {
	t.Helper()
	store, err := history.Open("", nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	p := pipeline.New(pipeline.Config{
		Generator: gen,
		Schema:    schema.Default(),
		Executor:  stubExecutor{},
		Recorder:  store,
	})
	d := Deps{Pipeline: p, Schema: schema.Default(), DB: stubPinger{}, History: store}
	if mutate != nil {
		mutate(&d)
	}
	return NewRouter(d), store
}

func returning(sql string) generator.Func {
	return func(context.Context, string, string, string) (string, error) { return sql, nil }
}

func do(r http.Handler, method, path, body string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		for _, vv := range v {
			req.Header.Add(k, vv)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestQueryEndpoint(t *testing.T) {
	tests := []struct {
		name       string
		sql        string
		body       string
		wantStatus int
		wantStage  string
		wantMsg    string
	}{
		{
			name:       "success",
			sql:        "SELECT count(*) AS total FROM core_order",
			body:       `{"question": "How many orders?", "max_rows": 5}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "invalid json",
			body:       `{"question"`,
			wantStatus: http.StatusBadRequest,
			wantStage:  "request",
			wantMsg:    "Invalid JSON payload.",
		},
		{
			name:       "not an object",
			body:       `"How many orders?"`,
			wantStatus: http.StatusBadRequest,
			wantStage:  "request",
			wantMsg:    "JSON payload must be an object.",
		},
		{
			name:       "question wrong type",
			body:       `{"question": ["a"]}`,
			wantStatus: http.StatusBadRequest,
			wantStage:  "request",
			wantMsg:    "`question` must be a string.",
		},
		{
			name:       "rejected sql",
			sql:        "UPDATE core_order SET status = 'refunded'",
			body:       `{"question": "refund everything"}`,
			wantStatus: http.StatusBadRequest,
			wantStage:  "validate_sql",
			wantMsg:    "The keyword UPDATE is not permitted in a read-only query.",
		},
		{
			name:       "generator returned prose",
			sql:        "Sorry, I can't help with that.",
			body:       `{"question": "hello"}`,
			wantStatus: http.StatusBadGateway,
			wantStage:  "generate_sql",
			wantMsg:    "The SQL generator did not return a SQL statement.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRouter(t, returning(tt.sql), nil)
			w := do(r, http.MethodPost, "/api/query", tt.body, http.Header{"Content-Type": {"application/json"}})

			assert.Equal(t, tt.wantStatus, w.Code)
			out := decode(t, w)
			if tt.wantStage == "" {
				assert.Equal(t, "ok", out["status"])
				assert.Equal(t, "SELECT count(*) AS total FROM core_order LIMIT 5", out["sql"])
				assert.Equal(t, []any{"total"}, out["columns"])
				assert.Equal(t, []any{}, out["rows"])
				assert.Equal(t, map[string]any{"max_rows": float64(5), "row_count": float64(0)}, out["metadata"])
				return
			}
			assert.Equal(t, map[string]any{"status": "error", "stage": tt.wantStage, "message": tt.wantMsg}, out)
		})
	}
}

func TestQueryRecordsHistoryWithRequestID(t *testing.T) {
	r, store := newTestRouter(t, returning("SELECT 1"), nil)

	w := do(r, http.MethodPost, "/api/query", `{"question": "one"}`, http.Header{RequestIDHeader: {"req-42"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-42", w.Header().Get(RequestIDHeader))

	entries, err := store.List(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-42", entries[0].ID)
	assert.Equal(t, "SELECT 1 LIMIT 200", entries[0].SQL)

	w = do(r, http.MethodGet, "/api/history?limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode(t, w)
	list, ok := out["entries"].([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, "one", list[0].(map[string]any)["question"])
}

func TestRequestIDAssigned(t *testing.T) {
	r, _ := newTestRouter(t, returning("SELECT 1"), nil)

	w := do(r, http.MethodGet, "/health", "", http.Header{RequestIDHeader: {"bad id with spaces"}})
	id := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, id)
	assert.NotEqual(t, "bad id with spaces", id)
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	r, _ := newTestRouter(t, returning("SELECT 1"), nil)

	for _, q := range []string{"limit=abc", "limit=0", "limit=-1"} {
		w := do(r, http.MethodGet, "/api/history?"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Equal(t, "request", decode(t, w)["stage"], q)
	}
}

func TestHistoryDisabled(t *testing.T) {
	r, _ := newTestRouter(t, returning("SELECT 1"), func(d *Deps) { d.History = nil })
	w := do(r, http.MethodGet, "/api/history", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, returning("SELECT 1"), nil)
	w := do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "connected", decode(t, w)["database"])

	r, _ = newTestRouter(t, returning("SELECT 1"), func(d *Deps) {
		d.DB = stubPinger{err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused")}
	})
	w = do(r, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unreachable", decode(t, w)["database"])
}

func TestSchemaEndpoint(t *testing.T) {
	r, _ := newTestRouter(t, returning("SELECT 1"), nil)
	w := do(r, http.MethodGet, "/api/schema", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode(t, w)["schema"], "core_customer")

	r, _ = newTestRouter(t, returning("SELECT 1"), func(d *Deps) {
		d.Schema = stubSchema{err: errors.New("open /etc/querycraft/schema.yaml: permission denied")}
	})
	w = do(r, http.MethodGet, "/api/schema", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]any{"status": "error", "stage": "server", "message": "Internal server error."}, decode(t, w))
}

func TestBodyTooLarge(t *testing.T) {
	r, _ := newTestRouter(t, returning("SELECT 1"), func(d *Deps) { d.MaxBodyBytes = 16 })
	w := do(r, http.MethodPost, "/api/query", `{"question": "a very long question indeed"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Request body is too large.", decode(t, w)["message"])
}

func TestRecoveryReturnsServerEnvelope(t *testing.T) {
	r, _ := newTestRouter(t, returning("SELECT 1"), nil)
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := do(r, http.MethodGet, "/boom", "", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, map[string]any{"status": "error", "stage": "server", "message": "Internal server error."}, decode(t, w))
}

func TestCORSPreflight(t *testing.T) {
	r, _ := newTestRouter(t, returning("SELECT 1"), func(d *Deps) { d.CORSOrigins = []string{"https://app.example.com"} })

	w := do(r, http.MethodOptions, "/api/query", "", http.Header{
		"Origin":                        {"https://app.example.com"},
		"Access-Control-Request-Method": {"POST"},
	})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
}
