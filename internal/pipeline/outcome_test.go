// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package pipeline

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	qerrors "querycraft/cli/internal/errors"
	"querycraft/cli/internal/sqlexec"
)

func TestFormatSuccess(t *testing.T) {
	env := Format(Success{
		SQL:     "SELECT 1 LIMIT 5",
		MaxRows: 5,
		Result:  &sqlexec.Result{Columns: []string{"n"}, Elapsed: 1500 * time.Microsecond},
	})

	assert.True(t, env.OK())
	assert.Equal(t, http.StatusOK, env.HTTPStatus())
	assert.Equal(t, int64(2), env.ExecutionMS)

	out, err := json.Marshal(env)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"status": "ok",
		"sql": "SELECT 1 LIMIT 5",
		"columns": ["n"],
		"rows": [],
		"execution_ms": 2,
		"metadata": {"max_rows": 5, "row_count": 0}
	}`, string(out))
}

func TestFormatFailure(t *testing.T) {
	tests := []struct {
		name       string
		outcome    Outcome
		wantStage  qerrors.Kind
		wantMsg    string
		wantStatus int
	}{
		{
			name:       "validation",
			outcome:    Failure{Stage: qerrors.Validation, Message: "Only SELECT statements are permitted."},
			wantStage:  qerrors.Validation,
			wantMsg:    "Only SELECT statements are permitted.",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "request",
			outcome:    Failure{Stage: qerrors.Request, Message: "`question` is required."},
			wantStage:  qerrors.Request,
			wantMsg:    "`question` is required.",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "generation",
			outcome:    failure(qerrors.New(qerrors.Generation, "SQL generation timed out.")),
			wantStage:  qerrors.Generation,
			wantMsg:    "SQL generation timed out.",
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "execution",
			outcome:    Failure{Stage: qerrors.Execution, Message: "Query was cancelled."},
			wantStage:  qerrors.Execution,
			wantMsg:    "Query was cancelled.",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "server message is never shown",
			outcome:    Failure{Stage: qerrors.Server, Message: "dial tcp 10.0.0.5:5432: refused"},
			wantStage:  qerrors.Server,
			wantMsg:    "Internal server error.",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "unclassified error",
			outcome:    failure(errors.New("boom")),
			wantStage:  qerrors.Server,
			wantMsg:    "Internal server error.",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "success without result",
			outcome:    Success{SQL: "SELECT 1"},
			wantStage:  qerrors.Server,
			wantMsg:    "Internal server error.",
			wantStatus: http.StatusInternalServerError,
		},
		{
			name:       "nil outcome",
			outcome:    nil,
			wantStage:  qerrors.Server,
			wantMsg:    "Internal server error.",
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := Format(tt.outcome)
			assert.False(t, env.OK())
			assert.Equal(t, tt.wantStage, env.Stage)
			assert.Equal(t, tt.wantMsg, env.Message)
			assert.Equal(t, tt.wantStatus, env.HTTPStatus())

			out, err := json.Marshal(env)
			require.NoError(t, err)
			var fields map[string]any
			require.NoError(t, json.Unmarshal(out, &fields))
			assert.Len(t, fields, 3)
			assert.Equal(t, "error", fields["status"])
		})
	}
}
