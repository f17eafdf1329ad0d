// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package pipeline

import (
	"encoding/json"
	"net/http"

	qerrors "querycraft/cli/internal/errors"
	"querycraft/cli/internal/sqlexec"
)

// Outcome is the result of one pipeline invocation: either Success or Failure.
type Outcome interface {
	outcome()
}

// Success carries an executed result and the SQL that produced it.
type Success struct {
	Result  *sqlexec.Result
	SQL     string
	MaxRows int
}

// Failure carries the stage that failed and a caller-safe message. Err is the
// underlying cause, for logs only.
type Failure struct {
	Stage   qerrors.Kind
	Message string
	Err     error
}

func (Success) outcome() {}
func (Failure) outcome() {}

// failure converts err into a Failure tagged with its classified stage.
func failure(err error) Failure {
	return Failure{Stage: qerrors.KindOf(err), Message: qerrors.MessageOf(err), Err: err}
}

// Envelope is the response contract shared by the HTTP API and the CLI.
type Envelope struct {
	Status      string        `json:"status"`
	SQL         string        `json:"sql,omitempty"`
	Columns     []string      `json:"columns,omitempty"`
	Rows        []sqlexec.Row `json:"rows,omitempty"`
	ExecutionMS int64         `json:"execution_ms,omitempty"`
	Metadata    *Metadata     `json:"metadata,omitempty"`
	Message     string        `json:"message,omitempty"`
	Stage       qerrors.Kind  `json:"stage,omitempty"`
}

// Metadata describes the bounds a successful query ran under.
type Metadata struct {
	MaxRows  int `json:"max_rows"`
	RowCount int `json:"row_count"`
}

const (
	StatusOK    = "ok"
	StatusError = "error"
)

// OK reports whether the envelope is a success.
func (e Envelope) OK() bool { return e.Status == StatusOK }

// HTTPStatus maps the envelope to a transport status code: 200 on success, 400
// for request and validation faults, 502 when generation failed and 500 for
// everything else.
func (e Envelope) HTTPStatus() int {
	if e.OK() {
		return http.StatusOK
	}
	switch e.Stage {
	case qerrors.Request, qerrors.Validation:
		return http.StatusBadRequest
	case qerrors.Generation:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// MarshalJSON writes exactly the fields of the envelope's variant. A success
// always has sql, columns, rows, execution_ms and metadata, even when empty; a
// failure has only status, message and stage.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.OK() {
		columns, rows := e.Columns, e.Rows
		if columns == nil {
			columns = []string{}
		}
		if rows == nil {
			rows = []sqlexec.Row{}
		}
		meta := Metadata{}
		if e.Metadata != nil {
			meta = *e.Metadata
		}
		return json.Marshal(struct {
			Status      string        `json:"status"`
			SQL         string        `json:"sql"`
			Columns     []string      `json:"columns"`
			Rows        []sqlexec.Row `json:"rows"`
			ExecutionMS int64         `json:"execution_ms"`
			Metadata    Metadata      `json:"metadata"`
		}{e.Status, e.SQL, columns, rows, e.ExecutionMS, meta})
	}
	return json.Marshal(struct {
		Status  string       `json:"status"`
		Message string       `json:"message"`
		Stage   qerrors.Kind `json:"stage"`
	}{StatusError, e.Message, e.Stage})
}

// Format maps an outcome to its envelope. It is total: an unknown or nil
// outcome becomes a server failure.
func Format(o Outcome) Envelope {
	switch v := o.(type) {
	case Success:
		if v.Result == nil {
			break
		}
		return Envelope{
			Status:      StatusOK,
			SQL:         v.SQL,
			Columns:     v.Result.Columns,
			Rows:        v.Result.Rows,
			ExecutionMS: v.Result.ElapsedMS(),
			Metadata:    &Metadata{MaxRows: v.MaxRows, RowCount: v.Result.RowCount},
		}
	case Failure:
		stage, msg := v.Stage, v.Message
		if stage == "" {
			stage = qerrors.Server
		}
		if msg == "" || stage == qerrors.Server {
			msg = qerrors.InternalMessage
		}
		return Envelope{Status: StatusError, Message: msg, Stage: stage}
	}
	return Envelope{Status: StatusError, Message: qerrors.InternalMessage, Stage: qerrors.Server}
}
