// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package sqlexec runs validated SELECT statements over a pooled connection.
// Every query executes inside a transaction the engine itself treats as
// read-only, under a wall-clock timeout, and the transaction is rolled back on
// every exit path. Results are converted to JSON-safe scalars with column and
// row order exactly as the database returned them.
package sqlexec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pterm/pterm"

	qerrors "querycraft/cli/internal/errors"
	"querycraft/cli/internal/logging"
)

// DefaultTimeout bounds a query when the executor is built without one.
const DefaultTimeout = 10 * time.Second

var (
	// ErrTimeout means the query ran past its time limit and was cancelled.
	ErrTimeout = errors.New("query timed out")
	// ErrCanceled means the caller went away while the query was running.
	ErrCanceled = errors.New("query canceled")
	// ErrReadOnly means the engine refused a write inside the read-only transaction.
	ErrReadOnly = errors.New("write refused by read-only transaction")
	// ErrTooManyRows means the statement produced more rows than allowed.
	ErrTooManyRows = errors.New("result exceeds row limit")
)

// Result is a fully materialized result set.
type Result struct {
	Columns  []string
	Rows     []Row
	RowCount int
	// Elapsed runs from statement submission to the last row read.
	Elapsed time.Duration
}

// ElapsedMS returns Elapsed rounded to whole milliseconds.
func (r *Result) ElapsedMS() int64 {
	return r.Elapsed.Round(time.Millisecond).Milliseconds()
}

// Row is one result row. It marshals to a JSON object whose keys keep the
// column order.
type Row struct {
	cols []string
	vals []any
}

// Get returns the value of col.
func (r Row) Get(col string) (any, bool) {
	for i, c := range r.cols {
		if c == col {
			return r.vals[i], true
		}
	}
	return nil, false
}

// Values returns the values in column order.
func (r Row) Values() []any { return r.vals }

// Map returns the row as an unordered map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.cols))
	for i, c := range r.cols {
		m[c] = r.vals[i]
	}
	return m
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.cols {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(r.vals[i])
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Executor executes read-only statements using a connection pool.
type Executor struct {
	db      *DB
	timeout time.Duration
	logger  *pterm.Logger
}

// New creates an Executor. A timeout of zero means DefaultTimeout; a nil logger
// discards output.
func New(db *DB, timeout time.Duration, logger *pterm.Logger) *Executor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &Executor{db: db, timeout: timeout, logger: logger}
}

// Timeout returns the per-query time limit.
func (e *Executor) Timeout() time.Duration { return e.timeout }

// Execute runs query and returns at most maxRows rows; more rows is an error,
// never a truncated result. Errors are *errors.E of kind Execution wrapping one
// of the sentinel errors above or the driver error.
func (e *Executor) Execute(ctx context.Context, query string, maxRows int) (*Result, error) {
	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	tx, err := e.db.sql.BeginTx(qctx, e.db.txOptions())
	if err != nil {
		return nil, e.classify(ctx, qctx, err)
	}
	// Nothing is ever committed.
	defer tx.Rollback()

	if err := e.db.prepareTx(qctx, tx, e.timeout, e.logger); err != nil {
		return nil, e.classify(ctx, qctx, err)
	}

	start := time.Now()
	rows, err := tx.QueryContext(qctx, query)
	if err != nil {
		return nil, e.classify(ctx, qctx, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, e.classify(ctx, qctx, err)
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, e.classify(ctx, qctx, err)
	}
	names := uniqueColumns(cols)

	res := &Result{Columns: names, Rows: []Row{}}
	for rows.Next() {
		if maxRows > 0 && res.RowCount >= maxRows {
			return nil, qerrors.Wrap(qerrors.Execution,
				fmt.Sprintf("Query returned more than %d rows.", maxRows), ErrTooManyRows)
		}
		raw := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, e.classify(ctx, qctx, err)
		}
		vals := make([]any, len(cols))
		for i, v := range raw {
			vals[i] = convertValue(v, types[i].DatabaseTypeName())
		}
		res.Rows = append(res.Rows, Row{cols: names, vals: vals})
		res.RowCount++
	}
	if err := rows.Err(); err != nil {
		return nil, e.classify(ctx, qctx, err)
	}
	res.Elapsed = time.Since(start)

	e.logger.Debug("query executed", e.logger.Args(
		"dialect", string(e.db.dialect),
		"rows", res.RowCount,
		"elapsed_ms", res.ElapsedMS(),
	))
	return res, nil
}

// classify maps a failure to a caller-safe execution error. parent is the
// caller's context and qctx the one carrying the query deadline.
func (e *Executor) classify(parent, qctx context.Context, err error) error {
	switch {
	case parent.Err() != nil:
		return qerrors.Wrap(qerrors.Execution, "Query was cancelled.", fmt.Errorf("%w: %w", ErrCanceled, err))
	case errors.Is(qctx.Err(), context.DeadlineExceeded) || isTimeout(err):
		e.logger.Warn("query timed out", e.logger.Args("timeout", e.timeout.String()))
		return qerrors.Wrap(qerrors.Execution,
			fmt.Sprintf("Query exceeded the %s time limit and was cancelled.", e.timeout),
			fmt.Errorf("%w: %w", ErrTimeout, err))
	case isReadOnly(err):
		e.logger.Warn("write refused by read-only transaction", e.logger.Args("error", logging.Mask(err.Error())))
		return qerrors.Wrap(qerrors.Execution,
			"The database refused to write: queries run in a read-only transaction.",
			fmt.Errorf("%w: %w", ErrReadOnly, err))
	}

	e.logger.Debug("query failed", e.logger.Args("error", logging.Mask(err.Error())))
	if msg, ok := engineMessage(err); ok {
		return qerrors.Wrap(qerrors.Execution, "Query failed: "+logging.Mask(msg), err)
	}
	return qerrors.Wrap(qerrors.Execution, "Query failed.", err)
}
