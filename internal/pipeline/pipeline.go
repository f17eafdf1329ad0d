// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package pipeline turns a question into a formatted response. A run is a small
// state machine:
//
//	Start -> GeneratingSQL -> ValidatingSQL -> ExecutingSQL -> Formatting -> End
//	                                       \-> Rejected ----/
//
// Any stage failure jumps straight to Formatting with a Failure outcome, and a
// panic in any stage becomes a server failure, so every run yields exactly one
// envelope. The pipeline holds no per-request state and is safe for concurrent use.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/pterm/pterm"

	qerrors "querycraft/cli/internal/errors"
	"querycraft/cli/internal/generator"
	"querycraft/cli/internal/logging"
	"querycraft/cli/internal/schema"
	"querycraft/cli/internal/sqlexec"
	"querycraft/cli/internal/sqlguard"
)

// Executor runs accepted SQL. *sqlexec.Executor implements it.
type Executor interface {
	Execute(ctx context.Context, query string, maxRows int) (*sqlexec.Result, error)
}

// Recorder receives a summary of every finished run.
type Recorder interface {
	Record(ctx context.Context, r Record) error
}

// Record summarizes one run for the query history. SQL, RowCount and
// ExecutionMS are only set for successful runs.
type Record struct {
	ID          string    `msgpack:"id" json:"id"`
	Question    string    `msgpack:"question" json:"question"`
	Language    string    `msgpack:"language" json:"language"`
	Status      string    `msgpack:"status" json:"status"`
	Stage       string    `msgpack:"stage,omitempty" json:"stage,omitempty"`
	SQL         string    `msgpack:"sql,omitempty" json:"sql,omitempty"`
	RowCount    int       `msgpack:"row_count" json:"row_count"`
	ExecutionMS int64     `msgpack:"execution_ms" json:"execution_ms"`
	CreatedAt   time.Time `msgpack:"created_at" json:"created_at"`
}

// Config wires the pipeline's collaborators. Generator, Schema and Executor are
// required.
type Config struct {
	Generator generator.Generator
	Schema    schema.Provider
	Executor  Executor
	Limits    Limits
	// Timeout bounds a whole run; zero means no bound beyond the caller's context.
	Timeout  time.Duration
	Logger   *pterm.Logger
	Recorder Recorder
}

// Pipeline sequences generation, validation, execution and formatting.
type Pipeline struct {
	gen      generator.Generator
	schema   schema.Provider
	exec     Executor
	limits   Limits
	timeout  time.Duration
	logger   *pterm.Logger
	recorder Recorder
}

// New creates a Pipeline.
func New(cfg Config) *Pipeline {
	limits := cfg.Limits
	if limits.MaxRowsCap <= 0 || limits.DefaultMaxRows <= 0 {
		limits = DefaultLimits
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Pipeline{
		gen:      cfg.Generator,
		schema:   cfg.Schema,
		exec:     cfg.Executor,
		limits:   limits,
		timeout:  cfg.Timeout,
		logger:   logger,
		recorder: cfg.Recorder,
	}
}

// Limits returns the row limits requests are normalized against.
func (p *Pipeline) Limits() Limits { return p.limits }

type state int

const (
	stateStart state = iota
	stateGenerating
	stateValidating
	stateExecuting
	stateRejected
	stateFormatting
	stateEnd
)

func (s state) String() string {
	switch s {
	case stateStart:
		return "Start"
	case stateGenerating:
		return "GeneratingSQL"
	case stateValidating:
		return "ValidatingSQL"
	case stateExecuting:
		return "ExecutingSQL"
	case stateRejected:
		return "Rejected"
	case stateFormatting:
		return "Formatting"
	case stateEnd:
		return "End"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// run holds the values one invocation threads between states.
type run struct {
	req       Request
	maxRows   int
	candidate string
	accepted  sqlguard.Accepted
	rejection error
	outcome   Outcome
}

// Run executes one invocation and returns its envelope.
func (p *Pipeline) Run(ctx context.Context, req Request) Envelope {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	start := time.Now()
	outcome := p.Outcome(ctx, req)
	p.transition(req.ID, stateFormatting, stateEnd)
	env := Format(outcome)

	args := []any{"request_id", req.ID, "status", env.Status, "elapsed_ms", time.Since(start).Milliseconds()}
	if env.OK() {
		args = append(args, "rows", env.Metadata.RowCount)
	} else {
		args = append(args, "stage", string(env.Stage))
		if f, ok := outcome.(Failure); ok && f.Err != nil {
			args = append(args, "error", logging.Mask(f.Err.Error()))
		}
	}
	p.logger.Info("query finished", p.logger.Args(args...))

	p.record(ctx, req, env)
	return env
}

// Outcome runs the state machine up to Formatting and returns the outcome to
// format.
func (p *Pipeline) Outcome(ctx context.Context, req Request) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pipeline panic", p.logger.Args("request_id", req.ID, "panic", fmt.Sprint(r), "stack", string(debug.Stack())))
			out = Failure{Stage: qerrors.Server, Message: qerrors.InternalMessage, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	r := &run{req: req, maxRows: p.limits.Clamp(req.MaxRows)}
	for st := stateStart; st != stateFormatting; {
		next := p.step(ctx, st, r)
		p.transition(req.ID, st, next)
		st = next
	}
	return r.outcome
}

func (p *Pipeline) step(ctx context.Context, st state, r *run) state {
	switch st {
	case stateStart:
		return stateGenerating

	case stateGenerating:
		candidate, err := p.generate(ctx, r.req)
		if err != nil {
			r.outcome = failure(err)
			return stateFormatting
		}
		r.candidate = candidate
		return stateValidating

	case stateValidating:
		accepted, err := sqlguard.Validate(r.candidate, r.maxRows)
		if err != nil {
			r.rejection = err
			return stateRejected
		}
		r.accepted = accepted
		return stateExecuting

	case stateRejected:
		p.logger.Debug("sql rejected", p.logger.Args("request_id", r.req.ID, "reason", r.rejection.Error()))
		r.outcome = Failure{Stage: qerrors.Validation, Message: sqlguard.Explain(r.rejection), Err: r.rejection}
		return stateFormatting

	case stateExecuting:
		res, err := p.exec.Execute(ctx, r.accepted.SQL, r.maxRows)
		if err != nil {
			if !qerrors.Is(err, qerrors.Execution) {
				err = qerrors.Wrap(qerrors.Execution, "Query execution failed.", err)
			}
			r.outcome = failure(err)
			return stateFormatting
		}
		r.outcome = Success{Result: res, SQL: r.accepted.SQL, MaxRows: r.maxRows}
		return stateFormatting
	}

	r.outcome = Failure{Stage: qerrors.Server, Message: qerrors.InternalMessage, Err: fmt.Errorf("no transition from %s", st)}
	return stateFormatting
}

// generate obtains the schema description and candidate SQL.
func (p *Pipeline) generate(ctx context.Context, req Request) (string, error) {
	desc, err := p.schema.Describe(ctx)
	if err != nil {
		return "", qerrors.Wrap(qerrors.Server, qerrors.InternalMessage, fmt.Errorf("describe schema: %w", err))
	}

	completion, err := p.gen.Generate(ctx, req.Question, req.Language, desc)
	if err != nil {
		return "", generator.Classify(err)
	}

	candidate, err := generator.ExtractSQL(completion)
	if err != nil {
		return "", err
	}
	p.logger.Debug("sql generated", p.logger.Args("request_id", req.ID, "sql", candidate))
	return candidate, nil
}

func (p *Pipeline) transition(id string, from, to state) {
	p.logger.Debug("pipeline transition", p.logger.Args("request_id", id, "from", from.String(), "to", to.String()))
}

func (p *Pipeline) record(ctx context.Context, req Request, env Envelope) {
	if p.recorder == nil {
		return
	}
	rec := Record{
		ID:        req.ID,
		Question:  req.Question,
		Language:  req.Language,
		Status:    env.Status,
		Stage:     string(env.Stage),
		CreatedAt: time.Now().UTC(),
	}
	if env.OK() {
		rec.SQL = env.SQL
		rec.RowCount = env.Metadata.RowCount
		rec.ExecutionMS = env.ExecutionMS
	}
	// The run's deadline may already have passed.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := p.recorder.Record(rctx, rec); err != nil {
		p.logger.Warn("failed to record query history", p.logger.Args("request_id", req.ID, "error", err.Error()))
	}
}
