// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package errors defines typed errors with categories for user-friendly reporting.
// Every failure that can reach a caller is tagged with the pipeline stage that
// produced it, so transport layers can pick a status code and callers can decide
// whether a retry makes sense without parsing message text.
//
// Message is always safe to show to a caller. Err keeps the underlying cause for
// logs and is never rendered into a response envelope.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind is a machine-readable error category. Its value is the stage name used in
// response envelopes.
type Kind string

const (
	// Request indicates malformed or missing input caught before the pipeline starts.
	Request Kind = "request"
	// Generation indicates the SQL generation collaborator failed or returned garbage.
	Generation Kind = "generate_sql"
	// Validation indicates the candidate SQL violated the read-only policy.
	Validation Kind = "validate_sql"
	// Execution indicates a driver error, timeout or pool exhaustion.
	Execution Kind = "execute_sql"
	// Server indicates any uncategorized internal fault.
	Server Kind = "server"
)

// InternalMessage is shown for any failure that carries no classification.
const InternalMessage = "Internal server error."

// Kinds lists every stage in pipeline order.
var Kinds = []Kind{Request, Generation, Validation, Execution, Server}

// ClientFault reports whether failures of this kind are caused by the caller's
// input rather than by an upstream or internal fault.
func (k Kind) ClientFault() bool {
	return k == Request || k == Validation
}

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// KindOf returns the kind of the first *E in err's chain, or Server when err
// carries no classification.
func KindOf(err error) Kind {
	var e *E
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return Server
}

// MessageOf returns the caller-safe message of the first *E in err's chain.
// Unclassified errors yield a generic message so internal detail never leaks.
func MessageOf(err error) string {
	var e *E
	if stderrors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return InternalMessage
}

// Is reports whether err is classified with the given kind.
func Is(err error, kind Kind) bool {
	var e *E
	return stderrors.As(err, &e) && e.Kind == kind
}
