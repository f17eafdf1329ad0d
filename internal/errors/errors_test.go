// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	cause := stderrors.New("dial tcp: connection refused")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "direct", err: New(Validation, "Only SELECT statements are permitted."), want: Validation},
		{name: "wrapped in fmt", err: fmt.Errorf("run: %w", Wrap(Execution, "Query failed.", cause)), want: Execution},
		{name: "unclassified", err: cause, want: Server},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessageOfNeverLeaksCause(t *testing.T) {
	cause := stderrors.New("pq: password authentication failed for user \"admin\"")

	if got := MessageOf(cause); got != "Internal server error." {
		t.Errorf("MessageOf(unclassified) = %q", got)
	}
	if got := MessageOf(Wrap(Generation, "SQL generation timed out.", cause)); got != "SQL generation timed out." {
		t.Errorf("MessageOf(wrapped) = %q", got)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := Wrap(Server, "Internal server error.", cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected errors.Is to find the cause")
	}
	if !Is(err, Server) || Is(err, Request) {
		t.Error("Is() did not match the kind")
	}
}

func TestClientFault(t *testing.T) {
	want := map[Kind]bool{
		Request:    true,
		Generation: false,
		Validation: true,
		Execution:  false,
		Server:     false,
	}
	for _, k := range Kinds {
		if k.ClientFault() != want[k] {
			t.Errorf("%s.ClientFault() = %v", k, k.ClientFault())
		}
	}
}
