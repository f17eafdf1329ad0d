// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/pterm/pterm"
)

func TestPresentError(t *testing.T) {
	if got := PresentError("connect", nil); got != "" {
		t.Errorf("PresentError(nil) = %q", got)
	}
	err := errors.New("failed to connect to postgres://admin:hunter2@db:5432/shop")
	got := PresentError("connect", err)
	if strings.Contains(got, "hunter2") {
		t.Errorf("PresentError leaked password: %q", got)
	}
	if !strings.HasPrefix(got, "connect: ") {
		t.Errorf("PresentError() = %q, want context prefix", got)
	}
}

func TestFormatFailure(t *testing.T) {
	pterm.DisableStyling()
	defer pterm.EnableStyling()

	tests := []struct {
		stage string
		title string
	}{
		{"request", "Invalid Request"},
		{"generate_sql", "SQL Generation Failed"},
		{"validate_sql", "Query Rejected"},
		{"execute_sql", "Query Failed"},
		{"server", "Internal Error"},
		{"", "Internal Error"},
	}
	for _, tt := range tests {
		t.Run(tt.stage, func(t *testing.T) {
			out := FormatFailure(tt.stage, "something broke")
			if !strings.HasPrefix(out, tt.title) {
				t.Errorf("FormatFailure() title = %q, want prefix %q", out, tt.title)
			}
			if !strings.Contains(out, "something broke") {
				t.Errorf("FormatFailure() missing message: %q", out)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("debug", "json", &buf)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	logger.Info("pipeline finished", logger.Args("stage", "execute_sql"))
	if !strings.Contains(buf.String(), `"stage":"execute_sql"`) {
		t.Errorf("json log missing arg: %s", buf.String())
	}

	if _, err := New("loud", "text", &buf); err == nil {
		t.Error("expected error for unknown level")
	}
	if _, err := New("info", "xml", &buf); err == nil {
		t.Error("expected error for unknown format")
	}
}
