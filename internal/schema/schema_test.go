// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"querycraft/cli/internal/logging"
)

func TestDefaultDescribesCoreTables(t *testing.T) {
	desc, err := Default().Describe(context.Background())
	require.NoError(t, err)

	assert.Contains(t, desc, "Dialect: PostgreSQL")
	for _, table := range []string{"core_customer", "core_product", "core_order"} {
		assert.Contains(t, desc, "Table "+table)
	}
	assert.Contains(t, desc, "  - status (varchar(20)) [allowed values: pending, completed, cancelled, refunded]")
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "valid",
			yaml: "tables:\n  - name: t\n    columns:\n      - name: id\n",
		},
		{name: "no tables", yaml: "dialect: SQLite\n", wantErr: "no tables"},
		{name: "unnamed table", yaml: "tables:\n  - columns: []\n", wantErr: "table 1 has no name"},
		{name: "unnamed column", yaml: "tables:\n  - name: t\n    columns:\n      - type: int\n", wantErr: "column 1 of t has no name"},
		{name: "not yaml", yaml: "tables: [", wantErr: "parse schema"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRender(t *testing.T) {
	doc := Document{
		Dialect: "SQLite",
		Tables: []Table{{
			Name:        "items",
			Description: "Things for sale.",
			Columns: []Column{
				{Name: "id", Type: "INTEGER", Description: "primary key"},
				{Name: "kind", Values: []string{"a", "b"}},
			},
		}},
	}

	want := "Dialect: SQLite\n\nTable items: Things for sale.\n  - id (INTEGER): primary key\n  - kind [allowed values: a, b]\n"
	assert.Equal(t, want, doc.Render())
}

func TestFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables:\n  - name: first\n"), 0o600))

	desc, err := File(path).Describe(context.Background())
	require.NoError(t, err)
	assert.Contains(t, desc, "Table first")

	_, err = File(filepath.Join(t.TempDir(), "missing.yaml")).Describe(context.Background())
	assert.Error(t, err)
}

func TestWatcherReloadKeepsLastGood(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables:\n  - name: first\n"), 0o600))

	w, err := NewWatcher(path, logging.Discard())
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte("tables: ["), 0o600))
	require.Error(t, w.Reload())

	desc, err := w.Describe(context.Background())
	require.NoError(t, err)
	assert.Contains(t, desc, "Table first")
}

func TestWatcherPicksUpChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tables:\n  - name: first\n"), 0o600))

	w, err := NewWatcher(path, logging.Discard())
	require.NoError(t, err)
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(path, []byte("tables:\n  - name: second\n"), 0o600))

	require.Eventually(t, func() bool {
		desc, _ := w.Describe(context.Background())
		return desc == "Table second\n"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestNewWatcherRequiresValidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("dialect: x\n"), 0o600))

	_, err := NewWatcher(path, logging.Discard())
	assert.Error(t, err)
}
