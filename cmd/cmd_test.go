// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskPassword(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "postgres url", in: "postgres://app:s3cret@db:5432/shop?sslmode=disable", want: "postgres://app:%2A%2A%2A@db:5432/shop?sslmode=disable"},
		{name: "no password", in: "postgres://app@db/shop", want: "postgres://app@db/shop"},
		{name: "sqlite path", in: "sqlite:///var/lib/shop.db", want: "sqlite:///var/lib/shop.db"},
		{name: "go mysql form", in: "app:p@ss:w0rd@tcp(db:3306)/shop", want: "app:***@tcp(db:3306)/shop"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := maskPassword(tt.in)
			assert.Equal(t, tt.want, got)
			assert.NotContains(t, got, "s3cret")
		})
	}
}

func TestCheckSQL(t *testing.T) {
	res := checkSQL("SELECT id FROM core_order", 10)
	assert.True(t, res.Accepted)
	assert.Equal(t, "SELECT id FROM core_order LIMIT 10", res.SQL)
	assert.True(t, res.Rewritten)
	assert.Nil(t, res.Position)

	res = checkSQL("SELECT 1; DROP TABLE core_order", 10)
	assert.False(t, res.Accepted)
	assert.Equal(t, "multiple_statements", res.Rule)
	assert.Equal(t, "Multiple SQL statements are not allowed.", res.Message)
	if assert.NotNil(t, res.Position) {
		assert.Equal(t, 8, *res.Position)
	}

	res = checkSQL("delete from core_order", 10)
	assert.Equal(t, "forbidden_keyword", res.Rule)
	assert.Equal(t, "DELETE", res.Keyword)
}

func TestFormatCell(t *testing.T) {
	assert.Equal(t, "Lamp", formatCell("Lamp"))
	assert.Equal(t, "42", formatCell(int64(42)))
	assert.Equal(t, "true", formatCell(true))
	assert.Equal(t, "a b", formatCell("a\nb"))
	assert.Contains(t, formatCell(nil), "NULL")
	assert.Equal(t, `["x","y"]`, formatCell([]string{"x", "y"}))

	long := formatCell(strings.Repeat("é", 100))
	assert.Equal(t, maxCellWidth, len([]rune(long)))
	assert.True(t, strings.HasSuffix(long, "…"))
}
