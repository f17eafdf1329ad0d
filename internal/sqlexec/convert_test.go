// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestConvertValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 14, 30, 5, 123000000, time.UTC)
	id := uuid.MustParse("6f1c2a3e-0d4b-4c5a-9e8f-7a6b5c4d3e2f")

	tests := []struct {
		name   string
		value  any
		dbType string
		want   any
	}{
		{name: "null", value: nil, dbType: "TEXT", want: nil},
		{name: "text bytes", value: []byte("hello"), dbType: "VARCHAR", want: "hello"},
		{name: "decimal text", value: "10.500", dbType: "NUMERIC", want: "10.5"},
		{name: "decimal bytes with precision", value: []byte("0.1000000000000000000001"), dbType: "DECIMAL(30,22)", want: "0.1000000000000000000001"},
		{name: "decimal NaN passes through", value: "NaN", dbType: "NUMERIC", want: "NaN"},
		{name: "decimal stored as float", value: 12.5, dbType: "DECIMAL(10,2)", want: "12.5"},
		{name: "decimal stored as integer", value: int64(199), dbType: "NUMERIC", want: "199"},
		{name: "mysql integer bytes", value: []byte("42"), dbType: "BIGINT", want: int64(42)},
		{name: "mysql unsigned overflow", value: []byte("18446744073709551615"), dbType: "UNSIGNED BIGINT", want: uint64(math.MaxUint64)},
		{name: "mysql float bytes", value: []byte("1.25"), dbType: "DOUBLE", want: 1.25},
		{name: "binary", value: []byte{0xff, 0x00, 0x10}, dbType: "BYTEA", want: "/wAQ"},
		{name: "invalid utf8 without type", value: []byte{0xff, 0xfe}, dbType: "", want: "//4="},
		{name: "date", value: ts, dbType: "DATE", want: "2024-03-01"},
		{name: "timestamp", value: ts, dbType: "TIMESTAMPTZ", want: "2024-03-01T14:30:05.123Z"},
		{name: "nan", value: math.NaN(), dbType: "FLOAT8", want: "NaN"},
		{name: "positive infinity", value: math.Inf(1), dbType: "FLOAT8", want: "+Inf"},
		{name: "negative infinity", value: float32(math.Inf(-1)), dbType: "REAL", want: "-Inf"},
		{name: "plain float", value: 3.5, dbType: "FLOAT8", want: 3.5},
		{name: "fixed uuid", value: [16]byte(id), dbType: "UUID", want: id.String()},
		{name: "uuid type", value: id, dbType: "UUID", want: id.String()},
		{name: "shopspring decimal", value: decimal.RequireFromString("1.10"), dbType: "", want: "1.1"},
		{name: "bool", value: true, dbType: "BOOL", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, convertValue(tt.value, tt.dbType))
		})
	}
}

func TestUniqueColumns(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{in: []string{"a", "b"}, want: []string{"a", "b"}},
		{in: []string{"name", "name", "name"}, want: []string{"name", "name_2", "name_3"}},
		{in: []string{"a", "a", "a_2"}, want: []string{"a", "a_3", "a_2"}},
		{in: []string{"count", "COUNT"}, want: []string{"count", "COUNT"}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, uniqueColumns(tt.in))
	}
}
