// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Value conversion policy:
//   - DECIMAL / NUMERIC values become strings holding the exact decimal.
//   - DATE values become "YYYY-MM-DD"; other times become RFC 3339 with nanoseconds.
//   - Binary values become standard base64 strings.
//   - NaN and infinite floats become "NaN", "+Inf" or "-Inf".
//   - [16]byte values are UUIDs.

// convertValue turns a scanned driver value into a JSON-safe scalar. dbType is the
// column's DatabaseTypeName.
func convertValue(v any, dbType string) any {
	kind := typeClass(dbType)

	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		return convertBytes(x, kind)
	case string:
		if kind == classDecimal {
			return decimalString(x)
		}
		return x
	case time.Time:
		if kind == classDate {
			return x.Format(time.DateOnly)
		}
		return x.Format(time.RFC3339Nano)
	case float64:
		return convertFloat(x, kind)
	case float32:
		return convertFloat(float64(x), kind)
	case int64:
		if kind == classDecimal {
			return strconv.FormatInt(x, 10)
		}
		return x
	case bool, int, int8, int16, int32, uint, uint8, uint16, uint32, uint64:
		return x
	case [16]byte:
		return uuid.UUID(x).String()
	case uuid.UUID:
		return x.String()
	case decimal.Decimal:
		return x.String()
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func convertBytes(b []byte, kind valueClass) any {
	switch kind {
	case classBinary:
		return base64.StdEncoding.EncodeToString(b)
	case classDecimal:
		return decimalString(string(b))
	case classInt:
		s := string(b)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n
		}
		if n, err := strconv.ParseUint(s, 10, 64); err == nil {
			return n
		}
		return s
	case classFloat:
		if f, err := strconv.ParseFloat(string(b), 64); err == nil {
			return convertFloat(f, kind)
		}
		return string(b)
	}
	if !utf8.Valid(b) {
		return base64.StdEncoding.EncodeToString(b)
	}
	return string(b)
}

func convertFloat(f float64, kind valueClass) any {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "+Inf"
	case math.IsInf(f, -1):
		return "-Inf"
	case kind == classDecimal:
		return decimal.NewFromFloat(f).String()
	}
	return f
}

// decimalString canonicalizes a textual decimal. Text that is not a number
// (PostgreSQL's 'NaN', 'Infinity') is returned unchanged.
func decimalString(s string) string {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return d.String()
}

type valueClass int

const (
	classOther valueClass = iota
	classDecimal
	classInt
	classFloat
	classBinary
	classDate
)

// typeClass maps a database type name ("NUMERIC", "DECIMAL(10,2)",
// "UNSIGNED BIGINT", "BYTEA") onto a conversion class.
func typeClass(dbType string) valueClass {
	t := strings.ToUpper(strings.TrimSpace(dbType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}
	t = strings.TrimPrefix(t, "UNSIGNED ")
	t = strings.TrimSuffix(t, " UNSIGNED")

	switch t {
	case "DECIMAL", "NUMERIC", "NEWDECIMAL":
		return classDecimal
	case "INT", "INTEGER", "TINYINT", "SMALLINT", "MEDIUMINT", "BIGINT", "INT2", "INT4", "INT8":
		return classInt
	case "FLOAT", "DOUBLE", "REAL", "FLOAT4", "FLOAT8", "DOUBLE PRECISION":
		return classFloat
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "BYTEA", "BIT", "GEOMETRY":
		return classBinary
	case "DATE":
		return classDate
	}
	return classOther
}

// uniqueColumns suffixes repeated names with _2, _3, ... so every value keeps
// its own key. Order is preserved.
func uniqueColumns(cols []string) []string {
	out := make([]string, len(cols))
	seen := make(map[string]bool, len(cols))
	for _, c := range cols {
		seen[c] = true
	}
	used := make(map[string]int, len(cols))
	for i, c := range cols {
		used[c]++
		if used[c] == 1 {
			out[i] = c
			continue
		}
		n := used[c]
		name := fmt.Sprintf("%s_%d", c, n)
		for seen[name] {
			n++
			name = fmt.Sprintf("%s_%d", c, n)
		}
		seen[name] = true
		used[c] = n
		out[i] = name
	}
	return out
}
