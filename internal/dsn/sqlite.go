// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"net/url"
	"strings"
)

// SQLiteResolver handles sqlite://, sqlite: and file: DSNs.
type SQLiteResolver struct{}

// NewSQLiteResolver creates a new SQLite resolver
func NewSQLiteResolver() *SQLiteResolver {
	return &SQLiteResolver{}
}

// Parse extracts the database file path and URI parameters.
//
//	sqlite:///var/lib/shop.db -> /var/lib/shop.db
//	sqlite://shop.db          -> shop.db
//	sqlite:shop.db            -> shop.db
//	file:shop.db?cache=shared -> shop.db (cache=shared)
func (r *SQLiteResolver) Parse(dsn string) (*DSNInfo, error) {
	if dsn == "" {
		return nil, NewParseError(dsn, "empty DSN", "provide a path such as sqlite://./shop.db")
	}

	lower := strings.ToLower(dsn)
	var rest string
	switch {
	case strings.HasPrefix(lower, "sqlite3://"):
		rest = dsn[len("sqlite3://"):]
	case strings.HasPrefix(lower, "sqlite://"):
		rest = dsn[len("sqlite://"):]
	case strings.HasPrefix(lower, "sqlite3:"):
		rest = dsn[len("sqlite3:"):]
	case strings.HasPrefix(lower, "sqlite:"):
		rest = dsn[len("sqlite:"):]
	case strings.HasPrefix(lower, "file:"):
		rest = dsn[len("file:"):]
	default:
		return nil, NewParseError(dsn, "missing or invalid scheme", "use sqlite:// or file:")
	}

	path, rawQuery, _ := strings.Cut(rest, "?")
	info := &DSNInfo{
		Type:     DBTypeSQLite,
		Database: path,
		Params:   make(map[string]string),
		Original: dsn,
	}
	if strings.TrimSpace(path) == "" {
		return nil, NewParseError(dsn, "missing database file path", "use sqlite://path/to/file.db")
	}

	if rawQuery != "" {
		values, err := url.ParseQuery(rawQuery)
		if err != nil {
			return nil, NewParseError(dsn, "invalid query parameters", "parameters must be key=value pairs joined by &")
		}
		for k, v := range values {
			if len(v) > 0 {
				info.Params[k] = v[0]
			}
		}
	}

	return info, nil
}

// Normalize renders a file: URI understood by modernc.org/sqlite.
func (r *SQLiteResolver) Normalize(info *DSNInfo) (string, error) {
	if info == nil {
		return "", NewParseError("", "nil DSN info", "")
	}
	out := "file:" + info.Database
	if len(info.Params) > 0 {
		q := url.Values{}
		for k, v := range info.Params {
			q.Set(k, v)
		}
		out += "?" + q.Encode()
	}
	return out, nil
}

// Validate checks if the DSN is a usable SQLite DSN.
func (r *SQLiteResolver) Validate(dsn string) error {
	info, err := r.Parse(dsn)
	if err != nil {
		return err
	}
	if info.Params["mode"] == "rwc" {
		return NewParseError(dsn, "mode=rwc would create the database file", "point the DSN at an existing database")
	}
	return nil
}
