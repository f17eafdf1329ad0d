// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package dsn

import (
	"strings"
)

const supportedSchemes = "use postgres://, mysql://, sqlite:// or file:"

// DetectDBType detects the database type from a DSN string
func DetectDBType(dsn string) DBType {
	lower := strings.ToLower(strings.TrimSpace(dsn))

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return DBTypePostgreSQL
	case strings.HasPrefix(lower, "mysql://"):
		return DBTypeMySQL
	case strings.HasPrefix(lower, "sqlite:"), strings.HasPrefix(lower, "sqlite3:"), strings.HasPrefix(lower, "file:"):
		return DBTypeSQLite
	}

	return DBTypeUnknown
}

// resolverFor picks the resolver for a DSN or reports why none applies.
func resolverFor(dsn string) (Resolver, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, NewParseError(dsn, "empty DSN", "provide a valid database connection string")
	}

	switch DetectDBType(dsn) {
	case DBTypePostgreSQL:
		return NewPostgreSQLResolver(), nil
	case DBTypeMySQL:
		return NewMySQLResolver(), nil
	case DBTypeSQLite:
		return NewSQLiteResolver(), nil
	default:
		return nil, NewParseError(dsn, "unknown database type", supportedSchemes)
	}
}

// Parse parses a DSN string and returns the normalized connection string.
// This is the main entry point for DSN parsing
func Parse(dsn string) (string, error) {
	resolver, err := resolverFor(dsn)
	if err != nil {
		return "", err
	}

	info, err := resolver.Parse(strings.TrimSpace(dsn))
	if err != nil {
		return "", err
	}

	return resolver.Normalize(info)
}

// Validate validates a DSN string without normalizing it
func Validate(dsn string) error {
	resolver, err := resolverFor(dsn)
	if err != nil {
		return err
	}
	return resolver.Validate(strings.TrimSpace(dsn))
}

// ParseInfo parses a DSN string and returns detailed DSN info
// Useful for inspecting connection details
func ParseInfo(dsn string) (*DSNInfo, error) {
	resolver, err := resolverFor(dsn)
	if err != nil {
		return nil, err
	}
	return resolver.Parse(strings.TrimSpace(dsn))
}
