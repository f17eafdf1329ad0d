// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"querycraft/cli/internal/dsn"
	"querycraft/cli/internal/logging"
	"querycraft/cli/internal/schema"
)

// SchemaInspector builds a schema description from the live database.
// It queries the catalog once and caches the rendered description.
type SchemaInspector struct {
	db     *DB
	logger *pterm.Logger

	// mu protects cached and doc
	mu     sync.RWMutex
	cached bool
	doc    schema.Document
}

// NewSchemaInspector creates a new SchemaInspector over db.
func NewSchemaInspector(db *DB, logger *pterm.Logger) *SchemaInspector {
	if logger == nil {
		logger = logging.Discard()
	}
	return &SchemaInspector{db: db, logger: logger}
}

// Describe returns the rendered description, loading it on first use.
func (si *SchemaInspector) Describe(ctx context.Context) (string, error) {
	doc, err := si.Document(ctx)
	if err != nil {
		return "", err
	}
	return doc.Render(), nil
}

// Document returns the cached document or queries the catalog.
func (si *SchemaInspector) Document(ctx context.Context) (schema.Document, error) {
	si.mu.RLock()
	if si.cached {
		doc := si.doc
		si.mu.RUnlock()
		return doc, nil
	}
	si.mu.RUnlock()

	doc, err := si.load(ctx)
	if err != nil {
		return schema.Document{}, err
	}

	si.mu.Lock()
	si.doc, si.cached = doc, true
	si.mu.Unlock()
	return doc, nil
}

// ClearCache drops the cached description so the next call reads the catalog.
func (si *SchemaInspector) ClearCache() {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.cached = false
	si.doc = schema.Document{}
}

type columnRow struct {
	table, column, typ string
	primary            bool
}

func (si *SchemaInspector) load(ctx context.Context) (schema.Document, error) {
	var (
		rows []columnRow
		err  error
		doc  = schema.Document{}
	)
	switch si.db.dialect {
	case dsn.DBTypePostgreSQL:
		doc.Dialect = "PostgreSQL"
		rows, err = si.query(ctx, postgresColumnsQuery)
	case dsn.DBTypeMySQL:
		doc.Dialect = "MySQL"
		rows, err = si.query(ctx, mysqlColumnsQuery)
	case dsn.DBTypeSQLite:
		doc.Dialect = "SQLite"
		rows, err = si.query(ctx, sqliteColumnsQuery)
	default:
		return doc, fmt.Errorf("schema introspection not supported for %s", si.db.dialect)
	}
	if err != nil {
		return doc, fmt.Errorf("read catalog: %w", err)
	}
	if len(rows) == 0 {
		return doc, fmt.Errorf("read catalog: no tables visible to this connection")
	}

	var enums map[string]map[string][]string
	if si.db.dialect == dsn.DBTypePostgreSQL {
		if enums, err = si.loadCheckConstraints(ctx); err != nil {
			// Non-fatal: continue without allowed values
			si.logger.Debug("failed to load check constraints", si.logger.Args("error", err.Error()))
		}
	}

	byName := map[string]int{}
	for _, r := range rows {
		i, ok := byName[r.table]
		if !ok {
			i = len(doc.Tables)
			byName[r.table] = i
			doc.Tables = append(doc.Tables, schema.Table{Name: r.table})
		}
		col := schema.Column{Name: r.column, Type: strings.ToLower(r.typ)}
		if r.primary {
			col.Description = "primary key"
		}
		col.Values = enums[r.table][r.column]
		doc.Tables[i].Columns = append(doc.Tables[i].Columns, col)
	}
	return doc, nil
}

func (si *SchemaInspector) query(ctx context.Context, q string) ([]columnRow, error) {
	rows, err := si.db.sql.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []columnRow
	for rows.Next() {
		var r columnRow
		if err := rows.Scan(&r.table, &r.column, &r.typ, &r.primary); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

const postgresColumnsQuery = `
	SELECT
		CASE WHEN c.table_schema = 'public' THEN c.table_name ELSE c.table_schema || '.' || c.table_name END,
		c.column_name,
		c.data_type,
		EXISTS (
			SELECT 1
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kc
				ON tc.constraint_name = kc.constraint_name AND tc.table_schema = kc.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
				AND kc.table_schema = c.table_schema
				AND kc.table_name = c.table_name
				AND kc.column_name = c.column_name
		)
	FROM information_schema.columns c
	WHERE c.table_schema NOT IN ('pg_catalog', 'information_schema')
	ORDER BY c.table_schema, c.table_name, c.ordinal_position`

const mysqlColumnsQuery = `
	SELECT c.table_name, c.column_name, c.column_type, c.column_key = 'PRI'
	FROM information_schema.columns c
	WHERE c.table_schema = DATABASE()
	ORDER BY c.table_name, c.ordinal_position`

const sqliteColumnsQuery = `
	SELECT m.name, p.name, p.type, p.pk > 0
	FROM sqlite_master AS m
	JOIN pragma_table_info(m.name) AS p
	WHERE m.type = 'table' AND m.name NOT LIKE 'sqlite_%'
	ORDER BY m.name, p.cid`

// loadCheckConstraints returns allowed values of single-column CHECK constraints
// in the public schema, keyed by table then column.
func (si *SchemaInspector) loadCheckConstraints(ctx context.Context) (map[string]map[string][]string, error) {
	checkQuery := `
		SELECT rel.relname, att.attname, pg_get_constraintdef(con.oid)
		FROM pg_constraint con
		JOIN pg_class rel ON rel.oid = con.conrelid
		JOIN pg_namespace nsp ON nsp.oid = rel.relnamespace
		JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = con.conkey[1]
		WHERE con.contype = 'c' AND cardinality(con.conkey) = 1 AND nsp.nspname = 'public'`

	rows, err := si.db.sql.QueryContext(ctx, checkQuery)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]map[string][]string{}
	for rows.Next() {
		var table, column, clause string
		if err := rows.Scan(&table, &column, &clause); err != nil {
			return nil, err
		}
		if values := extractEnumValues(clause); len(values) > 0 {
			if out[table] == nil {
				out[table] = map[string][]string{}
			}
			out[table][column] = values
		}
	}
	return out, rows.Err()
}

var (
	inRegex  = regexp.MustCompile(`(?i)IN\s*\(\s*([^)]+)\)`)
	anyRegex = regexp.MustCompile(`(?i)=\s*ANY\s*\(\s*\(?\s*ARRAY\s*\[([^\]]+)\]`)
)

// extractEnumValues extracts enum values from a check constraint clause.
// It supports patterns like:
//   - "status IN ('pending','completed')"
//   - "CHECK ((status)::text = ANY ((ARRAY['pending'::character varying, ...])::text[]))"
func extractEnumValues(checkClause string) []string {
	if match := inRegex.FindStringSubmatch(checkClause); len(match) > 1 {
		return parseEnumValueList(match[1])
	}
	if match := anyRegex.FindStringSubmatch(checkClause); len(match) > 1 {
		return parseEnumValueList(match[1])
	}
	return nil
}

// parseEnumValueList parses a comma-separated list of enum values.
// It handles both single and double quotes, trims whitespace and drops casts.
func parseEnumValueList(valueList string) []string {
	var result []string
	for _, val := range strings.Split(valueList, ",") {
		val = strings.TrimSpace(val)
		if idx := strings.Index(val, "::"); idx >= 0 {
			val = val[:idx]
		}
		val = strings.Trim(val, "'\"")
		if val != "" {
			result = append(result, val)
		}
	}
	return result
}
