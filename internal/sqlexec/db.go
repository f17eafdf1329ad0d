// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pterm/pterm"
	_ "modernc.org/sqlite"

	"querycraft/cli/internal/dsn"
)

// PoolOptions sizes the connection pool.
type PoolOptions struct {
	// MaxConns caps open connections; zero keeps the driver default.
	MaxConns int
	// SkipPing opens the pool without connecting. The first query (or Ping)
	// reports an unreachable database.
	SkipPing bool
}

// DB is a connection pool for one of the supported engines.
type DB struct {
	sql     *sql.DB
	dialect dsn.DBType
	closers []func()
}

// Open parses rawDSN, opens a pool for its engine and, unless opts.SkipPing is
// set, pings it.
//
// PostgreSQL pools are built with pgxpool and exposed through database/sql; every
// session starts with default_transaction_read_only=on. SQLite connections open
// with the query_only pragma. MySQL relies on START TRANSACTION READ ONLY.
func Open(ctx context.Context, rawDSN string, opts PoolOptions) (*DB, error) {
	info, err := dsn.ParseInfo(rawDSN)
	if err != nil {
		return nil, err
	}
	normalized, err := dsn.Parse(rawDSN)
	if err != nil {
		return nil, err
	}

	var db *DB
	switch info.Type {
	case dsn.DBTypePostgreSQL:
		db, err = openPostgres(ctx, normalized, opts)
	case dsn.DBTypeMySQL:
		db, err = openSQL("mysql", normalized, dsn.DBTypeMySQL, opts)
	case dsn.DBTypeSQLite:
		db, err = openSQL("sqlite", sqliteDSN(normalized), dsn.DBTypeSQLite, opts)
	default:
		return nil, fmt.Errorf("unsupported database type %q", info.Type)
	}
	if err != nil {
		return nil, err
	}

	if opts.SkipPing {
		return db, nil
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to %s: %w", info.Type, err)
	}
	return db, nil
}

func openPostgres(ctx context.Context, normalized string, opts PoolOptions) (*DB, error) {
	cfg, err := pgxpool.ParseConfig(normalized)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = int32(opts.MaxConns)
	}
	cfg.ConnConfig.RuntimeParams["application_name"] = "querycraft"
	cfg.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	sqlDB := stdlib.OpenDBFromPool(pool)
	return &DB{
		sql:     sqlDB,
		dialect: dsn.DBTypePostgreSQL,
		closers: []func(){func() { sqlDB.Close() }, pool.Close},
	}, nil
}

func openSQL(driver, source string, dialect dsn.DBType, opts PoolOptions) (*DB, error) {
	sqlDB, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if opts.MaxConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxConns)
	}
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	return &DB{
		sql:     sqlDB,
		dialect: dialect,
		closers: []func(){func() { sqlDB.Close() }},
	}, nil
}

func sqliteDSN(normalized string) string {
	sep := "?"
	if strings.Contains(normalized, "?") {
		sep = "&"
	}
	return normalized + sep + "_pragma=query_only(1)&_pragma=busy_timeout(5000)"
}

// NewDB wraps an already opened database/sql pool. Close closes it.
func NewDB(db *sql.DB, dialect dsn.DBType) *DB {
	return &DB{sql: db, dialect: dialect, closers: []func(){func() { db.Close() }}}
}

// Dialect returns the engine behind the pool.
func (db *DB) Dialect() dsn.DBType { return db.dialect }

// Ping verifies a connection can be established.
func (db *DB) Ping(ctx context.Context) error { return db.sql.PingContext(ctx) }

// Close releases the pool.
func (db *DB) Close() {
	for _, c := range db.closers {
		c()
	}
}

// txOptions returns the options for the read-only transaction each query runs in.
// modernc's SQLite driver does not take a read-only flag; its connections are
// opened with query_only instead.
func (db *DB) txOptions() *sql.TxOptions {
	if db.dialect == dsn.DBTypeSQLite {
		return nil
	}
	return &sql.TxOptions{ReadOnly: true}
}

// prepareTx applies the engine-side statement timeout to tx.
func (db *DB) prepareTx(ctx context.Context, tx *sql.Tx, timeout time.Duration, logger *pterm.Logger) error {
	ms := timeout.Milliseconds()
	switch db.dialect {
	case dsn.DBTypePostgreSQL:
		// SET LOCAL reverts when the transaction ends.
		_, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL statement_timeout = %d", ms))
		return err
	case dsn.DBTypeMySQL:
		// MAX_EXECUTION_TIME is session state and outlives the transaction on the
		// pooled connection. Every query sets the same executor timeout, so the
		// leftover value is always the current one. MariaDB has no such variable;
		// the context deadline still applies there.
		if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET SESSION MAX_EXECUTION_TIME = %d", ms)); err != nil {
			logger.Debug("engine statement timeout not applied", logger.Args("error", err.Error()))
		}
	case dsn.DBTypeSQLite:
		_, err := tx.ExecContext(ctx, "PRAGMA query_only = ON")
		return err
	}
	return nil
}
