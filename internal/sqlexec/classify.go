// Copyright (c) 2025 QueryCraft
// Licensed under the MIT License. See LICENSE file in the project root for details.

package sqlexec

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Engine error codes the executor distinguishes.
const (
	pgQueryCanceled           = "57014"
	pgReadOnlySQLTransaction  = "25006"
	mysqlReadOnlyTransaction  = 1792
	mysqlQueryExecInterrupted = 3024
)

func isTimeout(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgQueryCanceled
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlQueryExecInterrupted
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_INTERRUPT
	}
	return false
}

func isReadOnly(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgReadOnlySQLTransaction
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlReadOnlyTransaction
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_READONLY
	}
	return false
}

// engineMessage extracts the message an engine attached to err. Connection and
// protocol errors have none.
func engineMessage(err error) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Message, true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Message, true
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return strings.TrimSpace(liteErr.Error()), true
	}
	return "", false
}
