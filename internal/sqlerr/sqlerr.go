// Package sqlerr translates database driver errors into the errs taxonomy.
//
// It understands raw Postgres errors (pgconn.PgError, SQLSTATE codes), SQLite
// errors (mattn/go-sqlite3 extended result codes), the gorm sentinel errors
// and connection-level failures, so repositories never surface a raw engine
// error to their callers.
package sqlerr

// Postgres SQLSTATE codes the translator cares about.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
	pgInvalidText         = "22P02"
	pgAdminShutdown       = "57P01"
	pgCrashShutdown       = "57P02"
	pgCannotConnectNow    = "57P03"
	pgQueryCanceled       = "57014"
	pgTooManyConnections  = "53300"

	// Class 08 covers every connection exception.
	pgConnectionClass = "08"
)
