package sqlerr

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"regexp"
	"strings"

	"github.com/astrogeo/backend/internal/errs"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"
)

var (
	// Key (username)=(alice) already exists.
	pgDetailKey = regexp.MustCompile(`Key \(([^)]+)\)=`)
)

// Translate converts err into an *errs.Error for the given entity (table).
//
// Errors that already belong to the taxonomy are returned unchanged. Unknown
// errors become errs.KindInternal so nothing is silently dropped.
func Translate(entity string, err error) error {
	if err == nil {
		return nil
	}

	var appErr *errs.Error
	if errors.As(err, &appErr) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &errs.Error{Kind: errs.KindNotFound, Entity: entity, Message: "record not found", Err: err}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return fromPostgres(entity, pgErr)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return fromSQLite(entity, liteErr)
	}

	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errs.DuplicateKey(entity, "", "", err)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return errs.Referential(entity, "", "referenced row does not exist", err)
	case errors.Is(err, gorm.ErrCheckConstraintViolated):
		return &errs.Error{Kind: errs.KindInvalidArgument, Entity: entity, Message: "check constraint violated", Err: err}
	}

	if IsUnavailable(err) {
		return errs.StorageUnavailable(entity, err)
	}

	return errs.Internal(entity, err)
}

// IsUnavailable reports whether err means the engine could not be reached or
// did not answer in time.
func IsUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgUnavailable(pgErr.Code)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteUnavailable(liteErr.Code)
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func fromPostgres(entity string, src *pgconn.PgError) error {
	if src.TableName != "" {
		entity = src.TableName
	}
	field := src.ColumnName
	if field == "" {
		field = keyFromDetail(src.Detail)
	}

	switch src.Code {
	case pgUniqueViolation:
		if field == "" {
			field = columnFromConstraint(entity, src.ConstraintName)
		}
		return errs.DuplicateKey(entity, field, src.ConstraintName, src)

	case pgForeignKeyViolation:
		e := errs.Referential(entity, field, "referenced row does not exist", src)
		e.Constraint = src.ConstraintName
		return e

	case pgCheckViolation, pgNotNullViolation, pgInvalidText:
		if field == "" {
			field = columnFromConstraint(entity, src.ConstraintName)
		}
		return &errs.Error{
			Kind:       errs.KindInvalidArgument,
			Entity:     entity,
			Field:      field,
			Constraint: src.ConstraintName,
			Message:    src.Message,
			Err:        src,
		}
	}

	if pgUnavailable(src.Code) {
		return errs.StorageUnavailable(entity, src)
	}
	return errs.Internal(entity, src)
}

func pgUnavailable(code string) bool {
	if strings.HasPrefix(code, pgConnectionClass) {
		return true
	}
	switch code {
	case pgAdminShutdown, pgCrashShutdown, pgCannotConnectNow, pgQueryCanceled, pgTooManyConnections:
		return true
	}
	return false
}

func fromSQLite(entity string, src sqlite3.Error) error {
	table, field := targetFromSQLiteMessage(src.Error())
	if table != "" {
		entity = table
	}

	switch src.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return errs.DuplicateKey(entity, field, "", src)
	case sqlite3.ErrConstraintForeignKey:
		return errs.Referential(entity, field, "referenced row does not exist", src)
	case sqlite3.ErrConstraintCheck:
		constraint := field
		return &errs.Error{
			Kind:       errs.KindInvalidArgument,
			Entity:     entity,
			Field:      columnFromConstraint(entity, constraint),
			Constraint: constraint,
			Message:    "check constraint violated",
			Err:        src,
		}
	case sqlite3.ErrConstraintNotNull:
		return &errs.Error{Kind: errs.KindInvalidArgument, Entity: entity, Field: field, Message: "value is required", Err: src}
	}

	if liteUnavailable(src.Code) {
		return errs.StorageUnavailable(entity, src)
	}
	return errs.Internal(entity, src)
}

func liteUnavailable(code sqlite3.ErrNo) bool {
	switch code {
	case sqlite3.ErrBusy, sqlite3.ErrLocked, sqlite3.ErrCantOpen, sqlite3.ErrIoErr:
		return true
	}
	return false
}

// keyFromDetail pulls the column list out of a Postgres error detail.
func keyFromDetail(detail string) string {
	m := pgDetailKey.FindStringSubmatch(detail)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(strings.Split(m[1], ",")[0])
}

// targetFromSQLiteMessage parses messages of the form
// "UNIQUE constraint failed: users.username" or
// "CHECK constraint failed: chk_feedback_rating".
func targetFromSQLiteMessage(msg string) (table, field string) {
	idx := strings.LastIndex(msg, "failed: ")
	if idx < 0 {
		return "", ""
	}
	target := strings.TrimSpace(msg[idx+len("failed: "):])
	target = strings.TrimSpace(strings.Split(target, ",")[0])

	if dot := strings.Index(target, "."); dot > 0 {
		return target[:dot], target[dot+1:]
	}
	return "", target
}

// columnFromConstraint derives a column from the naming conventions used by
// the models: idx_<table>_<column>, chk_<table>_<column>, <table>_<column>_key.
func columnFromConstraint(table, constraint string) string {
	if constraint == "" {
		return ""
	}
	for _, prefix := range []string{"idx_", "chk_", "uni_"} {
		if strings.HasPrefix(constraint, prefix) {
			rest := strings.TrimPrefix(constraint, prefix)
			if table != "" && strings.HasPrefix(rest, table+"_") {
				return strings.TrimPrefix(rest, table+"_")
			}
			return rest
		}
	}
	if table != "" && strings.HasPrefix(constraint, table+"_") {
		rest := strings.TrimPrefix(constraint, table+"_")
		rest = strings.TrimSuffix(rest, "_key")
		rest = strings.TrimSuffix(rest, "_check")
		return rest
	}
	return ""
}
