// Package errs defines the error taxonomy returned by the data-access layer.
//
// Every repository failure is an *Error carrying a Kind plus enough context
// (entity, field, constraint) for the caller to act on. Callers match kinds
// with errors.Is against the sentinel values:
//
//	if errors.Is(err, errs.ErrDuplicateKey) { ... }
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure.
type Kind string

const (
	KindDuplicateKey       Kind = "DUPLICATE_KEY"
	KindNotFound           Kind = "NOT_FOUND"
	KindInvalidArgument    Kind = "INVALID_ARGUMENT"
	KindReferential        Kind = "REFERENTIAL_ERROR"
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
	KindInternal           Kind = "INTERNAL"
)

// Sentinels for errors.Is.
var (
	ErrDuplicateKey       = &Error{Kind: KindDuplicateKey}
	ErrNotFound           = &Error{Kind: KindNotFound}
	ErrInvalidArgument    = &Error{Kind: KindInvalidArgument}
	ErrReferential        = &Error{Kind: KindReferential}
	ErrStorageUnavailable = &Error{Kind: KindStorageUnavailable}
	ErrInternal           = &Error{Kind: KindInternal}
)

// Error is the concrete error type of the taxonomy.
type Error struct {
	Kind Kind

	// Entity is the table the operation targeted (e.g. "users").
	Entity string

	// Field is the column involved, when known (e.g. "email").
	Field string

	// Constraint is the violated constraint name, when known.
	Constraint string

	Message string

	// Err is the underlying driver or context error.
	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(strings.ToLower(string(e.Kind)))
	if e.Entity != "" {
		b.WriteString(": ")
		b.WriteString(e.Entity)
		if e.Field != "" {
			b.WriteString(".")
			b.WriteString(e.Field)
		}
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Constraint != "" {
		fmt.Fprintf(&b, " (constraint %s)", e.Constraint)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind only. A referential error is also an invalid argument:
// the caller supplied an id that does not resolve.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindReferential && t.Kind == KindInvalidArgument
}

// KindOf reports the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func DuplicateKey(entity, field, constraint string, err error) *Error {
	return &Error{
		Kind:       KindDuplicateKey,
		Entity:     entity,
		Field:      field,
		Constraint: constraint,
		Message:    "value already exists",
		Err:        err,
	}
}

func NotFound(entity string, id any) *Error {
	return &Error{
		Kind:    KindNotFound,
		Entity:  entity,
		Field:   "id",
		Message: fmt.Sprintf("no row with id %v", id),
	}
}

// InvalidArgument reports a validation failure on a single field.
func InvalidArgument(entity, field, message string) *Error {
	return &Error{
		Kind:    KindInvalidArgument,
		Entity:  entity,
		Field:   field,
		Message: message,
	}
}

func Referential(entity, field, message string, err error) *Error {
	return &Error{
		Kind:    KindReferential,
		Entity:  entity,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

func StorageUnavailable(entity string, err error) *Error {
	return &Error{
		Kind:    KindStorageUnavailable,
		Entity:  entity,
		Message: "storage unavailable",
		Err:     err,
	}
}

func Internal(entity string, err error) *Error {
	return &Error{
		Kind:   KindInternal,
		Entity: entity,
		Err:    err,
	}
}
