package domain

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"
)

// ErrorKind error taxonomy exposed to the route layer
type ErrorKind string

const (
	KindDatabaseConnection ErrorKind = "DATABASE_CONNECTION" // transient, retryable
	KindValidation         ErrorKind = "VALIDATION"
	KindAuthentication     ErrorKind = "AUTHENTICATION"
	KindNotFound           ErrorKind = "NOT_FOUND"
	KindServer             ErrorKind = "SERVER"
)

// Retryable only connection failures are worth retrying.
func (k ErrorKind) Retryable() bool {
	return k == KindDatabaseConnection
}

// AppError classified error carrying the operation that produced it.
type AppError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *AppError) Unwrap() error { return e.Err }

// NewValidationError caller input is invalid.
func NewValidationError(op, message string) *AppError {
	return &AppError{Kind: KindValidation, Op: op, Message: message}
}

// NewAuthError session or ownership failure.
func NewAuthError(op, message string) *AppError {
	return &AppError{Kind: KindAuthentication, Op: op, Message: message}
}

// NewNotFoundError missing entity.
func NewNotFoundError(op, message string) *AppError {
	return &AppError{Kind: KindNotFound, Op: op, Message: message}
}

// Wrap classifies err (see KindOf) and attaches op. Already classified errors keep
// their kind and message.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *AppError
	if errors.As(err, &ae) {
		if ae.Op == "" {
			ae.Op = op
		}
		return ae
	}
	return &AppError{Kind: KindOf(err), Op: op, Err: err}
}

// KindOf re-classifies an arbitrary error into the taxonomy.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, sql.ErrNoRows) {
		return KindNotFound
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return KindDatabaseConnection
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57": // connection exception, insufficient resources, operator intervention
			return KindDatabaseConnection
		case "22", "23": // data exception, integrity constraint violation
			return KindValidation
		}
		return KindServer
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindDatabaseConnection
	}
	return KindServer
}

// MessageOf user-facing message for err.
func MessageOf(err error) string {
	var ae *AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	switch KindOf(err) {
	case KindDatabaseConnection:
		return "database temporarily unavailable"
	case KindNotFound:
		return "not found"
	}
	return "internal server error"
}
