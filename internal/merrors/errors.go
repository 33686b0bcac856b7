// Package merrors provides the semantic error taxonomy shared across the
// storage and consolidation core: a small classification surface with no
// transport-layer (JSON-RPC/HTTP/GraphQL) mapping of its own.
package merrors

import (
	"errors"
	"fmt"
)

// Kind identifies the semantic category of an error, matching the taxonomy
// this module uses: ValidationError, StorageError, NetworkError, LimitError,
// EmbeddingError, MigrationError, TimeExpressionError.
type Kind string

const (
	KindValidation Kind = "validation"
	KindStorage    Kind = "storage"
	KindNetwork    Kind = "network"
	KindLimit      Kind = "limit"
	KindEmbedding  Kind = "embedding"
	KindMigration  Kind = "migration"
	KindTimeExpr   Kind = "time_expression"
	KindNotFound   Kind = "not_found"
	KindDuplicate  Kind = "duplicate"
)

// Error is the unified error type produced across this module.
type Error struct {
	Kind      Kind
	Message   string
	Retryable bool
	Permanent bool
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind wrapping an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Validation builds a ValidationError: never retried.
func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Storage builds a StorageError: transient, retryable with small backoff.
func Storage(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindStorage, Message: fmt.Sprintf(format, args...), Err: err, Retryable: true}
}

// Network builds a NetworkError: retryable with exponential backoff.
func Network(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindNetwork, Message: fmt.Sprintf(format, args...), Err: err, Retryable: true}
}

// Limit builds a LimitError: never retried, always permanent.
func Limit(format string, args ...interface{}) *Error {
	return &Error{Kind: KindLimit, Message: fmt.Sprintf(format, args...), Permanent: true}
}

// Embedding builds an EmbeddingError.
func Embedding(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindEmbedding, Message: fmt.Sprintf(format, args...), Err: err}
}

// Migration builds a MigrationError.
func Migration(err error, format string, args ...interface{}) *Error {
	return &Error{Kind: KindMigration, Message: fmt.Sprintf(format, args...), Err: err}
}

// TimeExpression builds a TimeExpressionError naming the bad token.
func TimeExpression(token string) *Error {
	return &Error{Kind: KindTimeExpr, Message: fmt.Sprintf("unrecognized time expression %q", token)}
}

// NotFound builds a not-found condition, which is not an
// error the caller should treat as infrastructure failure.
func NotFound(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Duplicate builds the idempotent-duplicate-store condition.
func Duplicate(hash string) *Error {
	return &Error{Kind: KindDuplicate, Message: fmt.Sprintf("memory %s already exists", hash)}
}

// As is a thin re-export of errors.As for callers that don't want to import
// both packages.
func As(err error, target interface{}) bool { return errors.As(err, target) }

// OfKind reports whether err is an *Error of the given kind.
func OfKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// IsRetryable reports whether the error should be retried by a caller such
// as the sync worker or the cloud store's HTTP client.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable && !e.Permanent
	}
	return false
}

// IsPermanent reports whether the error should be recorded and never retried.
func IsPermanent(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Permanent
	}
	return false
}
