// Package errors provides a unified error handling system for docchat.
//
// It implements a structured error code system:
//
//   - Globally unique error codes
//   - Module-based categorization
//   - Multi-language support (EN/ZH)
//   - HTTP status code mapping
//
// Error Code Format: AABBCCC (7 digits)
//
//	AA  (00-99): Service/Module code - identifies the source subsystem
//	BB  (00-99): Category code - identifies the error category
//	CCC (000-999): Sequence number - specific error within the category
//
// Service Codes (AA):
//
//	00: Common/Base errors
//	20: Ingestion pipeline (parser, chunker, embedder)
//	21: Retrieval
//	22: Chat/Answer pipeline
//	90-99: Third-party service errors
//
// Usage:
//
//	// Using predefined errors
//	return errors.ErrUnsupportedFormat.WithMessage("mime type image/png")
//
//	// Wrapping underlying errors
//	return errors.ErrParseFailure.WithCause(err)
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// Errno represents a structured error with code and messages.
type Errno struct {
	// Code is the unique error code
	Code int `json:"code"`

	// HTTP is the HTTP status code to return
	HTTP int `json:"-"`

	// MessageEN is the English error message
	MessageEN string `json:"message"`

	// MessageZH is the Chinese error message
	MessageZH string `json:"message_zh,omitempty"`

	// Retryable marks errors that the caller may retry
	Retryable bool `json:"-"`

	// cause is the underlying error
	cause error
}

// Error implements the error interface.
func (e *Errno) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("errno %d: %s: %v", e.Code, e.MessageEN, e.cause)
	}
	return fmt.Sprintf("errno %d: %s", e.Code, e.MessageEN)
}

// Unwrap returns the underlying cause.
func (e *Errno) Unwrap() error {
	return e.cause
}

// WithCause creates a new Errno with the given cause.
func (e *Errno) WithCause(cause error) *Errno {
	clone := *e
	clone.cause = cause
	return &clone
}

// WithMessage creates a new Errno with a custom English message.
func (e *Errno) WithMessage(msg string) *Errno {
	clone := *e
	clone.MessageEN = msg
	return &clone
}

// WithMessagef creates a new Errno with a formatted English message.
func (e *Errno) WithMessagef(format string, args ...any) *Errno {
	return e.WithMessage(fmt.Sprintf(format, args...))
}

// Message returns the message for the given language ("zh" or "en").
func (e *Errno) Message(lang string) string {
	if lang == "zh" && e.MessageZH != "" {
		return e.MessageZH
	}
	return e.MessageEN
}

// HTTPStatus returns the mapped HTTP status code.
func (e *Errno) HTTPStatus() int {
	if e.HTTP == 0 {
		return http.StatusInternalServerError
	}
	return e.HTTP
}

// Is reports whether target is an Errno with the same code. This makes
// errors.Is work across WithCause/WithMessage clones.
func (e *Errno) Is(target error) bool {
	var t *Errno
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// MakeCode builds an error code from service, category and sequence parts.
func MakeCode(service, category, seq int) int {
	return service*100000 + category*1000 + seq
}

var (
	registryMu sync.RWMutex
	registered = make(map[int]*Errno)
)

// Register registers an Errno and returns it. Duplicate codes panic,
// codes must stay globally unique.
func Register(e *Errno) *Errno {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registered[e.Code]; ok {
		panic(fmt.Sprintf("errors: duplicate errno code %d", e.Code))
	}
	registered[e.Code] = e
	return e
}

// Lookup returns the registered Errno for a code.
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := registered[code]
	return e, ok
}

// FromError extracts an Errno from err, falling back to ErrInternal.
func FromError(err error) *Errno {
	if err == nil {
		return OK
	}
	var e *Errno
	if errors.As(err, &e) {
		return e
	}
	return ErrInternal.WithCause(err)
}

// IsCode reports whether err carries the given errno code.
func IsCode(err error, code int) bool {
	var e *Errno
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}

// GetCode returns the errno code of err, or the internal error code.
func GetCode(err error) int {
	return FromError(err).Code
}
