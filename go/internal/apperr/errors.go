// Package apperr defines the error taxonomy shared by every layer: callers
// branch on Kind, never on message text.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an application error.
type Kind string

const (
	KindValidation    Kind = "VALIDATION"
	KindAuthorization Kind = "AUTHORIZATION"
	KindStateConflict Kind = "STATE_CONFLICT"
	KindNotFound      Kind = "NOT_FOUND"
	KindStorage       Kind = "STORAGE"
)

// Error is a classified error. Msg is safe to show to clients.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validationf reports a malformed or incomplete request.
func Validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Unauthorizedf reports a bad credential or a device acting outside its pairing.
func Unauthorizedf(format string, args ...any) error {
	return &Error{Kind: KindAuthorization, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf reports an illegal state transition or an exclusivity violation.
func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindStateConflict, Msg: fmt.Sprintf(format, args...)}
}

// NotFoundf reports an unknown entity.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Storage wraps a transactional failure.
func Storage(err error, msg string) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return &Error{Kind: KindStorage, Msg: msg, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
// Unclassified errors are treated as storage failures.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindStorage
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// PublicMessage returns the text a client may see for err.
func PublicMessage(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindStorage {
		return ae.Msg
	}
	return "internal error"
}
