// Package apperr defines the error taxonomy shared across the ingest,
// store, dispatcher, and HTTP layers so handlers can map any error to the
// right status code with a single errors.As switch.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for HTTP status mapping and metrics labeling.
type Kind string

const (
	KindValidation   Kind = "validation"
	KindNotFound     Kind = "not_found"
	KindUnauthorized Kind = "unauthorized"
	KindStore        Kind = "store"
	KindGateway      Kind = "gateway"
	KindChannelClosed Kind = "channel_closed"
)

// Error wraps an underlying cause with a Kind so callers can branch on it
// with errors.As without string-matching messages.
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

func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

func Validation(msg string) error               { return newErr(KindValidation, msg, nil) }
func Validationf(format string, a ...any) error  { return newErr(KindValidation, fmt.Sprintf(format, a...), nil) }
func NotFound(entity string) error              { return newErr(KindNotFound, entity+" not found", nil) }
func Unauthorized(msg string) error             { return newErr(KindUnauthorized, msg, nil) }
func Store(msg string, cause error) error       { return newErr(KindStore, msg, cause) }
func Gateway(msg string, cause error) error     { return newErr(KindGateway, msg, cause) }
func ChannelClosed(msg string) error            { return newErr(KindChannelClosed, msg, nil) }

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
