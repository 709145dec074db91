// Package apperr defines the error kinds surfaced to API clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind string

const (
	KindAuth                 Kind = "auth_failure"
	KindProfileInconsistency Kind = "profile_inconsistency"
	KindMutation             Kind = "mutation_failure"
	KindUpload               Kind = "upload_failure"
	KindForbidden            Kind = "forbidden"
	KindNotFound             Kind = "not_found"
	KindValidation           Kind = "validation"
	KindRateLimited          Kind = "rate_limited"
	KindInternal             Kind = "internal"
)

type Error struct {
	Kind    Kind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, status int, message string, err error) *Error {
	return &Error{Kind: kind, Status: status, Message: message, Err: err}
}

// Auth wraps an identity provider failure. The message shown to the user is
// stripped of provider prefixes.
func Auth(err error) *Error {
	msg := "authentication failed"
	if err != nil {
		msg = SanitizeAuthMessage(err.Error())
	}
	return newError(KindAuth, http.StatusUnauthorized, msg, err)
}

func Mutation(message string, err error) *Error {
	return newError(KindMutation, http.StatusInternalServerError, message, err)
}

func Upload(message string, err error) *Error {
	if message == "" {
		message = "Upload failed"
	}
	return newError(KindUpload, http.StatusBadGateway, message, err)
}

func Forbidden(message string) *Error {
	return newError(KindForbidden, http.StatusForbidden, message, nil)
}

func NotFound(message string) *Error {
	return newError(KindNotFound, http.StatusNotFound, message, nil)
}

func Validation(message string) *Error {
	return newError(KindValidation, http.StatusBadRequest, message, nil)
}

func RateLimited(message string) *Error {
	return newError(KindRateLimited, http.StatusTooManyRequests, message, nil)
}

func Internal(err error) *Error {
	return newError(KindInternal, http.StatusInternalServerError, "Something went wrong", err)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

// SanitizeAuthMessage removes provider-specific prefixes such as "Firebase:"
// and "auth/" from an authentication error message.
func SanitizeAuthMessage(msg string) string {
	msg = strings.ReplaceAll(msg, "Firebase:", "")
	msg = strings.ReplaceAll(msg, "auth/", "")
	return strings.TrimSpace(msg)
}
