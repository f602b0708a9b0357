package errors

import (
	"errors"
	"fmt"
)

var (
	ErrWorkerPanic   = fmt.Errorf("worker panic")
	ErrEmptyWords    = fmt.Errorf("no words have been found")
	ErrEmptyUsername = fmt.Errorf("username is empty")

	// Connection lifecycle
	ErrAuthFailure       = fmt.Errorf("authentication failed")
	ErrMalformedFrame    = fmt.Errorf("malformed frame")
	ErrUnauthenticated   = fmt.Errorf("connection has no resolved identity")
	ErrConnectionClosed  = fmt.Errorf("connection closed")
	ErrSlowConsumer      = fmt.Errorf("connection send buffer full")
	ErrStoreFailure      = fmt.Errorf("message could not be persisted")
	ErrAttachmentFailure = fmt.Errorf("attachment could not be stored")

	// Accounts
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrUserNotFound       = fmt.Errorf("user not found")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)

// Is and As are re-exported so callers importing this package under the
// "errors" name keep access to the standard helpers.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
