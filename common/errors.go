// Package common provides shared constants, types, and utilities
// used across the VPN Client application.
package common

import "errors"

// Sentinel errors for VPN client operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// API errors. Both mark a refresh attempt as failed without stopping
	// any periodic schedule.
	ErrAPIUnreachable    = errors.New("API not reachable")
	ErrMalformedResponse = errors.New("malformed API response")

	// Session errors.
	ErrNotLoggedIn      = errors.New("no VPN session loaded")
	ErrSessionExpired   = errors.New("VPN session expired")
	ErrInvalidSessionID = errors.New("invalid session identifier")

	// Lifecycle errors.
	ErrAlreadyRunning = errors.New("already running")
	ErrNotRunning     = errors.New("not running")

	// Backoff errors. A negative attempt count is a programming error and
	// fails fast instead of being clamped.
	ErrInvalidBackoffInput = errors.New("failed attempt count must not be negative")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrCredentialStorage   = errors.New("failed to store credentials")

	// Connection errors.
	ErrAlreadyConnected = errors.New("connection already active")
	ErrNotConnected     = errors.New("no active connection")
	ErrConnectionFailed = errors.New("connection failed")

	// Port forwarding errors.
	ErrPortMismatch = errors.New("UDP and TCP mapped ports differ")

	// Configuration errors.
	ErrConfigLoad = errors.New("failed to load configuration")
	ErrConfigSave = errors.New("failed to save configuration")
)

// WrapError wraps an error with additional context.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return &wrappedError{
		msg: message,
		err: err,
	}
}

type wrappedError struct {
	msg string
	err error
}

func (e *wrappedError) Error() string {
	return e.msg + ": " + e.err.Error()
}

func (e *wrappedError) Unwrap() error {
	return e.err
}
