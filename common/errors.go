// Package common provides shared constants, types, and utilities
// used across eOVPN.
package common

import "errors"

// Sentinel errors for eOVPN operations.
// These can be checked with errors.Is() for proper error handling.
var (
	// Session errors.
	ErrAlreadyConnected = errors.New("connection already active")
	ErrBusy             = errors.New("another operation is in progress")
	ErrLaunch           = errors.New("failed to launch process")
	ErrTimeout          = errors.New("operation timed out")
	ErrBinaryNotFound   = errors.New("openvpn binary not found")

	// Remote bundle errors.
	ErrFetch          = errors.New("failed to fetch remote archive")
	ErrExtract        = errors.New("failed to extract archive")
	ErrConfigNotFound = errors.New("no configurations found")

	// Credential errors.
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrCredentialStorage   = errors.New("failed to store credentials")

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

// UserMessage maps an error to a short string suitable for a status line.
// The full error text belongs in the log, not here.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return "Done."
	case errors.Is(err, ErrAlreadyConnected):
		return "Already connected."
	case errors.Is(err, ErrBusy):
		return "Please wait for the current operation to finish."
	case errors.Is(err, ErrBinaryNotFound):
		return "OpenVPN not found."
	case errors.Is(err, ErrLaunch):
		return "Could not start OpenVPN."
	case errors.Is(err, ErrTimeout):
		return "Timed out waiting for the tunnel."
	case errors.Is(err, ErrConfigNotFound):
		return "No config(s) found!"
	case errors.Is(err, ErrFetch):
		return "Could not download remote."
	case errors.Is(err, ErrExtract):
		return "Could not extract config(s)."
	case errors.Is(err, ErrCredentialsNotFound):
		return "No saved credentials."
	default:
		return "Something went wrong."
	}
}
