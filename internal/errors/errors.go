package errors

import (
	"errors"
	"fmt"
)

// Common error types for the SAML service provider
var (
	// Protocol errors raised while decoding or classifying SAML messages
	ErrMalformedMessage     = errors.New("malformed saml message")
	ErrInvalidSignature     = errors.New("invalid saml signature")
	ErrUnhandledMessageType = errors.New("unhandled saml message type")
	ErrReplayedMessage      = errors.New("replayed saml message")

	// Logout flow errors
	ErrUpstreamLogoutFailed = errors.New("upstream logout failed")
	ErrNoActiveIdPEndpoint  = errors.New("no usable idp single logout endpoint")

	// Metadata and credential errors
	ErrInvalidMetadata   = errors.New("invalid idp metadata")
	ErrInvalidCredential = errors.New("invalid sp credential")

	// Store errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrUserNotFound    = errors.New("user not found")

	// General errors
	ErrNotFound = errors.New("not found")
	ErrInternal = errors.New("internal error")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
