package domain

import "errors"

var (
	ErrEmptySession = errors.New("session id must not be empty")
	ErrEmptyMessage = errors.New("message must not be empty")
	ErrEmptyOption  = errors.New("option value must not be empty")

	ErrSessionNotFound = errors.New("session expired or not found")

	ErrRateLimited      = errors.New("too many requests")
	ErrConcurrencyLimit = errors.New("server busy")

	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidOption    = errors.New("invalid option value")

	ErrNoCategorization = errors.New("no categorization available")
)

// IsInputError reports whether err was caused by the caller's input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrEmptySession) ||
		errors.Is(err, ErrEmptyMessage) ||
		errors.Is(err, ErrEmptyOption) ||
		errors.Is(err, ErrInvalidOption)
}

// IsThrottled reports whether err is a resource-exhaustion rejection.
func IsThrottled(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrConcurrencyLimit)
}
