package usgs

import (
	"errors"
	"fmt"
)

var (
	// ErrNotLoggedIn is returned by authenticated calls before a login.
	ErrNotLoggedIn = errors.New("usgs: not logged in")
	// ErrAuthExpired marks session tokens the service no longer accepts,
	// including tokens older than the two-hour session lifetime.
	ErrAuthExpired = errors.New("usgs: session expired or unauthorized")
	// ErrRateLimited marks requests rejected by the service's rate limiter.
	ErrRateLimited = errors.New("usgs: rate limited")
)

// ServiceError is an in-band error reported through the response envelope's
// errorCode/errorMessage pair.
type ServiceError struct {
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("usgs: %s: %s", e.Code, e.Message)
}

// mapServiceError folds well-known error codes into sentinel errors so
// callers can branch with errors.Is. Unknown codes surface as a plain
// ServiceError.
func mapServiceError(code, message string) error {
	svcErr := &ServiceError{Code: code, Message: message}
	switch code {
	case "RATE_LIMIT", "RATE_LIMIT_USER", "RATE_LIMIT_USER_DL":
		return fmt.Errorf("%w: %w", ErrRateLimited, svcErr)
	case "AUTH_INVALID", "AUTH_UNAUTHORIZED", "AUTH_KEY_INVALID":
		return fmt.Errorf("%w: %w", ErrAuthExpired, svcErr)
	}
	return svcErr
}

// IsRateLimited reports whether err stems from service rate limiting.
func IsRateLimited(err error) bool { return errors.Is(err, ErrRateLimited) }

// IsAuthExpired reports whether err stems from a dead or rejected session.
func IsAuthExpired(err error) bool { return errors.Is(err, ErrAuthExpired) }
