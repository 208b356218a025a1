package claim

import "errors"

var (
	ErrUnauthenticated = errors.New("you must be signed in")
	// ErrInvalidLink covers unknown, used and expired links alike.
	ErrInvalidLink     = errors.New("this claim link is invalid, already used, or expired")
	ErrProfileNotFound = errors.New("profile not found")
	ErrRequestNotFound = errors.New("claim request not found")

	ErrAlreadyClaimed = errors.New("profile is already claimed")
	ErrPendingRequest = errors.New("you already have a pending claim request for this profile")
	ErrUsernameTaken  = errors.New("username is already taken")
	ErrNotPending     = errors.New("claim request is no longer pending")
)

// ValidationError is a field-level input problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// IsConflict reports whether err is one of the conflict outcomes.
func IsConflict(err error) bool {
	return errors.Is(err, ErrAlreadyClaimed) ||
		errors.Is(err, ErrPendingRequest) ||
		errors.Is(err, ErrUsernameTaken) ||
		errors.Is(err, ErrNotPending)
}
