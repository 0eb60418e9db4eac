package app

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned when the supplied credentials do not
	// match. The message is shown to end users and must not enable account
	// enumeration.
	ErrInvalidCredentials = errors.New("Incorrect email address or password")

	ErrCurrentPasswordIncorrect = errors.New("current password is incorrect")
	ErrEmailAlreadyExists       = errors.New("email already registered")

	ErrUserNotFound  = errors.New("user not found")
	ErrStoreNotFound = errors.New("store not found")
	ErrOwnerNotFound = errors.New("store owner not found")

	// ErrForbidden is an authorization denial. It is distinct from the
	// not-found errors so "forbidden" is never conflated with "missing".
	ErrForbidden = errors.New("access denied")

	// ErrLastAdmin guards the admin floor: the system always retains at
	// least one administrator account.
	ErrLastAdmin = errors.New("cannot delete the last admin user")
)

// ValidationError reports a violated input constraint. Validation failures
// are rejected before any mutation.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func validationf(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is an input validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	ErrInvalidScore = validationf("rating must be between 1 and 5")
	ErrInvalidRole  = validationf("invalid role")
)
