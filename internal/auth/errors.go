package auth

import "errors"

// Client-facing messages.
const (
	MsgDuplicateUsername  = "Username has already exists"
	MsgInvalidCredentials = "Invalid username and password combination"
)

var (
	// ErrDuplicateUsername is returned by Register when the username is taken.
	ErrDuplicateUsername = errors.New("duplicate username")

	// ErrInvalidCredentials is returned by Login for an unknown username and
	// for a wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// ValidationError reports the first rule a request body violated.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
