package types

import "errors"

var (
	ErrNotFound        = errors.New("requested item not found")
	ErrConflict        = errors.New("item already exists or conflict")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrValidation      = errors.New("validation failed")
	ErrDelivery        = errors.New("mail delivery failed")
	ErrInvalidOTP      = errors.New("invalid otp")
)

// Authentication failure reasons surfaced to clients.
const (
	ReasonMissingCredentials = "missing credentials"
	ReasonContainsSpaces     = "malformed: contains spaces"
	ReasonInvalidSignature   = "invalid signature"
	ReasonMalformed          = "malformed"
	ReasonInvalidToken       = "invalid token"
	ReasonTokenExpired       = "token expired"
)

// AuthError is an authentication failure. It always unwraps to
// ErrUnauthenticated.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Reason
}

func (e *AuthError) Unwrap() error {
	return ErrUnauthenticated
}

// NewAuthError returns an AuthError with the given reason.
func NewAuthError(reason string) *AuthError {
	return &AuthError{Reason: reason}
}

// AuthReason extracts the failure reason from err, if it is an AuthError.
func AuthReason(err error) (string, bool) {
	var authErr *AuthError
	if errors.As(err, &authErr) {
		return authErr.Reason, true
	}
	return "", false
}
