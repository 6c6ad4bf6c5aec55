package services

import "errors"

var (
	// ErrConfiguration is returned when no signing secret is configured.
	// It is a server fault and must never be reported as bad credentials.
	ErrConfiguration = errors.New("jwt secret key is not set")

	// ErrInvalidCredentials is the single failure for an unknown username
	// and for a wrong password.
	ErrInvalidCredentials = errors.New("invalid username or password")

	ErrTokenExpired    = errors.New("token has expired")
	ErrTokenInvalid    = errors.New("invalid token")
	ErrTokenUnexpected = errors.New("unexpected token error")
	ErrMissingToken    = errors.New("missing token")
	ErrEmptyFields     = errors.New("username and password cannot be empty")
)

// Error codes carried in the ?error= query of login redirects.
const (
	CodeMissingToken    = "missing_token"
	CodeExpiredToken    = "expired_token"
	CodeJWTError        = "jwt_error"
	CodeUnexpectedError = "unexpected_error"
	CodeEmptyFields     = "empty_fields"
	CodeCredentials     = "credentials"
)

var codeMessages = map[string]string{
	CodeMissingToken:    "User is not authenticated",
	CodeExpiredToken:    "User access token is expired",
	CodeEmptyFields:     "Username and password cannot be empty",
	CodeCredentials:     "Invalid username or password",
	CodeJWTError:        "User access token is invalid",
	CodeUnexpectedError: "An unexpected error occurred",
}

// ErrorCode maps an error to its redirect code. Anything not classified
// maps to unexpected_error.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrMissingToken):
		return CodeMissingToken
	case errors.Is(err, ErrTokenExpired):
		return CodeExpiredToken
	case errors.Is(err, ErrTokenInvalid):
		return CodeJWTError
	case errors.Is(err, ErrEmptyFields):
		return CodeEmptyFields
	case errors.Is(err, ErrInvalidCredentials):
		return CodeCredentials
	default:
		return CodeUnexpectedError
	}
}

// ErrorMessage returns the human-readable message for a redirect code.
func ErrorMessage(code string) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return "Unknown error: " + code
}
