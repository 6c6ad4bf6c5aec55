package types

import (
	"fmt"

	"github.com/google/uuid"
)

// TokenTypeBearer is the only token type issued.
const TokenTypeBearer = "bearer"

// Claims are the identity fields recovered from a verified access token.
type Claims struct {
	// Issuer identifies the service that minted the token.
	Issuer string `json:"iss"`

	// Subject is the string form of the user ID.
	Subject string `json:"sub"`

	// IssuedAt is a Unix timestamp in seconds.
	IssuedAt int64 `json:"iat"`

	// ExpiresAt is a Unix timestamp in seconds; always greater than IssuedAt.
	ExpiresAt int64 `json:"exp"`
}

// UserID parses the subject back into a user ID.
func (c Claims) UserID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid subject %q: %w", c.Subject, err)
	}
	return id, nil
}

// LoginResponse is the body returned by the token endpoint.
type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// NewLoginResponse wraps a signed token in a bearer login response.
func NewLoginResponse(token string) LoginResponse {
	return LoginResponse{AccessToken: token, TokenType: TokenTypeBearer}
}
