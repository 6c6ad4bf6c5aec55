package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/dt-demo-gcp/authserver/types"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenLifetime is fixed; callers cannot choose a different expiry.
const TokenLifetime = 24 * time.Hour

// maxExpiry is the last second a four-digit year can express.
var maxExpiry = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC).Unix()

// TokenService issues and verifies HS256 access tokens.
// It is safe for concurrent use; the secret is never mutated after construction.
type TokenService struct {
	secret []byte
	issuer string
}

func NewTokenService(secret, issuer string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		issuer: issuer,
	}
}

// Configured reports whether a signing secret is present.
func (s *TokenService) Configured() bool {
	return len(s.secret) > 0
}

// Issue signs a token for userID valid from now until now+TokenLifetime.
func (s *TokenService) Issue(userID uuid.UUID, now time.Time) (string, error) {
	if !s.Configured() {
		return "", ErrConfiguration
	}

	claims := jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenLifetime)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies tokenString as of now and returns its claims. Failures are
// always one of ErrConfiguration, ErrTokenExpired, ErrTokenInvalid or
// ErrTokenUnexpected, wrapping the underlying cause.
func (s *TokenService) Decode(tokenString string, now time.Time) (claims types.Claims, err error) {
	if !s.Configured() {
		return types.Claims{}, ErrConfiguration
	}

	defer func() {
		if r := recover(); r != nil {
			claims = types.Claims{}
			err = fmt.Errorf("%w: %v", ErrTokenUnexpected, r)
		}
	}()

	registered := jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(tokenString, &registered, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	// The signature has been verified once exp is checked, so an absurd exp
	// here is a malformed token rather than an expired one.
	if err != nil && !(errors.Is(err, jwt.ErrTokenExpired) && expiryOutOfRange(&registered)) {
		return types.Claims{}, classifyParseError(err)
	}
	if expiryOutOfRange(&registered) {
		return types.Claims{}, fmt.Errorf("%w: exp out of range", ErrTokenInvalid)
	}

	if registered.IssuedAt == nil {
		return types.Claims{}, fmt.Errorf("%w: missing iat", ErrTokenInvalid)
	}

	claims = types.Claims{
		Issuer:    registered.Issuer,
		Subject:   registered.Subject,
		IssuedAt:  registered.IssuedAt.Unix(),
		ExpiresAt: registered.ExpiresAt.Unix(),
	}
	if _, err := claims.UserID(); err != nil {
		return types.Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return claims, nil
}

// expiryOutOfRange reports an exp that is not a plausible instant after iat.
func expiryOutOfRange(c *jwt.RegisteredClaims) bool {
	if c.ExpiresAt == nil {
		return false
	}
	exp := c.ExpiresAt.Unix()
	if exp <= 0 || exp > maxExpiry {
		return true
	}
	return c.IssuedAt != nil && exp <= c.IssuedAt.Unix()
}

// jwtErrors are the parser failures that describe a bad token rather than a
// fault in this process.
var jwtErrors = []error{
	jwt.ErrTokenMalformed,
	jwt.ErrTokenUnverifiable,
	jwt.ErrTokenSignatureInvalid,
	jwt.ErrTokenInvalidClaims,
	jwt.ErrTokenRequiredClaimMissing,
	jwt.ErrTokenInvalidIssuer,
	jwt.ErrTokenNotValidYet,
	jwt.ErrTokenUsedBeforeIssued,
	jwt.ErrTokenInvalidSubject,
	jwt.ErrTokenInvalidAudience,
	jwt.ErrTokenInvalidId,
	jwt.ErrInvalidType,
}

func classifyParseError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return fmt.Errorf("%w: %v", ErrTokenExpired, err)
	}
	for _, target := range jwtErrors {
		if errors.Is(err, target) {
			return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrTokenUnexpected, err)
}
