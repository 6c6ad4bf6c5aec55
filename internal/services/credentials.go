package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/dt-demo-gcp/authserver/internal/observability"
	"github.com/dt-demo-gcp/authserver/internal/store"
	"github.com/dt-demo-gcp/authserver/types"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// timingPassword is hashed once at startup so that an unknown username still
// costs one bcrypt comparison.
const timingPassword = "no-such-user-timing-pad"

// UserRepository is the read path into the user store.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (types.User, error)
}

// CredentialVerifier checks a username/password pair against the user store.
type CredentialVerifier struct {
	users     UserRepository
	hasher    PasswordHasher
	tokens    *TokenService
	dummyHash []byte
	slots     *semaphore.Weighted
	logger    *slog.Logger
	metrics   *observability.Metrics
}

type VerifierOption func(*CredentialVerifier)

// WithLogger sets the logger used for server-side failure diagnostics.
func WithLogger(logger *slog.Logger) VerifierOption {
	return func(v *CredentialVerifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

func WithMetrics(m *observability.Metrics) VerifierOption {
	return func(v *CredentialVerifier) {
		v.metrics = m
	}
}

// WithHashWorkers bounds the number of concurrent bcrypt comparisons.
func WithHashWorkers(n int) VerifierOption {
	return func(v *CredentialVerifier) {
		if n > 0 {
			v.slots = semaphore.NewWeighted(int64(n))
		}
	}
}

// NewCredentialVerifier constructs a verifier. tokens is consulted only to
// check that a signing secret is configured before any credential work.
func NewCredentialVerifier(users UserRepository, hasher PasswordHasher, tokens *TokenService, opts ...VerifierOption) (*CredentialVerifier, error) {
	dummy, err := hasher.Hash(timingPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare timing hash: %w", err)
	}

	v := &CredentialVerifier{
		users:     users,
		hasher:    hasher,
		tokens:    tokens,
		dummyHash: dummy,
		slots:     semaphore.NewWeighted(int64(runtime.NumCPU())),
		logger:    observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Authenticate returns the user's ID when password matches the stored hash.
// An unknown username and a wrong password both return ErrInvalidCredentials.
// A missing signing secret returns ErrConfiguration before the store is read.
func (v *CredentialVerifier) Authenticate(ctx context.Context, username, password string) (uuid.UUID, error) {
	if !v.tokens.Configured() {
		return uuid.Nil, ErrConfiguration
	}

	user, err := v.users.GetByUsername(ctx, username)
	found := err == nil
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return uuid.Nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash := v.dummyHash
	if found {
		hash = user.PasswordHash
	}

	match, err := v.compare(ctx, hash, password)
	if err != nil {
		return uuid.Nil, err
	}

	if !found {
		v.logger.InfoContext(ctx, "authentication failed", "username", username, "reason", "user not found")
		return uuid.Nil, ErrInvalidCredentials
	}
	if !match {
		v.logger.InfoContext(ctx, "authentication failed", "username", username, "reason", "password mismatch")
		return uuid.Nil, ErrInvalidCredentials
	}

	return user.ID, nil
}

// compare waits for a hash slot and then runs one comparison to completion.
func (v *CredentialVerifier) compare(ctx context.Context, hash []byte, password string) (bool, error) {
	if err := v.slots.Acquire(ctx, 1); err != nil {
		return false, fmt.Errorf("waiting for password check: %w", err)
	}
	defer v.slots.Release(1)

	start := time.Now()
	match := v.hasher.Compare(hash, password)
	v.metrics.ObservePasswordCheck(time.Since(start))
	return match, nil
}
