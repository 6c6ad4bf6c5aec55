package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dt-demo-gcp/authserver/internal/mq"
	"github.com/dt-demo-gcp/authserver/internal/observability"
	"github.com/dt-demo-gcp/authserver/internal/services"
	"github.com/dt-demo-gcp/authserver/internal/store"
	"github.com/dt-demo-gcp/authserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "handler-test-secret"
	testIssuer   = "dt-demo-gcp"
	testPassword = "correcthorse"
)

type memoryUsers struct {
	users map[string]types.User
}

func (m *memoryUsers) GetByUsername(ctx context.Context, username string) (types.User, error) {
	user, ok := m.users[username]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

type recordingBackend struct {
	mu     sync.Mutex
	events []types.AuthEvent
}

func (b *recordingBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	var event types.AuthEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return "", err
	}
	b.mu.Lock()
	b.events = append(b.events, event)
	b.mu.Unlock()
	return uuid.NewString(), nil
}

func (b *recordingBackend) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	return nil
}

func (b *recordingBackend) Close() error { return nil }

func (b *recordingBackend) last(t *testing.T) types.AuthEvent {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.events)
	return b.events[len(b.events)-1]
}

type testEnv struct {
	router  http.Handler
	alice   types.User
	tokens  *services.TokenService
	events  *recordingBackend
	metrics *observability.Metrics
	now     time.Time
}

func newTestEnv(t *testing.T, secret string) *testEnv {
	t.Helper()

	hasher := services.NewBcryptHasher(bcrypt.MinCost)
	hash, err := hasher.Hash(testPassword)
	require.NoError(t, err)
	alice := types.User{ID: uuid.New(), Username: "alice", PasswordHash: hash}

	tokens := services.NewTokenService(secret, testIssuer)
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	verifier, err := services.NewCredentialVerifier(
		&memoryUsers{users: map[string]types.User{"alice": alice}},
		hasher,
		tokens,
		services.WithMetrics(metrics),
	)
	require.NoError(t, err)

	env := &testEnv{
		alice:   alice,
		tokens:  tokens,
		events:  &recordingBackend{},
		metrics: metrics,
		now:     time.Unix(1_750_000_000, 0),
	}

	handler := NewAuthHandler(verifier, tokens, AuthHandlerOptions{
		LoginPath: "/login/",
		Clock:     func() time.Time { return env.now },
		Events:    mq.NewEventPublisher(env.events, "auth-events", observability.NopLogger()),
		Metrics:   metrics,
	})
	r := chi.NewRouter()
	AuthRouter(r, handler)
	env.router = r
	return env
}

func (e *testEnv) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) validate(mutate func(*http.Request)) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/validate", nil)
	if mutate != nil {
		mutate(req)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func credentials(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

func decodeDetail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body.Detail
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestToken_Success(t *testing.T) {
	env := newTestEnv(t, testSecret)

	rec := env.postForm("/token", credentials("alice", testPassword))
	require.Equal(t, http.StatusOK, rec.Code)

	var body types.LoginResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "bearer", body.TokenType)
	require.NotEmpty(t, body.AccessToken)

	claims, err := env.tokens.Decode(body.AccessToken, env.now)
	require.NoError(t, err)
	assert.Equal(t, env.alice.ID.String(), claims.Subject)
	assert.Equal(t, env.now.Unix(), claims.IssuedAt)
	assert.Equal(t, env.now.Add(24*time.Hour).Unix(), claims.ExpiresAt)

	cookie := findCookie(rec, AccessTokenCookie)
	require.NotNil(t, cookie)
	assert.Equal(t, body.AccessToken, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 86400, cookie.MaxAge)
	assert.Equal(t, "/", cookie.Path)

	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.LoginAttemptsTotal.WithLabelValues("ok")))
	event := env.events.last(t)
	assert.Equal(t, types.EventLoginSucceeded, event.Type)
	assert.Equal(t, env.alice.ID.String(), event.Subject)
}

func TestToken_Failures(t *testing.T) {
	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantDetail string
	}{
		{"wrong password", credentials("alice", "wrong-password"), http.StatusUnauthorized, "Invalid username or password"},
		{"unknown user", credentials("mallory", testPassword), http.StatusUnauthorized, "Invalid username or password"},
		{"empty username", credentials("", testPassword), http.StatusBadRequest, "Username and password cannot be empty"},
		{"empty password", credentials("alice", ""), http.StatusBadRequest, "Username and password cannot be empty"},
		{"no fields", url.Values{}, http.StatusBadRequest, "Username and password cannot be empty"},
		{"whitespace username", credentials("   ", testPassword), http.StatusUnauthorized, "Invalid username or password"},
		{
			"unsupported grant type",
			url.Values{"username": {"alice"}, "password": {testPassword}, "grant_type": {"client_credentials"}},
			http.StatusBadRequest,
			"unsupported grant_type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, testSecret)
			rec := env.postForm("/token", tt.form)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantDetail, decodeDetail(t, rec))
			assert.Nil(t, findCookie(rec, AccessTokenCookie))
			if tt.wantStatus == http.StatusUnauthorized {
				assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
			}
		})
	}
}

func TestToken_UnknownUserAndWrongPasswordAreIndistinguishable(t *testing.T) {
	env := newTestEnv(t, testSecret)

	wrong := env.postForm("/token", credentials("alice", "wrong-password"))
	unknown := env.postForm("/token", credentials("mallory", testPassword))

	assert.Equal(t, wrong.Code, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, float64(2), testutil.ToFloat64(env.metrics.LoginAttemptsTotal.WithLabelValues("credentials")))
}

func TestToken_MissingSecret(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.postForm("/token", credentials("alice", testPassword))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "JWT secret key is not set.", decodeDetail(t, rec))
	assert.Empty(t, rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.LoginAttemptsTotal.WithLabelValues("configuration")))
}

func TestLogin_Redirects(t *testing.T) {
	tests := []struct {
		name         string
		secret       string
		form         url.Values
		wantLocation string
		wantCookie   bool
	}{
		{"success", testSecret, credentials("alice", testPassword), "/validate", true},
		{"bad credentials", testSecret, credentials("alice", "nope-nope"), "/login/?error=credentials", false},
		{"empty fields", testSecret, credentials("", ""), "/login/?error=empty_fields", false},
		{"missing secret", "", credentials("alice", testPassword), "/login/?error=unexpected_error", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.secret)
			rec := env.postForm("/login", tt.form)

			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, tt.wantLocation, rec.Header().Get("Location"))
			assert.Equal(t, tt.wantCookie, findCookie(rec, AccessTokenCookie) != nil)
		})
	}
}

func TestValidate_Cookie(t *testing.T) {
	env := newTestEnv(t, testSecret)
	token, err := env.tokens.Issue(env.alice.ID, env.now)
	require.NoError(t, err)

	rec := env.validate(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, env.alice.ID.String(), rec.Header().Get(AuthUserHeader))

	var claims types.Claims
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&claims))
	assert.Equal(t, testIssuer, claims.Issuer)
	assert.Equal(t, env.alice.ID.String(), claims.Subject)
	assert.Equal(t, float64(1), testutil.ToFloat64(env.metrics.TokenValidationsTotal.WithLabelValues("ok")))
}

func TestValidate_BearerFallback(t *testing.T) {
	env := newTestEnv(t, testSecret)
	token, err := env.tokens.Issue(env.alice.ID, env.now)
	require.NoError(t, err)

	rec := env.validate(func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, env.alice.ID.String(), rec.Header().Get(AuthUserHeader))
}

func TestValidate_Rejections(t *testing.T) {
	env := newTestEnv(t, testSecret)
	valid, err := env.tokens.Issue(env.alice.ID, env.now)
	require.NoError(t, err)
	expired, err := env.tokens.Issue(env.alice.ID, env.now.Add(-25*time.Hour))
	require.NoError(t, err)
	foreign, err := services.NewTokenService("some-other-secret", testIssuer).Issue(env.alice.ID, env.now)
	require.NoError(t, err)

	tests := []struct {
		name     string
		token    string
		wantCode string
	}{
		{"no token", "", "missing_token"},
		{"expired", expired, "expired_token"},
		{"garbage", "garbage", "jwt_error"},
		{"tampered", valid + "x", "jwt_error"},
		{"other secret", foreign, "jwt_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.validate(func(r *http.Request) {
				if tt.token != "" {
					r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: tt.token})
				}
			})

			assert.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/login/?error="+tt.wantCode, rec.Header().Get("Location"))
			assert.Empty(t, rec.Header().Get(AuthUserHeader))

			event := env.events.last(t)
			assert.Equal(t, types.EventTokenRejected, event.Type)
			assert.Equal(t, tt.wantCode, event.Code)
		})
	}
}

func TestValidate_ExpiresWithClock(t *testing.T) {
	env := newTestEnv(t, testSecret)
	token, err := env.tokens.Issue(env.alice.ID, env.now)
	require.NoError(t, err)
	withCookie := func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: token})
	}

	env.now = env.now.Add(services.TokenLifetime - time.Second)
	assert.Equal(t, http.StatusOK, env.validate(withCookie).Code)

	env.now = env.now.Add(time.Second)
	rec := env.validate(withCookie)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login/?error=expired_token", rec.Header().Get("Location"))
}

func TestValidate_MissingSecret(t *testing.T) {
	env := newTestEnv(t, "")

	rec := env.validate(func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: AccessTokenCookie, Value: "anything"})
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "JWT secret key is not set.", decodeDetail(t, rec))
}

func TestErrorInfo(t *testing.T) {
	env := newTestEnv(t, testSecret)

	tests := []struct {
		query       string
		wantCode    string
		wantMessage string
	}{
		{"?error=expired_token", "expired_token", "User access token is expired"},
		{"?error=missing_token", "missing_token", "User is not authenticated"},
		{"?error=bogus", "bogus", "Unknown error: bogus"},
		{"", "", "OK"},
	}

	for _, tt := range tests {
		t.Run(tt.wantMessage, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/errors"+tt.query, nil)
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code)
			var body errorInfoResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantCode, body.Code)
			assert.Equal(t, tt.wantMessage, body.Message)
		})
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header  string
		want    string
		wantErr bool
	}{
		{"Bearer abc", "abc", false},
		{"bearer  abc ", "abc", false},
		{"", "", true},
		{"Basic abc", "", true},
		{"Bearer ", "", true},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, err := bearerToken(req)
		if tt.wantErr {
			assert.Error(t, err, tt.header)
			continue
		}
		require.NoError(t, err, tt.header)
		assert.Equal(t, tt.want, got)
	}
}

func TestLoginRedirectURL(t *testing.T) {
	assert.Equal(t, "/login/?error=credentials", loginRedirectURL("/login/", "credentials"))
	assert.Equal(t, "https://app.example.com/login?error=jwt_error&next=%2F",
		loginRedirectURL("https://app.example.com/login?next=/", "jwt_error"))
}
