package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dt-demo-gcp/authserver/internal/mq"
	"github.com/dt-demo-gcp/authserver/internal/observability"
	"github.com/dt-demo-gcp/authserver/internal/services"
	"github.com/dt-demo-gcp/authserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	// AccessTokenCookie carries the token between the login page and /validate.
	AccessTokenCookie = "access_token"

	// AuthUserHeader tells a forward-auth gateway who the caller is.
	AuthUserHeader = "X-Auth-User"

	validatePath       = "/validate"
	configErrorMessage = "JWT secret key is not set."
	outcomeOK          = "ok"
	outcomeConfig      = "configuration"
)

// Authenticator verifies a username/password pair.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (uuid.UUID, error)
}

// TokenCodec issues and decodes access tokens against an explicit clock.
type TokenCodec interface {
	Issue(userID uuid.UUID, now time.Time) (string, error)
	Decode(token string, now time.Time) (types.Claims, error)
}

// AuthHandlerOptions carries the HTTP-layer settings of the auth endpoints.
type AuthHandlerOptions struct {
	LoginPath    string
	CookieSecure bool
	Clock        func() time.Time
	Events       *mq.EventPublisher
	Metrics      *observability.Metrics
	Logger       *slog.Logger
}

// AuthHandler provides the token, login form and forward-auth endpoints.
type AuthHandler struct {
	verifier     Authenticator
	tokens       TokenCodec
	loginPath    string
	cookieSecure bool
	now          func() time.Time
	events       *mq.EventPublisher
	metrics      *observability.Metrics
	logger       *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(verifier Authenticator, tokens TokenCodec, opts AuthHandlerOptions) *AuthHandler {
	h := &AuthHandler{
		verifier:     verifier,
		tokens:       tokens,
		loginPath:    opts.LoginPath,
		cookieSecure: opts.CookieSecure,
		now:          opts.Clock,
		events:       opts.Events,
		metrics:      opts.Metrics,
		logger:       opts.Logger,
	}
	if h.loginPath == "" {
		h.loginPath = "/login/"
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.logger == nil {
		h.logger = observability.NopLogger()
	}
	return h
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/token", handler.Token)
	r.Post("/login", handler.Login)
	r.Get(validatePath, handler.Validate)
	r.Get("/errors", handler.ErrorInfo)
}

// Token exchanges form-encoded credentials for a bearer token.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	username, password, ok := h.parseCredentials(w, r)
	if !ok {
		return
	}

	token, err := h.login(r, username, password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyFields):
			writeError(w, http.StatusBadRequest, services.ErrorMessage(services.CodeEmptyFields))
		case errors.Is(err, services.ErrInvalidCredentials):
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeError(w, http.StatusUnauthorized, services.ErrorMessage(services.CodeCredentials))
		case errors.Is(err, services.ErrConfiguration):
			writeError(w, http.StatusInternalServerError, configErrorMessage)
		default:
			writeError(w, http.StatusInternalServerError, "failed to authenticate")
		}
		return
	}

	h.setTokenCookie(w, token)
	writeJSON(w, http.StatusOK, types.NewLoginResponse(token))
}

// Login handles the login page form: it sets the token cookie and sends the
// browser to /validate, or back to the login page with an error code.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.redirectToLogin(w, r, services.CodeUnexpectedError)
		return
	}

	token, err := h.login(r, r.PostForm.Get("username"), r.PostForm.Get("password"))
	if err != nil {
		h.redirectToLogin(w, r, services.ErrorCode(err))
		return
	}

	h.setTokenCookie(w, token)
	http.Redirect(w, r, validatePath, http.StatusSeeOther)
}

// Validate is the forward-auth check. A valid token answers 200 with the
// claims; anything else redirects to the login page with the failure code.
func (h *AuthHandler) Validate(w http.ResponseWriter, r *http.Request) {
	token := tokenFromRequest(r)
	if token == "" {
		h.rejectToken(w, r, services.ErrMissingToken)
		return
	}

	claims, err := h.tokens.Decode(token, h.now())
	if err != nil {
		if errors.Is(err, services.ErrConfiguration) {
			h.metrics.RecordValidation(outcomeConfig)
			h.logger.ErrorContext(r.Context(), "token validation unavailable", "error", err)
			writeError(w, http.StatusInternalServerError, configErrorMessage)
			return
		}
		h.rejectToken(w, r, err)
		return
	}

	h.metrics.RecordValidation(outcomeOK)
	w.Header().Set(AuthUserHeader, claims.Subject)
	writeJSON(w, http.StatusOK, claims)
}

type errorInfoResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorInfo resolves an ?error= code to the message a login page displays.
func (h *AuthHandler) ErrorInfo(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("error")
	if code == "" {
		writeJSON(w, http.StatusOK, errorInfoResponse{Message: "OK"})
		return
	}
	writeJSON(w, http.StatusOK, errorInfoResponse{Code: code, Message: services.ErrorMessage(code)})
}

func (h *AuthHandler) parseCredentials(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return "", "", false
	}
	if grantType := r.PostForm.Get("grant_type"); grantType != "" && grantType != "password" {
		writeError(w, http.StatusBadRequest, "unsupported grant_type")
		return "", "", false
	}
	return r.PostForm.Get("username"), r.PostForm.Get("password"), true
}

// login runs the credential check and issues a token, recording the outcome.
func (h *AuthHandler) login(r *http.Request, username, password string) (string, error) {
	ctx := r.Context()

	if username == "" || password == "" {
		h.recordLogin(r, username, "", services.ErrEmptyFields)
		return "", services.ErrEmptyFields
	}

	userID, err := h.verifier.Authenticate(ctx, username, password)
	if err != nil {
		h.recordLogin(r, username, "", err)
		return "", err
	}

	token, err := h.tokens.Issue(userID, h.now())
	if err != nil {
		h.recordLogin(r, username, userID.String(), err)
		return "", err
	}

	h.recordLogin(r, username, userID.String(), nil)
	return token, nil
}

func (h *AuthHandler) recordLogin(r *http.Request, username, subject string, err error) {
	ctx := r.Context()
	event := h.newEvent(r, types.EventLoginSucceeded)
	event.Username = username
	event.Subject = subject

	switch {
	case err == nil:
		h.metrics.RecordLogin(outcomeOK)
		h.logger.InfoContext(ctx, "login succeeded", "username", username, "subject", subject)
	case errors.Is(err, services.ErrConfiguration):
		h.metrics.RecordLogin(outcomeConfig)
		h.logger.ErrorContext(ctx, "login unavailable", "error", err)
		event.Type = types.EventLoginFailed
		event.Code = services.CodeUnexpectedError
	default:
		code := services.ErrorCode(err)
		h.metrics.RecordLogin(code)
		if code == services.CodeUnexpectedError {
			h.logger.ErrorContext(ctx, "login failed", "username", username, "error", err)
		}
		event.Type = types.EventLoginFailed
		event.Code = code
	}
	h.events.Publish(ctx, event)
}

func (h *AuthHandler) rejectToken(w http.ResponseWriter, r *http.Request, err error) {
	code := services.ErrorCode(err)
	h.metrics.RecordValidation(code)
	if code == services.CodeUnexpectedError {
		h.logger.ErrorContext(r.Context(), "token validation failed", "error", err)
	} else {
		h.logger.DebugContext(r.Context(), "token rejected", "code", code, "error", err)
	}

	event := h.newEvent(r, types.EventTokenRejected)
	event.Code = code
	h.events.Publish(r.Context(), event)

	h.redirectToLogin(w, r, code)
}

func (h *AuthHandler) redirectToLogin(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, loginRedirectURL(h.loginPath, code), http.StatusSeeOther)
}

func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     AccessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(services.TokenLifetime / time.Second),
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) newEvent(r *http.Request, eventType types.AuthEventType) types.AuthEvent {
	return types.AuthEvent{
		Type:       eventType,
		RequestID:  middleware.GetReqID(r.Context()),
		RemoteAddr: r.RemoteAddr,
		OccurredAt: h.now().UTC(),
	}
}

// tokenFromRequest prefers the access_token cookie and falls back to an
// Authorization: Bearer header.
func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(AccessTokenCookie); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if token, err := bearerToken(r); err == nil {
		return token
	}
	return ""
}
