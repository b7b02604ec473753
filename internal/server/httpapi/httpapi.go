// Package httpapi exposes the authentication core over HTTP/JSON.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/akorchagin/authd/internal/common"
	"github.com/akorchagin/authd/internal/logging"
	"github.com/akorchagin/authd/internal/obs"
	"github.com/akorchagin/authd/internal/server/services"
)

// ReadyProbe reports whether the backing store is reachable.
type ReadyProbe func(ctx context.Context) error

// API routes authentication endpoints to the service layer.
type API struct {
	mux        *http.ServeMux
	auth       *services.AuthService
	reset      *services.ResetService
	notifier   ResetNotifier
	readyProbe ReadyProbe
	log        logging.Logger
}

// New builds the API and registers all routes.
func New(auth *services.AuthService, reset *services.ResetService, notifier ResetNotifier,
	rp ReadyProbe, log logging.Logger) *API {

	if notifier == nil {
		notifier = NopNotifier{}
	}

	a := &API{
		mux:        http.NewServeMux(),
		auth:       auth,
		reset:      reset,
		notifier:   notifier,
		readyProbe: rp,
		log:        log,
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)

	a.mux.HandleFunc("/v1/auth/register", a.handleRegister)
	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/v1/auth/sessions", a.requireAuth(a.handleSessions))
	a.mux.HandleFunc("/v1/auth/password/forgot", a.handleForgotPassword)
	a.mux.HandleFunc("/v1/auth/password/reset", a.handleResetPassword)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the http.Handler for the server.
func (a *API) Handler() http.Handler {
	return withRequestID(a.mux)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "authd",
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if a.readyProbe != nil {
		if err := a.readyProbe(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// --- middleware ---

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	claimsKey    contextKey = "claims"
)

func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", rid)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, rid)))
	})
}

// RequestIDFromContext returns the request id set by the request middleware.
func RequestIDFromContext(ctx context.Context) string {
	rid, _ := ctx.Value(requestIDKey).(string)
	return rid
}

// requireAuth validates the Bearer access token and stores its claims in the
// request context. Validation is stateless: no store lookup per request.
func (a *API) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get(common.AccessTokenHeaderName)
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || token == "" {
			writeError(w, r, http.StatusUnauthorized, "missing bearer token")
			return
		}

		claims, err := a.auth.ValidateAccessToken(token)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	}
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// handleAuthError maps service-layer sentinels onto HTTP statuses. Token
// problems deliberately collapse into one generic 401; reuse detection is
// visible in metrics and the audit trail, never to the caller.
func (a *API) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorInvalidCredentials):
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, common.ErrorAccountLocked):
		writeError(w, r, http.StatusTooManyRequests, "too many attempts, try again later")
	case errors.Is(err, common.ErrorInvalidToken),
		errors.Is(err, common.ErrorTokenExpired),
		errors.Is(err, common.ErrorTokenReuseDetected):
		writeError(w, r, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, common.ErrorInvalidOrExpiredToken):
		writeError(w, r, http.StatusBadRequest, "invalid or expired token")
	case errors.Is(err, common.ErrorWeakPassword):
		writeError(w, r, http.StatusBadRequest, err.Error())
	default:
		a.log.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err.Error())
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
