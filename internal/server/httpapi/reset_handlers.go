package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/akorchagin/authd/internal/logging"
)

// ResetNotifier delivers a reset token to the account owner out of band,
// typically by email. The token is handed over exactly once and never
// stored in plaintext.
type ResetNotifier interface {
	Deliver(ctx context.Context, email, plainToken string, expiresAt time.Time) error
}

// NopNotifier drops reset tokens. Used when delivery is wired elsewhere.
type NopNotifier struct{}

func (NopNotifier) Deliver(ctx context.Context, email, plainToken string, expiresAt time.Time) error {
	return nil
}

// LogNotifier records that a token was issued without logging the token
// itself. Deployments replace it with a real mail sender.
type LogNotifier struct {
	log logging.Logger
}

func NewLogNotifier(log logging.Logger) *LogNotifier {
	return &LogNotifier{log: log.With("channel", "reset-delivery")}
}

func (n *LogNotifier) Deliver(ctx context.Context, email, plainToken string, expiresAt time.Time) error {
	n.log.Info(ctx, "password reset token issued", "email", email, "expires_at", expiresAt)
	return nil
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// handleForgotPassword answers identically whether or not the email matches
// an account, so the endpoint cannot be used to probe for registered users.
func (a *API) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req forgotPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		writeError(w, r, http.StatusBadRequest, "email is required")
		return
	}

	res, err := a.reset.RequestReset(r.Context(), req.Email, deviceFromRequest(r))
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	if res.PlainToken != "" {
		if err := a.notifier.Deliver(r.Context(), req.Email, res.PlainToken, res.ExpiresAt); err != nil {
			a.log.Error(r.Context(), "reset token delivery failed", "error", err.Error())
		}
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"status": "ok"})
}

func (a *API) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req resetPasswordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		writeError(w, r, http.StatusBadRequest, "token and new_password are required")
		return
	}

	if err := a.reset.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
