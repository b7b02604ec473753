package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/akorchagin/authd/internal/server/auth"
	"github.com/akorchagin/authd/internal/server/device"
	"github.com/akorchagin/authd/internal/server/services"
)

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Device   string `json:"device,omitempty"`
}

type tokenPairResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
	AllDevices   bool   `json:"all_devices,omitempty"`
}

type sessionResponse struct {
	ID         string    `json:"id"`
	DeviceName string    `json:"device_name,omitempty"`
	IPAddress  string    `json:"ip_address,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := a.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{ID: user.ID, Email: user.Email})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	dev := deviceFromRequest(r)
	if req.Device != "" {
		dev.DeviceName = req.Device
	}

	res, err := a.auth.Login(r.Context(), req.Email, req.Password, dev)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newTokenPairResponse(res.Pair))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	pair, err := a.auth.Refresh(r.Context(), req.RefreshToken, deviceFromRequest(r))
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newTokenPairResponse(*pair))
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req logoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	if err := a.auth.Logout(r.Context(), req.RefreshToken, req.AllDevices); err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	claims, _ := r.Context().Value(claimsKey).(*auth.AccessClaims)
	if claims == nil {
		writeError(w, r, http.StatusUnauthorized, "missing bearer token")
		return
	}

	recs, err := a.auth.ListSessions(r.Context(), claims.UserID)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}

	sessions := make([]sessionResponse, 0, len(recs))
	for _, rec := range recs {
		sessions = append(sessions, sessionResponse{
			ID:         rec.ID,
			DeviceName: rec.DeviceName,
			IPAddress:  rec.IPAddress,
			IssuedAt:   rec.IssuedAt,
			ExpiresAt:  rec.ExpiresAt,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func newTokenPairResponse(pair services.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(pair.ExpiresIn.Seconds()),
	}
}

func deviceFromRequest(r *http.Request) device.Info {
	return device.FromRequestMeta(r.RemoteAddr, r.Header.Get("X-Forwarded-For"), r.Header.Get("User-Agent"))
}
