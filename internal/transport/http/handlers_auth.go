package httptransport

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/go-chi/chi/v5"

	"pinguard/internal/auth/service"
	"pinguard/internal/risk"
	"pinguard/internal/session"
	dErrors "pinguard/pkg/domain-errors"
)

// AuthService is the credential engine surface the transport needs.
type AuthService interface {
	Register(ctx context.Context, phone, encryptedPIN string) (*service.RegisterResult, error)
	Login(ctx context.Context, phone, encryptedPIN string) (*service.LoginResult, error)
}

// SessionVerifier validates bearer tokens for the session introspection
// endpoint.
type SessionVerifier interface {
	Verify(tokenString string) (*session.Claims, error)
}

// PublicKeyProvider exposes the transport encryption key for clients.
type PublicKeyProvider interface {
	PublicKeyPEM() []byte
}

type AuthHandler struct {
	auth     AuthService
	sessions SessionVerifier
	keys     PublicKeyProvider
}

func NewAuthHandler(auth AuthService, sessions SessionVerifier, keys PublicKeyProvider) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, keys: keys}
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/register", h.handleRegister)
	r.Post("/auth/login", h.handleLogin)
	r.Get("/auth/public-key", h.handlePublicKey)
	r.Get("/auth/session", h.handleSession)
}

type credentialRequest struct {
	Phone         string `json:"phone"`
	EncryptedMPIN string `json:"encrypted_mpin"`
}

type sessionPayload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type registerResponse struct {
	IdentityID string         `json:"identity_id"`
	Phone      string         `json:"phone"`
	Session    sessionPayload `json:"session"`
}

type riskPayload struct {
	Score int      `json:"score"`
	Flags []string `json:"flags,omitempty"`
}

type loginResponse struct {
	IdentityID string         `json:"identity_id"`
	Phone      string         `json:"phone"`
	Session    sessionPayload `json:"session"`
	Risk       riskPayload    `json:"risk"`
}

func (h *AuthHandler) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if err := validateCredentialRequest(req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Register(r.Context(), req.Phone, req.EncryptedMPIN)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, registerResponse{
		IdentityID: result.IdentityID,
		Phone:      result.Phone,
		Session: sessionPayload{
			Token:     result.Session.Token,
			ExpiresAt: result.Session.ExpiresAt,
		},
	})
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}
	if err := validateCredentialRequest(req); err != nil {
		writeError(w, err)
		return
	}

	result, err := h.auth.Login(r.Context(), req.Phone, req.EncryptedMPIN)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		IdentityID: result.IdentityID,
		Phone:      result.Phone,
		Session: sessionPayload{
			Token:     result.Session.Token,
			ExpiresAt: result.Session.ExpiresAt,
		},
		Risk: riskPayload{
			Score: result.RiskScore,
			Flags: flagNames(result.RiskFlags),
		},
	})
}

func (h *AuthHandler) handlePublicKey(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/x-pem-file")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(h.keys.PublicKeyPEM())
}

type sessionResponse struct {
	IdentityID string    `json:"identity_id"`
	Phone      string    `json:"phone"`
	ExpiresAt  time.Time `json:"expires_at"`
}

func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, dErrors.New(dErrors.CodeUnauthorized, "missing bearer token"))
		return
	}

	claims, err := h.sessions.Verify(token)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{
		IdentityID: claims.IdentityID,
		Phone:      claims.Phone,
		ExpiresAt:  claims.ExpiresAt.Time,
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	token, found := strings.CutPrefix(header, "Bearer ")
	if !found || token == "" {
		return "", false
	}
	return token, true
}

func validateCredentialRequest(req credentialRequest) error {
	// Validity is defined by digit count; formatting characters such as
	// "+", spaces, and parentheses are the store's problem, not the
	// caller's.
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, req.Phone)
	if !govalidator.StringLength(digits, "10", "15") {
		return dErrors.New(dErrors.CodeInvalidInput, "phone must contain 10 to 15 digits")
	}

	if !govalidator.StringLength(req.EncryptedMPIN, "1", "8192") {
		return dErrors.New(dErrors.CodeInvalidInput, "encrypted_mpin is required")
	}
	if !govalidator.IsBase64(req.EncryptedMPIN) {
		return dErrors.New(dErrors.CodeInvalidInput, "encrypted_mpin must be base64")
	}

	return nil
}

func flagNames(flags []risk.Flag) []string {
	if len(flags) == 0 {
		return nil
	}
	out := make([]string, len(flags))
	for i, flag := range flags {
		out[i] = string(flag)
	}
	return out
}
