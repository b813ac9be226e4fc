package httptransport

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/suite"

	"pinguard/internal/auth/service"
	"pinguard/internal/identity"
	"pinguard/internal/risk"
	"pinguard/internal/session"
	dErrors "pinguard/pkg/domain-errors"
	"pinguard/pkg/requestcontext"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, phone, encryptedPIN string) (*service.RegisterResult, error)
	loginFn    func(ctx context.Context, phone, encryptedPIN string) (*service.LoginResult, error)
	calls      int
}

func (s *stubAuthService) Register(ctx context.Context, phone, encryptedPIN string) (*service.RegisterResult, error) {
	s.calls++
	return s.registerFn(ctx, phone, encryptedPIN)
}

func (s *stubAuthService) Login(ctx context.Context, phone, encryptedPIN string) (*service.LoginResult, error) {
	s.calls++
	return s.loginFn(ctx, phone, encryptedPIN)
}

type stubVerifier struct {
	verifyFn func(token string) (*session.Claims, error)
}

func (s *stubVerifier) Verify(token string) (*session.Claims, error) {
	return s.verifyFn(token)
}

type stubKeys struct{ pem []byte }

func (s *stubKeys) PublicKeyPEM() []byte { return s.pem }

type AuthHandlerSuite struct {
	suite.Suite
	auth     *stubAuthService
	verifier *stubVerifier
	server   http.Handler
}

func TestAuthHandlerSuite(t *testing.T) {
	suite.Run(t, new(AuthHandlerSuite))
}

func (s *AuthHandlerSuite) SetupTest() {
	s.auth = &stubAuthService{}
	s.verifier = &stubVerifier{}
	keys := &stubKeys{pem: []byte("-----BEGIN PUBLIC KEY-----\nMIIB\n-----END PUBLIC KEY-----\n")}
	s.server = NewRouter(NewAuthHandler(s.auth, s.verifier, keys), nil)
}

func (s *AuthHandlerSuite) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	s.T().Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.RemoteAddr = "203.0.113.10:54321"
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	s.server.ServeHTTP(rec, req)
	return rec
}

func (s *AuthHandlerSuite) decodeError(rec *httptest.ResponseRecorder) errorEnvelope {
	s.T().Helper()
	var envelope errorEnvelope
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &envelope))
	return envelope
}

const validBody = `{"phone":"19995550101","encrypted_mpin":"aGVsbG8gd29ybGQ="}`

func (s *AuthHandlerSuite) TestRegisterCreated() {
	expiresAt := time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC)
	s.auth.registerFn = func(_ context.Context, phone, encryptedPIN string) (*service.RegisterResult, error) {
		s.Equal("19995550101", phone)
		s.Equal("aGVsbG8gd29ybGQ=", encryptedPIN)
		return &service.RegisterResult{
			IdentityID: "id-1",
			Phone:      phone,
			Session:    service.Session{Token: "jwt-token", ExpiresAt: expiresAt},
		}, nil
	}

	rec := s.do(http.MethodPost, "/auth/register", validBody, nil)

	s.Equal(http.StatusCreated, rec.Code)
	var resp registerResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("id-1", resp.IdentityID)
	s.Equal("jwt-token", resp.Session.Token)
	s.Equal(expiresAt, resp.Session.ExpiresAt)
}

func (s *AuthHandlerSuite) TestRegisterValidation() {
	cases := []struct {
		name string
		body string
	}{
		{"malformed json", `{bad-json`},
		{"short phone", `{"phone":"12345","encrypted_mpin":"aGVsbG8="}`},
		{"missing mpin", `{"phone":"19995550101"}`},
		{"mpin not base64", `{"phone":"19995550101","encrypted_mpin":"!!!not-base64!!!"}`},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			rec := s.do(http.MethodPost, "/auth/register", tc.body, nil)

			s.Equal(http.StatusBadRequest, rec.Code)
			s.Equal(string(dErrors.CodeInvalidInput), s.decodeError(rec).Error)
			s.Zero(s.auth.calls)
		})
	}
}

func (s *AuthHandlerSuite) TestFormattedPhonePassesValidation() {
	s.auth.registerFn = func(_ context.Context, phone, _ string) (*service.RegisterResult, error) {
		// The raw value goes through; normalization happens downstream.
		s.Equal("+1 (555) 123-4567", phone)
		return &service.RegisterResult{IdentityID: "id-1", Phone: "15551234567"}, nil
	}

	body := `{"phone":"+1 (555) 123-4567","encrypted_mpin":"aGVsbG8gd29ybGQ="}`
	rec := s.do(http.MethodPost, "/auth/register", body, nil)

	s.Equal(http.StatusCreated, rec.Code)
	s.Equal(1, s.auth.calls)
}

func (s *AuthHandlerSuite) TestPhoneDigitCountBounds() {
	cases := []struct {
		name  string
		phone string
	}{
		{"nine digits despite long formatting", "+1 (555) 123-45"},
		{"sixteen digits", "1234567890123456"},
		{"no digits at all", "++--  ()()"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			body := `{"phone":"` + tc.phone + `","encrypted_mpin":"aGVsbG8="}`
			rec := s.do(http.MethodPost, "/auth/register", body, nil)

			s.Equal(http.StatusBadRequest, rec.Code)
			s.Equal(string(dErrors.CodeInvalidInput), s.decodeError(rec).Error)
			s.Zero(s.auth.calls)
		})
	}
}

func (s *AuthHandlerSuite) TestRegisterDuplicateConflict() {
	s.auth.registerFn = func(context.Context, string, string) (*service.RegisterResult, error) {
		return nil, identity.ErrAlreadyExists
	}

	rec := s.do(http.MethodPost, "/auth/register", validBody, nil)

	s.Equal(http.StatusConflict, rec.Code)
	s.Equal(string(dErrors.CodeAlreadyRegistered), s.decodeError(rec).Error)
}

func (s *AuthHandlerSuite) TestLoginOK() {
	s.auth.loginFn = func(_ context.Context, phone, _ string) (*service.LoginResult, error) {
		return &service.LoginResult{
			IdentityID: "id-1",
			Phone:      phone,
			Session:    service.Session{Token: "jwt-token", ExpiresAt: time.Now().Add(time.Hour)},
			RiskScore:  45,
			RiskFlags:  []risk.Flag{risk.FlagNewIP, risk.FlagNewDevice},
		}, nil
	}

	rec := s.do(http.MethodPost, "/auth/login", validBody, nil)

	s.Equal(http.StatusOK, rec.Code)
	var resp loginResponse
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal(45, resp.Risk.Score)
	s.Equal([]string{string(risk.FlagNewIP), string(risk.FlagNewDevice)}, resp.Risk.Flags)
}

func (s *AuthHandlerSuite) TestLoginErrorMapping() {
	lockedUntil := time.Date(2026, 6, 1, 12, 30, 0, 0, time.UTC)
	cases := []struct {
		name      string
		err       error
		status    int
		code      dErrors.Code
		checkMeta string
	}{
		{
			name:      "account locked",
			err:       dErrors.New(dErrors.CodeAccountLocked, "account temporarily locked").WithMeta("locked_until", lockedUntil),
			status:    http.StatusLocked,
			code:      dErrors.CodeAccountLocked,
			checkMeta: "locked_until",
		},
		{
			name:      "wrong credential",
			err:       dErrors.New(dErrors.CodeWrongCredential, "incorrect pin").WithMeta("attempts_remaining", 3),
			status:    http.StatusUnauthorized,
			code:      dErrors.CodeWrongCredential,
			checkMeta: "attempts_remaining",
		},
		{
			name:      "risk blocked",
			err:       dErrors.New(dErrors.CodeRiskBlocked, "additional verification required").WithMeta("flags", []string{"new_ip"}),
			status:    http.StatusForbidden,
			code:      dErrors.CodeRiskBlocked,
			checkMeta: "flags",
		},
		{
			name:   "unknown phone",
			err:    identity.ErrNotFound,
			status: http.StatusNotFound,
			code:   dErrors.CodeNotFound,
		},
		{
			name:   "decryption failure",
			err:    dErrors.New(dErrors.CodeDecryptionError, "decryption failed"),
			status: http.StatusBadRequest,
			code:   dErrors.CodeDecryptionError,
		},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.auth.loginFn = func(context.Context, string, string) (*service.LoginResult, error) {
				return nil, tc.err
			}

			rec := s.do(http.MethodPost, "/auth/login", validBody, nil)

			s.Equal(tc.status, rec.Code)
			envelope := s.decodeError(rec)
			s.Equal(string(tc.code), envelope.Error)
			if tc.checkMeta != "" {
				s.Contains(envelope.Meta, tc.checkMeta)
			}
		})
	}
}

func (s *AuthHandlerSuite) TestClientMetadataReachesService() {
	s.auth.loginFn = func(ctx context.Context, _, _ string) (*service.LoginResult, error) {
		s.Equal("203.0.113.10", requestcontext.ClientIP(ctx))
		s.Equal("pinguard-sdk/1.0", requestcontext.UserAgent(ctx))
		s.Equal("device-alpha", requestcontext.DeviceFingerprint(ctx))
		s.NotEmpty(requestcontext.RequestID(ctx))
		s.False(requestcontext.Now(ctx).IsZero())
		return nil, identity.ErrNotFound
	}

	rec := s.do(http.MethodPost, "/auth/login", validBody, map[string]string{
		"User-Agent":      "pinguard-sdk/1.0",
		fingerprintHeader: "device-alpha",
	})

	s.Equal(http.StatusNotFound, rec.Code)
	s.Equal(1, s.auth.calls)
}

func (s *AuthHandlerSuite) TestPublicKeyServedAsPEM() {
	rec := s.do(http.MethodGet, "/auth/public-key", "", nil)

	s.Equal(http.StatusOK, rec.Code)
	s.Equal("application/x-pem-file", rec.Header().Get("Content-Type"))
	s.Contains(rec.Body.String(), "BEGIN PUBLIC KEY")
}

func (s *AuthHandlerSuite) TestSessionIntrospection() {
	expiresAt := time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC)
	s.verifier.verifyFn = func(token string) (*session.Claims, error) {
		s.Equal("valid-token", token)
		return &session.Claims{
			IdentityID: "id-1",
			Phone:      "19995550101",
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
		}, nil
	}

	s.Run("valid token", func() {
		rec := s.do(http.MethodGet, "/auth/session", "", map[string]string{
			"Authorization": "Bearer valid-token",
		})

		s.Equal(http.StatusOK, rec.Code)
		var resp sessionResponse
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
		s.Equal("id-1", resp.IdentityID)
		s.Equal("19995550101", resp.Phone)
		s.Equal(expiresAt, resp.ExpiresAt)
	})

	s.Run("missing token", func() {
		rec := s.do(http.MethodGet, "/auth/session", "", nil)

		s.Equal(http.StatusUnauthorized, rec.Code)
		s.Equal(string(dErrors.CodeUnauthorized), s.decodeError(rec).Error)
	})

	s.Run("rejected token", func() {
		s.verifier.verifyFn = func(string) (*session.Claims, error) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid session token")
		}
		rec := s.do(http.MethodGet, "/auth/session", "", map[string]string{
			"Authorization": "Bearer expired-token",
		})

		s.Equal(http.StatusUnauthorized, rec.Code)
	})
}

func (s *AuthHandlerSuite) TestHealthz() {
	rec := s.do(http.MethodGet, "/healthz", "", nil)

	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())
}

// The decoded payload makes it through validation untouched even when it
// contains padding characters in the middle of the string.
func (s *AuthHandlerSuite) TestEncryptedPayloadPassedVerbatim() {
	payload := base64.StdEncoding.EncodeToString([]byte{0x00, 0x01, 0xfe, 0xff})
	body := `{"phone":"19995550101","encrypted_mpin":"` + payload + `"}`

	s.auth.loginFn = func(_ context.Context, _, encryptedPIN string) (*service.LoginResult, error) {
		s.Equal(payload, encryptedPIN)
		return nil, identity.ErrNotFound
	}

	rec := s.do(http.MethodPost, "/auth/login", body, nil)
	s.Equal(http.StatusNotFound, rec.Code)
}
