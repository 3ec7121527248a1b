package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

var testSigningKey = []byte("test-secret-key-for-unit-tests-only")

func createTestToken(t *testing.T, claims Claims, key []byte) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return tokenStr
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %d error, got nil", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/appointments", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	for _, header := range []string{"Token abc123", "Bearer", "Bearer ", "Basic dXNlcjpwYXNz"} {
		t.Run(header, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", header)
			c := e.NewContext(req, httptest.NewRecorder())

			err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(okHandler)(c)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	uid := uuid.New()
	clinic := uuid.New()
	issuer := NewTokenIssuer(testSigningKey, "dental", time.Hour)
	tok, exp, err := issuer.Issue(Actor{UserID: uid, Role: RoleSecretary, ClinicID: &clinic})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Errorf("expected future expiry, got %v", exp)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var got Actor
	h := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Issuer: "dental"})(func(c echo.Context) error {
		got, _ = ActorFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != uid || got.Role != RoleSecretary {
		t.Errorf("unexpected actor %+v", got)
	}
	if got.ClinicID == nil || *got.ClinicID != clinic {
		t.Errorf("expected clinic %s, got %v", clinic, got.ClinicID)
	}
	if c.Get("user_role") != "secretary" {
		t.Errorf("expected user_role on echo context, got %v", c.Get("user_role"))
	}
}

func TestJWTMiddleware_RejectsExpiredAndForeignTokens(t *testing.T) {
	base := Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
		Role:             "patient",
	}

	expired := base
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := map[string]string{
		"expired":     createTestToken(t, expired, testSigningKey),
		"wrong key":   createTestToken(t, base, []byte("some-other-key")),
		"bad role":    createTestToken(t, Claims{RegisteredClaims: base.RegisteredClaims, Role: "nurse"}, testSigningKey),
		"bad subject": createTestToken(t, Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "dev-user"}, Role: "patient"}, testSigningKey),
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", "Bearer "+tok)
			c := e.NewContext(req, httptest.NewRecorder())

			err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(okHandler)(c)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_WebsocketQueryToken(t *testing.T) {
	tok, _, err := NewTokenIssuer(testSigningKey, "", time.Hour).Issue(Actor{UserID: uuid.New(), Role: RolePatient})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/ws/notifications?token="+tok, nil)
	c := e.NewContext(req, httptest.NewRecorder())
	if err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(okHandler)(c); err != nil {
		t.Errorf("expected query token to authenticate websocket path, got %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/me?token="+tok, nil)
	c = e.NewContext(req, httptest.NewRecorder())
	err = JWTMiddleware(JWTConfig{SigningKey: testSigningKey})(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/health")

	err := JWTMiddleware(JWTConfig{SigningKey: testSigningKey, Skipper: AuthSkipper})(okHandler)(c)
	if err != nil {
		t.Fatalf("expected skipper to bypass auth, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestDevAuthMiddleware_Headers(t *testing.T) {
	uid := uuid.New()
	clinic := uuid.New()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, uid.String())
	req.Header.Set(HeaderUserRole, "dentist")
	req.Header.Set(HeaderClinicID, clinic.String())
	c := e.NewContext(req, httptest.NewRecorder())

	var got Actor
	h := DevAuthMiddleware(JWTConfig{SigningKey: testSigningKey})(func(c echo.Context) error {
		got, _ = ActorFromContext(c.Request().Context())
		return nil
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.UserID != uid || got.Role != RoleDentist || got.ClinicID == nil || *got.ClinicID != clinic {
		t.Errorf("unexpected actor %+v", got)
	}
}

func TestDevAuthMiddleware_Defaults(t *testing.T) {
	e := echo.New()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	c := e.NewContext(req, httptest.NewRecorder())
	var anon Actor
	_ = DevAuthMiddleware(JWTConfig{})(func(c echo.Context) error {
		anon, _ = ActorFromContext(c.Request().Context())
		return nil
	})(c)
	if anon.Role != RoleAdmin {
		t.Errorf("expected anonymous admin, got %s", anon.Role)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderUserID, uuid.NewString())
	c = e.NewContext(req, httptest.NewRecorder())
	var user Actor
	_ = DevAuthMiddleware(JWTConfig{})(func(c echo.Context) error {
		user, _ = ActorFromContext(c.Request().Context())
		return nil
	})(c)
	if user.Role != RolePatient {
		t.Errorf("expected user id without role to default to patient, got %s", user.Role)
	}
}

func TestDevAuthMiddleware_BadHeaders(t *testing.T) {
	for header, value := range map[string]string{
		HeaderUserID:   "not-a-uuid",
		HeaderUserRole: "janitor",
		HeaderClinicID: "x",
	} {
		e := echo.New()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(header, value)
		c := e.NewContext(req, httptest.NewRecorder())

		err := DevAuthMiddleware(JWTConfig{})(okHandler)(c)
		expectStatus(t, err, http.StatusUnauthorized)
	}
}
