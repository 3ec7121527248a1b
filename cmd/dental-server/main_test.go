package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/smiledesk/dental/internal/config"
	notify "github.com/smiledesk/dental/internal/platform/notification"
	"github.com/smiledesk/dental/internal/platform/websocket"
)

// ---------------------------------------------------------------------------
// resolveSigningKey
// ---------------------------------------------------------------------------

func TestResolveSigningKey_FromSecret(t *testing.T) {
	secret := strings.Repeat("s", 32)
	key, random, err := resolveSigningKey(secret)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if random {
		t.Error("expected random=false when JWT_SECRET is set")
	}
	if string(key) != secret {
		t.Errorf("key mismatch: got %q", key)
	}
}

func TestResolveSigningKey_RandomGeneration(t *testing.T) {
	key, random, err := resolveSigningKey("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !random {
		t.Error("expected random=true when JWT_SECRET is empty")
	}
	if len(key) != 32 {
		t.Errorf("expected 32-byte key, got %d bytes", len(key))
	}

	key2, _, _ := resolveSigningKey("")
	if string(key) == string(key2) {
		t.Error("two random keys should not be identical")
	}
}

// ---------------------------------------------------------------------------
// CLI
// ---------------------------------------------------------------------------

func TestRootCmd_Subcommands(t *testing.T) {
	root := rootCmd()
	for _, path := range [][]string{{"serve"}, {"migrate", "up"}, {"migrate", "status"}, {"user", "create"}} {
		cmd, _, err := root.Find(path)
		if err != nil || cmd.Name() != path[len(path)-1] {
			t.Errorf("expected command %v, got %v (%v)", path, cmd, err)
		}
	}
}

func TestCreateUserRequest(t *testing.T) {
	cmd, _, _ := rootCmd().Find([]string{"user", "create"})
	_ = cmd.Flags().Set("email", "owner@clinic.test")
	_ = cmd.Flags().Set("name", "Clinic Owner")
	_ = cmd.Flags().Set("password", "correct-horse")

	req, err := createUserRequest(cmd)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Role != "admin" || req.ClinicID != nil {
		t.Errorf("unexpected request %+v", req)
	}

	_ = cmd.Flags().Set("role", "owner")
	if _, err := createUserRequest(cmd); err == nil {
		t.Error("expected error for unknown role")
	}

	_ = cmd.Flags().Set("role", "secretary")
	_ = cmd.Flags().Set("clinic", "front-desk")
	if _, err := createUserRequest(cmd); err == nil {
		t.Error("expected error for non-UUID clinic")
	}
}

// ---------------------------------------------------------------------------
// Wiring
// ---------------------------------------------------------------------------

func newTestServer(t *testing.T) *server {
	t.Helper()
	cfg := &config.Config{
		Env:         "development",
		JWTTTL:      time.Hour,
		BodyLimit:   "1M",
		CORSOrigins: []string{"*"},
	}
	hub := websocket.NewHub(zerolog.Nop())
	key, _, _ := resolveSigningKey("")
	return newServer(cfg, nil, hub, notify.NewLocalPublisher(hub), key, zerolog.Nop())
}

func TestNewServer_Routes(t *testing.T) {
	srv := newTestServer(t)

	registered := make(map[string]bool)
	for _, r := range srv.echo.Routes() {
		registered[r.Method+" "+r.Path] = true
	}
	for _, want := range []string{
		"GET /health",
		"GET /health/db",
		"POST /api/v1/auth/login",
		"GET /api/v1/clinics",
		"GET /api/v1/availability/dentist/:userId/effective",
		"GET /api/v1/availability/dentist/:userId/slots",
		"POST /api/v1/availability/rules",
		"POST /api/v1/appointments",
		"POST /api/v1/appointments/:id/confirm",
		"POST /api/v1/appointments/:id/cancel",
		"GET /api/v1/notifications/unread-count",
		"GET /ws/notifications",
	} {
		if !registered[want] {
			t.Errorf("route %s not registered", want)
		}
	}
}

func TestNewServer_Health(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestNewServer_ErrorEnvelope(t *testing.T) {
	srv := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/appointments/not-a-uuid", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"kind":"not_found"`) {
		t.Errorf("expected error envelope, got %s", rec.Body.String())
	}
}

func TestNewServer_WarnsOnDevelopmentAuth(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantWarn bool
		selected string
	}{
		{"env default", config.Config{Env: "development"}, true, "ENV=development"},
		{"explicit mode", config.Config{Env: "staging", AuthMode: config.AuthModeDevelopment}, true, "AUTH_MODE=development"},
		{"jwt", config.Config{Env: "production", AuthMode: config.AuthModeJWT}, false, ""},
	}
	for _, tt := range tests {
		cfg := tt.cfg
		cfg.JWTTTL = time.Hour
		cfg.BodyLimit = "1M"
		cfg.CORSOrigins = []string{"*"}

		var buf bytes.Buffer
		hub := websocket.NewHub(zerolog.Nop())
		key, _, _ := resolveSigningKey("")
		newServer(&cfg, nil, hub, notify.NewLocalPublisher(hub), key, zerolog.New(&buf))

		out := buf.String()
		gotWarn := strings.Contains(out, "DEVELOPMENT AUTH ACTIVE")
		if gotWarn != tt.wantWarn {
			t.Errorf("%s: warning logged = %v, want %v (%s)", tt.name, gotWarn, tt.wantWarn, out)
		}
		if tt.wantWarn && (!strings.Contains(out, `"level":"warn"`) || !strings.Contains(out, tt.selected)) {
			t.Errorf("%s: expected warn level naming %s, got %s", tt.name, tt.selected, out)
		}
	}
}
