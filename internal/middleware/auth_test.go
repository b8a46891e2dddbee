package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/faultline/faultline/internal/problem"
	"github.com/faultline/faultline/internal/taxonomy"
)

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	hash, err := HashPassword("s3cret-pass")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	return NewAuthenticator(AuthConfig{
		Enabled:           true,
		AdminUsername:     "admin",
		AdminPasswordHash: hash,
		JWTSecret:         "test-signing-secret",
		TokenTTL:          time.Hour,
		SkipPaths:         []string{"/health", "/api/errors/report", "/auth/*"},
	}, taxonomy.NewRegistry())
}

func TestTokenRoundTrip(t *testing.T) {
	a := newTestAuthenticator(t)

	token, err := a.IssueToken("admin")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	claims, err := a.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken failed: %v", err)
	}
	if claims.Operator != "admin" {
		t.Errorf("claims operator = %q, want admin", claims.Operator)
	}
}

func TestVerifyTokenRejectsWrongSecret(t *testing.T) {
	a := newTestAuthenticator(t)
	other := NewAuthenticator(AuthConfig{
		Enabled:   true,
		JWTSecret: "a-different-secret",
		TokenTTL:  time.Hour,
	}, taxonomy.NewRegistry())

	token, err := other.IssueToken("admin")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := a.VerifyToken(token); err == nil {
		t.Error("token signed with another secret must be rejected")
	}
}

func TestCheckCredentials(t *testing.T) {
	a := newTestAuthenticator(t)

	if !a.CheckCredentials("admin", "s3cret-pass") {
		t.Error("valid credentials rejected")
	}
	if a.CheckCredentials("admin", "wrong") {
		t.Error("wrong password accepted")
	}
	if a.CheckCredentials("root", "s3cret-pass") {
		t.Error("wrong username accepted")
	}
}

func TestWrapDeniesWithProblemBody(t *testing.T) {
	a := newTestAuthenticator(t)
	handler := a.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run without a token")
	}))

	r := httptest.NewRequest("GET", "/api/incidents", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
	if w.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}
	if got := w.Header().Get("Content-Type"); got != problem.ContentType {
		t.Errorf("Content-Type = %q, want %q", got, problem.ContentType)
	}

	var body problem.Details
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode denial body: %v", err)
	}
	if body.Code != "AUTHZ-API-DENY-001" {
		t.Errorf("code = %q", body.Code)
	}
	if body.Status != http.StatusUnauthorized {
		t.Errorf("body status = %d, want 401", body.Status)
	}
	if body.Type != "https://errors.fixzit.app/authz-api-deny-001" {
		t.Errorf("type = %q", body.Type)
	}
}

func TestWrapAcceptsBearerToken(t *testing.T) {
	a := newTestAuthenticator(t)
	token, err := a.IssueToken("admin")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	var operator string
	handler := a.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		operator = Operator(r.Context())
	}))

	r := httptest.NewRequest("GET", "/api/incidents", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if operator != "admin" {
		t.Errorf("context operator = %q, want admin", operator)
	}
}

func TestWrapSkipsConfiguredPaths(t *testing.T) {
	a := newTestAuthenticator(t)

	tests := []struct {
		path string
		want int
	}{
		{"/health", http.StatusOK},
		{"/api/errors/report", http.StatusOK},
		{"/auth/login", http.StatusOK},
		{"/api/incidents", http.StatusUnauthorized},
	}

	handler := a.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, tt := range tests {
		r := httptest.NewRequest("GET", tt.path, nil)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, r)
		if w.Code != tt.want {
			t.Errorf("path %s: status = %d, want %d", tt.path, w.Code, tt.want)
		}
	}
}

func TestWrapDisabledPassesThrough(t *testing.T) {
	a := newTestAuthenticator(t)
	a.SetEnabled(false)

	handler := a.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest("GET", "/api/incidents", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", w.Code)
	}
}
