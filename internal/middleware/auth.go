package middleware

import (
	"context"
	"crypto/subtle"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/faultline/faultline/internal/problem"
	"github.com/faultline/faultline/internal/taxonomy"
)

// codeAuthDenied classifies denials on the management surface. Auth
// failures are errors of this system like any other, so they render as
// problem+json with a registered code instead of an ad-hoc envelope.
const codeAuthDenied = "AUTHZ-API-DENY-001"

// OperatorClaims are the JWT claims issued to the admin operator.
type OperatorClaims struct {
	Operator string `json:"operator"`
	jwt.RegisteredClaims
}

// AuthConfig configures the management-API authenticator.
type AuthConfig struct {
	Enabled bool

	// Single admin operator; the password arrives pre-hashed with bcrypt.
	AdminUsername     string
	AdminPasswordHash string

	JWTSecret string
	TokenTTL  time.Duration

	// SkipPaths bypass authentication. A trailing "*" matches by prefix,
	// e.g. "/auth/*". The ingest endpoint lives here: reporters are
	// service call sites, not operators with sessions.
	SkipPaths []string
}

// Authenticator guards the query/settings API with bearer tokens. Denials
// are classified through the code registry and rendered as problem+json.
type Authenticator struct {
	registry *taxonomy.Registry

	mu   sync.RWMutex
	cfg  AuthConfig
	skip map[string]bool
}

type operatorContextKey struct{}

// NewAuthenticator creates an authenticator backed by the given registry.
func NewAuthenticator(cfg AuthConfig, registry *taxonomy.Registry) *Authenticator {
	a := &Authenticator{
		registry: registry,
		cfg:      cfg,
		skip:     make(map[string]bool, len(cfg.SkipPaths)),
	}
	for _, path := range cfg.SkipPaths {
		a.skip[path] = true
	}
	return a
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword reports whether password matches the bcrypt hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// TokenTTL returns the configured token lifetime.
func (a *Authenticator) TokenTTL() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.TokenTTL
}

// IssueToken signs a token for the operator.
func (a *Authenticator) IssueToken(operator string) (string, error) {
	a.mu.RLock()
	secret := a.cfg.JWTSecret
	ttl := a.cfg.TokenTTL
	a.mu.RUnlock()

	now := time.Now()
	claims := OperatorClaims{
		Operator: operator,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "faultline",
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// VerifyToken parses and verifies a token, returning its claims.
func (a *Authenticator) VerifyToken(tokenString string) (*OperatorClaims, error) {
	a.mu.RLock()
	secret := a.cfg.JWTSecret
	a.mu.RUnlock()

	token, err := jwt.ParseWithClaims(tokenString, &OperatorClaims{},
		func(*jwt.Token) (interface{}, error) { return []byte(secret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithIssuer("faultline"))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*OperatorClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// CheckCredentials verifies the operator login. The username comparison is
// constant-time so it leaks nothing about the configured name.
func (a *Authenticator) CheckCredentials(username, password string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if subtle.ConstantTimeCompare([]byte(username), []byte(a.cfg.AdminUsername)) != 1 {
		return false
	}
	return CheckPassword(password, a.cfg.AdminPasswordHash)
}

// Wrap guards a handler. Requests on skip paths pass through; everything
// else needs a valid bearer token, or gets a classified problem response.
func (a *Authenticator) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.Enabled() || a.skipsAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		tokenString := bearerToken(r)
		if tokenString == "" {
			a.deny(w, r, "Missing authentication token")
			return
		}

		claims, err := a.VerifyToken(tokenString)
		if err != nil {
			log.Printf("Authenticator: invalid token from %s: %v", r.RemoteAddr, err)
			a.deny(w, r, "Invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), operatorContextKey{}, claims.Operator)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetEnabled toggles authentication at runtime.
func (a *Authenticator) SetEnabled(enabled bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cfg.Enabled = enabled
}

// Enabled reports whether authentication is enforced.
func (a *Authenticator) Enabled() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cfg.Enabled
}

func (a *Authenticator) skipsAuth(path string) bool {
	if a.skip[path] {
		return true
	}
	for skipPath := range a.skip {
		if strings.HasSuffix(skipPath, "*") && strings.HasPrefix(path, strings.TrimSuffix(skipPath, "*")) {
			return true
		}
	}
	return false
}

// deny writes the classified denial problem. The registry entry carries
// 403; a failed authentication is a 401, so the status is overridden here.
func (a *Authenticator) deny(w http.ResponseWriter, r *http.Request, detail string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="faultline"`)
	cls := a.registry.Classify(codeAuthDenied, http.StatusUnauthorized, "")
	problem.Write(w, problem.Render(cls, codeAuthDenied, detail, r.URL.Path, GetCorrelationID(r.Context()), nil))
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

// Operator returns the authenticated operator from the context, or "".
func Operator(ctx context.Context) string {
	if op, ok := ctx.Value(operatorContextKey{}).(string); ok {
		return op
	}
	return ""
}
