package handlers

import (
	"log"
	"net/http"

	"github.com/faultline/faultline/internal/api"
	"github.com/faultline/faultline/internal/middleware"
	"github.com/faultline/faultline/internal/problem"
	"github.com/faultline/faultline/internal/taxonomy"
)

// codeLoginFailed classifies failed operator logins.
const codeLoginFailed = "AUTH-API-LOGIN-001"

// AuthHandler issues and verifies operator tokens. Like every other
// failure on this surface, login failures render as classified
// problem+json bodies.
type AuthHandler struct {
	auth     *middleware.Authenticator
	registry *taxonomy.Registry
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(auth *middleware.Authenticator, registry *taxonomy.Registry) *AuthHandler {
	return &AuthHandler{
		auth:     auth,
		registry: registry,
	}
}

// LoginRequest is the operator login body.
type LoginRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=256"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string `json:"token"`
	Operator  string `json:"operator"`
	ExpiresIn int    `json:"expires_in"` // seconds
}

// SetupRoutes sets up authentication routes
func (h *AuthHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /auth/login", h.handleLogin)
	mux.HandleFunc("GET /auth/verify", h.handleVerify)
}

// handleLogin handles POST /auth/login
func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	correlationID := middleware.GetCorrelationID(r.Context())

	var req LoginRequest
	if err := api.DecodeJSON(r, &req); err != nil {
		cls := h.registry.Classify(codeLoginFailed, http.StatusBadRequest, "")
		problem.Write(w, problem.Render(cls, codeLoginFailed, err.Error(), r.URL.Path, correlationID, nil))
		return
	}

	if fieldErrors := api.Validate(req); fieldErrors != nil {
		cls := h.registry.Classify(codeLoginFailed, http.StatusBadRequest, "")
		problem.Write(w, problem.Render(cls, codeLoginFailed, "Login validation failed", r.URL.Path, correlationID, mapFieldErrors(fieldErrors)))
		return
	}

	if !h.auth.CheckCredentials(req.Username, req.Password) {
		log.Printf("AuthHandler: failed login attempt for %q from %s", req.Username, r.RemoteAddr)
		cls := h.registry.Classify(codeLoginFailed, 0, "")
		problem.Write(w, problem.Render(cls, codeLoginFailed, "Invalid username or password", r.URL.Path, correlationID, nil))
		return
	}

	token, err := h.auth.IssueToken(req.Username)
	if err != nil {
		log.Printf("AuthHandler: failed to issue token for %q: %v", req.Username, err)
		cls := h.registry.Classify(codeLoginFailed, http.StatusInternalServerError, "")
		problem.Write(w, problem.Render(cls, codeLoginFailed, "Failed to issue token", r.URL.Path, correlationID, nil))
		return
	}

	log.Printf("AuthHandler: operator %q logged in from %s", req.Username, r.RemoteAddr)
	api.RespondJSON(w, http.StatusOK, LoginResponse{
		Token:     token,
		Operator:  req.Username,
		ExpiresIn: int(h.auth.TokenTTL().Seconds()),
	})
}

// handleVerify handles GET /auth/verify. The route sits behind the
// authenticator, so reaching it with an empty operator means the request
// bypassed the middleware chain.
func (h *AuthHandler) handleVerify(w http.ResponseWriter, r *http.Request) {
	operator := middleware.Operator(r.Context())
	if operator == "" {
		cls := h.registry.Classify(codeLoginFailed, http.StatusUnauthorized, "")
		problem.Write(w, problem.Render(cls, codeLoginFailed, "Not authenticated", r.URL.Path, middleware.GetCorrelationID(r.Context()), nil))
		return
	}

	api.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"valid":    true,
		"operator": operator,
	})
}
