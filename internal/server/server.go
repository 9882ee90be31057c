package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"docvault/internal/app"
	"docvault/internal/ratelimit"
	"docvault/internal/util"
	"docvault/pkg/store"
)

const defaultMaxUploadBytes = 50 << 20

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	RedisAddr     string
	RedisPassword string

	MaxUploadBytes int64

	VerifyRateLimitPerMinute   int
	RequestRateLimitPerMinute  int
	ValidateRateLimitPerMinute int
}

// Server exposes the HTTP API.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	maxUploadBytes int64

	verifyLimiter   *ratelimit.FixedWindowLimiter
	requestLimiter  *ratelimit.FixedWindowLimiter
	validateLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured. The anonymous-facing
// endpoints (owner verification, request creation, code validation) are
// rate limited per client IP.
func New(cfg Config) (*Server, error) {
	verifyLimit := cfg.VerifyRateLimitPerMinute
	if verifyLimit <= 0 {
		verifyLimit = 10
	}
	requestLimit := cfg.RequestRateLimitPerMinute
	if requestLimit <= 0 {
		requestLimit = 20
	}
	validateLimit := cfg.ValidateRateLimitPerMinute
	if validateLimit <= 0 {
		validateLimit = 60
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "docvault:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	verifyLimiter, err := newLimiter("verify", verifyLimit)
	if err != nil {
		return nil, err
	}
	requestLimiter, err := newLimiter("request", requestLimit)
	if err != nil {
		return nil, err
	}
	validateLimiter, err := newLimiter("validate", validateLimit)
	if err != nil {
		return nil, err
	}

	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}

	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		maxUploadBytes:  maxUpload,
		verifyLimiter:   verifyLimiter,
		requestLimiter:  requestLimiter,
		validateLimiter: validateLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler with the middleware chain applied.
func (s *Server) Router() http.Handler {
	var handler http.Handler = s.mux
	handler = util.WithRequestLog(handler)
	handler = util.WithRequestID(handler)
	handler = util.WithSecurityHeaders(handler)
	handler = util.WithCORS(handler)
	return handler
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// accounts
	s.mux.HandleFunc("/api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))

	// share codes
	s.mux.Handle("/api/qrcode/generate", s.authenticated(s.handleGenerateShareCode))
	s.mux.HandleFunc("/api/qrcode/validate/", s.handleValidateShareCode)

	// access requests
	s.mux.HandleFunc("/api/access/request", s.handleCreateAccessRequest)
	s.mux.HandleFunc("/api/access/verify", s.handleVerifyOwner)
	s.mux.HandleFunc("/api/access/requests/", s.handleAccessRequestByID)

	// documents
	s.mux.Handle("/api/documents", s.authenticated(s.handleDocuments))
	s.mux.HandleFunc("/api/documents/", s.handleDocumentByID)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// identityHandler receives the resolved caller identity.
type identityHandler func(http.ResponseWriter, *http.Request, store.Identity)

func (s *Server) authenticated(next identityHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := s.identity(r)
		if !ok {
			s.audit(r, "authorize", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
			return
		}
		next(w, r, identity)
	})
}

// identity resolves the bearer token, when present.
func (s *Server) identity(r *http.Request) (store.Identity, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return store.Identity{}, false
	}
	return s.app.IdentityFromToken(token)
}

// optionalIdentity returns the caller identity, or the anonymous identity when
// no valid token was sent. Used where anonymous access is legitimate and the
// grant evaluator decides.
func (s *Server) optionalIdentity(r *http.Request) store.Identity {
	identity, _ := s.identity(r)
	return identity
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, "rate_limited", msg)
	return false
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError emits the error body: a machine-readable code plus the human
// message, so clients can tell "retry later" from "this link is dead".
func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": msg, "code": code})
}

// writeAppError maps application errors onto the HTTP error taxonomy.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidCapability):
		writeError(w, http.StatusNotFound, "invalid_capability", err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, app.ErrNoDocuments):
		writeError(w, http.StatusNotFound, "no_documents", err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case errors.Is(err, app.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, "permission_denied", err.Error())
	case errors.Is(err, app.ErrInvalidState):
		writeError(w, http.StatusConflict, "invalid_state", err.Error())
	case errors.Is(err, app.ErrSelfAccess):
		writeError(w, http.StatusBadRequest, "self_access", err.Error())
	case errors.Is(err, app.ErrOwnershipMismatch):
		writeError(w, http.StatusBadRequest, "ownership_mismatch", err.Error())
	case errors.Is(err, app.ErrQuotaExceeded):
		writeError(w, http.StatusRequestEntityTooLarge, "quota_exceeded", err.Error())
	case errors.Is(err, app.ErrStorageUnavailable):
		writeError(w, http.StatusInternalServerError, "storage_unavailable", err.Error())
	case errors.Is(err, app.ErrEmailAlreadyExists):
		writeError(w, http.StatusBadRequest, "email_exists", err.Error())
	case isValidationError(err):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		slog.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func isValidationError(err error) bool {
	for _, sentinel := range []error{
		app.ErrEmailAndPasswordRequired,
		app.ErrNameRequired,
		app.ErrPhoneInvalid,
		app.ErrPINInvalid,
		app.ErrCredentialsRequired,
		app.ErrDocumentsRequired,
		app.ErrInvalidSelection,
		app.ErrInvalidPermission,
		app.ErrInvalidSize,
		app.ErrFileRequired,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(authHeader) <= len(prefix) || authHeader[:len(prefix)] != prefix {
		return "", false
	}
	token := authHeader[len(prefix):]
	if token == "" {
		return "", false
	}
	return token, true
}
