package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/abhi5157/Store-Rating-App/internal/app"
	"github.com/abhi5157/Store-Rating-App/internal/ratelimit"
	"github.com/abhi5157/Store-Rating-App/internal/store"
	"github.com/abhi5157/Store-Rating-App/internal/util"
	"github.com/abhi5157/Store-Rating-App/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	RedisAddr                  string
	RedisPassword              string
	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int
	TrustedProxyCIDRs          []string
}

// Server exposes the HTTP endpoints of the rating platform.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
	trustedProxies  *util.TrustedProxies
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	registerLimit := cfg.RegisterRateLimitPerMinute
	if registerLimit <= 0 {
		registerLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "storerating:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	registerLimiter, err := newLimiter("register", registerLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	trusted, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		registerLimiter: registerLimiter,
		loginLimiter:    loginLimiter,
		trustedProxies:  trusted,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.HandleFunc("/api/auth/logout", s.handleLogout)
	s.mux.Handle("/api/auth/change-password", s.authenticated(s.handleChangePassword))

	// users (admin)
	s.mux.Handle("/api/users", s.authenticated(s.handleUsers))
	s.mux.Handle("/api/users/dashboard", s.authenticated(s.handleDashboard))
	s.mux.Handle("/api/users/", s.authenticated(s.handleUserByID))

	// stores
	s.mux.Handle("/api/stores", s.authenticated(s.handleStores))
	s.mux.Handle("/api/stores/owner/dashboard", s.authenticated(s.handleOwnerDashboard))
	s.mux.Handle("/api/stores/", s.authenticated(s.handleStoreByID))

	// ratings
	s.mux.Handle("/api/ratings/user", s.authenticated(s.handleUserRatings))
	s.mux.Handle("/api/ratings/store/", s.authenticated(s.handleStoreRatings))
	s.mux.Handle("/api/ratings/", s.authenticated(s.handleSubmitRating))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			s.audit(r, "authenticate", "fail", "reason", "missing_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		user, ok := s.app.UserFromToken(token)
		if !ok {
			s.audit(r, "authenticate", "fail", "reason", "invalid_token")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

// allow consults the access policy before a gated operation. Denials are
// reported to the caller and logged; they are never silent.
func (s *Server) allow(w http.ResponseWriter, r *http.Request, user domain.User, action app.Action) bool {
	if err := app.Authorize(user.Role, action); err != nil {
		s.audit(r, "authorize", "fail", "user_id", user.ID, "role", string(user.Role), "action", string(action))
		writeError(w, http.StatusForbidden, "access denied")
		return false
	}
	return true
}

// auth handlers
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts") {
		s.audit(r, "register", "rate_limited")
		return
	}
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Register(req.Name, req.Email, req.Password, req.Address)
	if err != nil {
		s.audit(r, "register", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "login", "rate_limited")
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "login", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := s.app.Logout(token); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "currentPassword and newPassword are required")
		return
	}
	if err := s.app.ChangePassword(user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		s.audit(r, "password.change", "fail", "user_id", user.ID)
		writeAppError(w, err)
		return
	}
	s.audit(r, "password.change", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully"})
}

// user handlers
func (s *Server) handleUsers(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		if !s.allow(w, r, user, app.ActionListUsers) {
			return
		}
		filter := store.UserFilter{
			Name:  r.URL.Query().Get("name"),
			Email: r.URL.Query().Get("email"),
			Role:  domain.UserRole(r.URL.Query().Get("role")),
		}
		users, err := s.app.ListUsers(filter)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, users)
	case http.MethodPost:
		if !s.allow(w, r, user, app.ActionCreateUser) {
			return
		}
		var req createUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := s.app.CreateUser(req.Name, req.Email, req.Password, req.Address, domain.UserRole(req.Role))
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.allow(w, r, user, app.ActionViewDashboardStats) {
		return
	}
	stats, err := s.app.DashboardStats()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// /api/users/{id} and /api/users/{id}/role
func (s *Server) handleUserByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	path := strings.TrimPrefix(r.URL.Path, "/api/users/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}
	if len(parts) == 2 {
		if parts[1] != "role" {
			http.NotFound(w, r)
			return
		}
		if r.Method != http.MethodPut {
			methodNotAllowed(w)
			return
		}
		if !s.allow(w, r, user, app.ActionSetUserRole) {
			return
		}
		var req roleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := s.app.ChangeRole(id, domain.UserRole(req.Role))
		if err != nil {
			writeAppError(w, err)
			return
		}
		s.audit(r, "user.role.change", "success", "user_id", user.ID, "target_id", id, "role", req.Role)
		writeJSON(w, http.StatusOK, updated)
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}
	if !s.allow(w, r, user, app.ActionDeleteUser) {
		return
	}
	if err := s.app.DeleteUser(id); err != nil {
		writeAppError(w, err)
		return
	}
	s.audit(r, "user.delete", "success", "user_id", user.ID, "target_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "User deleted successfully"})
}

// store handlers
func (s *Server) handleStores(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		if !s.allow(w, r, user, app.ActionListStores) {
			return
		}
		filter := store.StoreFilter{
			Name:    r.URL.Query().Get("name"),
			Address: r.URL.Query().Get("address"),
		}
		stores, err := s.app.ListStores(user.ID, filter)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stores)
	case http.MethodPost:
		if !s.allow(w, r, user, app.ActionCreateStore) {
			return
		}
		var req storeRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		created, err := s.app.CreateStore(req.Name, req.Email, req.Address, req.OwnerID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleOwnerDashboard(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.allow(w, r, user, app.ActionViewOwnerDashboard) {
		return
	}
	dashboard, err := s.app.OwnerDashboard(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// /api/stores/{id}
func (s *Server) handleStoreByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/stores/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		if !s.allow(w, r, user, app.ActionViewStore) {
			return
		}
		details, err := s.app.GetStoreDetails(user.ID, id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, details)
	case http.MethodPut:
		if !s.allow(w, r, user, app.ActionUpdateStore) {
			return
		}
		var req updateStoreRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := s.app.UpdateStore(id, app.StoreUpdate{
			Name:    req.Name,
			Email:   req.Email,
			Address: req.Address,
			OwnerID: req.OwnerID,
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if !s.allow(w, r, user, app.ActionDeleteStore) {
			return
		}
		if err := s.app.DeleteStore(id); err != nil {
			writeAppError(w, err)
			return
		}
		s.audit(r, "store.delete", "success", "user_id", user.ID, "store_id", id)
		writeJSON(w, http.StatusOK, map[string]string{"message": "Store deleted successfully"})
	default:
		methodNotAllowed(w)
	}
}

// rating handlers

// /api/ratings/{storeId}
func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allow(w, r, user, app.ActionSubmitRating) {
		return
	}
	storeID := strings.TrimPrefix(r.URL.Path, "/api/ratings/")
	if storeID == "" || strings.Contains(storeID, "/") {
		http.NotFound(w, r)
		return
	}
	var req submitRatingRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	rating, average, err := s.app.SubmitRating(user.ID, storeID, req.Rating)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ratingResponse{Rating: rating, AverageRating: average})
}

// /api/ratings/store/{storeId}
func (s *Server) handleStoreRatings(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.allow(w, r, user, app.ActionViewStoreRatings) {
		return
	}
	storeID := strings.TrimPrefix(r.URL.Path, "/api/ratings/store/")
	if storeID == "" || strings.Contains(storeID, "/") {
		http.NotFound(w, r)
		return
	}
	ratings, err := s.app.StoreRatings(storeID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ratings)
}

// /api/ratings/user
func (s *Server) handleUserRatings(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	if !s.allow(w, r, user, app.ActionViewStoreRatings) {
		return
	}
	ratings, err := s.app.UserRatings(user.ID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ratings)
}

// request/response bodies
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type createUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address"`
	Role     string `json:"role"`
}

type roleRequest struct {
	Role string `json:"role"`
}

type storeRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
	OwnerID string `json:"ownerId"`
}

type updateStoreRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
	OwnerID *string `json:"ownerId"`
}

type submitRatingRequest struct {
	Rating int `json:"rating"`
}

type ratingResponse struct {
	Rating        domain.Rating `json:"rating"`
	AverageRating float64       `json:"averageRating"`
}

// helpers
func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case app.IsValidation(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrLastAdmin) || errors.Is(err, app.ErrEmailAlreadyExists):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrUserNotFound) || errors.Is(err, app.ErrStoreNotFound) || errors.Is(err, app.ErrOwnerNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials) || errors.Is(err, app.ErrCurrentPasswordIncorrect):
		writeError(w, http.StatusUnauthorized, err.Error())
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}
