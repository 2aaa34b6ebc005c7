// Package server exposes the HTTP API: registration and sessions,
// donor listings and profile updates, donor search, blood requests,
// reports, and admin moderation.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bloodlink/internal/app"
	"bloodlink/internal/ratelimit"
	"bloodlink/internal/util"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/store"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                      *app.App
	RedisAddr                string
	RedisPassword            string
	SignupRateLimitPerMinute int
	LoginRateLimitPerMinute  int
	SearchRateLimitPerMinute int
	TrustedProxies           *util.TrustedProxies
}

// Server exposes HTTP endpoints for the donor service.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	trustedProxies *util.TrustedProxies
	signupLimiter  *ratelimit.FixedWindowLimiter
	loginLimiter   *ratelimit.FixedWindowLimiter
	searchLimiter  *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	signupLimit := cfg.SignupRateLimitPerMinute
	if signupLimit <= 0 {
		signupLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	searchLimit := cfg.SearchRateLimitPerMinute
	if searchLimit <= 0 {
		searchLimit = 30
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "bloodlink:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	signupLimiter, err := newLimiter("signup", signupLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	searchLimiter, err := newLimiter("search", searchLimit)
	if err != nil {
		return nil, err
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		trustedProxies: cfg.TrustedProxies,
		signupLimiter:  signupLimiter,
		loginLimiter:   loginLimiter,
		searchLimiter:  searchLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler wrapped in the shared
// middleware chain.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/register", s.handleRegister)
	s.mux.HandleFunc("/api/login", s.handleLogin)
	s.mux.Handle("/api/logout", s.authenticated(s.handleLogout))
	s.mux.Handle("/api/current-user", s.authenticated(s.handleCurrentUser))

	// donors & search
	s.mux.HandleFunc("/api/donors", s.handleDonors)
	s.mux.HandleFunc("/api/donors/nearby", s.handleNearbyDonors)
	s.mux.HandleFunc("/api/donors/", s.handleDonorByID)
	s.mux.HandleFunc("/api/search", s.handleSearch)

	// blood requests & reports (auth required)
	s.mux.Handle("/api/requests", s.authenticated(s.handleRequests))
	s.mux.HandleFunc("/api/requests/", s.handleRequestByID)
	s.mux.Handle("/api/reports", s.authenticated(s.handleReports))

	// admin
	s.mux.Handle("/api/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/api/admin/users/", s.adminOnly(s.handleAdminUserByID))
	s.mux.Handle("/api/admin/reports", s.adminOnly(s.handleAdminReports))
	s.mux.Handle("/api/admin/reports/", s.adminOnly(s.handleAdminReportByID))
	s.mux.Handle("/api/admin/verify/", s.adminOnly(s.handleAdminVerify))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "authorize", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "admin.authorize", "fail", "reason", "unauthenticated")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if user.Role != domain.RoleAdmin {
			s.audit(r, "admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	return s.app.UserFromToken(token)
}

// auth handlers
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.signupLimiter, "too many registration attempts") {
		s.audit(r, "register", "rate_limited")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Register(app.RegisterInput{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Phone:      req.Phone,
		Gender:     req.Gender,
		Age:        req.Age,
		Role:       domain.UserRole(req.Role),
		BloodGroup: domain.BloodGroup(req.BloodGroup),
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Address:    req.Address,
		City:       req.City,
	})
	if err != nil {
		s.audit(r, "register", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, sessionResponse{Token: token, User: user})
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
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Login(req.Email, req.Password)
	if err != nil {
		s.audit(r, "login", "fail", "reason", err.Error())
		writeAppError(w, r, err)
		return
	}
	s.audit(r, "login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, sessionResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, _ := bearerToken(r)
	if err := s.app.Logout(token); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	resp := currentUserResponse{User: user}
	if donor, ok, err := s.app.DonorProfile(user.ID); err == nil && ok {
		resp.Donor = &donor
	}
	writeJSON(w, http.StatusOK, resp)
}

// /api/donors
func (s *Server) handleDonors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	donors, total, err := s.app.ListDonors(store.DonorFilter{
		BloodGroup: domain.BloodGroup(q.Get("blood_group")),
		City:       q.Get("city"),
		Page:       queryInt(q.Get("page"), 1),
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, donorListResponse{
		Donors: donors,
		Total:  total,
		Pages:  store.Pages(total),
	})
}

// /api/donors/{id} and /api/donors/{id}/availability
func (s *Server) handleDonorByID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/donors/")
	parts := strings.SplitN(path, "/", 2)
	id := parts[0]
	if id == "" {
		http.NotFound(w, r)
		return
	}

	if len(parts) == 2 && parts[1] == "availability" {
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			s.handleDonorAvailability(w, r, user, id)
		}).ServeHTTP(w, r)
		return
	}
	if len(parts) == 2 {
		http.NotFound(w, r)
		return
	}

	switch r.Method {
	case http.MethodGet:
		donor, err := s.app.GetDonor(id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, donor)
	case http.MethodPut:
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			s.handleDonorUpdate(w, r, user, id)
		}).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleDonorUpdate(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	var req donorUpdateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var group *domain.BloodGroup
	if req.BloodGroup != nil {
		g := domain.BloodGroup(*req.BloodGroup)
		group = &g
	}
	donor, err := s.app.UpdateDonor(user, id, app.DonorUpdate{
		BloodGroup: group,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Address:    req.Address,
		City:       req.City,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, donor)
}

func (s *Server) handleDonorAvailability(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req availabilityRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	donor, err := s.app.SetDonorAvailability(user, id, req.IsAvailable)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, donor)
}

// /api/search
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.searchLimiter, "too many search requests") {
		s.audit(r, "search", "rate_limited")
		return
	}
	var req searchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.app.Search(r.Context(), app.SearchQuery{
		BloodGroup: domain.BloodGroup(req.BloodGroup),
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
		Location:   req.Location,
		RadiusKm:   req.RadiusKm,
		Urgency:    req.Urgency,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// /api/donors/nearby
func (s *Server) handleNearbyDonors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	query := app.SearchQuery{
		BloodGroup: domain.BloodGroup(q.Get("blood_group")),
		Location:   q.Get("location"),
	}
	if raw := q.Get("radius_km"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid radius_km")
			return
		}
		query.RadiusKm = &v
	}
	if raw := q.Get("latitude"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid latitude")
			return
		}
		query.Latitude = &v
	}
	if raw := q.Get("longitude"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid longitude")
			return
		}
		query.Longitude = &v
	}
	donors, err := s.app.NearbyDonors(r.Context(), query)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"donors": donors,
		"count":  len(donors),
	})
}

// /api/requests
func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createRequestRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	request, err := s.app.CreateRequest(r.Context(), user, app.RequestInput{
		BloodGroup: domain.BloodGroup(req.BloodGroup),
		Urgency:    domain.RequestUrgency(req.Urgency),
		Location:   req.Location,
		Latitude:   req.Latitude,
		Longitude:  req.Longitude,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, request)
}

// /api/requests/{id}
func (s *Server) handleRequestByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/requests/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		request, err := s.app.GetRequest(id)
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, request)
	case http.MethodPut:
		s.authenticated(func(w http.ResponseWriter, r *http.Request, user domain.User) {
			s.handleRequestUpdate(w, r, user, id)
		}).ServeHTTP(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleRequestUpdate(w http.ResponseWriter, r *http.Request, user domain.User, id string) {
	var req updateRequestRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	update := app.RequestUpdate{}
	if req.Status != nil {
		status := domain.RequestStatus(*req.Status)
		update.Status = &status
	}
	if req.Urgency != nil {
		urgency := domain.RequestUrgency(*req.Urgency)
		update.Urgency = &urgency
	}
	request, err := s.app.UpdateRequest(user, id, update)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, request)
}

// /api/reports
func (s *Server) handleReports(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req createReportRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	report, err := s.app.CreateReport(user, req.ReportedUserID, req.Reason)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report)
}

// admin handlers
func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, user domain.User) {
	_ = user
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	page, err := s.app.ListUsers(domain.UserRole(q.Get("role")), queryInt(q.Get("page"), 1))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleAdminUserByID(w http.ResponseWriter, r *http.Request, admin domain.User) {
	_ = admin
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodPut:
		var req adminUserUpdateRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := s.app.UpdateUser(id, app.UserUpdate{
			Name:       req.Name,
			Email:      req.Email,
			IsVerified: req.IsVerified,
		})
		if err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if err := s.app.DeleteUser(id); err != nil {
			writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleAdminReports(w http.ResponseWriter, r *http.Request, admin domain.User) {
	_ = admin
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	q := r.URL.Query()
	page, err := s.app.ListReports(domain.ReportStatus(q.Get("status")), queryInt(q.Get("page"), 1))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleAdminReportByID(w http.ResponseWriter, r *http.Request, admin domain.User) {
	_ = admin
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/reports/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPut {
		methodNotAllowed(w)
		return
	}
	var req adminReportUpdateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	report, err := s.app.UpdateReport(id, domain.ReportStatus(req.Status))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleAdminVerify(w http.ResponseWriter, r *http.Request, admin domain.User) {
	_ = admin
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/verify/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	user, err := s.app.VerifyUser(id)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type registerRequest struct {
	Name       string   `json:"name"`
	Email      string   `json:"email"`
	Password   string   `json:"password"`
	Phone      string   `json:"phone"`
	Gender     string   `json:"gender"`
	Age        int      `json:"age"`
	Role       string   `json:"role"`
	BloodGroup string   `json:"blood_group"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Address    string   `json:"address"`
	City       string   `json:"city"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type currentUserResponse struct {
	User  domain.User   `json:"user"`
	Donor *domain.Donor `json:"donor,omitempty"`
}

type donorListResponse struct {
	Donors []domain.Donor `json:"donors"`
	Total  int64          `json:"total"`
	Pages  int            `json:"pages"`
}

type donorUpdateRequest struct {
	BloodGroup *string  `json:"blood_group"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Address    *string  `json:"address"`
	City       *string  `json:"city"`
}

type availabilityRequest struct {
	IsAvailable *bool `json:"is_available"`
}

type searchRequest struct {
	BloodGroup string   `json:"blood_group"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
	Location   string   `json:"location"`
	RadiusKm   *float64 `json:"radius_km"`
	Urgency    int      `json:"urgency"`
}

type createRequestRequest struct {
	BloodGroup string   `json:"blood_group"`
	Urgency    string   `json:"urgency_level"`
	Location   string   `json:"location"`
	Latitude   *float64 `json:"latitude"`
	Longitude  *float64 `json:"longitude"`
}

type updateRequestRequest struct {
	Status  *string `json:"status"`
	Urgency *string `json:"urgency_level"`
}

type createReportRequest struct {
	ReportedUserID string `json:"reported_user_id"`
	Reason         string `json:"reason"`
}

type adminUserUpdateRequest struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	IsVerified *bool   `json:"is_verified"`
}

type adminReportUpdateRequest struct {
	Status string `json:"status"`
}

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

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError translates application sentinels to HTTP statuses.
// Anything unrecognized is a 500 with the detail kept server-side.
func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrValidation),
		errors.Is(err, app.ErrEmailExists),
		errors.Is(err, app.ErrMissingCoordinates):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		util.LoggerFromContext(r.Context()).Error("request failed",
			"path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
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

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

