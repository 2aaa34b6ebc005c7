// Package app is the application service layer: it owns the business
// rules for accounts, donor profiles, blood requests, reports, and the
// donor search orchestration, delegating persistence to pkg/store and
// matching to pkg/match.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bloodlink/internal/util"
	"bloodlink/pkg/auth"
	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
	"bloodlink/pkg/match"
	"bloodlink/pkg/store"
)

// Geocoder resolves free-text locations to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (geo.Point, bool)
}

// AlertQueue receives newly created blood requests for donor fan-out.
type AlertQueue interface {
	EnqueueRequestAlert(ctx context.Context, requestID string) error
}

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration
	JWTSecret     string

	Store    store.Store
	Sessions store.SessionStore
	Geocoder Geocoder
	Alerts   AlertQueue
}

// App wires together storage, sessions, geocoding, and matching.
type App struct {
	store    store.Store
	sessions store.SessionStore
	geocoder Geocoder
	engine   *match.Engine
	alerts   AlertQueue
}

// New constructs the application. A nil Store falls back to Postgres
// via DatabaseURL; a nil session store is selected from JWTSecret or
// RedisAddr, in that order.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		switch {
		case cfg.JWTSecret != "":
			sessionStore = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL)
		case cfg.RedisAddr != "":
			sessionStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		default:
			return nil, fmt.Errorf("session store required (jwtSecret or redisAddr)")
		}
	}

	geocoder := cfg.Geocoder
	if geocoder == nil {
		geocoder = geo.NewGeocoder()
	}

	return &App{
		store:    dataStore,
		sessions: sessionStore,
		geocoder: geocoder,
		engine:   match.NewEngine(donorSource{dataStore}),
		alerts:   cfg.Alerts,
	}, nil
}

// Store exposes the underlying data store for supporting workers.
func (a *App) Store() store.Store {
	return a.store
}

// donorSource adapts the store to the matching engine's narrow view.
type donorSource struct {
	store store.Store
}

func (s donorSource) AvailableDonors(group domain.BloodGroup) ([]domain.Donor, error) {
	return s.store.AvailableDonors(group)
}

func (s donorSource) GetDonor(id string) (domain.Donor, bool, error) {
	return s.store.GetDonor(id)
}

// RegisterInput carries a new account registration.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
	Gender   string
	Age      int
	Role     domain.UserRole

	// Donor profile fields, used when Role is donor.
	BloodGroup domain.BloodGroup
	Latitude   *float64
	Longitude  *float64
	Address    string
	City       string
}

// Register creates a user account, a donor profile when the role is
// donor, and an initial session token.
func (a *App) Register(in RegisterInput) (domain.User, string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(strings.ToLower(in.Email))
	if in.Name == "" || in.Email == "" || in.Password == "" || in.Phone == "" {
		return domain.User{}, "", fmt.Errorf("%w: missing required fields", ErrValidation)
	}
	phone, err := normalizePhone(in.Phone)
	if err != nil {
		return domain.User{}, "", err
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return domain.User{}, "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	role := in.Role
	if role == "" {
		role = domain.RoleDonor
	}
	if role != domain.RoleDonor && role != domain.RoleSeeker {
		return domain.User{}, "", fmt.Errorf("%w: role must be donor or seeker", ErrValidation)
	}
	if role == domain.RoleDonor && !in.BloodGroup.Valid() {
		return domain.User{}, "", fmt.Errorf("%w: unknown blood group %q", ErrValidation, in.BloodGroup)
	}

	exists, err := a.store.HasUserEmail(in.Email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailExists
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	user := domain.User{
		ID:           util.NewID(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Phone:        phone,
		Role:         role,
		Gender:       in.Gender,
		Age:          in.Age,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}

	if role == domain.RoleDonor {
		donor := domain.Donor{
			ID:          util.NewID(),
			UserID:      user.ID,
			BloodGroup:  in.BloodGroup,
			Address:     in.Address,
			City:        in.City,
			IsAvailable: true,
		}
		if in.Latitude != nil && in.Longitude != nil {
			donor.Location = &domain.Coordinates{Latitude: *in.Latitude, Longitude: *in.Longitude}
		}
		if err := a.store.SaveDonor(donor); err != nil {
			return domain.User{}, "", fmt.Errorf("save donor profile: %w", err)
		}
	}

	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login validates credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", fmt.Errorf("%w: missing email or password", ErrValidation)
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Logout removes a session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// DonorProfile returns the donor profile owned by a user, when present.
func (a *App) DonorProfile(userID string) (domain.Donor, bool, error) {
	return a.store.GetDonorByUserID(userID)
}

// ListDonors pages through available donors with optional filters.
func (a *App) ListDonors(f store.DonorFilter) ([]domain.Donor, int64, error) {
	return a.store.ListDonors(f)
}

// GetDonor retrieves a donor by ID.
func (a *App) GetDonor(id string) (domain.Donor, error) {
	donor, ok, err := a.store.GetDonor(id)
	if err != nil {
		return domain.Donor{}, fmt.Errorf("get donor: %w", err)
	}
	if !ok {
		return domain.Donor{}, ErrNotFound
	}
	return donor, nil
}

// DonorUpdate carries a partial donor profile update; nil fields are
// left untouched.
type DonorUpdate struct {
	BloodGroup *domain.BloodGroup
	Latitude   *float64
	Longitude  *float64
	Address    *string
	City       *string
}

// UpdateDonor applies a partial update to a donor profile. Only the
// owning user may update it.
func (a *App) UpdateDonor(actor domain.User, donorID string, update DonorUpdate) (domain.Donor, error) {
	donor, ok, err := a.store.GetDonor(donorID)
	if err != nil {
		return domain.Donor{}, fmt.Errorf("get donor: %w", err)
	}
	if !ok || donor.UserID != actor.ID {
		return domain.Donor{}, ErrForbidden
	}

	if update.BloodGroup != nil {
		if !update.BloodGroup.Valid() {
			return domain.Donor{}, fmt.Errorf("%w: unknown blood group %q", ErrValidation, *update.BloodGroup)
		}
		donor.BloodGroup = *update.BloodGroup
	}
	if update.Latitude != nil && update.Longitude != nil {
		donor.Location = &domain.Coordinates{Latitude: *update.Latitude, Longitude: *update.Longitude}
	}
	if update.Address != nil {
		donor.Address = *update.Address
	}
	if update.City != nil {
		donor.City = *update.City
	}

	if err := a.store.SaveDonor(donor); err != nil {
		return domain.Donor{}, fmt.Errorf("save donor: %w", err)
	}
	return donor, nil
}

// SetDonorAvailability sets or toggles the availability flag. A nil
// value toggles the current state.
func (a *App) SetDonorAvailability(actor domain.User, donorID string, available *bool) (domain.Donor, error) {
	donor, ok, err := a.store.GetDonor(donorID)
	if err != nil {
		return domain.Donor{}, fmt.Errorf("get donor: %w", err)
	}
	if !ok || donor.UserID != actor.ID {
		return domain.Donor{}, ErrForbidden
	}
	if available != nil {
		donor.IsAvailable = *available
	} else {
		donor.IsAvailable = !donor.IsAvailable
	}
	if err := a.store.SaveDonor(donor); err != nil {
		return domain.Donor{}, fmt.Errorf("save donor: %w", err)
	}
	return donor, nil
}

// EnsureAdmin seeds an admin account at startup when none exists.
func (a *App) EnsureAdmin(name, email, password string) error {
	count, err := a.store.CountAdmins()
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if count > 0 {
		return nil
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	admin := domain.User{
		ID:           util.NewID(),
		Name:         name,
		Email:        strings.TrimSpace(strings.ToLower(email)),
		PasswordHash: hash,
		Phone:        "0000000000",
		Role:         domain.RoleAdmin,
		IsVerified:   true,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SaveUser(admin); err != nil {
		return fmt.Errorf("save admin: %w", err)
	}
	slog.Info("seeded default admin", "email", admin.Email)
	return nil
}

func normalizePhone(raw string) (string, error) {
	phone := strings.NewReplacer("-", "", " ", "").Replace(raw)
	if len(phone) != 10 {
		return "", fmt.Errorf("%w: phone must be exactly 10 digits", ErrValidation)
	}
	for _, r := range phone {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: phone must be exactly 10 digits", ErrValidation)
		}
	}
	return phone, nil
}
