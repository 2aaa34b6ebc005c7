package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
	"bloodlink/pkg/store"
)

// stubSessions hands out predictable tokens without Redis or JWT.
type stubSessions struct {
	tokens map[string]string
	next   int
}

func newStubSessions() *stubSessions {
	return &stubSessions{tokens: map[string]string{}}
}

func (s *stubSessions) NewSession(userID string) (string, error) {
	s.next++
	token := fmt.Sprintf("tok-%d", s.next)
	s.tokens[token] = userID
	return token, nil
}

func (s *stubSessions) GetUserIDByToken(token string) (string, bool, error) {
	uid, ok := s.tokens[token]
	return uid, ok, nil
}

func (s *stubSessions) DeleteSession(token string) error {
	delete(s.tokens, token)
	return nil
}

// stubGeocoder resolves every address to a fixed point.
type stubGeocoder struct {
	point geo.Point
	ok    bool
	calls int
}

func (g *stubGeocoder) Geocode(_ context.Context, _ string) (geo.Point, bool) {
	g.calls++
	return g.point, g.ok
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	a, err := New(Config{
		Store:    store.NewMemoryStore(),
		Sessions: newStubSessions(),
		Geocoder: &stubGeocoder{},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func registerDonor(t *testing.T, a *App, email string, group domain.BloodGroup, lat, lon float64) (domain.User, string) {
	t.Helper()
	user, token, err := a.Register(RegisterInput{
		Name:       "Donor " + email,
		Email:      email,
		Password:   "Str0ng!pass",
		Phone:      "999-888 7777",
		Role:       domain.RoleDonor,
		BloodGroup: group,
		Latitude:   &lat,
		Longitude:  &lon,
		City:       "Pune",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return user, token
}

func TestRegisterCreatesDonorProfile(t *testing.T) {
	a := newTestApp(t)

	user, token, err := a.Register(RegisterInput{
		Name:       "  Asha Rao  ",
		Email:      "Asha@Example.COM",
		Password:   "Str0ng!pass",
		Phone:      "98765-43210",
		Role:       domain.RoleDonor,
		BloodGroup: domain.OPos,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Email != "asha@example.com" {
		t.Fatalf("email not normalized: %q", user.Email)
	}
	if user.Name != "Asha Rao" {
		t.Fatalf("name not trimmed: %q", user.Name)
	}
	if user.Phone != "9876543210" {
		t.Fatalf("phone not normalized: %q", user.Phone)
	}
	if token == "" {
		t.Fatal("expected a session token")
	}

	donor, ok, err := a.DonorProfile(user.ID)
	if err != nil || !ok {
		t.Fatalf("donor profile: ok=%v err=%v", ok, err)
	}
	if !donor.IsAvailable {
		t.Fatal("new donor should start available")
	}
	if donor.Location != nil {
		t.Fatal("donor without coordinates should have nil location")
	}
}

func TestRegisterValidation(t *testing.T) {
	a := newTestApp(t)

	cases := []struct {
		name string
		in   RegisterInput
	}{
		{"missing fields", RegisterInput{Name: "x", Email: "x@y.z"}},
		{"weak password", RegisterInput{Name: "x", Email: "x@y.z", Phone: "1234567890", Password: "short", Role: domain.RoleSeeker}},
		{"bad phone", RegisterInput{Name: "x", Email: "x@y.z", Phone: "12345", Password: "Str0ng!pass", Role: domain.RoleSeeker}},
		{"admin role", RegisterInput{Name: "x", Email: "x@y.z", Phone: "1234567890", Password: "Str0ng!pass", Role: domain.RoleAdmin}},
		{"donor without group", RegisterInput{Name: "x", Email: "x@y.z", Phone: "1234567890", Password: "Str0ng!pass", Role: domain.RoleDonor}},
	}
	for _, tc := range cases {
		if _, _, err := a.Register(tc.in); !errors.Is(err, ErrValidation) {
			t.Errorf("%s: want ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	a := newTestApp(t)
	registerDonor(t, a, "dup@example.com", domain.APos, 0, 0)

	_, _, err := a.Register(RegisterInput{
		Name: "Again", Email: "DUP@example.com", Password: "Str0ng!pass",
		Phone: "1234567890", Role: domain.RoleSeeker,
	})
	if !errors.Is(err, ErrEmailExists) {
		t.Fatalf("want ErrEmailExists, got %v", err)
	}
}

func TestLoginAndSessions(t *testing.T) {
	a := newTestApp(t)
	user, _ := registerDonor(t, a, "login@example.com", domain.BNeg, 10, 20)

	got, token, err := a.Login("Login@Example.com", "Str0ng!pass")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got.ID != user.ID {
		t.Fatalf("login returned wrong user: %s != %s", got.ID, user.ID)
	}

	resolved, ok := a.UserFromToken(token)
	if !ok || resolved.ID != user.ID {
		t.Fatalf("token did not resolve: ok=%v", ok)
	}

	if err := a.Logout(token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := a.UserFromToken(token); ok {
		t.Fatal("token should be invalid after logout")
	}

	if _, _, err := a.Login("login@example.com", "WrongPass1!"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("want ErrInvalidCredentials, got %v", err)
	}
	if _, _, err := a.Login("nobody@example.com", "Str0ng!pass"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: want ErrInvalidCredentials, got %v", err)
	}
}

func TestUpdateDonorOwnership(t *testing.T) {
	a := newTestApp(t)
	owner, _ := registerDonor(t, a, "owner@example.com", domain.ONeg, 1, 1)
	other, _ := registerDonor(t, a, "other@example.com", domain.ONeg, 2, 2)

	donor, ok, err := a.DonorProfile(owner.ID)
	if err != nil || !ok {
		t.Fatalf("donor profile: ok=%v err=%v", ok, err)
	}

	city := "Mumbai"
	if _, err := a.UpdateDonor(other, donor.ID, DonorUpdate{City: &city}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner update: want ErrForbidden, got %v", err)
	}

	updated, err := a.UpdateDonor(owner, donor.ID, DonorUpdate{City: &city})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.City != "Mumbai" {
		t.Fatalf("city not updated: %q", updated.City)
	}

	bad := domain.BloodGroup("Z+")
	if _, err := a.UpdateDonor(owner, donor.ID, DonorUpdate{BloodGroup: &bad}); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad group: want ErrValidation, got %v", err)
	}
}

func TestSetDonorAvailabilityToggles(t *testing.T) {
	a := newTestApp(t)
	owner, _ := registerDonor(t, a, "avail@example.com", domain.ABPos, 1, 1)
	donor, _, _ := a.store.GetDonorByUserID(owner.ID)

	off := false
	got, err := a.SetDonorAvailability(owner, donor.ID, &off)
	if err != nil {
		t.Fatalf("set availability: %v", err)
	}
	if got.IsAvailable {
		t.Fatal("expected unavailable")
	}

	got, err = a.SetDonorAvailability(owner, donor.ID, nil)
	if err != nil {
		t.Fatalf("toggle availability: %v", err)
	}
	if !got.IsAvailable {
		t.Fatal("toggle should flip back to available")
	}
}

func TestCreateAndUpdateRequest(t *testing.T) {
	a := newTestApp(t)
	seeker, _, err := a.Register(RegisterInput{
		Name: "Seek", Email: "seek@example.com", Password: "Str0ng!pass",
		Phone: "1234567890", Role: domain.RoleSeeker,
	})
	if err != nil {
		t.Fatalf("register seeker: %v", err)
	}

	req, err := a.CreateRequest(context.Background(), seeker, RequestInput{
		BloodGroup: domain.ONeg,
		Location:   "City Hospital",
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if req.Status != domain.RequestActive {
		t.Fatalf("new request status = %q", req.Status)
	}
	if req.Urgency != domain.UrgencyNormal {
		t.Fatalf("default urgency = %q", req.Urgency)
	}

	other, _ := registerDonor(t, a, "intruder@example.com", domain.APos, 0, 0)
	fulfilled := domain.RequestFulfilled
	if _, err := a.UpdateRequest(other, req.ID, RequestUpdate{Status: &fulfilled}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("non-owner update: want ErrForbidden, got %v", err)
	}

	updated, err := a.UpdateRequest(seeker, req.ID, RequestUpdate{Status: &fulfilled})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Status != domain.RequestFulfilled {
		t.Fatalf("status = %q", updated.Status)
	}

	bad := domain.RequestStatus("done")
	if _, err := a.UpdateRequest(seeker, req.ID, RequestUpdate{Status: &bad}); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad status: want ErrValidation, got %v", err)
	}

	if _, err := a.CreateRequest(context.Background(), seeker, RequestInput{BloodGroup: "Z-"}); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad group: want ErrValidation, got %v", err)
	}
}

// recordingQueue captures enqueued request IDs.
type recordingQueue struct {
	ids []string
	err error
}

func (q *recordingQueue) EnqueueRequestAlert(_ context.Context, requestID string) error {
	if q.err != nil {
		return q.err
	}
	q.ids = append(q.ids, requestID)
	return nil
}

func TestCreateRequestEnqueuesAlert(t *testing.T) {
	queue := &recordingQueue{}
	a, err := New(Config{
		Store:    store.NewMemoryStore(),
		Sessions: newStubSessions(),
		Geocoder: &stubGeocoder{},
		Alerts:   queue,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	seeker, _, err := a.Register(RegisterInput{
		Name: "Seek", Email: "seek@example.com", Password: "Str0ng!pass",
		Phone: "1234567890", Role: domain.RoleSeeker,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	req, err := a.CreateRequest(context.Background(), seeker, RequestInput{BloodGroup: domain.APos, Urgency: domain.UrgencyCritical})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	if len(queue.ids) != 1 || queue.ids[0] != req.ID {
		t.Fatalf("enqueued ids = %v, want [%s]", queue.ids, req.ID)
	}

	// An alert failure must not fail the request itself.
	queue.err = errors.New("redis down")
	if _, err := a.CreateRequest(context.Background(), seeker, RequestInput{BloodGroup: domain.APos}); err != nil {
		t.Fatalf("create request with failing queue: %v", err)
	}
}

func TestReportsModeration(t *testing.T) {
	a := newTestApp(t)
	reporter, _ := registerDonor(t, a, "reporter@example.com", domain.APos, 0, 0)
	reported, _ := registerDonor(t, a, "reported@example.com", domain.BPos, 0, 0)

	report, err := a.CreateReport(reporter, reported.ID, "spam messages")
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	if report.Status != domain.ReportPending {
		t.Fatalf("new report status = %q", report.Status)
	}

	if _, err := a.CreateReport(reporter, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown target: want ErrNotFound, got %v", err)
	}

	updated, err := a.UpdateReport(report.ID, domain.ReportResolved)
	if err != nil {
		t.Fatalf("update report: %v", err)
	}
	if updated.Status != domain.ReportResolved {
		t.Fatalf("status = %q", updated.Status)
	}
	if _, err := a.UpdateReport(report.ID, "garbage"); !errors.Is(err, ErrValidation) {
		t.Fatalf("bad status: want ErrValidation, got %v", err)
	}

	page, err := a.ListReports(domain.ReportResolved, 1)
	if err != nil {
		t.Fatalf("list reports: %v", err)
	}
	if page.Total != 1 || len(page.Reports) != 1 {
		t.Fatalf("resolved page: total=%d len=%d", page.Total, len(page.Reports))
	}
	if page.Reports[0].ReportedUserName == "" {
		t.Fatal("report should carry the reported user's name")
	}
}

func TestAdminUserManagement(t *testing.T) {
	a := newTestApp(t)
	if err := a.EnsureAdmin("Admin", "admin@example.com", "Adm1n!pass"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}
	// A second call is a no-op once an admin exists.
	if err := a.EnsureAdmin("Admin2", "admin2@example.com", "Adm1n!pass"); err != nil {
		t.Fatalf("ensure admin again: %v", err)
	}

	donor, _ := registerDonor(t, a, "member@example.com", domain.OPos, 0, 0)

	page, err := a.ListUsers("", 1)
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("admins must be excluded from listings, total=%d", page.Total)
	}

	verified, err := a.VerifyUser(donor.ID)
	if err != nil {
		t.Fatalf("verify user: %v", err)
	}
	if !verified.IsVerified {
		t.Fatal("user should be verified")
	}

	name := "Renamed"
	updated, err := a.UpdateUser(donor.ID, UserUpdate{Name: &name})
	if err != nil {
		t.Fatalf("update user: %v", err)
	}
	if updated.Name != "Renamed" {
		t.Fatalf("name = %q", updated.Name)
	}

	admin, _, err := a.store.GetUserByEmail("admin@example.com")
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}
	if err := a.DeleteUser(admin.ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("deleting admin: want ErrForbidden, got %v", err)
	}

	if err := a.DeleteUser(donor.ID); err != nil {
		t.Fatalf("delete user: %v", err)
	}
	if err := a.DeleteUser(donor.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("delete again: want ErrNotFound, got %v", err)
	}
}
