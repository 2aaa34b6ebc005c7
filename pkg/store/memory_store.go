package store

import (
	"sort"
	"sync"

	"bloodlink/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs handler and app
// tests and implements the same denormalization the SQL joins provide.
type MemoryStore struct {
	mu          sync.RWMutex
	users       map[string]domain.User
	email       map[string]string // email -> user ID
	donors      map[string]domain.Donor
	donorOrder  []string
	requests    map[string]domain.BloodRequest
	reports     map[string]domain.Report
	reportOrder []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		email:    make(map[string]string),
		donors:   make(map[string]domain.Donor),
		requests: make(map[string]domain.BloodRequest),
		reports:  make(map[string]domain.Report),
	}
}

// SaveUser registers or updates a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.users[u.ID]; ok && prev.Email != u.Email {
		delete(m.email, prev.Email)
	}
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// DeleteUser removes the user and everything they own.
func (m *MemoryStore) DeleteUser(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil
	}
	delete(m.users, id)
	delete(m.email, user.Email)
	for donorID, d := range m.donors {
		if d.UserID == id {
			delete(m.donors, donorID)
			m.donorOrder = remove(m.donorOrder, donorID)
		}
	}
	for reqID, r := range m.requests {
		if r.RequesterID == id {
			delete(m.requests, reqID)
		}
	}
	for repID, r := range m.reports {
		if r.ReporterID == id {
			delete(m.reports, repID)
			m.reportOrder = remove(m.reportOrder, repID)
		}
	}
	return nil
}

// ListUsersByRole pages through donor and seeker accounts.
func (m *MemoryStore) ListUsersByRole(role domain.UserRole, page int) ([]domain.User, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		if u.Role == domain.RoleAdmin {
			continue
		}
		if role != "" && u.Role != role {
			continue
		}
		matched = append(matched, u)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	total := int64(len(matched))
	return paginate(matched, page), total, nil
}

// CountAdmins returns the number of admin accounts.
func (m *MemoryStore) CountAdmins() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, u := range m.users {
		if u.Role == domain.RoleAdmin {
			count++
		}
	}
	return count, nil
}

// SaveDonor stores or updates a donor profile.
func (m *MemoryStore) SaveDonor(d domain.Donor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.donors[d.ID]; !exists {
		m.donorOrder = append(m.donorOrder, d.ID)
	}
	m.donors[d.ID] = d
	return nil
}

// GetDonor retrieves a donor with owner details.
func (m *MemoryStore) GetDonor(id string) (domain.Donor, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.donors[id]
	if !ok {
		return domain.Donor{}, false, nil
	}
	return m.denormalizeDonor(d), true, nil
}

// GetDonorByUserID retrieves the donor profile owned by a user.
func (m *MemoryStore) GetDonorByUserID(userID string) (domain.Donor, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.donorOrder {
		if d, ok := m.donors[id]; ok && d.UserID == userID {
			return m.denormalizeDonor(d), true, nil
		}
	}
	return domain.Donor{}, false, nil
}

// ListDonors pages through available donors with optional filters.
func (m *MemoryStore) ListDonors(f DonorFilter) ([]domain.Donor, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]domain.Donor, 0, len(m.donorOrder))
	for _, id := range m.donorOrder {
		d, ok := m.donors[id]
		if !ok || !d.IsAvailable {
			continue
		}
		if f.BloodGroup != "" && d.BloodGroup != f.BloodGroup {
			continue
		}
		if f.City != "" && d.City != f.City {
			continue
		}
		matched = append(matched, m.denormalizeDonor(d))
	}
	total := int64(len(matched))
	return paginate(matched, f.Page), total, nil
}

// AvailableDonors returns match candidates for a blood group.
func (m *MemoryStore) AvailableDonors(group domain.BloodGroup) ([]domain.Donor, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Donor, 0, len(m.donorOrder))
	for _, id := range m.donorOrder {
		d, ok := m.donors[id]
		if !ok || !d.IsAvailable {
			continue
		}
		if group != "" && d.BloodGroup != group {
			continue
		}
		res = append(res, m.denormalizeDonor(d))
	}
	return res, nil
}

// SaveRequest stores or updates a blood request.
func (m *MemoryStore) SaveRequest(r domain.BloodRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[r.ID] = r
	return nil
}

// GetRequest retrieves a blood request with requester details.
func (m *MemoryStore) GetRequest(id string) (domain.BloodRequest, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.requests[id]
	if !ok {
		return domain.BloodRequest{}, false, nil
	}
	if u, found := m.users[r.RequesterID]; found {
		r.RequesterName = u.Name
		r.RequesterPhone = u.Phone
	}
	return r, true, nil
}

// SaveReport stores or updates an abuse report.
func (m *MemoryStore) SaveReport(r domain.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.reports[r.ID]; !exists {
		m.reportOrder = append(m.reportOrder, r.ID)
	}
	m.reports[r.ID] = r
	return nil
}

// GetReport retrieves a report.
func (m *MemoryStore) GetReport(id string) (domain.Report, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[id]
	if !ok {
		return domain.Report{}, false, nil
	}
	return m.denormalizeReport(r), true, nil
}

// ListReports pages through reports with an optional status filter.
func (m *MemoryStore) ListReports(status domain.ReportStatus, page int) ([]domain.Report, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	matched := make([]domain.Report, 0, len(m.reportOrder))
	for _, id := range m.reportOrder {
		r, ok := m.reports[id]
		if !ok {
			continue
		}
		if status != "" && r.Status != status {
			continue
		}
		matched = append(matched, m.denormalizeReport(r))
	}
	total := int64(len(matched))
	return paginate(matched, page), total, nil
}

// denormalizeDonor merges owner fields. Callers hold at least a read lock.
func (m *MemoryStore) denormalizeDonor(d domain.Donor) domain.Donor {
	if u, ok := m.users[d.UserID]; ok {
		d.Name = u.Name
		d.Email = u.Email
		d.Phone = u.Phone
		d.IsVerified = u.IsVerified
	}
	return d
}

func (m *MemoryStore) denormalizeReport(r domain.Report) domain.Report {
	if u, ok := m.users[r.ReportedUserID]; ok {
		r.ReportedUserName = u.Name
	}
	return r
}

func paginate[T any](items []T, page int) []T {
	start := pageOffset(page)
	if start >= len(items) {
		return []T{}
	}
	end := start + PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func remove(items []string, target string) []string {
	filtered := items[:0]
	for _, item := range items {
		if item != target {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
