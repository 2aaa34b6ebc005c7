package store

import "bloodlink/pkg/domain"

// PageSize is the fixed page size for paginated listings.
const PageSize = 10

// DonorFilter narrows donor listings. Zero-value fields are ignored.
type DonorFilter struct {
	BloodGroup domain.BloodGroup
	City       string
	Page       int
}

// Store defines persistence operations for users, donors, blood
// requests, and abuse reports. Listing methods return the total row
// count alongside one page of results.
type Store interface {
	// users
	SaveUser(domain.User) error
	HasUserEmail(email string) (bool, error)
	GetUserByEmail(email string) (domain.User, bool, error)
	GetUserByID(id string) (domain.User, bool, error)
	// DeleteUser removes the user and cascades to their donor
	// profile, blood requests, and filed reports.
	DeleteUser(id string) error
	// ListUsersByRole pages through donor/seeker accounts; admins are
	// never included. An empty role returns both.
	ListUsersByRole(role domain.UserRole, page int) ([]domain.User, int64, error)
	CountAdmins() (int, error)

	// donors
	SaveDonor(domain.Donor) error
	GetDonor(id string) (domain.Donor, bool, error)
	GetDonorByUserID(userID string) (domain.Donor, bool, error)
	ListDonors(f DonorFilter) ([]domain.Donor, int64, error)
	// AvailableDonors returns available donors with the exact blood
	// group, or all available donors when group is empty. Records are
	// denormalized with the owning user's name, contact details, and
	// verification flag.
	AvailableDonors(group domain.BloodGroup) ([]domain.Donor, error)

	// blood requests
	SaveRequest(domain.BloodRequest) error
	GetRequest(id string) (domain.BloodRequest, bool, error)

	// reports
	SaveReport(domain.Report) error
	GetReport(id string) (domain.Report, bool, error)
	ListReports(status domain.ReportStatus, page int) ([]domain.Report, int64, error)
}

// SessionStore persists session tokens.
type SessionStore interface {
	NewSession(userID string) (string, error)
	GetUserIDByToken(token string) (string, bool, error)
	DeleteSession(token string) error
}

// Pages converts a total row count to a page count at PageSize.
func Pages(total int64) int {
	return int((total + PageSize - 1) / PageSize)
}

func pageOffset(page int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * PageSize
}
