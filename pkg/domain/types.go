package domain

import "time"

type UserRole string

const (
	RoleDonor  UserRole = "donor"
	RoleSeeker UserRole = "seeker"
	RoleAdmin  UserRole = "admin"
)

// BloodGroup is one of the 8 canonical ABO/Rh combinations.
type BloodGroup string

const (
	OPos  BloodGroup = "O+"
	ONeg  BloodGroup = "O-"
	APos  BloodGroup = "A+"
	ANeg  BloodGroup = "A-"
	BPos  BloodGroup = "B+"
	BNeg  BloodGroup = "B-"
	ABPos BloodGroup = "AB+"
	ABNeg BloodGroup = "AB-"
)

// Groups lists the canonical blood groups.
var Groups = []BloodGroup{OPos, ONeg, APos, ANeg, BPos, BNeg, ABPos, ABNeg}

// Valid reports whether g is one of the canonical groups.
func (g BloodGroup) Valid() bool {
	for _, k := range Groups {
		if g == k {
			return true
		}
	}
	return false
}

type RequestUrgency string

const (
	UrgencyCritical RequestUrgency = "critical"
	UrgencyUrgent   RequestUrgency = "urgent"
	UrgencyNormal   RequestUrgency = "normal"
)

// Tier maps an urgency label to the 1-3 tier used by matching and
// scoring. Unknown labels fall back to the lowest tier.
func (u RequestUrgency) Tier() int {
	switch u {
	case UrgencyCritical:
		return 3
	case UrgencyUrgent:
		return 2
	default:
		return 1
	}
}

type RequestStatus string

const (
	RequestActive    RequestStatus = "active"
	RequestFulfilled RequestStatus = "fulfilled"
	RequestCancelled RequestStatus = "cancelled"
)

type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportReviewed ReportStatus = "reviewed"
	ReportResolved ReportStatus = "resolved"
)

type User struct {
	ID           string    `json:"user_id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone"`
	Role         UserRole  `json:"role"`
	Gender       string    `json:"gender,omitempty"`
	Age          int       `json:"age,omitempty"`
	IsVerified   bool      `json:"is_verified"`
	CreatedAt    time.Time `json:"created_at"`
}

// Coordinates is a WGS84 point in decimal degrees.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Donor is a donation profile owned by a user. Location stays nil until
// the donor provides one; a donor without coordinates never matches.
type Donor struct {
	ID               string       `json:"donor_id"`
	UserID           string       `json:"user_id"`
	BloodGroup       BloodGroup   `json:"blood_group"`
	Location         *Coordinates `json:"location,omitempty"`
	Address          string       `json:"address,omitempty"`
	City             string       `json:"city,omitempty"`
	IsAvailable      bool         `json:"is_available"`
	LastDonationDate *time.Time   `json:"last_donation_date,omitempty"`
	DonationCount    int          `json:"donation_count"`

	// Denormalized from the owning user for responses and scoring.
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	IsVerified bool   `json:"is_verified"`
}

type BloodRequest struct {
	ID          string         `json:"request_id"`
	RequesterID string         `json:"requester_id"`
	BloodGroup  BloodGroup     `json:"blood_group"`
	Urgency     RequestUrgency `json:"urgency_level"`
	Location    string         `json:"location,omitempty"`
	Coordinates *Coordinates   `json:"coordinates,omitempty"`
	Status      RequestStatus  `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`

	RequesterName  string `json:"requester_name,omitempty"`
	RequesterPhone string `json:"requester_phone,omitempty"`
}

type Report struct {
	ID             string       `json:"report_id"`
	ReporterID     string       `json:"reporter_id"`
	ReportedUserID string       `json:"reported_user_id"`
	Reason         string       `json:"reason,omitempty"`
	Status         ReportStatus `json:"status"`
	CreatedAt      time.Time    `json:"created_at"`

	ReportedUserName string `json:"reported_user_name,omitempty"`
}
