package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           string `gorm:"primaryKey"`
	Name         string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Phone        string `gorm:"not null"`
	Role         string `gorm:"not null;index"`
	Gender       string
	Age          int
	IsVerified   bool      `gorm:"not null;default:false"`
	CreatedAt    time.Time `gorm:"not null"`
}

type DonorModel struct {
	ID               string `gorm:"primaryKey"`
	UserID           string `gorm:"not null;uniqueIndex"`
	BloodGroup       string `gorm:"not null;index"`
	Latitude         *float64
	Longitude        *float64
	Address          string `gorm:"type:text"`
	City             string `gorm:"index"`
	IsAvailable      bool `gorm:"not null;default:true;index"`
	LastDonationDate *datatypes.Date
	DonationCount    int `gorm:"not null;default:0"`
}

type BloodRequestModel struct {
	ID           string `gorm:"primaryKey"`
	RequesterID  string `gorm:"not null;index"`
	BloodGroup   string `gorm:"not null"`
	UrgencyLevel string `gorm:"not null"`
	Location     string `gorm:"type:text"`
	Latitude     *float64
	Longitude    *float64
	Status       string    `gorm:"not null;index"`
	CreatedAt    time.Time `gorm:"not null"`
}

type ReportModel struct {
	ID             string `gorm:"primaryKey"`
	ReporterID     string `gorm:"not null;index"`
	ReportedUserID string `gorm:"not null;index"`
	Reason         string `gorm:"type:text"`
	Status         string    `gorm:"not null;index"`
	CreatedAt      time.Time `gorm:"not null"`
}
