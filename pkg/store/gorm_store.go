package store

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"bloodlink/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &DonorModel{}, &BloodRequestModel{}, &ReportModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "email", "password_hash", "phone", "role", "gender", "age", "is_verified"}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// DeleteUser removes the user and everything they own.
func (s *GormStore) DeleteUser(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&DonorModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&BloodRequestModel{}, "requester_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ReportModel{}, "reporter_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&UserModel{}, "id = ?", id).Error
	})
}

// ListUsersByRole pages through donor and seeker accounts.
func (s *GormStore) ListUsersByRole(role domain.UserRole, page int) ([]domain.User, int64, error) {
	tx := s.db.Model(&UserModel{}).Where("role IN ?", []string{string(domain.RoleDonor), string(domain.RoleSeeker)})
	if role != "" {
		tx = tx.Where("role = ?", string(role))
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var models []UserModel
	if err := tx.Order("created_at ASC").Offset(pageOffset(page)).Limit(PageSize).Find(&models).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, total, nil
}

// CountAdmins returns the number of admin accounts.
func (s *GormStore) CountAdmins() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("role = ?", string(domain.RoleAdmin)).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// SaveDonor stores or updates a donor profile.
func (s *GormStore) SaveDonor(d domain.Donor) error {
	model := donorToModel(d)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"blood_group", "latitude", "longitude", "address", "city", "is_available", "last_donation_date", "donation_count"}),
	}).Create(&model).Error
}

// donorRow carries a donor joined with its owning user.
type donorRow struct {
	DonorModel
	UserName     string
	UserEmail    string
	UserPhone    string
	UserVerified bool
}

func (s *GormStore) donorQuery() *gorm.DB {
	return s.db.Model(&DonorModel{}).
		Select("donor_models.*, user_models.name AS user_name, user_models.email AS user_email, user_models.phone AS user_phone, user_models.is_verified AS user_verified").
		Joins("JOIN user_models ON user_models.id = donor_models.user_id")
}

// GetDonor retrieves a donor with owner details.
func (s *GormStore) GetDonor(id string) (domain.Donor, bool, error) {
	var row donorRow
	if err := s.donorQuery().Where("donor_models.id = ?", id).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Donor{}, false, nil
		}
		return domain.Donor{}, false, err
	}
	return donorFromRow(row), true, nil
}

// GetDonorByUserID retrieves the donor profile owned by a user.
func (s *GormStore) GetDonorByUserID(userID string) (domain.Donor, bool, error) {
	var row donorRow
	if err := s.donorQuery().Where("donor_models.user_id = ?", userID).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Donor{}, false, nil
		}
		return domain.Donor{}, false, err
	}
	return donorFromRow(row), true, nil
}

// ListDonors pages through available donors with optional filters.
func (s *GormStore) ListDonors(f DonorFilter) ([]domain.Donor, int64, error) {
	tx := s.donorQuery().Where("donor_models.is_available = ?", true)
	if f.BloodGroup != "" {
		tx = tx.Where("donor_models.blood_group = ?", string(f.BloodGroup))
	}
	if f.City != "" {
		tx = tx.Where("donor_models.city = ?", f.City)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []donorRow
	if err := tx.Order("donor_models.id ASC").Offset(pageOffset(f.Page)).Limit(PageSize).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return donorsFromRows(rows), total, nil
}

// AvailableDonors returns match candidates for a blood group.
func (s *GormStore) AvailableDonors(group domain.BloodGroup) ([]domain.Donor, error) {
	tx := s.donorQuery().Where("donor_models.is_available = ?", true)
	if group != "" {
		tx = tx.Where("donor_models.blood_group = ?", string(group))
	}
	var rows []donorRow
	if err := tx.Order("donor_models.id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return donorsFromRows(rows), nil
}

// SaveRequest stores or updates a blood request.
func (s *GormStore) SaveRequest(r domain.BloodRequest) error {
	model := requestToModel(r)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"urgency_level", "status"}),
	}).Create(&model).Error
}

// requestRow carries a request joined with its requester.
type requestRow struct {
	BloodRequestModel
	RequesterName  string
	RequesterPhone string
}

// GetRequest retrieves a blood request with requester details.
func (s *GormStore) GetRequest(id string) (domain.BloodRequest, bool, error) {
	var row requestRow
	err := s.db.Model(&BloodRequestModel{}).
		Select("blood_request_models.*, user_models.name AS requester_name, user_models.phone AS requester_phone").
		Joins("JOIN user_models ON user_models.id = blood_request_models.requester_id").
		Where("blood_request_models.id = ?", id).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.BloodRequest{}, false, nil
		}
		return domain.BloodRequest{}, false, err
	}
	return requestFromRow(row), true, nil
}

// SaveReport stores or updates an abuse report.
func (s *GormStore) SaveReport(r domain.Report) error {
	model := reportToModel(r)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status"}),
	}).Create(&model).Error
}

// reportRow carries a report joined with the reported user.
type reportRow struct {
	ReportModel
	ReportedUserName string
}

func (s *GormStore) reportQuery() *gorm.DB {
	return s.db.Model(&ReportModel{}).
		Select("report_models.*, user_models.name AS reported_user_name").
		Joins("LEFT JOIN user_models ON user_models.id = report_models.reported_user_id")
}

// GetReport retrieves a report.
func (s *GormStore) GetReport(id string) (domain.Report, bool, error) {
	var row reportRow
	if err := s.reportQuery().Where("report_models.id = ?", id).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Report{}, false, nil
		}
		return domain.Report{}, false, err
	}
	return reportFromRow(row), true, nil
}

// ListReports pages through reports with an optional status filter.
func (s *GormStore) ListReports(status domain.ReportStatus, page int) ([]domain.Report, int64, error) {
	tx := s.reportQuery()
	if status != "" {
		tx = tx.Where("report_models.status = ?", string(status))
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []reportRow
	if err := tx.Order("report_models.created_at ASC").Offset(pageOffset(page)).Limit(PageSize).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	res := make([]domain.Report, 0, len(rows))
	for _, row := range rows {
		res = append(res, reportFromRow(row))
	}
	return res, total, nil
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		Phone:        u.Phone,
		Role:         string(u.Role),
		Gender:       u.Gender,
		Age:          u.Age,
		IsVerified:   u.IsVerified,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Phone:        m.Phone,
		Role:         domain.UserRole(m.Role),
		Gender:       m.Gender,
		Age:          m.Age,
		IsVerified:   m.IsVerified,
		CreatedAt:    m.CreatedAt,
	}
}

func donorToModel(d domain.Donor) DonorModel {
	model := DonorModel{
		ID:            d.ID,
		UserID:        d.UserID,
		BloodGroup:    string(d.BloodGroup),
		Address:       d.Address,
		City:          d.City,
		IsAvailable:   d.IsAvailable,
		DonationCount: d.DonationCount,
	}
	if d.Location != nil {
		lat, lon := d.Location.Latitude, d.Location.Longitude
		model.Latitude, model.Longitude = &lat, &lon
	}
	if d.LastDonationDate != nil {
		date := datatypes.Date(*d.LastDonationDate)
		model.LastDonationDate = &date
	}
	return model
}

func donorFromRow(row donorRow) domain.Donor {
	d := domain.Donor{
		ID:            row.ID,
		UserID:        row.UserID,
		BloodGroup:    domain.BloodGroup(row.BloodGroup),
		Address:       row.Address,
		City:          row.City,
		IsAvailable:   row.IsAvailable,
		DonationCount: row.DonationCount,
		Name:          row.UserName,
		Email:         row.UserEmail,
		Phone:         row.UserPhone,
		IsVerified:    row.UserVerified,
	}
	if row.Latitude != nil && row.Longitude != nil {
		d.Location = &domain.Coordinates{Latitude: *row.Latitude, Longitude: *row.Longitude}
	}
	if row.LastDonationDate != nil {
		date := time.Time(*row.LastDonationDate)
		d.LastDonationDate = &date
	}
	return d
}

func donorsFromRows(rows []donorRow) []domain.Donor {
	res := make([]domain.Donor, 0, len(rows))
	for _, row := range rows {
		res = append(res, donorFromRow(row))
	}
	return res
}

func requestToModel(r domain.BloodRequest) BloodRequestModel {
	model := BloodRequestModel{
		ID:           r.ID,
		RequesterID:  r.RequesterID,
		BloodGroup:   string(r.BloodGroup),
		UrgencyLevel: string(r.Urgency),
		Location:     r.Location,
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt,
	}
	if r.Coordinates != nil {
		lat, lon := r.Coordinates.Latitude, r.Coordinates.Longitude
		model.Latitude, model.Longitude = &lat, &lon
	}
	return model
}

func requestFromRow(row requestRow) domain.BloodRequest {
	r := domain.BloodRequest{
		ID:             row.ID,
		RequesterID:    row.RequesterID,
		BloodGroup:     domain.BloodGroup(row.BloodGroup),
		Urgency:        domain.RequestUrgency(row.UrgencyLevel),
		Location:       row.Location,
		Status:         domain.RequestStatus(row.Status),
		CreatedAt:      row.CreatedAt,
		RequesterName:  row.RequesterName,
		RequesterPhone: row.RequesterPhone,
	}
	if row.Latitude != nil && row.Longitude != nil {
		r.Coordinates = &domain.Coordinates{Latitude: *row.Latitude, Longitude: *row.Longitude}
	}
	return r
}

func reportToModel(r domain.Report) ReportModel {
	return ReportModel{
		ID:             r.ID,
		ReporterID:     r.ReporterID,
		ReportedUserID: r.ReportedUserID,
		Reason:         r.Reason,
		Status:         string(r.Status),
		CreatedAt:      r.CreatedAt,
	}
}

func reportFromRow(row reportRow) domain.Report {
	return domain.Report{
		ID:               row.ID,
		ReporterID:       row.ReporterID,
		ReportedUserID:   row.ReportedUserID,
		Reason:           row.Reason,
		Status:           domain.ReportStatus(row.Status),
		CreatedAt:        row.CreatedAt,
		ReportedUserName: row.ReportedUserName,
	}
}
