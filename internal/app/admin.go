package app

import (
	"fmt"
	"strings"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/store"
)

// UserPage is one page of accounts plus paging metadata.
type UserPage struct {
	Users      []domain.User `json:"users"`
	Total      int64         `json:"total"`
	Page       int           `json:"page"`
	TotalPages int           `json:"total_pages"`
}

// ListUsers pages through donor and seeker accounts. Admin accounts are
// never listed. An empty role returns both.
func (a *App) ListUsers(role domain.UserRole, page int) (UserPage, error) {
	switch role {
	case "", domain.RoleDonor, domain.RoleSeeker:
	default:
		return UserPage{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}
	if page < 1 {
		page = 1
	}
	users, total, err := a.store.ListUsersByRole(role, page)
	if err != nil {
		return UserPage{}, fmt.Errorf("list users: %w", err)
	}
	return UserPage{Users: users, Total: total, Page: page, TotalPages: store.Pages(total)}, nil
}

// UserUpdate carries a partial account update by an admin.
type UserUpdate struct {
	Name       *string
	Email      *string
	IsVerified *bool
}

// UpdateUser applies a partial admin edit to an account.
func (a *App) UpdateUser(id string, update UserUpdate) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}

	if update.Name != nil {
		user.Name = strings.TrimSpace(*update.Name)
	}
	if update.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*update.Email))
		if email != user.Email {
			exists, err := a.store.HasUserEmail(email)
			if err != nil {
				return domain.User{}, fmt.Errorf("check email: %w", err)
			}
			if exists {
				return domain.User{}, ErrEmailExists
			}
			user.Email = email
		}
	}
	if update.IsVerified != nil {
		user.IsVerified = *update.IsVerified
	}

	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return user, nil
}

// DeleteUser removes an account and everything it owns. Admin accounts
// cannot be deleted through this path.
func (a *App) DeleteUser(id string) error {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if user.Role == domain.RoleAdmin {
		return ErrForbidden
	}
	if err := a.store.DeleteUser(id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

// VerifyUser marks an account as identity-verified.
func (a *App) VerifyUser(id string) (domain.User, error) {
	verified := true
	return a.UpdateUser(id, UserUpdate{IsVerified: &verified})
}

// ReportPage is one page of abuse reports plus paging metadata.
type ReportPage struct {
	Reports    []domain.Report `json:"reports"`
	Total      int64           `json:"total"`
	Page       int             `json:"page"`
	TotalPages int             `json:"total_pages"`
}

// ListReports pages through abuse reports, optionally filtered by
// status.
func (a *App) ListReports(status domain.ReportStatus, page int) (ReportPage, error) {
	switch status {
	case "", domain.ReportPending, domain.ReportReviewed, domain.ReportResolved:
	default:
		return ReportPage{}, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	if page < 1 {
		page = 1
	}
	reports, total, err := a.store.ListReports(status, page)
	if err != nil {
		return ReportPage{}, fmt.Errorf("list reports: %w", err)
	}
	return ReportPage{Reports: reports, Total: total, Page: page, TotalPages: store.Pages(total)}, nil
}

// UpdateReport moves a report through the moderation workflow.
func (a *App) UpdateReport(id string, status domain.ReportStatus) (domain.Report, error) {
	switch status {
	case domain.ReportPending, domain.ReportReviewed, domain.ReportResolved:
	default:
		return domain.Report{}, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}
	report, ok, err := a.store.GetReport(id)
	if err != nil {
		return domain.Report{}, fmt.Errorf("get report: %w", err)
	}
	if !ok {
		return domain.Report{}, ErrNotFound
	}
	report.Status = status
	if err := a.store.SaveReport(report); err != nil {
		return domain.Report{}, fmt.Errorf("save report: %w", err)
	}
	return report, nil
}
