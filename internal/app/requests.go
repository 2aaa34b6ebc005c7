package app

import (
	"context"
	"fmt"
	"time"

	"bloodlink/internal/util"
	"bloodlink/pkg/domain"
)

// RequestInput carries a new blood request.
type RequestInput struct {
	BloodGroup domain.BloodGroup
	Urgency    domain.RequestUrgency
	Location   string
	Latitude   *float64
	Longitude  *float64
}

// CreateRequest records a blood request and enqueues a donor alert job.
func (a *App) CreateRequest(ctx context.Context, actor domain.User, in RequestInput) (domain.BloodRequest, error) {
	if !in.BloodGroup.Valid() {
		return domain.BloodRequest{}, fmt.Errorf("%w: unknown blood group %q", ErrValidation, in.BloodGroup)
	}
	urgency := in.Urgency
	if urgency == "" {
		urgency = domain.UrgencyNormal
	}
	switch urgency {
	case domain.UrgencyCritical, domain.UrgencyUrgent, domain.UrgencyNormal:
	default:
		return domain.BloodRequest{}, fmt.Errorf("%w: unknown urgency level %q", ErrValidation, urgency)
	}

	request := domain.BloodRequest{
		ID:          util.NewID(),
		RequesterID: actor.ID,
		BloodGroup:  in.BloodGroup,
		Urgency:     urgency,
		Location:    in.Location,
		Status:      domain.RequestActive,
		CreatedAt:   time.Now().UTC(),
	}
	if in.Latitude != nil && in.Longitude != nil {
		request.Coordinates = &domain.Coordinates{Latitude: *in.Latitude, Longitude: *in.Longitude}
	}
	if err := a.store.SaveRequest(request); err != nil {
		return domain.BloodRequest{}, fmt.Errorf("save request: %w", err)
	}

	if a.alerts != nil {
		if err := a.alerts.EnqueueRequestAlert(ctx, request.ID); err != nil {
			// Alerting is best-effort; the request itself succeeded.
			util.LoggerFromContext(ctx).Warn("enqueue donor alert failed",
				"request_id", request.ID, "err", err)
		}
	}

	request.RequesterName = actor.Name
	request.RequesterPhone = actor.Phone
	return request, nil
}

// GetRequest retrieves a blood request by ID.
func (a *App) GetRequest(id string) (domain.BloodRequest, error) {
	request, ok, err := a.store.GetRequest(id)
	if err != nil {
		return domain.BloodRequest{}, fmt.Errorf("get request: %w", err)
	}
	if !ok {
		return domain.BloodRequest{}, ErrNotFound
	}
	return request, nil
}

// RequestUpdate carries a partial blood request update. Only status
// and urgency may change after creation.
type RequestUpdate struct {
	Status  *domain.RequestStatus
	Urgency *domain.RequestUrgency
}

// UpdateRequest applies a partial update. Only the requester may
// update their request.
func (a *App) UpdateRequest(actor domain.User, id string, update RequestUpdate) (domain.BloodRequest, error) {
	request, ok, err := a.store.GetRequest(id)
	if err != nil {
		return domain.BloodRequest{}, fmt.Errorf("get request: %w", err)
	}
	if !ok || request.RequesterID != actor.ID {
		return domain.BloodRequest{}, ErrForbidden
	}

	if update.Status != nil {
		switch *update.Status {
		case domain.RequestActive, domain.RequestFulfilled, domain.RequestCancelled:
			request.Status = *update.Status
		default:
			return domain.BloodRequest{}, fmt.Errorf("%w: unknown status %q", ErrValidation, *update.Status)
		}
	}
	if update.Urgency != nil {
		switch *update.Urgency {
		case domain.UrgencyCritical, domain.UrgencyUrgent, domain.UrgencyNormal:
			request.Urgency = *update.Urgency
		default:
			return domain.BloodRequest{}, fmt.Errorf("%w: unknown urgency level %q", ErrValidation, *update.Urgency)
		}
	}

	if err := a.store.SaveRequest(request); err != nil {
		return domain.BloodRequest{}, fmt.Errorf("save request: %w", err)
	}
	return request, nil
}

// CreateReport files an abuse report against another user.
func (a *App) CreateReport(actor domain.User, reportedUserID, reason string) (domain.Report, error) {
	if reportedUserID == "" {
		return domain.Report{}, fmt.Errorf("%w: reported_user_id required", ErrValidation)
	}
	if _, ok, err := a.store.GetUserByID(reportedUserID); err != nil {
		return domain.Report{}, fmt.Errorf("get reported user: %w", err)
	} else if !ok {
		return domain.Report{}, ErrNotFound
	}

	report := domain.Report{
		ID:             util.NewID(),
		ReporterID:     actor.ID,
		ReportedUserID: reportedUserID,
		Reason:         reason,
		Status:         domain.ReportPending,
		CreatedAt:      time.Now().UTC(),
	}
	if err := a.store.SaveReport(report); err != nil {
		return domain.Report{}, fmt.Errorf("save report: %w", err)
	}
	return report, nil
}
