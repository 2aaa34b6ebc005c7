package app

import (
	"context"
	"fmt"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/match"
)

// SearchQuery is a donor search request after transport decoding.
// Coordinates may be absent when Location text is provided instead.
// A nil RadiusKm means the caller did not send one; an explicit
// non-positive radius is rejected rather than silently defaulted.
type SearchQuery struct {
	BloodGroup domain.BloodGroup
	Latitude   *float64
	Longitude  *float64
	Location   string
	RadiusKm   *float64
	Urgency    int
}

// SearchResult is the ranked outcome of a donor search.
type SearchResult struct {
	Donors []match.Candidate `json:"donors"`
	Count  int               `json:"count"`
}

// Search resolves the query point, finds compatible donors within the
// radius, and ranks them by AI score. Location text is geocoded only
// when explicit coordinates are absent; a query that resolves to no
// coordinates fails before any matching happens.
func (a *App) Search(ctx context.Context, q SearchQuery) (SearchResult, error) {
	lat, lon, err := a.resolveCoordinates(ctx, q.Latitude, q.Longitude, q.Location)
	if err != nil {
		return SearchResult{}, err
	}
	radius := float64(match.DefaultRadiusKm)
	if q.RadiusKm != nil {
		radius = *q.RadiusKm
	}
	if radius <= 0 {
		return SearchResult{}, fmt.Errorf("%w: radius must be positive", ErrValidation)
	}
	urgency := q.Urgency
	if urgency == 0 {
		urgency = 2
	}
	if urgency < 1 || urgency > 3 {
		return SearchResult{}, fmt.Errorf("%w: urgency must be 1-3", ErrValidation)
	}

	donors, err := a.engine.Search(q.BloodGroup, lat, lon, radius, urgency)
	if err != nil {
		return SearchResult{}, err
	}
	return SearchResult{Donors: donors, Count: len(donors)}, nil
}

// NearbyDonors runs the radius match without scoring or ranking.
func (a *App) NearbyDonors(ctx context.Context, q SearchQuery) ([]match.Candidate, error) {
	lat, lon, err := a.resolveCoordinates(ctx, q.Latitude, q.Longitude, q.Location)
	if err != nil {
		return nil, err
	}
	radius := float64(match.DefaultRadiusKm)
	if q.RadiusKm != nil {
		radius = *q.RadiusKm
	}
	if radius <= 0 {
		return nil, fmt.Errorf("%w: radius must be positive", ErrValidation)
	}
	return a.engine.FindNearby(q.BloodGroup, lat, lon, radius)
}

func (a *App) resolveCoordinates(ctx context.Context, lat, lon *float64, location string) (float64, float64, error) {
	if lat != nil && lon != nil {
		return *lat, *lon, nil
	}
	if location != "" {
		if point, ok := a.geocoder.Geocode(ctx, location); ok {
			if lat == nil {
				lat = &point.Latitude
			}
			if lon == nil {
				lon = &point.Longitude
			}
		}
	}
	if lat == nil || lon == nil {
		return 0, 0, ErrMissingCoordinates
	}
	return *lat, *lon, nil
}
