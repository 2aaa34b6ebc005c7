// Package match implements donor matching: radius filtering around a
// query point and composite "AI score" ranking of the survivors.
package match

import (
	"fmt"
	"math"
	"sort"

	"bloodlink/pkg/domain"
	"bloodlink/pkg/geo"
)

// DefaultRadiusKm is the search radius applied when the caller does not
// specify one.
const DefaultRadiusKm = 10

// DonorSource supplies donor records for matching and ranking.
type DonorSource interface {
	// AvailableDonors returns available donors with the exact blood
	// group, or every available donor when group is empty.
	AvailableDonors(group domain.BloodGroup) ([]domain.Donor, error)
	// GetDonor fetches a single donor for reliability recomputation.
	GetDonor(id string) (domain.Donor, bool, error)
}

// Candidate is a donor annotated with per-query match data. It is
// derived fresh for each search and never persisted. The score fields
// are nil until Rank runs, so unranked nearby listings omit them while
// ranked results always carry them, including a legitimate score of 0.
type Candidate struct {
	DonorID          string            `json:"donor_id"`
	Name             string            `json:"name"`
	BloodGroup       domain.BloodGroup `json:"blood_group"`
	Latitude         float64           `json:"latitude"`
	Longitude        float64           `json:"longitude"`
	DistanceKm       float64           `json:"distance_km"`
	IsAvailable      bool              `json:"is_available"`
	Donations        int               `json:"donations"`
	ReliabilityScore *int              `json:"reliability_score,omitempty"`
	AIScore          *float64          `json:"ai_score,omitempty"`
}

// Engine finds and ranks donors for a search query. It owns no state
// beyond its donor source; every call computes from current records.
type Engine struct {
	donors DonorSource
}

// NewEngine builds a matching engine over a donor source.
func NewEngine(donors DonorSource) *Engine {
	return &Engine{donors: donors}
}

// FindNearby returns candidates with the requested blood group within
// radiusKm of the query point. Inclusion at the boundary is `<=`.
// Donors without coordinates are skipped.
func (e *Engine) FindNearby(group domain.BloodGroup, lat, lon, radiusKm float64) ([]Candidate, error) {
	donors, err := e.donors.AvailableDonors(group)
	if err != nil {
		return nil, fmt.Errorf("list donors: %w", err)
	}

	nearby := make([]Candidate, 0, len(donors))
	for _, d := range donors {
		if d.Location == nil {
			continue
		}
		distance := geo.Distance(lat, lon, d.Location.Latitude, d.Location.Longitude)
		if distance > radiusKm {
			continue
		}
		nearby = append(nearby, Candidate{
			DonorID:     d.ID,
			Name:        d.Name,
			BloodGroup:  d.BloodGroup,
			Latitude:    d.Location.Latitude,
			Longitude:   d.Location.Longitude,
			DistanceKm:  distance,
			IsAvailable: d.IsAvailable,
			Donations:   d.DonationCount,
		})
	}
	return nearby, nil
}

// Rank annotates candidates with reliability and AI scores and sorts
// them descending by score. Reliability is recomputed from the current
// donor record; a missing record falls back to DefaultReliability
// instead of failing the batch. The sort is stable, so exact ties keep
// their input order.
func (e *Engine) Rank(candidates []Candidate, urgency int) []Candidate {
	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)

	for i := range ranked {
		reliability := DefaultReliability
		if donor, ok, err := e.donors.GetDonor(ranked[i].DonorID); err == nil && ok {
			reliability = ReliabilityScore(donor)
		}
		score := aiScore(ranked[i].DistanceKm, reliability, urgency)
		ranked[i].ReliabilityScore = &reliability
		ranked[i].AIScore = &score
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return *ranked[i].AIScore > *ranked[j].AIScore
	})
	return ranked
}

// Search runs the full pipeline: radius matching followed by ranking.
func (e *Engine) Search(group domain.BloodGroup, lat, lon, radiusKm float64, urgency int) ([]Candidate, error) {
	candidates, err := e.FindNearby(group, lat, lon, radiusKm)
	if err != nil {
		return nil, err
	}
	return e.Rank(candidates, urgency), nil
}

// aiScore combines urgency, reliability, and distance into the ranking
// heuristic, rounded to 2 decimal places for display and sorting.
func aiScore(distanceKm float64, reliability, urgency int) float64 {
	score := 3*float64(urgency) + 2*float64(reliability) - distanceKm/10
	return math.Round(score*100) / 100
}
