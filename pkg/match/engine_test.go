package match

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"bloodlink/pkg/domain"
)

type fakeDonorSource struct {
	donors   []domain.Donor
	getCalls int
	getErr   error
}

func (f *fakeDonorSource) AvailableDonors(group domain.BloodGroup) ([]domain.Donor, error) {
	out := []domain.Donor{}
	for _, d := range f.donors {
		if !d.IsAvailable {
			continue
		}
		if group != "" && d.BloodGroup != group {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (f *fakeDonorSource) GetDonor(id string) (domain.Donor, bool, error) {
	f.getCalls++
	if f.getErr != nil {
		return domain.Donor{}, false, f.getErr
	}
	for _, d := range f.donors {
		if d.ID == id {
			return d, true, nil
		}
	}
	return domain.Donor{}, false, nil
}

func donorAt(id string, group domain.BloodGroup, lat, lon float64) domain.Donor {
	return domain.Donor{
		ID:          id,
		Name:        "donor " + id,
		BloodGroup:  group,
		Location:    &domain.Coordinates{Latitude: lat, Longitude: lon},
		IsAvailable: true,
	}
}

func TestFindNearbyFiltersGroupRadiusAndAvailability(t *testing.T) {
	inRadius := donorAt("near", domain.ONeg, 0, 0.5)
	outOfRadius := donorAt("far", domain.ONeg, 0, 9)
	wrongGroup := donorAt("wrong-group", domain.APos, 0, 0.5)
	unavailable := donorAt("off", domain.ONeg, 0, 0.5)
	unavailable.IsAvailable = false
	noLocation := domain.Donor{ID: "no-loc", BloodGroup: domain.ONeg, IsAvailable: true}

	src := &fakeDonorSource{donors: []domain.Donor{inRadius, outOfRadius, wrongGroup, unavailable, noLocation}}
	engine := NewEngine(src)

	got, err := engine.FindNearby(domain.ONeg, 0, 0, 100)
	if err != nil {
		t.Fatalf("find nearby: %v", err)
	}
	if len(got) != 1 || got[0].DonorID != "near" {
		t.Fatalf("expected only the in-radius O- donor, got %+v", got)
	}
}

func TestFindNearbyIncludesBoundaryDistance(t *testing.T) {
	donor := donorAt("boundary", domain.APos, 0, 1)
	src := &fakeDonorSource{donors: []domain.Donor{donor}}
	engine := NewEngine(src)

	// Compute the donor's exact distance, then search with that radius.
	probe, err := engine.FindNearby(domain.APos, 0, 0, 1000)
	if err != nil {
		t.Fatalf("probe: %v", err)
	}
	if len(probe) != 1 {
		t.Fatalf("probe expected 1 candidate, got %d", len(probe))
	}
	exact := probe[0].DistanceKm

	got, err := engine.FindNearby(domain.APos, 0, 0, exact)
	if err != nil {
		t.Fatalf("boundary search: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("donor exactly at radius must be included, got %d results", len(got))
	}
}

func TestFindNearbyEmptyGroupReturnsAllAvailable(t *testing.T) {
	src := &fakeDonorSource{donors: []domain.Donor{
		donorAt("a", domain.ONeg, 0, 0.1),
		donorAt("b", domain.APos, 0, 0.2),
	}}
	engine := NewEngine(src)

	got, err := engine.FindNearby("", 0, 0, 100)
	if err != nil {
		t.Fatalf("find nearby: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("empty group should not filter, got %d results", len(got))
	}
}

func TestRankCloserBeatsFartherAtEqualReliability(t *testing.T) {
	near := donorAt("near", domain.BPos, 0, 0.5)
	far := donorAt("far", domain.BPos, 0, 3)
	src := &fakeDonorSource{donors: []domain.Donor{far, near}}
	engine := NewEngine(src)

	ranked, err := engine.Search(domain.BPos, 0, 0, 1000, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(ranked))
	}
	if ranked[0].DonorID != "near" {
		t.Fatalf("closer donor must rank first, got %q", ranked[0].DonorID)
	}
	if *ranked[0].AIScore <= *ranked[1].AIScore {
		t.Fatalf("expected strictly higher score for closer donor: %v vs %v",
			*ranked[0].AIScore, *ranked[1].AIScore)
	}
}

func TestRankMissingDonorDefaultsReliability(t *testing.T) {
	src := &fakeDonorSource{}
	engine := NewEngine(src)

	ranked := engine.Rank([]Candidate{{DonorID: "ghost", DistanceKm: 10}}, 2)
	if len(ranked) != 1 {
		t.Fatalf("expected candidate to survive, got %d", len(ranked))
	}
	if ranked[0].ReliabilityScore == nil || *ranked[0].ReliabilityScore != DefaultReliability {
		t.Fatalf("missing donor should default to %d, got %v",
			DefaultReliability, ranked[0].ReliabilityScore)
	}
}

func TestRankStoreErrorDoesNotFailBatch(t *testing.T) {
	src := &fakeDonorSource{getErr: errors.New("db down")}
	engine := NewEngine(src)

	ranked := engine.Rank([]Candidate{{DonorID: "d1"}}, 1)
	if len(ranked) != 1 || ranked[0].ReliabilityScore == nil || *ranked[0].ReliabilityScore != DefaultReliability {
		t.Fatalf("lookup errors must degrade to default reliability, got %+v", ranked)
	}
}

func TestSearchEndToEndScenario(t *testing.T) {
	a := donorAt("a", domain.ONeg, 0, 0)
	a.DonationCount = 10
	a.IsVerified = true
	b := donorAt("b", domain.ONeg, 0, 5)

	src := &fakeDonorSource{donors: []domain.Donor{b, a}}
	engine := NewEngine(src)

	ranked, err := engine.Search(domain.ONeg, 0, 0, 600, 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("both donors are within 600 km, got %d results", len(ranked))
	}
	if ranked[0].DonorID != "a" || ranked[1].DonorID != "b" {
		t.Fatalf("expected a above b, got %q, %q", ranked[0].DonorID, ranked[1].DonorID)
	}
	if *ranked[0].ReliabilityScore != 100 {
		t.Fatalf("verified donor with 10 donations should score 100, got %d", *ranked[0].ReliabilityScore)
	}
	if *ranked[1].ReliabilityScore != 50 {
		t.Fatalf("unverified donor with 0 donations should score 50, got %d", *ranked[1].ReliabilityScore)
	}
	// 3*2 + 2*100 - 0/10
	if *ranked[0].AIScore != 206 {
		t.Fatalf("unexpected top score %v", *ranked[0].AIScore)
	}
	if *ranked[0].AIScore <= *ranked[1].AIScore {
		t.Fatalf("a must outscore b: %v vs %v", *ranked[0].AIScore, *ranked[1].AIScore)
	}
}

func TestRankZeroScoreStillSerialized(t *testing.T) {
	src := &fakeDonorSource{}
	engine := NewEngine(src)

	// 3*2 + 2*50 - 1060/10 = 0 exactly.
	ranked := engine.Rank([]Candidate{{DonorID: "edge", DistanceKm: 1060}}, 2)
	if ranked[0].AIScore == nil || *ranked[0].AIScore != 0 {
		t.Fatalf("expected a score of exactly 0, got %v", ranked[0].AIScore)
	}
	data, err := json.Marshal(ranked[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"ai_score":0`) {
		t.Fatalf("ranked candidate must carry ai_score even at 0: %s", data)
	}
	if !strings.Contains(string(data), `"reliability_score":50`) {
		t.Fatalf("ranked candidate must carry reliability_score: %s", data)
	}
}

func TestUnrankedCandidateOmitsScores(t *testing.T) {
	data, err := json.Marshal(Candidate{DonorID: "plain"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "ai_score") || strings.Contains(string(data), "reliability_score") {
		t.Fatalf("unranked candidate must omit score fields: %s", data)
	}
}

func TestRankTiesKeepInputOrder(t *testing.T) {
	first := donorAt("first", domain.ABNeg, 0, 1)
	second := donorAt("second", domain.ABNeg, 0, 1)
	src := &fakeDonorSource{donors: []domain.Donor{first, second}}
	engine := NewEngine(src)

	ranked, err := engine.Search(domain.ABNeg, 0, 0, 1000, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if ranked[0].DonorID != "first" || ranked[1].DonorID != "second" {
		t.Fatalf("stable sort should preserve input order on ties: %q, %q",
			ranked[0].DonorID, ranked[1].DonorID)
	}
}
