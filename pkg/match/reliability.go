package match

import "bloodlink/pkg/domain"

const (
	reliabilityBase     = 50
	donationBonusCap    = 30
	verifiedBonus       = 20
	reliabilityCeiling  = 100
	donationsForMaxBump = 10
)

// DefaultReliability is used when a candidate's backing donor record
// cannot be found during ranking.
const DefaultReliability = 50

// ReliabilityScore derives a 0-100 heuristic from donation history and
// the owning account's verification flag. The donation bonus scales
// linearly at 3 points per donation and saturates at 30 points once the
// donor reaches 10 donations.
func ReliabilityScore(d domain.Donor) int {
	bonus := d.DonationCount * donationBonusCap / donationsForMaxBump
	if bonus > donationBonusCap {
		bonus = donationBonusCap
	}
	score := reliabilityBase + bonus
	if d.IsVerified {
		score += verifiedBonus
	}
	if score > reliabilityCeiling {
		score = reliabilityCeiling
	}
	return score
}
