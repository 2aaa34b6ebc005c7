// Package compat holds the static blood-group compatibility tables.
//
// There are two independent tables. CanDonate answers "may this donor
// give to this patient" and EligibleDonorGroups answers "which donor
// groups should we look for, given this patient". They overlap but are
// not unified: the donation table treats O+ as a universal donor, which
// disagrees with clinical rules (only O- is universal) and with the
// eligibility table. Both are preserved exactly as the upstream service
// shipped them; reconciling them would change observable behavior.
package compat

import "bloodlink/pkg/domain"

// donationTable maps a donor group to the patient groups it may give to.
var donationTable = map[domain.BloodGroup][]domain.BloodGroup{
	domain.OPos:  {domain.OPos, domain.ONeg, domain.APos, domain.ANeg, domain.BPos, domain.BNeg, domain.ABPos, domain.ABNeg},
	domain.ONeg:  {domain.OPos, domain.ONeg, domain.APos, domain.ANeg, domain.BPos, domain.BNeg, domain.ABPos, domain.ABNeg},
	domain.APos:  {domain.APos, domain.ANeg, domain.ABPos, domain.ABNeg},
	domain.ANeg:  {domain.APos, domain.ANeg, domain.ABPos, domain.ABNeg},
	domain.BPos:  {domain.BPos, domain.BNeg, domain.ABPos, domain.ABNeg},
	domain.BNeg:  {domain.BPos, domain.BNeg, domain.ABPos, domain.ABNeg},
	domain.ABPos: {domain.ABPos, domain.ABNeg},
	domain.ABNeg: {domain.ABPos, domain.ABNeg},
}

// eligibilityTable maps a patient group to donor groups that may give to
// that patient, most-preferred (exact match) first.
var eligibilityTable = map[domain.BloodGroup][]domain.BloodGroup{
	domain.ONeg:  {domain.ONeg},
	domain.OPos:  {domain.OPos, domain.ONeg},
	domain.ANeg:  {domain.ANeg, domain.ONeg},
	domain.APos:  {domain.APos, domain.ANeg, domain.OPos, domain.ONeg},
	domain.BNeg:  {domain.BNeg, domain.ONeg},
	domain.BPos:  {domain.BPos, domain.BNeg, domain.OPos, domain.ONeg},
	domain.ABNeg: {domain.ABNeg, domain.ANeg, domain.BNeg, domain.ONeg},
	domain.ABPos: {domain.ABPos, domain.ABNeg, domain.APos, domain.ANeg, domain.BPos, domain.BNeg, domain.OPos, domain.ONeg},
}

// CanDonate reports whether blood from donor may be given to patient.
// Unknown donor groups are compatible with nothing.
func CanDonate(donor, patient domain.BloodGroup) bool {
	for _, g := range donationTable[donor] {
		if g == patient {
			return true
		}
	}
	return false
}

// EligibleDonorGroups returns the donor groups to search for a patient,
// truncated by urgency tier: 3 returns the full preference list, 2 the
// first three entries, and anything else only the exact group. Unknown
// patient groups yield a singleton of themselves.
func EligibleDonorGroups(patient domain.BloodGroup, urgency int) []domain.BloodGroup {
	base, ok := eligibilityTable[patient]
	if !ok {
		return []domain.BloodGroup{patient}
	}
	switch urgency {
	case 3:
		return clone(base)
	case 2:
		if len(base) > 3 {
			base = base[:3]
		}
		return clone(base)
	default:
		return []domain.BloodGroup{patient}
	}
}

func clone(groups []domain.BloodGroup) []domain.BloodGroup {
	out := make([]domain.BloodGroup, len(groups))
	copy(out, groups)
	return out
}
