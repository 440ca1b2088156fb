package core

import (
	"sort"

	"hemocore/pkg/domain"
)

// collectCandidates selects every inventory line compatible with the
// requested type that has positive available stock, resolving bank names and
// distances from the snapshot. Zero-stock lines are excluded outright, not
// deprioritized.
func collectCandidates(view domain.TransactionView, requested BloodType, origin *Coordinates) []MatchCandidate {
	banks := make(map[string]BloodBank)
	for _, b := range view.ListBloodBanks() {
		banks[b.ID] = b
	}

	var out []MatchCandidate
	for _, line := range view.ListInventoryLines() {
		if line.UnitsAvailable <= 0 {
			continue
		}
		if !domain.CanDonate(line.BloodType, requested) {
			continue
		}
		bank, ok := banks[line.BankID]
		if !ok {
			continue
		}
		candidate := MatchCandidate{
			BankID:         bank.ID,
			BankName:       bank.Name,
			BloodType:      line.BloodType,
			UnitsAvailable: line.UnitsAvailable,
			ExactMatch:     line.BloodType == requested,
		}
		if origin != nil && bank.Location != nil {
			d := domain.Distance(*origin, *bank.Location)
			candidate.DistanceMiles = &d
		}
		out = append(out, candidate)
	}
	return out
}

// rankCandidates orders candidates by the matching policy: exact-type match
// first, then ascending distance with unknown distances after all known ones,
// then descending available units. The sort is stable so equal candidates
// keep their snapshot order.
func rankCandidates(candidates []MatchCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.ExactMatch != b.ExactMatch {
			return a.ExactMatch
		}
		switch {
		case a.DistanceMiles != nil && b.DistanceMiles != nil:
			if *a.DistanceMiles != *b.DistanceMiles {
				return *a.DistanceMiles < *b.DistanceMiles
			}
		case a.DistanceMiles != nil:
			return true
		case b.DistanceMiles != nil:
			return false
		}
		return a.UnitsAvailable > b.UnitsAvailable
	})
}
