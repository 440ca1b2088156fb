package core

import (
	"sort"
	"time"

	"hemocore/pkg/domain"
)

// rankUrgent filters to open urgent/emergency requests and orders them by
// urgency tier (emergency first) then ascending deadline. Requests past their
// deadline read as expired and are excluded.
func rankUrgent(requests []BloodRequest, now time.Time) []BloodRequest {
	out := make([]BloodRequest, 0, len(requests))
	for _, r := range requests {
		if r.EffectiveStatus(now) != domain.StatusPending {
			continue
		}
		if r.Urgency != UrgencyUrgent && r.Urgency != UrgencyEmergency {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Urgency.Rank() != out[j].Urgency.Rank() {
			return out[i].Urgency.Rank() > out[j].Urgency.Rank()
		}
		return out[i].RequiredBy.Before(out[j].RequiredBy)
	})
	return out
}
