package core

import (
	"testing"

	"hemocore/pkg/domain"
)

func miles(v float64) *float64 { return &v }

func TestRankCandidatesPolicy(t *testing.T) {
	candidates := []domain.MatchCandidate{
		{BankID: "compat-far", ExactMatch: false, DistanceMiles: miles(1)},
		{BankID: "exact-unknown", ExactMatch: true, DistanceMiles: nil, UnitsAvailable: 2},
		{BankID: "exact-8", ExactMatch: true, DistanceMiles: miles(8)},
		{BankID: "exact-2", ExactMatch: true, DistanceMiles: miles(2)},
		{BankID: "exact-5", ExactMatch: true, DistanceMiles: miles(5)},
	}
	rankCandidates(candidates)

	want := []string{"exact-2", "exact-5", "exact-8", "exact-unknown", "compat-far"}
	for i, id := range want {
		if candidates[i].BankID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, candidates[i].BankID)
		}
	}
}

func TestRankCandidatesTieBreaksOnUnits(t *testing.T) {
	candidates := []domain.MatchCandidate{
		{BankID: "small", ExactMatch: true, DistanceMiles: miles(3), UnitsAvailable: 2},
		{BankID: "large", ExactMatch: true, DistanceMiles: miles(3), UnitsAvailable: 9},
	}
	rankCandidates(candidates)
	if candidates[0].BankID != "large" {
		t.Fatalf("equal distance should prefer more units, got %s first", candidates[0].BankID)
	}

	// Both distances unknown: units decide.
	candidates = []domain.MatchCandidate{
		{BankID: "a", UnitsAvailable: 1},
		{BankID: "b", UnitsAvailable: 4},
	}
	rankCandidates(candidates)
	if candidates[0].BankID != "b" {
		t.Fatalf("unknown distances should prefer more units, got %s first", candidates[0].BankID)
	}
}
