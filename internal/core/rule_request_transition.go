package core

import (
	"context"
	"fmt"

	"hemocore/pkg/domain"
)

// NewRequestTransitionRule returns the in-transaction rule enforcing blood
// request lifecycle legality: a request leaves pending exactly once, and
// fulfilled/cancelled are terminal.
func NewRequestTransitionRule() domain.Rule {
	return requestTransitionRule{}
}

type requestTransitionRule struct{}

var requestTerminal = map[domain.RequestStatus]struct{}{
	domain.StatusFulfilled: {},
	domain.StatusCancelled: {},
	domain.StatusExpired:   {},
}

var requestValid = map[domain.RequestStatus]struct{}{
	domain.StatusPending:   {},
	domain.StatusFulfilled: {},
	domain.StatusCancelled: {},
	domain.StatusExpired:   {},
}

func (requestTransitionRule) Name() string { return "request_transition" }

func (requestTransitionRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityBloodRequest {
			continue
		}
		after, ok := change.After.(domain.BloodRequest)
		if !ok {
			continue
		}
		if _, valid := requestValid[after.Status]; !valid {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "request_transition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("blood request %s is set to invalid status %s", after.ID, after.Status),
				Entity:   domain.EntityBloodRequest,
				EntityID: after.ID,
			})
			continue
		}
		if after.Status == domain.StatusFulfilled {
			if after.FulfilledBy == nil || after.UnitsProvided == nil || after.FulfilledAt == nil {
				res.Violations = append(res.Violations, domain.Violation{
					Rule:     "request_transition",
					Severity: domain.SeverityBlock,
					Message:  fmt.Sprintf("blood request %s fulfilled without fulfillment metadata", after.ID),
					Entity:   domain.EntityBloodRequest,
					EntityID: after.ID,
				})
			}
		}
		before, ok := change.Before.(domain.BloodRequest)
		if !ok {
			continue
		}
		if _, terminal := requestTerminal[before.Status]; !terminal {
			continue
		}
		if after.Status != before.Status {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "request_transition",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("cannot move blood request %s from terminal status %s to %s", before.ID, before.Status, after.Status),
				Entity:   domain.EntityBloodRequest,
				EntityID: after.ID,
			})
		}
	}
	return res, nil
}
