package core

import (
	"context"
	"fmt"

	"hemocore/pkg/domain"
)

// NewStockNonNegativeRule returns the in-transaction rule blocking any commit
// that would leave an inventory line with negative available units.
func NewStockNonNegativeRule() domain.Rule {
	return stockNonNegativeRule{}
}

type stockNonNegativeRule struct{}

func (stockNonNegativeRule) Name() string { return "stock_nonnegative" }

func (stockNonNegativeRule) Evaluate(_ context.Context, view domain.RuleView, _ []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, line := range view.ListInventoryLines() {
		if line.UnitsAvailable < 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "stock_nonnegative",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("inventory %s at bank %s driven negative: %d units", line.BloodType, line.BankID, line.UnitsAvailable),
				Entity:   domain.EntityInventoryLine,
				EntityID: line.ID,
			})
		}
		if line.UnitsReserved < 0 {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "stock_nonnegative",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("reserved units for %s at bank %s driven negative: %d", line.BloodType, line.BankID, line.UnitsReserved),
				Entity:   domain.EntityInventoryLine,
				EntityID: line.ID,
			})
		}
	}
	return res, nil
}
