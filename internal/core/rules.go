package core

import "hemocore/pkg/domain"

// NewDefaultRulesEngine builds a rules engine with the built-in policy set:
// request lifecycle legality and non-negative stock.
func NewDefaultRulesEngine() *RulesEngine {
	engine := domain.NewRulesEngine()
	engine.Register(NewRequestTransitionRule())
	engine.Register(NewStockNonNegativeRule())
	return engine
}
