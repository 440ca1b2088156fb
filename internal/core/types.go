package core

import "hemocore/pkg/domain"

type (
	EntityType         = domain.EntityType
	BloodType          = domain.BloodType
	UrgencyLevel       = domain.UrgencyLevel
	RequestStatus      = domain.RequestStatus
	Coordinates        = domain.Coordinates
	Base               = domain.Base
	Facility           = domain.Facility
	BloodBank          = domain.BloodBank
	BloodRequest       = domain.BloodRequest
	InventoryLine      = domain.InventoryLine
	MatchCandidate     = domain.MatchCandidate
	Change             = domain.Change
	Action             = domain.Action
	Violation          = domain.Violation
	Result             = domain.Result
	RuleViolationError = domain.RuleViolationError
	RulesEngine        = domain.RulesEngine
)

const (
	EntityFacility      = domain.EntityFacility
	EntityBloodBank     = domain.EntityBloodBank
	EntityBloodRequest  = domain.EntityBloodRequest
	EntityInventoryLine = domain.EntityInventoryLine
)

const (
	StatusPending   = domain.StatusPending
	StatusFulfilled = domain.StatusFulfilled
	StatusCancelled = domain.StatusCancelled
	StatusExpired   = domain.StatusExpired
)

const (
	UrgencyRoutine   = domain.UrgencyRoutine
	UrgencyUrgent    = domain.UrgencyUrgent
	UrgencyEmergency = domain.UrgencyEmergency
)

const (
	SeverityBlock = domain.SeverityBlock
	SeverityWarn  = domain.SeverityWarn
)
