// Package domain defines the core persistent entities, value types, and
// rule evaluation primitives used by hemocore.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityFacility identifies a requesting facility record.
	EntityFacility EntityType = "facility"
	// EntityBloodBank identifies a blood bank record.
	EntityBloodBank EntityType = "blood_bank"
	// EntityBloodRequest identifies a blood request record.
	EntityBloodRequest EntityType = "blood_request"
	// EntityInventoryLine identifies a per-bank, per-type stock record.
	EntityInventoryLine EntityType = "inventory_line"
)

// BloodType enumerates the eight ABO/Rh blood groups.
type BloodType string

// Canonical ABO/Rh blood groups.
const (
	ONeg  BloodType = "O-"
	OPos  BloodType = "O+"
	ANeg  BloodType = "A-"
	APos  BloodType = "A+"
	BNeg  BloodType = "B-"
	BPos  BloodType = "B+"
	ABNeg BloodType = "AB-"
	ABPos BloodType = "AB+"
)

// BloodTypes lists all valid groups in canonical order.
var BloodTypes = []BloodType{ONeg, OPos, ANeg, APos, BNeg, BPos, ABNeg, ABPos}

// ParseBloodType validates raw input against the eight canonical groups.
func ParseBloodType(raw string) (BloodType, error) {
	for _, t := range BloodTypes {
		if string(t) == raw {
			return t, nil
		}
	}
	return "", InvalidBloodTypeError{Input: raw}
}

// Valid reports whether the value is one of the eight canonical groups.
func (t BloodType) Valid() bool {
	_, err := ParseBloodType(string(t))
	return err == nil
}

// UrgencyLevel classifies a blood request for ranking and alerting priority.
type UrgencyLevel string

// Urgency tiers with explicit total ordering (emergency > urgent > routine).
const (
	UrgencyRoutine   UrgencyLevel = "routine"
	UrgencyUrgent    UrgencyLevel = "urgent"
	UrgencyEmergency UrgencyLevel = "emergency"
)

var urgencyRank = map[UrgencyLevel]int{
	UrgencyRoutine:   0,
	UrgencyUrgent:    1,
	UrgencyEmergency: 2,
}

// Rank returns the numeric priority of the tier; higher is more urgent.
// Unknown tiers rank below routine.
func (u UrgencyLevel) Rank() int {
	if r, ok := urgencyRank[u]; ok {
		return r
	}
	return -1
}

// Valid reports whether the tier is one of the closed set.
func (u UrgencyLevel) Valid() bool {
	_, ok := urgencyRank[u]
	return ok
}

// RequestStatus tracks the lifecycle of a blood request.
type RequestStatus string

// Lifecycle states. StatusExpired is derived at read time for a pending
// request whose deadline has passed; see BloodRequest.EffectiveStatus.
const (
	StatusPending   RequestStatus = "pending"
	StatusFulfilled RequestStatus = "fulfilled"
	StatusCancelled RequestStatus = "cancelled"
	StatusExpired   RequestStatus = "expired"
)

// Coordinates is a decimal-degree latitude/longitude pair. Records without a
// known location carry a nil *Coordinates; absence is never substituted with
// a placeholder point.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Base contains common fields for all domain records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Version increments on every committed update and backs optimistic
	// concurrency checks in durable stores.
	Version int64 `json:"version"`
}

// Facility represents a hospital or clinic that files blood requests.
type Facility struct {
	Base
	Name     string       `json:"name"`
	Location *Coordinates `json:"location,omitempty"`
}

// BloodBank represents a supply-side inventory holder.
type BloodBank struct {
	Base
	Name     string       `json:"name"`
	Location *Coordinates `json:"location,omitempty"`
}

// BloodRequest represents demand for a number of units of one blood type.
type BloodRequest struct {
	Base
	FacilityID  string        `json:"facility_id"`
	BloodType   BloodType     `json:"blood_type"`
	Units       int           `json:"units"`
	Urgency     UrgencyLevel  `json:"urgency"`
	PatientInfo *string       `json:"patient_info,omitempty"`
	RequiredBy  time.Time     `json:"required_by"`
	Notes       *string       `json:"notes,omitempty"`
	Status      RequestStatus `json:"status"`

	// Fulfillment metadata, present iff Status is fulfilled.
	FulfilledBy   *string    `json:"fulfilled_by,omitempty"`
	UnitsProvided *int       `json:"units_provided,omitempty"`
	FulfilledAt   *time.Time `json:"fulfilled_at,omitempty"`

	// CancelReason is present iff Status is cancelled.
	CancelReason *string `json:"cancel_reason,omitempty"`
}

// EffectiveStatus resolves the externally observable status at the given
// instant: a pending request whose deadline has passed reads as expired.
func (r BloodRequest) EffectiveStatus(now time.Time) RequestStatus {
	if r.Status == StatusPending && !r.RequiredBy.IsZero() && now.After(r.RequiredBy) {
		return StatusExpired
	}
	return r.Status
}

// Open reports whether the request can still transition out of pending at
// the given instant.
func (r BloodRequest) Open(now time.Time) bool {
	return r.EffectiveStatus(now) == StatusPending
}

// InventoryLineKey addresses one stock line: a bank holds at most one line
// per blood type.
func InventoryLineKey(bankID string, t BloodType) string {
	return bankID + "/" + string(t)
}

// InventoryLine tracks a blood bank's stock of one blood type.
type InventoryLine struct {
	Base
	BankID    string    `json:"bank_id"`
	BloodType BloodType `json:"blood_type"`
	// UnitsAvailable never goes negative; fulfillments that would drive it
	// below zero abort.
	UnitsAvailable int `json:"units_available"`
	// UnitsReserved is tracked separately from available stock and is a
	// reporting figure only; fulfillment does not consume reservations.
	UnitsReserved int `json:"units_reserved"`
	MinThreshold  int `json:"min_threshold"`
}

// Key returns the composite identity of the line.
func (l InventoryLine) Key() string {
	return InventoryLineKey(l.BankID, l.BloodType)
}

// BelowThreshold reports whether available stock has fallen to or under the
// configured minimum.
func (l InventoryLine) BelowThreshold() bool {
	return l.UnitsAvailable <= l.MinThreshold
}

// MatchCandidate is a ranked, request-scoped suggestion of which bank could
// satisfy a request. It carries no persistent identity.
type MatchCandidate struct {
	BankID         string    `json:"bank_id"`
	BankName       string    `json:"bank_name"`
	BloodType      BloodType `json:"blood_type"`
	UnitsAvailable int       `json:"units_available"`
	// ExactMatch is true when the candidate stocks the requested type itself
	// rather than a compatible substitute.
	ExactMatch bool `json:"exact_match"`
	// DistanceMiles is nil when either side lacks coordinates; unknown
	// distances sort after known ones.
	DistanceMiles *float64 `json:"distance_miles,omitempty"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported mutations captured for rule evaluation.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
