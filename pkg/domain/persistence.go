package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateFacility(Facility) (Facility, error)
	CreateBloodBank(BloodBank) (BloodBank, error)
	CreateBloodRequest(BloodRequest) (BloodRequest, error)
	UpdateBloodRequest(id string, mutator func(*BloodRequest) error) (BloodRequest, error)
	UpsertInventoryLine(InventoryLine) (InventoryLine, error)
	UpdateInventoryLine(bankID string, t BloodType, mutator func(*InventoryLine) error) (InventoryLine, error)
	FindFacility(id string) (Facility, bool)
	FindBloodBank(id string) (BloodBank, bool)
	FindBloodRequest(id string) (BloodRequest, bool)
	FindInventoryLine(bankID string, t BloodType) (InventoryLine, bool)
}

// TransactionView provides read-only access to snapshot data for rules and
// side-effect-free queries.
type TransactionView interface {
	ListFacilities() []Facility
	ListBloodBanks() []BloodBank
	ListBloodRequests() []BloodRequest
	ListInventoryLines() []InventoryLine
	FindFacility(id string) (Facility, bool)
	FindBloodBank(id string) (BloodBank, bool)
	FindBloodRequest(id string) (BloodRequest, bool)
	FindInventoryLine(bankID string, t BloodType) (InventoryLine, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetBloodRequest(id string) (BloodRequest, bool)
	ListBloodRequests() []BloodRequest
	GetBloodBank(id string) (BloodBank, bool)
	ListBloodBanks() []BloodBank
	GetFacility(id string) (Facility, bool)
	ListFacilities() []Facility
	GetInventoryLine(bankID string, t BloodType) (InventoryLine, bool)
	ListInventoryLines() []InventoryLine
}
