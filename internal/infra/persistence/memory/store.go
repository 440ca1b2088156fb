// Package memory provides an in-memory implementation of the core persistence
// store used for tests and ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hemocore/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Facility aliases domain.Facility for in-memory persistence operations.
	Facility = domain.Facility
	// BloodBank aliases domain.BloodBank.
	BloodBank = domain.BloodBank
	// BloodRequest aliases domain.BloodRequest.
	BloodRequest = domain.BloodRequest
	// InventoryLine aliases domain.InventoryLine.
	InventoryLine = domain.InventoryLine
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	facilities map[string]Facility
	banks      map[string]BloodBank
	requests   map[string]BloodRequest
	inventory  map[string]InventoryLine
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Facilities map[string]Facility      `json:"facilities"`
	Banks      map[string]BloodBank     `json:"banks"`
	Requests   map[string]BloodRequest  `json:"requests"`
	Inventory  map[string]InventoryLine `json:"inventory"`
}

func newMemoryState() memoryState {
	return memoryState{
		facilities: make(map[string]Facility),
		banks:      make(map[string]BloodBank),
		requests:   make(map[string]BloodRequest),
		inventory:  make(map[string]InventoryLine),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.facilities {
		cloned.facilities[k] = cloneFacility(v)
	}
	for k, v := range s.banks {
		cloned.banks[k] = cloneBank(v)
	}
	for k, v := range s.requests {
		cloned.requests[k] = cloneRequest(v)
	}
	for k, v := range s.inventory {
		cloned.inventory[k] = v
	}
	return cloned
}

func cloneCoordinates(c *domain.Coordinates) *domain.Coordinates {
	if c == nil {
		return nil
	}
	cp := *c
	return &cp
}

func cloneFacility(f Facility) Facility {
	cp := f
	cp.Location = cloneCoordinates(f.Location)
	return cp
}

func cloneBank(b BloodBank) BloodBank {
	cp := b
	cp.Location = cloneCoordinates(b.Location)
	return cp
}

func cloneRequest(r BloodRequest) BloodRequest {
	cp := r
	cp.PatientInfo = cloneStringPtr(r.PatientInfo)
	cp.Notes = cloneStringPtr(r.Notes)
	cp.FulfilledBy = cloneStringPtr(r.FulfilledBy)
	cp.CancelReason = cloneStringPtr(r.CancelReason)
	if r.UnitsProvided != nil {
		v := *r.UnitsProvided
		cp.UnitsProvided = &v
	}
	if r.FulfilledAt != nil {
		t := *r.FulfilledAt
		cp.FulfilledAt = &t
	}
	return cp
}

func cloneStringPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Store provides an in-memory transactional store for the core domain.
// Transactions run against a cloned snapshot and commit atomically under a
// single writer lock, giving serializable isolation across all records.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNowFunc overrides the transaction clock; tests use it to pin time.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn != nil {
		s.nowFn = fn
	}
}

func newID() string {
	return uuid.NewString()
}

// transaction implements domain.Transaction over a cloned state.
type transaction struct {
	state   memoryState
	changes []Change
	now     time.Time
}

// transactionView exposes a read-only snapshot of state to rules and queries.
type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) transactionView {
	return transactionView{state: state}
}

// ListFacilities returns all facilities within the snapshot.
func (v transactionView) ListFacilities() []Facility {
	out := make([]Facility, 0, len(v.state.facilities))
	for _, f := range v.state.facilities {
		out = append(out, cloneFacility(f))
	}
	return out
}

// ListBloodBanks returns all blood banks within the snapshot.
func (v transactionView) ListBloodBanks() []BloodBank {
	out := make([]BloodBank, 0, len(v.state.banks))
	for _, b := range v.state.banks {
		out = append(out, cloneBank(b))
	}
	return out
}

// ListBloodRequests returns all requests within the snapshot.
func (v transactionView) ListBloodRequests() []BloodRequest {
	out := make([]BloodRequest, 0, len(v.state.requests))
	for _, r := range v.state.requests {
		out = append(out, cloneRequest(r))
	}
	return out
}

// ListInventoryLines returns all stock lines within the snapshot.
func (v transactionView) ListInventoryLines() []InventoryLine {
	out := make([]InventoryLine, 0, len(v.state.inventory))
	for _, l := range v.state.inventory {
		out = append(out, l)
	}
	return out
}

// FindFacility retrieves a facility by ID from the snapshot.
func (v transactionView) FindFacility(id string) (Facility, bool) {
	f, ok := v.state.facilities[id]
	if !ok {
		return Facility{}, false
	}
	return cloneFacility(f), true
}

// FindBloodBank retrieves a blood bank by ID from the snapshot.
func (v transactionView) FindBloodBank(id string) (BloodBank, bool) {
	b, ok := v.state.banks[id]
	if !ok {
		return BloodBank{}, false
	}
	return cloneBank(b), true
}

// FindBloodRequest retrieves a request by ID from the snapshot.
func (v transactionView) FindBloodRequest(id string) (BloodRequest, bool) {
	r, ok := v.state.requests[id]
	if !ok {
		return BloodRequest{}, false
	}
	return cloneRequest(r), true
}

// FindInventoryLine retrieves the stock line for a bank/type pair.
func (v transactionView) FindInventoryLine(bankID string, t domain.BloodType) (InventoryLine, bool) {
	l, ok := v.state.inventory[domain.InventoryLineKey(bankID, t)]
	return l, ok
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Registered rules are evaluated against the mutated snapshot before commit;
// blocking violations abort with RuleViolationError and no state change.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(ctx context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	view := newTransactionView(&snapshot)
	return fn(view)
}

// Snapshot implements domain.Transaction.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// CreateFacility stores a new facility within the transaction.
func (tx *transaction) CreateFacility(f Facility) (Facility, error) {
	if f.ID == "" {
		f.ID = newID()
	}
	if _, exists := tx.state.facilities[f.ID]; exists {
		return Facility{}, fmt.Errorf("facility %q already exists", f.ID)
	}
	f.CreatedAt = tx.now
	f.UpdatedAt = tx.now
	f.Version = 1
	tx.state.facilities[f.ID] = cloneFacility(f)
	tx.recordChange(Change{Entity: domain.EntityFacility, Action: domain.ActionCreate, After: cloneFacility(f)})
	return cloneFacility(f), nil
}

// CreateBloodBank stores a new blood bank within the transaction.
func (tx *transaction) CreateBloodBank(b BloodBank) (BloodBank, error) {
	if b.ID == "" {
		b.ID = newID()
	}
	if _, exists := tx.state.banks[b.ID]; exists {
		return BloodBank{}, fmt.Errorf("blood bank %q already exists", b.ID)
	}
	b.CreatedAt = tx.now
	b.UpdatedAt = tx.now
	b.Version = 1
	tx.state.banks[b.ID] = cloneBank(b)
	tx.recordChange(Change{Entity: domain.EntityBloodBank, Action: domain.ActionCreate, After: cloneBank(b)})
	return cloneBank(b), nil
}

// CreateBloodRequest stores a new request within the transaction.
func (tx *transaction) CreateBloodRequest(r BloodRequest) (BloodRequest, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	if _, exists := tx.state.requests[r.ID]; exists {
		return BloodRequest{}, fmt.Errorf("blood request %q already exists", r.ID)
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	r.Version = 1
	tx.state.requests[r.ID] = cloneRequest(r)
	tx.recordChange(Change{Entity: domain.EntityBloodRequest, Action: domain.ActionCreate, After: cloneRequest(r)})
	return cloneRequest(r), nil
}

// UpdateBloodRequest mutates a request using the provided mutator function.
func (tx *transaction) UpdateBloodRequest(id string, mutator func(*BloodRequest) error) (BloodRequest, error) {
	current, ok := tx.state.requests[id]
	if !ok {
		return BloodRequest{}, domain.ErrRequestNotFound
	}
	before := cloneRequest(current)
	if err := mutator(&current); err != nil {
		return BloodRequest{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	current.Version = before.Version + 1
	tx.state.requests[id] = cloneRequest(current)
	tx.recordChange(Change{Entity: domain.EntityBloodRequest, Action: domain.ActionUpdate, Before: before, After: cloneRequest(current)})
	return cloneRequest(current), nil
}

// UpsertInventoryLine creates or replaces the stock line for a bank/type pair.
func (tx *transaction) UpsertInventoryLine(l InventoryLine) (InventoryLine, error) {
	if _, ok := tx.state.banks[l.BankID]; !ok {
		return InventoryLine{}, domain.ErrBankNotFound
	}
	if !l.BloodType.Valid() {
		return InventoryLine{}, domain.InvalidBloodTypeError{Input: string(l.BloodType)}
	}
	key := l.Key()
	existing, exists := tx.state.inventory[key]
	if exists {
		l.ID = existing.ID
		l.CreatedAt = existing.CreatedAt
		l.Version = existing.Version + 1
		l.UpdatedAt = tx.now
		tx.state.inventory[key] = l
		tx.recordChange(Change{Entity: domain.EntityInventoryLine, Action: domain.ActionUpdate, Before: existing, After: l})
		return l, nil
	}
	if l.ID == "" {
		l.ID = newID()
	}
	l.CreatedAt = tx.now
	l.UpdatedAt = tx.now
	l.Version = 1
	tx.state.inventory[key] = l
	tx.recordChange(Change{Entity: domain.EntityInventoryLine, Action: domain.ActionCreate, After: l})
	return l, nil
}

// UpdateInventoryLine mutates the stock line for a bank/type pair.
func (tx *transaction) UpdateInventoryLine(bankID string, t domain.BloodType, mutator func(*InventoryLine) error) (InventoryLine, error) {
	key := domain.InventoryLineKey(bankID, t)
	current, ok := tx.state.inventory[key]
	if !ok {
		return InventoryLine{}, domain.ErrInventoryLineNotFound
	}
	before := current
	if err := mutator(&current); err != nil {
		return InventoryLine{}, err
	}
	current.ID = before.ID
	current.BankID = bankID
	current.BloodType = t
	current.UpdatedAt = tx.now
	current.Version = before.Version + 1
	tx.state.inventory[key] = current
	tx.recordChange(Change{Entity: domain.EntityInventoryLine, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// FindFacility retrieves a facility by ID within the transaction.
func (tx *transaction) FindFacility(id string) (Facility, bool) {
	return newTransactionView(&tx.state).FindFacility(id)
}

// FindBloodBank retrieves a blood bank by ID within the transaction.
func (tx *transaction) FindBloodBank(id string) (BloodBank, bool) {
	return newTransactionView(&tx.state).FindBloodBank(id)
}

// FindBloodRequest retrieves a request by ID within the transaction.
func (tx *transaction) FindBloodRequest(id string) (BloodRequest, bool) {
	return newTransactionView(&tx.state).FindBloodRequest(id)
}

// FindInventoryLine retrieves the stock line for a bank/type pair.
func (tx *transaction) FindInventoryLine(bankID string, t domain.BloodType) (InventoryLine, bool) {
	return newTransactionView(&tx.state).FindInventoryLine(bankID, t)
}

// Read helpers ---------------------------------------------------------------

// GetBloodRequest retrieves a request by ID from committed state.
func (s *Store) GetBloodRequest(id string) (BloodRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.requests[id]
	if !ok {
		return BloodRequest{}, false
	}
	return cloneRequest(r), true
}

// ListBloodRequests returns all requests from committed state.
func (s *Store) ListBloodRequests() []BloodRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]BloodRequest, 0, len(s.state.requests))
	for _, r := range s.state.requests {
		out = append(out, cloneRequest(r))
	}
	return out
}

// GetBloodBank retrieves a blood bank by ID.
func (s *Store) GetBloodBank(id string) (BloodBank, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.state.banks[id]
	if !ok {
		return BloodBank{}, false
	}
	return cloneBank(b), true
}

// ListBloodBanks returns all blood banks.
func (s *Store) ListBloodBanks() []BloodBank {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]BloodBank, 0, len(s.state.banks))
	for _, b := range s.state.banks {
		out = append(out, cloneBank(b))
	}
	return out
}

// GetFacility retrieves a facility by ID.
func (s *Store) GetFacility(id string) (Facility, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.state.facilities[id]
	if !ok {
		return Facility{}, false
	}
	return cloneFacility(f), true
}

// ListFacilities returns all facilities.
func (s *Store) ListFacilities() []Facility {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Facility, 0, len(s.state.facilities))
	for _, f := range s.state.facilities {
		out = append(out, cloneFacility(f))
	}
	return out
}

// GetInventoryLine retrieves the stock line for a bank/type pair.
func (s *Store) GetInventoryLine(bankID string, t domain.BloodType) (InventoryLine, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.state.inventory[domain.InventoryLineKey(bankID, t)]
	return l, ok
}

// ListInventoryLines returns all stock lines.
func (s *Store) ListInventoryLines() []InventoryLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]InventoryLine, 0, len(s.state.inventory))
	for _, l := range s.state.inventory {
		out = append(out, l)
	}
	return out
}

// ExportState returns a deep copy of the committed state for snapshotting.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := Snapshot{
		Facilities: make(map[string]Facility, len(s.state.facilities)),
		Banks:      make(map[string]BloodBank, len(s.state.banks)),
		Requests:   make(map[string]BloodRequest, len(s.state.requests)),
		Inventory:  make(map[string]InventoryLine, len(s.state.inventory)),
	}
	for k, v := range s.state.facilities {
		snap.Facilities[k] = cloneFacility(v)
	}
	for k, v := range s.state.banks {
		snap.Banks[k] = cloneBank(v)
	}
	for k, v := range s.state.requests {
		snap.Requests[k] = cloneRequest(v)
	}
	for k, v := range s.state.inventory {
		snap.Inventory[k] = v
	}
	return snap
}

// ImportState replaces the committed state with the supplied snapshot.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := newMemoryState()
	for k, v := range snap.Facilities {
		state.facilities[k] = cloneFacility(v)
	}
	for k, v := range snap.Banks {
		state.banks[k] = cloneBank(v)
	}
	for k, v := range snap.Requests {
		state.requests[k] = cloneRequest(v)
	}
	for k, v := range snap.Inventory {
		state.inventory[k] = v
	}
	s.state = state
}
