package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"hemocore/internal/infra/persistence/memory"
	"hemocore/pkg/domain"
)

// Service exposes the transactional operations of the blood supply core:
// request creation and lifecycle, inventory matching, fulfillment, and
// urgency ranking. All mutations run inside a single store transaction with
// the rules engine evaluated pre-commit.
type Service struct {
	store   domain.PersistentStore
	metrics MetricsRecorder
	tracer  Tracer
	nowFn   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches a metrics recorder to the service.
func WithMetrics(rec MetricsRecorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// WithTracer attaches a tracer to the service.
func WithTracer(t Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithNowFunc overrides the service clock; tests use it to pin time.
func WithNowFunc(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.nowFn = fn
		}
	}
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{
		store: store,
		nowFn: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service and in-memory store with the given
// rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore {
	return s.store
}

// CreateRequestInput carries the caller-supplied fields of a new request.
type CreateRequestInput struct {
	FacilityID  string
	BloodType   BloodType
	Units       int
	Urgency     UrgencyLevel
	RequiredBy  time.Time
	PatientInfo *string
	Notes       *string
}

// CreateRequest validates input and persists a new pending blood request.
// Validation failures are rejected before any write.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (BloodRequest, Result, error) {
	ctx, done := s.instrument(ctx, "create_request")
	var created BloodRequest
	var res Result
	err := func() error {
		if !in.BloodType.Valid() {
			return domain.InvalidBloodTypeError{Input: string(in.BloodType)}
		}
		if in.Units <= 0 {
			return domain.ErrInvalidQuantity
		}
		urgency := in.Urgency
		if urgency == "" {
			urgency = UrgencyRoutine
		}
		if !urgency.Valid() {
			return domain.InvalidUrgencyError{Input: string(in.Urgency)}
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, ok := tx.FindFacility(in.FacilityID); !ok {
				return domain.ErrFacilityNotFound
			}
			var txErr error
			created, txErr = tx.CreateBloodRequest(BloodRequest{
				FacilityID:  in.FacilityID,
				BloodType:   in.BloodType,
				Units:       in.Units,
				Urgency:     urgency,
				RequiredBy:  in.RequiredBy,
				PatientInfo: in.PatientInfo,
				Notes:       in.Notes,
				Status:      StatusPending,
			})
			return txErr
		})
		return err
	}()
	done(err)
	return created, res, err
}

// FindMatches returns ranked candidates able to cover unitsNeeded of the
// requested type. It reads a stable snapshot, never mutates, and returns an
// empty list when no compatible stock exists anywhere.
func (s *Service) FindMatches(ctx context.Context, requested BloodType, unitsNeeded int, origin *Coordinates) ([]MatchCandidate, error) {
	ctx, done := s.instrument(ctx, "find_matches")
	var matches []MatchCandidate
	err := func() error {
		if !requested.Valid() {
			return domain.InvalidBloodTypeError{Input: string(requested)}
		}
		if unitsNeeded <= 0 {
			return domain.ErrInvalidQuantity
		}
		return s.store.View(ctx, func(view domain.TransactionView) error {
			matches = collectCandidates(view, requested, origin)
			rankCandidates(matches)
			return nil
		})
	}()
	done(err)
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []MatchCandidate{}
	}
	return matches, nil
}

// FulfillRequest atomically re-validates the request and the chosen bank's
// stock, decrements inventory, and marks the request fulfilled. Any failure
// aborts with no partial state; concurrent attempts on one request yield
// exactly one success.
func (s *Service) FulfillRequest(ctx context.Context, requestID, bankID string, unitsProvided int, notes *string) (BloodRequest, Result, error) {
	ctx, done := s.instrument(ctx, "fulfill_request")
	var fulfilled BloodRequest
	var res Result
	err := func() error {
		if unitsProvided <= 0 {
			return domain.ErrInvalidQuantity
		}
		now := s.nowFn()
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			request, ok := tx.FindBloodRequest(requestID)
			if !ok {
				return domain.ErrRequestNotFound
			}
			if !request.Open(now) {
				return domain.ErrRequestAlreadyProcessed
			}
			if _, ok := tx.FindBloodBank(bankID); !ok {
				return domain.ErrBankNotFound
			}
			line, ok := tx.FindInventoryLine(bankID, request.BloodType)
			if !ok {
				return domain.ErrInventoryLineNotFound
			}
			if line.UnitsAvailable < unitsProvided {
				return domain.ErrInsufficientInventory
			}
			if _, err := tx.UpdateInventoryLine(bankID, request.BloodType, func(l *InventoryLine) error {
				l.UnitsAvailable -= unitsProvided
				return nil
			}); err != nil {
				return err
			}
			var txErr error
			fulfilled, txErr = tx.UpdateBloodRequest(requestID, func(r *BloodRequest) error {
				r.Status = StatusFulfilled
				r.FulfilledBy = &bankID
				r.UnitsProvided = &unitsProvided
				at := now
				r.FulfilledAt = &at
				if notes != nil {
					r.Notes = notes
				}
				return nil
			})
			return txErr
		})
		return err
	}()
	done(err)
	return fulfilled, res, err
}

// CancelRequest transitions a pending request to cancelled with the required
// reason. Non-pending requests fail with ErrRequestAlreadyProcessed.
func (s *Service) CancelRequest(ctx context.Context, requestID, reason string) (BloodRequest, Result, error) {
	ctx, done := s.instrument(ctx, "cancel_request")
	var cancelled BloodRequest
	var res Result
	err := func() error {
		if strings.TrimSpace(reason) == "" {
			return domain.ErrCancelReasonRequired
		}
		now := s.nowFn()
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			request, ok := tx.FindBloodRequest(requestID)
			if !ok {
				return domain.ErrRequestNotFound
			}
			if !request.Open(now) {
				return domain.ErrRequestAlreadyProcessed
			}
			var txErr error
			cancelled, txErr = tx.UpdateBloodRequest(requestID, func(r *BloodRequest) error {
				r.Status = StatusCancelled
				r.CancelReason = &reason
				return nil
			})
			return txErr
		})
		return err
	}()
	done(err)
	return cancelled, res, err
}

// UrgentRequests returns open urgent and emergency requests ordered by tier
// (emergency first) then ascending deadline. The listing is recomputed from
// committed state on every call.
func (s *Service) UrgentRequests(ctx context.Context) ([]BloodRequest, error) {
	ctx, done := s.instrument(ctx, "urgent_requests")
	var out []BloodRequest
	err := s.store.View(ctx, func(view domain.TransactionView) error {
		out = rankUrgent(view.ListBloodRequests(), s.nowFn())
		return nil
	})
	done(err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GetRequest retrieves a request by ID.
func (s *Service) GetRequest(ctx context.Context, id string) (BloodRequest, error) {
	_, done := s.instrument(ctx, "get_request")
	r, ok := s.store.GetBloodRequest(id)
	var err error
	if !ok {
		err = domain.ErrRequestNotFound
	}
	done(err)
	return r, err
}

// ListRequests returns requests, optionally filtered by externally observable
// status (expired selects overdue pending requests), ordered by creation time.
func (s *Service) ListRequests(ctx context.Context, status RequestStatus) ([]BloodRequest, error) {
	_, done := s.instrument(ctx, "list_requests")
	now := s.nowFn()
	all := s.store.ListBloodRequests()
	out := make([]BloodRequest, 0, len(all))
	for _, r := range all {
		if status != "" && r.EffectiveStatus(now) != status {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	done(nil)
	return out, nil
}

// RegisterFacility persists a new requesting facility.
func (s *Service) RegisterFacility(ctx context.Context, facility Facility) (Facility, Result, error) {
	ctx, done := s.instrument(ctx, "register_facility")
	var created Facility
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		created, txErr = tx.CreateFacility(facility)
		return txErr
	})
	done(err)
	return created, res, err
}

// RegisterBank persists a new blood bank.
func (s *Service) RegisterBank(ctx context.Context, bank BloodBank) (BloodBank, Result, error) {
	ctx, done := s.instrument(ctx, "register_bank")
	var created BloodBank
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		created, txErr = tx.CreateBloodBank(bank)
		return txErr
	})
	done(err)
	return created, res, err
}

// UpsertInventoryLine creates or replaces a bank's stock line for one blood
// type. Lines are never deleted, only adjusted to zero.
func (s *Service) UpsertInventoryLine(ctx context.Context, line InventoryLine) (InventoryLine, Result, error) {
	ctx, done := s.instrument(ctx, "upsert_inventory")
	var stored InventoryLine
	var res Result
	err := func() error {
		if !line.BloodType.Valid() {
			return domain.InvalidBloodTypeError{Input: string(line.BloodType)}
		}
		if line.UnitsAvailable < 0 || line.UnitsReserved < 0 {
			return domain.ErrInvalidQuantity
		}
		var err error
		res, err = s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var txErr error
			stored, txErr = tx.UpsertInventoryLine(line)
			return txErr
		})
		return err
	}()
	done(err)
	return stored, res, err
}

// AdjustInventory applies an operator stock delta to an existing line. The
// non-negative stock rule blocks adjustments that would underflow.
func (s *Service) AdjustInventory(ctx context.Context, bankID string, t BloodType, delta int) (InventoryLine, Result, error) {
	ctx, done := s.instrument(ctx, "adjust_inventory")
	var adjusted InventoryLine
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		adjusted, txErr = tx.UpdateInventoryLine(bankID, t, func(l *InventoryLine) error {
			l.UnitsAvailable += delta
			return nil
		})
		return txErr
	})
	done(err)
	return adjusted, res, err
}

// ListInventory returns a bank's stock lines in canonical blood type order.
func (s *Service) ListInventory(ctx context.Context, bankID string) ([]InventoryLine, error) {
	_, done := s.instrument(ctx, "list_inventory")
	var err error
	if _, ok := s.store.GetBloodBank(bankID); !ok {
		err = domain.ErrBankNotFound
		done(err)
		return nil, err
	}
	all := s.store.ListInventoryLines()
	out := make([]InventoryLine, 0, len(all))
	for _, l := range all {
		if l.BankID == bankID {
			out = append(out, l)
		}
	}
	sortInventoryLines(out)
	done(nil)
	return out, nil
}

// LowStock returns every line at or below its configured minimum threshold,
// across all banks, for alerting consumers.
func (s *Service) LowStock(ctx context.Context) ([]InventoryLine, error) {
	_, done := s.instrument(ctx, "low_stock")
	all := s.store.ListInventoryLines()
	out := make([]InventoryLine, 0, len(all))
	for _, l := range all {
		if l.BelowThreshold() {
			out = append(out, l)
		}
	}
	sortInventoryLines(out)
	done(nil)
	return out, nil
}

// ExpireOverdueRequests persists the expired status for every pending request
// whose deadline has passed, returning the affected requests. Calling it is
// optional: EffectiveStatus derives expiry without it.
func (s *Service) ExpireOverdueRequests(ctx context.Context) ([]BloodRequest, Result, error) {
	ctx, done := s.instrument(ctx, "expire_overdue")
	now := s.nowFn()
	var expired []BloodRequest
	res, err := s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		for _, r := range tx.Snapshot().ListBloodRequests() {
			if r.Status != StatusPending || r.EffectiveStatus(now) != StatusExpired {
				continue
			}
			updated, txErr := tx.UpdateBloodRequest(r.ID, func(req *BloodRequest) error {
				req.Status = StatusExpired
				return nil
			})
			if txErr != nil {
				return txErr
			}
			expired = append(expired, updated)
		}
		return nil
	})
	done(err)
	return expired, res, err
}

func sortInventoryLines(lines []InventoryLine) {
	rank := make(map[BloodType]int, len(domain.BloodTypes))
	for i, t := range domain.BloodTypes {
		rank[t] = i
	}
	sort.SliceStable(lines, func(i, j int) bool {
		if lines[i].BankID != lines[j].BankID {
			return lines[i].BankID < lines[j].BankID
		}
		return rank[lines[i].BloodType] < rank[lines[j].BloodType]
	})
}
