package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"hemocore/internal/infra/persistence/sqlite"
	"hemocore/pkg/domain"
)

func TestStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hemocore.db")

	store, err := sqlite.NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	var facility domain.Facility
	var bank domain.BloodBank
	var request domain.BloodRequest
	if _, err := store.RunInTransaction(ctx, func(tx domain.Transaction) error {
		var txErr error
		if facility, txErr = tx.CreateFacility(domain.Facility{Name: "Durable Hospital"}); txErr != nil {
			return txErr
		}
		if bank, txErr = tx.CreateBloodBank(domain.BloodBank{
			Name:     "Durable Bank",
			Location: &domain.Coordinates{Latitude: 40.0, Longitude: -75.0},
		}); txErr != nil {
			return txErr
		}
		if _, txErr = tx.UpsertInventoryLine(domain.InventoryLine{
			BankID: bank.ID, BloodType: domain.ONeg, UnitsAvailable: 7, MinThreshold: 2,
		}); txErr != nil {
			return txErr
		}
		request, txErr = tx.CreateBloodRequest(domain.BloodRequest{
			FacilityID: facility.ID,
			BloodType:  domain.ONeg,
			Units:      3,
			Urgency:    domain.UrgencyUrgent,
			RequiredBy: time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC),
			Status:     domain.StatusPending,
		})
		return txErr
	}); err != nil {
		t.Fatalf("seed transaction: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := sqlite.NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	gotBank, ok := reopened.GetBloodBank(bank.ID)
	if !ok {
		t.Fatal("bank lost across reopen")
	}
	if gotBank.Location == nil || gotBank.Location.Latitude != 40.0 {
		t.Fatalf("bank location lost across reopen: %+v", gotBank.Location)
	}
	line, ok := reopened.GetInventoryLine(bank.ID, domain.ONeg)
	if !ok || line.UnitsAvailable != 7 || line.MinThreshold != 2 {
		t.Fatalf("inventory lost across reopen: %+v ok=%v", line, ok)
	}
	gotReq, ok := reopened.GetBloodRequest(request.ID)
	if !ok {
		t.Fatal("request lost across reopen")
	}
	if gotReq.Status != domain.StatusPending || gotReq.Urgency != domain.UrgencyUrgent {
		t.Fatalf("request fields lost across reopen: %+v", gotReq)
	}
	if !gotReq.RequiredBy.Equal(request.RequiredBy) {
		t.Fatalf("deadline drifted: %s vs %s", gotReq.RequiredBy, request.RequiredBy)
	}

	// Mutations on the reopened store persist too.
	if _, err := reopened.RunInTransaction(ctx, func(tx domain.Transaction) error {
		_, txErr := tx.UpdateInventoryLine(bank.ID, domain.ONeg, func(l *domain.InventoryLine) error {
			l.UnitsAvailable -= 3
			return nil
		})
		return txErr
	}); err != nil {
		t.Fatalf("mutate reopened store: %v", err)
	}
	if line, _ := reopened.GetInventoryLine(bank.ID, domain.ONeg); line.UnitsAvailable != 4 {
		t.Fatalf("expected 4 units after decrement, got %d", line.UnitsAvailable)
	}
}

func TestEmptyDatabaseStartsClean(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh.db")
	store, err := sqlite.NewStore(path, domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = store.Close() }()

	if got := store.ListFacilities(); len(got) != 0 {
		t.Fatalf("fresh store should be empty, got %d facilities", len(got))
	}
	if store.Path() != path {
		t.Fatalf("unexpected path %q", store.Path())
	}
}
