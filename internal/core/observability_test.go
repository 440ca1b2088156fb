package core_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"hemocore/internal/core"
	"hemocore/pkg/domain"
)

func TestExpvarMetricsRecorderObservation(t *testing.T) {
	ctx := context.Background()
	rec := core.NewExpvarMetricsRecorder("")
	svc := newTestService(t, core.WithMetrics(rec))

	registerFacility(t, svc, "Metrics Hospital", nil)
	if _, _, err := svc.CreateRequest(ctx, core.CreateRequestInput{
		FacilityID: "missing", BloodType: domain.APos, Units: 1, RequiredBy: time.Now().Add(time.Hour),
	}); err == nil {
		t.Fatal("expected error for unknown facility")
	}

	snap := rec.Snapshot()
	if got := snap["register_facility"]; got.Count != 1 || got.Errors != 0 {
		t.Fatalf("expected one clean register_facility observation, got %+v", got)
	}
	if got := snap["create_request"]; got.Count != 1 || got.Errors != 1 {
		t.Fatalf("expected one failed create_request observation, got %+v", got)
	}
	if got := snap["register_facility"]; got.MaxMS > got.TotalMS {
		t.Fatalf("max duration cannot exceed total: %+v", got)
	}
	if rec.Name() == "" {
		t.Fatal("expected generated recorder name")
	}
}

func TestJSONTraceTracerEmitsSpans(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	svc := newTestService(t, core.WithTracer(core.NewJSONTracer(&buf)))

	registerBank(t, svc, "Trace Bank", nil)
	if _, err := svc.ListInventory(ctx, "missing"); err == nil {
		t.Fatal("expected error for unknown bank")
	}

	dec := json.NewDecoder(&buf)
	var entries []core.JSONTraceEntry
	for dec.More() {
		var e core.JSONTraceEntry
		if err := dec.Decode(&e); err != nil {
			t.Fatalf("decode trace entry: %v", err)
		}
		entries = append(entries, e)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 trace entries, got %d", len(entries))
	}
	if entries[0].Operation != "register_bank" || entries[0].Status != "success" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Operation != "list_inventory" || entries[1].Status != "error" || entries[1].Error == "" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}
