package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"hemocore/pkg/domain"
)

func TestNewStoreAppliesDDLAndLoadsSnapshot(t *testing.T) {
	db, conn := newStubDB()

	banks := map[string]domain.BloodBank{
		"bank-1": {
			Base: domain.Base{ID: "bank-1", Version: 1},
			Name: "Seeded Bank",
		},
	}
	inventory := map[string]domain.InventoryLine{
		"bank-1/O-": {
			Base:           domain.Base{ID: "line-1", Version: 1},
			BankID:         "bank-1",
			BloodType:      domain.ONeg,
			UnitsAvailable: 6,
		},
	}
	seedBucket(t, conn, "banks", banks)
	seedBucket(t, conn, "inventory", inventory)

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	if got, ok := store.GetBloodBank("bank-1"); !ok || got.Name != "Seeded Bank" {
		t.Fatalf("seeded bank not hydrated: %+v ok=%v", got, ok)
	}
	if line, ok := store.GetInventoryLine("bank-1", domain.ONeg); !ok || line.UnitsAvailable != 6 {
		t.Fatalf("seeded inventory not hydrated: %+v ok=%v", line, ok)
	}

	var sawDDL bool
	for _, stmt := range conn.execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE") {
			sawDDL = true
			break
		}
	}
	if !sawDDL {
		t.Fatalf("expected state table DDL on open, got execs: %v", conn.execs)
	}
}

func TestNewStorePingFailureIsTransient(t *testing.T) {
	db, conn := newStubDB()
	conn.failPing = true

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	_, err := NewStore("", domain.NewRulesEngine())
	if err == nil {
		t.Fatal("expected error for unreachable database")
	}
	if !domain.IsTransient(err) {
		t.Fatalf("ping failure must surface as transient, got %v", err)
	}
}

func TestRunInTransactionPersistsBuckets(t *testing.T) {
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("ignored", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	var bank domain.BloodBank
	if _, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		var txErr error
		if bank, txErr = tx.CreateBloodBank(domain.BloodBank{Name: "Persisted Bank"}); txErr != nil {
			return txErr
		}
		_, txErr = tx.UpsertInventoryLine(domain.InventoryLine{
			BankID: bank.ID, BloodType: domain.APos, UnitsAvailable: 4,
		})
		return txErr
	}); err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}

	for _, bucket := range postgresBuckets {
		if _, ok := conn.state[bucket]; !ok {
			t.Fatalf("bucket %s not written, state has %v", bucket, conn.buckets())
		}
	}
	var banks map[string]domain.BloodBank
	if err := json.Unmarshal(conn.state["banks"], &banks); err != nil {
		t.Fatalf("decode banks bucket: %v", err)
	}
	if got, ok := banks[bank.ID]; !ok || got.Name != "Persisted Bank" {
		t.Fatalf("bank missing from persisted bucket: %+v ok=%v", got, ok)
	}
	var inventory map[string]domain.InventoryLine
	if err := json.Unmarshal(conn.state["inventory"], &inventory); err != nil {
		t.Fatalf("decode inventory bucket: %v", err)
	}
	if line, ok := inventory[domain.InventoryLineKey(bank.ID, domain.APos)]; !ok || line.UnitsAvailable != 4 {
		t.Fatalf("inventory missing from persisted bucket: %+v ok=%v", line, ok)
	}
}

func TestRunInTransactionSnapshotFailureIsTransient(t *testing.T) {
	cases := []struct {
		name   string
		induce func(*stubConn)
	}{
		{"begin fails", func(c *stubConn) { c.failBegin = true }},
		{"upsert fails", func(c *stubConn) { c.failExec = true }},
		{"commit fails", func(c *stubConn) { c.failCommit = true }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, conn := newStubDB()
			restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
			defer restore()

			store, err := NewStore("", domain.NewRulesEngine())
			if err != nil {
				t.Fatalf("NewStore: %v", err)
			}
			defer func() { _ = store.Close() }()
			tc.induce(conn)

			var facility domain.Facility
			_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
				var txErr error
				facility, txErr = tx.CreateFacility(domain.Facility{Name: "Unsnapshotted"})
				return txErr
			})
			if !domain.IsTransient(err) {
				t.Fatalf("snapshot failure must surface as transient, got %v", err)
			}
			// The in-memory commit already happened; only durability failed.
			if _, ok := store.GetFacility(facility.ID); !ok {
				t.Fatal("committed record should survive a failed snapshot")
			}
		})
	}
}

func TestBusinessErrorsSkipSnapshot(t *testing.T) {
	db, conn := newStubDB()
	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("", domain.NewRulesEngine())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()

	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, txErr := tx.UpdateBloodRequest("missing", func(r *domain.BloodRequest) error { return nil })
		return txErr
	})
	if !errors.Is(err, domain.ErrRequestNotFound) {
		t.Fatalf("expected ErrRequestNotFound, got %v", err)
	}
	if domain.IsTransient(err) {
		t.Fatal("business failures must not read as transient")
	}
	if len(conn.state) != 0 {
		t.Fatalf("failed transaction must not snapshot, state has %v", conn.buckets())
	}
}

func TestLoadSnapshotCorruptBucket(t *testing.T) {
	db, conn := newStubDB()
	conn.state["requests"] = []byte("{not json")

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore("", domain.NewRulesEngine()); err == nil {
		t.Fatal("expected decode error for corrupt bucket")
	}
}

func seedBucket(t *testing.T, conn *stubConn, bucket string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal %s seed: %v", bucket, err)
	}
	conn.state[bucket] = data
}

// --- stub driver helpers ---

type stubDriver struct {
	conn *stubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) {
	return d.conn, nil
}

// stubConn emulates the single state table: execs records every statement,
// state holds the bucket payloads.
type stubConn struct {
	execs      []string
	state      map[string][]byte
	failPing   bool
	failBegin  bool
	failExec   bool
	failCommit bool
}

func newStubDB() (*sql.DB, *stubConn) {
	conn := &stubConn{state: make(map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		panic(err)
	}
	return db, conn
}

func (c *stubConn) buckets() []string {
	out := make([]string, 0, len(c.state))
	for b := range c.state {
		out = append(out, b)
	}
	return out
}

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, fmt.Errorf("not implemented") }
func (c *stubConn) Close() error                        { return nil }
func (c *stubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *stubConn) Ping(_ context.Context) error {
	if c.failPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func (c *stubConn) BeginTx(_ context.Context, _ driver.TxOptions) (driver.Tx, error) {
	if c.failBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return &stubTx{conn: c}, nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.execs = append(c.execs, query)
	if c.failExec {
		return nil, fmt.Errorf("exec fail")
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO STATE") {
		if len(args) != 2 {
			return nil, fmt.Errorf("expected bucket and payload args, got %d", len(args))
		}
		bucket, ok := args[0].Value.(string)
		if !ok {
			return nil, fmt.Errorf("bucket arg is %T", args[0].Value)
		}
		payload, ok := args[1].Value.([]byte)
		if !ok {
			return nil, fmt.Errorf("payload arg is %T", args[1].Value)
		}
		cp := make([]byte, len(payload))
		copy(cp, payload)
		c.state[bucket] = cp
		return driver.RowsAffected(1), nil
	}
	return driver.RowsAffected(0), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	if !strings.Contains(strings.ToLower(query), "from state") {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	values := make([][]driver.Value, 0, len(c.state))
	for bucket, payload := range c.state {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		values = append(values, []driver.Value{bucket, cp})
	}
	return &stubRows{cols: []string{"bucket", "payload"}, rows: values}, nil
}

type stubTx struct {
	conn *stubConn
}

func (t *stubTx) Commit() error {
	if t.conn.failCommit {
		return fmt.Errorf("commit fail")
	}
	return nil
}
func (t *stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}
