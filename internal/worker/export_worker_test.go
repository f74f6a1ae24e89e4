package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"cospese/internal/amqp"
	"cospese/internal/core"
	"cospese/internal/services"
	"cospese/internal/sheets"
	"cospese/internal/storage"
	"cospese/internal/storage/memory"
)

type fakeLedger struct {
	mu      sync.Mutex
	entries map[int64]sheets.LedgerEntry
	fail    map[int64]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: map[int64]sheets.LedgerEntry{}, fail: map[int64]bool{}}
}

func (l *fakeLedger) AppendEntry(_ context.Context, entry sheets.LedgerEntry) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail[entry.Expense.ID] {
		return "", errors.New("sheets unavailable")
	}
	l.entries[entry.Expense.ID] = entry
	return "ref", nil
}

type setup struct {
	store  *memory.Store
	ledger *fakeLedger
	worker *ExportWorker
	wf     *services.ExpenseWorkflow
	u1, u2 core.User
}

func newSetup(t *testing.T) setup {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	if err := store.SeedUsers(ctx, []storage.SeedUser{
		{Account: "home", User: "alice", Divorcee: "bob"},
		{Account: "home", User: "bob"},
	}); err != nil {
		t.Fatal(err)
	}
	u1, _ := store.UserByName(ctx, "alice")
	u2, _ := store.UserByName(ctx, "bob")
	ledger := newFakeLedger()
	now := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	wf := services.NewExpenseWorkflow(store, core.UpdateWindow{MonthsBack: 1}, nil).
		WithClock(func() time.Time { return now })
	return setup{store: store, ledger: ledger, worker: NewExportWorker(store, ledger, 10), wf: wf, u1: u1, u2: u2}
}

func (s setup) approvedExpense(t *testing.T) core.Expense {
	t.Helper()
	ctx := context.Background()
	e, err := s.wf.Create(ctx, s.u1, core.ExpenseFields{
		DatePurchased:       core.NewDate(2024, 3, 1),
		MonthBalanced:       3,
		YearBalanced:        2024,
		Sum:                 core.Money{Cents: 500},
		DivorceeParticipate: 50,
	})
	if err != nil {
		t.Fatal(err)
	}
	out, err := s.wf.Approve(ctx, s.u2, e.ID)
	if err != nil || !out.Changed {
		t.Fatalf("approve: %+v %v", out, err)
	}
	return out.Expense
}

func TestHandleEventExportsApproved(t *testing.T) {
	s := newSetup(t)
	e := s.approvedExpense(t)

	msg := amqp.NewExpenseEventMessage(services.EventExpenseApproved, e, s.u2.ID)
	if err := s.worker.HandleEvent(context.Background(), msg); err != nil {
		t.Fatalf("HandleEvent() error = %v", err)
	}
	entry, ok := s.ledger.entries[e.ID]
	if !ok {
		t.Fatal("expense not exported")
	}
	if entry.OwnerName != "alice" || entry.ApproverName != "bob" {
		t.Errorf("entry names = %q, %q", entry.OwnerName, entry.ApproverName)
	}

	pending, _ := s.store.ListPendingExports(context.Background(), 10)
	if len(pending) != 0 {
		t.Errorf("expense still pending after export: %v", pending)
	}
}

func TestHandleEventIgnoresOtherTypesAndMissing(t *testing.T) {
	s := newSetup(t)
	ctx := context.Background()

	created := &amqp.ExpenseEventMessage{Type: services.EventExpenseCreated, ExpenseID: 1, AccountID: s.u1.AccountID}
	if err := s.worker.HandleEvent(ctx, created); err != nil {
		t.Errorf("created event error = %v", err)
	}
	missing := &amqp.ExpenseEventMessage{Type: services.EventExpenseApproved, ExpenseID: 99, AccountID: s.u1.AccountID}
	if err := s.worker.HandleEvent(ctx, missing); err != nil {
		t.Errorf("missing expense error = %v", err)
	}
	if len(s.ledger.entries) != 0 {
		t.Errorf("unexpected exports: %v", s.ledger.entries)
	}
}

func TestHandleEventLedgerFailureRequeues(t *testing.T) {
	s := newSetup(t)
	e := s.approvedExpense(t)
	s.ledger.fail[e.ID] = true

	msg := amqp.NewExpenseEventMessage(services.EventExpenseApproved, e, s.u2.ID)
	if err := s.worker.HandleEvent(context.Background(), msg); err == nil {
		t.Fatal("expected error so the delivery is requeued")
	}
	pending, _ := s.store.ListPendingExports(context.Background(), 10)
	if len(pending) != 1 {
		t.Errorf("failed export should stay pending, got %v", pending)
	}
}

func TestProcessPendingExports(t *testing.T) {
	s := newSetup(t)
	ok := s.approvedExpense(t)
	bad := s.approvedExpense(t)
	s.ledger.fail[bad.ID] = true

	err := s.worker.ProcessPendingExports(context.Background())
	if err == nil {
		t.Error("expected an error for the failed export")
	}
	if _, done := s.ledger.entries[ok.ID]; !done {
		t.Error("healthy expense was not exported")
	}

	delete(s.ledger.fail, bad.ID)
	if err := s.worker.ProcessPendingExports(context.Background()); err != nil {
		t.Fatalf("retry error = %v", err)
	}
	if len(s.ledger.entries) != 2 {
		t.Errorf("entries = %d, want 2", len(s.ledger.entries))
	}
}

func TestRunPollerStopsOnCancel(t *testing.T) {
	s := newSetup(t)
	e := s.approvedExpense(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.worker.RunPoller(ctx, 10*time.Millisecond) }()

	deadline := time.After(2 * time.Second)
	for {
		s.ledger.mu.Lock()
		_, exported := s.ledger.entries[e.ID]
		s.ledger.mu.Unlock()
		if exported {
			break
		}
		select {
		case <-deadline:
			t.Fatal("poller did not export in time")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("RunPoller() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("poller did not stop")
	}
}
