package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"cospese/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "cospese.db"))
	if err != nil {
		t.Fatalf("NewSQLiteRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	seeds := []SeedUser{
		{Account: "home", User: "alice", Divorcee: "bob"},
		{Account: "home", User: "bob"},
		{Account: "other", User: "carol"},
	}
	if err := repo.SeedUsers(context.Background(), seeds); err != nil {
		t.Fatalf("SeedUsers() error = %v", err)
	}
	return repo
}

func mustUser(t *testing.T, repo *SQLiteRepository, name string) core.User {
	t.Helper()
	u, err := repo.UserByName(context.Background(), name)
	if err != nil {
		t.Fatalf("UserByName(%s) error = %v", name, err)
	}
	return u
}

func draft(owner core.User, date core.Date, cents int64) core.Expense {
	return core.Expense{
		AccountID: owner.AccountID,
		OwnerID:   owner.ID,
		ExpenseFields: core.ExpenseFields{
			DatePurchased:       date,
			MonthBalanced:       int(date.Month()),
			YearBalanced:        date.Year(),
			Sum:                 core.Money{Cents: cents},
			DivorceeParticipate: 50,
			Desc:                "groceries",
		},
	}
}

func TestSeedUsersLinksDivorcees(t *testing.T) {
	repo := newTestRepo(t)
	alice, bob, carol := mustUser(t, repo, "alice"), mustUser(t, repo, "bob"), mustUser(t, repo, "carol")

	if alice.AccountID != bob.AccountID {
		t.Errorf("alice and bob should share an account: %d vs %d", alice.AccountID, bob.AccountID)
	}
	if alice.DivorceeID != bob.ID || bob.DivorceeID != alice.ID {
		t.Errorf("divorcee link not symmetric: alice=%+v bob=%+v", alice, bob)
	}
	if carol.DivorceeID != 0 {
		t.Errorf("carol.DivorceeID = %d, want 0", carol.DivorceeID)
	}

	// Seeding twice is idempotent.
	if err := repo.SeedUsers(context.Background(), []SeedUser{{Account: "home", User: "alice", Divorcee: "bob"}}); err != nil {
		t.Fatalf("second SeedUsers() error = %v", err)
	}
	again := mustUser(t, repo, "alice")
	if again.ID != alice.ID {
		t.Errorf("alice id changed from %d to %d", alice.ID, again.ID)
	}

	members, err := repo.AccountUsers(context.Background(), alice.AccountID)
	if err != nil || len(members) != 2 {
		t.Fatalf("AccountUsers() = %v, %v", members, err)
	}
}

func TestCreateAndGetExpense(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice := mustUser(t, repo, "alice")

	in := draft(alice, core.NewDate(2024, 3, 15), 1234)
	in.Notes = "weekly"
	created, err := repo.CreateExpense(ctx, in)
	if err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}
	if created.ID == 0 {
		t.Fatal("expected an id")
	}

	got, err := repo.GetExpense(ctx, alice.AccountID, created.ID)
	if err != nil {
		t.Fatalf("GetExpense() error = %v", err)
	}
	if got.Sum.Cents != 1234 || got.Notes != "weekly" || got.IsApproved {
		t.Errorf("unexpected expense: %+v", got)
	}
	if got.DatePurchased.String() != "2024-03-15" {
		t.Errorf("DatePurchased = %s", got.DatePurchased)
	}
}

func TestGetExpenseScopedByAccount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice, carol := mustUser(t, repo, "alice"), mustUser(t, repo, "carol")

	e, err := repo.CreateExpense(ctx, draft(alice, core.NewDate(2024, 3, 1), 100))
	if err != nil {
		t.Fatal(err)
	}
	_, err = repo.GetExpense(ctx, carol.AccountID, e.ID)
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetExpense() from another account error = %v, want ErrNotFound", err)
	}
}

func TestFindExpensesFiltersAndOrders(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice, bob := mustUser(t, repo, "alice"), mustUser(t, repo, "bob")

	for _, e := range []core.Expense{
		draft(alice, core.NewDate(2024, 3, 1), 100),
		draft(bob, core.NewDate(2024, 3, 20), 200),
		draft(alice, core.NewDate(2024, 3, 20), 300),
		draft(alice, core.NewDate(2024, 4, 2), 400),
	} {
		if _, err := repo.CreateExpense(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	f := core.MonthlyFilter{Period: core.Period{Month: 3, Year: 2024}, Approved: core.ApprovedAll, By: core.ByAll}
	items, err := repo.FindExpenses(ctx, f.Query(alice))
	if err != nil {
		t.Fatalf("FindExpenses() error = %v", err)
	}
	wantCents := []int64{300, 200, 100}
	if len(items) != len(wantCents) {
		t.Fatalf("got %d items, want %d", len(items), len(wantCents))
	}
	for i, want := range wantCents {
		if items[i].Sum.Cents != want {
			t.Errorf("items[%d].Sum = %d, want %d", i, items[i].Sum.Cents, want)
		}
	}

	f.By = core.ByDivorcee
	items, err = repo.FindExpenses(ctx, f.Query(alice))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 || items[0].OwnerID != bob.ID {
		t.Errorf("divorcee filter returned %+v", items)
	}

	f.By, f.Approved = core.ByAll, core.ApprovedYes
	items, err = repo.FindExpenses(ctx, f.Query(alice))
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 0 {
		t.Errorf("approved filter returned %d drafts", len(items))
	}
}

func TestUpdateExpenseWritesOnlyOnChange(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice, bob := mustUser(t, repo, "alice"), mustUser(t, repo, "bob")

	e, err := repo.CreateExpense(ctx, draft(alice, core.NewDate(2024, 3, 1), 100))
	if err != nil {
		t.Fatal(err)
	}

	at := time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC)
	updated, err := repo.UpdateExpense(ctx, alice.AccountID, e.ID, func(x *core.Expense) (bool, error) {
		return x.MarkApproved(bob.ID, at), nil
	})
	if err != nil {
		t.Fatalf("UpdateExpense() error = %v", err)
	}
	if !updated.IsApproved || updated.ApprovedBy != bob.ID {
		t.Errorf("unexpected expense after approve: %+v", updated)
	}

	got, _ := repo.GetExpense(ctx, alice.AccountID, e.ID)
	if !got.IsApproved || !got.ApprovedAt.Equal(at) {
		t.Errorf("approval not persisted: %+v", got)
	}

	sentinel := errors.New("boom")
	_, err = repo.UpdateExpense(ctx, alice.AccountID, e.ID, func(x *core.Expense) (bool, error) {
		x.Desc = "changed"
		return true, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("UpdateExpense() error = %v, want sentinel", err)
	}
	got, _ = repo.GetExpense(ctx, alice.AccountID, e.ID)
	if got.Desc != "groceries" {
		t.Errorf("failed update leaked: Desc = %q", got.Desc)
	}
}

func TestPendingExports(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	alice, bob := mustUser(t, repo, "alice"), mustUser(t, repo, "bob")

	e, _ := repo.CreateExpense(ctx, draft(alice, core.NewDate(2024, 3, 1), 100))
	if _, err := repo.CreateExpense(ctx, draft(alice, core.NewDate(2024, 3, 2), 200)); err != nil {
		t.Fatal(err)
	}

	pending, err := repo.ListPendingExports(ctx, 10)
	if err != nil || len(pending) != 0 {
		t.Fatalf("drafts should not be pending: %v, %v", pending, err)
	}

	if _, err := repo.UpdateExpense(ctx, alice.AccountID, e.ID, func(x *core.Expense) (bool, error) {
		return x.MarkApproved(bob.ID, time.Now()), nil
	}); err != nil {
		t.Fatal(err)
	}

	pending, _ = repo.ListPendingExports(ctx, 10)
	if len(pending) != 1 || pending[0].ID != e.ID {
		t.Fatalf("pending = %+v", pending)
	}
	if err := repo.MarkExported(ctx, e.ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	pending, _ = repo.ListPendingExports(ctx, 10)
	if len(pending) != 0 {
		t.Errorf("exported expense still pending: %+v", pending)
	}
}
