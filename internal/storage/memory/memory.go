// Package memory is a process-local expense store used for development and
// tests. Data does not survive a restart.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cospese/internal/core"
	"cospese/internal/storage"
)

type Store struct {
	mu       sync.Mutex
	nextID   int64
	items    []core.Expense
	exported map[int64]time.Time

	accounts map[string]int64
	users    []core.User
}

func New() *Store {
	return &Store{
		exported: make(map[int64]time.Time),
		accounts: make(map[string]int64),
	}
}

// NewFromFile seeds the store with the users listed in path.
func NewFromFile(path string) (*Store, error) {
	seeds, err := storage.ReadSeedFile(path)
	if err != nil {
		return nil, err
	}
	s := New()
	if err := s.SeedUsers(context.Background(), seeds); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

func (s *Store) FindExpenses(_ context.Context, q core.Query) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.items {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	core.SortExpenses(out)
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, accountID, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(accountID, id)
	if i < 0 {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	return s.items[i], nil
}

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	e.ID = s.nextID
	e.IsApproved = false
	e.ApprovedAt = time.Time{}
	e.ApprovedBy = 0
	s.items = append(s.items, e)
	return e, nil
}

// UpdateExpense applies fn to a copy and stores it only when fn reports a
// change and returns no error, mirroring a rolled back transaction.
func (s *Store) UpdateExpense(_ context.Context, accountID, id int64, fn func(*core.Expense) (bool, error)) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(accountID, id)
	if i < 0 {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	e := s.items[i]
	changed, err := fn(&e)
	if err != nil {
		return core.Expense{}, err
	}
	if !changed {
		return s.items[i], nil
	}
	// Identity and ownership are immutable.
	e.ID, e.AccountID, e.OwnerID = s.items[i].ID, s.items[i].AccountID, s.items[i].OwnerID
	s.items[i] = e
	return e, nil
}

func (s *Store) ListPendingExports(_ context.Context, limit int) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Expense
	for _, e := range s.items {
		if !e.IsApproved {
			continue
		}
		if _, done := s.exported[e.ID]; done {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkExported(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.items {
		if e.ID == id && e.IsApproved {
			s.exported[id] = at
			return nil
		}
	}
	return fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
}

func (s *Store) UserByName(_ context.Context, name string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Name == name {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("user %s: %w", name, core.ErrNotFound)
}

func (s *Store) UserByID(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			return u, nil
		}
	}
	return core.User{}, fmt.Errorf("user %d: %w", id, core.ErrNotFound)
}

func (s *Store) AccountUsers(_ context.Context, accountID int64) ([]core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.User
	for _, u := range s.users {
		if u.AccountID == accountID {
			out = append(out, u)
		}
	}
	return out, nil
}

// SeedUsers registers missing accounts and users, then links divorcees in
// both directions. Existing users keep their ids.
func (s *Store) SeedUsers(_ context.Context, seeds []storage.SeedUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sd := range seeds {
		acc, ok := s.accounts[sd.Account]
		if !ok {
			acc = int64(len(s.accounts) + 1)
			s.accounts[sd.Account] = acc
		}
		if s.userIndex(sd.User) >= 0 {
			continue
		}
		s.users = append(s.users, core.User{
			ID:        int64(len(s.users) + 1),
			Name:      sd.User,
			AccountID: acc,
		})
	}
	for _, sd := range seeds {
		if sd.Divorcee == "" {
			continue
		}
		a, b := s.userIndex(sd.User), s.userIndex(sd.Divorcee)
		if b < 0 {
			s.users[a].DivorceeID = 0
			continue
		}
		s.users[a].DivorceeID = s.users[b].ID
		s.users[b].DivorceeID = s.users[a].ID
	}
	return nil
}

func (s *Store) indexOf(accountID, id int64) int {
	for i, e := range s.items {
		if e.ID == id && e.AccountID == accountID {
			return i
		}
	}
	return -1
}

func (s *Store) userIndex(name string) int {
	for i, u := range s.users {
		if u.Name == name {
			return i
		}
	}
	return -1
}
