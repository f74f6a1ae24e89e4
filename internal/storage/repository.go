package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cospese/internal/core"

	_ "modernc.org/sqlite"
)

const timestampLayout = time.RFC3339Nano

type SQLiteRepository struct {
	db *sql.DB
}

// sqliteDSN enables foreign keys and waits on locks instead of failing with
// SQLITE_BUSY when the worker and the web process share the file.
func sqliteDSN(dbPath string) string {
	return "file:" + dbPath + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := sqliteDSN(dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// A single connection serializes writers; read-modify-write transactions
	// then never interleave.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// FindExpenses returns the expenses matching q, newest purchase first.
func (r *SQLiteRepository) FindExpenses(ctx context.Context, q core.Query) ([]core.Expense, error) {
	where, args, err := whereClause(q)
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, selectExpenses+where+orderExpenses, args...)
	if err != nil {
		return nil, fmt.Errorf("query expenses: %w", err)
	}
	return collectExpenses(rows)
}

// GetExpense loads one expense. Lookups are always scoped by account.
func (r *SQLiteRepository) GetExpense(ctx context.Context, accountID, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx, selectExpenses+` WHERE id = ? AND account_id = ?`, id, accountID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return e, nil
}

// CreateExpense inserts e as a draft and returns it with its new id.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx, insertExpense,
		e.AccountID, e.OwnerID, e.DatePurchased.String(), e.MonthBalanced, e.YearBalanced,
		e.Sum.Cents, e.DivorceeParticipate, e.Desc, e.PlaceOfPurchase, e.Notes,
		formatTimestamp(e.CreatedAt), formatTimestamp(e.UpdatedAt))
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("read expense id: %w", err)
	}
	e.ID = id
	e.IsApproved = false

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"account_id", e.AccountID,
		"owner_id", e.OwnerID,
		"amount_cents", e.Sum.Cents,
		"month", e.MonthBalanced,
		"year", e.YearBalanced)

	return e, nil
}

// UpdateExpense reads the expense and applies fn inside one transaction.
// The row is written back only when fn reports a change.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, accountID, id int64, fn func(*core.Expense) (bool, error)) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, selectExpenses+` WHERE id = ? AND account_id = ?`, id, accountID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}

	changed, err := fn(&e)
	if err != nil {
		return core.Expense{}, err
	}
	if !changed {
		return e, nil
	}

	_, err = tx.ExecContext(ctx, updateExpense,
		e.DatePurchased.String(), e.MonthBalanced, e.YearBalanced,
		e.Sum.Cents, e.DivorceeParticipate,
		e.Desc, e.PlaceOfPurchase, e.Notes,
		sqlValue(e.IsApproved), nullTimestamp(e.ApprovedAt), nullID(e.ApprovedBy), formatTimestamp(e.UpdatedAt),
		id, accountID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit expense %d: %w", id, err)
	}
	return e, nil
}

// ListPendingExports returns approved expenses not yet written to the ledger.
func (r *SQLiteRepository) ListPendingExports(ctx context.Context, limit int) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx, selectPendingExports, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending exports: %w", err)
	}
	return collectExpenses(rows)
}

func (r *SQLiteRepository) MarkExported(ctx context.Context, id int64, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, markExported, formatTimestamp(at), id); err != nil {
		return fmt.Errorf("mark expense %d exported: %w", id, err)
	}
	slog.InfoContext(ctx, "Expense marked as exported", "id", id)
	return nil
}

func (r *SQLiteRepository) UserByName(ctx context.Context, name string) (core.User, error) {
	return r.getUser(ctx, ` WHERE name = ?`, name)
}

func (r *SQLiteRepository) UserByID(ctx context.Context, id int64) (core.User, error) {
	return r.getUser(ctx, ` WHERE id = ?`, id)
}

func (r *SQLiteRepository) getUser(ctx context.Context, where string, arg any) (core.User, error) {
	var u core.User
	err := r.db.QueryRowContext(ctx, selectUser+where, arg).Scan(&u.ID, &u.Name, &u.AccountID, &u.DivorceeID)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("user %v: %w", arg, core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user %v: %w", arg, err)
	}
	return u, nil
}

// AccountUsers lists the members of an account ordered by id.
func (r *SQLiteRepository) AccountUsers(ctx context.Context, accountID int64) ([]core.User, error) {
	rows, err := r.db.QueryContext(ctx, selectUser+` WHERE account_id = ? ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query account users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Name, &u.AccountID, &u.DivorceeID); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SeedUsers creates the accounts and users that do not exist yet and links
// divorcee pairs in both directions.
func (r *SQLiteRepository) SeedUsers(ctx context.Context, seeds []SeedUser) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, s := range seeds {
		if _, err := tx.ExecContext(ctx, insertAccount, s.Account); err != nil {
			return fmt.Errorf("seed account %s: %w", s.Account, err)
		}
		if _, err := tx.ExecContext(ctx, insertUser, s.User, s.Account); err != nil {
			return fmt.Errorf("seed user %s: %w", s.User, err)
		}
	}
	for _, s := range seeds {
		if s.Divorcee == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, linkDivorcee, s.Divorcee, s.User); err != nil {
			return fmt.Errorf("link %s to %s: %w", s.User, s.Divorcee, err)
		}
		if _, err := tx.ExecContext(ctx, linkDivorcee, s.User, s.Divorcee); err != nil {
			return fmt.Errorf("link %s to %s: %w", s.Divorcee, s.User, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit seed: %w", err)
	}

	slog.InfoContext(ctx, "Users seeded", "count", len(seeds))
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                    core.Expense
		datePurchased        string
		approved             int64
		approvedAt           sql.NullString
		approvedBy           sql.NullInt64
		createdAt, updatedAt string
	)
	err := row.Scan(
		&e.ID, &e.AccountID, &e.OwnerID, &datePurchased, &e.MonthBalanced, &e.YearBalanced,
		&e.Sum.Cents, &e.DivorceeParticipate, &e.Desc, &e.PlaceOfPurchase, &e.Notes,
		&approved, &approvedAt, &approvedBy, &createdAt, &updatedAt)
	if err != nil {
		return core.Expense{}, err
	}

	if e.DatePurchased, err = core.ParseDate(datePurchased); err != nil {
		return core.Expense{}, fmt.Errorf("parse date_purchased %q: %w", datePurchased, err)
	}
	e.IsApproved = approved != 0
	e.ApprovedBy = approvedBy.Int64
	if approvedAt.Valid {
		e.ApprovedAt = parseTimestamp(approvedAt.String)
	}
	e.CreatedAt = parseTimestamp(createdAt)
	e.UpdatedAt = parseTimestamp(updatedAt)
	return e, nil
}

func collectExpenses(rows *sql.Rows) ([]core.Expense, error) {
	defer rows.Close()

	var out []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(timestampLayout)
}

func nullTimestamp(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timestampLayout), Valid: true}
}

func nullID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
