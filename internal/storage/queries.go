package storage

import (
	"fmt"
	"strings"

	"cospese/internal/core"
)

const expenseColumns = `id, account_id, owner_id, date_purchased, month_balanced, year_balanced,
	expense_sum_cents, expense_divorcee_participate, description, place_of_purchase, notes,
	is_approved, approved_at, approved_by, created_at, updated_at`

const (
	selectExpenses = `SELECT ` + expenseColumns + ` FROM expenses`

	orderExpenses = ` ORDER BY date_purchased DESC, id DESC`

	insertExpense = `INSERT INTO expenses (
	account_id, owner_id, date_purchased, month_balanced, year_balanced,
	expense_sum_cents, expense_divorcee_participate, description, place_of_purchase, notes,
	is_approved, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0, ?, ?)`

	// Identity and ownership columns are never part of an update.
	updateExpense = `UPDATE expenses SET
	date_purchased = ?, month_balanced = ?, year_balanced = ?,
	expense_sum_cents = ?, expense_divorcee_participate = ?,
	description = ?, place_of_purchase = ?, notes = ?,
	is_approved = ?, approved_at = ?, approved_by = ?, updated_at = ?
WHERE id = ? AND account_id = ?`

	selectPendingExports = selectExpenses +
		` WHERE is_approved = 1 AND exported_at IS NULL ORDER BY approved_at, id LIMIT ?`

	markExported = `UPDATE expenses SET exported_at = ? WHERE id = ? AND is_approved = 1`

	selectUser = `SELECT id, name, account_id, COALESCE(divorcee_id, 0) FROM users`

	insertAccount = `INSERT INTO accounts (name) VALUES (?) ON CONFLICT(name) DO NOTHING`

	insertUser = `INSERT INTO users (account_id, name)
SELECT id, ? FROM accounts WHERE name = ?
ON CONFLICT(name) DO NOTHING`

	linkDivorcee = `UPDATE users SET divorcee_id = (SELECT id FROM users WHERE name = ?) WHERE name = ?`
)

var queryColumns = map[core.Column]string{
	core.ColAccount:       "account_id",
	core.ColOwner:         "owner_id",
	core.ColMonthBalanced: "month_balanced",
	core.ColYearBalanced:  "year_balanced",
	core.ColApproved:      "is_approved",
}

// whereClause renders q as a parameterized WHERE clause.
func whereClause(q core.Query) (string, []any, error) {
	if len(q.Predicates) == 0 {
		return "", nil, nil
	}
	conds := make([]string, 0, len(q.Predicates))
	args := make([]any, 0, len(q.Predicates))
	for _, p := range q.Predicates {
		col, ok := queryColumns[p.Column]
		if !ok {
			return "", nil, fmt.Errorf("unsupported query column %q", p.Column)
		}
		conds = append(conds, col+" = ?")
		args = append(args, sqlValue(p.Value))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

func sqlValue(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}
