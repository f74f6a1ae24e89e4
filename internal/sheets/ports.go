package sheets

import (
	"context"

	"cospese/internal/core"
)

// LedgerEntry is an approved expense with the names shown in the ledger.
type LedgerEntry struct {
	Expense      core.Expense
	OwnerName    string
	ApproverName string
}

// Ports for outbound adapters.
type (
	// LedgerWriter appends approved expenses to an external ledger.
	// Appending an expense that is already present returns its existing
	// reference without writing.
	LedgerWriter interface {
		AppendEntry(ctx context.Context, entry LedgerEntry) (rowRef string, err error)
	}
)
