package sheets

import (
	"context"
	"time"
)

// LedgerRow is one exported snapshot as it appears in the sheet ledger.
type LedgerRow struct {
	SnapshotID    int64
	ExportedAt    time.Time
	IncomeCents   int64
	SavingsCents  int64
	DebtCents     int64
	ExpensesCents int64
	HealthScore   float64
	RiskTier      string
}

// Ports for outbound adapters.
type (
	// SnapshotWriter appends exported snapshots to the ledger.
	SnapshotWriter interface {
		AppendSnapshot(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}

	// LedgerCounter reports how many snapshot rows the ledger holds,
	// used for startup reconciliation.
	LedgerCounter interface {
		CountRows(ctx context.Context) (int, error)
	}
)
