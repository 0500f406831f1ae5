// Package worker drains archived snapshots from SQLite into the sheet
// ledger, driven by AMQP messages with a periodic catch-up pass.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fintwin/internal/amqp"
	"fintwin/internal/sheets"
	"fintwin/internal/storage"
)

// SnapshotStore is the slice of the archive the worker needs.
type SnapshotStore interface {
	GetSnapshot(ctx context.Context, id int64) (*storage.Snapshot, error)
	GetPendingSync(ctx context.Context, limit int) ([]storage.PendingSnapshot, error)
	MarkSynced(ctx context.Context, id int64) error
	MarkSyncError(ctx context.Context, id int64) error
}

// SyncWorker moves archived snapshots to the sheet ledger.
type SyncWorker struct {
	store     SnapshotStore
	ledger    sheets.SnapshotWriter
	batchSize int
}

func NewSyncWorker(store SnapshotStore, ledger sheets.SnapshotWriter, batchSize int) *SyncWorker {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		ledger:    ledger,
		batchSize: batchSize,
	}
}

// HandleSyncMessage processes one snapshot sync message from AMQP.
func (w *SyncWorker) HandleSyncMessage(ctx context.Context, msg *amqp.SnapshotSyncMessage) error {
	slog.InfoContext(ctx, "Processing sync message",
		"id", msg.ID,
		"version", msg.Version)
	return w.syncSnapshot(ctx, msg.ID)
}

// ProcessPending syncs any snapshots still marked pending, up to the
// batch size. Called periodically to catch messages the queue missed.
func (w *SyncWorker) ProcessPending(ctx context.Context) error {
	pending, err := w.store.GetPendingSync(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("get pending snapshots: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}

	slog.InfoContext(ctx, "Processing pending snapshots", "count", len(pending))
	for _, p := range pending {
		if err := w.syncSnapshot(ctx, p.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to sync pending snapshot",
				"id", p.ID, "error", err)
			// Keep draining the rest of the batch.
		}
	}
	return nil
}

// StartupSyncCheck drains the pending backlog once at startup.
func (w *SyncWorker) StartupSyncCheck(ctx context.Context) error {
	slog.InfoContext(ctx, "Running startup sync check")
	return w.ProcessPending(ctx)
}

// syncSnapshot loads one snapshot, appends it to the ledger and marks
// the outcome in the archive.
func (w *SyncWorker) syncSnapshot(ctx context.Context, id int64) error {
	snap, err := w.store.GetSnapshot(ctx, id)
	if err != nil {
		return fmt.Errorf("get snapshot from storage: %w", err)
	}

	var expensesTotal int64
	for _, cents := range snap.Payload.ExpensesCents {
		expensesTotal += cents
	}

	row := sheets.LedgerRow{
		SnapshotID:    snap.ID,
		ExportedAt:    snap.Payload.ExportedAt,
		IncomeCents:   snap.Payload.IncomeCents,
		SavingsCents:  snap.Payload.SavingsCents,
		DebtCents:     snap.Payload.DebtCents,
		ExpensesCents: expensesTotal,
		HealthScore:   snap.Payload.HealthScore,
		RiskTier:      snap.Payload.RiskTier,
	}

	ref, err := w.ledger.AppendSnapshot(ctx, row)
	if err != nil {
		if markErr := w.store.MarkSyncError(ctx, id); markErr != nil {
			slog.ErrorContext(ctx, "Failed to mark sync error", "id", id, "error", markErr)
		}
		return fmt.Errorf("append snapshot to ledger: %w", err)
	}

	if err := w.store.MarkSynced(ctx, id); err != nil {
		return fmt.Errorf("mark snapshot synced: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot synced to ledger",
		"id", id,
		"sheets_ref", ref)
	return nil
}
