// Package storage is the optional SQLite archive for exported profile
// snapshots. Live session state never touches it; only explicit
// exports land here, and the sync worker drains them to the sheet
// ledger.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fintwin/internal/analysis"
	"fintwin/internal/core"

	_ "modernc.org/sqlite"
)

// SnapshotPayload is the archived view of a profile at export time.
type SnapshotPayload struct {
	IncomeCents   int64            `json:"income_cents"`
	SavingsCents  int64            `json:"savings_cents"`
	DebtCents     int64            `json:"debt_cents"`
	ExpensesCents map[string]int64 `json:"expenses_cents"`
	HealthScore   float64          `json:"health_score"`
	RiskTier      string           `json:"risk_tier"`
	ExportedAt    time.Time        `json:"exported_at"`
}

// NewSnapshotPayload builds the payload from a profile and its score.
func NewSnapshotPayload(p core.Profile, score analysis.HealthScore) SnapshotPayload {
	expenses := make(map[string]int64, len(p.Expenses))
	for name, amount := range p.Expenses {
		expenses[name] = amount.Cents
	}
	return SnapshotPayload{
		IncomeCents:   p.Income.Cents,
		SavingsCents:  p.Savings.Cents,
		DebtCents:     p.Debt.Cents,
		ExpensesCents: expenses,
		HealthScore:   score.Value,
		RiskTier:      string(score.Tier),
		ExportedAt:    time.Now().UTC(),
	}
}

// Snapshot is a stored archive row.
type Snapshot struct {
	ID        int64
	Payload   SnapshotPayload
	Version   int64
	CreatedAt time.Time
}

// PendingSnapshot is the minimal data the sync queue needs.
type PendingSnapshot struct {
	ID        int64
	Version   int64
	CreatedAt time.Time
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
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

// SaveSnapshot archives a snapshot and returns its ID.
func (r *SQLiteRepository) SaveSnapshot(ctx context.Context, payload SnapshotPayload) (int64, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal snapshot payload: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO snapshots (payload, health_score, risk_tier, version, sync_status, created_at)
		VALUES (?, ?, ?, 1, 'pending', ?)`,
		string(body), payload.HealthScore, payload.RiskTier, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert snapshot: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("snapshot id: %w", err)
	}

	slog.InfoContext(ctx, "Snapshot archived",
		"id", id,
		"health_score", payload.HealthScore,
		"risk_tier", payload.RiskTier)
	return id, nil
}

// GetSnapshot loads one archived snapshot by ID.
func (r *SQLiteRepository) GetSnapshot(ctx context.Context, id int64) (*Snapshot, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, payload, version, created_at FROM snapshots WHERE id = ?`, id)

	var snap Snapshot
	var body string
	if err := row.Scan(&snap.ID, &body, &snap.Version, &snap.CreatedAt); err != nil {
		return nil, fmt.Errorf("get snapshot %d: %w", id, err)
	}
	if err := json.Unmarshal([]byte(body), &snap.Payload); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot %d: %w", id, err)
	}
	return &snap, nil
}

// GetPendingSync returns snapshots that still need to reach the sheet.
func (r *SQLiteRepository) GetPendingSync(ctx context.Context, limit int) ([]PendingSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, version, created_at FROM snapshots
		WHERE sync_status = 'pending'
		ORDER BY created_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("get pending snapshots: %w", err)
	}
	defer rows.Close()

	var pending []PendingSnapshot
	for rows.Next() {
		var p PendingSnapshot
		if err := rows.Scan(&p.ID, &p.Version, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending snapshot: %w", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// MarkSynced marks a snapshot as successfully synced.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE snapshots SET sync_status = 'synced', synced_at = ? WHERE id = ?`,
		time.Now().UTC(), id); err != nil {
		return fmt.Errorf("mark snapshot synced: %w", err)
	}
	slog.InfoContext(ctx, "Snapshot marked as synced", "id", id)
	return nil
}

// MarkSyncError marks a snapshot as having sync errors.
func (r *SQLiteRepository) MarkSyncError(ctx context.Context, id int64) error {
	if _, err := r.db.ExecContext(ctx, `
		UPDATE snapshots SET sync_status = 'error' WHERE id = ?`, id); err != nil {
		return fmt.Errorf("mark snapshot sync error: %w", err)
	}
	slog.WarnContext(ctx, "Snapshot marked with sync error", "id", id)
	return nil
}

// CountSnapshots reports the total archived snapshots, used by the
// readiness check.
func (r *SQLiteRepository) CountSnapshots(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return count, nil
}
