// Package archive couples the snapshot store with the sync queue:
// exporting a profile saves a snapshot row and queues it for the sheet
// worker. Publishing is best-effort; the worker's periodic catch-up
// pass picks up anything the queue missed.
package archive

import (
	"context"
	"fmt"
	"log/slog"

	"fintwin/internal/analysis"
	"fintwin/internal/core"
	"fintwin/internal/storage"
)

// Store is the slice of the snapshot repository the pipeline needs.
type Store interface {
	SaveSnapshot(ctx context.Context, payload storage.SnapshotPayload) (int64, error)
}

// Publisher queues a snapshot for asynchronous sheet sync.
type Publisher interface {
	PublishSnapshotSync(ctx context.Context, id, version int64) error
}

// Pipeline archives snapshots and notifies the sync worker.
type Pipeline struct {
	store     Store
	publisher Publisher
}

// NewPipeline creates a pipeline. publisher may be nil when AMQP is
// not configured; snapshots then wait for the worker's catch-up pass.
func NewPipeline(store Store, publisher Publisher) *Pipeline {
	return &Pipeline{store: store, publisher: publisher}
}

// ArchiveSnapshot persists the profile and its score, then queues the
// row for sync. Returns the snapshot ID.
func (p *Pipeline) ArchiveSnapshot(ctx context.Context, profile core.Profile, score analysis.HealthScore) (int64, error) {
	payload := storage.NewSnapshotPayload(profile, score)
	id, err := p.store.SaveSnapshot(ctx, payload)
	if err != nil {
		return 0, fmt.Errorf("save snapshot: %w", err)
	}

	if p.publisher != nil {
		if err := p.publisher.PublishSnapshotSync(ctx, id, 1); err != nil {
			// Row stays pending; the worker's periodic pass syncs it.
			slog.WarnContext(ctx, "Failed to queue snapshot for sync",
				"id", id, "error", err)
		}
	}
	return id, nil
}
