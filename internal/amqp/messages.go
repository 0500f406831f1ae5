package amqp

import (
	"encoding/json"
	"time"
)

// SnapshotSyncMessage asks the worker to sync one archived snapshot to
// the sheet ledger. Only the ID and version travel on the queue; the
// worker loads the payload from the archive.
type SnapshotSyncMessage struct {
	ID        int64     `json:"id"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSnapshotSyncMessage creates a sync message for the given snapshot.
func NewSnapshotSyncMessage(id, version int64) *SnapshotSyncMessage {
	return &SnapshotSyncMessage{
		ID:        id,
		Version:   version,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *SnapshotSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// SnapshotSyncMessageFromJSON creates a message from JSON bytes
func SnapshotSyncMessageFromJSON(data []byte) (*SnapshotSyncMessage, error) {
	var msg SnapshotSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
