package port

import "time"

// SnapshotStore persists opaque index snapshots by name.
type SnapshotStore interface {
	SaveSnapshot(name string, blob []byte, info SnapshotInfo) error

	// ReplaceSnapshots atomically drops every stored snapshot and saves blob
	// under name.
	ReplaceSnapshots(name string, blob []byte, info SnapshotInfo) error

	LoadSnapshot(name string) ([]byte, SnapshotInfo, error)

	ListSnapshots() ([]SnapshotInfo, error)

	DeleteSnapshot(name string) error

	Close() error
}

// SnapshotInfo describes a stored snapshot.
type SnapshotInfo struct {
	Name      string    `json:"name"`
	Model     string    `json:"model"`
	Dimension int       `json:"dimension"`
	Metric    string    `json:"metric"`
	Documents int       `json:"documents"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}
