package index

import (
	"encoding/json"
	"fmt"

	"ragchat/internal/domain"
)

// snapshotVersion is bumped on incompatible changes to the blob layout.
const snapshotVersion = 1

type snapshot struct {
	Version   int             `json:"version"`
	Dimension int             `json:"dimension"`
	Metric    Metric          `json:"metric"`
	Entries   []snapshotEntry `json:"entries"`
}

type snapshotEntry struct {
	Text   string    `json:"t"`
	Source string    `json:"s"`
	Vector []float32 `json:"v"`
}

// Persist serialises the index to an opaque blob.
func (idx *Index) Persist() ([]byte, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	snap := snapshot{
		Version:   snapshotVersion,
		Dimension: idx.dimension,
		Metric:    idx.metric,
		Entries:   make([]snapshotEntry, len(idx.docs)),
	}
	for i, doc := range idx.docs {
		snap.Entries[i] = snapshotEntry{
			Text:   doc.Text,
			Source: doc.SourceID,
			Vector: idx.vectors[i],
		}
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("persist index: %w", err)
	}
	return data, nil
}

// Restore rebuilds an index from a blob produced by Persist.
// Entry order, and therefore tie-breaking, is preserved.
func Restore(blob []byte) (*Index, error) {
	var snap snapshot
	if err := json.Unmarshal(blob, &snap); err != nil {
		return nil, fmt.Errorf("restore index: %w: %v", domain.ErrInvalidInput, err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("restore index: unsupported snapshot version %d: %w", snap.Version, domain.ErrInvalidInput)
	}

	idx, err := New(snap.Dimension, snap.Metric)
	if err != nil {
		return nil, fmt.Errorf("restore index: %w", err)
	}

	items := make([]domain.EmbeddedDocument, len(snap.Entries))
	for i, e := range snap.Entries {
		items[i] = domain.EmbeddedDocument{
			Document: domain.Document{Text: e.Text, SourceID: e.Source},
			Vector:   e.Vector,
		}
	}
	if err := idx.Add(items); err != nil {
		return nil, fmt.Errorf("restore index: %w", err)
	}
	return idx, nil
}
