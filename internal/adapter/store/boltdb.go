package store

import (
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"
	"ragchat/internal/domain"
	"ragchat/internal/port"
)

var _ port.SnapshotStore = (*BoltStore)(nil)

var (
	bucketSnapshots = []byte("snapshots")
	bucketInfo      = []byte("snapshot_info")
	bucketMeta      = []byte("meta")
)

// BoltStore keeps index snapshots in a single bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSnapshots, bucketInfo, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// SaveSnapshot stores blob under name, replacing any previous snapshot.
// Blob and info are written in one transaction.
func (s *BoltStore) SaveSnapshot(name string, blob []byte, info port.SnapshotInfo) error {
	data, err := encodeInfo(name, blob, info)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return putSnapshot(tx, name, blob, data)
	})
}

// ReplaceSnapshots drops every stored snapshot and saves blob under name in
// one transaction, so a reader sees either the old set or the new snapshot.
func (s *BoltStore) ReplaceSnapshots(name string, blob []byte, info port.SnapshotInfo) error {
	data, err := encodeInfo(name, blob, info)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := clearSnapshots(tx); err != nil {
			return err
		}
		return putSnapshot(tx, name, blob, data)
	})
}

func encodeInfo(name string, blob []byte, info port.SnapshotInfo) ([]byte, error) {
	if name == "" {
		return nil, fmt.Errorf("snapshot name is empty: %w", domain.ErrInvalidInput)
	}
	info.Name = name
	info.Size = len(blob)
	return json.Marshal(info)
}

func putSnapshot(tx *bbolt.Tx, name string, blob, info []byte) error {
	if err := tx.Bucket(bucketSnapshots).Put([]byte(name), blob); err != nil {
		return err
	}
	return tx.Bucket(bucketInfo).Put([]byte(name), info)
}

// LoadSnapshot returns the blob and info stored under name.
func (s *BoltStore) LoadSnapshot(name string) ([]byte, port.SnapshotInfo, error) {
	var (
		blob []byte
		info port.SnapshotInfo
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketSnapshots).Get([]byte(name))
		if data == nil {
			return fmt.Errorf("snapshot %q: %w", name, domain.ErrNotFound)
		}
		// bbolt memory is only valid inside the transaction.
		blob = make([]byte, len(data))
		copy(blob, data)

		if raw := tx.Bucket(bucketInfo).Get([]byte(name)); raw != nil {
			if err := json.Unmarshal(raw, &info); err != nil {
				return fmt.Errorf("snapshot %q info: %w", name, err)
			}
		}
		info.Name = name
		return nil
	})
	if err != nil {
		return nil, port.SnapshotInfo{}, err
	}
	return blob, info, nil
}

// ListSnapshots returns info for every stored snapshot, sorted by name.
func (s *BoltStore) ListSnapshots() ([]port.SnapshotInfo, error) {
	var infos []port.SnapshotInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketInfo).ForEach(func(k, v []byte) error {
			var info port.SnapshotInfo
			if err := json.Unmarshal(v, &info); err != nil {
				return nil // Skip corrupted entries
			}
			info.Name = string(k)
			infos = append(infos, info)
			return nil
		})
	})
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, err
}

func (s *BoltStore) DeleteSnapshot(name string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketSnapshots).Get([]byte(name)) == nil {
			return fmt.Errorf("snapshot %q: %w", name, domain.ErrNotFound)
		}
		if err := tx.Bucket(bucketSnapshots).Delete([]byte(name)); err != nil {
			return err
		}
		return tx.Bucket(bucketInfo).Delete([]byte(name))
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
