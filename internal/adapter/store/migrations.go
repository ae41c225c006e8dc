package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"
	"ragchat/config"
	"ragchat/internal/adapter/index"
)

// CurrentSchemaVersion is bumped whenever the bucket layout changes.
const CurrentSchemaVersion = 1

var keySchema = []byte("schema")

// SchemaInfo is the single record kept in the meta bucket. Model and Metric
// are informational; ConfigHash decides compatibility.
type SchemaInfo struct {
	Version    int    `json:"version"`
	ConfigHash string `json:"config_hash"`
	Model      string `json:"model,omitempty"`
	Metric     string `json:"metric,omitempty"`
}

// migrations[v] upgrades a database from schema v to v+1.
var migrations = map[int]func(tx *bbolt.Tx) error{
	0: func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSnapshots, bucketInfo} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	},
}

// GetSchemaInfo returns the stored schema record, or a zero record for a
// database that was never migrated.
func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	info := &SchemaInfo{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketMeta).Get(keySchema)
		if raw == nil {
			return nil
		}
		if err := json.Unmarshal(raw, info); err != nil {
			return fmt.Errorf("corrupt schema record: %w", err)
		}
		return nil
	})
	return info, err
}

func (s *BoltStore) SetSchemaInfo(info *SchemaInfo) error {
	raw, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keySchema, raw)
	})
}

// ComputeConfigHash fingerprints the settings that make stored vectors
// comparable with new query vectors: provider, model, dimension and metric.
// Metric spellings that select the same metric hash the same.
func ComputeConfigHash(cfg *config.Config) string {
	metric := cfg.Retrieve.Metric
	if m, err := index.ParseMetric(metric); err == nil {
		metric = string(m)
	}
	fingerprint := fmt.Sprintf("%s\x00%s\x00%d\x00%s",
		cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Embedding.Dimension, metric)
	sum := sha256.Sum256([]byte(fingerprint))
	return hex.EncodeToString(sum[:8])
}

// MigrationResult reports what CheckMigration found.
type MigrationResult struct {
	NeedsMigration bool
	NeedsRebuild   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration compares the database with the running binary and config.
// NeedsRebuild means stored snapshots cannot be served and must be re-ingested.
func (s *BoltStore) CheckMigration(cfg *config.Config) (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{OldVersion: info.Version, NewVersion: CurrentSchemaVersion}

	switch {
	case info.Version > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("database written by a newer ragchat (schema v%d, this build supports v%d)",
			info.Version, CurrentSchemaVersion)
		return result, nil
	case info.Version == 0:
		result.NeedsMigration = true
		result.Reason = "initializing schema"
	case info.Version < CurrentSchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade v%d -> v%d", info.Version, CurrentSchemaVersion)
	}

	if info.ConfigHash != "" && info.ConfigHash != ComputeConfigHash(cfg) {
		result.NeedsRebuild = true
		result.Reason = "embedding configuration changed"
		if info.Model != "" && info.Model != cfg.Embedding.Model {
			result.Reason += fmt.Sprintf(" (model %s -> %s)", info.Model, cfg.Embedding.Model)
		}
	}

	return result, nil
}

// Migrate applies pending schema migrations and records cfg's fingerprint,
// all in one transaction.
func (s *BoltStore) Migrate(cfg *config.Config) error {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return err
	}

	next := SchemaInfo{
		Version:    CurrentSchemaVersion,
		ConfigHash: ComputeConfigHash(cfg),
		Model:      cfg.Embedding.Model,
		Metric:     cfg.Retrieve.Metric,
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		for v := info.Version; v < CurrentSchemaVersion; v++ {
			if step, ok := migrations[v]; ok {
				if err := step(tx); err != nil {
					return fmt.Errorf("migration v%d -> v%d failed: %w", v, v+1, err)
				}
			}
		}
		return tx.Bucket(bucketMeta).Put(keySchema, raw)
	})
}

// clearSnapshots drops every snapshot. The schema record is kept.
func clearSnapshots(tx *bbolt.Tx) error {
	for _, name := range [][]byte{bucketSnapshots, bucketInfo} {
		if err := tx.DeleteBucket(name); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		if _, err := tx.CreateBucket(name); err != nil {
			return err
		}
	}
	return nil
}
