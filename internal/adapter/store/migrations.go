package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"vecbind/internal/adapter/record"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 2

var (
	keySchemaVersion = []byte("schema_version")
	keyInfoHash      = []byte("info_hash")
)

// SchemaInfo stores schema version and index description hash.
type SchemaInfo struct {
	Version  int    `json:"version"`
	InfoHash string `json:"info_hash"`
}

// GetSchemaInfo retrieves the current schema info from the database.
func (s *BoltIndex) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if b == nil {
			return nil
		}

		versionData := b.Get(keySchemaVersion)
		if versionData != nil {
			if err := json.Unmarshal(versionData, &info.Version); err != nil {
				info.Version = 1
			}
		}

		hashData := b.Get(keyInfoHash)
		if hashData != nil {
			info.InfoHash = string(hashData)
		}

		return nil
	})
	return &info, err
}

// SetSchemaInfo stores the schema info in the database.
func (s *BoltIndex) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)

		versionData, err := json.Marshal(info.Version)
		if err != nil {
			return err
		}
		if err := b.Put(keySchemaVersion, versionData); err != nil {
			return err
		}

		return b.Put(keyInfoHash, []byte(info.InfoHash))
	})
}

// ComputeInfoHash hashes the parts of the index description that make stored
// vectors incompatible when they change.
func ComputeInfoHash(info record.IndexInfo) string {
	relevant := struct {
		Dimensions uint32 `json:"dimensions"`
		Metric     string `json:"metric"`
	}{
		Dimensions: info.Dimensions,
		Metric:     info.Metric,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsMigration bool
	NeedsRebuild   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration checks if migration or rebuild is needed.
func (s *BoltIndex) CheckMigration() (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	if info.Version == 0 {
		result.NeedsMigration = true
		result.Reason = "initializing schema version"
	} else if info.Version < CurrentSchemaVersion {
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
	} else if info.Version > CurrentSchemaVersion {
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("database created by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	}

	newHash := ComputeInfoHash(s.info)
	if info.InfoHash != "" && info.InfoHash != newHash {
		result.NeedsRebuild = true
		result.Reason = "index dimensions or metric changed"
	}

	return result, nil
}

// Migrate performs any necessary schema migrations.
func (s *BoltIndex) Migrate() error {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return err
	}

	for v := info.Version; v < CurrentSchemaVersion; v++ {
		if err := s.runMigration(v, v+1); err != nil {
			return fmt.Errorf("migration from v%d to v%d failed: %w", v, v+1, err)
		}
	}

	return s.SetSchemaInfo(&SchemaInfo{
		Version:  CurrentSchemaVersion,
		InfoHash: ComputeInfoHash(s.info),
	})
}

// runMigration runs a specific version migration.
func (s *BoltIndex) runMigration(from, to int) error {
	switch {
	case from == 0 && to == 1:
		return s.db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketVectors)
			return err
		})
	case from == 1 && to == 2:
		// v2 keeps a log of accepted writes for processedUpToMutation
		return s.db.Update(func(tx *bbolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists(bucketMutations)
			return err
		})
	default:
		return nil
	}
}

// Clear removes all vectors and mutations (for rebuild).
func (s *BoltIndex) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketVectors, bucketMutations} {
			if tx.Bucket(name) == nil {
				continue
			}
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return err
			}
		}

		return tx.Bucket(bucketMeta).Delete(keyInfoHash)
	})
}

// Prepare brings the database up to date: it clears incompatible data and
// runs pending migrations. The returned result says what was done.
func (s *BoltIndex) Prepare() (*MigrationResult, error) {
	result, err := s.CheckMigration()
	if err != nil {
		return nil, err
	}

	if result.NeedsRebuild {
		if err := s.Clear(); err != nil {
			return nil, fmt.Errorf("failed to clear index: %w", err)
		}
	}

	if result.NeedsRebuild || result.NeedsMigration {
		if err := s.Migrate(); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}

	return result, nil
}
