package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"go.etcd.io/bbolt"

	"github.com/boshilin123/chatbot-circuit-diagram/config"
	"github.com/boshilin123/chatbot-circuit-diagram/internal/port"
)

// CurrentSchemaVersion is bumped whenever the stored document layout changes.
const CurrentSchemaVersion = 1

var (
	keySchemaVersion = []byte("schema_version")
	keyConfigHash    = []byte("config_hash")
	keyCatalogHash   = []byte("catalog_hash")
)

type SchemaInfo struct {
	Version     int    `json:"version"`
	ConfigHash  string `json:"config_hash"`
	CatalogHash string `json:"catalog_hash"`
}

func (s *BoltStore) GetSchemaInfo() (*SchemaInfo, error) {
	var info SchemaInfo
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if data := b.Get(keySchemaVersion); data != nil {
			if err := json.Unmarshal(data, &info.Version); err != nil {
				return fmt.Errorf("corrupt schema version: %w", err)
			}
		}
		info.ConfigHash = string(b.Get(keyConfigHash))
		info.CatalogHash = string(b.Get(keyCatalogHash))
		return nil
	})
	return &info, err
}

func (s *BoltStore) SetSchemaInfo(info *SchemaInfo) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketMeta)
		if err := putJSON(b, keySchemaVersion, info.Version); err != nil {
			return err
		}
		if err := b.Put(keyConfigHash, []byte(info.ConfigHash)); err != nil {
			return err
		}
		return b.Put(keyCatalogHash, []byte(info.CatalogHash))
	})
}

// ComputeConfigHash hashes the settings that change how rows become
// documents. A different hash means the stored snapshot is unusable.
func ComputeConfigHash(cfg *config.Config) string {
	relevant := struct {
		Includes   []string `json:"includes"`
		Excludes   []string `json:"excludes"`
		SkipHeader bool     `json:"skip_header"`
	}{
		Includes:   cfg.Catalog.Includes,
		Excludes:   cfg.Catalog.Excludes,
		SkipHeader: cfg.Catalog.SkipHeader,
	}

	data, _ := json.Marshal(relevant)
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:8])
}

// ComputeCatalogHash fingerprints the source files by path, size and
// modification time.
func ComputeCatalogHash(files []port.FileInfo) string {
	sorted := make([]port.FileInfo, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })

	h := sha256.New()
	for _, f := range sorted {
		fmt.Fprintf(h, "%s\x00%d\x00%d\n", f.Path, f.Size, f.ModTime)
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

type MigrationResult struct {
	NeedsMigration bool
	NeedsRebuild   bool
	OldVersion     int
	NewVersion     int
	Reason         string
}

// CheckMigration decides whether the stored snapshot can be reused for the
// given configuration and catalog fingerprint.
func (s *BoltStore) CheckMigration(cfg *config.Config, catalogHash string) (*MigrationResult, error) {
	info, err := s.GetSchemaInfo()
	if err != nil {
		return nil, fmt.Errorf("failed to get schema info: %w", err)
	}

	result := &MigrationResult{
		OldVersion: info.Version,
		NewVersion: CurrentSchemaVersion,
	}

	switch {
	case info.Version == 0:
		result.NeedsMigration = true
		result.NeedsRebuild = true
		result.Reason = "empty snapshot"
		return result, nil
	case info.Version > CurrentSchemaVersion:
		result.NeedsRebuild = true
		result.Reason = fmt.Sprintf("snapshot written by newer version (v%d > v%d)", info.Version, CurrentSchemaVersion)
		return result, nil
	case info.Version < CurrentSchemaVersion:
		result.NeedsMigration = true
		result.Reason = fmt.Sprintf("schema upgrade from v%d to v%d", info.Version, CurrentSchemaVersion)
	}

	if info.ConfigHash != ComputeConfigHash(cfg) {
		result.NeedsRebuild = true
		result.Reason = "catalog configuration changed"
	} else if info.CatalogHash != catalogHash {
		result.NeedsRebuild = true
		result.Reason = "catalog files changed"
	}

	return result, nil
}

// Migrate runs pending schema steps and records the hashes of the snapshot
// just written.
func (s *BoltStore) Migrate(cfg *config.Config, catalogHash string) error {
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
		Version:     CurrentSchemaVersion,
		ConfigHash:  ComputeConfigHash(cfg),
		CatalogHash: catalogHash,
	})
}

func (s *BoltStore) runMigration(from, to int) error {
	switch {
	case from == 0 && to == 1:
		return s.db.Update(func(tx *bbolt.Tx) error {
			for _, b := range [][]byte{bucketDocs, bucketMeta} {
				if _, err := tx.CreateBucketIfNotExists(b); err != nil {
					return err
				}
			}
			return nil
		})
	default:
		return nil
	}
}

// Clear removes every document and the catalog fingerprint, keeping the
// schema version.
func (s *BoltStore) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(bucketDocs); err != nil && err != bbolt.ErrBucketNotFound {
			return err
		}
		if _, err := tx.CreateBucket(bucketDocs); err != nil {
			return err
		}

		meta := tx.Bucket(bucketMeta)
		for _, k := range [][]byte{keyCatalogHash, keyStats} {
			if err := meta.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
