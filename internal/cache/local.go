package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

var configBucket = []byte("orgcfg")

// localEntry is the on-disk envelope for a cached value
type localEntry struct {
	ExpiresAt time.Time       `json:"expires_at"`
	Payload   json.RawMessage `json:"payload"`
}

// Local is a file-backed cache for org configuration. It keeps the CLI
// usable when no Redis instance is reachable.
type Local struct {
	db     *bolt.DB
	logger *logrus.Logger
	ttl    time.Duration
}

// NewLocal opens (or creates) the local cache file
func NewLocal(path string, logger *logrus.Logger) (*Local, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open local cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(configBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init local cache: %w", err)
	}

	return &Local{
		db:     db,
		logger: logger,
		ttl:    15 * time.Minute,
	}, nil
}

// Close closes the cache file
func (l *Local) Close() error {
	return l.db.Close()
}

// Get retrieves a cached value by key and unmarshals into target.
// Expired entries count as misses and are removed lazily.
func (l *Local) Get(key string, target interface{}) (bool, error) {
	var raw []byte
	err := l.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(configBucket).Get([]byte(key)); v != nil {
			raw = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("local cache read: %w", err)
	}
	if raw == nil {
		return false, nil
	}

	var entry localEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return false, fmt.Errorf("corrupt local cache entry %s: %w", key, err)
	}
	if time.Now().After(entry.ExpiresAt) {
		l.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(configBucket).Delete([]byte(key))
		})
		return false, nil
	}

	if err := json.Unmarshal(entry.Payload, target); err != nil {
		return false, fmt.Errorf("unmarshal local cache entry %s: %w", key, err)
	}
	return true, nil
}

// Set stores a value with the default TTL
func (l *Local) Set(key string, value interface{}) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal value for %s: %w", key, err)
	}

	raw, err := json.Marshal(localEntry{
		ExpiresAt: time.Now().Add(l.ttl),
		Payload:   payload,
	})
	if err != nil {
		return fmt.Errorf("marshal entry for %s: %w", key, err)
	}

	return l.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(configBucket).Put([]byte(key), raw)
	})
}

// DeleteOrg removes every cached config entry for an org
func (l *Local) DeleteOrg(orgID string) (int, error) {
	prefix := []byte(fmt.Sprintf("orgcfg:%s:", orgID))
	deleted := 0

	err := l.db.Update(func(tx *bolt.Tx) error {
		c := tx.Bucket(configBucket).Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return deleted, fmt.Errorf("local cache invalidate for org %s: %w", orgID, err)
	}

	if deleted > 0 {
		l.logger.WithFields(logrus.Fields{"org_id": orgID, "deleted": deleted}).Debug("Local cache invalidated")
	}
	return deleted, nil
}
