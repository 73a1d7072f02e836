// Package prefs persists user preferences as JSON blobs in a bbolt file.
// Every key is namespaced under Prefix so Clear only ever touches ghsync's own
// entries. Stored shapes are not versioned: whatever an older build wrote is
// decoded as-is.
package prefs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// Prefix namespaces every key written by the store.
const Prefix = "github_integration_app_"

const bucketName = "prefs" // key: Prefix+key -> JSON blob

// ErrClosed is returned after Close.
var ErrClosed = errors.New("preference store closed")

// Store is a prefix-namespaced key/value store of JSON blobs.
type Store struct {
	db     *bbolt.DB
	logger *slog.Logger

	// mu serializes read-modify-write helpers (recent searches, per-collection maps).
	mu sync.Mutex
}

// Open opens or creates the store at path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create prefs dir: %w", err)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open prefs %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init prefs bucket: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying file.
func (s *Store) Close() error {
	return s.db.Close()
}

func fullKey(key string) []byte {
	return []byte(Prefix + key)
}

// GetRaw returns the stored blob for key. Corrupt (non-JSON) blobs are deleted and
// reported as absent.
func (s *Store) GetRaw(key string) ([]byte, bool, error) {
	var (
		raw     []byte
		corrupt bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get(fullKey(key))
		switch {
		case v == nil:
		case json.Valid(v):
			raw = bytes.Clone(v)
		default:
			corrupt = true
		}
		return nil
	})
	if err != nil || !corrupt {
		return raw, raw != nil, err
	}

	// The blob is checked again under the write lock so a Set that landed
	// after the read is kept.
	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		v := b.Get(fullKey(key))
		if v == nil {
			return nil
		}
		if json.Valid(v) {
			raw = bytes.Clone(v)
			return nil
		}
		s.logger.Warn("discarding corrupt preference", "key", key, "bytes", len(v))
		return b.Delete(fullKey(key))
	})
	if err != nil {
		return nil, false, fmt.Errorf("remove corrupt preference %q: %w", key, err)
	}
	return raw, raw != nil, nil
}

// Get decodes the blob stored under key into v. found is false when the key is
// absent or its blob was corrupt. A blob that is valid JSON but does not fit v
// is returned as an error and left in place.
func (s *Store) Get(key string, v any) (found bool, err error) {
	raw, ok, err := s.GetRaw(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("decode preference %q: %w", key, err)
	}
	return true, nil
}

// Set stores v as JSON under key.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode preference %q: %w", key, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Put(fullKey(key), raw)
	})
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketName)).Delete(fullKey(key))
	})
}

// Has reports whether key is present (without validating its blob).
func (s *Store) Has(key string) (bool, error) {
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		ok = tx.Bucket([]byte(bucketName)).Get(fullKey(key)) != nil
		return nil
	})
	return ok, err
}

// Keys returns every stored key with the namespace prefix stripped.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(bucketName)).Cursor()
		prefix := []byte(Prefix)
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, strings.TrimPrefix(string(k), Prefix))
		}
		return nil
	})
	return keys, err
}

// Clear removes every key under the namespace prefix and nothing else.
func (s *Store) Clear() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		prefix := []byte(Prefix)
		var doomed [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			doomed = append(doomed, bytes.Clone(k))
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}
