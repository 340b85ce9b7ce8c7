package summary

import (
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

// Buckets
var (
	BucketSnapshots = []byte("snapshots") // document key -> encoded snapshot
	BucketMeta      = []byte("meta")      // store metadata
)

var metaVersionKey = []byte("version")

// ErrNotFound indicates no snapshot is stored under the requested key.
var ErrNotFound = errors.New("snapshot not found")

// Store persists encoded snapshots in a bbolt database, keyed by document.
type Store struct{ db *bbolt.DB }

// OpenStore opens (creating if necessary) a snapshot store at path.
func OpenStore(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0666, nil)
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, e := tx.CreateBucketIfNotExists(BucketSnapshots); e != nil {
			return e
		}
		meta, e := tx.CreateBucketIfNotExists(BucketMeta)
		if e != nil {
			return e
		}
		return meta.Put(metaVersionKey, []byte{codecVersion})
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// Save stores an encoded snapshot under key, replacing any previous one.
func (s *Store) Save(key string, encoded []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketSnapshots).Put([]byte(key), encoded)
	})
}

// Load retrieves the encoded snapshot stored under key.
func (s *Store) Load(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(BucketSnapshots).Get([]byte(key))
		if v == nil {
			return fmt.Errorf("key %q: %w", key, ErrNotFound)
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	return out, err
}

// Keys lists every document key with a stored snapshot.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketSnapshots).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}
