// Package boltstore persists GoMuch's durable state in a bbolt database:
// registered accounts and the most recent world snapshot. Live sessions and
// delivery queues are never persisted.
package boltstore

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/much-hall/gomuch/pkg/world"
)

// ErrNoAccount is returned when a named account does not exist.
var ErrNoAccount = fmt.Errorf("no such account")

// ErrNoSnapshot is returned when no world snapshot has been saved yet.
var ErrNoSnapshot = fmt.Errorf("no snapshot stored")

// Account is one registered identity. The hash is a bcrypt digest; the
// cleartext password never touches the store.
type Account struct {
	Name      string
	Hash      []byte
	Admin     bool
	Created   time.Time
	LastLogin time.Time
}

// Store wraps a bbolt database holding accounts and world snapshots.
type Store struct {
	bolt *bbolt.DB
}

// Open opens or creates a bbolt database file and ensures all buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketMeta, bucketAccounts, bucketSnapshot} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("boltstore: create buckets: %w", err)
	}

	return &Store{bolt: db}, nil
}

// Close closes the underlying bbolt database.
func (s *Store) Close() error {
	if s.bolt != nil {
		return s.bolt.Close()
	}
	return nil
}

// Path returns the filesystem path of the underlying bbolt database.
func (s *Store) Path() string {
	if s.bolt != nil {
		return s.bolt.Path()
	}
	return ""
}

// --- Accounts ---

// accountKey lowercases the name so lookups are case-insensitive.
func accountKey(name string) []byte {
	return []byte(strings.ToLower(strings.TrimSpace(name)))
}

// PutAccount persists an account, keyed by lowercase name.
func (s *Store) PutAccount(a *Account) error {
	data, err := encodeAccount(a)
	if err != nil {
		return fmt.Errorf("boltstore: encode account %q: %w", a.Name, err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).Put(accountKey(a.Name), data)
	})
}

// GetAccount looks an account up by name.
func (s *Store) GetAccount(name string) (*Account, error) {
	var a *Account
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketAccounts).Get(accountKey(name))
		if v == nil {
			return ErrNoAccount
		}
		var err error
		a, err = decodeAccount(v)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// DeleteAccount removes an account.
func (s *Store) DeleteAccount(name string) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).Delete(accountKey(name))
	})
}

// TouchLogin records a successful login on the account.
func (s *Store) TouchLogin(name string, at time.Time) error {
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketAccounts)
		v := b.Get(accountKey(name))
		if v == nil {
			return ErrNoAccount
		}
		a, err := decodeAccount(v)
		if err != nil {
			return err
		}
		a.LastLogin = at
		data, err := encodeAccount(a)
		if err != nil {
			return err
		}
		return b.Put(accountKey(name), data)
	})
}

// ListAccounts returns all account names, sorted by bbolt's key order
// (lowercased names, so effectively alphabetical).
func (s *Store) ListAccounts() ([]string, error) {
	var names []string
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAccounts).ForEach(func(k, v []byte) error {
			a, err := decodeAccount(v)
			if err != nil {
				return fmt.Errorf("decode account %q: %w", string(k), err)
			}
			names = append(names, a.Name)
			return nil
		})
	})
	return names, err
}

// HasAccounts returns true if any account is registered.
func (s *Store) HasAccounts() bool {
	has := false
	s.bolt.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketAccounts).Stats().KeyN > 0 {
			has = true
		}
		return nil
	})
	return has
}

// --- World snapshots ---

// PutSnapshot persists a world snapshot, replacing any previous one, and
// records when it was taken.
func (s *Store) PutSnapshot(snap *world.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return fmt.Errorf("boltstore: encode snapshot: %w", err)
	}
	return s.bolt.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketSnapshot).Put(keyCurrent, data); err != nil {
			return err
		}
		stamp, _ := time.Now().UTC().MarshalBinary()
		return tx.Bucket(bucketMeta).Put(keySavedAt, stamp)
	})
}

// LoadSnapshot reads the stored world snapshot.
func (s *Store) LoadSnapshot() (*world.Snapshot, error) {
	var snap *world.Snapshot
	err := s.bolt.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketSnapshot).Get(keyCurrent)
		if v == nil {
			return ErrNoSnapshot
		}
		var err error
		snap, err = decodeSnapshot(v)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// SavedAt returns when the stored snapshot was taken (zero if none).
func (s *Store) SavedAt() time.Time {
	var at time.Time
	s.bolt.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keySavedAt); v != nil {
			at.UnmarshalBinary(v)
		}
		return nil
	})
	return at
}

// Backup creates a hot snapshot of the bbolt database using tx.WriteTo().
func (s *Store) Backup(path string) error {
	return s.bolt.View(func(tx *bbolt.Tx) error {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("boltstore: create backup %s: %w", path, err)
		}
		defer f.Close()
		if _, err := tx.WriteTo(f); err != nil {
			return fmt.Errorf("boltstore: write backup: %w", err)
		}
		log.Printf("boltstore: backup written to %s", path)
		return nil
	})
}
