// Package trustdb is the host-local allowlist of signer_ids a verifier is
// willing to accept during unseal. It is consulted read-only from the hot
// path (internal/signer.Verify) and mutated only by the trust subcommands
// (cmd/qsfs). Grounded on
// i5heu-ouroboros-db/internal/keyValStore/keyValStore.go's badger.Open +
// StoreConfig + logrus-injection shape; QSFS needs nothing like that
// package's chunk-streaming or throughput-counter machinery, so only the
// open/close/get/set/iterate core is carried over.
package trustdb

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/sirupsen/logrus"
)

// Entry records why a signer_id was trusted and when.
type Entry struct {
	SignerID  string    `json:"signer_id"` // hex-encoded
	PublicKey []byte    `json:"public_key"`
	Note      string    `json:"note"`
	AddedAt   time.Time `json:"added_at"`
}

// TrustDB is the read path internal/signer.Verify depends on. Defined as
// an interface so tests can substitute an in-memory fake without standing
// up badger.
type TrustDB interface {
	Contains(signerID [32]byte) (bool, error)
}

// Config configures a Store.
type Config struct {
	Path   string
	Logger *logrus.Logger
}

// Store is a badger-backed trust database.
type Store struct {
	db  *badger.DB
	log *logrus.Logger
}

// Open opens (creating if absent) the trust database at config.Path.
func Open(config Config) (*Store, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("trustdb: path is required")
	}
	log := config.Logger
	if log == nil {
		log = logrus.New()
	}

	opts := badger.DefaultOptions(config.Path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("trustdb: open %s: %w", config.Path, err)
	}

	return &Store{db: db, log: log}, nil
}

// Close releases the underlying badger handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func signerKey(signerID [32]byte) []byte {
	return []byte("signer/" + hex.EncodeToString(signerID[:]))
}

// Contains reports whether signerID is present in the trust database.
func (s *Store) Contains(signerID [32]byte) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(signerKey(signerID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("trustdb: lookup: %w", err)
	}
	return found, nil
}

// Add records signerID as trusted, with an explanatory note and the
// public key it corresponds to (kept so `trust list` can display it
// without needing the original container in hand).
func (s *Store) Add(signerID [32]byte, publicKey []byte, note string) error {
	entry := Entry{
		SignerID:  hex.EncodeToString(signerID[:]),
		PublicKey: publicKey,
		Note:      note,
		AddedAt:   time.Now(),
	}
	value, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("trustdb: marshal entry: %w", err)
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(signerKey(signerID), value)
	})
	if err != nil {
		s.log.WithError(err).Error("trustdb: add failed")
		return fmt.Errorf("trustdb: add: %w", err)
	}
	return nil
}

// Remove deletes signerID from the trust database. It reports whether an
// entry was actually present.
func (s *Store) Remove(signerID [32]byte) (bool, error) {
	existed, err := s.Contains(signerID)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(signerKey(signerID))
	})
	if err != nil {
		return false, fmt.Errorf("trustdb: remove: %w", err)
	}
	return true, nil
}

// List returns every trusted entry, in no particular order.
func (s *Store) List() ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("signer/")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			var entry Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &entry)
			})
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("trustdb: list: %w", err)
	}
	return entries, nil
}
