// internal/snapshot/store.go
package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"revdiff/internal/logging"
	"revdiff/internal/storage"
)

var (
	ErrNotFound    = errors.New("snapshot not found")
	ErrInvalidHash = errors.New("invalid snapshot hash")
)

// Meta describes a stored snapshot
type Meta struct {
	Hash       string    `json:"hash"`
	Size       int64     `json:"size"`
	StoredSize int64     `json:"stored_size"`
	RefCount   uint32    `json:"ref_count"`
	Compressed bool      `json:"compressed"`
	CreatedAt  time.Time `json:"created_at"`
}

func (m *Meta) GetID() string { return m.Hash }

// Options configures a Store
type Options struct {
	CacheSize   int
	Compression CompressionOptions
}

// Store keeps full document texts addressed by their SHA-256. Identical
// texts are stored once and reference counted.
type Store struct {
	db     *badger.DB
	meta   *storage.BadgerStore
	cache  *lru.Cache[string, string]
	comp   *compressionManager
	logger *logging.Logger
}

func New(db *badger.DB, opts Options, logger *logging.Logger) (*Store, error) {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 64
	}
	cache, err := lru.New[string, string](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	comp, err := newCompressionManager(opts.Compression)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Store{
		db:     db,
		meta:   storage.NewBadgerStore(db, "snapshot"),
		cache:  cache,
		comp:   comp,
		logger: logger,
	}, nil
}

// Hash returns the address text is stored under
func Hash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Put stores text, or takes another reference on an identical snapshot,
// and returns its hash
func (s *Store) Put(text string) (string, error) {
	hash := Hash(text)
	content := []byte(text)

	err := s.db.Update(func(txn *badger.Txn) error {
		var meta Meta
		err := s.meta.GetTxn(txn, hash, &meta)
		if err == nil {
			meta.RefCount++
			return s.meta.PutTxn(txn, &meta)
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		stored, compressed := s.comp.compress(content)
		meta = Meta{
			Hash:       hash,
			Size:       int64(len(content)),
			StoredSize: int64(len(stored)),
			RefCount:   1,
			Compressed: compressed,
			CreatedAt:  time.Now().UTC(),
		}
		if err := txn.Set(blobKey(hash), stored); err != nil {
			return err
		}
		return s.meta.CreateTxn(txn, &meta)
	})
	if err != nil {
		return "", fmt.Errorf("storing snapshot: %w", err)
	}

	s.cache.Add(hash, text)
	return hash, nil
}

// Get returns the text stored under hash, verifying its integrity
func (s *Store) Get(hash string) (string, error) {
	if !isValidHash(hash) {
		return "", ErrInvalidHash
	}
	if text, ok := s.cache.Get(hash); ok {
		return text, nil
	}

	var meta Meta
	var stored []byte
	err := s.db.View(func(txn *badger.Txn) error {
		if err := s.meta.GetTxn(txn, hash, &meta); err != nil {
			return err
		}
		item, err := txn.Get(blobKey(hash))
		if err != nil {
			return err
		}
		stored, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, storage.ErrNotFound) || errors.Is(err, badger.ErrKeyNotFound) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if err != nil {
		return "", fmt.Errorf("reading snapshot: %w", err)
	}

	content := stored
	if meta.Compressed {
		if content, err = s.comp.decompress(stored); err != nil {
			return "", fmt.Errorf("snapshot %s: %w", hash, err)
		}
	}

	text := string(content)
	if Hash(text) != hash {
		s.logger.Error("snapshot hash mismatch", zap.String("hash", hash))
		return "", fmt.Errorf("snapshot %s: content hash mismatch", hash)
	}

	s.cache.Add(hash, text)
	return text, nil
}

// Release drops one reference and deletes the snapshot with the last one
func (s *Store) Release(hash string) error {
	if !isValidHash(hash) {
		return ErrInvalidHash
	}

	var removed bool
	err := s.db.Update(func(txn *badger.Txn) error {
		var meta Meta
		if err := s.meta.GetTxn(txn, hash, &meta); err != nil {
			return err
		}

		meta.RefCount--
		if meta.RefCount > 0 {
			return s.meta.PutTxn(txn, &meta)
		}
		removed = true
		if err := txn.Delete(blobKey(hash)); err != nil {
			return err
		}
		return s.meta.DeleteTxn(txn, hash)
	})
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	if err != nil {
		return fmt.Errorf("releasing snapshot: %w", err)
	}

	if removed {
		s.cache.Remove(hash)
	}
	return nil
}

func (s *Store) Exists(hash string) (bool, error) {
	if !isValidHash(hash) {
		return false, ErrInvalidHash
	}
	if s.cache.Contains(hash) {
		return true, nil
	}

	_, err := s.Meta(hash)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) Meta(hash string) (Meta, error) {
	var meta Meta
	err := s.meta.Get(hash, &meta)
	if errors.Is(err, storage.ErrNotFound) {
		return meta, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return meta, err
}

func blobKey(hash string) []byte {
	return []byte("blob:" + hash)
}

func isValidHash(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}
