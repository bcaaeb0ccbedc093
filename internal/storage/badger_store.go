// internal/storage/badger_store.go
package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

var (
	ErrNotFound = errors.New("entity not found")
	ErrExists   = errors.New("entity already exists")
)

// Entity represents any storable entity with an ID
type Entity interface {
	GetID() string
}

// Open opens the database at path, or an in-memory one
func Open(path string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	return badger.Open(opts)
}

// BadgerStore keeps JSON encoded entities under a key prefix
type BadgerStore struct {
	db     *badger.DB
	prefix string
}

func NewBadgerStore(db *badger.DB, prefix string) *BadgerStore {
	return &BadgerStore{
		db:     db,
		prefix: prefix,
	}
}

func (s *BadgerStore) makeKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", s.prefix, id))
}

func (s *BadgerStore) Create(entity Entity) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.CreateTxn(txn, entity)
	})
}

// CreateTxn stores a new entity inside a caller managed transaction
func (s *BadgerStore) CreateTxn(txn *badger.Txn, entity Entity) error {
	key, data, err := s.encode(entity)
	if err != nil {
		return err
	}

	// Check if key already exists
	_, err = txn.Get(key)
	if err == nil {
		return fmt.Errorf("%w: %s", ErrExists, entity.GetID())
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}

	return txn.Set(key, data)
}

// Put creates or replaces an entity
func (s *BadgerStore) Put(entity Entity) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.PutTxn(txn, entity)
	})
}

func (s *BadgerStore) PutTxn(txn *badger.Txn, entity Entity) error {
	key, data, err := s.encode(entity)
	if err != nil {
		return err
	}
	return txn.Set(key, data)
}

func (s *BadgerStore) Get(id string, entity Entity) error {
	return s.db.View(func(txn *badger.Txn) error {
		return s.GetTxn(txn, id, entity)
	})
}

func (s *BadgerStore) GetTxn(txn *badger.Txn, id string, entity Entity) error {
	item, err := txn.Get(s.makeKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return err
	}

	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, entity)
	})
}

func (s *BadgerStore) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return s.DeleteTxn(txn, id)
	})
}

// DeleteTxn removes an entity inside a caller managed transaction
func (s *BadgerStore) DeleteTxn(txn *badger.Txn, id string) error {
	key := s.makeKey(id)

	// Check if exists
	_, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	} else if err != nil {
		return err
	}

	return txn.Delete(key)
}

// List decodes every entity of the store into results, which must point
// to a slice
func (s *BadgerStore) List(results any) error {
	return s.ListPrefix("", results)
}

// ListPrefix is List restricted to IDs starting with idPrefix, in key order
func (s *BadgerStore) ListPrefix(idPrefix string, results any) error {
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := s.makeKey(idPrefix)
		values := []json.RawMessage{}

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			err := item.Value(func(val []byte) error {
				values = append(values, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				return err
			}
		}

		// Marshal collected values into final result
		data, err := json.Marshal(values)
		if err != nil {
			return err
		}

		return json.Unmarshal(data, results)
	})

	if err != nil {
		return fmt.Errorf("listing entities: %w", err)
	}
	return nil
}

func (s *BadgerStore) encode(entity Entity) ([]byte, []byte, error) {
	if entity.GetID() == "" {
		return nil, nil, fmt.Errorf("entity ID cannot be empty")
	}

	data, err := json.Marshal(entity)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling entity: %w", err)
	}
	return s.makeKey(entity.GetID()), data, nil
}
