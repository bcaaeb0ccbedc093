package storage

import (
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type note struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

func (n *note) GetID() string { return n.ID }

func setupTestDB(t *testing.T) *badger.DB {
	db, err := Open("", true)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestBadgerStoreCRUD(t *testing.T) {
	store := NewBadgerStore(setupTestDB(t), "note")

	require.NoError(t, store.Create(&note{ID: "a", Body: "first"}))
	assert.ErrorIs(t, store.Create(&note{ID: "a"}), ErrExists)
	assert.Error(t, store.Create(&note{}))

	var got note
	require.NoError(t, store.Get("a", &got))
	assert.Equal(t, "first", got.Body)

	require.NoError(t, store.Put(&note{ID: "a", Body: "second"}))
	require.NoError(t, store.Get("a", &got))
	assert.Equal(t, "second", got.Body)

	require.NoError(t, store.Put(&note{ID: "b", Body: "upsert"}))
	require.NoError(t, store.Delete("a"))
	assert.ErrorIs(t, store.Get("a", &got), ErrNotFound)
	assert.ErrorIs(t, store.Delete("a"), ErrNotFound)
}

func TestBadgerStoreListPrefix(t *testing.T) {
	db := setupTestDB(t)
	store := NewBadgerStore(db, "note")
	other := NewBadgerStore(db, "other")

	for _, id := range []string{"doc/2", "doc/1", "draft/1"} {
		require.NoError(t, store.Create(&note{ID: id, Body: id}))
	}
	require.NoError(t, other.Create(&note{ID: "doc/9"}))

	var notes []note
	require.NoError(t, store.ListPrefix("doc/", &notes))
	require.Len(t, notes, 2)
	assert.Equal(t, "doc/1", notes[0].ID)
	assert.Equal(t, "doc/2", notes[1].ID)

	var all []note
	require.NoError(t, store.List(&all))
	assert.Len(t, all, 3)

	var none []note
	require.NoError(t, store.ListPrefix("missing/", &none))
	assert.Empty(t, none)
}

func TestBadgerStoreTransaction(t *testing.T) {
	db := setupTestDB(t)
	store := NewBadgerStore(db, "note")

	err := db.Update(func(txn *badger.Txn) error {
		if err := store.CreateTxn(txn, &note{ID: "x"}); err != nil {
			return err
		}
		return store.CreateTxn(txn, &note{ID: "x"})
	})
	assert.ErrorIs(t, err, ErrExists)

	// The failed transaction left nothing behind
	var got note
	assert.ErrorIs(t, store.Get("x", &got), ErrNotFound)
}

func TestBadgerStoreDeleteTxn(t *testing.T) {
	db := setupTestDB(t)
	store := NewBadgerStore(db, "note")
	require.NoError(t, store.Create(&note{ID: "a"}))
	require.NoError(t, store.Create(&note{ID: "b"}))

	// A failure later in the transaction keeps the entity
	err := db.Update(func(txn *badger.Txn) error {
		if err := store.DeleteTxn(txn, "a"); err != nil {
			return err
		}
		return store.DeleteTxn(txn, "missing")
	})
	assert.ErrorIs(t, err, ErrNotFound)

	var got note
	require.NoError(t, store.Get("a", &got))

	err = db.Update(func(txn *badger.Txn) error {
		if err := store.DeleteTxn(txn, "a"); err != nil {
			return err
		}
		return store.DeleteTxn(txn, "b")
	})
	require.NoError(t, err)
	assert.ErrorIs(t, store.Get("a", &got), ErrNotFound)
	assert.ErrorIs(t, store.Get("b", &got), ErrNotFound)
}
