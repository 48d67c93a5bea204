package storage

import (
	"errors"
	"sort"
)

// ErrTxClosed is returned when a committed or discarded Tx is used again.
var ErrTxClosed = errors.New("storage: transaction closed")

type dirtyEntry struct {
	value   []byte
	deleted bool
}

type journalEntry struct {
	key     string
	prev    dirtyEntry
	present bool
}

// Tx is a unit of work over a Database. Writes are staged in memory and are
// visible to reads through the same Tx; Commit applies all of them with one
// atomic batch, Discard drops them. Snapshot/RevertToSnapshot undo staged
// writes back to an earlier point without closing the Tx.
//
// Tx is not safe for concurrent use.
type Tx struct {
	db      Database
	dirty   map[string]dirtyEntry
	journal []journalEntry
	closed  bool
}

// NewTx opens a unit of work on db.
func NewTx(db Database) *Tx {
	return &Tx{db: db, dirty: make(map[string]dirtyEntry)}
}

// Get returns the staged value for key, falling back to the database.
func (tx *Tx) Get(key []byte) ([]byte, error) {
	if tx.closed {
		return nil, ErrTxClosed
	}
	if entry, ok := tx.dirty[string(key)]; ok {
		if entry.deleted {
			return nil, ErrNotFound
		}
		return append([]byte(nil), entry.value...), nil
	}
	return tx.db.Get(key)
}

// Has reports whether key exists in the staged view.
func (tx *Tx) Has(key []byte) (bool, error) {
	if tx.closed {
		return false, ErrTxClosed
	}
	if entry, ok := tx.dirty[string(key)]; ok {
		return !entry.deleted, nil
	}
	return tx.db.Has(key)
}

// Put stages a write.
func (tx *Tx) Put(key []byte, value []byte) error {
	if tx.closed {
		return ErrTxClosed
	}
	tx.record(key)
	tx.dirty[string(key)] = dirtyEntry{value: append([]byte(nil), value...)}
	return nil
}

// Delete stages a removal.
func (tx *Tx) Delete(key []byte) error {
	if tx.closed {
		return ErrTxClosed
	}
	tx.record(key)
	tx.dirty[string(key)] = dirtyEntry{deleted: true}
	return nil
}

func (tx *Tx) record(key []byte) {
	prev, present := tx.dirty[string(key)]
	tx.journal = append(tx.journal, journalEntry{key: string(key), prev: prev, present: present})
}

// Snapshot returns an identifier for the current staged state.
func (tx *Tx) Snapshot() int {
	return len(tx.journal)
}

// RevertToSnapshot undoes every staged write made after the snapshot was
// taken. Invalid identifiers are ignored.
func (tx *Tx) RevertToSnapshot(id int) {
	if tx.closed || id < 0 || id > len(tx.journal) {
		return
	}
	for i := len(tx.journal) - 1; i >= id; i-- {
		entry := tx.journal[i]
		if entry.present {
			tx.dirty[entry.key] = entry.prev
		} else {
			delete(tx.dirty, entry.key)
		}
	}
	tx.journal = tx.journal[:id]
}

// Pending returns the number of keys with staged changes.
func (tx *Tx) Pending() int {
	return len(tx.dirty)
}

// Commit writes every staged change to the database in a single batch and
// closes the Tx. Keys are written in sorted order so the batch is
// deterministic.
func (tx *Tx) Commit() error {
	if tx.closed {
		return ErrTxClosed
	}
	keys := make([]string, 0, len(tx.dirty))
	for key := range tx.dirty {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	batch := NewBatch()
	for _, key := range keys {
		entry := tx.dirty[key]
		if entry.deleted {
			batch.Delete([]byte(key))
			continue
		}
		batch.Put([]byte(key), entry.value)
	}
	if err := tx.db.Write(batch); err != nil {
		return err
	}
	tx.close()
	return nil
}

// Discard drops every staged change and closes the Tx. Discarding a closed Tx
// is a no-op, so callers can defer it unconditionally.
func (tx *Tx) Discard() {
	tx.close()
}

func (tx *Tx) close() {
	tx.closed = true
	tx.dirty = nil
	tx.journal = nil
}
