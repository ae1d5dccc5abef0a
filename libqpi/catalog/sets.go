package catalog

import (
	"github.com/2x3systems/goqpi/qpi"
	"github.com/dgraph-io/badger/v4"
)

// HashSet is a set of content hashes held in an in-memory LSM.  Unlike a Catalog it keeps no graph bodies,
// so it only answers "seen before?".
type HashSet struct {
	lsmSet
}

// NewDropDupes returns a GraphAdder that admits each distinct graph (by content hash) exactly once.
// Call Close when done.
func NewDropDupes() *HashSet {
	return &HashSet{}
}

// TryAdd adds h and returns true if h was not already present.
func (set *HashSet) TryAdd(h qpi.Hash) (bool, error) {
	return set.tryAdd(h[:])
}

func (set *HashSet) TryAddGraph(X *qpi.Graph) (bool, error) {
	if X == nil {
		return false, qpi.ErrNilGraph
	}
	return set.TryAdd(qpi.ContentHash(X))
}

type lsmSet struct {
	db *badger.DB
}

func (set *lsmSet) autoOpen() error {
	if set.db == nil {
		dbOpts := badger.DefaultOptions("").WithInMemory(true)
		dbOpts.Logger = nil
		dbOpts.MetricsEnabled = false

		var err error
		set.db, err = badger.Open(dbOpts)
		if err != nil {
			return err
		}
	}
	return nil
}

func (set *lsmSet) tryAdd(key []byte) (bool, error) {
	if err := set.autoOpen(); err != nil {
		return false, err
	}

	txn := set.db.NewTransaction(true)
	defer txn.Discard()

	_, err := txn.Get(key)
	if err == nil {
		return false, nil // already in the db
	}
	if err != badger.ErrKeyNotFound {
		return false, err
	}
	if err = txn.Set(key, nil); err != nil {
		return false, err
	}
	if err = txn.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

// Close removes all previously added items from this set.
func (set *lsmSet) Close() error {
	if set.db == nil {
		return nil
	}
	err := set.db.Close()
	set.db = nil
	return err
}
