package catalog

import (
	"runtime"

	"github.com/2x3systems/goqpi/qpi"
	"github.com/dgraph-io/badger/v4"
	"github.com/gogo/protobuf/proto"
	"github.com/pkg/errors"
	"github.com/zeebo/blake3"
)

/***

Catalog database format:

	gCatalogStateKey             => CatalogState { MajorVers, MinorVers, NumGraphs }  (varints)

	kGraphPrefix, Hash (32 bytes) => canonical graph encoding   (UserMeta = node count, saturated at 255)

Every validated graph is keyed by the BLAKE3 hash of its canonical encoding, so a lookup never needs to decode
the stored value.  Select walks the graph prefix and filters by node count using UserMeta before decoding.

***/

var (
	gCatalogStateKey = []byte{0x00, 0x00, 0x01}
)

const (
	kGraphPrefix byte = 0x10
	kMajorVers        = 2026
	kMinorVers        = 1
)

// CatalogState is the persisted header of a catalog.
type CatalogState struct {
	MajorVers uint64
	MinorVers uint64
	NumGraphs uint64
}

func (state *CatalogState) Marshal() []byte {
	enc := proto.NewBuffer(nil)
	enc.EncodeVarint(state.MajorVers)
	enc.EncodeVarint(state.MinorVers)
	enc.EncodeVarint(state.NumGraphs)
	return enc.Bytes()
}

func (state *CatalogState) Unmarshal(buf []byte) error {
	dec := proto.NewBuffer(buf)
	for _, field := range []*uint64{&state.MajorVers, &state.MinorVers, &state.NumGraphs} {
		x, err := dec.DecodeVarint()
		if err != nil {
			return errors.Wrap(qpi.ErrCatalogVersion, err.Error())
		}
		*field = x
	}
	return nil
}

// Selector specifies which graphs Select returns.
type Selector struct {
	MinNodes int
	MaxNodes int // 0 means no upper bound
}

// DefaultSelector selects every graph.
var DefaultSelector = Selector{}

func (sel Selector) selectsNodeCount(Nv int) bool {
	if Nv < sel.MinNodes {
		return false
	}
	return sel.MaxNodes <= 0 || Nv <= sel.MaxNodes
}

// Catalog is a badger-backed content-addressed store of validated graphs.
// TryAddGraph must not be called from more than one goroutine at a time.
type Catalog struct {
	readOnly   bool
	stateDirty bool
	state      CatalogState
	db         *badger.DB
}

var _ qpi.GraphSet = (*Catalog)(nil)

// Open opens (or creates) the catalog at opts.DbPathName, or an in-memory catalog when the path is empty.
func Open(opts qpi.CatalogOpts) (*Catalog, error) {
	cat := &Catalog{
		readOnly: opts.ReadOnly,
	}

	dbOpts := badger.DefaultOptions(opts.DbPathName)
	dbOpts.ReadOnly = opts.ReadOnly
	dbOpts.DetectConflicts = false // not needed so disable for performance
	dbOpts.Logger = nil
	dbOpts.MetricsEnabled = false

	// Badger for windows currently does not support read-only mode
	if runtime.GOOS == "windows" {
		dbOpts.ReadOnly = false
	}

	if len(opts.DbPathName) == 0 {
		if opts.ReadOnly {
			return nil, errors.Wrap(qpi.ErrBadCatalogParam, "DbPathName must be specified for read-only catalog")
		}
		dbOpts.InMemory = true
	}

	var err error
	cat.db, err = badger.Open(dbOpts)
	if err != nil {
		return nil, err
	}

	err = cat.loadState()
	if err == badger.ErrKeyNotFound {
		err = nil
		cat.stateDirty = !cat.readOnly
		cat.state = CatalogState{
			MajorVers: kMajorVers,
			MinorVers: kMinorVers,
		}
	}
	if err == nil && (cat.state.MajorVers != kMajorVers || cat.state.MinorVers != kMinorVers) {
		err = errors.Wrapf(qpi.ErrCatalogVersion, "catalog is v%d.%d", cat.state.MajorVers, cat.state.MinorVers)
	}
	if err != nil {
		cat.Close()
		return nil, err
	}
	return cat, nil
}

// NewGraphSet returns an empty in-memory catalog.
func NewGraphSet() (*Catalog, error) {
	return Open(qpi.CatalogOpts{})
}

func (cat *Catalog) loadState() error {
	return cat.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(gCatalogStateKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cat.state.Unmarshal(val)
		})
	})
}

func (cat *Catalog) flushState() error {
	if !cat.stateDirty {
		return nil
	}
	err := cat.db.Update(func(txn *badger.Txn) error {
		return txn.Set(gCatalogStateKey, cat.state.Marshal())
	})
	if err == nil {
		cat.stateDirty = false
	}
	return err
}

func (cat *Catalog) Close() error {
	if cat.db == nil {
		return nil
	}
	err := cat.flushState()
	if closeErr := cat.db.Close(); err == nil {
		err = closeErr
	}
	cat.db = nil
	return err
}

// checkOpen fails once Close has been called.
func (cat *Catalog) checkOpen() error {
	if cat.db == nil {
		return errors.Wrap(qpi.ErrBadCatalogParam, "catalog is closed")
	}
	return nil
}

func (cat *Catalog) IsReadOnly() bool {
	return cat.readOnly
}

// Count returns the number of distinct graphs in the catalog.
func (cat *Catalog) Count() int64 {
	return int64(cat.state.NumGraphs)
}

func formGraphKey(key []byte, h qpi.Hash) []byte {
	key = append(key, kGraphPrefix)
	return append(key, h[:]...)
}

func nodeCountMeta(X *qpi.Graph) byte {
	if len(X.Nodes) > 0xFF {
		return 0xFF
	}
	return byte(len(X.Nodes))
}

// TryAddGraph adds X if no graph with the same content hash is present and reports whether it was added.
func (cat *Catalog) TryAddGraph(X *qpi.Graph) (bool, error) {
	if X == nil {
		return false, qpi.ErrNilGraph
	}
	if err := cat.checkOpen(); err != nil {
		return false, err
	}
	if cat.readOnly {
		return false, errors.Wrap(qpi.ErrBadCatalogParam, "catalog is read-only")
	}

	var keyBuf [64]byte
	val := qpi.AppendCanonicalTo(nil, X)
	h := qpi.Hash(blake3.Sum256(val))
	key := formGraphKey(keyBuf[:0], h)

	txn := cat.db.NewTransaction(true)
	defer txn.Discard()

	_, err := txn.Get(key)
	if err == nil {
		return false, nil
	}
	if err != badger.ErrKeyNotFound {
		return false, err
	}

	if err = txn.SetEntry(badger.NewEntry(key, val).WithMeta(nodeCountMeta(X))); err != nil {
		return false, err
	}
	if err = txn.Commit(); err != nil {
		return false, err
	}

	cat.state.NumGraphs++
	cat.stateDirty = true
	return true, nil
}

// Contains reports if a graph with content hash h was previously added.
func (cat *Catalog) Contains(h qpi.Hash) (bool, error) {
	if err := cat.checkOpen(); err != nil {
		return false, err
	}
	var keyBuf [64]byte
	key := formGraphKey(keyBuf[:0], h)

	err := cat.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		return err
	})
	switch err {
	case nil:
		return true, nil
	case badger.ErrKeyNotFound:
		return false, nil
	}
	return false, err
}

// Get decodes and returns the graph stored under h.
func (cat *Catalog) Get(h qpi.Hash) (*qpi.Graph, error) {
	if err := cat.checkOpen(); err != nil {
		return nil, err
	}
	var keyBuf [64]byte
	key := formGraphKey(keyBuf[:0], h)

	var X *qpi.Graph
	err := cat.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err == badger.ErrKeyNotFound {
			return errors.Wrapf(qpi.ErrNotFound, "graph %v", h)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			X, err = qpi.DecodeCanonical(val)
			return err
		})
	})
	return X, err
}

// Select sends every graph matching sel to onHit in hash order.  Ownership of each Graph passes to the receiver.
// The caller closes onHit after Select returns.
func (cat *Catalog) Select(sel Selector, onHit qpi.OnGraphHit) error {
	if err := cat.checkOpen(); err != nil {
		return err
	}
	txn := cat.db.NewTransaction(false)
	defer txn.Discard()

	prefix := []byte{kGraphPrefix}
	it := txn.NewIterator(badger.IteratorOptions{
		PrefetchValues: true,
		PrefetchSize:   300,
		Prefix:         prefix,
	})
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		if Nv := int(item.UserMeta()); Nv < 0xFF && !sel.selectsNodeCount(Nv) {
			continue
		}

		var X *qpi.Graph
		err := item.Value(func(val []byte) error {
			var err error
			X, err = qpi.DecodeCanonical(val)
			return err
		})
		if err != nil {
			return errors.Wrapf(err, "catalog entry %x", item.Key())
		}
		if sel.selectsNodeCount(len(X.Nodes)) {
			onHit <- X
		}
	}
	return nil
}
