package qpi

// GraphAdder accepts validated graphs keyed by their content hash.
type GraphAdder interface {

	// Tries to add the given graph to this set.
	// If true is returned, X was not present and was added.
	TryAddGraph(X *Graph) (bool, error)
}

// GraphSet is a content-addressed set of validated graphs.
type GraphSet interface {
	GraphAdder

	// Returns true if a graph with the given hash was previously added.
	Contains(h Hash) (bool, error)

	// Returns the graph stored for the given hash or an error wrapping ErrNotFound.
	Get(h Hash) (*Graph, error)

	// Returns the number of graphs added.
	Count() int64

	Close() error
}

// CatalogOpts specifies params for opening a graph catalog
type CatalogOpts struct {
	DbPathName string // omit for in-memory db
	ReadOnly   bool   // open in read-only mode
}

// OnGraphHit receives graphs as a catalog is walked.  Ownership of each Graph travels through the channel.
type OnGraphHit chan<- *Graph
