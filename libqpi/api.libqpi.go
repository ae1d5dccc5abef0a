// Package libqpi ties the qpi graph model to its tooling: the graph expression grammar, run configuration,
// seed topologies, and the GraphStream batch pipeline.
package libqpi

import (
	"github.com/2x3systems/goqpi/qpi"
)

// BinsFor returns bins if it is positive, otherwise the minimal histogram bin count for X.
func BinsFor(X *qpi.Graph, bins int) (int, error) {
	if bins > 0 {
		return bins, nil
	}
	need, err := qpi.MinimalBins(X)
	if err != nil {
		return 0, err
	}
	return int(need), nil
}
