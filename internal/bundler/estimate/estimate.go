// Package estimate predicts the compressed size of a file before it is
// archived. The prediction only feeds the bin-packer; nothing downstream
// may rely on its accuracy. The current model applies a single configured
// average compression percentage; a future model may key off the file
// extension, so callers must not depend on extension awareness.
package estimate

import "github.com/dmitrijs2005/bundler/internal/bundler/model"

// Estimator predicts compressed sizes from a configured average
// compression percentage.
type Estimator struct {
	averagePct int
}

// New constructs an Estimator. The percentage is clamped to [0, 100].
func New(averageCompressionPct int) *Estimator {
	switch {
	case averageCompressionPct < 0:
		averageCompressionPct = 0
	case averageCompressionPct > 100:
		averageCompressionPct = 100
	}
	return &Estimator{averagePct: averageCompressionPct}
}

// EstimatedSize returns the predicted archived size of a file of the given
// size. Plain containers (TAR, AR, CPIO) store bytes unchanged; compressed
// types scale by the configured percentage. Non-positive sizes estimate 0.
func (e *Estimator) EstimatedSize(size int64, t model.ArchiveType) int64 {
	if size <= 0 {
		return 0
	}
	if !t.Compressed() {
		return size
	}
	return size * int64(100-e.averagePct) / 100
}
