// Package packer groups an ordered list of input files into output archives
// that stay under a target size, and generates the output file names and
// client-facing URLs for the archives it plans.
package packer

import (
	"context"

	"github.com/dmitrijs2005/bundler/internal/bundler/estimate"
	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

// BytesPerMegabyte converts the MB-denominated config values to bytes.
const BytesPerMegabyte = 1024 * 1024

// Bin is one planned archive: its elements in input order, the estimated
// compressed size used during packing, and the actual uncompressed total.
type Bin struct {
	Elements      []model.ArchiveElement
	EstimatedSize int64
	Size          int64
}

// Packer splits file lists into bins by first fit in input order. No
// reordering happens, so entry order inside each archive is exactly the
// input order.
type Packer struct {
	estimator *estimate.Estimator
	log       logging.Logger
}

// New constructs a Packer.
func New(estimator *estimate.Estimator, log logging.Logger) *Packer {
	return &Packer{estimator: estimator, log: log}
}

// ClampTargetSizeMB forces the requested MB value into [min, max]; zero and
// negative requests fall back to def.
func ClampTargetSizeMB(requested, min, max, def int64) int64 {
	if requested <= 0 {
		requested = def
	}
	if requested < min {
		return min
	}
	if requested > max {
		return max
	}
	return requested
}

// Pack splits elements into bins whose estimated size stays below
// targetSize bytes. A single file whose estimate alone reaches the target
// forms its own bin. Empty input produces no bins.
func (p *Packer) Pack(ctx context.Context, elements []model.ArchiveElement, t model.ArchiveType, targetSize int64) []Bin {
	if len(elements) == 0 {
		p.log.Warn(ctx, "no input elements, nothing to pack")
		return nil
	}

	var bins []Bin
	running := Bin{}
	for _, el := range elements {
		est := p.estimator.EstimatedSize(el.Size, t)
		if len(running.Elements) > 0 && running.EstimatedSize+est >= targetSize {
			bins = append(bins, running)
			running = Bin{}
		}
		running.Elements = append(running.Elements, el)
		running.EstimatedSize += est
		running.Size += el.Size
	}
	bins = append(bins, running)

	p.log.Debug(ctx, "packed input into archives",
		"files", len(elements), "archives", len(bins), "target_size", targetSize)
	return bins
}
