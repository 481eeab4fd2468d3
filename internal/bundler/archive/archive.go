// Package archive streams source files into typed archive containers. One
// Bundler exists per archive type; the compressed variants (GZIP, BZIP2)
// first build an intermediate TAR artifact and then pipe it through the
// compressor into the final output.
package archive

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/bundler/vfs"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

// copyBufferSize is the buffer used for streaming file content into the
// archive and through the compressors.
const copyBufferSize = 32 * 1024

// OnEntryComplete is invoked after each element has been fully written into
// the archive. Implementations must tolerate being called from the worker
// goroutine that runs the bundle.
type OnEntryComplete func(element model.ArchiveElement)

// Bundler writes a set of elements into one output archive. Entries appear
// in input order. An existing artifact at the output location is replaced.
type Bundler interface {
	// Bundle streams the elements into the archive at outputFile. The
	// output URI's extension is forced to match the archive type.
	Bundle(ctx context.Context, elements []model.ArchiveElement, outputFile string) error

	// Type identifies the container format this bundler produces.
	Type() model.ArchiveType
}

// New constructs the Bundler for the given archive type. onComplete may be
// nil when no per-entry notification is wanted.
func New(t model.ArchiveType, fs *vfs.Registry, log logging.Logger, onComplete OnEntryComplete) (Bundler, error) {
	b := base{fs: fs, log: log, onComplete: onComplete}
	switch t {
	case model.ArchiveTypeZip:
		return &zipBundler{base: b}, nil
	case model.ArchiveTypeTar:
		return &tarBundler{base: b}, nil
	case model.ArchiveTypeAr:
		return &arBundler{base: b}, nil
	case model.ArchiveTypeCpio:
		return &cpioBundler{base: b}, nil
	case model.ArchiveTypeGzip:
		return &gzipBundler{base: b}, nil
	case model.ArchiveTypeBzip2:
		return &bzip2Bundler{base: b}, nil
	}
	return nil, fmt.Errorf("no bundler for archive type %q", t)
}

type base struct {
	fs         *vfs.Registry
	log        logging.Logger
	onComplete OnEntryComplete
}

// notify fires the per-entry completion callback.
func (b *base) notify(ctx context.Context, el model.ArchiveElement) {
	if b.onComplete != nil {
		b.onComplete(el)
	} else {
		b.log.Debug(ctx, "archive entry complete", "entry", el.EntryPath)
	}
}

// copyFrom streams the file at uri into w.
func (b *base) copyFrom(ctx context.Context, w io.Writer, uri string) (int64, error) {
	rc, _, err := b.fs.Open(ctx, uri)
	if err != nil {
		return 0, err
	}
	defer rc.Close()
	buf := make([]byte, copyBufferSize)
	return io.CopyBuffer(w, rc, buf)
}

// createOutput removes a stale artifact and opens a fresh buffered writer
// for it. Callers must Flush the *bufio.Writer and Close the WriteCloser,
// in that order.
func (b *base) createOutput(ctx context.Context, uri string) (io.WriteCloser, *bufio.Writer, error) {
	if err := b.fs.Remove(ctx, uri); err != nil {
		return nil, nil, fmt.Errorf("removing stale artifact %s: %w", uri, err)
	}
	w, err := b.fs.Create(ctx, uri)
	if err != nil {
		return nil, nil, fmt.Errorf("creating artifact %s: %w", uri, err)
	}
	return w, bufio.NewWriterSize(w, copyBufferSize), nil
}

// ensureExtension forces the output URI to carry the type's extension.
func ensureExtension(outputFile string, t model.ArchiveType) string {
	ext := "." + t.Extension()
	if strings.HasSuffix(outputFile, ext) {
		return outputFile
	}
	return strings.TrimSuffix(outputFile, ".") + ext
}
