package archive

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/blakesmith/ar"

	"github.com/dmitrijs2005/bundler/internal/bundler/model"
)

// arBundler streams elements into a Unix ar container.
type arBundler struct {
	base
}

func (a *arBundler) Type() model.ArchiveType { return model.ArchiveTypeAr }

func (a *arBundler) Bundle(ctx context.Context, elements []model.ArchiveElement, outputFile string) error {
	outputFile = ensureExtension(outputFile, a.Type())

	out, bw, err := a.createOutput(ctx, outputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	aw := ar.NewWriter(bw)
	if err := aw.WriteGlobalHeader(); err != nil {
		return fmt.Errorf("writing ar header %s: %w", outputFile, err)
	}
	for _, el := range elements {
		hdr := &ar.Header{
			Name:    el.EntryPath,
			ModTime: time.Now(),
			Mode:    0o644,
			Size:    el.Size,
		}
		if err := aw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("creating ar entry %s: %w", el.EntryPath, err)
		}
		if err := a.copyEntryData(ctx, aw, el.URI); err != nil {
			return fmt.Errorf("writing ar entry %s: %w", el.EntryPath, err)
		}
		a.notify(ctx, el)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing ar %s: %w", outputFile, err)
	}
	return out.Close()
}

// copyEntryData streams the file at uri into an ar.Writer. It bypasses
// io.CopyBuffer because ar.Writer.Write pads odd-length writes with a
// trailing alignment byte and folds that byte into its returned n, which
// exceeds the requested length and trips io.CopyBuffer's io.Writer contract
// check (errInvalidWrite) even though the write itself succeeded.
func (a *arBundler) copyEntryData(ctx context.Context, aw *ar.Writer, uri string) error {
	rc, _, err := a.fs.Open(ctx, uri)
	if err != nil {
		return err
	}
	defer rc.Close()

	buf := make([]byte, copyBufferSize)
	for {
		nr, rerr := rc.Read(buf)
		if nr > 0 {
			if _, werr := aw.Write(buf[:nr]); werr != nil {
				return werr
			}
		}
		if rerr == io.EOF {
			return nil
		}
		if rerr != nil {
			return rerr
		}
	}
}
