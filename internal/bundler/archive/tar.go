package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bundler/internal/bundler/model"
)

// tarBundler streams elements into an uncompressed TAR container. Its
// writeTar core is shared with the compressed variants, which produce the
// intermediate TAR before the compression pass.
type tarBundler struct {
	base
}

func (t *tarBundler) Type() model.ArchiveType { return model.ArchiveTypeTar }

func (t *tarBundler) Bundle(ctx context.Context, elements []model.ArchiveElement, outputFile string) error {
	return t.writeTar(ctx, elements, ensureExtension(outputFile, t.Type()))
}

func (t *tarBundler) writeTar(ctx context.Context, elements []model.ArchiveElement, outputFile string) error {
	out, bw, err := t.createOutput(ctx, outputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	tw := tar.NewWriter(bw)
	for _, el := range elements {
		hdr := &tar.Header{
			Name:     el.EntryPath,
			Size:     el.Size,
			Mode:     0o644,
			ModTime:  time.Now(),
			Typeflag: tar.TypeReg,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("creating tar entry %s: %w", el.EntryPath, err)
		}
		if _, err := t.copyFrom(ctx, tw, el.URI); err != nil {
			return fmt.Errorf("writing tar entry %s: %w", el.EntryPath, err)
		}
		t.notify(ctx, el)
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing tar %s: %w", outputFile, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing tar %s: %w", outputFile, err)
	}
	return out.Close()
}
