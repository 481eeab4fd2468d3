package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/cavaliergopher/cpio"

	"github.com/dmitrijs2005/bundler/internal/bundler/model"
)

// cpioBundler streams elements into a cpio container (newc format).
type cpioBundler struct {
	base
}

func (c *cpioBundler) Type() model.ArchiveType { return model.ArchiveTypeCpio }

func (c *cpioBundler) Bundle(ctx context.Context, elements []model.ArchiveElement, outputFile string) error {
	outputFile = ensureExtension(outputFile, c.Type())

	out, bw, err := c.createOutput(ctx, outputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	cw := cpio.NewWriter(bw)
	for _, el := range elements {
		hdr := &cpio.Header{
			Name:    el.EntryPath,
			Mode:    0o644,
			Size:    el.Size,
			ModTime: time.Now(),
		}
		if err := cw.WriteHeader(hdr); err != nil {
			return fmt.Errorf("creating cpio entry %s: %w", el.EntryPath, err)
		}
		if _, err := c.copyFrom(ctx, cw, el.URI); err != nil {
			return fmt.Errorf("writing cpio entry %s: %w", el.EntryPath, err)
		}
		c.notify(ctx, el)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("finalizing cpio %s: %w", outputFile, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing cpio %s: %w", outputFile, err)
	}
	return out.Close()
}
