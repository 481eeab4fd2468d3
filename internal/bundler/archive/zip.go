package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/bundler/internal/bundler/model"
)

// zipBundler streams elements into a ZIP container using deflate.
type zipBundler struct {
	base
}

func (z *zipBundler) Type() model.ArchiveType { return model.ArchiveTypeZip }

func (z *zipBundler) Bundle(ctx context.Context, elements []model.ArchiveElement, outputFile string) (err error) {
	outputFile = ensureExtension(outputFile, z.Type())

	out, bw, err := z.createOutput(ctx, outputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	zw := zip.NewWriter(bw)
	for _, el := range elements {
		hdr := &zip.FileHeader{
			Name:     el.EntryPath,
			Method:   zip.Deflate,
			Modified: time.Now(),
		}
		hdr.SetMode(0o644)
		ew, err := zw.CreateHeader(hdr)
		if err != nil {
			return fmt.Errorf("creating zip entry %s: %w", el.EntryPath, err)
		}
		if _, err := z.copyFrom(ctx, ew, el.URI); err != nil {
			return fmt.Errorf("writing zip entry %s: %w", el.EntryPath, err)
		}
		z.notify(ctx, el)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalizing zip %s: %w", outputFile, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing zip %s: %w", outputFile, err)
	}
	return out.Close()
}
