package archive

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/gzip"

	"github.com/dmitrijs2005/bundler/internal/bundler/model"
)

// gzipBundler builds an intermediate TAR artifact and pipes it through the
// gzip compressor into the final .tar.gz output. The intermediate file is
// deleted once the compressed output exists.
type gzipBundler struct {
	base
}

func (g *gzipBundler) Type() model.ArchiveType { return model.ArchiveTypeGzip }

func (g *gzipBundler) Bundle(ctx context.Context, elements []model.ArchiveElement, outputFile string) error {
	return compressTar(ctx, &g.base, elements, outputFile, g.Type(),
		func(w io.Writer) (io.WriteCloser, error) {
			return gzip.NewWriterLevel(w, gzip.BestCompression)
		})
}

// bzip2Bundler is the BZIP2 variant of the two-pass compressed bundle.
type bzip2Bundler struct {
	base
}

func (b *bzip2Bundler) Type() model.ArchiveType { return model.ArchiveTypeBzip2 }

func (b *bzip2Bundler) Bundle(ctx context.Context, elements []model.ArchiveElement, outputFile string) error {
	return compressTar(ctx, &b.base, elements, outputFile, b.Type(),
		func(w io.Writer) (io.WriteCloser, error) {
			return bzip2.NewWriter(w, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
		})
}

// compressTar runs the two-pass bundle shared by the compressed variants:
// write the intermediate TAR, pipe it through the compressor into the
// final artifact, then delete the intermediate.
func compressTar(
	ctx context.Context,
	b *base,
	elements []model.ArchiveElement,
	outputFile string,
	t model.ArchiveType,
	newCompressor func(io.Writer) (io.WriteCloser, error),
) error {
	outputFile = ensureExtension(outputFile, t)

	// The type extension is "tar.<codec>", so trimming the codec suffix
	// leaves the intermediate ".tar" path.
	intermediate := strings.TrimSuffix(outputFile, strings.TrimPrefix("."+t.Extension(), ".tar"))

	tb := &tarBundler{base: *b}
	if err := tb.writeTar(ctx, elements, intermediate); err != nil {
		return err
	}
	b.log.Debug(ctx, "intermediate tar created", "file", intermediate)

	if err := compressFile(ctx, b, intermediate, outputFile, newCompressor); err != nil {
		return err
	}

	if err := b.fs.Remove(ctx, intermediate); err != nil {
		return fmt.Errorf("removing intermediate tar %s: %w", intermediate, err)
	}
	return nil
}

// compressFile pipes the file at inputFile through the compressor into
// outputFile.
func compressFile(
	ctx context.Context,
	b *base,
	inputFile, outputFile string,
	newCompressor func(io.Writer) (io.WriteCloser, error),
) error {
	rc, _, err := b.fs.Open(ctx, inputFile)
	if err != nil {
		return err
	}
	defer rc.Close()

	out, bw, err := b.createOutput(ctx, outputFile)
	if err != nil {
		return err
	}
	defer out.Close()

	cw, err := newCompressor(bw)
	if err != nil {
		return fmt.Errorf("opening compressor for %s: %w", outputFile, err)
	}

	buf := make([]byte, copyBufferSize)
	if _, err := io.CopyBuffer(cw, rc, buf); err != nil {
		return fmt.Errorf("compressing %s: %w", inputFile, err)
	}
	if err := cw.Close(); err != nil {
		return fmt.Errorf("finalizing compressed output %s: %w", outputFile, err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flushing compressed output %s: %w", outputFile, err)
	}
	return out.Close()
}
