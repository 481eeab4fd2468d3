// Package hashgen computes hex digests of completed archive artifacts and
// writes the sibling hash files that accompany every archive.
package hashgen

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"

	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/bundler/vfs"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

// Generator hashes artifacts through the filesystem adapter in a single
// streaming pass; the file is never materialized in memory.
type Generator struct {
	fs  *vfs.Registry
	log logging.Logger
}

// New constructs a Generator.
func New(fs *vfs.Registry, log logging.Logger) *Generator {
	return &Generator{fs: fs, log: log}
}

// Hash returns the lowercase hex digest of the file at uri.
func (g *Generator) Hash(ctx context.Context, uri string, t model.HashType) (string, error) {
	h, err := newDigest(t)
	if err != nil {
		return "", err
	}
	rc, _, err := g.fs.Open(ctx, uri)
	if err != nil {
		return "", err
	}
	defer rc.Close()

	if _, err := io.Copy(h, rc); err != nil {
		return "", fmt.Errorf("hashing %s: %w", uri, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Generate hashes the file at inputFile and writes the digest to
// outputFile as a single UTF-8 line.
func (g *Generator) Generate(ctx context.Context, inputFile, outputFile string, t model.HashType) error {
	digest, err := g.Hash(ctx, inputFile, t)
	if err != nil {
		return err
	}

	w, err := g.fs.Create(ctx, outputFile)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, digest); err != nil {
		w.Close()
		return fmt.Errorf("writing hash file %s: %w", outputFile, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing hash file %s: %w", outputFile, err)
	}

	g.log.Debug(ctx, "hash file written",
		"input", inputFile, "output", outputFile, "algorithm", string(t))
	return nil
}

// newDigest maps a HashType onto its hash.Hash constructor.
func newDigest(t model.HashType) (hash.Hash, error) {
	switch t {
	case model.HashTypeMD5:
		return md5.New(), nil
	case model.HashTypeSHA1:
		return sha1.New(), nil
	case model.HashTypeSHA256:
		return sha256.New(), nil
	case model.HashTypeSHA384:
		return sha512.New384(), nil
	case model.HashTypeSHA512:
		return sha512.New(), nil
	}
	return nil, fmt.Errorf("no digest for hash type %q", t)
}
