// Package services contains the bundle job pipeline: request validation and
// expansion, job creation and dispatch, the per-archive worker, the
// completion listeners that keep the store current, and the read-side
// snapshot of job progress.
package services

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/bundler/internal/bundler/entrypath"
	"github.com/dmitrijs2005/bundler/internal/bundler/messages"
	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/bundler/vfs"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

// FileValidator expands a request's file list into archive elements:
// directories are walked depth first, sizes are resolved, and entry paths
// are computed. Unreadable or missing inputs are logged and skipped; they
// never fail the whole request.
type FileValidator struct {
	fs    *vfs.Registry
	paths *entrypath.Normalizer
	log   logging.Logger
}

// NewFileValidator constructs a FileValidator.
func NewFileValidator(fs *vfs.Registry, paths *entrypath.Normalizer, log logging.Logger) *FileValidator {
	return &FileValidator{fs: fs, paths: paths, log: log}
}

// Validate expands the requested items into concrete elements. The output
// preserves request order; files discovered under a directory keep walk
// order.
func (v *FileValidator) Validate(ctx context.Context, items []messages.FileItem) []model.ArchiveElement {
	var out []model.ArchiveElement
	for _, item := range items {
		path := strings.TrimSpace(item.Path)
		if path == "" {
			v.log.Warn(ctx, "empty path in request, skipping")
			continue
		}

		found, err := v.fs.Walk(ctx, path)
		if err != nil {
			v.log.Warn(ctx, "requested path not accessible, skipping",
				"path", path, "error", err)
			continue
		}
		if len(found) == 0 {
			v.log.Warn(ctx, "requested path contains no files, skipping", "path", path)
			continue
		}

		explicitFile := len(found) == 1 && samePath(found[0], path)
		for _, uri := range found {
			size, err := v.fs.Size(ctx, uri)
			if err != nil {
				v.log.Warn(ctx, "cannot stat discovered file, skipping",
					"uri", uri, "error", err)
				continue
			}

			var entry string
			if explicitFile {
				if item.ArchivePath != "" {
					entry = v.paths.BaseNameEntry(uri, item.ArchivePath)
				} else {
					entry = v.paths.EntryPath(uri)
				}
			} else {
				entry = v.paths.EntryPathRelative(uri, path, item.ArchivePath)
			}
			if entry == "" {
				v.log.Warn(ctx, "could not derive entry path, skipping", "uri", uri)
				continue
			}

			out = append(out, model.ArchiveElement{
				URI:       uri,
				EntryPath: entry,
				Size:      size,
			})
		}
	}
	return out
}

// samePath compares two locations by their path components, so that
// "/data/a" and "file:///data/a" refer to the same file.
func samePath(a, b string) bool {
	ua, err := vfs.Parse(a)
	if err != nil {
		return false
	}
	ub, err := vfs.Parse(b)
	if err != nil {
		return false
	}
	return ua.Scheme == ub.Scheme && ua.Host == ub.Host && ua.Path == ub.Path
}
