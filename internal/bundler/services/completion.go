package services

import (
	"context"

	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/bundler/repositories"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

// FileCompletionListener persists per-file progress while an archive is
// being written. It is handed to the archiver as its entry-completion
// callback so clients get real-time state for in-progress bundles.
//
// Every store round trip here slows the bundle down; if throughput ever
// becomes a problem this is the first place to look.
type FileCompletionListener struct {
	jobID     string
	archiveID int64
	repo      repositories.Repository
	log       logging.Logger
}

// NewFileCompletionListener constructs a listener bound to one archive.
func NewFileCompletionListener(jobID string, archiveID int64, repo repositories.Repository, log logging.Logger) *FileCompletionListener {
	return &FileCompletionListener{
		jobID:     jobID,
		archiveID: archiveID,
		repo:      repo,
		log:       log,
	}
}

// OnEntryComplete marks the matching file entry COMPLETE. Store failures
// are logged and swallowed; they must not abort the running archive.
func (l *FileCompletionListener) OnEntryComplete(element model.ArchiveElement) {
	ctx := context.Background()
	err := l.repo.UpdateFileEntryState(ctx, l.jobID, l.archiveID, element.URI, model.StateComplete)
	if err != nil {
		l.log.Error(ctx, "failed to persist file completion",
			"job_id", l.jobID,
			"archive_id", l.archiveID,
			"uri", element.URI,
			"error", err)
		return
	}
	l.log.Debug(ctx, "file entry complete",
		"job_id", l.jobID, "archive_id", l.archiveID, "entry", element.EntryPath)
}
