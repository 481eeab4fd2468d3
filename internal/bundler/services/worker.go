package services

import (
	"context"
	"os"
	"time"

	"github.com/dmitrijs2005/bundler/internal/bundler/archive"
	"github.com/dmitrijs2005/bundler/internal/bundler/hashgen"
	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/bundler/repositories"
	"github.com/dmitrijs2005/bundler/internal/bundler/vfs"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

// DefaultServerName identifies this service in archive worker records.
const DefaultServerName = "bundler-service"

// ArchiveWorker runs one archive end to end: claim the row, stream the
// entries, hash the artifact, persist the terminal state, and notify the
// job tracker. Failures never propagate outside the worker; the archive
// row carries the outcome.
type ArchiveWorker struct {
	jobID     string
	archiveID int64
	repo      repositories.Repository
	fs        *vfs.Registry
	hasher    *hashgen.Generator
	hashType  model.HashType
	notifier  ArchiveCompletionNotifier
	log       logging.Logger
	now       func() int64
}

// NewArchiveWorker constructs a worker for one archive of one job.
func NewArchiveWorker(
	jobID string,
	archiveID int64,
	repo repositories.Repository,
	fs *vfs.Registry,
	hasher *hashgen.Generator,
	hashType model.HashType,
	notifier ArchiveCompletionNotifier,
	log logging.Logger,
) *ArchiveWorker {
	return &ArchiveWorker{
		jobID:     jobID,
		archiveID: archiveID,
		repo:      repo,
		fs:        fs,
		hasher:    hasher,
		hashType:  hashType,
		notifier:  notifier,
		log:       log.With("job_id", jobID, "archive_id", archiveID),
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// Run executes the archive. The returned error reports the terminal
// failure for the caller's logging only; the archive row already carries
// the state.
func (w *ArchiveWorker) Run(ctx context.Context) error {
	archiveJob, err := w.start(ctx)
	if err != nil {
		// No row could be claimed, so no state change is possible.
		w.log.Error(ctx, "unable to claim archive for processing", "error", err)
		return err
	}

	listener := NewFileCompletionListener(w.jobID, w.archiveID, w.repo, w.log)
	bundler, err := archive.New(archiveJob.Type, w.fs, w.log, listener.OnEntryComplete)
	if err != nil {
		// Unknown type inside a persisted archive is a contract
		// violation; it is still surfaced through the ERROR state.
		w.log.Error(ctx, "no bundler for archive type", "type", string(archiveJob.Type))
		w.finish(ctx, model.StateError)
		return err
	}

	elements := archiveElements(archiveJob.Files)
	if err := bundler.Bundle(ctx, elements, archiveJob.Archive); err != nil {
		w.log.Error(ctx, "archive creation failed", "error", err)
		w.finish(ctx, model.StateError)
		return err
	}

	if err := w.hasher.Generate(ctx, archiveJob.Archive, archiveJob.Hash, w.hashType); err != nil {
		w.log.Error(ctx, "hash generation failed", "error", err)
		w.finish(ctx, model.StateError)
		return err
	}

	w.finish(ctx, model.StateComplete)
	return nil
}

// start claims the archive row: worker identity, start time, IN_PROGRESS.
func (w *ArchiveWorker) start(ctx context.Context) (*model.ArchiveJob, error) {
	archiveJob, err := w.repo.GetArchive(ctx, w.jobID, w.archiveID)
	if err != nil {
		return nil, err
	}

	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	archiveJob.HostName = host
	archiveJob.ServerName = DefaultServerName
	archiveJob.StartTime = w.now()
	archiveJob.State = model.StateInProgress

	if err := w.repo.UpdateArchive(ctx, archiveJob); err != nil {
		return nil, err
	}
	return archiveJob, nil
}

// finish persists the terminal state and notifies the tracker. When the
// repository is unavailable for the terminal update the notification is
// skipped; retries are out of scope.
func (w *ArchiveWorker) finish(ctx context.Context, endState model.JobState) {
	archiveJob, err := w.repo.GetArchive(ctx, w.jobID, w.archiveID)
	if err != nil {
		w.log.Error(ctx, "unable to load archive for terminal update", "error", err)
		return
	}

	archiveJob.State = endState
	archiveJob.EndTime = w.now()
	if endState == model.StateComplete {
		if size, err := w.fs.Size(ctx, archiveJob.Archive); err != nil {
			w.log.Warn(ctx, "unable to stat output artifact", "error", err)
		} else {
			w.log.Info(ctx, "archive artifact written",
				"file", archiveJob.Archive, "artifact_size", size)
		}
	}

	if err := w.repo.UpdateArchive(ctx, archiveJob); err != nil {
		w.log.Error(ctx, "unable to persist terminal archive state",
			"state", string(endState), "error", err)
		return
	}

	w.notifier.Notify(ctx, w.archiveID)
}

// archiveElements maps stored file entries onto the transient elements the
// archiver consumes, preserving stored order.
func archiveElements(files []*model.FileEntry) []model.ArchiveElement {
	out := make([]model.ArchiveElement, 0, len(files))
	for _, f := range files {
		out = append(out, model.ArchiveElement{
			URI:       f.Path,
			EntryPath: f.EntryPath,
			Size:      f.Size,
		})
	}
	return out
}
