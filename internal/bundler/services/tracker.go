package services

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/bundler/repositories"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

// ArchiveCompletionNotifier receives the archive id of every archive that
// reaches a terminal state.
type ArchiveCompletionNotifier interface {
	Notify(ctx context.Context, archiveID int64)
}

// JobTracker aggregates archive completions into job-level state. One
// tracker exists per job; Notify is serialized per instance, so the
// recompute-and-persist cycle runs atomically with respect to concurrent
// archive completions.
type JobTracker struct {
	jobID string
	repo  repositories.Repository
	log   logging.Logger

	mu  sync.Mutex
	now func() int64
}

// NewJobTracker constructs a tracker bound to one job.
func NewJobTracker(jobID string, repo repositories.Repository, log logging.Logger) *JobTracker {
	return &JobTracker{
		jobID: jobID,
		repo:  repo,
		log:   log,
		now:   func() int64 { return time.Now().UnixMilli() },
	}
}

// Notify records that the given archive reached a terminal state and
// recomputes the job aggregates. Correct under any interleaving of
// notifications; the mutex makes each notification's read-recompute-write
// cycle exclusive.
func (t *JobTracker) Notify(ctx context.Context, archiveID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.log.Info(ctx, "archive completed", "job_id", t.jobID, "archive_id", archiveID)

	job, err := t.repo.GetJob(ctx, t.jobID)
	if err != nil {
		t.log.Error(ctx, "unable to load job for completion accounting",
			"job_id", t.jobID, "error", err)
		return
	}
	archive := job.Archive(archiveID)
	if archive == nil {
		t.log.Error(ctx, "notified archive not present on job",
			"job_id", t.jobID, "archive_id", archiveID)
		return
	}

	t.checkArchive(ctx, archive)
	t.updateJobState(ctx, job)

	if err := t.repo.UpdateJob(ctx, job); err != nil {
		t.log.Error(ctx, "unable to persist job aggregates",
			"job_id", t.jobID, "error", err)
	}
}

// checkArchive compensates for write-visibility lag: an archive can finish
// before its terminal update is observable through the repository. Only a
// non-terminal row is coerced to COMPLETE; a persisted ERROR is
// authoritative and stays.
func (t *JobTracker) checkArchive(ctx context.Context, archive *model.ArchiveJob) {
	if archive.State.Terminal() {
		return
	}
	t.log.Warn(ctx, "archive completion arrived before its terminal update, coercing to COMPLETE",
		"job_id", archive.JobID, "archive_id", archive.ArchiveID,
		"observed_state", string(archive.State))
	archive.State = model.StateComplete
	archive.EndTime = t.now()
	if err := t.repo.UpdateArchive(ctx, archive); err != nil {
		t.log.Error(ctx, "unable to persist coerced archive state",
			"job_id", archive.JobID, "archive_id", archive.ArchiveID, "error", err)
	}
}

// updateJobState recomputes the aggregates from the loaded job tree and
// marks the job COMPLETE once every archive is terminal. ERROR archives
// count toward termination; the job's archives reveal the partial failure.
func (t *JobTracker) updateJobState(ctx context.Context, job *model.Job) {
	var filesComplete, sizeComplete, archivesTerminal int64
	for _, a := range job.Archives {
		if a.State.Terminal() {
			archivesTerminal++
		}
		for _, f := range a.Files {
			if f.State == model.StateComplete {
				filesComplete++
				sizeComplete += f.Size
			}
		}
	}

	if filesComplete > job.NumFiles {
		t.log.Warn(ctx, "files-complete count exceeds job total, clamping",
			"job_id", job.JobID, "computed", filesComplete, "expected", job.NumFiles)
		filesComplete = job.NumFiles
	}
	if sizeComplete > job.TotalSize {
		t.log.Warn(ctx, "size-complete total exceeds job total, clamping",
			"job_id", job.JobID, "computed", sizeComplete, "expected", job.TotalSize)
		sizeComplete = job.TotalSize
	}

	job.NumFilesComplete = filesComplete
	job.TotalSizeComplete = sizeComplete
	job.NumArchivesComplete = archivesTerminal

	if archivesTerminal == job.NumArchives {
		job.State = model.StateComplete
		job.EndTime = t.now()
		t.log.Info(ctx, "job complete", "job_id", job.JobID)
	} else {
		t.log.Debug(ctx, "job not yet complete",
			"job_id", job.JobID,
			"archives_terminal", archivesTerminal,
			"num_archives", job.NumArchives)
	}
}
