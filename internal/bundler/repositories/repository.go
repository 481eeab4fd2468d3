// Package repositories defines the persistence contract of the bundler.
// Any backing store satisfying Repository is acceptable; each call is its
// own transactional unit.
package repositories

import (
	"context"

	"github.com/dmitrijs2005/bundler/internal/bundler/model"
)

// Repository is the single shared mutable resource between workers. All
// job, archive, and file-entry mutation goes through it.
type Repository interface {
	// GetJob loads a job with its archives and their file entries.
	// Returns common.ErrNotFound when the id is unknown.
	GetJob(ctx context.Context, jobID string) (*model.Job, error)

	// GetArchive loads one archive, file entries included.
	GetArchive(ctx context.Context, jobID string, archiveID int64) (*model.ArchiveJob, error)

	// GetFileEntry loads one file entry by its source path.
	GetFileEntry(ctx context.Context, jobID string, archiveID int64, path string) (*model.FileEntry, error)

	// ListJobIDs returns the ids of all known jobs.
	ListJobIDs(ctx context.Context) ([]string, error)

	// PersistJob stores a freshly built job tree: the job, its archives,
	// and their file entries, atomically.
	PersistJob(ctx context.Context, job *model.Job) error

	// UpdateJob rewrites the job row (aggregates, state, times). The
	// job's archives are not touched.
	UpdateJob(ctx context.Context, job *model.Job) error

	// UpdateArchive rewrites one archive row. Its file entries are not
	// touched.
	UpdateArchive(ctx context.Context, archive *model.ArchiveJob) error

	// UpdateFileEntryState sets the state of one file entry.
	UpdateFileEntryState(ctx context.Context, jobID string, archiveID int64, path string, state model.JobState) error
}
