// Package inmemory provides a map-backed Repository. It serves tests and
// DSN-less development runs; production deployments use the PostgreSQL
// implementation.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/common"
)

// Repository stores job trees in process memory. All accessors deep-copy so
// callers can never mutate shared state behind the lock.
type Repository struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// New constructs an empty in-memory Repository.
func New() *Repository {
	return &Repository{jobs: make(map[string]*model.Job)}
}

func copyFileEntry(f *model.FileEntry) *model.FileEntry {
	c := *f
	return &c
}

func copyArchive(a *model.ArchiveJob) *model.ArchiveJob {
	c := *a
	c.Files = make([]*model.FileEntry, 0, len(a.Files))
	for _, f := range a.Files {
		c.Files = append(c.Files, copyFileEntry(f))
	}
	return &c
}

func copyJob(j *model.Job) *model.Job {
	c := *j
	c.Archives = make([]*model.ArchiveJob, 0, len(j.Archives))
	for _, a := range j.Archives {
		c.Archives = append(c.Archives, copyArchive(a))
	}
	return &c
}

func (r *Repository) GetJob(ctx context.Context, jobID string) (*model.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", common.ErrNotFound, jobID)
	}
	return copyJob(j), nil
}

func (r *Repository) GetArchive(ctx context.Context, jobID string, archiveID int64) (*model.ArchiveJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", common.ErrNotFound, jobID)
	}
	a := j.Archive(archiveID)
	if a == nil {
		return nil, fmt.Errorf("%w: job %s archive %d", common.ErrNotFound, jobID, archiveID)
	}
	return copyArchive(a), nil
}

func (r *Repository) GetFileEntry(ctx context.Context, jobID string, archiveID int64, path string) (*model.FileEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, err := r.findEntry(jobID, archiveID, path)
	if err != nil {
		return nil, err
	}
	return copyFileEntry(f), nil
}

func (r *Repository) ListJobIDs(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.jobs))
	for id := range r.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *Repository) PersistJob(ctx context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.JobID] = copyJob(job)
	return nil
}

func (r *Repository) UpdateJob(ctx context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.jobs[job.JobID]
	if !ok {
		return fmt.Errorf("%w: job %s", common.ErrNotFound, job.JobID)
	}
	updated := *job
	updated.Archives = existing.Archives
	r.jobs[job.JobID] = &updated
	return nil
}

func (r *Repository) UpdateArchive(ctx context.Context, archive *model.ArchiveJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[archive.JobID]
	if !ok {
		return fmt.Errorf("%w: job %s", common.ErrNotFound, archive.JobID)
	}
	existing := j.Archive(archive.ArchiveID)
	if existing == nil {
		return fmt.Errorf("%w: job %s archive %d", common.ErrNotFound, archive.JobID, archive.ArchiveID)
	}
	updated := *archive
	updated.Files = existing.Files
	for i, a := range j.Archives {
		if a.ArchiveID == archive.ArchiveID {
			j.Archives[i] = &updated
			break
		}
	}
	return nil
}

func (r *Repository) UpdateFileEntryState(ctx context.Context, jobID string, archiveID int64, path string, state model.JobState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, err := r.findEntry(jobID, archiveID, path)
	if err != nil {
		return err
	}
	f.State = state
	return nil
}

// findEntry locates the live (uncopied) entry; callers hold the lock.
func (r *Repository) findEntry(jobID string, archiveID int64, path string) (*model.FileEntry, error) {
	j, ok := r.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", common.ErrNotFound, jobID)
	}
	a := j.Archive(archiveID)
	if a == nil {
		return nil, fmt.Errorf("%w: job %s archive %d", common.ErrNotFound, jobID, archiveID)
	}
	for _, f := range a.Files {
		if f.Path == path {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w: job %s archive %d entry %s", common.ErrNotFound, jobID, archiveID, path)
}
