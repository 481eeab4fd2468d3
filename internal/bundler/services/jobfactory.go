package services

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/bundler/internal/bundler/config"
	"github.com/dmitrijs2005/bundler/internal/bundler/hashgen"
	"github.com/dmitrijs2005/bundler/internal/bundler/messages"
	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/bundler/packer"
	"github.com/dmitrijs2005/bundler/internal/bundler/repositories"
	"github.com/dmitrijs2005/bundler/internal/bundler/vfs"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

// JobFactory turns validated submissions into persisted jobs and dispatches
// one archive worker per planned archive.
type JobFactory struct {
	cfg       *config.Config
	repo      repositories.Repository
	fs        *vfs.Registry
	validator *FileValidator
	packer    *packer.Packer
	urls      *packer.URLGenerator
	hasher    *hashgen.Generator
	hashType  model.HashType
	log       logging.Logger
	now       func() int64
}

// NewJobFactory constructs a JobFactory.
func NewJobFactory(
	cfg *config.Config,
	repo repositories.Repository,
	fs *vfs.Registry,
	validator *FileValidator,
	p *packer.Packer,
	urls *packer.URLGenerator,
	hasher *hashgen.Generator,
	hashType model.HashType,
	log logging.Logger,
) *JobFactory {
	return &JobFactory{
		cfg:       cfg,
		repo:      repo,
		fs:        fs,
		validator: validator,
		packer:    p,
		urls:      urls,
		hasher:    hasher,
		hashType:  hashType,
		log:       log,
		now:       func() int64 { return time.Now().UnixMilli() },
	}
}

// Submit validates and expands the request, bin-packs the file set,
// persists the job tree, and spawns the archive workers. A request that
// fails validation is persisted in state INVALID_REQUEST and spawns
// nothing.
func (f *JobFactory) Submit(ctx context.Context, jobID string, req *messages.BundleRequest) error {
	start := time.Now()
	log := f.log.With("job_id", jobID)

	userName := req.UserName
	if userName == "" {
		userName = messages.DefaultUserName
	}
	targetMB := packer.ClampTargetSizeMB(req.MaxSizeMB,
		f.cfg.MinArchiveSizeMB, f.cfg.MaxArchiveSizeMB, f.cfg.DefaultArchiveSizeMB)
	targetBytes := targetMB * packer.BytesPerMegabyte

	archiveType, err := model.ParseArchiveType(req.Type)
	if err != nil {
		log.Error(ctx, "unrecognized archive type in request", "type", req.Type)
		return f.persistInvalid(ctx, jobID, userName, "", targetBytes)
	}

	elements := f.validator.Validate(ctx, req.Files)
	if len(elements) == 0 {
		log.Error(ctx, "validation produced no files to bundle")
		return f.persistInvalid(ctx, jobID, userName, archiveType, targetBytes)
	}
	log.Debug(ctx, "request validated", "files", len(elements))

	bins := f.packer.Pack(ctx, elements, archiveType, targetBytes)
	names := packer.NewNameGenerator(
		f.cfg.StagingDirectory, jobID, req.OutputFilename, archiveType, f.hashType)

	job := f.buildJob(jobID, userName, archiveType, targetBytes, bins, names)
	if err := f.repo.PersistJob(ctx, job); err != nil {
		log.Error(ctx, "unable to persist job", "error", err)
		return err
	}

	if err := f.fs.MkdirAll(ctx, names.OutputDirectory()); err != nil {
		log.Error(ctx, "unable to create job output directory",
			"dir", names.OutputDirectory(), "error", err)
	}

	f.runJob(ctx, job)

	log.Debug(ctx, "job created", "elapsed", time.Since(start).String())
	return nil
}

// buildJob assembles the job tree from the packed bins.
func (f *JobFactory) buildJob(
	jobID, userName string,
	archiveType model.ArchiveType,
	targetBytes int64,
	bins []packer.Bin,
	names *packer.NameGenerator,
) *model.Job {
	job := &model.Job{
		JobID:       jobID,
		UserName:    userName,
		Type:        archiveType,
		ArchiveSize: targetBytes,
		State:       model.StateNotStarted,
	}

	for i, bin := range bins {
		archiveID := int64(i)
		outputFile := names.OutputFile(archiveID)
		hashFile := names.HashFile(outputFile)

		aj := &model.ArchiveJob{
			JobID:      jobID,
			ArchiveID:  archiveID,
			Type:       archiveType,
			Archive:    outputFile,
			ArchiveURL: f.urls.ToURL(outputFile),
			Hash:       hashFile,
			HashURL:    f.urls.ToURL(hashFile),
			NumFiles:   int64(len(bin.Elements)),
			Size:       bin.Size,
			State:      model.StateNotStarted,
		}
		for _, el := range bin.Elements {
			aj.Files = append(aj.Files, &model.FileEntry{
				JobID:     jobID,
				ArchiveID: archiveID,
				Path:      el.URI,
				EntryPath: el.EntryPath,
				Size:      el.Size,
				State:     model.StateNotStarted,
			})
		}

		job.Archives = append(job.Archives, aj)
		job.NumArchives++
		job.NumFiles += aj.NumFiles
		job.TotalSize += aj.Size
	}
	return job
}

// persistInvalid records a rejected submission so its state is queryable.
func (f *JobFactory) persistInvalid(ctx context.Context, jobID, userName string, archiveType model.ArchiveType, targetBytes int64) error {
	if archiveType == "" {
		archiveType = model.ArchiveTypeZip
	}
	job := &model.Job{
		JobID:       jobID,
		UserName:    userName,
		Type:        archiveType,
		ArchiveSize: targetBytes,
		State:       model.StateInvalidRequest,
	}
	if err := f.repo.PersistJob(ctx, job); err != nil {
		f.log.Error(ctx, "unable to persist invalid-request job",
			"job_id", jobID, "error", err)
		return err
	}
	return nil
}

// runJob attaches one tracker to the job, spawns a worker per archive, and
// flips the job to IN_PROGRESS. Workers execute independently; the group
// only collects the first terminal failure for logging.
func (f *JobFactory) runJob(ctx context.Context, job *model.Job) {
	tracker := NewJobTracker(job.JobID, f.repo, f.log)

	// The job row flips to IN_PROGRESS before any worker runs; a fast
	// worker's terminal aggregate must not be overwritten by a late
	// in-progress update.
	job.State = model.StateInProgress
	job.StartTime = f.now()
	if err := f.repo.UpdateJob(ctx, job); err != nil {
		f.log.Warn(ctx, "unable to mark job in progress",
			"job_id", job.JobID, "error", err)
	}

	var g errgroup.Group
	for _, a := range job.Archives {
		worker := NewArchiveWorker(
			job.JobID, a.ArchiveID, f.repo, f.fs,
			f.hasher, f.hashType, tracker, f.log)
		g.Go(func() error {
			return worker.Run(context.WithoutCancel(ctx))
		})
	}

	go func() {
		if err := g.Wait(); err != nil {
			f.log.Warn(context.Background(), "job finished with failed archives",
				"job_id", job.JobID, "first_error", err.Error())
		}
	}()
}
