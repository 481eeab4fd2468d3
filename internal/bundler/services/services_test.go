package services

import (
	"archive/zip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/bundler/internal/bundler/config"
	"github.com/dmitrijs2005/bundler/internal/bundler/entrypath"
	"github.com/dmitrijs2005/bundler/internal/bundler/estimate"
	"github.com/dmitrijs2005/bundler/internal/bundler/hashgen"
	"github.com/dmitrijs2005/bundler/internal/bundler/messages"
	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/bundler/packer"
	"github.com/dmitrijs2005/bundler/internal/bundler/repositories/inmemory"
	"github.com/dmitrijs2005/bundler/internal/bundler/vfs"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

type fixture struct {
	cfg     *config.Config
	repo    *inmemory.Repository
	fs      *vfs.Registry
	hasher  *hashgen.Generator
	factory *JobFactory
	reader  *TrackerReader
	staging string
	log     logging.Logger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	fs := vfs.NewRegistry(log)
	fs.Register(vfs.NewLocalFileSystem())

	staging := t.TempDir()
	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.StagingDirectory = "file://" + staging
	cfg.StagingDirectoryBase = staging
	cfg.BaseURL = "http://bundler.test/downloads"
	cfg.MinArchiveSizeMB = 1

	repo := inmemory.New()
	hasher := hashgen.New(fs, log)
	validator := NewFileValidator(fs, entrypath.New(cfg.EntryPathExclusions), log)
	p := packer.New(estimate.New(cfg.AverageCompressionPct), log)
	urls := packer.NewURLGenerator(cfg.StagingDirectoryBase, cfg.BaseURL)

	factory := NewJobFactory(cfg, repo, fs, validator, p, urls, hasher, model.HashTypeSHA1, log)

	return &fixture{
		cfg:     cfg,
		repo:    repo,
		fs:      fs,
		hasher:  hasher,
		factory: factory,
		reader:  NewTrackerReader(repo, log),
		staging: staging,
		log:     log,
	}
}

func (f *fixture) writeFile(t *testing.T, dir, name string, size int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	data := make([]byte, size)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func (f *fixture) waitTerminal(t *testing.T, jobID string) *model.Job {
	t.Helper()
	var job *model.Job
	require.Eventually(t, func() bool {
		j, err := f.repo.GetJob(context.Background(), jobID)
		if err != nil {
			return false
		}
		job = j
		return j.State == model.StateComplete ||
			j.State == model.StateError ||
			j.State == model.StateInvalidRequest
	}, 10*time.Second, 10*time.Millisecond)
	return job
}

// Single small file, ZIP: one archive, one entry, job completes, the hash
// file holds the SHA-1 of the artifact.
func TestSubmit_SingleFileZip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	src := f.writeFile(t, t.TempDir(), "a.bin", 10)
	req := &messages.BundleRequest{
		Files:     []messages.FileItem{{Path: src}},
		Type:      "ZIP",
		MaxSizeMB: 100,
		UserName:  "alice",
	}

	require.NoError(t, f.factory.Submit(ctx, "JOBZIP", req))
	job := f.waitTerminal(t, "JOBZIP")

	assert.Equal(t, model.StateComplete, job.State)
	require.Len(t, job.Archives, 1)
	a := job.Archives[0]
	assert.Equal(t, int64(1), a.NumFiles)
	assert.Equal(t, model.StateComplete, a.State)
	assert.Equal(t, int64(1), job.NumArchivesComplete)
	assert.Equal(t, int64(1), job.NumFilesComplete)
	assert.Equal(t, int64(10), job.TotalSizeComplete)
	assert.NotZero(t, job.StartTime)
	assert.NotZero(t, job.EndTime)

	// artifact exists and its hash file matches an independent recompute
	artifact := filepath.Join(f.staging, "JOBZIP", "nga_data_archive_0.zip")
	data, err := os.ReadFile(artifact)
	require.NoError(t, err)
	sum := sha1.Sum(data)

	hashFile := filepath.Join(f.staging, "JOBZIP", "nga_data_archive_0.sha1")
	digest, err := os.ReadFile(hashFile)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(sum[:]), string(digest))

	// archive is a readable zip with the single entry
	zr, err := zip.OpenReader(artifact)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)

	assert.Equal(t, "http://bundler.test/downloads/JOBZIP/nga_data_archive_0.zip", a.ArchiveURL)
	assert.Equal(t, "http://bundler.test/downloads/JOBZIP/nga_data_archive_0.sha1", a.HashURL)
}

// Empty file list: the job is persisted INVALID_REQUEST and nothing runs.
func TestSubmit_EmptyFileList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := &messages.BundleRequest{Files: nil, Type: "ZIP", MaxSizeMB: 100}
	require.NoError(t, f.factory.Submit(ctx, "JOBEMPTY", req))

	job, err := f.repo.GetJob(ctx, "JOBEMPTY")
	require.NoError(t, err)
	assert.Equal(t, model.StateInvalidRequest, job.State)
	assert.Empty(t, job.Archives)
	assert.Zero(t, job.StartTime)
}

// Unknown archive type is an invalid request, not a worker-level failure.
func TestSubmit_UnknownType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	src := f.writeFile(t, t.TempDir(), "a.bin", 10)
	req := &messages.BundleRequest{
		Files: []messages.FileItem{{Path: src}},
		Type:  "RAR",
	}
	require.NoError(t, f.factory.Submit(ctx, "JOBRAR", req))

	job, err := f.repo.GetJob(ctx, "JOBRAR")
	require.NoError(t, err)
	assert.Equal(t, model.StateInvalidRequest, job.State)
}

// Directory expansion: a requested directory walks to its files with
// relative entry paths.
func TestSubmit_DirectoryExpansion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o770))
	f.writeFile(t, dir, "top.bin", 5)
	f.writeFile(t, filepath.Join(dir, "sub"), "leaf.bin", 7)

	req := &messages.BundleRequest{
		Files:     []messages.FileItem{{Path: dir, ArchivePath: "bundle"}},
		Type:      "TAR",
		MaxSizeMB: 100,
		UserName:  "walker",
	}
	require.NoError(t, f.factory.Submit(ctx, "JOBDIR", req))
	job := f.waitTerminal(t, "JOBDIR")

	assert.Equal(t, model.StateComplete, job.State)
	assert.Equal(t, int64(2), job.NumFiles)

	var entries []string
	for _, fe := range job.Archives[0].Files {
		entries = append(entries, fe.EntryPath)
	}
	assert.Contains(t, entries, "bundle/top.bin")
	assert.Contains(t, entries, "bundle/sub/leaf.bin")
}

// Mid-job archive error: the failed archive ends in ERROR, yet every
// archive terminates and the job still completes.
func TestRunJob_MidJobArchiveError(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dir := t.TempDir()
	good0 := f.writeFile(t, dir, "good0.bin", 10)
	good2 := f.writeFile(t, dir, "good2.bin", 10)
	missing := filepath.Join(dir, "missing.bin")

	names := packer.NewNameGenerator(f.cfg.StagingDirectory, "JOBERR", "",
		model.ArchiveTypeZip, model.HashTypeSHA1)
	bins := []packer.Bin{
		{Elements: []model.ArchiveElement{{URI: "file://" + good0, EntryPath: "good0.bin", Size: 10}}, Size: 10},
		{Elements: []model.ArchiveElement{{URI: "file://" + missing, EntryPath: "missing.bin", Size: 10}}, Size: 10},
		{Elements: []model.ArchiveElement{{URI: "file://" + good2, EntryPath: "good2.bin", Size: 10}}, Size: 10},
	}
	job := f.factory.buildJob("JOBERR", "erruser", model.ArchiveTypeZip,
		100*packer.BytesPerMegabyte, bins, names)
	require.NoError(t, f.repo.PersistJob(ctx, job))
	require.NoError(t, f.fs.MkdirAll(ctx, names.OutputDirectory()))

	f.factory.runJob(ctx, job)
	got := f.waitTerminal(t, "JOBERR")

	assert.Equal(t, model.StateComplete, got.State)
	assert.Equal(t, int64(3), got.NumArchivesComplete)
	assert.Equal(t, model.StateComplete, got.Archive(0).State)
	assert.Equal(t, model.StateError, got.Archive(1).State)
	assert.Equal(t, model.StateComplete, got.Archive(2).State)
	assert.Equal(t, int64(2), got.NumFilesComplete)
	assert.Equal(t, int64(20), got.TotalSizeComplete)
}

// Tracker coerces a non-terminal archive to COMPLETE but leaves a
// persisted ERROR untouched.
func TestTracker_CoercesOnlyNonTerminal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := &model.Job{
		JobID: "JT", Type: model.ArchiveTypeZip, NumArchives: 2, NumFiles: 2, TotalSize: 20,
		State: model.StateInProgress,
		Archives: []*model.ArchiveJob{
			{JobID: "JT", ArchiveID: 0, Type: model.ArchiveTypeZip, NumFiles: 1, Size: 10,
				State: model.StateInProgress,
				Files: []*model.FileEntry{{JobID: "JT", ArchiveID: 0, Path: "file:///a", Size: 10, State: model.StateComplete}}},
			{JobID: "JT", ArchiveID: 1, Type: model.ArchiveTypeZip, NumFiles: 1, Size: 10,
				State: model.StateError,
				Files: []*model.FileEntry{{JobID: "JT", ArchiveID: 1, Path: "file:///b", Size: 10, State: model.StateNotStarted}}},
		},
	}
	require.NoError(t, f.repo.PersistJob(ctx, job))

	tracker := NewJobTracker("JT", f.repo, f.log)
	tracker.Notify(ctx, 0)

	a0, err := f.repo.GetArchive(ctx, "JT", 0)
	require.NoError(t, err)
	assert.Equal(t, model.StateComplete, a0.State, "in-progress archive coerced")
	assert.NotZero(t, a0.EndTime)

	tracker.Notify(ctx, 1)
	a1, err := f.repo.GetArchive(ctx, "JT", 1)
	require.NoError(t, err)
	assert.Equal(t, model.StateError, a1.State, "persisted ERROR is authoritative")

	got, err := f.repo.GetJob(ctx, "JT")
	require.NoError(t, err)
	assert.Equal(t, model.StateComplete, got.State, "both archives terminal ends the job")
	assert.Equal(t, int64(2), got.NumArchivesComplete)
	assert.Equal(t, int64(1), got.NumFilesComplete)
}

// Tracker ignores notifications for unknown jobs and archives.
func TestTracker_UnknownTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tracker := NewJobTracker("GHOST", f.repo, f.log)
	tracker.Notify(ctx, 0) // unknown job: logged, no panic

	job := &model.Job{JobID: "JK", Type: model.ArchiveTypeZip, NumArchives: 1,
		State: model.StateInProgress,
		Archives: []*model.ArchiveJob{
			{JobID: "JK", ArchiveID: 0, Type: model.ArchiveTypeZip, State: model.StateInProgress},
		}}
	require.NoError(t, f.repo.PersistJob(ctx, job))

	tracker = NewJobTracker("JK", f.repo, f.log)
	tracker.Notify(ctx, 42) // unknown archive: logged, job untouched

	got, err := f.repo.GetJob(ctx, "JK")
	require.NoError(t, err)
	assert.Equal(t, model.StateInProgress, got.State)
}

// Tracker clamps aggregates that exceed the job's declared totals.
func TestTracker_ClampsAggregates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// job claims 1 file / 5 bytes but two entries are complete
	job := &model.Job{
		JobID: "JC", Type: model.ArchiveTypeZip, NumArchives: 1, NumFiles: 1, TotalSize: 5,
		State: model.StateInProgress,
		Archives: []*model.ArchiveJob{
			{JobID: "JC", ArchiveID: 0, Type: model.ArchiveTypeZip, State: model.StateComplete,
				Files: []*model.FileEntry{
					{JobID: "JC", ArchiveID: 0, Path: "file:///a", Size: 10, State: model.StateComplete},
					{JobID: "JC", ArchiveID: 0, Path: "file:///b", Size: 10, State: model.StateComplete},
				}},
		},
	}
	require.NoError(t, f.repo.PersistJob(ctx, job))

	NewJobTracker("JC", f.repo, f.log).Notify(ctx, 0)

	got, err := f.repo.GetJob(ctx, "JC")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.NumFilesComplete)
	assert.Equal(t, int64(5), got.TotalSizeComplete)
}

// Concurrent completions: the final persisted job is identical no matter
// how notifications interleave, with no lost update.
func TestTracker_ConcurrentNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 8
	job := &model.Job{
		JobID: "JN", Type: model.ArchiveTypeZip, NumArchives: n, NumFiles: n, TotalSize: n * 10,
		State: model.StateInProgress,
	}
	for i := 0; i < n; i++ {
		job.Archives = append(job.Archives, &model.ArchiveJob{
			JobID: "JN", ArchiveID: int64(i), Type: model.ArchiveTypeZip,
			NumFiles: 1, Size: 10, State: model.StateComplete,
			Files: []*model.FileEntry{{
				JobID: "JN", ArchiveID: int64(i),
				Path: "file:///f" + string(rune('0'+i)), Size: 10, State: model.StateComplete,
			}},
		})
	}
	require.NoError(t, f.repo.PersistJob(ctx, job))

	tracker := NewJobTracker("JN", f.repo, f.log)
	done := make(chan struct{})
	for i := 0; i < n; i++ {
		go func(id int64) {
			tracker.Notify(ctx, id)
			done <- struct{}{}
		}(int64(i))
	}
	for i := 0; i < n; i++ {
		<-done
	}

	got, err := f.repo.GetJob(ctx, "JN")
	require.NoError(t, err)
	assert.Equal(t, model.StateComplete, got.State)
	assert.Equal(t, int64(n), got.NumArchivesComplete)
	assert.Equal(t, int64(n), got.NumFilesComplete)
	assert.Equal(t, int64(n*10), got.TotalSizeComplete)
	assert.NotZero(t, got.EndTime)
}

// File completion listener swallows repository failures.
func TestFileCompletionListener_SwallowsErrors(t *testing.T) {
	f := newFixture(t)

	l := NewFileCompletionListener("NOJOB", 0, f.repo, f.log)
	assert.NotPanics(t, func() {
		l.OnEntryComplete(model.ArchiveElement{URI: "file:///x", EntryPath: "x"})
	})
}

func TestFileCompletionListener_PersistsState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := &model.Job{JobID: "JL", Type: model.ArchiveTypeZip, NumArchives: 1, NumFiles: 1,
		State: model.StateInProgress,
		Archives: []*model.ArchiveJob{
			{JobID: "JL", ArchiveID: 0, Type: model.ArchiveTypeZip, State: model.StateInProgress,
				Files: []*model.FileEntry{
					{JobID: "JL", ArchiveID: 0, Path: "file:///a", EntryPath: "a", Size: 1, State: model.StateInProgress},
				}},
		}}
	require.NoError(t, f.repo.PersistJob(ctx, job))

	l := NewFileCompletionListener("JL", 0, f.repo, f.log)
	l.OnEntryComplete(model.ArchiveElement{URI: "file:///a", EntryPath: "a", Size: 1})

	fe, err := f.repo.GetFileEntry(ctx, "JL", 0, "file:///a")
	require.NoError(t, err)
	assert.Equal(t, model.StateComplete, fe.State)
}

// Snapshot for an unknown job reports NOT_AVAILABLE.
func TestSnapshot_UnknownJob(t *testing.T) {
	f := newFixture(t)

	msg, err := f.reader.GetSnapshot(context.Background(), "MISSING")
	require.NoError(t, err)
	assert.Equal(t, "MISSING", msg.JobID)
	assert.Equal(t, string(model.StateNotAvailable), msg.State)
	assert.Empty(t, msg.Archives)
}

// Snapshot carries only terminal archives and consistent counters.
func TestSnapshot_TerminalArchivesOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Now().UnixMilli()
	job := &model.Job{
		JobID: "JS", UserName: "snap", Type: model.ArchiveTypeZip,
		NumArchives: 3, NumFiles: 3, TotalSize: 30,
		State: model.StateInProgress, StartTime: now - 5000,
		Archives: []*model.ArchiveJob{
			{JobID: "JS", ArchiveID: 0, Type: model.ArchiveTypeZip, NumFiles: 1, Size: 10,
				State: model.StateComplete,
				Files: []*model.FileEntry{{JobID: "JS", ArchiveID: 0, Path: "file:///a", Size: 10, State: model.StateComplete}}},
			{JobID: "JS", ArchiveID: 1, Type: model.ArchiveTypeZip, NumFiles: 1, Size: 10,
				State: model.StateError,
				Files: []*model.FileEntry{{JobID: "JS", ArchiveID: 1, Path: "file:///b", Size: 10, State: model.StateNotStarted}}},
			{JobID: "JS", ArchiveID: 2, Type: model.ArchiveTypeZip, NumFiles: 1, Size: 10,
				State: model.StateInProgress,
				Files: []*model.FileEntry{{JobID: "JS", ArchiveID: 2, Path: "file:///c", Size: 10, State: model.StateInProgress}}},
		},
	}
	require.NoError(t, f.repo.PersistJob(ctx, job))

	msg, err := f.reader.GetSnapshot(ctx, "JS")
	require.NoError(t, err)

	assert.Equal(t, "snap", msg.UserName)
	assert.Equal(t, int64(3), msg.NumArchives)
	assert.Equal(t, int64(2), msg.NumArchivesComplete)
	assert.Equal(t, msg.NumArchivesComplete, msg.NumHashesComplete)
	assert.Equal(t, int64(1), msg.NumFilesComplete)
	assert.Equal(t, int64(10), msg.TotalSizeComplete)
	assert.Len(t, msg.Archives, 2, "in-progress archives are not listed")
	assert.Positive(t, msg.ElapsedTime)
}

func TestSnapshot_ElapsedTime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	job := &model.Job{JobID: "JE", Type: model.ArchiveTypeZip,
		State: model.StateComplete, StartTime: 1000, EndTime: 4500}
	require.NoError(t, f.repo.PersistJob(ctx, job))

	msg, err := f.reader.GetSnapshot(ctx, "JE")
	require.NoError(t, err)
	assert.Equal(t, int64(3500), msg.ElapsedTime)

	job2 := &model.Job{JobID: "JE0", Type: model.ArchiveTypeZip, State: model.StateNotStarted}
	require.NoError(t, f.repo.PersistJob(ctx, job2))
	msg, err = f.reader.GetSnapshot(ctx, "JE0")
	require.NoError(t, err)
	assert.Zero(t, msg.ElapsedTime)
}

// Validator: explicit files, archive_path handling, and skipped missing
// inputs.
func TestValidator_FilesAndMissing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dir := t.TempDir()
	a := f.writeFile(t, dir, "a.bin", 3)

	v := NewFileValidator(f.fs, entrypath.New(nil), f.log)
	items := []messages.FileItem{
		{Path: a},
		{Path: filepath.Join(dir, "missing.bin")},
		{Path: a, ArchivePath: "renamed"},
		{Path: "  "},
	}
	els := v.Validate(ctx, items)

	require.Len(t, els, 2)
	assert.Equal(t, "file://"+a, els[0].URI)
	assert.Equal(t, int64(3), els[0].Size)
	assert.Equal(t, "renamed/a.bin", els[1].EntryPath)
}

// Request archiver drops a JSON copy of the request and stays silent on
// failure.
func TestRequestArchiver(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	dir := t.TempDir()
	ra := NewRequestArchiver("file://"+dir, f.fs, f.log)
	require.True(t, ra.Enabled())

	ra.Archive(ctx, "REQ1", &messages.BundleRequest{Type: "ZIP", UserName: "u"})

	data, err := os.ReadFile(filepath.Join(dir, "request_REQ1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ZIP"`)

	disabled := NewRequestArchiver("", f.fs, f.log)
	assert.False(t, disabled.Enabled())
	assert.NotPanics(t, func() {
		disabled.Archive(ctx, "REQ2", &messages.BundleRequest{})
	})
}
