package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/bundler/internal/bundler/messages"
	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/bundler/repositories"
	"github.com/dmitrijs2005/bundler/internal/common"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

// TrackerReader is the read side of job progress: it synthesizes a tracker
// message from the persisted job at query time. It never mutates state.
type TrackerReader struct {
	repo repositories.Repository
	log  logging.Logger
	now  func() int64
}

// NewTrackerReader constructs a TrackerReader.
func NewTrackerReader(repo repositories.Repository, log logging.Logger) *TrackerReader {
	return &TrackerReader{
		repo: repo,
		log:  log,
		now:  func() int64 { return time.Now().UnixMilli() },
	}
}

// GetSnapshot builds the progress message for a job. An unknown id yields
// a message in state NOT_AVAILABLE rather than an error; repository
// failures are returned for the surface to map onto a server error.
func (s *TrackerReader) GetSnapshot(ctx context.Context, jobID string) (*messages.JobTrackerMessage, error) {
	job, err := s.repo.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			s.log.Warn(ctx, "snapshot requested for unknown job", "job_id", jobID)
			return &messages.JobTrackerMessage{
				JobID:    jobID,
				UserName: messages.DefaultUserName,
				State:    string(model.StateNotAvailable),
				Archives: []messages.ArchiveMessage{},
			}, nil
		}
		return nil, err
	}

	msg := &messages.JobTrackerMessage{
		JobID:       job.JobID,
		UserName:    job.UserName,
		State:       string(job.State),
		NumArchives: job.NumArchives,
		NumFiles:    job.NumFiles,
		TotalSize:   job.TotalSize,
		ElapsedTime: s.elapsedTime(job.StartTime, job.EndTime),
		Archives:    []messages.ArchiveMessage{},
	}

	var archivesTerminal, filesComplete, sizeComplete int64
	for _, a := range job.Archives {
		if a.State.Terminal() {
			archivesTerminal++
			msg.Archives = append(msg.Archives, messages.NewArchiveMessage(a))
		}
		for _, f := range a.Files {
			if f.State == model.StateComplete {
				filesComplete++
				sizeComplete += f.Size
			}
		}
	}
	msg.NumArchivesComplete = archivesTerminal
	// Hashes and archives are one to one; the separate count survives for
	// backwards compatibility.
	msg.NumHashesComplete = archivesTerminal
	msg.NumFilesComplete = filesComplete
	msg.TotalSizeComplete = sizeComplete

	return msg, nil
}

// elapsedTime computes the job's running time: up to now while in flight,
// frozen at endTime once terminal, zero before the job started.
func (s *TrackerReader) elapsedTime(startTime, endTime int64) int64 {
	if startTime == 0 {
		return 0
	}
	if endTime > 0 {
		return endTime - startTime
	}
	return s.now() - startTime
}
