package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/bundler/internal/bundler/messages"
	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/logging"
	"github.com/dmitrijs2005/bundler/internal/shared"
)

// ApplicationName identifies the service in liveness responses.
const ApplicationName = "bundler"

// userHeader carries the authenticated client identity when the request
// body omits user_name.
const userHeader = "X-Remote-User"

// Submitter accepts an expanded bundle submission for asynchronous
// processing.
type Submitter interface {
	Submit(ctx context.Context, jobID string, req *messages.BundleRequest) error
}

// SnapshotReader serves the read side of job progress.
type SnapshotReader interface {
	GetSnapshot(ctx context.Context, jobID string) (*messages.JobTrackerMessage, error)
}

// JobLister enumerates known job ids.
type JobLister interface {
	ListJobIDs(ctx context.Context) ([]string, error)
}

// RequestDebugArchiver stores raw requests for debugging.
type RequestDebugArchiver interface {
	Archive(ctx context.Context, jobID string, req *messages.BundleRequest)
}

// Handler is the thin HTTP translation layer: it deserializes submissions,
// hands them to the job factory asynchronously, and serves read-side
// queries. Bundling failures never surface here; a submission response
// only reflects that the job was accepted.
type Handler struct {
	submitter Submitter
	reader    SnapshotReader
	jobs      JobLister
	archiver  RequestDebugArchiver
	log       logging.Logger
}

// NewHandler constructs the HTTP handler.
func NewHandler(
	submitter Submitter,
	reader SnapshotReader,
	jobs JobLister,
	archiver RequestDebugArchiver,
	log logging.Logger,
) *Handler {
	return &Handler{
		submitter: submitter,
		reader:    reader,
		jobs:      jobs,
		archiver:  archiver,
		log:       log,
	}
}

// Register wires the endpoint routes onto the engine.
func (h *Handler) Register(r *gin.Engine) {
	r.POST("/BundleFilesJSON", h.BundleFilesJSON)
	r.POST("/BundleFiles", h.BundleFiles)
	r.POST("/BundleFilesText", h.BundleFilesText)
	r.GET("/GetState", h.GetState)
	r.GET("/isAlive", h.IsAlive)
	r.GET("/DataSourceTest", h.DataSourceTest)
}

// BundleFilesJSON accepts the object-form JSON submission.
func (h *Handler) BundleFilesJSON(c *gin.Context) {
	var req messages.BundleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Error(c.Request.Context(), "unable to parse bundle request", "error", err)
		c.String(http.StatusBadRequest, "unable to parse request body")
		return
	}
	h.accept(c, &req)
}

// BundleFiles accepts the mixed-form JSON submission (bare string file
// items and object items).
func (h *Handler) BundleFiles(c *gin.Context) {
	h.BundleFilesJSON(c)
}

// BundleFilesText accepts a text/plain body carrying the same JSON. The
// separate media type exists for clients whose auth layer mishandles
// preflight on application/json.
func (h *Handler) BundleFilesText(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Error(c.Request.Context(), "unable to read request body", "error", err)
		c.String(http.StatusBadRequest, "unable to read request body")
		return
	}
	var req messages.BundleRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.log.Error(c.Request.Context(), "unable to parse bundle request", "error", err)
		c.String(http.StatusBadRequest, "unable to parse request body")
		return
	}
	h.accept(c, &req)
}

// accept generates a job id, archives the raw request, kicks off the job
// asynchronously, and returns the initial tracker.
func (h *Handler) accept(c *gin.Context, req *messages.BundleRequest) {
	ctx := c.Request.Context()

	if req.UserName == "" {
		if user := c.GetHeader(userHeader); user != "" {
			req.UserName = user
		} else {
			req.UserName = messages.DefaultUserName
		}
	}

	jobID, err := shared.NewJobID()
	if err != nil {
		h.log.Error(ctx, "unable to generate job id", "error", err)
		c.String(http.StatusInternalServerError, "unable to generate job id")
		return
	}

	h.log.Info(ctx, "bundle request accepted",
		"job_id", jobID,
		"user_name", req.UserName,
		"type", req.Type,
		"files", len(req.Files))

	// Submission runs detached from the request: the client polls GetState
	// for progress.
	background := context.WithoutCancel(ctx)
	go h.archiver.Archive(background, jobID, req)
	go func() {
		if err := h.submitter.Submit(background, jobID, req); err != nil {
			h.log.Error(context.Background(), "job submission failed",
				"job_id", jobID, "error", err)
		}
	}()

	c.JSON(http.StatusOK, messages.JobTrackerMessage{
		JobID:    jobID,
		UserName: req.UserName,
		State:    string(model.StateNotStarted),
		Archives: []messages.ArchiveMessage{},
	})
}

// GetState returns the current snapshot for a job id.
func (h *Handler) GetState(c *gin.Context) {
	jobID := c.Query("job_id")
	if jobID == "" {
		c.String(http.StatusBadRequest, "job_id query parameter is required")
		return
	}

	msg, err := h.reader.GetSnapshot(c.Request.Context(), jobID)
	if err != nil {
		h.log.Error(c.Request.Context(), "unable to build job snapshot",
			"job_id", jobID, "error", err)
		c.String(http.StatusInternalServerError, "unable to read job state")
		return
	}
	c.JSON(http.StatusOK, msg)
}

// IsAlive is the liveness probe.
func (h *Handler) IsAlive(c *gin.Context) {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	user := c.GetHeader(userHeader)
	if user == "" {
		user = messages.DefaultUserName
	}
	c.String(http.StatusOK,
		fmt.Sprintf("Application [ %s ] on host [ %s ] and called by user [ %s ] is alive!",
			ApplicationName, host, user))
}

// DataSourceTest lists the known job ids, one per line.
func (h *Handler) DataSourceTest(c *gin.Context) {
	ids, err := h.jobs.ListJobIDs(c.Request.Context())
	if err != nil {
		h.log.Error(c.Request.Context(), "unable to list job ids", "error", err)
		c.String(http.StatusInternalServerError, "unable to list job ids")
		return
	}
	if len(ids) == 0 {
		c.String(http.StatusOK, "Job ID list is empty.")
		return
	}
	c.String(http.StatusOK, strings.Join(ids, "\n"))
}
