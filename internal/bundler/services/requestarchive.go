package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/dmitrijs2005/bundler/internal/bundler/messages"
	"github.com/dmitrijs2005/bundler/internal/bundler/vfs"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

// RequestArchiver writes the raw client request next to a job id for later
// debugging. The feature is best effort: failures are logged, never
// surfaced, and an empty directory disables it entirely.
type RequestArchiver struct {
	dir string
	fs  *vfs.Registry
	log logging.Logger
}

// NewRequestArchiver constructs a RequestArchiver writing into dir.
func NewRequestArchiver(dir string, fs *vfs.Registry, log logging.Logger) *RequestArchiver {
	return &RequestArchiver{dir: dir, fs: fs, log: log}
}

// Enabled reports whether request archival is configured.
func (r *RequestArchiver) Enabled() bool {
	return r.dir != ""
}

// Archive stores the request as <dir>/request_<jobID>.json.
func (r *RequestArchiver) Archive(ctx context.Context, jobID string, req *messages.BundleRequest) {
	if !r.Enabled() {
		return
	}

	data, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		r.log.Error(ctx, "unable to serialize request for archival",
			"job_id", jobID, "error", err)
		return
	}

	if err := r.fs.MkdirAll(ctx, r.dir); err != nil {
		r.log.Error(ctx, "unable to create request archive directory",
			"dir", r.dir, "error", err)
		return
	}

	target := vfs.Join(r.dir, "request_"+jobID+".json")
	w, err := r.fs.Create(ctx, target)
	if err != nil {
		r.log.Error(ctx, "unable to create request archive file",
			"file", target, "error", err)
		return
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		r.log.Error(ctx, "unable to write request archive file",
			"file", target, "error", err)
		w.Close()
		return
	}
	if err := w.Close(); err != nil {
		r.log.Error(ctx, "unable to finalize request archive file",
			"file", target, "error", err)
		return
	}
	r.log.Debug(ctx, "request archived", "job_id", jobID, "file", target)
}
