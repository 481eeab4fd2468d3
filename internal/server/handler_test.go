package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/bundler/internal/bundler/messages"
	"github.com/dmitrijs2005/bundler/internal/bundler/model"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

type fakeSubmitter struct {
	mu     sync.Mutex
	jobIDs []string
	reqs   []*messages.BundleRequest
}

func (f *fakeSubmitter) Submit(ctx context.Context, jobID string, req *messages.BundleRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobIDs = append(f.jobIDs, jobID)
	f.reqs = append(f.reqs, req)
	return nil
}

func (f *fakeSubmitter) wait(t *testing.T) (string, *messages.BundleRequest) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		if len(f.jobIDs) > 0 {
			id, req := f.jobIDs[0], f.reqs[0]
			f.mu.Unlock()
			return id, req
		}
		f.mu.Unlock()
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("submitter was never invoked")
	return "", nil
}

type fakeReader struct {
	msg *messages.JobTrackerMessage
	err error
}

func (f *fakeReader) GetSnapshot(ctx context.Context, jobID string) (*messages.JobTrackerMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.msg, nil
}

type fakeLister struct {
	ids []string
	err error
}

func (f *fakeLister) ListJobIDs(ctx context.Context) ([]string, error) {
	return f.ids, f.err
}

type noopArchiver struct{}

func (noopArchiver) Archive(ctx context.Context, jobID string, req *messages.BundleRequest) {}

func setupRouter(t *testing.T, sub Submitter, reader SnapshotReader, lister JobLister) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))

	r := gin.New()
	r.Use(Recovery(log), RequestLogger(log))
	NewHandler(sub, reader, lister, noopArchiver{}, log).Register(r)
	return r
}

func TestBundleFilesJSON_AcceptsAndDispatches(t *testing.T) {
	sub := &fakeSubmitter{}
	r := setupRouter(t, sub, &fakeReader{}, &fakeLister{})

	body, _ := json.Marshal(messages.BundleRequest{
		Files:    []messages.FileItem{{Path: "/data/a.bin"}},
		Type:     "ZIP",
		UserName: "alice",
	})
	req := httptest.NewRequest(http.MethodPost, "/BundleFilesJSON", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp messages.JobTrackerMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.JobID, 32, "job id is 16 random bytes hex encoded")
	assert.Equal(t, "alice", resp.UserName)
	assert.Equal(t, string(model.StateNotStarted), resp.State)

	jobID, got := sub.wait(t)
	assert.Equal(t, resp.JobID, jobID)
	assert.Equal(t, "alice", got.UserName)
}

func TestBundleFiles_MixedForms(t *testing.T) {
	sub := &fakeSubmitter{}
	r := setupRouter(t, sub, &fakeReader{}, &fakeLister{})

	raw := `{"files": ["/data/a.bin", {"path": "/data/b.bin", "archive_path": "x"}], "type": "TAR"}`
	req := httptest.NewRequest(http.MethodPost, "/BundleFiles", bytes.NewBufferString(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	_, got := sub.wait(t)
	require.Len(t, got.Files, 2)
	assert.Equal(t, "x", got.Files[1].ArchivePath)
}

func TestBundleFilesText_PlainTextJSON(t *testing.T) {
	sub := &fakeSubmitter{}
	r := setupRouter(t, sub, &fakeReader{}, &fakeLister{})

	raw := `{"files": ["/data/a.bin"], "type": "GZIP", "user_name": "bob"}`
	req := httptest.NewRequest(http.MethodPost, "/BundleFilesText", bytes.NewBufferString(raw))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	_, got := sub.wait(t)
	assert.Equal(t, "GZIP", got.Type)
	assert.Equal(t, "bob", got.UserName)
}

func TestBundleFilesJSON_BadBody(t *testing.T) {
	r := setupRouter(t, &fakeSubmitter{}, &fakeReader{}, &fakeLister{})

	req := httptest.NewRequest(http.MethodPost, "/BundleFilesJSON", bytes.NewBufferString("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAccept_UserNameFromHeader(t *testing.T) {
	sub := &fakeSubmitter{}
	r := setupRouter(t, sub, &fakeReader{}, &fakeLister{})

	raw := `{"files": ["/data/a.bin"], "type": "ZIP"}`
	req := httptest.NewRequest(http.MethodPost, "/BundleFilesJSON", bytes.NewBufferString(raw))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Remote-User", "carol")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	_, got := sub.wait(t)
	assert.Equal(t, "carol", got.UserName)
}

func TestGetState_ReturnsSnapshot(t *testing.T) {
	reader := &fakeReader{msg: &messages.JobTrackerMessage{
		JobID: "ABC", State: "IN_PROGRESS", NumArchives: 2, NumArchivesComplete: 1,
	}}
	r := setupRouter(t, &fakeSubmitter{}, reader, &fakeLister{})

	req := httptest.NewRequest(http.MethodGet, "/GetState?job_id=ABC", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decoded))
	assert.Equal(t, "ABC", decoded["job_id"])
	assert.Equal(t, float64(2), decoded["threads"])
	assert.Equal(t, float64(1), decoded["threads_complete"])
}

func TestGetState_MissingJobID(t *testing.T) {
	r := setupRouter(t, &fakeSubmitter{}, &fakeReader{}, &fakeLister{})

	req := httptest.NewRequest(http.MethodGet, "/GetState", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetState_RepositoryFailure(t *testing.T) {
	r := setupRouter(t, &fakeSubmitter{}, &fakeReader{err: errors.New("db down")}, &fakeLister{})

	req := httptest.NewRequest(http.MethodGet, "/GetState?job_id=X", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestIsAlive(t *testing.T) {
	r := setupRouter(t, &fakeSubmitter{}, &fakeReader{}, &fakeLister{})

	req := httptest.NewRequest(http.MethodGet, "/isAlive", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "is alive!")
	assert.Contains(t, w.Body.String(), ApplicationName)
}

func TestDataSourceTest(t *testing.T) {
	r := setupRouter(t, &fakeSubmitter{}, &fakeReader{}, &fakeLister{ids: []string{"A", "B"}})

	req := httptest.NewRequest(http.MethodGet, "/DataSourceTest", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "A\nB", w.Body.String())
}

func TestDataSourceTest_Empty(t *testing.T) {
	r := setupRouter(t, &fakeSubmitter{}, &fakeReader{}, &fakeLister{})

	req := httptest.NewRequest(http.MethodGet, "/DataSourceTest", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Job ID list is empty.", w.Body.String())
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	r := setupRouter(t, &fakeSubmitter{}, &fakeReader{}, &fakeLister{})

	req := httptest.NewRequest(http.MethodGet, "/isAlive", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
}
