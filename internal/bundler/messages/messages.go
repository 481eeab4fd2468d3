// Package messages defines the JSON shapes exchanged with clients: the
// bundle request accepted by the submission endpoints and the tracker
// message returned by state queries. Field names are contract; do not
// rename them.
package messages

import (
	"encoding/json"
	"fmt"

	"github.com/dmitrijs2005/bundler/internal/bundler/model"
)

// DefaultUserName is recorded when a request carries no user name.
const DefaultUserName = "unavailable"

// FileItem is one requested input: a path plus an optional replacement
// prefix for its archive entry. Clients may send either a bare JSON string
// or an object {"path": ..., "archive_path": ...}; both forms unmarshal
// into this type.
type FileItem struct {
	Path        string `json:"path"`
	ArchivePath string `json:"archive_path,omitempty"`
}

// UnmarshalJSON accepts both the string and the object request forms.
func (f *FileItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.Path = s
		f.ArchivePath = ""
		return nil
	}
	type alias FileItem
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("file item must be a string or an object: %w", err)
	}
	*f = FileItem(a)
	return nil
}

// BundleRequest is the client submission accepted by the BundleFiles
// endpoints.
type BundleRequest struct {
	Files          []FileItem `json:"files"`
	Type           string     `json:"type"`
	MaxSizeMB      int64      `json:"max_size"`
	OutputFilename string     `json:"output_filename"`
	UserName       string     `json:"user_name"`
}

// ArchiveMessage is the per-archive view carried inside a tracker message
// for terminal archives.
type ArchiveMessage struct {
	ArchiveID  int64  `json:"archive_id"`
	State      string `json:"state"`
	ArchiveURL string `json:"archive_url"`
	HashURL    string `json:"hash_url"`
	NumFiles   int64  `json:"num_files"`
	Size       int64  `json:"size"`
	HostName   string `json:"host_name"`
	StartTime  int64  `json:"start_time"`
	EndTime    int64  `json:"end_time"`
}

// NewArchiveMessage maps an ArchiveJob onto its client view.
func NewArchiveMessage(a *model.ArchiveJob) ArchiveMessage {
	return ArchiveMessage{
		ArchiveID:  a.ArchiveID,
		State:      string(a.State),
		ArchiveURL: a.ArchiveURL,
		HashURL:    a.HashURL,
		NumFiles:   a.NumFiles,
		Size:       a.Size,
		HostName:   a.HostName,
		StartTime:  a.StartTime,
		EndTime:    a.EndTime,
	}
}

// JobTrackerMessage is the progress snapshot returned by GetState and the
// submission endpoints. The threads/threads_complete names are maintained
// for backwards compatibility with existing clients; hashes_complete always
// equals threads_complete because hashes and archives are one to one.
type JobTrackerMessage struct {
	JobID               string           `json:"job_id"`
	UserName            string           `json:"user_name"`
	State               string           `json:"state"`
	NumArchives         int64            `json:"threads"`
	NumArchivesComplete int64            `json:"threads_complete"`
	NumHashesComplete   int64            `json:"hashes_complete"`
	NumFiles            int64            `json:"num_files"`
	NumFilesComplete    int64            `json:"files_complete"`
	TotalSize           int64            `json:"size"`
	TotalSizeComplete   int64            `json:"size_complete"`
	ElapsedTime         int64            `json:"elapsed_time"`
	Archives            []ArchiveMessage `json:"archives"`
}
