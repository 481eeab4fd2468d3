package model

// ArchiveElement is the transient unit consumed by the archivers: one source
// file, the path it gets inside the archive, and its uncompressed size.
// It is never persisted.
type ArchiveElement struct {
	URI       string
	EntryPath string
	Size      int64
}

// FileEntry is one source file inside one archive. Entries are created when
// the Job is persisted and mutated by the file-completion listener as the
// archiver finishes them.
type FileEntry struct {
	JobID     string   `json:"job_id"`
	ArchiveID int64    `json:"archive_id"`
	Path      string   `json:"path"`
	EntryPath string   `json:"entry_path"`
	Size      int64    `json:"size"`
	State     JobState `json:"state"`
}

// ArchiveJob is one output archive artifact: where it is written, its hash
// file, the worker that produced it, and the files it contains. An
// ArchiveJob is immutable once it reaches a terminal state.
type ArchiveJob struct {
	JobID      string      `json:"job_id"`
	ArchiveID  int64       `json:"archive_id"`
	Type       ArchiveType `json:"archive_type"`
	Archive    string      `json:"archive_file"`
	ArchiveURL string      `json:"archive_url"`
	Hash       string      `json:"hash_file"`
	HashURL    string      `json:"hash_url"`
	HostName   string      `json:"host_name"`
	ServerName string      `json:"server_name"`
	StartTime  int64       `json:"start_time"`
	EndTime    int64       `json:"end_time"`
	NumFiles   int64       `json:"num_files"`
	Size       int64       `json:"size"`
	State      JobState    `json:"state"`
	Files      []*FileEntry `json:"files"`
}

// Job is one client submission. It exclusively owns its ArchiveJobs, which
// exclusively own their FileEntries; back references exist only via ids.
type Job struct {
	JobID               string        `json:"job_id"`
	UserName            string        `json:"user_name"`
	Type                ArchiveType   `json:"archive_type"`
	ArchiveSize         int64         `json:"archive_size"`
	TotalSize           int64         `json:"total_size"`
	TotalSizeComplete   int64         `json:"total_size_complete"`
	NumFiles            int64         `json:"num_files"`
	NumFilesComplete    int64         `json:"num_files_complete"`
	NumArchives         int64         `json:"num_archives"`
	NumArchivesComplete int64         `json:"num_archives_complete"`
	State               JobState      `json:"state"`
	StartTime           int64         `json:"start_time"`
	EndTime             int64         `json:"end_time"`
	Archives            []*ArchiveJob `json:"archives"`
}

// Archive returns the archive with the given id, or nil.
func (j *Job) Archive(archiveID int64) *ArchiveJob {
	for _, a := range j.Archives {
		if a.ArchiveID == archiveID {
			return a
		}
	}
	return nil
}
