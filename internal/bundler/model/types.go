// Package model defines the persistent entities of the bundler: Job,
// ArchiveJob, and FileEntry, together with the enumerated state, archive,
// and hash types and their canonical text forms used in JSON and paths.
package model

import (
	"fmt"
	"strings"

	"github.com/dmitrijs2005/bundler/internal/common"
)

// JobState is the lifecycle state of a Job, ArchiveJob, or FileEntry.
type JobState string

const (
	StateNotStarted     JobState = "NOT_STARTED"
	StateInProgress     JobState = "IN_PROGRESS"
	StateComplete       JobState = "COMPLETE"
	StateError          JobState = "ERROR"
	StateInvalidRequest JobState = "INVALID_REQUEST"
	StateNotAvailable   JobState = "NOT_AVAILABLE"
)

// Terminal reports whether the state is a final archive state.
func (s JobState) Terminal() bool {
	return s == StateComplete || s == StateError
}

// ArchiveType identifies the container format of an output archive.
type ArchiveType string

const (
	ArchiveTypeZip   ArchiveType = "ZIP"
	ArchiveTypeTar   ArchiveType = "TAR"
	ArchiveTypeAr    ArchiveType = "AR"
	ArchiveTypeCpio  ArchiveType = "CPIO"
	ArchiveTypeGzip  ArchiveType = "GZIP"
	ArchiveTypeBzip2 ArchiveType = "BZIP2"
)

// ParseArchiveType maps the request text form onto an ArchiveType.
// Matching is case-insensitive.
func ParseArchiveType(s string) (ArchiveType, error) {
	switch ArchiveType(strings.ToUpper(strings.TrimSpace(s))) {
	case ArchiveTypeZip:
		return ArchiveTypeZip, nil
	case ArchiveTypeTar:
		return ArchiveTypeTar, nil
	case ArchiveTypeAr:
		return ArchiveTypeAr, nil
	case ArchiveTypeCpio:
		return ArchiveTypeCpio, nil
	case ArchiveTypeGzip:
		return ArchiveTypeGzip, nil
	case ArchiveTypeBzip2:
		return ArchiveTypeBzip2, nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownArchiveType, s)
}

// Extension returns the file extension (without the leading dot) that
// output archives of this type carry.
func (t ArchiveType) Extension() string {
	switch t {
	case ArchiveTypeGzip:
		return "tar.gz"
	case ArchiveTypeBzip2:
		return "tar.bz2"
	default:
		return strings.ToLower(string(t))
	}
}

// Compressed reports whether entries of this type shrink when archived.
// Plain containers (TAR, AR, CPIO) store entries byte for byte.
func (t ArchiveType) Compressed() bool {
	switch t {
	case ArchiveTypeTar, ArchiveTypeAr, ArchiveTypeCpio:
		return false
	default:
		return true
	}
}

// HashType identifies the digest algorithm used for archive hash files.
type HashType string

const (
	HashTypeMD5    HashType = "MD5"
	HashTypeSHA1   HashType = "SHA1"
	HashTypeSHA256 HashType = "SHA256"
	HashTypeSHA384 HashType = "SHA384"
	HashTypeSHA512 HashType = "SHA512"
)

// ParseHashType maps the config text form onto a HashType.
func ParseHashType(s string) (HashType, error) {
	switch HashType(strings.ToUpper(strings.TrimSpace(s))) {
	case HashTypeMD5:
		return HashTypeMD5, nil
	case HashTypeSHA1:
		return HashTypeSHA1, nil
	case HashTypeSHA256:
		return HashTypeSHA256, nil
	case HashTypeSHA384:
		return HashTypeSHA384, nil
	case HashTypeSHA512:
		return HashTypeSHA512, nil
	}
	return "", fmt.Errorf("%w: %q", common.ErrUnknownHashType, s)
}

// Extension returns the file extension used for the sibling hash file.
func (t HashType) Extension() string {
	return strings.ToLower(string(t))
}
