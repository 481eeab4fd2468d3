// Package common defines shared constants and sentinel errors used across
// the bundler components. Callers should use errors.Is to match these
// values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Filesystem adapter errors. Every provider failure is surfaced as
	// one of these kinds, wrapped with scheme/path detail.
	ErrPermissionDenied  = errors.New("permission denied")
	ErrTransientIO       = errors.New("transient i/o failure")
	ErrSchemeUnsupported = errors.New("uri scheme unsupported")

	// Type-name parsing errors: archive types arrive with submissions, the
	// hash type comes from configuration.
	ErrUnknownArchiveType = errors.New("unknown archive type")
	ErrUnknownHashType    = errors.New("unknown hash type")
)
