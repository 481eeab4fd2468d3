// Package entrypath computes the path under which a source file is stored
// inside an output archive. Starting from the URI's path component, any
// configured prefix exclusions are stripped, an optional base directory is
// removed, an optional replacement prefix is prepended, and the result is
// forced under the archive entry length limit: leftmost path segments are
// dropped first, and as a last resort the filename itself is truncated with
// its extension preserved.
package entrypath

import (
	"strings"

	"github.com/dmitrijs2005/bundler/internal/bundler/vfs"
)

// LengthLimit is the maximum number of characters an archive entry path
// may occupy.
const LengthLimit = 100

// Normalizer computes archive entry paths. It is immutable after
// construction and safe for concurrent use.
type Normalizer struct {
	exclusions []string
}

// New constructs a Normalizer with the configured prefix exclusions.
// Empty exclusions are dropped.
func New(exclusions []string) *Normalizer {
	kept := make([]string, 0, len(exclusions))
	for _, e := range exclusions {
		if e != "" {
			kept = append(kept, e)
		}
	}
	return &Normalizer{exclusions: kept}
}

// EntryPath computes the entry path for a source URI: only the URI's path
// component participates; configured exclusions are stripped, the leading
// separator removed, and the length limit enforced.
func (n *Normalizer) EntryPath(uri string) string {
	p := pathComponent(uri)
	if p == "" {
		return ""
	}
	p = n.stripExclusions(p)
	return enforceLengthLimit(p)
}

// EntryPathRelative computes the entry path of a file discovered under a
// directory search. baseDir is removed from the front of the path; if
// archivePath is supplied it is prepended with exactly one separator.
func (n *Normalizer) EntryPathRelative(uri, baseDir, archivePath string) string {
	p := pathComponent(uri)
	if p == "" {
		return ""
	}
	if baseDir != "" {
		p = stripPrefixOnce(p, pathComponent(baseDir))
	}
	if archivePath != "" {
		p = strings.TrimPrefix(p, "/")
		p = strings.TrimSuffix(archivePath, "/") + "/" + p
	}
	p = n.stripExclusions(p)
	return enforceLengthLimit(p)
}

// BaseNameEntry computes the entry path of an explicitly listed file whose
// client supplied a replacement prefix: the prefix plus the file's base
// name. With no prefix the base name alone is used.
func (n *Normalizer) BaseNameEntry(uri, archivePath string) string {
	p := pathComponent(uri)
	if p == "" {
		return ""
	}
	base := p
	if i := strings.LastIndex(p, "/"); i >= 0 {
		base = p[i+1:]
	}
	if archivePath == "" {
		return enforceLengthLimit(base)
	}
	return enforceLengthLimit(strings.TrimSuffix(archivePath, "/") + "/" + base)
}

// stripExclusions removes exactly one occurrence of each configured prefix
// and the leading separator.
func (n *Normalizer) stripExclusions(p string) string {
	for _, exclusion := range n.exclusions {
		p = stripPrefixOnce(p, exclusion)
	}
	return strings.TrimPrefix(p, "/")
}

// pathComponent extracts the path part of a URI; bare paths pass through.
func pathComponent(uri string) string {
	u, err := vfs.Parse(uri)
	if err != nil {
		return ""
	}
	return u.Path
}

func stripPrefixOnce(p, prefix string) string {
	if prefix != "" && strings.HasPrefix(p, prefix) {
		return p[len(prefix):]
	}
	return p
}

// enforceLengthLimit shortens p until it fits the entry length limit:
// while a separator remains the leftmost segment is dropped; a bare
// filename is truncated with its extension preserved.
func enforceLengthLimit(p string) string {
	for len(p) > LengthLimit {
		if i := strings.Index(p, "/"); i >= 0 {
			p = p[i+1:]
		} else {
			p = truncateFilename(p)
		}
	}
	return p
}

// truncateFilename cuts a filename down to the length limit, keeping the
// extension when it has one.
func truncateFilename(p string) string {
	ext := Extension(p)
	cut := LengthLimit - len(ext)
	if cut < 0 {
		cut = 0
	}
	stem := strings.TrimSuffix(p, ext)
	if len(stem) > cut {
		stem = stem[:cut]
	}
	return stem + ext
}

// Extension returns the dot-suffix of a path, including the dot. A dot at
// position 0 of the filename (a hidden file) does not count, nor does a
// dot inside a directory segment.
func Extension(p string) string {
	dot := strings.LastIndex(p, ".")
	if dot < 0 {
		return ""
	}
	sep := strings.LastIndex(p, "/")
	if sep < 0 && dot == 0 {
		return ""
	}
	if sep >= 0 && sep > dot {
		return ""
	}
	if dot == sep+1 {
		return ""
	}
	return p[dot:]
}
