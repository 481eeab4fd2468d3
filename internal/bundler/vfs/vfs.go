// Package vfs resolves opaque file locations (URIs) to byte streams across
// pluggable scheme providers. The bundler core only ever talks to the
// Registry; concrete providers exist for local POSIX paths (file://) and
// S3-compatible object stores (s3://).
package vfs

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"

	"github.com/dmitrijs2005/bundler/internal/common"
	"github.com/dmitrijs2005/bundler/internal/logging"
)

// FileSystem is one scheme provider. Paths are passed as parsed URIs; the
// provider interprets host and path components according to its scheme.
type FileSystem interface {
	// Scheme returns the URI scheme this provider serves, e.g. "file".
	Scheme() string

	// Open returns a reader over the object plus its size in bytes.
	Open(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error)

	// Create opens a writer that replaces the object at u. Parent
	// directories are created as needed where the scheme has them.
	Create(ctx context.Context, u *url.URL) (io.WriteCloser, error)

	// Exists reports whether an object exists at u.
	Exists(ctx context.Context, u *url.URL) (bool, error)

	// Size returns the object's size in bytes.
	Size(ctx context.Context, u *url.URL) (int64, error)

	// Remove deletes the object at u. Removing a missing object is not
	// an error.
	Remove(ctx context.Context, u *url.URL) error

	// Walk returns the URIs of all regular files under u, depth first.
	// A u that points at a single file yields exactly that file.
	Walk(ctx context.Context, u *url.URL) ([]string, error)

	// MkdirAll creates the directory at u and any missing parents.
	// Schemes without real directories treat this as a no-op.
	MkdirAll(ctx context.Context, u *url.URL) error
}

// Registry maps URI schemes onto providers. A bare path with no scheme is
// served by the file provider. Providers are registered once at startup;
// registration of an already-present scheme is ignored.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]FileSystem
	log       logging.Logger
}

// NewRegistry constructs an empty Registry.
func NewRegistry(log logging.Logger) *Registry {
	return &Registry{
		providers: make(map[string]FileSystem),
		log:       log,
	}
}

// Register installs a provider for its scheme. The first registration for a
// scheme wins; later ones are logged and dropped so concurrent startup
// paths cannot swap a provider mid-flight.
func (r *Registry) Register(fs FileSystem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[fs.Scheme()]; ok {
		r.log.Warn(context.Background(), "scheme already registered, keeping existing provider",
			"scheme", fs.Scheme())
		return
	}
	r.providers[fs.Scheme()] = fs
}

// Schemes returns the registered scheme names.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.providers))
	for s := range r.providers {
		out = append(out, s)
	}
	return out
}

// resolve parses the uri and finds its provider. A missing scheme is
// treated as file://.
func (r *Registry) resolve(uri string) (FileSystem, *url.URL, error) {
	u, err := Parse(uri)
	if err != nil {
		return nil, nil, err
	}
	r.mu.RLock()
	fs, ok := r.providers[u.Scheme]
	r.mu.RUnlock()
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", common.ErrSchemeUnsupported, u.Scheme)
	}
	return fs, u, nil
}

// Open resolves uri and returns a reader over the object plus its size.
func (r *Registry) Open(ctx context.Context, uri string) (io.ReadCloser, int64, error) {
	fs, u, err := r.resolve(uri)
	if err != nil {
		return nil, 0, err
	}
	return fs.Open(ctx, u)
}

// Create resolves uri and opens a writer replacing the object.
func (r *Registry) Create(ctx context.Context, uri string) (io.WriteCloser, error) {
	fs, u, err := r.resolve(uri)
	if err != nil {
		return nil, err
	}
	return fs.Create(ctx, u)
}

// Exists reports whether an object exists at uri.
func (r *Registry) Exists(ctx context.Context, uri string) (bool, error) {
	fs, u, err := r.resolve(uri)
	if err != nil {
		return false, err
	}
	return fs.Exists(ctx, u)
}

// Size returns the size in bytes of the object at uri.
func (r *Registry) Size(ctx context.Context, uri string) (int64, error) {
	fs, u, err := r.resolve(uri)
	if err != nil {
		return 0, err
	}
	return fs.Size(ctx, u)
}

// Remove deletes the object at uri.
func (r *Registry) Remove(ctx context.Context, uri string) error {
	fs, u, err := r.resolve(uri)
	if err != nil {
		return err
	}
	return fs.Remove(ctx, u)
}

// Walk returns the URIs of all regular files under uri, depth first.
func (r *Registry) Walk(ctx context.Context, uri string) ([]string, error) {
	fs, u, err := r.resolve(uri)
	if err != nil {
		return nil, err
	}
	return fs.Walk(ctx, u)
}

// MkdirAll creates the directory at uri and any missing parents.
func (r *Registry) MkdirAll(ctx context.Context, uri string) error {
	fs, u, err := r.resolve(uri)
	if err != nil {
		return err
	}
	return fs.MkdirAll(ctx, u)
}

// Parse turns a location string into a URL, defaulting the scheme to file.
func Parse(uri string) (*url.URL, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty location", common.ErrTransientIO)
	}
	if !strings.Contains(uri, "://") {
		return &url.URL{Scheme: "file", Path: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %q: %v", common.ErrTransientIO, uri, err)
	}
	if u.Scheme == "" {
		u.Scheme = "file"
	}
	return u, nil
}

// Join appends rel to base with exactly one path separator between them.
func Join(base, rel string) string {
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(rel, "/")
}
