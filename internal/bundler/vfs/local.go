package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/bundler/internal/common"
)

// LocalFileSystem serves file:// URIs from the local POSIX filesystem.
type LocalFileSystem struct{}

// NewLocalFileSystem constructs the file:// provider.
func NewLocalFileSystem() *LocalFileSystem {
	return &LocalFileSystem{}
}

func (l *LocalFileSystem) Scheme() string { return "file" }

// localPath extracts the on-disk path from a file URI. The host component,
// if any, is ignored (file://localhost/x and file:///x are the same file).
func localPath(u *url.URL) string {
	if u.Path != "" {
		return u.Path
	}
	return u.Opaque
}

// wrapOSError maps an os error onto the adapter's failure kinds.
func wrapOSError(op, path string, err error) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s %s", common.ErrNotFound, op, path)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s %s", common.ErrPermissionDenied, op, path)
	default:
		return fmt.Errorf("%w: %s %s: %v", common.ErrTransientIO, op, path, err)
	}
}

func (l *LocalFileSystem) Open(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error) {
	path := localPath(u)
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, wrapOSError("open", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, wrapOSError("stat", path, err)
	}
	return f, info.Size(), nil
}

func (l *LocalFileSystem) Create(ctx context.Context, u *url.URL) (io.WriteCloser, error) {
	path := localPath(u)
	if err := os.MkdirAll(filepath.Dir(path), 0o770); err != nil {
		return nil, wrapOSError("mkdir", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, wrapOSError("create", path, err)
	}
	return f, nil
}

func (l *LocalFileSystem) Exists(ctx context.Context, u *url.URL) (bool, error) {
	path := localPath(u)
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, wrapOSError("stat", path, err)
}

func (l *LocalFileSystem) Size(ctx context.Context, u *url.URL) (int64, error) {
	path := localPath(u)
	info, err := os.Stat(path)
	if err != nil {
		return 0, wrapOSError("stat", path, err)
	}
	return info.Size(), nil
}

func (l *LocalFileSystem) Remove(ctx context.Context, u *url.URL) error {
	path := localPath(u)
	err := os.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return wrapOSError("remove", path, err)
	}
	return nil
}

func (l *LocalFileSystem) Walk(ctx context.Context, u *url.URL) ([]string, error) {
	root := localPath(u)
	info, err := os.Stat(root)
	if err != nil {
		return nil, wrapOSError("stat", root, err)
	}
	if !info.IsDir() {
		return []string{"file://" + root}, nil
	}
	var out []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !d.IsDir() {
			out = append(out, "file://"+path)
		}
		return nil
	})
	if err != nil {
		return nil, wrapOSError("walk", root, err)
	}
	return out, nil
}

func (l *LocalFileSystem) MkdirAll(ctx context.Context, u *url.URL) error {
	path := localPath(u)
	if err := os.MkdirAll(path, 0o770); err != nil {
		return wrapOSError("mkdir", path, err)
	}
	return nil
}
