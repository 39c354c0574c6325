package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path"
	"path/filepath"
	"time"
)

// LocalStorage keeps objects as files under a base directory. Keys are
// slash separated and can never resolve outside the base directory.
type LocalStorage struct {
	baseDir   string
	urlPrefix string
}

// NewLocalStorage creates the base directory if needed. urlPrefix is the
// public path the directory is served under, e.g. "/uploads".
func NewLocalStorage(baseDir, urlPrefix string) (*LocalStorage, error) {
	if baseDir == "" {
		baseDir = "uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage directory: %w", err)
	}
	return &LocalStorage{baseDir: baseDir, urlPrefix: urlPrefix}, nil
}

// Dir is the directory objects are written to.
func (s *LocalStorage) Dir() string {
	return s.baseDir
}

func (s *LocalStorage) resolve(key string) string {
	return filepath.Join(s.baseDir, filepath.FromSlash(path.Clean("/"+key)))
}

func mapFSError(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrObjectNotFound, err)
	}
	return err
}

func (s *LocalStorage) Put(_ context.Context, key string, r io.Reader, opt PutObjectOptions) (ObjectInfo, error) {
	p := s.resolve(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return ObjectInfo{}, fmt.Errorf("prepare storage directory: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create object file: %w", err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(p)
		return ObjectInfo{}, fmt.Errorf("write object file: %w", err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         n,
		ContentType:  opt.ContentType,
		LastModified: time.Now().UTC(),
		Metadata:     opt.Metadata,
	}, nil
}

func (s *LocalStorage) Get(_ context.Context, key string) (io.ReadCloser, ObjectInfo, error) {
	f, err := os.Open(s.resolve(key))
	if err != nil {
		return nil, ObjectInfo{}, mapFSError(err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, err
	}
	return f, fileInfo(key, st), nil
}

func (s *LocalStorage) Stat(_ context.Context, key string) (ObjectInfo, error) {
	st, err := os.Stat(s.resolve(key))
	if err != nil {
		return ObjectInfo{}, mapFSError(err)
	}
	if st.IsDir() {
		return ObjectInfo{}, fmt.Errorf("%w: %s is a directory", ErrObjectNotFound, key)
	}
	return fileInfo(key, st), nil
}

func fileInfo(key string, st fs.FileInfo) ObjectInfo {
	return ObjectInfo{
		Key:          key,
		Size:         st.Size(),
		ContentType:  mime.TypeByExtension(path.Ext(key)),
		LastModified: st.ModTime(),
	}
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.resolve(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object file: %w", err)
	}
	return nil
}

// PresignGet returns the public path of the file. Local files are served
// statically, so expiry is ignored.
func (s *LocalStorage) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return path.Join(s.urlPrefix, path.Clean("/"+key)), nil
}

var _ Storage = (*LocalStorage)(nil)
