package export

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/require"

	"galleryapi/internal/model"
	"galleryapi/internal/repository"
	"galleryapi/internal/storage"
)

// memRepo is an in-memory media store with atomic download counting.
type memRepo struct {
	mu          sync.Mutex
	items       map[string]*model.MediaItem
	lookups     int
	lookupErr   error
	incrementFn func(id string) error
}

func newMemRepo(items ...model.MediaItem) *memRepo {
	r := &memRepo{items: make(map[string]*model.MediaItem)}
	for i := range items {
		it := items[i]
		r.items[it.ID] = &it
	}
	return r
}

func (r *memRepo) FindActiveByIDs(_ context.Context, ids []string) ([]model.MediaItem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lookups++
	if r.lookupErr != nil {
		return nil, r.lookupErr
	}
	out := make([]model.MediaItem, 0)
	// Reverse order: callers must restore request order themselves.
	for i := len(ids) - 1; i >= 0; i-- {
		if it, ok := r.items[ids[i]]; ok && it.IsActive() {
			out = append(out, *it)
		}
	}
	return out, nil
}

func (r *memRepo) IncrementDownloadCount(_ context.Context, id string) error {
	if r.incrementFn != nil {
		if err := r.incrementFn(id); err != nil {
			return err
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[id]
	if !ok {
		return repository.ErrNotFound
	}
	it.DownloadCount++
	return nil
}

func (r *memRepo) downloads(id string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id].DownloadCount
}

func (r *memRepo) lookupCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lookups
}

// memStore serves objects from memory. getErr/statErr override per key.
type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	getErr  map[string]error
	statErr map[string]error
	opened  int
	closed  int
}

func newMemStore() *memStore {
	return &memStore{
		objects: make(map[string][]byte),
		getErr:  make(map[string]error),
		statErr: make(map[string]error),
	}
}

func (s *memStore) put(key string, b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = b
}

type trackedReader struct {
	io.Reader
	s *memStore
}

func (t *trackedReader) Close() error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.s.closed++
	return nil
}

func (s *memStore) Get(_ context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.getErr[key]; err != nil {
		return nil, storage.ObjectInfo{}, err
	}
	b, ok := s.objects[key]
	if !ok {
		return nil, storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	s.opened++
	return &trackedReader{Reader: bytes.NewReader(b), s: s}, storage.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

func (s *memStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.statErr[key]; err != nil {
		return storage.ObjectInfo{}, err
	}
	b, ok := s.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(b))}, nil
}

// flushBuffer records how often it was flushed.
type flushBuffer struct {
	bytes.Buffer
	flushes int
}

func (f *flushBuffer) Flush() error {
	f.flushes++
	return nil
}

// brokenSink fails every write after limit bytes.
type brokenSink struct {
	limit   int
	written int
}

var errBrokenPipe = errors.New("broken pipe")

func (b *brokenSink) Write(p []byte) (int, error) {
	if b.written+len(p) > b.limit {
		return 0, errBrokenPipe
	}
	b.written += len(p)
	return len(p), nil
}

func newID() string { return uuid.NewString() }

func mediaItem(title string, vis model.Visibility, owner string) model.MediaItem {
	id := newID()
	return model.MediaItem{
		ID:         id,
		Title:      title,
		StorageKey: "media/" + id + ".jpg",
		OwnerID:    owner,
		Visibility: vis,
		Lifecycle:  model.LifecycleActive,
		CreatedAt:  time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

type archived struct {
	name string
	body string
}

func readArchive(t *testing.T, b []byte) []archived {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	out := make([]archived, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out = append(out, archived{name: f.Name, body: string(body)})
	}
	return out
}

func names(entries []archived) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out
}
