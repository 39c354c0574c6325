package export

import (
	"context"
	"errors"
	"io"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"galleryapi/internal/storage"
)

// ObjectReader opens the bytes behind a storage key.
type ObjectReader interface {
	Get(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
}

// Flusher is implemented by sinks that buffer, such as a response body writer.
type Flusher interface {
	Flush() error
}

// BuildResult lists the item ids that were written to the archive and those
// skipped because their source was missing.
type BuildResult struct {
	Archived []string
	Skipped  []string
}

// Builder writes entries into a ZIP container at maximum Deflate level.
type Builder struct {
	store ObjectReader
	log   *zap.Logger
}

// NewBuilder creates a Builder that reads entry sources from store.
func NewBuilder(store ObjectReader, log *zap.Logger) *Builder {
	return &Builder{store: store, log: log}
}

// sinkWriter remembers whether a failure came from the destination rather
// than the source.
type sinkWriter struct {
	w   io.Writer
	err error
}

func (s *sinkWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil && s.err == nil {
		s.err = err
	}
	return n, err
}

func (s *sinkWriter) flush() error {
	f, ok := s.w.(Flusher)
	if !ok {
		return nil
	}
	if err := f.Flush(); err != nil {
		if s.err == nil {
			s.err = err
		}
		return err
	}
	return nil
}

func newZipWriter(w io.Writer) *zip.Writer {
	zw := zip.NewWriter(w)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	return zw
}

// Build writes entries to sink strictly in order. Entries whose source is
// missing are skipped. The container is only started once the first source
// opens, so when nothing can be archived no byte reaches sink and
// ErrNoContentAvailable is returned. onArchived runs after each entry is
// fully written and may be nil.
func (b *Builder) Build(ctx context.Context, entries []Entry, sink io.Writer, onArchived func(Entry)) (BuildResult, error) {
	res := BuildResult{
		Archived: make([]string, 0, len(entries)),
		Skipped:  make([]string, 0),
	}
	out := &sinkWriter{w: sink}
	var zw *zip.Writer

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return res, internal("export cancelled", err)
		}

		written, err := b.writeEntry(ctx, e, out, &zw)
		if err != nil {
			if out.err != nil {
				return res, internal("write archive", errors.Join(ErrSinkClosed, out.err))
			}
			return res, err
		}
		if !written {
			res.Skipped = append(res.Skipped, e.Item.ID)
			continue
		}

		res.Archived = append(res.Archived, e.Item.ID)
		if onArchived != nil {
			onArchived(e)
		}
		if err := zw.Flush(); err != nil {
			return res, internal("write archive", errors.Join(ErrSinkClosed, err))
		}
		if err := out.flush(); err != nil {
			return res, internal("flush archive", errors.Join(ErrSinkClosed, err))
		}
	}

	if zw == nil {
		return res, &Error{Kind: KindNoContentAvailable, Message: "No files found to download"}
	}
	if err := zw.Close(); err != nil {
		return res, internal("finalize archive", errors.Join(ErrSinkClosed, err))
	}
	if err := out.flush(); err != nil {
		return res, internal("flush archive", errors.Join(ErrSinkClosed, err))
	}
	return res, nil
}

// writeEntry copies one source into the archive, creating the container on
// first use. It reports false when the source does not exist.
func (b *Builder) writeEntry(ctx context.Context, e Entry, out io.Writer, zw **zip.Writer) (bool, error) {
	rc, _, err := b.store.Get(ctx, e.Item.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			b.log.Warn("export source missing, skipping",
				zap.String("media_id", e.Item.ID),
				zap.String("storage_key", e.Item.StorageKey),
			)
			return false, nil
		}
		return false, internal("open source "+e.Item.ID, err)
	}
	defer rc.Close()

	if *zw == nil {
		*zw = newZipWriter(out)
	}

	hdr := &zip.FileHeader{
		Name:     e.Name,
		Method:   zip.Deflate,
		Modified: e.Item.CreatedAt,
	}
	w, err := (*zw).CreateHeader(hdr)
	if err != nil {
		return false, internal("create entry "+e.Name, err)
	}
	if _, err := io.Copy(w, rc); err != nil {
		return false, internal("copy entry "+e.Name, err)
	}
	return true, nil
}
