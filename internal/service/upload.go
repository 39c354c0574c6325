package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"galleryapi/internal/model"
	"galleryapi/internal/storage"
)

// UploadFile is one uploaded image as received from the transport.
type UploadFile struct {
	Filename string
	Size     int64
	Content  io.Reader
}

// UploadMeta is the optional metadata sent along with uploads.
type UploadMeta struct {
	Title       string `validate:"max=100"`
	Description string `validate:"max=500"`
	Tags        string
}

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
}

func extensionFor(mimeType string) string {
	if ext, ok := allowedTypes[mimeType]; ok {
		return ext
	}
	return ".jpg"
}

// processed is an upload that passed validation and decoding.
type processed struct {
	id        string
	filename  string
	mimeType  string
	original  []byte
	thumbnail []byte
	dims      model.Dimensions
}

// process reads the whole file, checks its real type from the content and
// renders a JPEG thumbnail ThumbnailWidth pixels wide.
func (s *mediaService) process(f UploadFile) (*processed, error) {
	if f.Content == nil {
		return nil, ErrNoFile
	}
	if s.uploadMaxBytes > 0 && f.Size > s.uploadMaxBytes {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, f.Filename, s.uploadMaxBytes)
	}
	limit := s.uploadMaxBytes
	if limit <= 0 {
		limit = 1 << 30
	}
	data, err := io.ReadAll(io.LimitReader(f.Content, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, f.Filename, limit)
	}
	if len(data) == 0 {
		return nil, ErrNoFile
	}

	mt := mimetype.Detect(data).String()
	if _, ok := allowedTypes[mt]; !ok {
		return nil, fmt.Errorf("%w: got %s", ErrUnsupportedType, mt)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: cannot decode image: %v", ErrUnsupportedType, err)
	}
	thumb, err := thumbnail(img)
	if err != nil {
		return nil, fmt.Errorf("render thumbnail: %w", err)
	}

	b := img.Bounds()
	return &processed{
		id:        uuid.NewString(),
		filename:  f.Filename,
		mimeType:  mt,
		original:  data,
		thumbnail: thumb,
		dims:      model.Dimensions{Width: b.Dx(), Height: b.Dy()},
	}, nil
}

func thumbnail(img image.Image) ([]byte, error) {
	if img.Bounds().Dx() > ThumbnailWidth {
		img = imaging.Resize(img, ThumbnailWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(80)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// persist writes the original and its thumbnail, then the metadata record.
// Stored objects are removed again if a later step fails.
func (s *mediaService) persist(ctx context.Context, p *processed, meta UploadMeta, owner *model.Identity) (*model.MediaItem, error) {
	key := mediaPrefix + p.id + extensionFor(p.mimeType)
	thumbKey := thumbnailsPrefix + p.id + ".jpg"

	if _, err := s.store.Put(ctx, key, bytes.NewReader(p.original), storage.PutObjectOptions{
		Size:        int64(len(p.original)),
		ContentType: p.mimeType,
		Metadata:    map[string]string{"original-filename": p.filename},
	}); err != nil {
		return nil, fmt.Errorf("upload to storage: %w", err)
	}
	if _, err := s.store.Put(ctx, thumbKey, bytes.NewReader(p.thumbnail), storage.PutObjectOptions{
		Size:        int64(len(p.thumbnail)),
		ContentType: "image/jpeg",
	}); err != nil {
		s.rollback(ctx, key)
		return nil, fmt.Errorf("upload thumbnail: %w", err)
	}

	title := strings.TrimSpace(meta.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(p.filename), filepath.Ext(p.filename))
	}
	now := s.now().UTC()
	item := &model.MediaItem{
		ID:           p.id,
		Title:        title,
		Description:  strings.TrimSpace(meta.Description),
		Tags:         model.SplitTags(meta.Tags),
		StorageKey:   key,
		ThumbnailKey: thumbKey,
		Size:         int64(len(p.original)),
		MimeType:     p.mimeType,
		Dimensions:   p.dims,
		OwnerID:      owner.UserID,
		Visibility:   model.VisibilityPublic,
		Lifecycle:    model.LifecycleActive,
		Likes:        []string{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	stored, err := s.repo.Create(ctx, item)
	if err != nil {
		s.rollback(ctx, key, thumbKey)
		return nil, fmt.Errorf("db save failed: %w", err)
	}
	return stored, nil
}

func (s *mediaService) rollback(ctx context.Context, keys ...string) {
	for _, k := range keys {
		if err := s.store.Delete(ctx, k); err != nil {
			s.log.Error("upload rollback failed", zap.String("storage_key", k), zap.Error(err))
		}
	}
}

func (s *mediaService) checkUpload(meta UploadMeta, owner *model.Identity) error {
	if owner == nil || owner.UserID == "" {
		return ErrUnauthenticated
	}
	if err := s.validate.Struct(meta); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

func (s *mediaService) Upload(ctx context.Context, file UploadFile, meta UploadMeta, owner *model.Identity) (*MediaView, error) {
	if err := s.checkUpload(meta, owner); err != nil {
		return nil, err
	}
	p, err := s.process(file)
	if err != nil {
		return nil, err
	}
	item, err := s.persist(ctx, p, meta, owner)
	if err != nil {
		return nil, err
	}
	s.log.Info("media uploaded", zap.String("media_id", item.ID), zap.String("owner_id", owner.UserID), zap.Int64("size", item.Size))
	v := s.view(ctx, item)
	return &v, nil
}

// UploadMany validates every file before storing any of them. If storing
// fails part way, the items already created are soft-deleted again.
func (s *mediaService) UploadMany(ctx context.Context, files []UploadFile, meta UploadMeta, owner *model.Identity) ([]MediaView, error) {
	if err := s.checkUpload(meta, owner); err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, ErrNoFile
	}
	if len(files) > MaxUploadFiles {
		return nil, fmt.Errorf("%w: at most %d files per request", ErrTooManyFiles, MaxUploadFiles)
	}

	batch := make([]*processed, 0, len(files))
	for _, f := range files {
		p, err := s.process(f)
		if err != nil {
			return nil, err
		}
		batch = append(batch, p)
	}

	created := make([]*model.MediaItem, 0, len(batch))
	for _, p := range batch {
		item, err := s.persist(ctx, p, meta, owner)
		if err != nil {
			for _, c := range created {
				if derr := s.repo.SoftDelete(ctx, c.ID); derr != nil {
					s.log.Error("batch rollback failed", zap.String("media_id", c.ID), zap.Error(derr))
				}
				s.rollback(ctx, c.StorageKey, c.ThumbnailKey)
			}
			return nil, err
		}
		created = append(created, item)
	}

	views := make([]MediaView, 0, len(created))
	for _, item := range created {
		views = append(views, s.view(ctx, item))
	}
	s.log.Info("media batch uploaded", zap.String("owner_id", owner.UserID), zap.Int("count", len(views)))
	return views, nil
}
