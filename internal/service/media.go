package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"galleryapi/internal/export"
	"galleryapi/internal/model"
	"galleryapi/internal/repository"
	"galleryapi/internal/storage"
)

var (
	ErrIDRequired      = errors.New("id is required")
	ErrNotFound        = errors.New("media not found")
	ErrForbidden       = errors.New("access denied")
	ErrUnauthenticated = errors.New("authentication required")
	ErrFileMissing     = errors.New("file not found on server")
	ErrNoFile          = errors.New("no image file provided")
	ErrTooManyFiles    = errors.New("too many files")
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("only JPEG, PNG and WebP images are allowed")
	ErrInvalidInput    = errors.New("invalid input")
)

const (
	defaultPageSize  = 12
	defaultTopSize   = 10
	maxPageSize      = 100
	presignExpiry    = time.Hour
	MaxUploadFiles   = 10
	ThumbnailWidth   = 320
	mediaPrefix      = "media/"
	thumbnailsPrefix = "thumbnails/"
)

// MediaView is a media item as returned to clients, with resolved URLs.
type MediaView struct {
	model.MediaItem
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl"`
	LikeCount    int    `json:"likeCount"`
}

// Pagination describes a page of a listing.
type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalItems   int `json:"totalItems"`
	ItemsPerPage int `json:"itemsPerPage"`
}

// MediaListResult is the service-level DTO for paginated media.
type MediaListResult struct {
	Items      []MediaView `json:"media"`
	Pagination Pagination  `json:"pagination"`
}

// ListQuery carries gallery listing parameters as received from clients.
type ListQuery struct {
	Page      int
	Limit     int
	Search    string
	Tags      []string
	OwnerID   string
	SortBy    string
	SortOrder string
}

// UpdateInput holds editable fields. Nil fields are left unchanged.
type UpdateInput struct {
	Title       *string           `validate:"omitempty,max=100"`
	Description *string           `validate:"omitempty,max=500"`
	Tags        []string          `validate:"omitempty,max=30,dive,max=20"`
	Visibility  *model.Visibility `validate:"omitempty,oneof=public private"`
}

// Download is an opened media file. The caller closes Body.
type Download struct {
	Item     *model.MediaItem
	Body     io.ReadCloser
	Filename string
	Size     int64
}

// MediaService defines the gallery use cases.
type MediaService interface {
	// Upload stores one image with its thumbnail and records its metadata.
	Upload(ctx context.Context, file UploadFile, meta UploadMeta, owner *model.Identity) (*MediaView, error)
	// UploadMany stores up to MaxUploadFiles images sharing the same metadata.
	UploadMany(ctx context.Context, files []UploadFile, meta UploadMeta, owner *model.Identity) ([]MediaView, error)

	List(ctx context.Context, q ListQuery, requester *model.Identity) (*MediaListResult, error)
	Popular(ctx context.Context, limit int) ([]MediaView, error)
	Recent(ctx context.Context, limit int) ([]MediaView, error)
	ListByUser(ctx context.Context, userID string, page, limit int, requester *model.Identity) (*MediaListResult, error)

	// Get returns a visible item and counts a view.
	Get(ctx context.Context, id string, requester *model.Identity) (*MediaView, error)
	Update(ctx context.Context, id string, in UpdateInput, requester *model.Identity) (*MediaView, error)
	// Delete soft-deletes the item and removes its files on a best-effort basis.
	Delete(ctx context.Context, id string, requester *model.Identity) error
	ToggleLike(ctx context.Context, id string, requester *model.Identity) (*MediaView, error)
	// Download opens the original file and counts a download.
	Download(ctx context.Context, id string, requester *model.Identity) (*Download, error)
}

type mediaService struct {
	store          storage.Storage
	repo           repository.MediaRepository
	log            *zap.Logger
	validate       *validator.Validate
	uploadMaxBytes int64
	now            func() time.Time
}

// NewMediaService constructs a MediaService.
func NewMediaService(store storage.Storage, repo repository.MediaRepository, log *zap.Logger, uploadMaxBytes int64) MediaService {
	return &mediaService{
		store:          store,
		repo:           repo,
		log:            log.Named("media"),
		validate:       validator.New(),
		uploadMaxBytes: uploadMaxBytes,
		now:            time.Now,
	}
}

func (s *mediaService) view(ctx context.Context, m *model.MediaItem) MediaView {
	v := MediaView{MediaItem: *m, LikeCount: m.LikeCount()}
	if u, err := s.store.PresignGet(ctx, m.StorageKey, presignExpiry); err == nil {
		v.URL = u
	} else {
		s.log.Warn("presign failed", zap.String("media_id", m.ID), zap.Error(err))
	}
	thumb := m.ThumbnailKey
	if thumb == "" {
		thumb = m.StorageKey
	}
	if u, err := s.store.PresignGet(ctx, thumb, presignExpiry); err == nil {
		v.ThumbnailURL = u
	}
	return v
}

func (s *mediaService) views(ctx context.Context, items []model.MediaItem) []MediaView {
	out := make([]MediaView, 0, len(items))
	for i := range items {
		out = append(out, s.view(ctx, &items[i]))
	}
	return out
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}

func (s *mediaService) page(ctx context.Context, f repository.MediaFilter, page, limit int) (*MediaListResult, error) {
	limit = clampLimit(limit, defaultPageSize)
	if page < 1 {
		page = 1
	}
	res, err := s.repo.List(ctx, f, repository.PageQuery{Limit: limit, Offset: (page - 1) * limit})
	if err != nil {
		return nil, err
	}
	return &MediaListResult{
		Items: s.views(ctx, res.Items),
		Pagination: Pagination{
			CurrentPage:  page,
			TotalPages:   int(math.Ceil(float64(res.Total) / float64(limit))),
			TotalItems:   res.Total,
			ItemsPerPage: limit,
		},
	}, nil
}

// List hides private items from everyone but administrators.
func (s *mediaService) List(ctx context.Context, q ListQuery, requester *model.Identity) (*MediaListResult, error) {
	f := repository.MediaFilter{
		Search:     strings.TrimSpace(q.Search),
		Tags:       model.NormalizeTags(q.Tags),
		OwnerID:    q.OwnerID,
		PublicOnly: !requester.IsAdmin(),
		SortBy:     repository.ParseSortField(q.SortBy),
		SortDesc:   !strings.EqualFold(q.SortOrder, "asc"),
	}
	return s.page(ctx, f, q.Page, q.Limit)
}

func (s *mediaService) top(ctx context.Context, sortBy repository.SortField, limit int) ([]MediaView, error) {
	f := repository.MediaFilter{PublicOnly: true, SortBy: sortBy, SortDesc: true}
	res, err := s.repo.List(ctx, f, repository.PageQuery{Limit: clampLimit(limit, defaultTopSize)})
	if err != nil {
		return nil, err
	}
	return s.views(ctx, res.Items), nil
}

func (s *mediaService) Popular(ctx context.Context, limit int) ([]MediaView, error) {
	return s.top(ctx, repository.SortViewCount, limit)
}

func (s *mediaService) Recent(ctx context.Context, limit int) ([]MediaView, error) {
	return s.top(ctx, repository.SortCreatedAt, limit)
}

// ListByUser shows private items only to their owner and administrators.
func (s *mediaService) ListByUser(ctx context.Context, userID string, page, limit int, requester *model.Identity) (*MediaListResult, error) {
	if userID == "" {
		return nil, ErrIDRequired
	}
	self := requester != nil && requester.UserID == userID
	f := repository.MediaFilter{
		OwnerID:    userID,
		PublicOnly: !self && !requester.IsAdmin(),
		SortBy:     repository.SortCreatedAt,
		SortDesc:   true,
	}
	return s.page(ctx, f, page, limit)
}

func (s *mediaService) find(ctx context.Context, id string) (*model.MediaItem, error) {
	if id == "" {
		return nil, ErrIDRequired
	}
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (s *mediaService) Get(ctx context.Context, id string, requester *model.Identity) (*MediaView, error) {
	m, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.VisibleTo(requester) {
		return nil, ErrForbidden
	}
	if err := s.repo.IncrementViewCount(ctx, id); err != nil {
		s.log.Warn("view count increment failed", zap.String("media_id", id), zap.Error(err))
	} else {
		m.ViewCount++
	}
	v := s.view(ctx, m)
	return &v, nil
}

// Update applies owner or admin edits. Visibility changes are only honoured
// for administrators.
func (s *mediaService) Update(ctx context.Context, id string, in UpdateInput, requester *model.Identity) (*MediaView, error) {
	if requester == nil {
		return nil, ErrUnauthenticated
	}
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	m, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.EditableBy(requester) {
		return nil, ErrForbidden
	}

	if in.Title != nil {
		m.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		m.Description = strings.TrimSpace(*in.Description)
	}
	if in.Tags != nil {
		m.Tags = model.NormalizeTags(in.Tags)
	}
	if in.Visibility != nil && requester.IsAdmin() {
		m.Visibility = *in.Visibility
	}
	m.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, m); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	v := s.view(ctx, m)
	return &v, nil
}

func (s *mediaService) Delete(ctx context.Context, id string, requester *model.Identity) error {
	if requester == nil {
		return ErrUnauthenticated
	}
	m, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !m.EditableBy(requester) {
		return ErrForbidden
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	for _, key := range []string{m.StorageKey, m.ThumbnailKey} {
		if key == "" {
			continue
		}
		if err := s.store.Delete(ctx, key); err != nil {
			s.log.Warn("file removal failed after delete", zap.String("media_id", id), zap.String("storage_key", key), zap.Error(err))
		}
	}
	return nil
}

func (s *mediaService) ToggleLike(ctx context.Context, id string, requester *model.Identity) (*MediaView, error) {
	if requester == nil {
		return nil, ErrUnauthenticated
	}
	if id == "" {
		return nil, ErrIDRequired
	}
	m, err := s.repo.ToggleLike(ctx, id, requester.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	v := s.view(ctx, m)
	return &v, nil
}

func (s *mediaService) Download(ctx context.Context, id string, requester *model.Identity) (*Download, error) {
	m, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !m.VisibleTo(requester) {
		return nil, ErrForbidden
	}
	body, info, err := s.store.Get(ctx, m.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrFileMissing
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	if err := s.repo.IncrementDownloadCount(ctx, id); err != nil {
		s.log.Warn("download count increment failed", zap.String("media_id", id), zap.Error(err))
	}
	name := export.SanitizeTitle(m.Title)
	if name == "" {
		name = "image"
	}
	return &Download{
		Item:     m,
		Body:     body,
		Filename: name + extensionFor(m.MimeType),
		Size:     info.Size,
	}, nil
}
