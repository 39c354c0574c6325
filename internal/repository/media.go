package repository

import (
	"context"

	"galleryapi/internal/model"
)

// MediaRepository defines data access for media items. Implementations contain
// no business logic; soft-deleted items are invisible to every read.
type MediaRepository interface {
	// Create inserts a new media item and returns the stored record.
	Create(ctx context.Context, item *model.MediaItem) (*model.MediaItem, error)

	// FindByID returns an active media item or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.MediaItem, error)

	// FindActiveByIDs returns the active items whose ID is in ids.
	// Result order is unspecified and unknown IDs are ignored.
	FindActiveByIDs(ctx context.Context, ids []string) ([]model.MediaItem, error)

	// List returns a page of active items matching the filter and the total match count.
	List(ctx context.Context, f MediaFilter, pq PageQuery) (*PageResult[model.MediaItem], error)

	// Update persists title, description, tags, visibility and UpdatedAt.
	Update(ctx context.Context, item *model.MediaItem) error

	// SoftDelete moves an item to the deleted lifecycle state.
	SoftDelete(ctx context.Context, id string) error

	// IncrementDownloadCount atomically adds one to the download counter.
	IncrementDownloadCount(ctx context.Context, id string) error

	// IncrementViewCount atomically adds one to the view counter.
	IncrementViewCount(ctx context.Context, id string) error

	// ToggleLike adds userID to the like set, or removes it if present, and
	// returns the updated item.
	ToggleLike(ctx context.Context, id, userID string) (*model.MediaItem, error)
}

// SortField names a column/field media listings can be ordered by.
type SortField string

const (
	SortCreatedAt     SortField = "createdAt"
	SortViewCount     SortField = "viewCount"
	SortDownloadCount SortField = "downloadCount"
	SortTitle         SortField = "title"
)

// ParseSortField returns the matching SortField, or SortCreatedAt for unknown input.
func ParseSortField(s string) SortField {
	switch SortField(s) {
	case SortViewCount, SortDownloadCount, SortTitle:
		return SortField(s)
	default:
		return SortCreatedAt
	}
}

// MediaFilter narrows a media listing.
type MediaFilter struct {
	// Search matches title, description or any tag, case-insensitively.
	Search string
	// Tags matches items carrying any of the tags.
	Tags []string
	// OwnerID restricts to a single uploader.
	OwnerID string
	// PublicOnly hides private items.
	PublicOnly bool
	SortBy     SortField
	SortDesc   bool
}

// PageQuery holds limit/offset pagination parameters.
type PageQuery struct {
	Limit  int
	Offset int
}

// PageResult is a generic pagination result wrapper.
// T is typically a model type.
type PageResult[T any] struct {
	Items []T
	Total int
}
