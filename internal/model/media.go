package model

import (
	"strings"
	"time"
)

// Visibility controls who may see and export a media item.
type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

// Lifecycle is the persistence state of a media item. Items are never
// physically removed; deleting one moves it to LifecycleDeleted.
type Lifecycle string

const (
	LifecycleActive  Lifecycle = "active"
	LifecycleDeleted Lifecycle = "deleted"
)

// Dimensions holds the pixel size of an image.
type Dimensions struct {
	Width  int `json:"width" bson:"width"`
	Height int `json:"height" bson:"height"`
}

// MediaItem is an uploaded image together with its gallery metadata.
// It is shared by the HTTP, service, export and persistence layers; the bson
// tags are used only by the MongoDB repository.
type MediaItem struct {
	ID            string     `json:"id" bson:"_id"`
	Title         string     `json:"title" bson:"title"`
	Description   string     `json:"description" bson:"description"`
	Tags          []string   `json:"tags" bson:"tags"`
	StorageKey    string     `json:"storageKey" bson:"storageKey"`
	ThumbnailKey  string     `json:"thumbnailKey" bson:"thumbnailKey"`
	Size          int64      `json:"size" bson:"size"`
	MimeType      string     `json:"mimeType" bson:"mimeType"`
	Dimensions    Dimensions `json:"dimensions" bson:"dimensions"`
	OwnerID       string     `json:"ownerId" bson:"ownerId"`
	Visibility    Visibility `json:"visibility" bson:"visibility"`
	Lifecycle     Lifecycle  `json:"lifecycle" bson:"lifecycle"`
	ViewCount     int64      `json:"viewCount" bson:"viewCount"`
	DownloadCount int64      `json:"downloadCount" bson:"downloadCount"`
	Likes         []string   `json:"likes" bson:"likes"`
	CreatedAt     time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// LikeCount is derived from the like set and never stored separately.
func (m *MediaItem) LikeCount() int {
	return len(m.Likes)
}

// IsPublic reports whether anyone, including anonymous callers, may see the item.
func (m *MediaItem) IsPublic() bool {
	return m.Visibility == VisibilityPublic
}

// IsActive reports whether the item has not been soft-deleted.
func (m *MediaItem) IsActive() bool {
	return m.Lifecycle == LifecycleActive
}

// OwnedBy reports whether the identity uploaded the item.
func (m *MediaItem) OwnedBy(id *Identity) bool {
	return id != nil && id.UserID != "" && id.UserID == m.OwnerID
}

// VisibleTo reports whether requester may view or export the item: the item
// is public, the requester owns it, or the requester is an administrator.
// A nil requester is anonymous and only sees public items.
func (m *MediaItem) VisibleTo(requester *Identity) bool {
	if m.IsPublic() {
		return true
	}
	return m.OwnedBy(requester) || requester.IsAdmin()
}

// EditableBy reports whether requester may change or delete the item.
func (m *MediaItem) EditableBy(requester *Identity) bool {
	if requester.IsAdmin() {
		return true
	}
	return m.OwnerID != "" && m.OwnedBy(requester)
}

// LikedBy reports whether userID is in the like set.
func (m *MediaItem) LikedBy(userID string) bool {
	for _, l := range m.Likes {
		if l == userID {
			return true
		}
	}
	return false
}

// NormalizeTags lower-cases and trims tags, drops empty ones and removes
// duplicates while keeping the order of first appearance.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SplitTags parses a comma separated tag list as sent by upload forms.
func SplitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	return NormalizeTags(strings.Split(raw, ","))
}
