package export

import "galleryapi/internal/model"

// Permitted returns the items requester may export, in input order. It has
// no side effects; a nil requester is anonymous.
func Permitted(items []model.MediaItem, requester *model.Identity) []model.MediaItem {
	out := make([]model.MediaItem, 0, len(items))
	for _, it := range items {
		if it.VisibleTo(requester) {
			out = append(out, it)
		}
	}
	return out
}
