package export

import (
	"regexp"
	"strings"

	"galleryapi/internal/model"
)

// EntryExt is appended to every archive entry name.
const EntryExt = ".jpg"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9]`)

// Entry is one media item mapped to its name inside the archive.
type Entry struct {
	Item model.MediaItem
	Name string
}

// SanitizeTitle replaces every character outside [A-Za-z0-9] with '_'.
func SanitizeTitle(title string) string {
	return unsafeChars.ReplaceAllString(title, "_")
}

// AssignNames derives a unique entry name for each item. The first item with
// a given name keeps it; later ones get the item id appended. Names are
// compared case-insensitively so extraction on such filesystems keeps every
// entry. Input order is kept.
func AssignNames(items []model.MediaItem) []Entry {
	entries := make([]Entry, 0, len(items))
	used := make(map[string]struct{}, len(items))
	for _, it := range items {
		base := SanitizeTitle(it.Title)
		if base == "" {
			base = "media"
		}
		name := base + EntryExt
		if _, dup := used[strings.ToLower(name)]; dup {
			name = base + "_" + it.ID + EntryExt
		}
		used[strings.ToLower(name)] = struct{}{}
		entries = append(entries, Entry{Item: it, Name: name})
	}
	return entries
}
