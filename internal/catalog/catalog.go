// Package catalog derives the feed, search and discovery views from an
// ordered, read-only list of video records. Every operation is pure: the same
// catalog always yields the same result, and nothing here mutates a record.
package catalog

import (
	"strings"

	"github.com/bixapp/bix/internal/models"
)

// Catalog is an immutable, ordered collection of video records.
type Catalog struct {
	videos []models.VideoRecord
}

// New builds a catalog from records, preserving their order.
func New(records []models.VideoRecord) *Catalog {
	videos := make([]models.VideoRecord, len(records))
	copy(videos, records)
	return &Catalog{videos: videos}
}

// With returns a new catalog with extra appended after the existing records.
func (c *Catalog) With(extra ...models.VideoRecord) *Catalog {
	videos := make([]models.VideoRecord, 0, len(c.videos)+len(extra))
	videos = append(videos, c.videos...)
	videos = append(videos, extra...)
	return &Catalog{videos: videos}
}

// Len reports how many records the catalog holds.
func (c *Catalog) Len() int {
	return len(c.videos)
}

// All returns every record in source order.
func (c *Catalog) All() []models.VideoRecord {
	out := make([]models.VideoRecord, len(c.videos))
	copy(out, c.videos)
	return out
}

// Get looks up a record by id.
func (c *Catalog) Get(id string) (models.VideoRecord, bool) {
	for _, v := range c.videos {
		if v.ID == id {
			return v, true
		}
	}
	return models.VideoRecord{}, false
}

// Search returns records whose caption, author handle or any tag contains
// query, ignoring case. An empty query matches everything. Order follows the
// catalog; results are never re-ranked.
func (c *Catalog) Search(query string) []models.VideoRecord {
	if query == "" {
		return c.All()
	}

	needle := strings.ToLower(query)
	out := make([]models.VideoRecord, 0)
	for _, v := range c.videos {
		if matches(v, needle) {
			out = append(out, v)
		}
	}
	return out
}

func matches(v models.VideoRecord, needle string) bool {
	if strings.Contains(strings.ToLower(v.Caption), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(v.Username), needle) {
		return true
	}
	for _, tag := range v.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

// Discover buckets the search results for query, which is what the discovery
// screen shows.
func (c *Catalog) Discover(query string) []Category {
	return Categorize(c.Search(query))
}

// Page returns up to limit records starting at offset. Out-of-range windows
// yield an empty page.
func (c *Catalog) Page(offset, limit int) []models.VideoRecord {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || offset >= len(c.videos) {
		return []models.VideoRecord{}
	}
	end := offset + limit
	if end > len(c.videos) {
		end = len(c.videos)
	}
	out := make([]models.VideoRecord, end-offset)
	copy(out, c.videos[offset:end])
	return out
}

// ByAuthor returns the records posted by handle, in catalog order.
func (c *Catalog) ByAuthor(handle string) []models.VideoRecord {
	out := make([]models.VideoRecord, 0)
	for _, v := range c.videos {
		if strings.EqualFold(v.Username, handle) {
			out = append(out, v)
		}
	}
	return out
}

// NextIndex advances the vertical feed, wrapping to the first video after the last.
func NextIndex(current, total int) int {
	if total <= 0 {
		return 0
	}
	if current < 0 || current >= total-1 {
		return 0
	}
	return current + 1
}
