package catalog

import "github.com/bixapp/bix/internal/models"

// Bucket is a named index range over a record list. Ranges are half-open and
// may overlap.
type Bucket struct {
	Label string
	Start int
	End   int
}

// Category is a bucket filled from a concrete record list.
type Category struct {
	Label  string               `json:"name"`
	Videos []models.VideoRecord `json:"videos"`
}

// Buckets lists the discovery sections in display order. They slice by
// position only; no bucket looks at a record's content.
var Buckets = []Bucket{
	{Label: "For You", Start: 0, End: 4},
	{Label: "Trending", Start: 4, End: 8},
	{Label: "Comedy", Start: 2, End: 6},
	{Label: "Music", Start: 1, End: 5},
}

// Categorize slices records into Buckets. Ranges past the end are clamped, so
// short or empty inputs give short or empty buckets. Records are not
// deduplicated across buckets.
func Categorize(records []models.VideoRecord) []Category {
	out := make([]Category, 0, len(Buckets))
	for _, b := range Buckets {
		out = append(out, Category{Label: b.Label, Videos: window(records, b.Start, b.End)})
	}
	return out
}

func window(records []models.VideoRecord, start, end int) []models.VideoRecord {
	if start > len(records) {
		start = len(records)
	}
	if end > len(records) {
		end = len(records)
	}
	out := make([]models.VideoRecord, end-start)
	copy(out, records[start:end])
	return out
}
