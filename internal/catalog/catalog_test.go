package catalog

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bixapp/bix/internal/models"
)

func numbered(n int) []models.VideoRecord {
	records := make([]models.VideoRecord, n)
	for i := range records {
		records[i] = models.VideoRecord{
			ID:       fmt.Sprintf("v%d", i),
			Username: fmt.Sprintf("user_%d", i),
			Caption:  fmt.Sprintf("caption %d", i),
		}
	}
	return records
}

func ids(records []models.VideoRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestSearchEmptyQueryReturnsEverythingInOrder(t *testing.T) {
	c, err := Seed()
	require.NoError(t, err)
	require.Equal(t, 10, c.Len())

	assert.Equal(t, ids(c.All()), ids(c.Search("")))
}

func TestSearchNoMatch(t *testing.T) {
	c, err := Seed()
	require.NoError(t, err)

	got := c.Search("xyz-no-match")
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSearchMatchesFields(t *testing.T) {
	c := New([]models.VideoRecord{
		{ID: "a", Username: "travel_addict", Caption: "Sunset", Tags: []string{"bali"}},
		{ID: "b", Username: "cook", Caption: "Pasta night", Tags: []string{"food"}},
		{ID: "c", Username: "walker", Caption: "Hills", Tags: []string{"travel"}},
	})

	assert.Equal(t, []string{"a", "c"}, ids(c.Search("TRAVEL")), "handle and tag match, case-insensitive")
	assert.Equal(t, []string{"b"}, ids(c.Search("pasta")), "caption match")
	assert.Equal(t, []string{"a"}, ids(c.Search("BaL")), "substring of tag")
}

func TestCategorizeFixedSlices(t *testing.T) {
	records := numbered(10)

	got := Categorize(records)
	require.Len(t, got, 4)

	assert.Equal(t, "For You", got[0].Label)
	assert.Equal(t, []string{"v0", "v1", "v2", "v3"}, ids(got[0].Videos))
	assert.Equal(t, "Trending", got[1].Label)
	assert.Equal(t, []string{"v4", "v5", "v6", "v7"}, ids(got[1].Videos))
	assert.Equal(t, "Comedy", got[2].Label)
	assert.Equal(t, []string{"v2", "v3", "v4", "v5"}, ids(got[2].Videos))
	assert.Equal(t, "Music", got[3].Label)
	assert.Equal(t, []string{"v1", "v2", "v3", "v4"}, ids(got[3].Videos))
}

func TestCategorizeDeterministic(t *testing.T) {
	records := numbered(10)
	assert.Equal(t, Categorize(records), Categorize(records))
}

func TestCategorizeShortAndEmpty(t *testing.T) {
	short := Categorize(numbered(3))
	assert.Equal(t, []string{"v0", "v1", "v2"}, ids(short[0].Videos))
	assert.Empty(t, short[1].Videos)
	assert.Equal(t, []string{"v2"}, ids(short[2].Videos))
	assert.Equal(t, []string{"v1", "v2"}, ids(short[3].Videos))

	for _, category := range Categorize(nil) {
		assert.NotNil(t, category.Videos)
		assert.Empty(t, category.Videos)
	}
}

func TestDiscoverBucketsFilteredResults(t *testing.T) {
	c := New(append(numbered(6), models.VideoRecord{ID: "tagged", Tags: []string{"comedy"}}))

	got := c.Discover("comedy")
	assert.Equal(t, []string{"tagged"}, ids(got[0].Videos))
	assert.Empty(t, got[1].Videos)
}

func TestPage(t *testing.T) {
	c := New(numbered(5))

	assert.Equal(t, []string{"v0", "v1"}, ids(c.Page(0, 2)))
	assert.Equal(t, []string{"v4"}, ids(c.Page(4, 2)))
	assert.Empty(t, c.Page(5, 2))
	assert.Empty(t, c.Page(0, 0))
	assert.Equal(t, []string{"v0"}, ids(c.Page(-3, 1)))
}

func TestNextIndexWraps(t *testing.T) {
	assert.Equal(t, 1, NextIndex(0, 3))
	assert.Equal(t, 0, NextIndex(2, 3))
	assert.Equal(t, 0, NextIndex(0, 0))
	assert.Equal(t, 0, NextIndex(7, 3))
}

func TestGetAndByAuthor(t *testing.T) {
	c, err := Seed()
	require.NoError(t, err)

	v, ok := c.Get("2")
	require.True(t, ok)
	assert.Equal(t, "travel_addict", v.Username)

	_, ok = c.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"6"}, ids(c.ByAuthor("Comedy_King")))
}

func TestWithDoesNotReorderOrMutate(t *testing.T) {
	base := New(numbered(2))
	extended := base.With(models.VideoRecord{ID: "upload"})

	assert.Equal(t, []string{"v0", "v1"}, ids(base.All()))
	assert.Equal(t, []string{"v0", "v1", "upload"}, ids(extended.All()))
}

func TestProfilesLookup(t *testing.T) {
	c, err := Seed()
	require.NoError(t, err)
	profiles, err := SeedProfiles()
	require.NoError(t, err)

	curated, ok := profiles.Lookup(c, "dance_star")
	require.True(t, ok)
	assert.True(t, curated.Verified)
	assert.Equal(t, []string{"1"}, ids(curated.Videos))

	derived, ok := profiles.Lookup(c, "tech_geek")
	require.True(t, ok)
	assert.Equal(t, "tech_geek", derived.DisplayName)
	assert.Equal(t, "https://randomuser.me/api/portraits/men/29.jpg", derived.Avatar)

	_, ok = profiles.Lookup(c, "nobody")
	assert.False(t, ok)
}

type uploadListerStub struct {
	videos []models.VideoRecord
	err    error
}

func (s uploadListerStub) List(_ context.Context, limit int) ([]models.VideoRecord, error) {
	if limit > 0 && len(s.videos) > limit {
		return s.videos[len(s.videos)-limit:], s.err
	}
	return s.videos, s.err
}

func TestLibrarySnapshot(t *testing.T) {
	seed := New(numbered(2))

	lib := NewLibrary(seed, uploadListerStub{videos: []models.VideoRecord{{ID: "u1"}}}, 0)
	snap, err := lib.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"v0", "v1", "u1"}, ids(snap.All()))

	uploads := []models.VideoRecord{{ID: "u1"}, {ID: "u2"}, {ID: "u3"}}
	lib = NewLibrary(seed, uploadListerStub{videos: uploads}, 2)
	snap, err = lib.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"v0", "v1", "u2", "u3"}, ids(snap.All()))

	lib = NewLibrary(seed, uploadListerStub{err: errors.New("db down")}, 0)
	_, err = lib.Snapshot(context.Background())
	assert.Error(t, err)

	lib = NewLibrary(seed, nil, 0)
	snap, err = lib.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())
}
