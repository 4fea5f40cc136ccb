package catalog

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bixapp/bix/internal/models"
)

var (
	//go:embed seed.json
	seedVideos []byte
	//go:embed profiles.json
	seedProfiles []byte
)

// Seed returns the built-in demo catalog.
func Seed() (*Catalog, error) {
	var records []models.VideoRecord
	if err := json.Unmarshal(seedVideos, &records); err != nil {
		return nil, fmt.Errorf("decode seed catalog: %w", err)
	}
	return New(records), nil
}

// Profiles resolves creator profiles from curated entries, falling back to the
// author details found on the creator's videos.
type Profiles struct {
	curated map[string]models.Profile
}

// SeedProfiles returns the curated demo profiles.
func SeedProfiles() (*Profiles, error) {
	var list []models.Profile
	if err := json.Unmarshal(seedProfiles, &list); err != nil {
		return nil, fmt.Errorf("decode seed profiles: %w", err)
	}
	p := &Profiles{curated: make(map[string]models.Profile, len(list))}
	for _, profile := range list {
		p.curated[strings.ToLower(profile.Username)] = profile
	}
	return p, nil
}

// Lookup builds the profile for handle with its videos from c. It reports
// false when the handle is neither curated nor the author of any video.
func (p *Profiles) Lookup(c *Catalog, handle string) (models.Profile, bool) {
	videos := c.ByAuthor(handle)

	if profile, ok := p.curated[strings.ToLower(handle)]; ok {
		profile.Videos = videos
		return profile, true
	}

	if len(videos) == 0 {
		return models.Profile{}, false
	}

	first := videos[0]
	return models.Profile{
		Username:    first.Username,
		DisplayName: first.Username,
		Avatar:      first.UserImage,
		Videos:      videos,
	}, true
}
