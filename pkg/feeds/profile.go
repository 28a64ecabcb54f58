package feeds

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml"
	"go.aavaz.network/pulse/pkg/types"
)

// Profile holds the generation parameters of one feed type.
type Profile struct {
	Type types.FeedType

	CandidateLimit int           // posts pre-selected by popularity
	PageSize       int           // entries per materialized page
	TTL            time.Duration // materialized feed time-to-live
	RadiusMeters   float64       // locality only
}

// Config holds the feed profiles of a deployment.
type Config struct {
	Feeds []*Profile
}

var defaultProfiles = map[types.FeedType]Profile{
	types.FeedMain: {
		Type:           types.FeedMain,
		CandidateLimit: 2000,
		PageSize:       400,
		TTL:            15 * time.Minute,
	},
	types.FeedLocality: {
		Type:           types.FeedLocality,
		CandidateLimit: 1000,
		PageSize:       400,
		TTL:            15 * time.Minute,
		RadiusMeters:   15000,
	},
	types.FeedAchievements: {
		Type:           types.FeedAchievements,
		CandidateLimit: 1000,
		PageSize:       400,
		TTL:            15 * time.Minute,
	},
}

// Init fills in defaults for unset profile fields.
func (p *Profile) Init() {
	def, ok := defaultProfiles[p.Type]
	if !ok {
		return
	}
	if p.CandidateLimit == 0 {
		p.CandidateLimit = def.CandidateLimit
	}
	if p.PageSize == 0 {
		p.PageSize = def.PageSize
	}
	if p.TTL == 0 {
		p.TTL = def.TTL
	}
	if p.RadiusMeters == 0 {
		p.RadiusMeters = def.RadiusMeters
	}
}

// DefaultConfig returns the built-in feed profiles.
func DefaultConfig() *Config {
	config := &Config{}
	for _, feedType := range []types.FeedType{types.FeedMain, types.FeedLocality, types.FeedAchievements} {
		profile := defaultProfiles[feedType]
		config.Feeds = append(config.Feeds, &profile)
	}
	return config
}

// ReadConfig decodes feed profiles from a TOML file and applies defaults.
func ReadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	config := new(Config)
	dec := toml.NewDecoder(f)
	if err := dec.Decode(config); err != nil {
		return nil, fmt.Errorf("invalid feeds config %s: %w", path, err)
	}
	for _, profile := range config.Feeds {
		profile.Init()
	}
	return config, nil
}

// Profile finds the profile of a feed type.
// Returns nil if the deployment does not serve the feed type.
func (c *Config) Profile(feedType types.FeedType) *Profile {
	for _, profile := range c.Feeds {
		if profile.Type == feedType {
			return profile
		}
	}
	return nil
}
