package sources

import (
	"time"
)

const (
	TypePlatform = "platform"
	TypeRSS      = "rss"
)

const DefaultTopK = 5

const (
	TaskDiscovery = "discovery"
	TaskTrend     = "trend"
	TaskHeadlines = "headlines"
)

// Config is one source file. Name is derived from the filename.
type Config struct {
	Name     string   `yaml:"-"`
	Type     string   `yaml:"type"`
	Feed     string   `yaml:"feed"`
	URL      string   `yaml:"url"`
	Task     string   `yaml:"task"`
	Settings Settings `yaml:"settings"`
	Allow    []string `yaml:"allow"`
	Filters  []Filter `yaml:"filters"`
}

type Settings struct {
	Enabled       bool `yaml:"enabled"`
	PageSize      int  `yaml:"page_size"`
	MaxItems      int  `yaml:"max_items"`
	TopK          int  `yaml:"top_k"`
	MinFollowers  int  `yaml:"min_followers"`
	MinEngagement int  `yaml:"min_engagement"`
	TimeWindow    int  `yaml:"time_window"` // hours
	Timeout       int  `yaml:"timeout"`     // seconds
}

type Filter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
}

func (c *Config) TimeWindow() time.Duration {
	return time.Duration(c.Settings.TimeWindow) * time.Hour
}

func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Settings.Timeout) * time.Second
}
