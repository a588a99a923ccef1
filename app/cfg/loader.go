package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/lysyi3m/amplifier/app/models"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Platform configuration
	PlatformURL     string  `long:"platform-url" env:"PLATFORM_URL" description:"Base URL of the platform API"`
	PlatformToken   string  `long:"platform-token" env:"PLATFORM_TOKEN" description:"Bearer token for the platform API"`
	Handle          string  `long:"handle" env:"AGENT_HANDLE" description:"The agent's own handle, e.g. @amplifier"`
	PlatformTimeout int     `long:"platform-timeout" env:"PLATFORM_TIMEOUT" default:"15" description:"Platform request timeout in seconds"`
	RequestsPerSec  float64 `long:"requests-per-second" env:"REQUESTS_PER_SECOND" default:"2" description:"Client-side platform request rate"`

	// Hourly budgets
	LikesPerHour   int `long:"likes-per-hour" env:"LIKES_PER_HOUR" default:"20" description:"Maximum likes per hour"`
	RepostsPerHour int `long:"reposts-per-hour" env:"REPOSTS_PER_HOUR" default:"5" description:"Maximum reposts and quotes per hour"`
	RepliesPerHour int `long:"replies-per-hour" env:"REPLIES_PER_HOUR" default:"5" description:"Maximum replies per hour"`
	FollowsPerHour int `long:"follows-per-hour" env:"FOLLOWS_PER_HOUR" default:"5" description:"Maximum follows per hour"`
	PostsPerHour   int `long:"posts-per-hour" env:"POSTS_PER_HOUR" default:"1" description:"Maximum original posts per hour"`

	// Task intervals in minutes
	DiscoveryMin    float64 `long:"discovery-min" env:"DISCOVERY_MIN" default:"20" description:"Minimum minutes between discovery scans"`
	DiscoveryMax    float64 `long:"discovery-max" env:"DISCOVERY_MAX" default:"40" description:"Maximum minutes between discovery scans"`
	DiscoveryEvery  float64 `long:"discovery-every" env:"DISCOVERY_EVERY" default:"30" description:"Fixed discovery interval when min/max are unset"`
	EngagementMin   float64 `long:"engagement-min" env:"ENGAGEMENT_MIN" default:"15" description:"Minimum minutes between engagement passes"`
	EngagementMax   float64 `long:"engagement-max" env:"ENGAGEMENT_MAX" default:"30" description:"Maximum minutes between engagement passes"`
	EngagementEvery float64 `long:"engagement-every" env:"ENGAGEMENT_EVERY" default:"20" description:"Fixed engagement interval when min/max are unset"`
	PostingMin      float64 `long:"posting-min" env:"POSTING_MIN" default:"120" description:"Minimum minutes between original posts"`
	PostingMax      float64 `long:"posting-max" env:"POSTING_MAX" default:"240" description:"Maximum minutes between original posts"`
	PostingEvery    float64 `long:"posting-every" env:"POSTING_EVERY" default:"180" description:"Fixed posting interval when min/max are unset"`
	TrendMin        float64 `long:"trend-min" env:"TREND_MIN" default:"30" description:"Minimum minutes between trend scans"`
	TrendMax        float64 `long:"trend-max" env:"TREND_MAX" default:"60" description:"Maximum minutes between trend scans"`
	TrendEvery      float64 `long:"trend-every" env:"TREND_EVERY" default:"45" description:"Fixed trend-scan interval when min/max are unset"`
	MentionMin      float64 `long:"mention-min" env:"MENTION_MIN" default:"5" description:"Minimum minutes between mention scans"`
	MentionMax      float64 `long:"mention-max" env:"MENTION_MAX" default:"10" description:"Maximum minutes between mention scans"`
	MentionEvery    float64 `long:"mention-every" env:"MENTION_EVERY" default:"7" description:"Fixed mention-scan interval when min/max are unset"`
	CompactEvery    float64 `long:"compact-every" env:"COMPACT_EVERY" default:"60" description:"Minutes between ledger compactions"`

	// Discovery
	TopK        int `long:"top-k" env:"TOP_K" default:"5" description:"Default number of candidates kept per scan"`
	HistorySize int `long:"history-size" env:"HISTORY_SIZE" default:"10" description:"Number of discovery snapshots kept in memory"`

	// Ledger
	RetentionHours int `long:"retention-hours" env:"RETENTION_HOURS" default:"48" description:"Hours an engagement record blocks repeats"`
	SoftCap        int `long:"soft-cap" env:"LEDGER_SOFT_CAP" default:"1000" description:"Record count above which compaction evicts expired records"`

	// Mentions
	MentionPageSize int `long:"mention-page-size" env:"MENTION_PAGE_SIZE" default:"20" description:"Notifications per page"`
	MentionPages    int `long:"mention-pages" env:"MENTION_PAGES" default:"3" description:"Notification pages read per scan"`

	// Storage
	DatabasePath string `long:"db-path" env:"DB_PATH" default:"./amplifier.db" description:"SQLite database path"`
	RedisURL     string `long:"redis-url" env:"REDIS_URL" description:"Redis URL; when set the ledger lives in Redis"`

	// Content generation
	GenAIKey   string `long:"genai-key" env:"GEMINI_API_KEY" description:"Gemini API key for the decision oracle and content generator"`
	GenAIModel string `long:"genai-model" env:"GENAI_MODEL" default:"gemini-2.5-flash" description:"Gemini model name"`
	Persona    string `long:"persona" env:"AGENT_PERSONA" description:"Short description of the agent's voice"`

	// Application configuration
	SourcesDir   string `long:"sources-dir" env:"SOURCES_DIR" default:"./sources" description:"Directory containing source configuration files"`
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"Amplifier/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	cfg, err := parse(os.Args[1:])
	if err != nil || cfg == nil {
		return cfg, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		PlatformURL:     raw.PlatformURL,
		PlatformToken:   raw.PlatformToken,
		Handle:          raw.Handle,
		PlatformTimeout: time.Duration(raw.PlatformTimeout) * time.Second,
		RequestsPerSec:  raw.RequestsPerSec,
		Ceilings: map[models.ActionKind]int{
			models.ActionLike:   raw.LikesPerHour,
			models.ActionRepost: raw.RepostsPerHour,
			models.ActionReply:  raw.RepliesPerHour,
			models.ActionFollow: raw.FollowsPerHour,
			models.ActionPost:   raw.PostsPerHour,
		},
		Discovery:       Interval{raw.DiscoveryMin, raw.DiscoveryMax, raw.DiscoveryEvery},
		Engagement:      Interval{raw.EngagementMin, raw.EngagementMax, raw.EngagementEvery},
		Posting:         Interval{raw.PostingMin, raw.PostingMax, raw.PostingEvery},
		TrendScan:       Interval{raw.TrendMin, raw.TrendMax, raw.TrendEvery},
		MentionScan:     Interval{raw.MentionMin, raw.MentionMax, raw.MentionEvery},
		Compaction:      Interval{FallbackMinutes: raw.CompactEvery},
		TopK:            raw.TopK,
		HistorySize:     raw.HistorySize,
		Retention:       time.Duration(raw.RetentionHours) * time.Hour,
		SoftCap:         raw.SoftCap,
		MentionPageSize: raw.MentionPageSize,
		MentionPages:    raw.MentionPages,
		DatabasePath:    raw.DatabasePath,
		RedisURL:        raw.RedisURL,
		GenAIKey:        raw.GenAIKey,
		GenAIModel:      raw.GenAIModel,
		Persona:         raw.Persona,
		SourcesDir:      raw.SourcesDir,
		Port:            raw.Port,
		APIAccessKey:    raw.APIAccessKey,
		UserAgent:       raw.UserAgent,
		Timezone:        raw.Timezone,
		Debug:           raw.Debug,
		Version:         GetVersion(),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Cfg) validate() error {
	for kind, ceiling := range c.Ceilings {
		if ceiling < 0 {
			return fmt.Errorf("invalid %s ceiling %d: must be non-negative", kind, ceiling)
		}
	}
	for name, iv := range map[string]Interval{
		"discovery":  c.Discovery,
		"engagement": c.Engagement,
		"posting":    c.Posting,
		"trend":      c.TrendScan,
		"mention":    c.MentionScan,
	} {
		if iv.MinMinutes < 0 || iv.MaxMinutes < 0 || iv.FallbackMinutes < 0 {
			return fmt.Errorf("invalid %s interval: minutes must be non-negative", name)
		}
		if iv.MinMinutes > 0 && iv.MaxMinutes > 0 && iv.MinMinutes > iv.MaxMinutes {
			return fmt.Errorf("invalid %s interval: min %.1f exceeds max %.1f", name, iv.MinMinutes, iv.MaxMinutes)
		}
	}
	if c.PlatformTimeout <= 0 {
		return fmt.Errorf("invalid platform timeout: must be positive")
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
