package cfg

import (
	"time"

	"github.com/lysyi3m/amplifier/app/models"
)

// Interval is the jittered delay range for one periodic task, in minutes.
type Interval struct {
	MinMinutes      float64
	MaxMinutes      float64
	FallbackMinutes float64
}

type Cfg struct {
	// Platform
	PlatformURL     string
	PlatformToken   string
	Handle          string
	PlatformTimeout time.Duration
	RequestsPerSec  float64

	// Budgets, actions per hour
	Ceilings map[models.ActionKind]int

	// Scheduling
	Discovery   Interval
	Engagement  Interval
	Posting     Interval
	TrendScan   Interval
	MentionScan Interval
	Compaction  Interval

	// Discovery
	TopK        int
	HistorySize int

	// Ledger
	Retention time.Duration
	SoftCap   int

	// Mentions
	MentionPageSize int
	MentionPages    int

	// Storage
	DatabasePath string
	RedisURL     string

	// Content generation
	GenAIKey   string
	GenAIModel string
	Persona    string

	// Application configuration
	SourcesDir   string
	Port         string
	APIAccessKey string

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

// CanAct reports whether platform writes are configured.
func (c *Cfg) CanAct() bool {
	return c.PlatformURL != "" && c.PlatformToken != ""
}

// CanGenerate reports whether the oracle and content generator are configured.
func (c *Cfg) CanGenerate() bool {
	return c.GenAIKey != ""
}
