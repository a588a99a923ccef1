package sources

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeSource(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name+".yml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestSourceCacheLoadValidConfig(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "trending", `
type: platform
feed: "trending"
task: discovery

settings:
  enabled: true
  page_size: 50
  max_items: 200
  top_k: 3
  min_followers: 500
  time_window: 12
  timeout: 10

allow:
  - alice
  - bob

filters:
  - field: "text"
    excludes:
      - "giveaway"
`)

	sourceCache := NewSourceCache(tempDir)
	if err := sourceCache.Run(); err != nil {
		t.Fatal(err)
	}

	if sourceCache.GetConfigCount() != 1 {
		t.Errorf("Expected 1 source, got %d", sourceCache.GetConfigCount())
	}

	config, err := sourceCache.GetConfig("trending")
	if err != nil {
		t.Fatal(err)
	}

	if config.Name != "trending" {
		t.Errorf("Expected name 'trending', got '%s'", config.Name)
	}
	if config.Feed != "trending" {
		t.Errorf("Expected feed 'trending', got '%s'", config.Feed)
	}
	if config.Settings.PageSize != 50 || config.Settings.MaxItems != 200 || config.Settings.TopK != 3 {
		t.Errorf("Unexpected settings: %+v", config.Settings)
	}
	if config.Settings.MinFollowers != 500 {
		t.Errorf("Expected min followers 500, got %d", config.Settings.MinFollowers)
	}
	if config.TimeWindow() != 12*time.Hour {
		t.Errorf("Expected time window 12h, got %v", config.TimeWindow())
	}
	if config.Timeout() != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %v", config.Timeout())
	}
	if len(config.Allow) != 2 {
		t.Errorf("Expected 2 allowed authors, got %d", len(config.Allow))
	}
	if len(config.Filters) != 1 {
		t.Errorf("Expected 1 filter, got %d", len(config.Filters))
	}
}

func TestSourceCacheDefaults(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "home", `
feed: "home"
settings:
  enabled: true
`)
	writeSource(t, tempDir, "news", `
type: rss
url: "https://example.com/rss"
settings:
  enabled: true
`)

	sourceCache := NewSourceCache(tempDir)
	if err := sourceCache.Run(); err != nil {
		t.Fatal(err)
	}

	home, _ := sourceCache.GetConfig("home")
	if home.Type != TypePlatform || home.Task != TaskDiscovery {
		t.Errorf("Expected platform/discovery defaults, got %s/%s", home.Type, home.Task)
	}
	if home.Settings.PageSize != 20 || home.Settings.MaxItems != 100 || home.Settings.TopK != 5 {
		t.Errorf("Unexpected default settings: %+v", home.Settings)
	}
	if home.Settings.MinEngagement != 3 || home.Settings.TimeWindow != 24 || home.Settings.Timeout != 30 {
		t.Errorf("Unexpected default settings: %+v", home.Settings)
	}

	news, _ := sourceCache.GetConfig("news")
	if news.Task != TaskHeadlines {
		t.Errorf("Expected rss sources to default to headlines, got %s", news.Task)
	}
}

func TestSourceCacheInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing feed", "type: platform\n"},
		{"missing url", "type: rss\n"},
		{"unknown type", "type: mastodon\nfeed: x\n"},
		{"rss with discovery task", "type: rss\nurl: https://example.com\ntask: discovery\n"},
		{"platform with headlines task", "feed: x\ntask: headlines\n"},
		{"negative top k", "feed: x\nsettings:\n  top_k: -1\n"},
		{"negative followers", "feed: x\nsettings:\n  min_followers: -5\n"},
		{"bad filter field", "feed: x\nfilters:\n  - field: title\n    includes: [go]\n"},
		{"empty filter", "feed: x\nfilters:\n  - field: text\n"},
		{"broken yaml", "feed: [x\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tempDir := t.TempDir()
			writeSource(t, tempDir, "bad", tt.content)

			if err := NewSourceCache(tempDir).Run(); err == nil {
				t.Errorf("Expected error for %s", tt.name)
			}
		})
	}
}

func TestSourceCacheMissingDirectory(t *testing.T) {
	sourceCache := NewSourceCache(filepath.Join(t.TempDir(), "missing"))
	if err := sourceCache.Run(); err != nil {
		t.Errorf("Expected no error for missing directory, got %v", err)
	}
	if sourceCache.GetConfigCount() != 0 {
		t.Errorf("Expected 0 sources, got %d", sourceCache.GetConfigCount())
	}
}

func TestSourceCacheGetEnabledConfigs(t *testing.T) {
	tempDir := t.TempDir()

	writeSource(t, tempDir, "b-discovery", "feed: b\nsettings:\n  enabled: true\n")
	writeSource(t, tempDir, "a-discovery", "feed: a\nsettings:\n  enabled: true\n")
	writeSource(t, tempDir, "disabled", "feed: c\nsettings:\n  enabled: false\n")
	writeSource(t, tempDir, "trend", "feed: d\ntask: trend\nsettings:\n  enabled: true\n")

	sourceCache := NewSourceCache(tempDir)
	if err := sourceCache.Run(); err != nil {
		t.Fatal(err)
	}

	configs := sourceCache.GetEnabledConfigs(TaskDiscovery)
	if len(configs) != 2 {
		t.Fatalf("Expected 2 enabled discovery sources, got %d", len(configs))
	}
	if configs[0].Name != "a-discovery" || configs[1].Name != "b-discovery" {
		t.Errorf("Expected sources sorted by name, got %s, %s", configs[0].Name, configs[1].Name)
	}

	if got := len(sourceCache.GetEnabledConfigs(TaskTrend)); got != 1 {
		t.Errorf("Expected 1 trend source, got %d", got)
	}

	all := sourceCache.GetConfigs()
	if len(all) != 4 {
		t.Fatalf("Expected 4 sources, got %d", len(all))
	}
	if all[0].Name != "a-discovery" || all[3].Name != "trend" {
		t.Errorf("Expected all sources sorted by name, got %s ... %s", all[0].Name, all[3].Name)
	}
}

func TestSourceCacheGetConfigNotFound(t *testing.T) {
	if _, err := NewSourceCache(t.TempDir()).GetConfig("nope"); err == nil {
		t.Errorf("Expected error for unknown source")
	}
}

func TestSourceCacheDefaultTopK(t *testing.T) {
	tempDir := t.TempDir()
	writeSource(t, tempDir, "home", "feed: home\n")
	writeSource(t, tempDir, "pinned", "feed: pinned\nsettings:\n  top_k: 2\n")

	sourceCache := NewSourceCache(tempDir).WithDefaultTopK(8)
	if err := sourceCache.Run(); err != nil {
		t.Fatal(err)
	}

	home, _ := sourceCache.GetConfig("home")
	if home.Settings.TopK != 8 {
		t.Errorf("Expected configured default top_k 8, got %d", home.Settings.TopK)
	}
	pinned, _ := sourceCache.GetConfig("pinned")
	if pinned.Settings.TopK != 2 {
		t.Errorf("Expected explicit top_k 2, got %d", pinned.Settings.TopK)
	}
}
