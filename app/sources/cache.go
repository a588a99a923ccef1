package sources

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// SourceCache holds every source file from the sources directory.
type SourceCache struct {
	sourcesDir  string
	defaultTopK int
	cache       map[string]*Config
	mu          sync.RWMutex
}

func NewSourceCache(sourcesDir string) *SourceCache {
	return &SourceCache{
		sourcesDir:  sourcesDir,
		defaultTopK: DefaultTopK,
		cache:       make(map[string]*Config),
	}
}

// WithDefaultTopK sets top_k for sources that leave it unset. Affects
// configs loaded afterwards.
func (sc *SourceCache) WithDefaultTopK(k int) *SourceCache {
	if k > 0 {
		sc.defaultTopK = k
	}
	return sc
}

func (sc *SourceCache) Run() error {
	if _, err := os.Stat(sc.sourcesDir); os.IsNotExist(err) {
		return nil
	}

	files, err := filepath.Glob(filepath.Join(sc.sourcesDir, "*.yml"))
	if err != nil {
		return fmt.Errorf("failed to find YML files: %w", err)
	}

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".yml")

		config, err := sc.LoadConfig(name)
		if err != nil {
			return fmt.Errorf("error loading %s: %w", file, err)
		}

		slog.Debug("Source loaded", "source", name, "type", config.Type, "task", config.Task, "enabled", config.Settings.Enabled)
	}

	return nil
}

func (sc *SourceCache) LoadConfig(name string) (*Config, error) {
	configFile := filepath.Join(sc.sourcesDir, name+".yml")
	config, err := parseConfig(configFile)
	if err != nil {
		return nil, err
	}

	config.Name = name
	if config.Settings.TopK == 0 {
		config.Settings.TopK = sc.defaultTopK
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configFile, err)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.cache[config.Name] = config

	return config, nil
}

func (sc *SourceCache) GetConfig(name string) (*Config, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	config, ok := sc.cache[name]
	if !ok {
		return nil, fmt.Errorf("source config with name '%s' not found", name)
	}
	return config, nil
}

// GetConfigs returns every loaded source, sorted by name.
func (sc *SourceCache) GetConfigs() []*Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	configs := make([]*Config, 0, len(sc.cache))
	for _, c := range sc.cache {
		configs = append(configs, c)
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs
}

// GetEnabledConfigs returns enabled sources for a task, sorted by name.
func (sc *SourceCache) GetEnabledConfigs(task string) []*Config {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	var configs []*Config
	for _, c := range sc.cache {
		if c.Settings.Enabled && c.Task == task {
			configs = append(configs, c)
		}
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs
}

func (sc *SourceCache) GetConfigCount() int {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return len(sc.cache)
}

func parseConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if config.Type == "" {
		config.Type = TypePlatform
	}
	if config.Task == "" {
		if config.Type == TypeRSS {
			config.Task = TaskHeadlines
		} else {
			config.Task = TaskDiscovery
		}
	}
	if config.Settings.PageSize == 0 {
		config.Settings.PageSize = 20
	}
	if config.Settings.MaxItems == 0 {
		config.Settings.MaxItems = 100
	}
	if config.Settings.MinEngagement == 0 {
		config.Settings.MinEngagement = 3
	}
	if config.Settings.TimeWindow == 0 {
		config.Settings.TimeWindow = 24
	}
	if config.Settings.Timeout == 0 {
		config.Settings.Timeout = 30
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config == nil {
		return fmt.Errorf("config is nil")
	}
	if config.Name == "" {
		return fmt.Errorf("source name is required")
	}

	switch config.Type {
	case TypePlatform:
		if config.Feed == "" {
			return fmt.Errorf("feed key is required for platform sources")
		}
		if config.Task != TaskDiscovery && config.Task != TaskTrend {
			return fmt.Errorf("invalid task for platform source: %s", config.Task)
		}
	case TypeRSS:
		if config.URL == "" {
			return fmt.Errorf("URL is required for rss sources")
		}
		if config.Task != TaskHeadlines {
			return fmt.Errorf("invalid task for rss source: %s", config.Task)
		}
	default:
		return fmt.Errorf("invalid source type: %s", config.Type)
	}

	nonNegativeFields := map[string]int{
		"page size":      config.Settings.PageSize,
		"max items":      config.Settings.MaxItems,
		"top k":          config.Settings.TopK,
		"min followers":  config.Settings.MinFollowers,
		"min engagement": config.Settings.MinEngagement,
		"time window":    config.Settings.TimeWindow,
		"timeout":        config.Settings.Timeout,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	for i, filter := range config.Filters {
		if !validFields[filter.Field] {
			return fmt.Errorf("invalid filter field at index %d: %s", i, filter.Field)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}

	return nil
}
