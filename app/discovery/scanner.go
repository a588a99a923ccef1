package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lysyi3m/amplifier/app/metrics"
	"github.com/lysyi3m/amplifier/app/models"
	"github.com/lysyi3m/amplifier/app/platform"
	"github.com/lysyi3m/amplifier/app/sink"
	"github.com/lysyi3m/amplifier/app/sources"
	"github.com/lysyi3m/amplifier/app/trend"
)

const (
	defaultPageSize = 20
	defaultMaxItems = 100
)

// Scanner pulls a source feed, filters and ranks it and keeps the result
// in History.
type Scanner struct {
	client     platform.Client
	history    *History
	sink       sink.Sink
	filterer   *sources.Filterer
	weights    trend.Weights
	selfHandle string
	now        func() time.Time
}

func NewScanner(client platform.Client, history *History, s sink.Sink, selfHandle string) *Scanner {
	return &Scanner{
		client:     client,
		history:    history,
		sink:       s,
		filterer:   sources.NewFilterer(),
		weights:    trend.DefaultWeights(),
		selfHandle: normalizeHandle(selfHandle),
		now:        time.Now,
	}
}

func (s *Scanner) WithClock(now func() time.Time) *Scanner {
	s.now = now
	return s
}

func (s *Scanner) WithWeights(w trend.Weights) *Scanner {
	s.weights = w
	return s
}

// Scan builds one snapshot for src. Discovery sources rank by author reach,
// trend sources by velocity. Only a failure on the first page is an
// error; a later page failure keeps what was already fetched.
func (s *Scanner) Scan(ctx context.Context, src *sources.Config) (models.DiscoverySnapshot, error) {
	startedAt := s.now().UTC()

	items, err := s.fetch(ctx, src)
	if err != nil {
		return models.DiscoverySnapshot{}, err
	}
	metrics.ItemsScanned.WithLabelValues(src.Name).Add(float64(len(items)))

	filter := trend.Filter{
		MinEngagement: src.Settings.MinEngagement,
		TimeWindow:    src.TimeWindow(),
	}
	allow := allowSet(src.Allow)

	var candidates []models.Candidate
	skipped := 0
	for _, item := range items {
		if reason := s.reject(item, src, filter, allow, startedAt); reason != "" {
			slog.Debug("Candidate skipped", "source", src.Name, "item_id", item.ID, "reason", reason)
			skipped++
			continue
		}
		velocity := trend.Score(item, s.weights, startedAt)
		score := trend.ReachScore(item)
		if src.Task == sources.TaskTrend {
			score = velocity
		}
		candidates = append(candidates, models.Candidate{
			Item:     item,
			Score:    score,
			Velocity: velocity,
		})
	}

	snapshot := models.DiscoverySnapshot{
		StartedAt:    startedAt,
		Source:       src.Name,
		SourceFeed:   src.Feed,
		ScannedCount: len(items),
		Candidates:   trend.Top(candidates, src.Settings.TopK),
	}

	s.history.Add(snapshot)
	metrics.SnapshotCandidates.WithLabelValues(src.Name).Set(float64(len(snapshot.Candidates)))
	sink.DeliverSnapshot(ctx, s.sink, snapshot)

	slog.Info("Discovery scan completed",
		"source", src.Name,
		"feed", src.Feed,
		"scanned", len(items),
		"skipped", skipped,
		"candidates", len(snapshot.Candidates))

	return snapshot, nil
}

func (s *Scanner) fetch(ctx context.Context, src *sources.Config) ([]models.ContentItem, error) {
	maxItems := src.Settings.MaxItems
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}
	pageSize := src.Settings.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxItems {
		pageSize = maxItems
	}

	seen := make(map[string]bool)
	var items []models.ContentItem
	for page := 1; len(items) < maxItems; page++ {
		fetchCtx := ctx
		var cancel context.CancelFunc = func() {}
		if timeout := src.Timeout(); timeout > 0 {
			fetchCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		batch, err := s.client.FetchFeed(fetchCtx, src.Feed, page, pageSize)
		cancel()
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("failed to scan source %s: %w", src.Name, err)
			}
			slog.Warn("Discovery page failed, keeping partial results", "source", src.Name, "page", page, "error", err)
			break
		}

		added := 0
		for _, item := range batch {
			if seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			items = append(items, item)
			added++
			if len(items) >= maxItems {
				break
			}
		}

		// A page with nothing new means the feed is repeating itself.
		if len(batch) < pageSize || added == 0 {
			break
		}
	}
	return items, nil
}

func (s *Scanner) reject(item models.ContentItem, src *sources.Config, filter trend.Filter, allow map[string]bool, now time.Time) string {
	handle := normalizeHandle(item.AuthorHandle)
	if s.selfHandle != "" && handle == s.selfHandle {
		return "own content"
	}
	if item.AuthorFollowers < src.Settings.MinFollowers {
		return "below follower floor"
	}
	if len(allow) > 0 && !allow[handle] {
		return "author not allowed"
	}
	if excluded, reason := s.filterer.Excluded(item, src.Filters); excluded {
		return reason
	}
	if ok, reason := filter.Eligible(item, now); !ok {
		return reason
	}
	return ""
}

func allowSet(handles []string) map[string]bool {
	set := make(map[string]bool, len(handles))
	for _, h := range handles {
		if h = normalizeHandle(h); h != "" {
			set[h] = true
		}
	}
	return set
}

func normalizeHandle(h string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(h), "@"))
}
