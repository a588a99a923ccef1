package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lysyi3m/amplifier/app/budget"
	"github.com/lysyi3m/amplifier/app/discovery"
	"github.com/lysyi3m/amplifier/app/feed"
	"github.com/lysyi3m/amplifier/app/ledger"
	"github.com/lysyi3m/amplifier/app/metrics"
	"github.com/lysyi3m/amplifier/app/models"
	"github.com/lysyi3m/amplifier/app/platform"
	"github.com/lysyi3m/amplifier/app/sink"
	"github.com/lysyi3m/amplifier/app/sources"
)

const (
	postTrendingItems = 5
	postHeadlines     = 5
)

type PostGenerator interface {
	GeneratePost(ctx context.Context, pc models.PostContext) (string, error)
}

// PostTask publishes one original post built from recent discovery and
// headline sources. Identical text is never posted twice within the
// ledger's retention.
type PostTask struct {
	Task
	client      platform.Client
	generator   PostGenerator
	budget      *budget.Tracker
	ledger      *ledger.Ledger
	history     *discovery.History
	sourceCache *sources.SourceCache
	headlines   *feed.HeadlineReader
	sink        sink.Sink
}

func NewPostTask(client platform.Client, generator PostGenerator, budget *budget.Tracker, l *ledger.Ledger,
	history *discovery.History, sourceCache *sources.SourceCache, headlines *feed.HeadlineReader, s sink.Sink) *PostTask {
	return &PostTask{
		Task:        NewTask(TaskTypePost),
		client:      client,
		generator:   generator,
		budget:      budget,
		ledger:      l,
		history:     history,
		sourceCache: sourceCache,
		headlines:   headlines,
		sink:        s,
	}
}

func (t *PostTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if t.budget.Remaining(models.ActionPost) == 0 {
		slog.Debug("Post budget exhausted, skipping")
		return nil
	}

	pc := models.PostContext{
		Trending:  t.trending(),
		Headlines: t.collectHeadlines(ctx),
	}
	if len(pc.Trending) == 0 && len(pc.Headlines) == 0 {
		slog.Debug("Nothing to post about, skipping")
		return nil
	}

	text, err := t.generator.GeneratePost(ctx, pc)
	if err != nil {
		return fmt.Errorf("failed to generate post: %w", err)
	}
	if text == "" {
		slog.Info("Generator returned no post text, skipping")
		return nil
	}

	key := models.Key{Target: "post:" + feed.ContentHash(strings.ToLower(strings.Join(strings.Fields(text), " "))), Kind: models.ActionPost}
	reserved, err := t.ledger.Reserve(ctx, key)
	if err != nil {
		return fmt.Errorf("failed to check post ledger: %w", err)
	}
	if !reserved {
		metrics.ActionCount.WithLabelValues(string(models.ActionPost), "duplicate").Inc()
		slog.Info("Duplicate post text, skipping")
		return nil
	}

	if !t.budget.TryConsume(models.ActionPost) {
		t.ledger.Release(key)
		metrics.BudgetDenialCount.WithLabelValues(string(models.ActionPost)).Inc()
		return nil
	}

	res, err := t.client.CreatePost(ctx, text)
	if err != nil {
		t.ledger.Release(key)
		metrics.ActionCount.WithLabelValues(string(models.ActionPost), "failed").Inc()
		return fmt.Errorf("failed to create post: %w", err)
	}

	metadata := map[string]string{"text": text}
	if res != nil && res.ID != "" {
		metadata["result_id"] = res.ID
	}
	if err := t.ledger.Commit(ctx, key, metadata); err != nil {
		slog.Error("Failed to record post", "error", err)
	}
	sink.DeliverEngagement(ctx, t.sink, models.EngagementRecord{
		Key:       key,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	})
	metrics.ActionCount.WithLabelValues(string(models.ActionPost), "executed").Inc()

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"trending", len(pc.Trending),
		"headlines", len(pc.Headlines))

	return nil
}

func (t *PostTask) trending() []models.ContentItem {
	candidates := t.history.LatestCandidates()
	if len(candidates) > postTrendingItems {
		candidates = candidates[:postTrendingItems]
	}
	items := make([]models.ContentItem, 0, len(candidates))
	for _, c := range candidates {
		items = append(items, c.Item)
	}
	return items
}

func (t *PostTask) collectHeadlines(ctx context.Context) []string {
	if t.headlines == nil || t.sourceCache == nil {
		return nil
	}

	var titles []string
	for _, config := range t.sourceCache.GetEnabledConfigs(sources.TaskHeadlines) {
		headlines, err := t.headlines.Headlines(ctx, config.URL, postHeadlines, config.Timeout())
		if err != nil {
			slog.Warn("Failed to read headlines", "source", config.Name, "error", err)
			continue
		}
		for _, h := range headlines {
			titles = append(titles, h.Title)
		}
	}
	return titles
}
