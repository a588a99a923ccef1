package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lysyi3m/amplifier/app/api"
	"github.com/lysyi3m/amplifier/app/budget"
	"github.com/lysyi3m/amplifier/app/cache"
	"github.com/lysyi3m/amplifier/app/cfg"
	"github.com/lysyi3m/amplifier/app/database"
	"github.com/lysyi3m/amplifier/app/discovery"
	"github.com/lysyi3m/amplifier/app/engage"
	"github.com/lysyi3m/amplifier/app/feed"
	"github.com/lysyi3m/amplifier/app/ledger"
	"github.com/lysyi3m/amplifier/app/llm"
	"github.com/lysyi3m/amplifier/app/mentions"
	"github.com/lysyi3m/amplifier/app/platform"
	"github.com/lysyi3m/amplifier/app/sink"
	"github.com/lysyi3m/amplifier/app/sources"
	"github.com/lysyi3m/amplifier/app/tasks"
)

// snapshotLogRetention bounds the persisted analytics log.
const snapshotLogRetention = 30 * 24 * time.Hour

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogging(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("Amplifier stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

func run(appCfg *cfg.Cfg) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Starting Amplifier", "version", appCfg.Version, "handle", appCfg.Handle)

	db, err := database.NewConnection(appCfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return err
	}
	slog.Info("Database ready", "path", appCfg.DatabasePath, "version", version, "dirty", dirty)

	store, closeStore, err := ledgerStore(ctx, appCfg, db)
	if err != nil {
		return err
	}
	defer closeStore()

	engagementLedger := ledger.New(store, ledger.Options{Retention: appCfg.Retention, SoftCap: appCfg.SoftCap})
	budgets := budget.NewTracker(appCfg.Ceilings)
	history := discovery.NewHistory(appCfg.HistorySize)
	snapshotLog := database.NewSnapshotRepository(db)
	events := sink.Multi{sink.Log{}, snapshotLog}

	sourceCache := sources.NewSourceCache(appCfg.SourcesDir).WithDefaultTopK(appCfg.TopK)
	if err := sourceCache.Run(); err != nil {
		return fmt.Errorf("failed to load sources: %w", err)
	}
	slog.Info("Sources loaded", "dir", appCfg.SourcesDir, "count", sourceCache.GetConfigCount())

	httpClient := &http.Client{Timeout: appCfg.PlatformTimeout}
	fetcher := feed.NewFetcher(httpClient, appCfg.UserAgent)
	headlines := feed.NewHeadlineReader(fetcher, feed.NewParser())
	previewer := feed.NewLinkPreview(fetcher, feed.NewContentExtractor(), feed.DefaultPreviewLength, appCfg.PlatformTimeout)

	scheduler := tasks.NewScheduler()

	if appCfg.PlatformURL == "" {
		slog.Warn("Platform URL not set, discovery and engagement disabled")
	} else {
		client := platform.NewHTTPClient(platform.Options{
			BaseURL:           appCfg.PlatformURL,
			Token:             appCfg.PlatformToken,
			UserAgent:         appCfg.UserAgent,
			Timeout:           appCfg.PlatformTimeout,
			RetryMax:          2,
			RequestsPerSecond: appCfg.RequestsPerSec,
		})

		scanner := discovery.NewScanner(client, history, events, appCfg.Handle)
		scheduler.Schedule(tasks.NewDiscoverTask(sourceCache, scanner), interval(appCfg.Discovery, true))
		scheduler.Schedule(tasks.NewTrendScanTask(sourceCache, scanner), interval(appCfg.TrendScan, true))

		if err := scheduleGenerativeTasks(ctx, appCfg, scheduler, client, budgets, engagementLedger, history, sourceCache, headlines, previewer, events); err != nil {
			slog.Warn("Generative tasks disabled", "error", err)
		}
	}

	scheduler.Schedule(tasks.NewCompactTask(engagementLedger).WithPruner(snapshotLog, snapshotLogRetention), interval(appCfg.Compaction, false))

	handler := api.NewHandler(api.Options{
		Budget:      budgets,
		Ledger:      engagementLedger,
		History:     history,
		Snapshots:   snapshotLog,
		SourceCache: sourceCache,
		Scheduler:   scheduler,
		Version:     appCfg.Version,
	})

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      api.NewServer(handler, appCfg.APIAccessKey),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		}
		if err := scheduler.Stop(shutdownCtx); err != nil {
			slog.Error("Scheduler shutdown error", "error", err)
		}
		slog.Info("Amplifier shutdown complete")
		return nil
	})

	return g.Wait()
}

// scheduleGenerativeTasks registers the tasks that need the content model
// and platform write access.
func scheduleGenerativeTasks(ctx context.Context, appCfg *cfg.Cfg, scheduler *tasks.Scheduler, client platform.Client,
	budgets *budget.Tracker, l *ledger.Ledger, history *discovery.History, sourceCache *sources.SourceCache,
	headlines *feed.HeadlineReader, previewer *feed.LinkPreview, events sink.Sink) error {
	if !appCfg.CanAct() {
		return errors.New("platform token not set")
	}
	if !appCfg.CanGenerate() {
		return errors.New("GenAI API key not set")
	}

	gen, err := llm.NewGenAI(ctx, appCfg.GenAIKey, appCfg.GenAIModel)
	if err != nil {
		return err
	}
	oracle := llm.NewOracle(gen, appCfg.Persona)

	engine := engage.NewEngine(client, oracle, budgets, l, events).WithPreviewer(previewer)
	scheduler.Schedule(tasks.NewEngageTask(history, engine), interval(appCfg.Engagement, false))

	if appCfg.Handle == "" {
		slog.Warn("Agent handle not set, mention replies disabled")
	} else {
		reconciler := mentions.NewReconciler(client, oracle, l, events, mentions.Options{
			Handle:   appCfg.Handle,
			PageSize: appCfg.MentionPageSize,
			Pages:    appCfg.MentionPages,
		})
		scheduler.Schedule(tasks.NewMentionTask(reconciler), interval(appCfg.MentionScan, false))
	}

	scheduler.Schedule(tasks.NewPostTask(client, oracle, budgets, l, history, sourceCache, headlines, events), interval(appCfg.Posting, false))
	return nil
}

func ledgerStore(ctx context.Context, appCfg *cfg.Cfg, db *database.DB) (ledger.Store, func(), error) {
	if appCfg.RedisURL == "" {
		return database.NewLedgerRepository(db), func() {}, nil
	}

	client, err := cache.NewClient(ctx, appCfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	store := cache.NewRedisStore(client, cache.Options{Retention: appCfg.Retention})
	return store, func() { client.Close() }, nil
}

func interval(iv cfg.Interval, immediate bool) tasks.Interval {
	return tasks.Interval{
		MinMinutes:      iv.MinMinutes,
		MaxMinutes:      iv.MaxMinutes,
		FallbackMinutes: iv.FallbackMinutes,
		Immediate:       immediate,
	}
}
