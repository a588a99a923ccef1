package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/amplifier/app/models"
	"github.com/lysyi3m/amplifier/app/sources"
	"github.com/lysyi3m/amplifier/app/tasks"
)

const (
	defaultSnapshotLimit = 10
	maxSnapshotLimit     = 100
)

type Options struct {
	Budget      BudgetInterface
	Ledger      LedgerInterface
	History     HistoryInterface
	Snapshots   SnapshotLog
	SourceCache SourceCacheInterface
	Scheduler   tasks.TaskSchedulerInterface
	Version     string
}

func NewHandler(opts Options) *Handler {
	return &Handler{
		budget:      opts.Budget,
		ledger:      opts.Ledger,
		history:     opts.History,
		snapshots:   opts.Snapshots,
		sourceCache: opts.SourceCache,
		scheduler:   opts.Scheduler,
		version:     opts.Version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
	}

	if h.sourceCache != nil {
		health["loaded_sources"] = h.sourceCache.GetConfigCount()
	}

	c.JSON(http.StatusOK, health)
}

func (h *Handler) GetStats(c *gin.Context) {
	stats := map[string]any{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
	}

	if h.budget != nil {
		stats["budgets"] = h.budget.Snapshot()
	}

	if h.ledger != nil {
		if count, err := h.ledger.Count(c.Request.Context()); err == nil {
			stats["ledger_records"] = count
		} else {
			slog.Error("Failed to count ledger records", "error", err)
		}
	}

	if h.history != nil {
		stats["snapshots_in_memory"] = h.history.Len()
	}

	if h.scheduler != nil {
		stats["tasks"] = h.scheduler.Stats()
	}

	c.JSON(http.StatusOK, stats)
}

func (h *Handler) APIListSnapshots(c *gin.Context) {
	limit := defaultSnapshotLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = min(n, maxSnapshotLimit)
	}

	var snapshots []models.DiscoverySnapshot
	if h.snapshots != nil {
		var err error
		snapshots, err = h.snapshots.RecentSnapshots(c.Request.Context(), limit)
		if err != nil {
			slog.Error("Database error", "operation", "recent_snapshots", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
			return
		}
	} else if h.history != nil {
		all := h.history.All()
		for i := len(all) - 1; i >= 0 && len(snapshots) < limit; i-- {
			snapshots = append(snapshots, all[i])
		}
	}

	if snapshots == nil {
		snapshots = []models.DiscoverySnapshot{}
	}

	c.JSON(http.StatusOK, gin.H{
		"snapshots": snapshots,
		"total":     len(snapshots),
	})
}

func (h *Handler) APIListSources(c *gin.Context) {
	configs := h.sourceCache.GetConfigs()

	list := make([]map[string]any, 0, len(configs))
	for _, config := range configs {
		list = append(list, sourceInfo(config))
	}

	c.JSON(http.StatusOK, gin.H{
		"sources": list,
		"total":   len(list),
	})
}

func (h *Handler) APIReloadSource(c *gin.Context) {
	name := c.Param("name")
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing source name parameter"})
		return
	}

	if _, err := h.sourceCache.GetConfig(name); err != nil {
		slog.Error("Source configuration not found", "source", name, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "Source configuration not found"})
		return
	}

	config, err := h.sourceCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "source", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	slog.Info("Source configuration reloaded", "source", name)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded successfully",
		"source":  sourceInfo(config),
	})
}

func sourceInfo(config *sources.Config) map[string]any {
	info := map[string]any{
		"name":      config.Name,
		"type":      config.Type,
		"task":      config.Task,
		"enabled":   config.Settings.Enabled,
		"max_items": config.Settings.MaxItems,
		"top_k":     config.Settings.TopK,
		"allow":     len(config.Allow),
		"filters":   len(config.Filters),
	}
	if config.Type == sources.TypeRSS {
		info["url"] = config.URL
	} else {
		info["feed"] = config.Feed
	}
	return info
}
