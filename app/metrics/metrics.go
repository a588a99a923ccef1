package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var ActionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "amplifier_actions",
	Help: "Number of engagement actions by kind and outcome",
}, []string{"kind", "outcome"})

var BudgetDenialCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "amplifier_budget_denials",
	Help: "Number of actions skipped because the hourly budget was spent",
}, []string{"kind"})

var TaskRunCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "amplifier_task_runs",
	Help: "Number of scheduled task invocations by status",
}, []string{"task", "status"})

var TaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "amplifier_task_duration_sec",
	Help: "Duration of scheduled task invocations",
}, []string{"task"})

var MentionCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "amplifier_mentions",
	Help: "Number of mentions reconciled by outcome",
}, []string{"outcome"})

var SnapshotCandidates = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "amplifier_snapshot_candidates",
	Help: "Number of candidates in the latest discovery snapshot",
}, []string{"source"})

var ItemsScanned = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "amplifier_items_scanned",
	Help: "Number of content items fetched during discovery",
}, []string{"source"})
