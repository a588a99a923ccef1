package engage

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/lysyi3m/amplifier/app/budget"
	"github.com/lysyi3m/amplifier/app/ledger"
	"github.com/lysyi3m/amplifier/app/metrics"
	"github.com/lysyi3m/amplifier/app/models"
	"github.com/lysyi3m/amplifier/app/platform"
	"github.com/lysyi3m/amplifier/app/sink"
)

type Oracle interface {
	Decide(ctx context.Context, dc models.DecisionContext) (models.Decision, error)
}

// Previewer resolves a link to readable text for oracle context.
type Previewer interface {
	Preview(ctx context.Context, link string) (string, error)
}

type Outcome string

const (
	OutcomeExecuted  Outcome = "executed"
	OutcomeNone      Outcome = "none"
	OutcomeNoDraft   Outcome = "no_draft"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeBudget    Outcome = "budget"
	OutcomeFailed    Outcome = "failed"
)

type PassResult struct {
	Evaluated int
	Outcomes  map[Outcome]int
	// Stopped is set when the pass ended early on exhausted budgets or
	// cancellation.
	Stopped bool
}

// Engine walks a ranked candidate list and turns oracle decisions into at
// most one platform action per dedup key.
type Engine struct {
	client    platform.Client
	oracle    Oracle
	budget    *budget.Tracker
	ledger    *ledger.Ledger
	sink      sink.Sink
	previewer Previewer
}

func NewEngine(client platform.Client, oracle Oracle, budget *budget.Tracker, ledger *ledger.Ledger, s sink.Sink) *Engine {
	return &Engine{
		client: client,
		oracle: oracle,
		budget: budget,
		ledger: ledger,
		sink:   s,
	}
}

func (e *Engine) WithPreviewer(p Previewer) *Engine {
	e.previewer = p
	return e
}

// RunPass never fails as a whole. Each candidate's failure is logged and
// the pass moves on.
func (e *Engine) RunPass(ctx context.Context, candidates []models.Candidate) PassResult {
	startTime := time.Now()
	result := PassResult{Outcomes: make(map[Outcome]int)}

	for _, c := range candidates {
		if e.budget.AllExhausted(models.EngagementKinds...) {
			slog.Info("All budgets exhausted, stopping pass", "remaining", len(candidates)-result.Evaluated)
			result.Stopped = true
			break
		}
		if ctx.Err() != nil {
			result.Stopped = true
			break
		}

		result.Evaluated++
		outcome, kind := e.evaluate(ctx, c)
		result.Outcomes[outcome]++
		metrics.ActionCount.WithLabelValues(string(kind), string(outcome)).Inc()
	}

	slog.Info("Engagement pass completed",
		"duration", time.Since(startTime),
		"candidates", len(candidates),
		"evaluated", result.Evaluated,
		"executed", result.Outcomes[OutcomeExecuted],
		"duplicates", result.Outcomes[OutcomeDuplicate],
		"budget_denied", result.Outcomes[OutcomeBudget],
		"failed", result.Outcomes[OutcomeFailed])

	return result
}

func (e *Engine) evaluate(ctx context.Context, c models.Candidate) (Outcome, models.ActionKind) {
	item := c.Item

	decision, err := e.oracle.Decide(ctx, e.decisionContext(ctx, c))
	if err != nil {
		slog.Warn("Oracle call failed", "item_id", item.ID, "error", err)
		return OutcomeFailed, models.ActionNone
	}

	action := decision.Action
	if action == models.ActionNone || action == "" {
		slog.Debug("Oracle chose no action", "item_id", item.ID, "rationale", decision.Rationale)
		return OutcomeNone, models.ActionNone
	}

	if action.NeedsDraft() && decision.DraftText == "" {
		slog.Debug("Skipping action without draft text", "item_id", item.ID, "action", action)
		return OutcomeNoDraft, action
	}

	key := keyFor(action, item)

	reserved, err := e.ledger.Reserve(ctx, key)
	if err != nil {
		slog.Warn("Ledger check failed", "key", key.String(), "error", err)
		return OutcomeFailed, action
	}
	if !reserved {
		slog.Debug("Already acted, skipping", "key", key.String())
		return OutcomeDuplicate, action
	}

	category := action.BudgetCategory()
	if !e.budget.TryConsume(category) {
		e.ledger.Release(key)
		metrics.BudgetDenialCount.WithLabelValues(string(category)).Inc()
		slog.Debug("Budget exhausted, skipping", "item_id", item.ID, "action", action, "category", category)
		return OutcomeBudget, action
	}

	res, err := e.execute(ctx, action, item, decision)
	if err != nil {
		e.ledger.Release(key)
		if platform.IsNotFound(err) {
			slog.Info("Target gone, skipping", "item_id", item.ID, "action", action)
		} else {
			slog.Warn("Action failed", "item_id", item.ID, "action", action, "error", err)
		}
		return OutcomeFailed, action
	}

	metadata := map[string]string{
		"handle":    item.AuthorHandle,
		"rationale": decision.Rationale,
		"score":     strconv.FormatFloat(c.Score, 'f', 2, 64),
	}
	if res != nil && res.ID != "" {
		metadata["result_id"] = res.ID
	}

	if err := e.ledger.Commit(ctx, key, metadata); err != nil {
		slog.Error("Failed to record engagement", "key", key.String(), "error", err)
	}
	sink.DeliverEngagement(ctx, e.sink, models.EngagementRecord{
		Key:       key,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	})

	slog.Info("Action executed", "item_id", item.ID, "action", action, "author", item.AuthorHandle, "rank", c.Rank)
	return OutcomeExecuted, action
}

func (e *Engine) decisionContext(ctx context.Context, c models.Candidate) models.DecisionContext {
	dc := models.DecisionContext{
		Item:     c.Item,
		Score:    c.Score,
		Velocity: c.Velocity,
	}
	if e.previewer != nil && c.Item.Link != "" {
		preview, err := e.previewer.Preview(ctx, c.Item.Link)
		if err != nil {
			slog.Debug("Link preview unavailable", "item_id", c.Item.ID, "link", c.Item.Link, "error", err)
		} else {
			dc.Preview = preview
		}
	}
	return dc
}

func (e *Engine) execute(ctx context.Context, action models.ActionKind, item models.ContentItem, decision models.Decision) (*platform.ActionResult, error) {
	switch action {
	case models.ActionFollow:
		authorID := item.AuthorID
		if authorID == "" {
			user, err := e.client.FetchUserByHandle(ctx, item.AuthorHandle)
			if err != nil {
				return nil, err
			}
			authorID = user.ID
		}
		return e.client.PostAction(ctx, action, authorID, nil)
	case models.ActionReply, models.ActionQuote:
		return e.client.PostAction(ctx, action, item.ID, &platform.ActionPayload{
			Text:     decision.DraftText,
			ParentID: item.ID,
		})
	default:
		return e.client.PostAction(ctx, action, item.ID, nil)
	}
}

func keyFor(action models.ActionKind, item models.ContentItem) models.Key {
	if action == models.ActionFollow {
		return models.FollowKey(item.AuthorHandle)
	}
	return models.ThreadKey(item.ID, action)
}
