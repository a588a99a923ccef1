package mentions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/lysyi3m/amplifier/app/ledger"
	"github.com/lysyi3m/amplifier/app/metrics"
	"github.com/lysyi3m/amplifier/app/models"
	"github.com/lysyi3m/amplifier/app/platform"
	"github.com/lysyi3m/amplifier/app/sink"
)

const (
	DefaultPageSize = 20
	DefaultPages    = 3
)

type ContentGenerator interface {
	GenerateReply(ctx context.Context, rc models.ReplyContext) (string, error)
}

type Outcome string

const (
	OutcomeReplied        Outcome = "replied"
	OutcomeNoThreadID     Outcome = "no_thread_id"
	OutcomeAlreadyReplied Outcome = "already_replied"
	OutcomeThreadGone     Outcome = "thread_gone"
	OutcomeEmptyReply     Outcome = "empty_reply"
	// OutcomeFailed is transient; the notification is left unprocessed.
	OutcomeFailed Outcome = "failed"
)

type Options struct {
	Handle   string
	PageSize int
	Pages    int
	Patterns Patterns
}

type Result struct {
	Fetched  int
	Mentions int
	Replies  int
	New      int
	Outcomes map[Outcome]int
}

// Reconciler answers mentions and replies found in the notification feed,
// evaluating each notification at most once.
type Reconciler struct {
	client    platform.Client
	generator ContentGenerator
	ledger    *ledger.Ledger
	sink      sink.Sink
	opts      Options
}

func NewReconciler(client platform.Client, generator ContentGenerator, l *ledger.Ledger, s sink.Sink, opts Options) *Reconciler {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Pages <= 0 {
		opts.Pages = DefaultPages
	}
	if opts.Patterns.NestedPath == nil || opts.Patterns.ThreadPath == nil {
		opts.Patterns = DefaultPatterns()
	}
	opts.Handle = strings.TrimPrefix(strings.TrimSpace(opts.Handle), "@")

	return &Reconciler{
		client:    client,
		generator: generator,
		ledger:    l,
		sink:      s,
		opts:      opts,
	}
}

func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	startTime := time.Now()
	result := Result{Outcomes: make(map[Outcome]int)}

	notifications, err := r.fetch(ctx)
	if err != nil {
		return result, err
	}
	result.Fetched = len(notifications)

	mentioned, replies := r.partition(notifications)
	result.Mentions = len(mentioned)
	result.Replies = len(replies)

	pending, err := r.unprocessed(ctx, append(mentioned, replies...))
	if err != nil {
		return result, err
	}
	result.New = len(pending)

	for _, n := range pending {
		if ctx.Err() != nil {
			break
		}
		outcome := r.handle(ctx, n)
		result.Outcomes[outcome]++
		metrics.MentionCount.WithLabelValues(string(outcome)).Inc()
	}

	slog.Info("Mention scan completed",
		"duration", time.Since(startTime),
		"fetched", result.Fetched,
		"mentions", result.Mentions,
		"replies", result.Replies,
		"new", result.New,
		"replied", result.Outcomes[OutcomeReplied])

	return result, nil
}

func (r *Reconciler) fetch(ctx context.Context) ([]models.Notification, error) {
	seen := make(map[string]bool)
	var out []models.Notification
	for page := 1; page <= r.opts.Pages; page++ {
		batch, err := r.client.FetchNotifications(ctx, page, r.opts.PageSize)
		if err != nil {
			if page == 1 {
				return nil, fmt.Errorf("failed to fetch notifications: %w", err)
			}
			slog.Warn("Notification page failed, keeping partial results", "page", page, "error", err)
			break
		}
		for _, n := range batch {
			if n.ID == "" || seen[n.ID] {
				continue
			}
			seen[n.ID] = true
			out = append(out, n)
		}
		if len(batch) < r.opts.PageSize {
			break
		}
	}
	return out, nil
}

// partition splits notifications into explicit mentions and replies. A
// notification that is a mention is never also counted as a reply.
func (r *Reconciler) partition(notifications []models.Notification) (mentioned, replies []models.Notification) {
	fold := cases.Fold()
	handle := fold.String(r.opts.Handle)

	for _, n := range notifications {
		if r.isMention(n, handle, fold) {
			mentioned = append(mentioned, n)
			continue
		}
		if r.isReply(n, fold) {
			replies = append(replies, n)
		}
	}
	return mentioned, replies
}

func (r *Reconciler) isMention(n models.Notification, handle string, fold cases.Caser) bool {
	if strings.EqualFold(n.Type, "mention") {
		return true
	}
	if handle == "" {
		return false
	}
	for _, tag := range n.Tags {
		if fold.String(strings.TrimPrefix(tag, "@")) == handle {
			return true
		}
	}
	return containsHandle(fold.String(n.Text), "@"+handle)
}

func (r *Reconciler) isReply(n models.Notification, fold cases.Caser) bool {
	if strings.EqualFold(n.Type, "reply") {
		return true
	}
	title := fold.String(n.Title)
	text := fold.String(n.Text)
	for _, marker := range r.opts.Patterns.ReplyMarkers {
		marker = fold.String(marker)
		if strings.Contains(title, marker) || strings.Contains(text, marker) {
			return true
		}
	}
	return r.opts.Patterns.isNestedLink(n.Link)
}

func (r *Reconciler) unprocessed(ctx context.Context, notifications []models.Notification) ([]models.Notification, error) {
	var pending []models.Notification
	for _, n := range notifications {
		processed, err := r.ledger.IsMentionProcessed(ctx, n.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to check notification %s: %w", n.ID, err)
		}
		if !processed {
			pending = append(pending, n)
		}
	}
	return pending, nil
}

func (r *Reconciler) handle(ctx context.Context, n models.Notification) Outcome {
	threadID := r.opts.Patterns.ThreadID(n.Link)
	if threadID == "" {
		slog.Debug("No thread ID in notification", "notification_id", n.ID, "link", n.Link)
		return r.finish(ctx, n, OutcomeNoThreadID)
	}

	key := models.ThreadKey(threadID, models.ActionReply)
	reserved, err := r.ledger.Reserve(ctx, key)
	if err != nil {
		slog.Warn("Ledger check failed", "notification_id", n.ID, "error", err)
		return OutcomeFailed
	}
	if !reserved {
		return r.finish(ctx, n, OutcomeAlreadyReplied)
	}

	rc := models.ReplyContext{Notification: n}
	thread, err := r.client.FetchThread(ctx, threadID)
	switch {
	case platform.IsNotFound(err):
		r.ledger.Release(key)
		slog.Info("Thread gone, skipping mention", "notification_id", n.ID, "thread_id", threadID)
		return r.finish(ctx, n, OutcomeThreadGone)
	case err != nil:
		slog.Debug("Thread context unavailable", "thread_id", threadID, "error", err)
	default:
		rc.Thread = thread
	}

	text, err := r.generator.GenerateReply(ctx, rc)
	if err != nil {
		r.ledger.Release(key)
		slog.Warn("Reply generation failed", "notification_id", n.ID, "error", err)
		return OutcomeFailed
	}
	if strings.TrimSpace(text) == "" {
		r.ledger.Release(key)
		return r.finish(ctx, n, OutcomeEmptyReply)
	}

	res, err := r.client.PostAction(ctx, models.ActionReply, threadID, &platform.ActionPayload{
		Text:     text,
		ParentID: threadID,
	})
	if err != nil {
		r.ledger.Release(key)
		if platform.IsNotFound(err) {
			return r.finish(ctx, n, OutcomeThreadGone)
		}
		slog.Warn("Reply failed", "notification_id", n.ID, "thread_id", threadID, "error", err)
		return OutcomeFailed
	}

	metadata := map[string]string{
		"notification_id": n.ID,
		"handle":          n.AuthorHandle,
	}
	if res != nil && res.ID != "" {
		metadata["result_id"] = res.ID
	}
	if err := r.ledger.Commit(ctx, key, metadata); err != nil {
		slog.Error("Failed to record reply", "thread_id", threadID, "error", err)
	}
	sink.DeliverEngagement(ctx, r.sink, models.EngagementRecord{
		Key:       key,
		CreatedAt: time.Now().UTC(),
		Metadata:  metadata,
	})

	slog.Info("Replied to mention", "notification_id", n.ID, "thread_id", threadID, "author", n.AuthorHandle)
	return r.finish(ctx, n, OutcomeReplied)
}

func (r *Reconciler) finish(ctx context.Context, n models.Notification, outcome Outcome) Outcome {
	if err := r.ledger.MarkMentionProcessed(ctx, n.ID); err != nil {
		slog.Error("Failed to mark notification processed", "notification_id", n.ID, "error", err)
	}
	return outcome
}

// containsHandle reports whether text mentions handle as a whole token, so
// "@bob" matches neither "@bobby", "mail@bob" nor "@bob.example".
func containsHandle(text, handle string) bool {
	for idx := 0; idx < len(text); {
		i := strings.Index(text[idx:], handle)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(handle)
		if boundedBefore(text, start) && boundedAfter(text, end) {
			return true
		}
		idx = start + 1
	}
	return false
}

func boundedBefore(text string, start int) bool {
	if start == 0 {
		return true
	}
	b := text[start-1]
	return !isHandleChar(b) && b != '.' && b != '@'
}

// A trailing dot ends the handle only when no handle character follows it.
func boundedAfter(text string, end int) bool {
	if end == len(text) {
		return true
	}
	if text[end] == '.' {
		return end+1 == len(text) || !isHandleChar(text[end+1])
	}
	return !isHandleChar(text[end])
}

func isHandleChar(b byte) bool {
	return b == '_' || b == '-' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}
