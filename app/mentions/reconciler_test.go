package mentions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lysyi3m/amplifier/app/ledger"
	"github.com/lysyi3m/amplifier/app/models"
	"github.com/lysyi3m/amplifier/app/platform"
	"github.com/lysyi3m/amplifier/app/platform/platformtest"
)

type fakeGenerator struct {
	text  string
	err   error
	calls []models.ReplyContext
}

func (f *fakeGenerator) GenerateReply(ctx context.Context, rc models.ReplyContext) (string, error) {
	f.calls = append(f.calls, rc)
	return f.text, f.err
}

func newTestReconciler(client platform.Client, gen *fakeGenerator) (*Reconciler, *ledger.Ledger) {
	l := ledger.New(ledger.NewMemStore(), ledger.Options{})
	return NewReconciler(client, gen, l, nil, Options{Handle: "@Agent", PageSize: 10, Pages: 2}), l
}

func mention(id, thread string) models.Notification {
	return models.Notification{
		ID:           id,
		Text:         "hey @agent what do you think?",
		Link:         "https://example.com/posts/" + thread,
		AuthorHandle: "alice",
	}
}

func TestReconcilerRepliesToMention(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	client := &platformtest.Client{
		Notifications: []models.Notification{mention("n1", "t1")},
		Threads:       map[string]*models.ContentItem{"t1": {ID: "t1", Text: "original thread"}},
	}
	gen := &fakeGenerator{text: "Glad you asked!"}
	r, l := newTestReconciler(client, gen)

	result, err := r.Run(ctx)
	assert.NoError(err)
	assert.Equal(1, result.Mentions)
	assert.Equal(1, result.Outcomes[OutcomeReplied])

	calls := client.ActionCalls()
	assert.Len(calls, 1)
	assert.Equal(models.ActionReply, calls[0].Kind)
	assert.Equal("t1", calls[0].TargetID)
	assert.Equal("Glad you asked!", calls[0].Payload.Text)

	assert.Len(gen.calls, 1)
	assert.NotNil(gen.calls[0].Thread)

	acted, _ := l.HasActed(ctx, models.ThreadKey("t1", models.ActionReply))
	assert.True(acted)
	processed, _ := l.IsMentionProcessed(ctx, "n1")
	assert.True(processed)
}

func TestReconcilerThreadNotFound(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	client := &platformtest.Client{Notifications: []models.Notification{mention("n1", "deleted")}}
	gen := &fakeGenerator{text: "reply"}
	r, l := newTestReconciler(client, gen)

	result, err := r.Run(ctx)
	assert.NoError(err)
	assert.Equal(1, result.Outcomes[OutcomeThreadGone])

	processed, _ := l.IsMentionProcessed(ctx, "n1")
	assert.True(processed)
	assert.Empty(client.ActionCalls())
	assert.Empty(gen.calls)

	acted, _ := l.HasActed(ctx, models.ThreadKey("deleted", models.ActionReply))
	assert.False(acted)
}

func TestReconcilerDedupAcrossRuns(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	client := &platformtest.Client{
		Notifications: []models.Notification{mention("n1", "t1")},
		Threads:       map[string]*models.ContentItem{"t1": {ID: "t1"}},
	}
	gen := &fakeGenerator{text: "hi"}
	r, _ := newTestReconciler(client, gen)

	_, err := r.Run(ctx)
	assert.NoError(err)
	second, err := r.Run(ctx)
	assert.NoError(err)

	assert.Equal(0, second.New)
	assert.Len(gen.calls, 1)
	assert.Len(client.ActionCalls(), 1)
}

func TestReconcilerPartition(t *testing.T) {
	assert := assert.New(t)
	client := &platformtest.Client{Notifications: []models.Notification{
		{ID: "m-text", Text: "thanks @AGENT!", Link: "https://example.com/posts/a"},
		{ID: "m-tag", Tags: []string{"agent"}, Link: "https://example.com/posts/b"},
		{ID: "m-and-reply", Title: "Bob replied", Text: "@agent see this", Link: "https://example.com/posts/c"},
		{ID: "r-title", Title: "Carol replied to your post", Link: "https://example.com/posts/d"},
		{ID: "r-link", Text: "nice", Link: "https://example.com/posts/e/comments/x"},
		{ID: "other-handle", Text: "hi @agentsmith", Link: "https://example.com/posts/f"},
		{ID: "like", Title: "Dave liked your post", Link: "https://example.com/posts/g"},
	}}
	r, _ := newTestReconciler(client, &fakeGenerator{})

	mentioned, replies := r.partition(client.Notifications)

	ids := func(ns []models.Notification) []string {
		var out []string
		for _, n := range ns {
			out = append(out, n.ID)
		}
		return out
	}
	assert.Equal([]string{"m-text", "m-tag", "m-and-reply"}, ids(mentioned))
	assert.Equal([]string{"r-title", "r-link"}, ids(replies))
}

func TestReconcilerNoThreadID(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	n := mention("n1", "")
	n.Link = "https://example.com/users/alice"
	client := &platformtest.Client{Notifications: []models.Notification{n}}
	gen := &fakeGenerator{text: "hi"}
	r, l := newTestReconciler(client, gen)

	result, _ := r.Run(ctx)
	assert.Equal(1, result.Outcomes[OutcomeNoThreadID])
	processed, _ := l.IsMentionProcessed(ctx, "n1")
	assert.True(processed)
	assert.Empty(gen.calls)
}

func TestReconcilerAlreadyReplied(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	client := &platformtest.Client{Notifications: []models.Notification{mention("n1", "t1")}}
	gen := &fakeGenerator{text: "hi"}
	r, l := newTestReconciler(client, gen)
	_, _ = l.Record(ctx, models.ThreadKey("t1", models.ActionReply), nil)

	result, _ := r.Run(ctx)
	assert.Equal(1, result.Outcomes[OutcomeAlreadyReplied])
	processed, _ := l.IsMentionProcessed(ctx, "n1")
	assert.True(processed)
	assert.Empty(client.ThreadHits)
}

func TestReconcilerEmptyReply(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	client := &platformtest.Client{
		Notifications: []models.Notification{mention("n1", "t1")},
		Threads:       map[string]*models.ContentItem{"t1": {ID: "t1"}},
	}
	r, l := newTestReconciler(client, &fakeGenerator{text: "   "})

	result, _ := r.Run(ctx)
	assert.Equal(1, result.Outcomes[OutcomeEmptyReply])
	assert.Empty(client.ActionCalls())
	processed, _ := l.IsMentionProcessed(ctx, "n1")
	assert.True(processed)
}

func TestReconcilerTransientFailureRetries(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	client := &platformtest.Client{
		Notifications: []models.Notification{mention("n1", "t1")},
		Threads:       map[string]*models.ContentItem{"t1": {ID: "t1"}},
		ActionErrors:  map[string]error{"t1": errors.New("connection reset")},
	}
	gen := &fakeGenerator{text: "hi"}
	r, l := newTestReconciler(client, gen)

	result, _ := r.Run(ctx)
	assert.Equal(1, result.Outcomes[OutcomeFailed])
	processed, _ := l.IsMentionProcessed(ctx, "n1")
	assert.False(processed)

	delete(client.ActionErrors, "t1")
	result, _ = r.Run(ctx)
	assert.Equal(1, result.Outcomes[OutcomeReplied])
}

func TestReconcilerFetchErrorFails(t *testing.T) {
	r, _ := newTestReconciler(&erroringClient{}, &fakeGenerator{})
	if _, err := r.Run(context.Background()); err == nil {
		t.Error("Expected error when notifications cannot be fetched")
	}
}

func TestContainsHandle(t *testing.T) {
	assert := assert.New(t)
	assert.True(containsHandle("hi @bob", "@bob"))
	assert.True(containsHandle("@bob, hi", "@bob"))
	assert.True(containsHandle("ping @bobby and @bob.", "@bob"))
	assert.False(containsHandle("hi @bobby", "@bob"))
	assert.False(containsHandle("nothing here", "@bob"))
}

func TestContainsHandleRejectsEmbeddedMatches(t *testing.T) {
	assert := assert.New(t)
	assert.False(containsHandle("write to mail@bob", "@bob"))
	assert.False(containsHandle("see @bob.other.social", "@bob"))
	assert.False(containsHandle("@@bob", "@bob"))
	assert.True(containsHandle("mail@bob then @bob.", "@bob"))
	assert.True(containsHandle("(@bob)", "@bob"))
	assert.True(containsHandle("end @bob. next", "@bob"))
}

type erroringClient struct {
	platformtest.Client
}

func (e *erroringClient) FetchNotifications(ctx context.Context, page, pageSize int) ([]models.Notification, error) {
	return nil, errors.New("unavailable")
}
