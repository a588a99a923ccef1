// Package platformtest provides an in-memory platform.Client for tests.
package platformtest

import (
	"context"
	"fmt"
	"sync"

	"github.com/lysyi3m/amplifier/app/models"
	"github.com/lysyi3m/amplifier/app/platform"
)

type Call struct {
	Kind     models.ActionKind
	TargetID string
	Payload  *platform.ActionPayload
}

// Client serves canned responses and records every action it is asked to
// perform. Zero value is ready to use.
type Client struct {
	mu sync.Mutex

	// Pages maps feed key to pages, page 1 first.
	Pages map[string][][]models.ContentItem
	// FeedErrors maps feed key and page to an error.
	FeedErrors map[string]map[int]error

	Notifications []models.Notification
	Threads       map[string]*models.ContentItem
	Users         map[string]*models.UserInfo

	// ActionErrors maps target ID to an error returned by PostAction.
	ActionErrors map[string]error
	PostError    error

	Calls      []Call
	Posts      []string
	FeedCalls  int
	ThreadHits []string
}

var _ platform.Client = (*Client)(nil)

func (c *Client) FetchFeed(ctx context.Context, feedKey string, page, pageSize int) ([]models.ContentItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.FeedCalls++

	if err := c.FeedErrors[feedKey][page]; err != nil {
		return nil, err
	}
	pages := c.Pages[feedKey]
	if page < 1 || page > len(pages) {
		return nil, nil
	}
	return pages[page-1], nil
}

func (c *Client) PostAction(ctx context.Context, kind models.ActionKind, targetID string, payload *platform.ActionPayload) (*platform.ActionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.ActionErrors[targetID]; err != nil {
		return nil, err
	}
	c.Calls = append(c.Calls, Call{Kind: kind, TargetID: targetID, Payload: payload})
	return &platform.ActionResult{ID: fmt.Sprintf("%s-%s-%d", kind, targetID, len(c.Calls))}, nil
}

func (c *Client) FetchNotifications(ctx context.Context, page, pageSize int) ([]models.Notification, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	start := (page - 1) * pageSize
	if start >= len(c.Notifications) || start < 0 {
		return nil, nil
	}
	end := min(start+pageSize, len(c.Notifications))
	return c.Notifications[start:end], nil
}

func (c *Client) FetchThread(ctx context.Context, threadID string) (*models.ContentItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ThreadHits = append(c.ThreadHits, threadID)

	thread, ok := c.Threads[threadID]
	if !ok {
		return nil, &platform.Error{StatusCode: 404, Message: "not found"}
	}
	return thread, nil
}

func (c *Client) FetchUserByHandle(ctx context.Context, handle string) (*models.UserInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	user, ok := c.Users[handle]
	if !ok {
		return nil, platform.ErrNotFound
	}
	return user, nil
}

func (c *Client) CreatePost(ctx context.Context, text string) (*platform.ActionResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.PostError != nil {
		return nil, c.PostError
	}
	c.Posts = append(c.Posts, text)
	return &platform.ActionResult{ID: fmt.Sprintf("post-%d", len(c.Posts))}, nil
}

func (c *Client) ActionCalls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Call, len(c.Calls))
	copy(out, c.Calls)
	return out
}
