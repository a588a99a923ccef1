package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lysyi3m/amplifier/app/models"
)

// ErrNotFound marks a target that is gone for good (deleted or never
// existed). It is terminal and never retried.
var ErrNotFound = errors.New("target not found")

// Client is everything the engine needs from the content platform.
type Client interface {
	FetchFeed(ctx context.Context, feedKey string, page, pageSize int) ([]models.ContentItem, error)
	PostAction(ctx context.Context, kind models.ActionKind, targetID string, payload *ActionPayload) (*ActionResult, error)
	FetchNotifications(ctx context.Context, page, pageSize int) ([]models.Notification, error)
	FetchThread(ctx context.Context, threadID string) (*models.ContentItem, error)
	FetchUserByHandle(ctx context.Context, handle string) (*models.UserInfo, error)
	CreatePost(ctx context.Context, text string) (*ActionResult, error)
}

type ActionPayload struct {
	Text     string `json:"text,omitempty"`
	ParentID string `json:"parent_id,omitempty"`
}

type ActionResult struct {
	ID string `json:"id"`
}

// Error is a non-2xx platform response.
type Error struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("platform error %d", e.StatusCode)
	}
	return fmt.Sprintf("platform error %d: %s", e.StatusCode, e.Message)
}

func (e *Error) IsThrottled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Is lets errors.Is(err, ErrNotFound) match 404 and 410 responses.
func (e *Error) Is(target error) bool {
	return target == ErrNotFound && (e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone)
}

// IsNotFound reports whether err means the target is permanently gone.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
