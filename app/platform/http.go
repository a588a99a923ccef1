package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"

	"github.com/lysyi3m/amplifier/app/models"
)

const (
	DefaultTimeout           = 15 * time.Second
	DefaultRequestsPerSecond = 2
)

type Options struct {
	BaseURL           string
	Token             string
	UserAgent         string
	Timeout           time.Duration
	RetryMax          int
	RequestsPerSecond float64
}

var _ Client = (*HTTPClient)(nil)

// HTTPClient talks to the platform's JSON API. Requests are paced by a
// token-bucket limiter and retried only for throttling (429) or temporary
// unavailability (503); transport failures surface immediately so the
// scheduler's next cycle is the retry.
type HTTPClient struct {
	baseURL   string
	token     string
	userAgent string
	client    *retryablehttp.Client
	limiter   *rate.Limiter
}

func NewHTTPClient(opts Options) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = DefaultRequestsPerSecond
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = opts.RetryMax
	rc.RetryWaitMin = 1 * time.Second
	rc.RetryWaitMax = 10 * time.Second
	rc.HTTPClient.Timeout = opts.Timeout
	rc.Logger = retryablehttp.LeveledLogger(slog.Default())
	rc.CheckRetry = checkRetry
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	return &HTTPClient{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		token:     opts.Token,
		userAgent: opts.UserAgent,
		client:    rc,
		limiter:   rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
	}
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil || resp == nil {
		return false, nil
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable, nil
}

type feedResponse struct {
	Items []models.ContentItem `json:"items"`
}

type notificationsResponse struct {
	Notifications []models.Notification `json:"notifications"`
}

type postResponse struct {
	Post models.ContentItem `json:"post"`
}

type userResponse struct {
	User models.UserInfo `json:"user"`
}

type createPostRequest struct {
	Text string `json:"text"`
}

func (c *HTTPClient) FetchFeed(ctx context.Context, feedKey string, page, pageSize int) ([]models.ContentItem, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(pageSize))

	var resp feedResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/feeds/"+url.PathEscape(feedKey), q, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feedKey, err)
	}
	return resp.Items, nil
}

func (c *HTTPClient) PostAction(ctx context.Context, kind models.ActionKind, targetID string, payload *ActionPayload) (*ActionResult, error) {
	var path string
	switch kind {
	case models.ActionLike, models.ActionRepost, models.ActionReply, models.ActionQuote:
		path = "/api/v1/posts/" + url.PathEscape(targetID) + "/" + string(kind)
	case models.ActionFollow:
		path = "/api/v1/users/" + url.PathEscape(targetID) + "/follow"
	default:
		return nil, fmt.Errorf("unsupported action kind: %s", kind)
	}

	var body any
	if payload != nil {
		body = payload
	}

	var result ActionResult
	if err := c.do(ctx, http.MethodPost, path, nil, body, &result); err != nil {
		return nil, fmt.Errorf("failed to %s %s: %w", kind, targetID, err)
	}
	return &result, nil
}

func (c *HTTPClient) FetchNotifications(ctx context.Context, page, pageSize int) ([]models.Notification, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(pageSize))

	var resp notificationsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/notifications", q, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	return resp.Notifications, nil
}

func (c *HTTPClient) FetchThread(ctx context.Context, threadID string) (*models.ContentItem, error) {
	var resp postResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/posts/"+url.PathEscape(threadID), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch thread %s: %w", threadID, err)
	}
	return &resp.Post, nil
}

func (c *HTTPClient) FetchUserByHandle(ctx context.Context, handle string) (*models.UserInfo, error) {
	handle = strings.TrimPrefix(handle, "@")

	var resp userResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/by-handle/"+url.PathEscape(handle), nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch user %s: %w", handle, err)
	}
	return &resp.User, nil
}

func (c *HTTPClient) CreatePost(ctx context.Context, text string) (*ActionResult, error) {
	var result ActionResult
	if err := c.do(ctx, http.MethodPost, "/api/v1/posts", nil, createPostRequest{Text: text}, &result); err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return &result, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, query url.Values, body any, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errorFromResponse(resp, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func errorFromResponse(resp *http.Response, body []byte) error {
	e := &Error{
		StatusCode: resp.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
	var parsed struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) == nil && (parsed.Error != "" || parsed.Message != "") {
		e.Message = strings.TrimSpace(parsed.Error + " " + parsed.Message)
	}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		e.RetryAfter = time.Duration(secs) * time.Second
	}
	return e
}
