package models

import (
	"strings"
	"time"
)

type ActionKind string

const (
	ActionLike   ActionKind = "like"
	ActionRepost ActionKind = "repost"
	ActionReply  ActionKind = "reply"
	ActionFollow ActionKind = "follow"
	ActionQuote  ActionKind = "quote"
	ActionPost   ActionKind = "post"
	ActionNone   ActionKind = "none"
)

// EngagementKinds are the budget categories the engagement pass draws from.
var EngagementKinds = []ActionKind{ActionLike, ActionRepost, ActionReply, ActionFollow}

// ParseActionKind maps free-form oracle output to a known action.
// Anything unrecognised is ActionNone.
func ParseActionKind(s string) ActionKind {
	switch ActionKind(strings.ToLower(strings.TrimSpace(s))) {
	case ActionLike:
		return ActionLike
	case ActionRepost:
		return ActionRepost
	case ActionReply:
		return ActionReply
	case ActionFollow:
		return ActionFollow
	case ActionQuote:
		return ActionQuote
	default:
		return ActionNone
	}
}

// BudgetCategory returns the budget bucket an action draws from.
// Quotes share the repost budget.
func (k ActionKind) BudgetCategory() ActionKind {
	if k == ActionQuote {
		return ActionRepost
	}
	return k
}

// NeedsDraft reports whether the action publishes agent-written text.
func (k ActionKind) NeedsDraft() bool {
	return k == ActionReply || k == ActionQuote
}

type Counters struct {
	Likes     int `json:"likes"`
	Reposts   int `json:"reposts"`
	Replies   int `json:"replies"`
	Bookmarks int `json:"bookmarks"`
}

// Total is the raw, unweighted engagement.
func (c Counters) Total() int {
	return c.Likes + c.Reposts + c.Replies + c.Bookmarks
}

// ContentItem is a snapshot of a piece of platform content at fetch time.
type ContentItem struct {
	ID              string    `json:"id"`
	AuthorID        string    `json:"author_id"`
	AuthorHandle    string    `json:"author_handle"`
	AuthorFollowers int       `json:"author_followers"`
	Text            string    `json:"text"`
	Link            string    `json:"link,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	Counters        Counters  `json:"counters"`
}

// Age returns how old the item is relative to now. Items stamped in the
// future have zero age.
func (c ContentItem) Age(now time.Time) time.Duration {
	age := now.Sub(c.CreatedAt)
	if age < 0 {
		return 0
	}
	return age
}

type Notification struct {
	ID           string    `json:"id"`
	Type         string    `json:"type"`
	Title        string    `json:"title"`
	Text         string    `json:"text"`
	Link         string    `json:"link"`
	AuthorHandle string    `json:"author_handle"`
	Tags         []string  `json:"tags,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type UserInfo struct {
	ID        string `json:"id"`
	Handle    string `json:"handle"`
	Followers int    `json:"followers"`
}

// Decision is the oracle's verdict for one candidate.
type Decision struct {
	Action    ActionKind `json:"action"`
	Rationale string     `json:"rationale"`
	DraftText string     `json:"draft_text,omitempty"`
}

type Candidate struct {
	Item ContentItem `json:"item"`
	// Score is the reach-weighted composite used for ranking.
	Score float64 `json:"score"`
	// Velocity is the age-normalised trend score.
	Velocity float64 `json:"velocity"`
	Rank     int     `json:"rank"`
}

// DiscoverySnapshot is immutable once built.
type DiscoverySnapshot struct {
	StartedAt    time.Time   `json:"started_at"`
	Source       string      `json:"source,omitempty"`
	SourceFeed   string      `json:"source_feed"`
	ScannedCount int         `json:"scanned_count"`
	Candidates   []Candidate `json:"candidates"`
}

// Key identifies one at-most-once engagement slot.
type Key struct {
	Target string     `json:"target"`
	Kind   ActionKind `json:"kind"`
}

func (k Key) String() string {
	return k.Target + ":" + string(k.Kind)
}

// ThreadKey scopes like/repost/reply/quote to the content item.
func ThreadKey(targetID string, kind ActionKind) Key {
	return Key{Target: targetID, Kind: kind}
}

// FollowKey scopes follows to the author.
func FollowKey(authorHandle string) Key {
	return Key{Target: "user:" + authorHandle, Kind: ActionFollow}
}

type EngagementRecord struct {
	Key       Key               `json:"key"`
	CreatedAt time.Time         `json:"created_at"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// DecisionContext is what the oracle sees for one candidate.
type DecisionContext struct {
	Item     ContentItem
	Score    float64
	Velocity float64
	// Preview is readable text behind the item's link, if any.
	Preview string
}

type ReplyContext struct {
	Notification Notification
	// Thread is nil when the thread could not be fetched.
	Thread *ContentItem
}

type PostContext struct {
	Trending  []ContentItem
	Headlines []string
}
