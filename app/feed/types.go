package feed

import (
	"time"
)

// Headline is one RSS/Atom entry reduced to what post generation needs.
type Headline struct {
	GUID        string
	Title       string
	Link        string
	PublishedAt time.Time
	ContentHash string
}

// Article is the readable part of a linked page.
type Article struct {
	Title   string
	Excerpt string
	Text    string
}
