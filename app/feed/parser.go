package feed

import (
	"bytes"
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/mmcdole/gofeed"
)

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

// Run parses an RSS/Atom/JSON feed into headlines, newest first. Entries
// without a title are dropped.
func (p *Parser) Run(data []byte) ([]Headline, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	headlines := make([]Headline, 0, len(feed.Items))
	for _, item := range feed.Items {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			continue
		}

		h := Headline{
			GUID:  cmp.Or(item.GUID, item.Link),
			Title: title,
			Link:  item.Link,
		}
		if item.PublishedParsed != nil {
			h.PublishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			h.PublishedAt = *item.UpdatedParsed
		}
		h.ContentHash = ContentHash(h.Title, h.Link)

		headlines = append(headlines, h)
	}

	sort.SliceStable(headlines, func(i, j int) bool {
		return headlines[i].PublishedAt.After(headlines[j].PublishedAt)
	})

	return headlines, nil
}

func ContentHash(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(hash[:])
}
