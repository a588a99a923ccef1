package feed

import (
	"context"
	"fmt"
	"time"
)

const DefaultPreviewLength = 1500

// HeadlineReader fetches and parses a headline feed.
type HeadlineReader struct {
	fetcher *Fetcher
	parser  *Parser
}

func NewHeadlineReader(fetcher *Fetcher, parser *Parser) *HeadlineReader {
	return &HeadlineReader{fetcher: fetcher, parser: parser}
}

func (r *HeadlineReader) Headlines(ctx context.Context, url string, limit int, timeout time.Duration) ([]Headline, error) {
	data, err := r.fetcher.Fetch(ctx, url, timeout)
	if err != nil {
		return nil, err
	}

	headlines, err := r.parser.Run(data)
	if err != nil {
		return nil, err
	}

	if limit > 0 && len(headlines) > limit {
		headlines = headlines[:limit]
	}
	return headlines, nil
}

// LinkPreview turns a link into a bounded text excerpt for oracle context.
type LinkPreview struct {
	fetcher   *Fetcher
	extractor *ContentExtractor
	maxLength int
	timeout   time.Duration
}

func NewLinkPreview(fetcher *Fetcher, extractor *ContentExtractor, maxLength int, timeout time.Duration) *LinkPreview {
	if maxLength <= 0 {
		maxLength = DefaultPreviewLength
	}
	return &LinkPreview{
		fetcher:   fetcher,
		extractor: extractor,
		maxLength: maxLength,
		timeout:   timeout,
	}
}

func (p *LinkPreview) Preview(ctx context.Context, link string) (string, error) {
	data, err := p.fetcher.Fetch(ctx, link, p.timeout)
	if err != nil {
		return "", err
	}

	article, err := p.extractor.Run(data, link)
	if err != nil {
		return "", fmt.Errorf("failed to preview %s: %w", link, err)
	}

	text := article.Text
	if article.Title != "" {
		text = article.Title + ". " + text
	}

	runes := []rune(text)
	if len(runes) > p.maxLength {
		text = string(runes[:p.maxLength])
	}
	return text, nil
}
