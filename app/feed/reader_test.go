package feed

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHeadlineReader(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "amplifier-test" {
			t.Errorf("Expected user agent 'amplifier-test', got: %s", r.Header.Get("User-Agent"))
		}
		_, _ = io.WriteString(w, rssData)
	}))
	defer server.Close()

	reader := NewHeadlineReader(NewFetcher(nil, "amplifier-test"), NewParser())
	headlines, err := reader.Headlines(context.Background(), server.URL, 1, time.Second)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(headlines) != 1 {
		t.Fatalf("Expected limit to cap headlines at 1, got: %d", len(headlines))
	}
	if headlines[0].Title != "Newer Item" {
		t.Errorf("Expected 'Newer Item', got: %s", headlines[0].Title)
	}
}

func TestFetcherHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	if _, err := NewFetcher(nil, "").Fetch(context.Background(), server.URL, time.Second); err == nil {
		t.Errorf("Expected error for non-200 response")
	}
}

func TestLinkPreviewTruncates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, articleHTML)
	}))
	defer server.Close()

	preview := NewLinkPreview(NewFetcher(nil, ""), NewContentExtractor(), 40, time.Second)
	text, err := preview.Preview(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len([]rune(text)) != 40 {
		t.Errorf("Expected 40 runes, got: %d (%q)", len([]rune(text)), text)
	}
	if !strings.HasPrefix(text, "Test Article") && !strings.HasPrefix(text, "Main Article Title") {
		t.Errorf("Expected preview to start with the title, got: %q", text)
	}
}
