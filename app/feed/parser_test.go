package feed

import (
	"testing"
)

const rssData = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Test Description</description>
    <item>
      <title>Older Item</title>
      <link>https://example.com/item1</link>
      <guid>item-1</guid>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Newer Item</title>
      <link>https://example.com/item2</link>
      <pubDate>Mon, 03 Jul 2023 11:00:00 GMT</pubDate>
    </item>
    <item>
      <title>   </title>
      <link>https://example.com/untitled</link>
    </item>
  </channel>
</rss>`

func TestParseRSS2(t *testing.T) {
	parser := NewParser()
	headlines, err := parser.Run([]byte(rssData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(headlines) != 2 {
		t.Fatalf("Expected 2 headlines, got: %d", len(headlines))
	}

	if headlines[0].Title != "Newer Item" {
		t.Errorf("Expected newest headline first, got: %s", headlines[0].Title)
	}
	if headlines[0].GUID != "https://example.com/item2" {
		t.Errorf("Expected GUID to fall back to link, got: %s", headlines[0].GUID)
	}
	if headlines[1].GUID != "item-1" {
		t.Errorf("Expected GUID 'item-1', got: %s", headlines[1].GUID)
	}
	if headlines[0].ContentHash == "" || headlines[0].ContentHash == headlines[1].ContentHash {
		t.Errorf("Expected distinct non-empty content hashes")
	}
}

func TestParseAtom(t *testing.T) {
	atomData := `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <updated>2023-07-03T12:00:00Z</updated>
  <entry>
    <title>Atom Entry</title>
    <link href="https://example.com/atom1"/>
    <id>atom-1</id>
    <updated>2023-07-03T10:00:00Z</updated>
  </entry>
</feed>`

	headlines, err := NewParser().Run([]byte(atomData))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if len(headlines) != 1 {
		t.Fatalf("Expected 1 headline, got: %d", len(headlines))
	}
	if headlines[0].Link != "https://example.com/atom1" {
		t.Errorf("Expected link 'https://example.com/atom1', got: %s", headlines[0].Link)
	}
	if headlines[0].PublishedAt.IsZero() {
		t.Errorf("Expected updated date to be used as published date")
	}
}

func TestParseInvalidFeed(t *testing.T) {
	if _, err := NewParser().Run([]byte("not a feed")); err == nil {
		t.Errorf("Expected error for invalid feed")
	}
}

func TestContentHashStable(t *testing.T) {
	if ContentHash("a", "b") != ContentHash("a", "b") {
		t.Errorf("Expected identical hashes for identical input")
	}
	if ContentHash("a", "b") == ContentHash("ab") {
		t.Errorf("Expected separator to distinguish parts")
	}
}
