package mentions

import (
	"testing"
)

func TestThreadID(t *testing.T) {
	patterns := DefaultPatterns()

	tests := []struct {
		name string
		link string
		want string
	}{
		{"nested comment", "https://example.com/posts/abc123/comments/c9", "abc123"},
		{"nested reply with query", "https://example.com/threads/t-1/replies/r2?ref=notif", "t-1"},
		{"thread path", "https://example.com/posts/abc123", "abc123"},
		{"thread path trailing slash", "https://example.com/p/xyz/", "xyz"},
		{"bare uuid", "https://example.com/n/2b1f3c8e-9a4d-4f7e-8c1a-0d2e3f4a5b6c", "2b1f3c8e-9a4d-4f7e-8c1a-0d2e3f4a5b6c"},
		{"uppercase uuid kept as linked", "https://example.com/x/2B1F3C8E-9A4D-4F7E-8C1A-0D2E3F4A5B6C", "2B1F3C8E-9A4D-4F7E-8C1A-0D2E3F4A5B6C"},
		{"unhyphenated uuid kept as linked", "https://example.com/x/2b1f3c8e9a4d4f7e8c1a0d2e3f4a5b6c", "2b1f3c8e9a4d4f7e8c1a0d2e3f4a5b6c"},
		{"profile link", "https://example.com/users/alice", ""},
		{"empty", "", ""},
		{"not a uuid", "https://example.com/n/not-a-uuid", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := patterns.ThreadID(tt.link); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestIsNestedLink(t *testing.T) {
	patterns := DefaultPatterns()

	if !patterns.isNestedLink("https://example.com/posts/a/comments/b") {
		t.Errorf("Expected comment link to be nested")
	}
	if patterns.isNestedLink("https://example.com/posts/a") {
		t.Errorf("Expected plain thread link not to be nested")
	}
}
