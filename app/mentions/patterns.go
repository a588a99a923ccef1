package mentions

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Patterns holds every heuristic the reconciler applies to notification
// text and links. Adjust here when the platform changes its URL scheme.
type Patterns struct {
	// NestedPath matches a reply nested under a thread; group 1 is the
	// thread ID.
	NestedPath *regexp.Regexp
	// ThreadPath matches a thread link; group 1 is the thread ID.
	ThreadPath *regexp.Regexp
	// ReplyMarkers are words in a notification title or text that mark it
	// as a reply.
	ReplyMarkers []string
	// NestedLinkMarkers are link fragments that mark a threaded reply.
	NestedLinkMarkers []string
}

func DefaultPatterns() Patterns {
	return Patterns{
		NestedPath:        regexp.MustCompile(`/(?:posts|threads)/([A-Za-z0-9_-]+)/(?:comments|replies)/[A-Za-z0-9_-]+`),
		ThreadPath:        regexp.MustCompile(`/(?:posts|threads|p)/([A-Za-z0-9_-]+)/?$`),
		ReplyMarkers:      []string{"replied", "comment"},
		NestedLinkMarkers: []string{"/comments/", "/replies/", "#reply"},
	}
}

// ThreadID extracts the target thread from a notification link, trying the
// nested pattern, then the thread pattern, then a bare UUID as the last
// path segment. Returns "" if nothing matches.
func (p Patterns) ThreadID(link string) string {
	if link == "" {
		return ""
	}

	linkPath := link
	if u, err := url.Parse(link); err == nil && u.Path != "" {
		linkPath = u.Path
	}

	if m := p.NestedPath.FindStringSubmatch(linkPath); m != nil {
		return m[1]
	}
	if m := p.ThreadPath.FindStringSubmatch(linkPath); m != nil {
		return m[1]
	}

	last := path.Base(strings.TrimRight(linkPath, "/"))
	if uuid.Validate(last) == nil {
		return last
	}
	return ""
}

func (p Patterns) isNestedLink(link string) bool {
	for _, marker := range p.NestedLinkMarkers {
		if strings.Contains(link, marker) {
			return true
		}
	}
	return false
}
