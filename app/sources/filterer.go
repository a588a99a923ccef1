package sources

import (
	"fmt"
	"strings"

	"github.com/lysyi3m/amplifier/app/models"
)

var validFields = map[string]bool{
	"text":   true,
	"author": true,
	"link":   true,
}

// Filterer applies a source's keyword filters to content items. The first
// failing filter wins and its reason is returned.
type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

func (f *Filterer) Excluded(item models.ContentItem, filters []Filter) (bool, string) {
	for _, filter := range filters {
		value := fieldValue(item, filter.Field)

		for _, exclude := range filter.Excludes {
			if matches(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			matched := false
			for _, include := range filter.Includes {
				if matches(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func matches(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}

func fieldValue(item models.ContentItem, field string) string {
	switch field {
	case "text":
		return item.Text
	case "author":
		return item.AuthorHandle
	case "link":
		return item.Link
	default:
		return ""
	}
}
