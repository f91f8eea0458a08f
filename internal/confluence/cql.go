package confluence

import (
	"regexp"
	"strings"
)

// typeClause matches a CQL type filter: type = x, type != x, type in (...), type not in (...).
var typeClause = regexp.MustCompile(`(?i)\btype\s*(=|!=|\s+in\b|\s+not\s+in\b)`)

// HasTypeClause reports whether query already filters by content type.
func HasTypeClause(query string) bool {
	return typeClause.MatchString(query)
}

// QuoteCQL wraps s in double quotes, escaping backslashes and quotes.
func QuoteCQL(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// SearchCQL passes structured queries through unchanged and wraps anything
// else as a free-text match.
func SearchCQL(query string) string {
	if HasTypeClause(query) {
		return query
	}
	return "text ~ " + QuoteCQL(query)
}

// ListPagesCQL selects pages of one space, optionally filtered by title.
func ListPagesCQL(spaceKey, title string) string {
	cql := "space = " + QuoteCQL(spaceKey) + " AND type = page"
	if title != "" {
		cql += " AND title ~ " + QuoteCQL(title)
	}
	return cql
}

// FindByTitleCQL matches pages whose title contains title, optionally in one space.
func FindByTitleCQL(title, spaceKey string) string {
	cql := "title ~ " + QuoteCQL(title) + " AND type = page"
	if spaceKey != "" {
		cql += " AND space = " + QuoteCQL(spaceKey)
	}
	return cql
}
