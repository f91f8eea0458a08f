package confluence

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	errs "github.com/olgasafonova/confluence-mcp-server/internal/errors"
)

const (
	MaxTitleLength = 255
	MaxLabelLength = 255
	MaxQueryLength = 1000
)

var (
	pageIDRegex   = regexp.MustCompile(`^\d+$`)
	spaceKeyRegex = regexp.MustCompile(`^~?[A-Za-z0-9_.:-]+$`)
)

// ValidatePageID validates a page id. Confluence content ids are numeric.
func ValidatePageID(id string) error {
	if strings.TrimSpace(id) == "" {
		return errs.NewValidationError("page_id", "", "page id is required")
	}
	if !pageIDRegex.MatchString(id) {
		return errs.NewValidationError("page_id", id, "must be numeric")
	}
	return nil
}

// ValidateSpaceKey validates a space key (personal spaces start with ~).
func ValidateSpaceKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return errs.NewValidationError("space_key", "", "space key is required")
	}
	if !spaceKeyRegex.MatchString(key) {
		return errs.NewValidationError("space_key", key, "must contain only letters, digits and _ . : -")
	}
	return nil
}

// ValidateTitle validates a page title.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return errs.NewValidationError("title", "", "title is required")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return errs.NewValidationError("title", "", fmt.Sprintf("cannot exceed %d characters", MaxTitleLength))
	}
	return nil
}

// ValidateLabel validates a label name. Labels cannot contain whitespace.
func ValidateLabel(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errs.NewValidationError("label", "", "label is required")
	}
	if strings.ContainsAny(name, " \t\r\n") {
		return errs.NewValidationError("label", name, "cannot contain whitespace")
	}
	if utf8.RuneCountInString(name) > MaxLabelLength {
		return errs.NewValidationError("label", "", fmt.Sprintf("cannot exceed %d characters", MaxLabelLength))
	}
	return nil
}

// ValidateQuery validates a search query.
func ValidateQuery(query string) error {
	if strings.TrimSpace(query) == "" {
		return errs.NewValidationError("query", "", "search query is required")
	}
	if len(query) > MaxQueryLength {
		return errs.NewValidationError("query", "", fmt.Sprintf("cannot exceed %d bytes", MaxQueryLength))
	}
	return nil
}

// ValidateLimit validates the page size parameter. Zero selects the default.
func ValidateLimit(limit int) error {
	if limit < 0 {
		return errs.NewValidationError("limit", fmt.Sprint(limit), "cannot be negative")
	}
	if limit > MaxLimit {
		return errs.NewValidationError("limit", fmt.Sprint(limit), fmt.Sprintf("cannot exceed %d", MaxLimit))
	}
	return nil
}

// ValidateStart validates a result offset.
func ValidateStart(start int) error {
	if start < 0 {
		return errs.NewValidationError("start", fmt.Sprint(start), "cannot be negative")
	}
	return nil
}

// ValidateVersion validates the expected version of an update.
func ValidateVersion(version int) error {
	if version < 1 {
		return errs.NewValidationError("version", fmt.Sprint(version), "must be the page's current version (1 or greater)")
	}
	return nil
}

// ValidateContent rejects an empty body; an update replaces the whole page.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return errs.NewValidationError("content", "", "content is required")
	}
	return nil
}

// ValidateFormat validates a content format. Empty selects storage.
func ValidateFormat(format string) error {
	switch format {
	case "", FormatStorage, FormatMarkdown:
		return nil
	}
	return errs.NewValidationError("format", format, "must be storage or markdown")
}

func validatePaging(limit, start int) error {
	if err := ValidateLimit(limit); err != nil {
		return err
	}
	return ValidateStart(start)
}
