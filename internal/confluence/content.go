package confluence

import (
	"fmt"
	"strings"
	"time"

	htmldoc "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	FormatStorage  = "storage"
	FormatMarkdown = "markdown"
)

var labelCaser = cases.Lower(language.Und)

// NormalizeLabel lower-cases and trims a label name.
func NormalizeLabel(name string) string {
	return labelCaser.String(strings.TrimSpace(name))
}

// revisionComment is attached to every update as the version message.
func revisionComment(now time.Time) string {
	return fmt.Sprintf("Updated via confluence-mcp-server at %s", now.UTC().Format(time.RFC3339))
}

// ToMarkdown renders storage-format markup as Markdown.
func ToMarkdown(storage string) (string, error) {
	md, err := htmldoc.ConvertString(storage)
	if err != nil {
		return "", fmt.Errorf("convert storage to markdown: %w", err)
	}
	return strings.TrimSpace(md), nil
}

func isEmptyBody(b Body) bool {
	return strings.TrimSpace(b.Value) == ""
}
