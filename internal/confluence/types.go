package confluence

// Links carries the navigation links of a record or a result page.
type Links struct {
	Self  string `json:"self,omitempty"`
	Next  string `json:"next,omitempty"`
	Base  string `json:"base,omitempty"`
	WebUI string `json:"webui,omitempty"`
}

// Space is a Confluence space.
type Space struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Name   string `json:"name"`
	Type   string `json:"type,omitempty"`
	Status string `json:"status,omitempty"`
	Links  Links  `json:"links"`
}

// Version is the optimistic-concurrency token of a page.
type Version struct {
	Number  int    `json:"number"`
	Message string `json:"message,omitempty"`
}

// Body holds page markup and the representation it is in (normally "storage").
type Body struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

// Page is a Confluence page in the shape both API surfaces are normalized to.
type Page struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Status    string  `json:"status,omitempty"`
	SpaceID   string  `json:"spaceId,omitempty"`
	SpaceKey  string  `json:"spaceKey,omitempty"`
	ParentID  string  `json:"parentId,omitempty"`
	Version   Version `json:"version"`
	Body      Body    `json:"body"`
	AuthorID  string  `json:"authorId,omitempty"`
	CreatedAt string  `json:"createdAt,omitempty"`
	Links     Links   `json:"links"`
}

// PageContent is the storage body of a single page.
type PageContent struct {
	PageID string `json:"pageId"`
	Body   Body   `json:"body"`
}

// Label is a tag attached to a page.
type Label struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
}

// SearchResult is a lightweight content summary. Excerpt is always present,
// possibly empty.
type SearchResult struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Title        string `json:"title"`
	Status       string `json:"status,omitempty"`
	URL          string `json:"url"`
	Excerpt      string `json:"excerpt"`
	LastModified string `json:"lastModified,omitempty"`
}

// PaginatedResponse is one page of results. A non-empty Links.Next (and
// NextCursor) means more data is available.
type PaginatedResponse[T any] struct {
	Results    []T    `json:"results"`
	Size       int    `json:"size"`
	Start      int    `json:"start"`
	Limit      int    `json:"limit"`
	Links      Links  `json:"links"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// ListOptions controls pagination. The legacy surface pages by Start, the
// typed surface by Cursor; each ignores the other.
type ListOptions struct {
	Limit  int
	Start  int
	Cursor string
}

// CreatePageInput describes a page to create.
type CreatePageInput struct {
	SpaceKey string
	Title    string
	Content  string // storage representation
	ParentID string
}

// UpdatePageInput describes a full-content page update. Version is the
// version the caller believes is current.
type UpdatePageInput struct {
	ID      string
	Title   string // empty keeps the current title
	Content string
	Version int
}

const (
	DefaultLimit     = 25
	MaxLimit         = 250
	FindByTitleLimit = 10

	representationStorage = "storage"
	labelPrefixGlobal     = "global"
)

// normalize applies defaults and bounds to list options.
func (o ListOptions) normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Limit > MaxLimit {
		o.Limit = MaxLimit
	}
	if o.Start < 0 {
		o.Start = 0
	}
	return o
}

// truncate enforces len(results) <= limit regardless of what upstream sent.
func truncate[T any](results []T, limit int) []T {
	if results == nil {
		return []T{}
	}
	if limit > 0 && len(results) > limit {
		return results[:limit]
	}
	return results
}
