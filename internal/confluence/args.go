package confluence

// Pagination describes where a result page sits and how to fetch the next one.
type Pagination struct {
	Size       int    `json:"size"`
	Start      int    `json:"start"`
	Limit      int    `json:"limit"`
	HasMore    bool   `json:"has_more"`
	Next       string `json:"next,omitempty"`        // upstream next link
	NextCursor string `json:"next_cursor,omitempty"` // pass back as cursor
}

func paginationOf[T any](p *PaginatedResponse[T]) Pagination {
	return Pagination{
		Size:       p.Size,
		Start:      p.Start,
		Limit:      p.Limit,
		HasMore:    p.Links.Next != "",
		Next:       p.Links.Next,
		NextCursor: p.NextCursor,
	}
}

// ListSpacesArgs contains parameters for listing spaces
type ListSpacesArgs struct {
	Limit  int    `json:"limit,omitempty" jsonschema:"Results per page (default 25, max 250)"`
	Start  int    `json:"start,omitempty" jsonschema:"Offset of the first result (legacy API)"`
	Cursor string `json:"cursor,omitempty" jsonschema:"next_cursor from a previous call"`
}

// ListSpacesResult is the result of listing spaces
type ListSpacesResult struct {
	Spaces     []Space    `json:"spaces"`
	Pagination Pagination `json:"pagination"`
}

// GetSpaceArgs contains parameters for getting a single space
type GetSpaceArgs struct {
	SpaceKey string `json:"space_key" jsonschema:"Space key (e.g. ENG) or numeric space id"`
}

// GetSpaceResult is the result of getting a space
type GetSpaceResult struct {
	Space Space `json:"space"`
}

// ListPagesArgs contains parameters for listing pages in a space
type ListPagesArgs struct {
	SpaceKey string `json:"space_key" jsonschema:"Key of the space to list"`
	Title    string `json:"title,omitempty" jsonschema:"Only pages whose title matches"`
	Limit    int    `json:"limit,omitempty" jsonschema:"Results per page (default 25, max 250)"`
	Start    int    `json:"start,omitempty" jsonschema:"Offset of the first result (legacy API)"`
	Cursor   string `json:"cursor,omitempty" jsonschema:"next_cursor from a previous call"`
}

// ListPagesResult is the result of listing pages
type ListPagesResult struct {
	SpaceKey   string     `json:"space_key"`
	Pages      []Page     `json:"pages"`
	Pagination Pagination `json:"pagination"`
}

// FindPageByTitleArgs contains parameters for a title lookup
type FindPageByTitleArgs struct {
	Title    string `json:"title" jsonschema:"Text the page title contains"`
	SpaceKey string `json:"space_key,omitempty" jsonschema:"Restrict the lookup to one space"`
}

// FindPageByTitleResult is the result of a title lookup
type FindPageByTitleResult struct {
	Pages []Page `json:"pages"`
	Count int    `json:"count"`
}

// GetPageArgs contains parameters for getting a page
type GetPageArgs struct {
	PageID string `json:"page_id" jsonschema:"Numeric page id"`
}

// GetPageResult is the result of getting a page
type GetPageResult struct {
	Page Page `json:"page"`
}

// GetPageContentArgs contains parameters for getting page content
type GetPageContentArgs struct {
	PageID string `json:"page_id" jsonschema:"Numeric page id"`
	Format string `json:"format,omitempty" jsonschema:"storage (default) or markdown"`
}

// GetPageContentResult is the body of a page in the requested format
type GetPageContentResult struct {
	PageID  string `json:"page_id"`
	Format  string `json:"format"`
	Content string `json:"content"`
}

// CreatePageArgs contains parameters for creating a page
type CreatePageArgs struct {
	SpaceKey string `json:"space_key" jsonschema:"Key of the space to create the page in"`
	Title    string `json:"title" jsonschema:"Page title, unique within the space"`
	Content  string `json:"content" jsonschema:"Page body in Confluence storage format (XHTML)"`
	ParentID string `json:"parent_id,omitempty" jsonschema:"Id of the page to nest the new page under"`
}

// CreatePageResult is the result of creating a page
type CreatePageResult struct {
	Page Page   `json:"page"`
	URL  string `json:"url,omitempty"`
}

// UpdatePageArgs contains parameters for updating a page
type UpdatePageArgs struct {
	PageID  string `json:"page_id" jsonschema:"Numeric page id"`
	Title   string `json:"title,omitempty" jsonschema:"New title; omit to keep the current one"`
	Content string `json:"content" jsonschema:"Full new body in Confluence storage format"`
	Version int    `json:"version" jsonschema:"Current version number of the page, as last read"`
}

// UpdatePageResult is the result of updating a page
type UpdatePageResult struct {
	Page            Page `json:"page"`
	PreviousVersion int  `json:"previous_version"`
}

// SearchContentArgs contains parameters for a content search
type SearchContentArgs struct {
	Query  string `json:"query" jsonschema:"Free text, or CQL containing a type clause (e.g. type = page AND space = ENG)"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Results per page (default 25, max 250)"`
	Start  int    `json:"start,omitempty" jsonschema:"Offset of the first result"`
	Cursor string `json:"cursor,omitempty" jsonschema:"next_cursor from a previous call"`
}

// SearchContentResult is the result of a content search
type SearchContentResult struct {
	Query      string         `json:"query"`
	Results    []SearchResult `json:"results"`
	Base       string         `json:"base,omitempty"`
	Pagination Pagination     `json:"pagination"`
}

// ListLabelsArgs contains parameters for listing page labels
type ListLabelsArgs struct {
	PageID string `json:"page_id" jsonschema:"Numeric page id"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Results per page (default 25, max 250)"`
	Start  int    `json:"start,omitempty" jsonschema:"Offset of the first result (legacy API)"`
	Cursor string `json:"cursor,omitempty" jsonschema:"next_cursor from a previous call"`
}

// ListLabelsResult is the result of listing labels
type ListLabelsResult struct {
	PageID     string     `json:"page_id"`
	Labels     []Label    `json:"labels"`
	Pagination Pagination `json:"pagination"`
}

// AddLabelArgs contains parameters for adding a label
type AddLabelArgs struct {
	PageID string `json:"page_id" jsonschema:"Numeric page id"`
	Label  string `json:"label" jsonschema:"Label name; stored lower case"`
}

// AddLabelResult is the result of adding a label
type AddLabelResult struct {
	PageID string `json:"page_id"`
	Label  Label  `json:"label"`
}

// RemoveLabelArgs contains parameters for removing a label
type RemoveLabelArgs struct {
	PageID string `json:"page_id" jsonschema:"Numeric page id"`
	Label  string `json:"label" jsonschema:"Label name to remove"`
}

// RemoveLabelResult is the result of removing a label
type RemoveLabelResult struct {
	PageID  string `json:"page_id"`
	Label   string `json:"label"`
	Removed bool   `json:"removed"`
}
