package confluence

import (
	"context"
	"strconv"
	"strings"

	"github.com/olgasafonova/confluence-mcp-server/internal/config"
	errs "github.com/olgasafonova/confluence-mcp-server/internal/errors"
)

// MCP Tool wrapper methods
// These validate tool arguments, call the adapter and shape the result.

// listOptions maps tool paging arguments onto ListOptions. On the legacy
// surface the cursor is a numeric offset, so it is folded into Start. The
// typed surface pages by cursor only and rejects an offset.
func (c *Client) listOptions(limit, start int, cursor string) (ListOptions, error) {
	if err := validatePaging(limit, start); err != nil {
		return ListOptions{}, err
	}
	if start > 0 && c.version == config.APIv2 {
		return ListOptions{}, errs.NewValidationError("start", strconv.Itoa(start), "not supported on API v2; page with cursor instead")
	}
	opts := ListOptions{Limit: limit, Start: start}
	if cursor == "" {
		return opts, nil
	}
	if c.version == config.APIv2 {
		opts.Cursor = cursor
		return opts, nil
	}
	n, err := strconv.Atoi(cursor)
	if err != nil || n < 0 {
		return ListOptions{}, errs.NewValidationError("cursor", cursor, "not a cursor returned by this server")
	}
	opts.Start = n
	return opts, nil
}

// ListSpacesMCP is the MCP wrapper for ListSpaces
func (c *Client) ListSpacesMCP(ctx context.Context, args ListSpacesArgs) (ListSpacesResult, error) {
	opts, err := c.listOptions(args.Limit, args.Start, args.Cursor)
	if err != nil {
		return ListSpacesResult{}, err
	}
	resp, err := c.ListSpaces(ctx, opts)
	if err != nil {
		return ListSpacesResult{}, err
	}
	return ListSpacesResult{Spaces: resp.Results, Pagination: paginationOf(resp)}, nil
}

// GetSpaceMCP is the MCP wrapper for GetSpace
func (c *Client) GetSpaceMCP(ctx context.Context, args GetSpaceArgs) (GetSpaceResult, error) {
	key := strings.TrimSpace(args.SpaceKey)
	if err := ValidateSpaceKey(key); err != nil {
		return GetSpaceResult{}, err
	}
	space, err := c.GetSpace(ctx, key)
	if err != nil {
		return GetSpaceResult{}, err
	}
	return GetSpaceResult{Space: *space}, nil
}

// ListPagesMCP is the MCP wrapper for ListPages
func (c *Client) ListPagesMCP(ctx context.Context, args ListPagesArgs) (ListPagesResult, error) {
	key := strings.TrimSpace(args.SpaceKey)
	if err := ValidateSpaceKey(key); err != nil {
		return ListPagesResult{}, err
	}
	opts, err := c.listOptions(args.Limit, args.Start, args.Cursor)
	if err != nil {
		return ListPagesResult{}, err
	}
	resp, err := c.ListPages(ctx, key, strings.TrimSpace(args.Title), opts)
	if err != nil {
		return ListPagesResult{}, err
	}
	return ListPagesResult{SpaceKey: key, Pages: resp.Results, Pagination: paginationOf(resp)}, nil
}

// FindPageByTitleMCP is the MCP wrapper for FindPageByTitle
func (c *Client) FindPageByTitleMCP(ctx context.Context, args FindPageByTitleArgs) (FindPageByTitleResult, error) {
	if err := ValidateTitle(args.Title); err != nil {
		return FindPageByTitleResult{}, err
	}
	key := strings.TrimSpace(args.SpaceKey)
	if key != "" {
		if err := ValidateSpaceKey(key); err != nil {
			return FindPageByTitleResult{}, err
		}
	}
	resp, err := c.FindPageByTitle(ctx, strings.TrimSpace(args.Title), key)
	if err != nil {
		return FindPageByTitleResult{}, err
	}
	return FindPageByTitleResult{Pages: resp.Results, Count: len(resp.Results)}, nil
}

// GetPageMCP is the MCP wrapper for GetPage
func (c *Client) GetPageMCP(ctx context.Context, args GetPageArgs) (GetPageResult, error) {
	id := strings.TrimSpace(args.PageID)
	if err := ValidatePageID(id); err != nil {
		return GetPageResult{}, err
	}
	page, err := c.GetPage(ctx, id)
	if err != nil {
		return GetPageResult{}, err
	}
	return GetPageResult{Page: *page}, nil
}

// GetPageContentMCP is the MCP wrapper for GetPageContent. With format
// "markdown" the storage body is converted before it is returned.
func (c *Client) GetPageContentMCP(ctx context.Context, args GetPageContentArgs) (GetPageContentResult, error) {
	id := strings.TrimSpace(args.PageID)
	if err := ValidatePageID(id); err != nil {
		return GetPageContentResult{}, err
	}
	format := strings.ToLower(strings.TrimSpace(args.Format))
	if err := ValidateFormat(format); err != nil {
		return GetPageContentResult{}, err
	}
	if format == "" {
		format = FormatStorage
	}

	content, err := c.GetPageContent(ctx, id)
	if err != nil {
		return GetPageContentResult{}, err
	}

	body := content.Body.Value
	if format == FormatMarkdown {
		body, err = ToMarkdown(body)
		if err != nil {
			return GetPageContentResult{}, err
		}
	}
	return GetPageContentResult{PageID: content.PageID, Format: format, Content: body}, nil
}

// CreatePageMCP is the MCP wrapper for CreatePage
func (c *Client) CreatePageMCP(ctx context.Context, args CreatePageArgs) (CreatePageResult, error) {
	key := strings.TrimSpace(args.SpaceKey)
	if err := ValidateSpaceKey(key); err != nil {
		return CreatePageResult{}, err
	}
	if err := ValidateTitle(args.Title); err != nil {
		return CreatePageResult{}, err
	}
	parent := strings.TrimSpace(args.ParentID)
	if parent != "" {
		if err := ValidatePageID(parent); err != nil {
			return CreatePageResult{}, err
		}
	}

	page, err := c.CreatePage(ctx, CreatePageInput{
		SpaceKey: key,
		Title:    strings.TrimSpace(args.Title),
		Content:  args.Content,
		ParentID: parent,
	})
	if err != nil {
		return CreatePageResult{}, err
	}
	return CreatePageResult{Page: *page, URL: page.Links.WebUI}, nil
}

// UpdatePageMCP is the MCP wrapper for UpdatePage
func (c *Client) UpdatePageMCP(ctx context.Context, args UpdatePageArgs) (UpdatePageResult, error) {
	id := strings.TrimSpace(args.PageID)
	if err := ValidatePageID(id); err != nil {
		return UpdatePageResult{}, err
	}
	if args.Title != "" {
		if err := ValidateTitle(args.Title); err != nil {
			return UpdatePageResult{}, err
		}
	}
	if err := ValidateContent(args.Content); err != nil {
		return UpdatePageResult{}, err
	}
	if err := ValidateVersion(args.Version); err != nil {
		return UpdatePageResult{}, err
	}

	page, err := c.UpdatePage(ctx, UpdatePageInput{
		ID:      id,
		Title:   strings.TrimSpace(args.Title),
		Content: args.Content,
		Version: args.Version,
	})
	if err != nil {
		return UpdatePageResult{}, err
	}
	return UpdatePageResult{Page: *page, PreviousVersion: args.Version}, nil
}

// SearchContentMCP is the MCP wrapper for SearchContent
func (c *Client) SearchContentMCP(ctx context.Context, args SearchContentArgs) (SearchContentResult, error) {
	query := strings.TrimSpace(args.Query)
	if err := ValidateQuery(query); err != nil {
		return SearchContentResult{}, err
	}
	if err := validatePaging(args.Limit, args.Start); err != nil {
		return SearchContentResult{}, err
	}
	opts := ListOptions{Limit: args.Limit, Start: args.Start}
	if args.Cursor != "" {
		// Search always pages by offset, on both surfaces.
		n, err := strconv.Atoi(args.Cursor)
		if err != nil || n < 0 {
			return SearchContentResult{}, errs.NewValidationError("cursor", args.Cursor, "not a cursor returned by this server")
		}
		opts.Start = n
	}

	resp, err := c.SearchContent(ctx, query, opts)
	if err != nil {
		return SearchContentResult{}, err
	}
	return SearchContentResult{
		Query:      query,
		Results:    resp.Results,
		Base:       resp.Links.Base,
		Pagination: paginationOf(resp),
	}, nil
}

// ListLabelsMCP is the MCP wrapper for ListLabels
func (c *Client) ListLabelsMCP(ctx context.Context, args ListLabelsArgs) (ListLabelsResult, error) {
	id := strings.TrimSpace(args.PageID)
	if err := ValidatePageID(id); err != nil {
		return ListLabelsResult{}, err
	}
	opts, err := c.listOptions(args.Limit, args.Start, args.Cursor)
	if err != nil {
		return ListLabelsResult{}, err
	}
	resp, err := c.ListLabels(ctx, id, opts)
	if err != nil {
		return ListLabelsResult{}, err
	}
	return ListLabelsResult{PageID: id, Labels: resp.Results, Pagination: paginationOf(resp)}, nil
}

// AddLabelMCP is the MCP wrapper for AddLabel
func (c *Client) AddLabelMCP(ctx context.Context, args AddLabelArgs) (AddLabelResult, error) {
	id := strings.TrimSpace(args.PageID)
	if err := ValidatePageID(id); err != nil {
		return AddLabelResult{}, err
	}
	if err := ValidateLabel(args.Label); err != nil {
		return AddLabelResult{}, err
	}
	label, err := c.AddLabel(ctx, id, args.Label)
	if err != nil {
		return AddLabelResult{}, err
	}
	return AddLabelResult{PageID: id, Label: *label}, nil
}

// RemoveLabelMCP is the MCP wrapper for RemoveLabel
func (c *Client) RemoveLabelMCP(ctx context.Context, args RemoveLabelArgs) (RemoveLabelResult, error) {
	id := strings.TrimSpace(args.PageID)
	if err := ValidatePageID(id); err != nil {
		return RemoveLabelResult{}, err
	}
	if err := ValidateLabel(args.Label); err != nil {
		return RemoveLabelResult{}, err
	}
	if err := c.RemoveLabel(ctx, id, args.Label); err != nil {
		return RemoveLabelResult{}, err
	}
	return RemoveLabelResult{PageID: id, Label: NormalizeLabel(args.Label), Removed: true}, nil
}
