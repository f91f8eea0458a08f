package confluence

import (
	"context"
	"net/url"
	"strconv"

	errs "github.com/olgasafonova/confluence-mcp-server/internal/errors"
)

// CQL search runs against the legacy /search endpoint on both surfaces.

func (t *transport) runCQL(ctx context.Context, op, cql string, opts ListOptions, expand string) (*v1List[v1SearchResult], error) {
	params := url.Values{}
	params.Set("cql", cql)
	params.Set("limit", strconv.Itoa(opts.Limit))
	if opts.Start > 0 {
		params.Set("start", strconv.Itoa(opts.Start))
	}
	if expand != "" {
		params.Set("expand", expand)
	}

	var list v1List[v1SearchResult]
	if err := t.get(ctx, op, t.legacyEndpoint("/search", params), &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (t *transport) searchContent(ctx context.Context, query string, opts ListOptions) (*PaginatedResponse[SearchResult], error) {
	const op = "search"
	opts = opts.normalize()

	list, err := t.runCQL(ctx, op, SearchCQL(query), opts, "")
	if err != nil {
		return nil, t.classify(op, err, errs.KindSearchFailed)
	}

	results := make([]SearchResult, 0, len(list.Results))
	for _, r := range list.Results {
		results = append(results, t.toSearchResult(r))
	}
	results = truncate(results, opts.Limit)

	apiBase := list.Links.Base
	if apiBase == "" {
		apiBase = t.siteURL + "/wiki"
	}
	resp := &PaginatedResponse[SearchResult]{
		Results: results,
		Size:    len(results),
		Start:   opts.Start,
		Limit:   opts.Limit,
		Links:   Links{Next: list.Links.Next, Base: apiBase},
	}
	if list.Links.Next != "" {
		resp.NextCursor = strconv.Itoa(opts.Start + len(results))
	}
	return resp, nil
}

func (t *transport) toSearchResult(r v1SearchResult) SearchResult {
	sr := SearchResult{
		Title:        r.Title,
		Type:         r.EntityType,
		LastModified: r.LastModified,
	}
	if r.Excerpt != nil {
		sr.Excerpt = *r.Excerpt
	}

	webui := r.URL
	if c := r.Content; c != nil {
		sr.ID = string(c.ID)
		sr.Type = c.Type
		sr.Status = c.Status
		if c.Title != "" {
			sr.Title = c.Title
		}
		if c.Links.WebUI != "" {
			webui = c.Links.WebUI
		}
	}
	sr.URL = t.browseURL(webui)
	return sr
}

// findPageByTitle returns up to FindByTitleLimit pages whose title contains
// title, in server order.
func (t *transport) findPageByTitle(ctx context.Context, title, spaceKey string) (*PaginatedResponse[Page], error) {
	const op = "find_page_by_title"
	opts := ListOptions{Limit: FindByTitleLimit}

	list, err := t.runCQL(ctx, op, FindByTitleCQL(title, spaceKey), opts, "content.space,content.version")
	if err != nil {
		return nil, t.classify(op, err, errs.KindSearchFailed)
	}

	pages := make([]Page, 0, len(list.Results))
	for _, r := range list.Results {
		if r.Content == nil {
			continue
		}
		pages = append(pages, r.Content.toPage(t))
	}
	pages = truncate(pages, opts.Limit)

	return &PaginatedResponse[Page]{
		Results: pages,
		Size:    len(pages),
		Limit:   opts.Limit,
		Links:   Links{Next: list.Links.Next, Base: list.Links.Base},
	}, nil
}
