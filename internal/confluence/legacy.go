package confluence

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	errs "github.com/olgasafonova/confluence-mcp-server/internal/errors"
	"github.com/olgasafonova/confluence-mcp-server/metrics"
)

const (
	expandPage     = "body.storage,version,space,ancestors,history"
	expandPageList = "space,version,body.storage"
	expandPageMeta = "version,space"
)

// legacyService implements Service over /wiki/rest/api.
type legacyService struct {
	t *transport
}

func pagingParams(opts ListOptions) url.Values {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(opts.Limit))
	params.Set("start", strconv.Itoa(opts.Start))
	return params
}

func (s *legacyService) ListSpaces(ctx context.Context, opts ListOptions) (*PaginatedResponse[Space], error) {
	const op = "list_spaces"
	opts = opts.normalize()

	var list v1List[v1Space]
	if err := s.t.get(ctx, op, s.t.endpoint("/space", pagingParams(opts)), &list); err != nil {
		return nil, s.t.classify(op, err, errs.KindUnknown)
	}
	return v1ListPage(&list, opts, func(sp v1Space) Space { return sp.toSpace(s.t) }), nil
}

func (s *legacyService) GetSpace(ctx context.Context, key string) (*Space, error) {
	const op = "get_space"

	var sp v1Space
	if err := s.t.get(ctx, op, s.t.endpoint("/space/"+url.PathEscape(key), nil), &sp); err != nil {
		return nil, s.t.classify(op, err, errs.KindUnknown, notFoundAs(errs.KindSpaceNotFound))
	}
	space := sp.toSpace(s.t)
	return &space, nil
}

func (s *legacyService) ListPages(ctx context.Context, spaceKey, title string, opts ListOptions) (*PaginatedResponse[Page], error) {
	const op = "list_pages"
	opts = opts.normalize()

	params := pagingParams(opts)
	params.Set("cql", ListPagesCQL(spaceKey, title))
	params.Set("expand", expandPageList)

	var list v1List[v1Content]
	if err := s.t.get(ctx, op, s.t.endpoint("/content/search", params), &list); err != nil {
		return nil, s.t.classify(op, err, errs.KindUnknown, notFoundAs(errs.KindSpaceNotFound))
	}
	return v1ListPage(&list, opts, func(c v1Content) Page { return c.toPage(s.t) }), nil
}

func (s *legacyService) FindPageByTitle(ctx context.Context, title, spaceKey string) (*PaginatedResponse[Page], error) {
	return s.t.findPageByTitle(ctx, title, spaceKey)
}

func (s *legacyService) fetchPage(ctx context.Context, op, id, expand string) (*v1Content, error) {
	params := url.Values{}
	params.Set("expand", expand)

	var c v1Content
	if err := s.t.get(ctx, op, s.t.endpoint("/content/"+url.PathEscape(id), params), &c); err != nil {
		return nil, s.t.classify(op, err, errs.KindUnknown, notFoundAs(errs.KindPageNotFound))
	}
	return &c, nil
}

func (s *legacyService) GetPage(ctx context.Context, id string) (*Page, error) {
	const op = "get_page"

	c, err := s.fetchPage(ctx, op, id, expandPage)
	if err != nil {
		return nil, err
	}
	page := c.toPage(s.t)
	if isEmptyBody(page.Body) {
		return nil, s.t.fail(errs.KindEmptyContent, op, fmt.Sprintf("page %s has no storage content", id))
	}
	return &page, nil
}

func (s *legacyService) GetPageContent(ctx context.Context, id string) (*PageContent, error) {
	const op = "get_page_content"

	c, err := s.fetchPage(ctx, op, id, "body.storage")
	if err != nil {
		return nil, err
	}
	page := c.toPage(s.t)
	if isEmptyBody(page.Body) {
		return nil, s.t.fail(errs.KindEmptyContent, op, fmt.Sprintf("page %s has no storage content", id))
	}
	metrics.ContentSize.WithLabelValues(op).Observe(float64(len(page.Body.Value)))
	return &PageContent{PageID: page.ID, Body: page.Body}, nil
}

func (s *legacyService) CreatePage(ctx context.Context, in CreatePageInput) (*Page, error) {
	const op = "create_page"

	req := v1ContentWrite{
		Type:  "page",
		Title: in.Title,
		Space: v1SpaceRef{Key: in.SpaceKey},
		Body:  v1Body{Storage: &v1Storage{Value: in.Content, Representation: representationStorage}},
	}
	if in.ParentID != "" {
		req.Ancestors = []v1Ref{{ID: flexID(in.ParentID)}}
	}

	var created v1Content
	if err := s.t.do(ctx, http.MethodPost, op, s.t.endpoint("/content", nil), req, &created); err != nil {
		return nil, recordEdit(op, s.t.classify(op, err, errs.KindUnknown, notFoundAs(createNotFoundKind(in))))
	}
	metrics.ContentSize.WithLabelValues(op).Observe(float64(len(in.Content)))

	page := created.toPage(s.t)
	if page.Body.Value == "" {
		page.Body = Body{Value: in.Content, Representation: representationStorage}
	}
	return &page, recordEdit(op, nil)
}

// UpdatePage replaces the whole document, so it reads the current page first
// to carry over the space and, when none is given, the title. The read and the
// write are not atomic; a concurrent edit in between is caught by the server's
// version check.
func (s *legacyService) UpdatePage(ctx context.Context, in UpdatePageInput) (*Page, error) {
	const op = "update_page"

	current, err := s.fetchPage(ctx, op, in.ID, expandPageMeta)
	if err != nil {
		return nil, recordEdit(op, err)
	}
	if current.Version != nil && current.Version.Number != in.Version {
		metrics.VersionConflicts.WithLabelValues("preflight").Inc()
		return nil, recordEdit(op, s.t.fail(errs.KindVersionConflict, op,
			fmt.Sprintf("page %s is at version %d, expected %d; re-fetch and retry", in.ID, current.Version.Number, in.Version)))
	}

	title := in.Title
	if title == "" {
		title = current.Title
	}
	req := v1ContentWrite{
		ID:      in.ID,
		Type:    "page",
		Title:   title,
		Body:    v1Body{Storage: &v1Storage{Value: in.Content, Representation: representationStorage}},
		Version: &v1Version{Number: in.Version + 1, Message: revisionComment(s.t.now())},
	}
	if current.Type != "" {
		req.Type = current.Type
	}
	if current.Space != nil {
		req.Space = v1SpaceRef{Key: current.Space.Key}
	}

	var updated v1Content
	if err := s.t.do(ctx, http.MethodPut, op, s.t.endpoint("/content/"+url.PathEscape(in.ID), nil), req, &updated); err != nil {
		return nil, recordEdit(op, s.t.classify(op, err, errs.KindUnknown, staleVersion, notFoundAs(errs.KindPageNotFound)))
	}
	metrics.ContentSize.WithLabelValues(op).Observe(float64(len(in.Content)))

	page := updated.toPage(s.t)
	if page.Body.Value == "" {
		page.Body = Body{Value: in.Content, Representation: representationStorage}
	}
	return &page, recordEdit(op, nil)
}

func (s *legacyService) SearchContent(ctx context.Context, query string, opts ListOptions) (*PaginatedResponse[SearchResult], error) {
	return s.t.searchContent(ctx, query, opts)
}

func (s *legacyService) ListLabels(ctx context.Context, pageID string, opts ListOptions) (*PaginatedResponse[Label], error) {
	const op = "list_labels"
	opts = opts.normalize()

	var list v1List[v1Label]
	path := "/content/" + url.PathEscape(pageID) + "/label"
	if err := s.t.get(ctx, op, s.t.endpoint(path, pagingParams(opts)), &list); err != nil {
		return nil, s.t.classify(op, err, errs.KindUnknown, notFoundAs(errs.KindPageNotFound))
	}
	return v1ListPage(&list, opts, v1Label.toLabel), nil
}

func (s *legacyService) AddLabel(ctx context.Context, pageID, name string) (*Label, error) {
	const op = "add_label"
	name = NormalizeLabel(name)

	req := []v1LabelWrite{{Prefix: labelPrefixGlobal, Name: name}}
	var list v1List[v1Label]
	path := "/content/" + url.PathEscape(pageID) + "/label"
	if err := s.t.do(ctx, http.MethodPost, op, s.t.endpoint(path, nil), req, &list); err != nil {
		return nil, recordEdit(op, s.t.classify(op, err, errs.KindUnknown, duplicateLabel, notFoundAs(errs.KindPageNotFound)))
	}

	label := Label{Name: name, Prefix: labelPrefixGlobal}
	for _, l := range list.Results {
		if l.Name == name {
			label = l.toLabel()
			break
		}
	}
	return &label, recordEdit(op, nil)
}

func (s *legacyService) RemoveLabel(ctx context.Context, pageID, name string) error {
	const op = "remove_label"
	name = NormalizeLabel(name)

	path := "/content/" + url.PathEscape(pageID) + "/label/" + url.PathEscape(name)
	if err := s.t.do(ctx, http.MethodDelete, op, s.t.endpoint(path, nil), nil, nil); err != nil {
		return recordEdit(op, s.t.classify(op, err, errs.KindUnknown, labelOrPage))
	}
	return recordEdit(op, nil)
}
