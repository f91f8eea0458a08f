package confluence

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	errs "github.com/olgasafonova/confluence-mcp-server/internal/errors"
	"github.com/olgasafonova/confluence-mcp-server/internal/infra"
	"github.com/olgasafonova/confluence-mcp-server/metrics"
)

// typedService implements Service over /wiki/api/v2. The typed API addresses
// spaces by numeric id, so space keys are resolved (and cached) first.
type typedService struct {
	t      *transport
	spaces *infra.Cache[string]
}

func cursorParams(opts ListOptions) url.Values {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(opts.Limit))
	if opts.Cursor != "" {
		params.Set("cursor", opts.Cursor)
	}
	return params
}

func (s *typedService) remember(sp v2Space) {
	if sp.Key == "" || sp.ID == "" {
		return
	}
	s.spaces.Set("space:"+sp.Key, string(sp.ID), SpaceIDCacheTTL)
	s.spaces.Set("spacekey:"+string(sp.ID), sp.Key, SpaceIDCacheTTL)
}

// knownKey returns the cached key for a space id, or "" if unknown.
func (s *typedService) knownKey(spaceID string) string {
	key, _ := s.spaces.Get("spacekey:" + spaceID)
	return key
}

func (s *typedService) lookupSpace(ctx context.Context, op, key string) (*v2Space, error) {
	params := url.Values{}
	params.Set("keys", key)
	params.Set("limit", "1")

	var list v2List[v2Space]
	if err := s.t.get(ctx, op, s.t.endpoint("/spaces", params), &list); err != nil {
		return nil, s.t.classify(op, err, errs.KindUnknown, notFoundAs(errs.KindSpaceNotFound))
	}
	for _, sp := range list.Results {
		if sp.Key == key {
			s.remember(sp)
			return &sp, nil
		}
	}
	return nil, s.t.fail(errs.KindSpaceNotFound, op, fmt.Sprintf("space %q not found", key))
}

func (s *typedService) spaceID(ctx context.Context, op, key string) (string, error) {
	if id, ok := s.spaces.Get("space:" + key); ok {
		return id, nil
	}
	sp, err := s.lookupSpace(ctx, op, key)
	if err != nil {
		return "", err
	}
	return string(sp.ID), nil
}

func (s *typedService) ListSpaces(ctx context.Context, opts ListOptions) (*PaginatedResponse[Space], error) {
	const op = "list_spaces"
	opts = opts.normalize()

	var list v2List[v2Space]
	if err := s.t.get(ctx, op, s.t.endpoint("/spaces", cursorParams(opts)), &list); err != nil {
		return nil, s.t.classify(op, err, errs.KindUnknown)
	}
	return v2ListPage(&list, opts, func(sp v2Space) Space {
		s.remember(sp)
		return sp.toSpace(s.t)
	}), nil
}

// GetSpace accepts a numeric space id or a space key.
func (s *typedService) GetSpace(ctx context.Context, keyOrID string) (*Space, error) {
	const op = "get_space"

	if !isNumeric(keyOrID) {
		sp, err := s.lookupSpace(ctx, op, keyOrID)
		if err != nil {
			return nil, err
		}
		space := sp.toSpace(s.t)
		return &space, nil
	}

	var sp v2Space
	if err := s.t.get(ctx, op, s.t.endpoint("/spaces/"+keyOrID, nil), &sp); err != nil {
		return nil, s.t.classify(op, err, errs.KindUnknown, notFoundAs(errs.KindSpaceNotFound))
	}
	s.remember(sp)
	space := sp.toSpace(s.t)
	return &space, nil
}

func (s *typedService) ListPages(ctx context.Context, spaceKey, title string, opts ListOptions) (*PaginatedResponse[Page], error) {
	const op = "list_pages"
	opts = opts.normalize()

	id, err := s.spaceID(ctx, op, spaceKey)
	if err != nil {
		return nil, err
	}

	params := cursorParams(opts)
	params.Set("body-format", representationStorage)
	if title != "" {
		params.Set("title", title)
	}

	var list v2List[v2Page]
	if err := s.t.get(ctx, op, s.t.endpoint("/spaces/"+id+"/pages", params), &list); err != nil {
		return nil, s.t.classify(op, err, errs.KindUnknown, notFoundAs(errs.KindSpaceNotFound))
	}
	return v2ListPage(&list, opts, func(p v2Page) Page { return p.toPage(s.t, spaceKey) }), nil
}

func (s *typedService) FindPageByTitle(ctx context.Context, title, spaceKey string) (*PaginatedResponse[Page], error) {
	return s.t.findPageByTitle(ctx, title, spaceKey)
}

func (s *typedService) fetchPage(ctx context.Context, op, id string) (*v2Page, error) {
	params := url.Values{}
	params.Set("body-format", representationStorage)

	var p v2Page
	if err := s.t.get(ctx, op, s.t.endpoint("/pages/"+url.PathEscape(id), params), &p); err != nil {
		return nil, s.t.classify(op, err, errs.KindUnknown, notFoundAs(errs.KindPageNotFound))
	}
	return &p, nil
}

func (s *typedService) GetPage(ctx context.Context, id string) (*Page, error) {
	const op = "get_page"

	p, err := s.fetchPage(ctx, op, id)
	if err != nil {
		return nil, err
	}
	page := p.toPage(s.t, s.knownKey(string(p.SpaceID)))
	if isEmptyBody(page.Body) {
		return nil, s.t.fail(errs.KindEmptyContent, op, fmt.Sprintf("page %s has no storage content", id))
	}
	return &page, nil
}

func (s *typedService) GetPageContent(ctx context.Context, id string) (*PageContent, error) {
	const op = "get_page_content"

	params := url.Values{}
	params.Set("body_format", representationStorage)

	var body v1Storage
	if err := s.t.get(ctx, op, s.t.endpoint("/pages/"+url.PathEscape(id)+"/body", params), &body); err != nil {
		return nil, s.t.classify(op, err, errs.KindUnknown, notFoundAs(errs.KindPageNotFound))
	}

	content := &PageContent{PageID: id, Body: Body{Value: body.Value, Representation: body.Representation}}
	if content.Body.Representation == "" {
		content.Body.Representation = representationStorage
	}
	if isEmptyBody(content.Body) {
		return nil, s.t.fail(errs.KindEmptyContent, op, fmt.Sprintf("page %s has no storage content", id))
	}
	metrics.ContentSize.WithLabelValues(op).Observe(float64(len(body.Value)))
	return content, nil
}

func (s *typedService) CreatePage(ctx context.Context, in CreatePageInput) (*Page, error) {
	const op = "create_page"

	spaceID, err := s.spaceID(ctx, op, in.SpaceKey)
	if err != nil {
		return nil, recordEdit(op, err)
	}

	req := v2PageWrite{
		SpaceID:  spaceID,
		Status:   "current",
		Title:    in.Title,
		ParentID: in.ParentID,
		Body:     v2BodyWrite{Representation: representationStorage, Value: in.Content},
	}

	var created v2Page
	if err := s.t.do(ctx, http.MethodPost, op, s.t.endpoint("/pages", nil), req, &created); err != nil {
		return nil, recordEdit(op, s.t.classify(op, err, errs.KindUnknown, notFoundAs(createNotFoundKind(in))))
	}
	metrics.ContentSize.WithLabelValues(op).Observe(float64(len(in.Content)))

	page := created.toPage(s.t, in.SpaceKey)
	if page.Body.Value == "" {
		page.Body = Body{Value: in.Content, Representation: representationStorage}
	}
	return &page, recordEdit(op, nil)
}

// UpdatePage writes without a prior read; the server enforces the version.
// The current page is read only when the title must be carried over.
func (s *typedService) UpdatePage(ctx context.Context, in UpdatePageInput) (*Page, error) {
	const op = "update_page"

	title := in.Title
	if title == "" {
		current, err := s.fetchPage(ctx, op, in.ID)
		if err != nil {
			return nil, recordEdit(op, err)
		}
		if current.Version != nil && current.Version.Number != in.Version {
			metrics.VersionConflicts.WithLabelValues("preflight").Inc()
			return nil, recordEdit(op, s.t.fail(errs.KindVersionConflict, op,
				fmt.Sprintf("page %s is at version %d, expected %d; re-fetch and retry", in.ID, current.Version.Number, in.Version)))
		}
		title = current.Title
	}

	req := v2PageWrite{
		ID:      in.ID,
		Status:  "current",
		Title:   title,
		Body:    v2BodyWrite{Representation: representationStorage, Value: in.Content},
		Version: &v2Version{Number: in.Version + 1, Message: revisionComment(s.t.now())},
	}

	var updated v2Page
	if err := s.t.do(ctx, http.MethodPut, op, s.t.endpoint("/pages/"+url.PathEscape(in.ID), nil), req, &updated); err != nil {
		return nil, recordEdit(op, s.t.classify(op, err, errs.KindUnknown, staleVersion, notFoundAs(errs.KindPageNotFound)))
	}
	metrics.ContentSize.WithLabelValues(op).Observe(float64(len(in.Content)))

	page := updated.toPage(s.t, s.knownKey(string(updated.SpaceID)))
	if page.Body.Value == "" {
		page.Body = Body{Value: in.Content, Representation: representationStorage}
	}
	return &page, recordEdit(op, nil)
}

func (s *typedService) SearchContent(ctx context.Context, query string, opts ListOptions) (*PaginatedResponse[SearchResult], error) {
	return s.t.searchContent(ctx, query, opts)
}

func (s *typedService) ListLabels(ctx context.Context, pageID string, opts ListOptions) (*PaginatedResponse[Label], error) {
	const op = "list_labels"
	opts = opts.normalize()

	var list v2List[v2Label]
	path := "/pages/" + url.PathEscape(pageID) + "/labels"
	if err := s.t.get(ctx, op, s.t.endpoint(path, cursorParams(opts)), &list); err != nil {
		return nil, s.t.classify(op, err, errs.KindUnknown, notFoundAs(errs.KindPageNotFound))
	}
	return v2ListPage(&list, opts, v2Label.toLabel), nil
}

func (s *typedService) AddLabel(ctx context.Context, pageID, name string) (*Label, error) {
	const op = "add_label"
	name = NormalizeLabel(name)

	var created v2Label
	path := "/pages/" + url.PathEscape(pageID) + "/labels"
	if err := s.t.do(ctx, http.MethodPost, op, s.t.endpoint(path, nil), v2LabelWrite{Name: name}, &created); err != nil {
		return nil, recordEdit(op, s.t.classify(op, err, errs.KindUnknown, duplicateLabel, notFoundAs(errs.KindPageNotFound)))
	}
	if created.Name == "" {
		created.Name = name
	}
	label := created.toLabel()
	return &label, recordEdit(op, nil)
}

func (s *typedService) RemoveLabel(ctx context.Context, pageID, name string) error {
	const op = "remove_label"
	name = NormalizeLabel(name)

	path := "/pages/" + url.PathEscape(pageID) + "/labels/" + url.PathEscape(name)
	if err := s.t.do(ctx, http.MethodDelete, op, s.t.endpoint(path, nil), nil, nil); err != nil {
		return recordEdit(op, s.t.classify(op, err, errs.KindUnknown, labelOrPage))
	}
	return recordEdit(op, nil)
}

// createNotFoundKind decides what a 404 on create refers to: the parent page
// when one was given, otherwise the space.
func createNotFoundKind(in CreatePageInput) errs.Kind {
	if in.ParentID != "" {
		return errs.KindPageNotFound
	}
	return errs.KindSpaceNotFound
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
