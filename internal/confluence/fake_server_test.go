package confluence

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/olgasafonova/confluence-mcp-server/internal/base"
	"github.com/olgasafonova/confluence-mcp-server/internal/config"
)

// =============================================================================
// In-memory Confluence serving both API surfaces
// =============================================================================

const (
	testEmail = "agent@example.com"
	testToken = "test-api-token"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type fakeLabel struct {
	ID   int
	Name string
}

type fakePage struct {
	ID       int
	SpaceKey string
	Title    string
	Body     string
	Version  int
	Message  string
	ParentID int
	Labels   []fakeLabel
}

type fakeSpace struct {
	ID   int
	Key  string
	Name string
}

type fakeConfluence struct {
	mu       sync.Mutex
	base     string
	spaces   []*fakeSpace
	pages    map[int]*fakePage
	order    []int
	nextID   int
	queries  []string // CQL received by /content/search and /search
	requests []string // "METHOD path"

	// intercept, when set, sees every request first and may answer it.
	intercept func(w http.ResponseWriter, r *http.Request) bool
}

func newFakeConfluence() *fakeConfluence {
	return &fakeConfluence{
		spaces: []*fakeSpace{
			{ID: 98301, Key: "ENG", Name: "Engineering"},
			{ID: 98302, Key: "OPS", Name: "Operations"},
			{ID: 98303, Key: "HR", Name: "People"},
		},
		pages:  make(map[int]*fakePage),
		nextID: 1000,
	}
}

// seedPage stores a page directly, bypassing the API.
func (f *fakeConfluence) seedPage(spaceKey, title, body string) *fakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertPage(spaceKey, title, body, 0)
}

func (f *fakeConfluence) insertPage(spaceKey, title, body string, parent int) *fakePage {
	f.nextID++
	p := &fakePage{ID: f.nextID, SpaceKey: spaceKey, Title: title, Body: body, Version: 1, ParentID: parent}
	f.pages[p.ID] = p
	f.order = append(f.order, p.ID)
	return p
}

func (f *fakeConfluence) page(id int) *fakePage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pages[id]
}

func (f *fakeConfluence) requestCount(method, path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r == method+" "+path {
			n++
		}
	}
	return n
}

func (f *fakeConfluence) lastQuery() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queries) == 0 {
		return ""
	}
	return f.queries[len(f.queries)-1]
}

func (f *fakeConfluence) spaceByKey(key string) *fakeSpace {
	for _, s := range f.spaces {
		if s.Key == key {
			return s
		}
	}
	return nil
}

func (f *fakeConfluence) spaceByID(id int) *fakeSpace {
	for _, s := range f.spaces {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (f *fakeConfluence) pagesInOrder(keep func(*fakePage) bool) []*fakePage {
	var out []*fakePage
	for _, id := range f.order {
		if p := f.pages[id]; keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeConfluence) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.intercept != nil && f.intercept(w, r) {
		return
	}
	user, pass, ok := r.BasicAuth()
	if !ok || user != testEmail || pass != testToken {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"statusCode": 401, "message": "Client must be authenticated to access this resource."})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)

	switch {
	case strings.HasPrefix(r.URL.Path, legacyAPIPath+"/"):
		f.serveLegacy(w, r, pathParts(strings.TrimPrefix(r.URL.Path, legacyAPIPath)))
	case strings.HasPrefix(r.URL.Path, typedAPIPath+"/"):
		f.serveTyped(w, r, pathParts(strings.TrimPrefix(r.URL.Path, typedAPIPath)))
	default:
		http.NotFound(w, r)
	}
}

// =============================================================================
// Legacy surface
// =============================================================================

var (
	cqlSpace = regexp.MustCompile(`space\s*=\s*"((?:[^"\\]|\\.)*)"`)
	cqlTitle = regexp.MustCompile(`title\s*~\s*"((?:[^"\\]|\\.)*)"`)
	cqlText  = regexp.MustCompile(`^text\s*~\s*"((?:[^"\\]|\\.)*)"$`)
)

func cqlValue(re *regexp.Regexp, cql string) (string, bool) {
	m := re.FindStringSubmatch(cql)
	if m == nil {
		return "", false
	}
	v := strings.ReplaceAll(m[1], `\"`, `"`)
	return strings.ReplaceAll(v, `\\`, `\`), true
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func (f *fakeConfluence) serveLegacy(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case r.Method == http.MethodGet && match(parts, "space"):
		start, limit := offsetPaging(r)
		items, more := window(f.spaces, start, limit)
		results := make([]any, 0, len(items))
		for _, s := range items {
			results = append(results, f.legacySpace(s))
		}
		writeJSON(w, http.StatusOK, f.legacyList(results, start, limit, more, "/space"))

	case r.Method == http.MethodGet && match(parts, "space", "*"):
		s := f.spaceByKey(parts[1])
		if s == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"statusCode": 404, "message": "No space with key : " + parts[1]})
			return
		}
		writeJSON(w, http.StatusOK, f.legacySpace(s))

	case r.Method == http.MethodGet && match(parts, "content", "search"):
		cql := r.URL.Query().Get("cql")
		f.queries = append(f.queries, cql)
		key, _ := cqlValue(cqlSpace, cql)
		title, hasTitle := cqlValue(cqlTitle, cql)
		matches := f.pagesInOrder(func(p *fakePage) bool {
			return p.SpaceKey == key && (!hasTitle || containsFold(p.Title, title))
		})
		start, limit := offsetPaging(r)
		items, more := window(matches, start, limit)
		results := make([]any, 0, len(items))
		for _, p := range items {
			results = append(results, f.legacyContent(p, true))
		}
		writeJSON(w, http.StatusOK, f.legacyList(results, start, limit, more, "/content/search"))

	case r.Method == http.MethodGet && match(parts, "search"):
		f.serveSearch(w, r)

	case r.Method == http.MethodPost && match(parts, "content"):
		f.legacyCreate(w, r)

	case match(parts, "content", "*"):
		p := f.legacyPage(w, parts[1])
		if p == nil {
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, f.legacyContent(p, true))
		case http.MethodPut:
			f.legacyUpdate(w, r, p)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case match(parts, "content", "*", "label"):
		p := f.legacyPage(w, parts[1])
		if p == nil {
			return
		}
		switch r.Method {
		case http.MethodGet:
			start, limit := offsetPaging(r)
			items, more := window(p.Labels, start, limit)
			writeJSON(w, http.StatusOK, f.legacyList(legacyLabels(items), start, limit, more, "/content/"+parts[1]+"/label"))
		case http.MethodPost:
			var in []struct {
				Prefix string `json:"prefix"`
				Name   string `json:"name"`
			}
			if !decode(w, r, &in) {
				return
			}
			for _, l := range in {
				if hasLabel(p, l.Name) {
					writeJSON(w, http.StatusBadRequest, map[string]any{"statusCode": 400, "message": fmt.Sprintf("Label '%s' already exists on this content", l.Name)})
					return
				}
			}
			for _, l := range in {
				f.nextID++
				p.Labels = append(p.Labels, fakeLabel{ID: f.nextID, Name: l.Name})
			}
			writeJSON(w, http.StatusOK, f.legacyList(legacyLabels(p.Labels), 0, 200, false, "/content/"+parts[1]+"/label"))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case r.Method == http.MethodDelete && match(parts, "content", "*", "label", "*"):
		p := f.legacyPage(w, parts[1])
		if p == nil {
			return
		}
		if !removeLabel(p, parts[3]) {
			writeJSON(w, http.StatusNotFound, map[string]any{"statusCode": 404, "message": fmt.Sprintf("Label '%s' is not found on content %d", parts[3], p.ID)})
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeConfluence) legacyPage(w http.ResponseWriter, id string) *fakePage {
	n, _ := strconv.Atoi(id)
	p := f.pages[n]
	if p == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"statusCode": 404, "message": "No content found with id: ContentId{id=" + id + "}"})
	}
	return p
}

func (f *fakeConfluence) serveSearch(w http.ResponseWriter, r *http.Request) {
	cql := r.URL.Query().Get("cql")
	f.queries = append(f.queries, cql)
	if strings.Contains(cql, "INVALID") {
		writeJSON(w, http.StatusBadRequest, map[string]any{"statusCode": 400, "message": "Could not parse cql : " + cql})
		return
	}

	var matches []*fakePage
	if text, ok := cqlValue(cqlText, cql); ok {
		matches = f.pagesInOrder(func(p *fakePage) bool {
			return containsFold(p.Title, text) || containsFold(p.Body, text)
		})
	} else {
		key, hasSpace := cqlValue(cqlSpace, cql)
		title, hasTitle := cqlValue(cqlTitle, cql)
		matches = f.pagesInOrder(func(p *fakePage) bool {
			return (!hasSpace || p.SpaceKey == key) && (!hasTitle || containsFold(p.Title, title))
		})
	}

	start, limit := offsetPaging(r)
	items, more := window(matches, start, limit)
	results := make([]any, 0, len(items))
	for _, p := range items {
		res := map[string]any{
			"content":      f.legacyContent(p, false),
			"title":        p.Title,
			"url":          fmt.Sprintf("/spaces/%s/pages/%d", p.SpaceKey, p.ID),
			"entityType":   "content",
			"lastModified": "2026-03-01T10:00:00.000Z",
		}
		// Pages without a body come back without an excerpt.
		if p.Body != "" {
			res["excerpt"] = "…" + base.Truncate(p.Body, 40)
		} else {
			res["excerpt"] = nil
		}
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, f.legacyList(results, start, limit, more, "/search"))
}

func (f *fakeConfluence) legacyCreate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Type  string `json:"type"`
		Title string `json:"title"`
		Space struct {
			Key string `json:"key"`
		} `json:"space"`
		Body struct {
			Storage struct {
				Value string `json:"value"`
			} `json:"storage"`
		} `json:"body"`
		Ancestors []struct {
			ID string `json:"id"`
		} `json:"ancestors"`
	}
	if !decode(w, r, &in) {
		return
	}
	if f.spaceByKey(in.Space.Key) == nil {
		writeJSON(w, http.StatusNotFound, map[string]any{"statusCode": 404, "message": "No space with key : " + in.Space.Key})
		return
	}
	parent := 0
	if len(in.Ancestors) > 0 {
		parent, _ = strconv.Atoi(in.Ancestors[0].ID)
		if f.pages[parent] == nil {
			writeJSON(w, http.StatusNotFound, map[string]any{"statusCode": 404, "message": "No content found with id: " + in.Ancestors[0].ID})
			return
		}
	}
	if f.titleTaken(in.Space.Key, in.Title) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"statusCode": 400, "message": "A page with this title already exists: A page already exists with the same TITLE in this space"})
		return
	}
	p := f.insertPage(in.Space.Key, in.Title, in.Body.Storage.Value, parent)
	writeJSON(w, http.StatusOK, f.legacyContent(p, true))
}

func (f *fakeConfluence) legacyUpdate(w http.ResponseWriter, r *http.Request, p *fakePage) {
	var in struct {
		Title   string `json:"title"`
		Version struct {
			Number  int    `json:"number"`
			Message string `json:"message"`
		} `json:"version"`
		Body struct {
			Storage struct {
				Value string `json:"value"`
			} `json:"storage"`
		} `json:"body"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.Version.Number != p.Version+1 {
		writeJSON(w, http.StatusConflict, map[string]any{"statusCode": 409, "message": fmt.Sprintf("Version must be incremented on update. Current version is: %d", p.Version)})
		return
	}
	p.Title = in.Title
	p.Body = in.Body.Storage.Value
	p.Version = in.Version.Number
	p.Message = in.Version.Message
	writeJSON(w, http.StatusOK, f.legacyContent(p, true))
}

func (f *fakeConfluence) legacyList(results []any, start, limit int, more bool, path string) map[string]any {
	links := map[string]any{
		"base":    f.base + "/wiki",
		"context": "/wiki",
		"self":    f.base + legacyAPIPath + path,
	}
	if more {
		links["next"] = fmt.Sprintf("%s?start=%d&limit=%d", legacyAPIPath+path, start+len(results), limit)
	}
	return map[string]any{
		"results": results,
		"start":   start,
		"limit":   limit,
		"size":    len(results),
		"_links":  links,
	}
}

func (f *fakeConfluence) legacySpace(s *fakeSpace) map[string]any {
	return map[string]any{
		"id":     s.ID,
		"key":    s.Key,
		"name":   s.Name,
		"type":   "global",
		"status": "current",
		"_links": map[string]any{
			"webui": "/spaces/" + s.Key,
			"self":  f.base + legacyAPIPath + "/space/" + s.Key,
		},
	}
}

func (f *fakeConfluence) legacyContent(p *fakePage, withBody bool) map[string]any {
	c := map[string]any{
		"id":     strconv.Itoa(p.ID),
		"type":   "page",
		"status": "current",
		"title":  p.Title,
		"space":  f.legacySpace(f.spaceByKey(p.SpaceKey)),
		"version": map[string]any{
			"number":  p.Version,
			"message": p.Message,
			"by":      map[string]any{"accountId": "557058:author"},
			"when":    "2026-03-01T10:00:00.000Z",
		},
		"history": map[string]any{
			"createdBy":   map[string]any{"accountId": "557058:author"},
			"createdDate": "2026-01-02T03:04:05.000Z",
		},
		"_links": map[string]any{
			"webui": fmt.Sprintf("/spaces/%s/pages/%d", p.SpaceKey, p.ID),
			"self":  fmt.Sprintf("%s%s/content/%d", f.base, legacyAPIPath, p.ID),
		},
	}
	if withBody {
		c["body"] = map[string]any{"storage": map[string]any{"value": p.Body, "representation": "storage"}}
	}
	if p.ParentID != 0 {
		c["ancestors"] = []any{map[string]any{"id": strconv.Itoa(p.ParentID)}}
	}
	return c
}

func legacyLabels(labels []fakeLabel) []any {
	out := make([]any, 0, len(labels))
	for _, l := range labels {
		out = append(out, map[string]any{"prefix": "global", "name": l.Name, "id": l.ID})
	}
	return out
}

// =============================================================================
// Typed surface
// =============================================================================

func (f *fakeConfluence) serveTyped(w http.ResponseWriter, r *http.Request, parts []string) {
	switch {
	case r.Method == http.MethodGet && match(parts, "spaces"):
		spaces := f.spaces
		if keys := r.URL.Query().Get("keys"); keys != "" {
			spaces = nil
			for _, k := range strings.Split(keys, ",") {
				if s := f.spaceByKey(k); s != nil {
					spaces = append(spaces, s)
				}
			}
		}
		offset, limit := cursorPaging(r)
		items, more := window(spaces, offset, limit)
		results := make([]any, 0, len(items))
		for _, s := range items {
			results = append(results, typedSpace(s))
		}
		writeJSON(w, http.StatusOK, typedList(results, offset, limit, more, "/spaces"))

	case r.Method == http.MethodGet && match(parts, "spaces", "*"):
		id, _ := strconv.Atoi(parts[1])
		s := f.spaceByID(id)
		if s == nil {
			writeJSON(w, http.StatusNotFound, typedError(404, "NOT_FOUND", "Space not found"))
			return
		}
		writeJSON(w, http.StatusOK, typedSpace(s))

	case r.Method == http.MethodGet && match(parts, "spaces", "*", "pages"):
		id, _ := strconv.Atoi(parts[1])
		s := f.spaceByID(id)
		if s == nil {
			writeJSON(w, http.StatusNotFound, typedError(404, "NOT_FOUND", "Space not found"))
			return
		}
		title := r.URL.Query().Get("title")
		matches := f.pagesInOrder(func(p *fakePage) bool {
			return p.SpaceKey == s.Key && (title == "" || p.Title == title)
		})
		offset, limit := cursorPaging(r)
		items, more := window(matches, offset, limit)
		withBody := r.URL.Query().Get("body-format") == "storage"
		results := make([]any, 0, len(items))
		for _, p := range items {
			results = append(results, f.typedPage(p, withBody))
		}
		writeJSON(w, http.StatusOK, typedList(results, offset, limit, more, "/spaces/"+parts[1]+"/pages"))

	case r.Method == http.MethodPost && match(parts, "pages"):
		f.typedCreate(w, r)

	case match(parts, "pages", "*"):
		p := f.typedPageOr404(w, parts[1])
		if p == nil {
			return
		}
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, f.typedPage(p, r.URL.Query().Get("body-format") == "storage"))
		case http.MethodPut:
			f.typedUpdate(w, r, p)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case r.Method == http.MethodGet && match(parts, "pages", "*", "body"):
		p := f.typedPageOr404(w, parts[1])
		if p == nil {
			return
		}
		if r.URL.Query().Get("body_format") != "storage" {
			writeJSON(w, http.StatusBadRequest, typedError(400, "INVALID_REQUEST_PARAMETER", "body_format is required"))
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"value": p.Body, "representation": "storage"})

	case match(parts, "pages", "*", "labels"):
		p := f.typedPageOr404(w, parts[1])
		if p == nil {
			return
		}
		switch r.Method {
		case http.MethodGet:
			offset, limit := cursorPaging(r)
			items, more := window(p.Labels, offset, limit)
			results := make([]any, 0, len(items))
			for _, l := range items {
				results = append(results, typedLabel(l))
			}
			writeJSON(w, http.StatusOK, typedList(results, offset, limit, more, "/pages/"+parts[1]+"/labels"))
		case http.MethodPost:
			var in struct {
				Name string `json:"name"`
			}
			if !decode(w, r, &in) {
				return
			}
			if hasLabel(p, in.Name) {
				writeJSON(w, http.StatusBadRequest, typedError(400, "INVALID_REQUEST_PARAMETER", "Label already exists on this page"))
				return
			}
			f.nextID++
			l := fakeLabel{ID: f.nextID, Name: in.Name}
			p.Labels = append(p.Labels, l)
			writeJSON(w, http.StatusOK, typedLabel(l))
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}

	case r.Method == http.MethodDelete && match(parts, "pages", "*", "labels", "*"):
		p := f.typedPageOr404(w, parts[1])
		if p == nil {
			return
		}
		if !removeLabel(p, parts[3]) {
			writeJSON(w, http.StatusNotFound, typedError(404, "NOT_FOUND", "Label not found on page"))
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeConfluence) typedPageOr404(w http.ResponseWriter, id string) *fakePage {
	n, _ := strconv.Atoi(id)
	p := f.pages[n]
	if p == nil {
		writeJSON(w, http.StatusNotFound, typedError(404, "NOT_FOUND", "Page not found"))
	}
	return p
}

func (f *fakeConfluence) typedCreate(w http.ResponseWriter, r *http.Request) {
	var in struct {
		SpaceID  string `json:"spaceId"`
		Status   string `json:"status"`
		Title    string `json:"title"`
		ParentID string `json:"parentId"`
		Body     struct {
			Representation string `json:"representation"`
			Value          string `json:"value"`
		} `json:"body"`
	}
	if !decode(w, r, &in) {
		return
	}
	sid, _ := strconv.Atoi(in.SpaceID)
	s := f.spaceByID(sid)
	if s == nil {
		writeJSON(w, http.StatusNotFound, typedError(404, "NOT_FOUND", "Space not found"))
		return
	}
	parent := 0
	if in.ParentID != "" {
		parent, _ = strconv.Atoi(in.ParentID)
		if f.pages[parent] == nil {
			writeJSON(w, http.StatusNotFound, typedError(404, "NOT_FOUND", "Parent page not found"))
			return
		}
	}
	if in.Body.Representation != "storage" {
		writeJSON(w, http.StatusBadRequest, typedError(400, "INVALID_REQUEST_PARAMETER", "unsupported representation"))
		return
	}
	if f.titleTaken(s.Key, in.Title) {
		writeJSON(w, http.StatusBadRequest, typedError(400, "INVALID_MESSAGE", "A page with this title already exists"))
		return
	}
	p := f.insertPage(s.Key, in.Title, in.Body.Value, parent)
	writeJSON(w, http.StatusOK, f.typedPage(p, true))
}

func (f *fakeConfluence) typedUpdate(w http.ResponseWriter, r *http.Request, p *fakePage) {
	var in struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Title   string `json:"title"`
		Version struct {
			Number  int    `json:"number"`
			Message string `json:"message"`
		} `json:"version"`
		Body struct {
			Value string `json:"value"`
		} `json:"body"`
	}
	if !decode(w, r, &in) {
		return
	}
	if in.Title == "" {
		writeJSON(w, http.StatusBadRequest, typedError(400, "INVALID_REQUEST_PARAMETER", "title is required"))
		return
	}
	if in.Version.Number != p.Version+1 {
		writeJSON(w, http.StatusConflict, typedError(409, "CONFLICT",
			fmt.Sprintf("Version must be incremented on update. Current version is: %d", p.Version)))
		return
	}
	p.Title = in.Title
	p.Body = in.Body.Value
	p.Version = in.Version.Number
	p.Message = in.Version.Message
	writeJSON(w, http.StatusOK, f.typedPage(p, true))
}

func typedList(results []any, offset, limit int, more bool, path string) map[string]any {
	links := map[string]any{"base": ""}
	if more {
		links["next"] = fmt.Sprintf("%s%s?cursor=off-%d&limit=%d", typedAPIPath, path, offset+len(results), limit)
	}
	return map[string]any{"results": results, "_links": links}
}

func typedSpace(s *fakeSpace) map[string]any {
	return map[string]any{
		"id":     strconv.Itoa(s.ID),
		"key":    s.Key,
		"name":   s.Name,
		"type":   "global",
		"status": "current",
		"_links": map[string]any{"webui": "/spaces/" + s.Key},
	}
}

func (f *fakeConfluence) typedPage(p *fakePage, withBody bool) map[string]any {
	s := f.spaceByKey(p.SpaceKey)
	page := map[string]any{
		"id":        strconv.Itoa(p.ID),
		"status":    "current",
		"title":     p.Title,
		"spaceId":   strconv.Itoa(s.ID),
		"authorId":  "557058:author",
		"createdAt": "2026-01-02T03:04:05.000Z",
		"version": map[string]any{
			"number":    p.Version,
			"message":   p.Message,
			"createdAt": "2026-03-01T10:00:00.000Z",
			"authorId":  "557058:author",
		},
		"_links": map[string]any{"webui": fmt.Sprintf("/spaces/%s/pages/%d", p.SpaceKey, p.ID)},
	}
	if p.ParentID != 0 {
		page["parentId"] = strconv.Itoa(p.ParentID)
	}
	if withBody {
		page["body"] = map[string]any{"storage": map[string]any{"value": p.Body, "representation": "storage"}}
	}
	return page
}

func typedLabel(l fakeLabel) map[string]any {
	return map[string]any{"id": strconv.Itoa(l.ID), "name": l.Name, "prefix": "global"}
}

func typedError(status int, code, title string) map[string]any {
	return map[string]any{
		"errors": []any{map[string]any{"status": status, "code": code, "title": title}},
	}
}

// =============================================================================
// Helpers
// =============================================================================

func (f *fakeConfluence) titleTaken(spaceKey, title string) bool {
	for _, p := range f.pages {
		if p.SpaceKey == spaceKey && p.Title == title {
			return true
		}
	}
	return false
}

func hasLabel(p *fakePage, name string) bool {
	for _, l := range p.Labels {
		if l.Name == name {
			return true
		}
	}
	return false
}

func removeLabel(p *fakePage, name string) bool {
	for i, l := range p.Labels {
		if l.Name == name {
			p.Labels = append(p.Labels[:i], p.Labels[i+1:]...)
			return true
		}
	}
	return false
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

func pathParts(path string) []string {
	return strings.Split(strings.Trim(path, "/"), "/")
}

// match compares path segments; "*" matches any single segment.
func match(parts []string, pattern ...string) bool {
	if len(parts) != len(pattern) {
		return false
	}
	for i, p := range pattern {
		if p != "*" && p != parts[i] {
			return false
		}
	}
	return true
}

func offsetPaging(r *http.Request) (start, limit int) {
	start, _ = strconv.Atoi(r.URL.Query().Get("start"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 25
	}
	return start, limit
}

func cursorPaging(r *http.Request) (offset, limit int) {
	if c := r.URL.Query().Get("cursor"); c != "" {
		offset, _ = strconv.Atoi(strings.TrimPrefix(c, "off-"))
	}
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 25
	}
	return offset, limit
}

func window[T any](all []T, start, limit int) ([]T, bool) {
	if start >= len(all) {
		return nil, false
	}
	end := start + limit
	if end >= len(all) {
		return all[start:], false
	}
	return all[start:end], true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"statusCode": 400, "message": "malformed JSON: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// =============================================================================
// Client wiring
// =============================================================================

func testConfig(domain string, version config.APIVersion) *config.Config {
	cfg := config.Default()
	cfg.Confluence.Domain = domain
	cfg.Confluence.Email = testEmail
	cfg.Confluence.APIToken = testToken
	cfg.Confluence.APIVersion = version
	cfg.Client.Timeout = 5 * time.Second
	cfg.Client.MaxRetries = 0
	return cfg
}

func newTestClient(t *testing.T, domain string, version config.APIVersion, opts ...Option) *Client {
	t.Helper()
	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return fixedNow }),
		WithBaseOptions(base.WithBackoff(func(int) time.Duration { return 0 })),
	}, opts...)

	c, err := New(testConfig(domain, version), opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(c.Close)
	return c
}

// newServer serves f and returns its URL.
func newServer(t *testing.T, f *fakeConfluence) string {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	f.base = srv.URL
	return srv.URL
}

// setup starts a fake Confluence and a client bound to it.
func setup(t *testing.T, version config.APIVersion) (*Client, *fakeConfluence) {
	t.Helper()
	f := newFakeConfluence()
	return newTestClient(t, newServer(t, f), version), f
}

var bothSurfaces = []config.APIVersion{config.APIv1, config.APIv2}
