package confluence

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Wire shapes of the legacy /wiki/rest/api surface.

// flexID accepts ids sent as JSON numbers (spaces, labels) or strings (content).
type flexID string

func (f *flexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexID(n.String())
	return nil
}

type v1Links struct {
	Self    string `json:"self,omitempty"`
	Next    string `json:"next,omitempty"`
	Base    string `json:"base,omitempty"`
	Context string `json:"context,omitempty"`
	WebUI   string `json:"webui,omitempty"`
}

type v1List[T any] struct {
	Results []T     `json:"results"`
	Start   int     `json:"start"`
	Limit   int     `json:"limit"`
	Size    int     `json:"size"`
	Links   v1Links `json:"_links"`
}

type v1Space struct {
	ID     flexID  `json:"id"`
	Key    string  `json:"key"`
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Status string  `json:"status"`
	Links  v1Links `json:"_links"`
}

type v1User struct {
	AccountID string `json:"accountId"`
}

type v1Version struct {
	Number  int     `json:"number"`
	Message string  `json:"message,omitempty"`
	By      *v1User `json:"by,omitempty"`
	When    string  `json:"when,omitempty"`
}

type v1Storage struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type v1Body struct {
	Storage *v1Storage `json:"storage,omitempty"`
}

type v1Ref struct {
	ID flexID `json:"id"`
}

type v1History struct {
	CreatedBy   *v1User `json:"createdBy,omitempty"`
	CreatedDate string  `json:"createdDate,omitempty"`
}

type v1Content struct {
	ID        flexID     `json:"id"`
	Type      string     `json:"type"`
	Status    string     `json:"status"`
	Title     string     `json:"title"`
	Space     *v1Space   `json:"space,omitempty"`
	Version   *v1Version `json:"version,omitempty"`
	Body      *v1Body    `json:"body,omitempty"`
	Ancestors []v1Ref    `json:"ancestors,omitempty"`
	History   *v1History `json:"history,omitempty"`
	Links     v1Links    `json:"_links"`
}

type v1Label struct {
	ID     flexID `json:"id"`
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
}

type v1SearchResult struct {
	Content      *v1Content `json:"content,omitempty"`
	Title        string     `json:"title"`
	Excerpt      *string    `json:"excerpt"`
	URL          string     `json:"url"`
	EntityType   string     `json:"entityType"`
	LastModified string     `json:"lastModified"`
}

// Request bodies.

type v1SpaceRef struct {
	Key string `json:"key"`
}

type v1ContentWrite struct {
	ID        string     `json:"id,omitempty"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Space     v1SpaceRef `json:"space"`
	Body      v1Body     `json:"body"`
	Ancestors []v1Ref    `json:"ancestors,omitempty"`
	Version   *v1Version `json:"version,omitempty"`
}

type v1LabelWrite struct {
	Prefix string `json:"prefix"`
	Name   string `json:"name"`
}

func (c *v1Content) toPage(t *transport) Page {
	p := Page{
		ID:     string(c.ID),
		Title:  c.Title,
		Status: c.Status,
		Links: Links{
			Self:  c.Links.Self,
			WebUI: t.browseURL(c.Links.WebUI),
		},
	}
	if c.Space != nil {
		p.SpaceID = string(c.Space.ID)
		p.SpaceKey = c.Space.Key
	}
	if c.Version != nil {
		p.Version = Version{Number: c.Version.Number, Message: c.Version.Message}
	}
	if c.Body != nil && c.Body.Storage != nil {
		p.Body = Body{Value: c.Body.Storage.Value, Representation: c.Body.Storage.Representation}
		if p.Body.Representation == "" {
			p.Body.Representation = representationStorage
		}
	}
	if n := len(c.Ancestors); n > 0 {
		p.ParentID = string(c.Ancestors[n-1].ID)
	}
	if c.History != nil {
		p.CreatedAt = c.History.CreatedDate
		if c.History.CreatedBy != nil {
			p.AuthorID = c.History.CreatedBy.AccountID
		}
	}
	if p.AuthorID == "" && c.Version != nil && c.Version.By != nil && c.Version.Number == 1 {
		p.AuthorID = c.Version.By.AccountID
	}
	return p
}

func (s *v1Space) toSpace(t *transport) Space {
	return Space{
		ID:     string(s.ID),
		Key:    s.Key,
		Name:   s.Name,
		Type:   s.Type,
		Status: s.Status,
		Links: Links{
			Self:  s.Links.Self,
			WebUI: t.browseURL(s.Links.WebUI),
		},
	}
}

func (l v1Label) toLabel() Label {
	return Label{ID: string(l.ID), Name: l.Name, Prefix: l.Prefix}
}

// v1ListPage converts a legacy list page, deriving the next cursor from start + size.
func v1ListPage[W, T any](list *v1List[W], opts ListOptions, conv func(W) T) *PaginatedResponse[T] {
	out := make([]T, 0, len(list.Results))
	for _, r := range list.Results {
		out = append(out, conv(r))
	}
	out = truncate(out, opts.Limit)

	resp := &PaginatedResponse[T]{
		Results: out,
		Size:    len(out),
		Start:   opts.Start,
		Limit:   opts.Limit,
		Links: Links{
			Self: list.Links.Self,
			Next: list.Links.Next,
			Base: list.Links.Base,
		},
	}
	if list.Links.Next != "" {
		resp.NextCursor = strconv.Itoa(opts.Start + len(out))
	}
	return resp
}
