package confluence

// Wire shapes of the typed /wiki/api/v2 surface.

type v2Links struct {
	Next  string `json:"next,omitempty"`
	Base  string `json:"base,omitempty"`
	WebUI string `json:"webui,omitempty"`
}

type v2List[T any] struct {
	Results []T     `json:"results"`
	Links   v2Links `json:"_links"`
}

type v2Space struct {
	ID     flexID  `json:"id"`
	Key    string  `json:"key"`
	Name   string  `json:"name"`
	Type   string  `json:"type"`
	Status string  `json:"status"`
	Links  v2Links `json:"_links"`
}

type v2Version struct {
	Number    int    `json:"number"`
	Message   string `json:"message,omitempty"`
	CreatedAt string `json:"createdAt,omitempty"`
	AuthorID  string `json:"authorId,omitempty"`
}

type v2Body struct {
	Storage *v1Storage `json:"storage,omitempty"`
}

type v2Page struct {
	ID        flexID     `json:"id"`
	Status    string     `json:"status"`
	Title     string     `json:"title"`
	SpaceID   flexID     `json:"spaceId"`
	ParentID  flexID     `json:"parentId"`
	AuthorID  string     `json:"authorId"`
	CreatedAt string     `json:"createdAt"`
	Version   *v2Version `json:"version,omitempty"`
	Body      *v2Body    `json:"body,omitempty"`
	Links     v2Links    `json:"_links"`
}

type v2Label struct {
	ID     flexID `json:"id"`
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
}

// Request bodies.

type v2BodyWrite struct {
	Representation string `json:"representation"`
	Value          string `json:"value"`
}

type v2PageWrite struct {
	ID       string      `json:"id,omitempty"`
	SpaceID  string      `json:"spaceId,omitempty"`
	Status   string      `json:"status"`
	Title    string      `json:"title"`
	ParentID string      `json:"parentId,omitempty"`
	Body     v2BodyWrite `json:"body"`
	Version  *v2Version  `json:"version,omitempty"`
}

type v2LabelWrite struct {
	Name string `json:"name"`
}

func (p *v2Page) toPage(t *transport, spaceKey string) Page {
	page := Page{
		ID:        string(p.ID),
		Title:     p.Title,
		Status:    p.Status,
		SpaceID:   string(p.SpaceID),
		SpaceKey:  spaceKey,
		ParentID:  string(p.ParentID),
		AuthorID:  p.AuthorID,
		CreatedAt: p.CreatedAt,
		Links:     Links{WebUI: t.browseURL(p.Links.WebUI)},
	}
	if p.Version != nil {
		page.Version = Version{Number: p.Version.Number, Message: p.Version.Message}
	}
	if p.Body != nil && p.Body.Storage != nil {
		page.Body = Body{Value: p.Body.Storage.Value, Representation: p.Body.Storage.Representation}
		if page.Body.Representation == "" {
			page.Body.Representation = representationStorage
		}
	}
	return page
}

func (s *v2Space) toSpace(t *transport) Space {
	return Space{
		ID:     string(s.ID),
		Key:    s.Key,
		Name:   s.Name,
		Type:   s.Type,
		Status: s.Status,
		Links:  Links{WebUI: t.browseURL(s.Links.WebUI)},
	}
}

func (l v2Label) toLabel() Label {
	prefix := l.Prefix
	if prefix == "" {
		prefix = labelPrefixGlobal
	}
	return Label{ID: string(l.ID), Name: l.Name, Prefix: prefix}
}

// v2ListPage converts a typed-surface list page; the next cursor comes from the next link.
func v2ListPage[W, T any](list *v2List[W], opts ListOptions, conv func(W) T) *PaginatedResponse[T] {
	out := make([]T, 0, len(list.Results))
	for _, r := range list.Results {
		out = append(out, conv(r))
	}
	out = truncate(out, opts.Limit)

	return &PaginatedResponse[T]{
		Results:    out,
		Size:       len(out),
		Limit:      opts.Limit,
		Links:      Links{Next: list.Links.Next, Base: list.Links.Base},
		NextCursor: cursorFromNext(list.Links.Next),
	}
}
