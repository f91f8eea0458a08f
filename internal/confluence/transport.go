package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/olgasafonova/confluence-mcp-server/internal/base"
	errs "github.com/olgasafonova/confluence-mcp-server/internal/errors"
	"github.com/olgasafonova/confluence-mcp-server/metrics"
)

const (
	legacyAPIPath = "/wiki/rest/api"
	typedAPIPath  = "/wiki/api/v2"
)

// transport is the authenticated handle shared by every operation of one
// surface. It is read-only after construction.
type transport struct {
	http    *base.Client
	siteURL string // https://{domain}
	apiBase string // siteURL + surface path
	surface string // "v1" or "v2", used as a metric label
	headers map[string]string
	logger  *slog.Logger
	now     func() time.Time
}

func (t *transport) endpoint(path string, params url.Values) string {
	return buildURL(t.apiBase, path, params)
}

// legacyEndpoint addresses the legacy surface regardless of t.surface; the
// typed API has no CQL search.
func (t *transport) legacyEndpoint(path string, params url.Values) string {
	return buildURL(t.siteURL+legacyAPIPath, path, params)
}

func buildURL(apiBase, path string, params url.Values) string {
	u := apiBase + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// browseURL turns a webui link into an absolute URL under /wiki.
func (t *transport) browseURL(webui string) string {
	if webui == "" {
		return ""
	}
	if strings.HasPrefix(webui, "http://") || strings.HasPrefix(webui, "https://") {
		return webui
	}
	if !strings.HasPrefix(webui, "/") {
		webui = "/" + webui
	}
	return t.siteURL + "/wiki" + webui
}

func (t *transport) get(ctx context.Context, op, rawURL string, out any) error {
	return t.do(ctx, http.MethodGet, op, rawURL, nil, out)
}

// do sends one request and decodes a 2xx JSON response into out. Non-2xx
// responses and transport failures come back as *upstreamError for the
// caller to classify; encoding problems are returned as plain errors.
func (t *transport) do(ctx context.Context, method, op, rawURL string, in, out any) error {
	var payload []byte
	if in != nil {
		var err error
		payload, err = json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", op, err)
		}
	}

	data, status, err := t.http.DoRequest(ctx, base.RequestConfig{
		Method:  method,
		URL:     rawURL,
		Body:    payload,
		Headers: t.headers,
		Surface: t.surface,
		Action:  op,
	})
	if err != nil {
		return &upstreamError{Err: err}
	}
	if status < 200 || status >= 300 {
		t.logger.Debug("Confluence request rejected",
			"op", op,
			"method", method,
			"status", status,
			"body", base.Truncate(string(data), 200))
		return &upstreamError{Status: status, Body: data}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}

// fail builds a domain error that did not come from an upstream response.
func (t *transport) fail(kind errs.Kind, op, message string) error {
	metrics.RecordAPIError(t.surface, op, string(kind))
	return errs.New(kind, op, message)
}

// recordEdit feeds the write-operation counter and passes err through.
func recordEdit(op string, err error) error {
	metrics.RecordEdit(op, err == nil)
	return err
}

// cursorFromNext extracts the opaque cursor parameter from a typed-surface next link.
func cursorFromNext(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return u.Query().Get("cursor")
}
