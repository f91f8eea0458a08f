package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/olgasafonova/confluence-mcp-server/internal/base"
	errs "github.com/olgasafonova/confluence-mcp-server/internal/errors"
	"github.com/olgasafonova/confluence-mcp-server/metrics"
)

// upstreamError is an unclassified failure: a non-2xx response (Status > 0)
// or a request that produced no response at all (Status == 0, Err set).
type upstreamError struct {
	Status int
	Body   []byte
	Err    error
}

func (e *upstreamError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("request failed: %v", e.Err)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.message())
}

func (e *upstreamError) Unwrap() error {
	return e.Err
}

// message extracts the human-readable error text from either surface's
// error payload, falling back to the raw body or the status text.
func (e *upstreamError) message() string {
	if e.Status == 0 && e.Err != nil {
		return e.Err.Error()
	}

	var payload struct {
		Message string `json:"message"`
		Reason  string `json:"reason"`
		Errors  []struct {
			Code   string `json:"code"`
			Title  string `json:"title"`
			Detail string `json:"detail"`
		} `json:"errors"`
	}
	if json.Unmarshal(e.Body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if len(payload.Errors) > 0 {
			parts := make([]string, 0, len(payload.Errors))
			for _, pe := range payload.Errors {
				switch {
				case pe.Detail != "":
					parts = append(parts, pe.Detail)
				case pe.Title != "":
					parts = append(parts, pe.Title)
				case pe.Code != "":
					parts = append(parts, pe.Code)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "; ")
			}
		}
		if payload.Reason != "" {
			return payload.Reason
		}
	}

	if body := strings.TrimSpace(string(e.Body)); body != "" && !strings.HasPrefix(body, "{") {
		return base.Truncate(body, 200)
	}
	return http.StatusText(e.Status)
}

// rule picks a Kind for a failed response, or reports false to defer.
type rule func(status int, message string) (errs.Kind, bool)

func notFoundAs(kind errs.Kind) rule {
	return func(status int, _ string) (errs.Kind, bool) {
		return kind, status == http.StatusNotFound
	}
}

// labelOrPage resolves the ambiguous 404 of label removal by payload text.
func labelOrPage(status int, message string) (errs.Kind, bool) {
	if status != http.StatusNotFound {
		return "", false
	}
	if strings.Contains(strings.ToLower(message), "label") {
		return errs.KindLabelNotFound, true
	}
	return errs.KindPageNotFound, true
}

// duplicateLabel detects a rejected duplicate; upstream signals it only in text.
func duplicateLabel(status int, message string) (errs.Kind, bool) {
	if status < 400 || status >= 500 {
		return "", false
	}
	m := strings.ToLower(message)
	return errs.KindLabelExists, strings.Contains(m, "already exists") || strings.Contains(m, "duplicate")
}

// staleVersion maps upstream optimistic-concurrency rejections.
func staleVersion(status int, message string) (errs.Kind, bool) {
	if status == http.StatusConflict {
		return errs.KindVersionConflict, true
	}
	if status == http.StatusBadRequest && strings.Contains(strings.ToLower(message), "version") {
		return errs.KindVersionConflict, true
	}
	return "", false
}

// classify converts an upstream failure into a domain error. 401 and 403 are
// always INSUFFICIENT_PERMISSIONS; otherwise the first matching rule wins and
// fallback applies. Errors that are not upstream failures, including context
// cancellation, are returned unchanged.
func (t *transport) classify(op string, err error, fallback errs.Kind, rules ...rule) error {
	var ue *upstreamError
	if !errors.As(err, &ue) {
		return err
	}
	if errors.Is(ue.Err, context.Canceled) || errors.Is(ue.Err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, ue.Err)
	}

	msg := ue.message()
	kind := fallback
	switch ue.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = errs.KindInsufficientPermissions
	default:
		for _, r := range rules {
			if k, ok := r(ue.Status, msg); ok {
				kind = k
				break
			}
		}
	}

	if kind == errs.KindVersionConflict {
		metrics.VersionConflicts.WithLabelValues("server").Inc()
	}
	metrics.RecordAPIError(t.surface, op, string(kind))

	return &errs.Error{
		Kind:       kind,
		Op:         op,
		Message:    msg,
		StatusCode: ue.Status,
		Err:        ue.Err,
	}
}
