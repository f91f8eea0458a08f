package confluence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	errs "github.com/olgasafonova/confluence-mcp-server/internal/errors"
)

func TestUpstreamError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *upstreamError
		want string
	}{
		{
			name: "legacy message",
			err:  &upstreamError{Status: 404, Body: []byte(`{"statusCode":404,"message":"No content found"}`)},
			want: "No content found",
		},
		{
			name: "typed detail",
			err:  &upstreamError{Status: 409, Body: []byte(`{"errors":[{"status":409,"code":"CONFLICT","title":"Conflict","detail":"stale version"}]}`)},
			want: "stale version",
		},
		{
			name: "typed title and code",
			err:  &upstreamError{Status: 400, Body: []byte(`{"errors":[{"title":"Bad label"},{"code":"INVALID"}]}`)},
			want: "Bad label; INVALID",
		},
		{
			name: "reason",
			err:  &upstreamError{Status: 400, Body: []byte(`{"reason":"Bad Request"}`)},
			want: "Bad Request",
		},
		{
			name: "plain text",
			err:  &upstreamError{Status: 502, Body: []byte("  gateway down \n")},
			want: "gateway down",
		},
		{
			name: "empty body",
			err:  &upstreamError{Status: 503},
			want: "Service Unavailable",
		},
		{
			name: "unrecognized JSON",
			err:  &upstreamError{Status: 500, Body: []byte(`{"oops":true}`)},
			want: "Internal Server Error",
		},
		{
			name: "network",
			err:  &upstreamError{Err: errors.New("dial tcp: connection refused")},
			want: "dial tcp: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.message(); got != tt.want {
				t.Errorf("message() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRules(t *testing.T) {
	tests := []struct {
		name     string
		rule     rule
		status   int
		message  string
		wantKind errs.Kind
		wantOK   bool
	}{
		{"not found", notFoundAs(errs.KindSpaceNotFound), 404, "", errs.KindSpaceNotFound, true},
		{"not found ignores 400", notFoundAs(errs.KindSpaceNotFound), 400, "", errs.KindSpaceNotFound, false},
		{"label missing", labelOrPage, 404, "Label 'x' is not found", errs.KindLabelNotFound, true},
		{"page missing", labelOrPage, 404, "No content found with id: 7", errs.KindPageNotFound, true},
		{"label rule ignores 400", labelOrPage, 400, "label", "", false},
		{"duplicate", duplicateLabel, 400, "Label already exists", errs.KindLabelExists, true},
		{"duplicate word", duplicateLabel, 409, "Duplicate label", errs.KindLabelExists, true},
		{"other 400", duplicateLabel, 400, "invalid name", errs.KindLabelExists, false},
		{"duplicate on 500", duplicateLabel, 500, "already exists", "", false},
		{"conflict", staleVersion, 409, "", errs.KindVersionConflict, true},
		{"version 400", staleVersion, 400, "Version must be incremented", errs.KindVersionConflict, true},
		{"other 400", staleVersion, 400, "title required", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, ok := tt.rule(tt.status, tt.message)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", kind, tt.wantKind)
			}
		})
	}
}

func testTransport() *transport {
	return &transport{
		surface: "v1",
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClassify(t *testing.T) {
	tr := testTransport()

	tests := []struct {
		name     string
		err      error
		fallback errs.Kind
		rules    []rule
		want     errs.Kind
	}{
		{"401", &upstreamError{Status: 401}, errs.KindSearchFailed, nil, errs.KindInsufficientPermissions},
		{"403 beats rules", &upstreamError{Status: 403}, errs.KindUnknown, []rule{notFoundAs(errs.KindPageNotFound)}, errs.KindInsufficientPermissions},
		{"first rule wins", &upstreamError{Status: 404, Body: []byte(`{"message":"label gone"}`)}, errs.KindUnknown,
			[]rule{labelOrPage, notFoundAs(errs.KindSpaceNotFound)}, errs.KindLabelNotFound},
		{"fallback", &upstreamError{Status: 500}, errs.KindSearchFailed, []rule{notFoundAs(errs.KindPageNotFound)}, errs.KindSearchFailed},
		{"network error", &upstreamError{Err: errors.New("reset")}, errs.KindUnknown, nil, errs.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tr.classify("op", tt.err, tt.fallback, tt.rules...)
			var de *errs.Error
			if !errors.As(err, &de) {
				t.Fatalf("classify() = %T, want *errors.Error", err)
			}
			if de.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", de.Kind, tt.want)
			}
			if de.Op != "op" {
				t.Errorf("Op = %q", de.Op)
			}
		})
	}
}

func TestClassify_PassThrough(t *testing.T) {
	tr := testTransport()

	plain := fmt.Errorf("decode get_page response: %w", errors.New("bad json"))
	if got := tr.classify("get_page", plain, errs.KindUnknown); got != plain {
		t.Errorf("non-upstream error changed: %v", got)
	}

	canceled := tr.classify("get_page", &upstreamError{Err: context.Canceled}, errs.KindUnknown)
	if !errors.Is(canceled, context.Canceled) {
		t.Errorf("canceled error lost: %v", canceled)
	}
	if errs.IsKind(canceled, errs.KindUnknown) {
		t.Error("canceled request must not be classified")
	}
}

func TestClassify_KeepsStatus(t *testing.T) {
	tr := testTransport()
	err := tr.classify("get_space", &upstreamError{Status: 404, Body: []byte(`{"message":"No space"}`)}, errs.KindUnknown, notFoundAs(errs.KindSpaceNotFound))

	var de *errs.Error
	if !errors.As(err, &de) {
		t.Fatalf("classify() = %T", err)
	}
	if de.StatusCode != 404 || de.Message != "No space" {
		t.Errorf("error = %+v", de)
	}
}
