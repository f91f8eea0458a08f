package tools

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/olgasafonova/confluence-mcp-server/internal/confluence"
	errs "github.com/olgasafonova/confluence-mcp-server/internal/errors"
	"github.com/olgasafonova/confluence-mcp-server/metrics"
	"github.com/olgasafonova/confluence-mcp-server/tracing"
)

// HandlerRegistry provides type-safe tool registration by mapping
// tool names to their concrete handler implementations.
type HandlerRegistry struct {
	client *confluence.Client
	logger *slog.Logger
}

// NewHandlerRegistry creates a new handler registry.
func NewHandlerRegistry(client *confluence.Client, logger *slog.Logger) *HandlerRegistry {
	return &HandlerRegistry{
		client: client,
		logger: logger,
	}
}

// RegisterAll registers all tools with the MCP server.
func (h *HandlerRegistry) RegisterAll(server *mcp.Server) {
	registered := 0
	for _, spec := range AllTools {
		if h.registerByName(server, spec) {
			registered++
		}
	}
	h.logger.Info("Registered all tools", "count", registered, "api_version", h.client.Version())
}

// registerByName dispatches to the correct typed registration function.
func (h *HandlerRegistry) registerByName(server *mcp.Server, spec ToolSpec) bool {
	tool := h.buildTool(spec)
	c := h.client

	switch spec.Method {
	// Spaces
	case "ListSpaces":
		register(h, server, tool, spec, c.ListSpacesMCP)
	case "GetSpace":
		register(h, server, tool, spec, c.GetSpaceMCP)

	// Pages
	case "ListPages":
		register(h, server, tool, spec, c.ListPagesMCP)
	case "FindPageByTitle":
		register(h, server, tool, spec, c.FindPageByTitleMCP)
	case "GetPage":
		register(h, server, tool, spec, c.GetPageMCP)
	case "GetPageContent":
		register(h, server, tool, spec, c.GetPageContentMCP)
	case "CreatePage":
		register(h, server, tool, spec, c.CreatePageMCP)
	case "UpdatePage":
		register(h, server, tool, spec, c.UpdatePageMCP)

	// Search
	case "SearchContent":
		register(h, server, tool, spec, c.SearchContentMCP)

	// Labels
	case "ListLabels":
		register(h, server, tool, spec, c.ListLabelsMCP)
	case "AddLabel":
		register(h, server, tool, spec, c.AddLabelMCP)
	case "RemoveLabel":
		register(h, server, tool, spec, c.RemoveLabelMCP)

	default:
		h.logger.Error("Unknown method, tool not registered", "method", spec.Method, "tool", spec.Name)
		return false
	}
	return true
}

// buildTool creates an mcp.Tool from a ToolSpec.
func (h *HandlerRegistry) buildTool(spec ToolSpec) *mcp.Tool {
	annotations := &mcp.ToolAnnotations{
		Title:          spec.Title,
		ReadOnlyHint:   spec.ReadOnly,
		IdempotentHint: spec.Idempotent,
	}
	if spec.Destructive {
		annotations.DestructiveHint = ptr(true)
	} else if !spec.ReadOnly {
		annotations.DestructiveHint = ptr(false)
	}
	if spec.OpenWorld {
		annotations.OpenWorldHint = ptr(true)
	}

	return &mcp.Tool{
		Name:        spec.Name,
		Description: spec.Description,
		Annotations: annotations,
	}
}

// register is a generic helper that registers a tool with the MCP server.
// It wraps the client method with panic recovery, metrics, tracing, and logging.
func register[Args, Result any](
	h *HandlerRegistry,
	server *mcp.Server,
	tool *mcp.Tool,
	spec ToolSpec,
	method func(context.Context, Args) (Result, error),
) {
	mcp.AddTool(server, tool, func(ctx context.Context, req *mcp.CallToolRequest, args Args) (_ *mcp.CallToolResult, _ Result, err error) {
		defer h.recoverPanic(spec.Name, &err)

		ctx, span := tracing.StartSpan(ctx, "mcp.tool."+spec.Name)
		defer span.End()

		tracing.AddToolAttributes(span, spec.Name, spec.Category)
		span.SetAttributes(
			attribute.String("confluence.api.surface", string(h.client.Version())),
			attribute.Bool("mcp.tool.readonly", spec.ReadOnly),
		)

		metrics.RequestInFlight.WithLabelValues(spec.Name).Inc()
		defer metrics.RequestInFlight.WithLabelValues(spec.Name).Dec()

		start := time.Now()
		result, err := method(ctx, args)
		duration := time.Since(start).Seconds()

		span.SetAttributes(attribute.Float64("mcp.tool.duration_seconds", duration))

		if err != nil {
			kind := errorKind(err)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("confluence.error.kind", kind))
			metrics.RecordRequest(spec.Name, duration, false)
			metrics.ToolErrors.WithLabelValues(spec.Name, kind).Inc()
			h.logger.Warn("Tool failed", "tool", spec.Name, "kind", kind, "error", err)
			var zero Result
			return nil, zero, fmt.Errorf("%s failed: %w", spec.Name, err)
		}

		span.SetStatus(codes.Ok, "")
		metrics.RecordRequest(spec.Name, duration, true)
		h.logExecution(spec, args, result)
		return nil, result, nil
	})
}

// errorKind labels a tool failure for metrics and logs.
func errorKind(err error) string {
	switch {
	case errs.IsValidation(err):
		return "VALIDATION"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "CANCELED"
	default:
		return string(errs.KindOf(err))
	}
}

// recoverPanic recovers from panics in tool handlers and turns them into a
// tool error so the session stays usable.
func (h *HandlerRegistry) recoverPanic(toolName string, err *error) {
	if rec := recover(); rec != nil {
		metrics.PanicsRecovered.WithLabelValues(toolName).Inc()
		h.logger.Error("Panic recovered",
			"tool", toolName,
			"panic", rec,
			"stack", string(debug.Stack()))
		if err != nil {
			*err = fmt.Errorf("%s failed: internal error", toolName)
		}
	}
}

// logExecution logs tool execution details.
func (h *HandlerRegistry) logExecution(spec ToolSpec, args, result any) {
	attrs := []any{"tool", spec.Name, "category", spec.Category}

	switch a := args.(type) {
	case confluence.ListSpacesArgs:
		attrs = append(attrs, "limit", a.Limit)
	case confluence.GetSpaceArgs:
		attrs = append(attrs, "space_key", a.SpaceKey)
	case confluence.ListPagesArgs:
		attrs = append(attrs, "space_key", a.SpaceKey)
	case confluence.FindPageByTitleArgs:
		attrs = append(attrs, "title", a.Title, "space_key", a.SpaceKey)
	case confluence.GetPageArgs:
		attrs = append(attrs, "page_id", a.PageID)
	case confluence.GetPageContentArgs:
		attrs = append(attrs, "page_id", a.PageID, "format", a.Format)
	case confluence.CreatePageArgs:
		attrs = append(attrs, "space_key", a.SpaceKey, "title", a.Title,
			"input_chars", len(a.Content))
	case confluence.UpdatePageArgs:
		attrs = append(attrs, "page_id", a.PageID, "version", a.Version,
			"input_chars", len(a.Content))
	case confluence.SearchContentArgs:
		attrs = append(attrs, "query", a.Query)
	case confluence.ListLabelsArgs:
		attrs = append(attrs, "page_id", a.PageID)
	case confluence.AddLabelArgs:
		attrs = append(attrs, "page_id", a.PageID, "label", a.Label)
	case confluence.RemoveLabelArgs:
		attrs = append(attrs, "page_id", a.PageID, "label", a.Label)
	}

	switch r := result.(type) {
	case confluence.ListSpacesResult:
		attrs = append(attrs, "spaces", len(r.Spaces), "has_more", r.Pagination.HasMore)
	case confluence.ListPagesResult:
		attrs = append(attrs, "pages", len(r.Pages), "has_more", r.Pagination.HasMore)
	case confluence.FindPageByTitleResult:
		attrs = append(attrs, "found", r.Count)
	case confluence.GetPageResult:
		attrs = append(attrs, "version", r.Page.Version.Number)
	case confluence.GetPageContentResult:
		attrs = append(attrs, "output_chars", len(r.Content), "approx_tokens", len(r.Content)/4)
	case confluence.CreatePageResult:
		attrs = append(attrs, "page_id", r.Page.ID)
	case confluence.UpdatePageResult:
		attrs = append(attrs, "new_version", r.Page.Version.Number)
	case confluence.SearchContentResult:
		attrs = append(attrs, "results_count", len(r.Results), "has_more", r.Pagination.HasMore)
	case confluence.ListLabelsResult:
		attrs = append(attrs, "labels", len(r.Labels))
	}

	h.logger.Info("Tool executed", attrs...)
}
