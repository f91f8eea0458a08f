// Package tools provides a metadata-driven registry for MCP tool definitions.
// Tools are declared once in AllTools and bound to the Confluence adapter's
// typed MCP methods by HandlerRegistry.
package tools

// ToolSpec defines a tool's metadata for declarative registration.
// Each spec maps to a confluence.Client method with matching Args/Result types.
type ToolSpec struct {
	// Name is the MCP tool name (e.g., "confluence_get_page")
	Name string

	// Method is the client method name without the MCP suffix (e.g., "GetPage")
	Method string

	// Description is the tool description shown to LLMs
	Description string

	// Title is the human-readable tool title for annotations
	Title string

	// Category groups tools logically (spaces, pages, search, labels)
	Category string

	// ReadOnly indicates the tool doesn't modify Confluence content
	ReadOnly bool

	// Destructive indicates the tool can delete or overwrite data
	Destructive bool

	// Idempotent indicates repeated calls have the same effect
	Idempotent bool

	// OpenWorld indicates the tool accesses external resources
	OpenWorld bool
}

// ptr is a helper to create a pointer to a value.
func ptr[T any](v T) *T {
	return &v
}
