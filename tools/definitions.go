package tools

// AllTools contains all tool specifications for the Confluence MCP server.
// Tools are organized by category for easier maintenance.
// Tool descriptions follow a structured format for optimal LLM tool selection:
// - USE WHEN: Natural language triggers
// - NOT FOR: Disambiguation from similar tools
// - PARAMETERS: Key arguments with defaults
// - RETURNS: What the tool returns
var AllTools = []ToolSpec{
	// ==========================================================================
	// SPACE TOOLS
	// ==========================================================================
	{
		Name:     "confluence_list_spaces",
		Method:   "ListSpaces",
		Title:    "List Spaces",
		Category: "spaces",
		Description: `List the Confluence spaces visible to the configured account.

USE WHEN: User asks "what spaces are there", "which wiki spaces can I see", or needs a space key before listing or creating pages.

NOT FOR: Details of one known space (use confluence_get_space).

PARAMETERS:
- limit: Results per page (default 25, max 250)
- start: Offset of the first result (legacy API only; rejected on v2)
- cursor: next_cursor from a previous call

RETURNS: Spaces with id, key, name, type and status, plus pagination with next_cursor when more results exist.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "confluence_get_space",
		Method:   "GetSpace",
		Title:    "Get Space",
		Category: "spaces",
		Description: `Get one Confluence space by key.

USE WHEN: User says "tell me about the ENG space", "does space OPS exist", or needs a space's id.

NOT FOR: Browsing all spaces (use confluence_list_spaces). Not for the pages inside it (use confluence_list_pages).

PARAMETERS:
- space_key: Space key, e.g. ENG (required). The v2 API also accepts a numeric space id.

RETURNS: The space's id, key, name, type, status and link. Fails with SPACE_NOT_FOUND if no such space is visible.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},

	// ==========================================================================
	// PAGE READ TOOLS
	// ==========================================================================
	{
		Name:     "confluence_list_pages",
		Method:   "ListPages",
		Title:    "List Pages in Space",
		Category: "pages",
		Description: `List pages in one Confluence space.

USE WHEN: User asks "what pages are in ENG", "show me the docs in the OPS space", or wants to browse a space.

NOT FOR: Finding a page across spaces (use confluence_find_page_by_title or confluence_search).

PARAMETERS:
- space_key: Space to list (required)
- title: Only pages with this title (optional)
- limit: Results per page (default 25, max 250)
- start / cursor: Pagination

RETURNS: Pages with id, title, status, version and storage body, plus pagination.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "confluence_find_page_by_title",
		Method:   "FindPageByTitle",
		Title:    "Find Page by Title",
		Category: "pages",
		Description: `Find pages whose title contains some text.

USE WHEN: User names a page but not its id: "open the Release Plan page", "find the onboarding doc".

NOT FOR: Searching page bodies (use confluence_search). Not for a known page id (use confluence_get_page).

PARAMETERS:
- title: Text the title contains (required)
- space_key: Restrict to one space (optional)

RETURNS: Matching pages and a count. An empty list means no title matched.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "confluence_get_page",
		Method:   "GetPage",
		Title:    "Get Page",
		Category: "pages",
		Description: `Get a page by id, including its body and current version number.

USE WHEN: User wants a specific page's metadata and content, or you need the version number before confluence_update_page.

NOT FOR: Only the body, or the body as Markdown (use confluence_get_page_content).

PARAMETERS:
- page_id: Numeric page id (required)

RETURNS: The page with title, space, parent, version and storage-format body. Fails with PAGE_NOT_FOUND or EMPTY_CONTENT.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "confluence_get_page_content",
		Method:   "GetPageContent",
		Title:    "Get Page Content",
		Category: "pages",
		Description: `Get only the body of a page, as storage XHTML or converted to Markdown.

USE WHEN: User says "read me the X page", "summarize this page", or you only need the text.

NOT FOR: Page metadata or version (use confluence_get_page).

PARAMETERS:
- page_id: Numeric page id (required)
- format: "storage" (default) or "markdown"

RETURNS: The page id, the format, and the content.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},

	// ==========================================================================
	// PAGE WRITE TOOLS
	// ==========================================================================
	{
		Name:     "confluence_create_page",
		Method:   "CreatePage",
		Title:    "Create Page",
		Category: "pages",
		Description: `Create a new page in a space, optionally under a parent page.

USE WHEN: User says "create a page called X in ENG", "add a child page under Y".

NOT FOR: Changing an existing page (use confluence_update_page).

PARAMETERS:
- space_key: Target space (required)
- title: Page title, unique within the space (required)
- content: Body in Confluence storage format, e.g. "<p>Hello</p>" (required)
- parent_id: Page to nest under (optional)

RETURNS: The created page at version 1 and its browser URL.`,
		ReadOnly:   false,
		Idempotent: false,
		OpenWorld:  true,
	},
	{
		Name:     "confluence_update_page",
		Method:   "UpdatePage",
		Title:    "Update Page",
		Category: "pages",
		Description: `Replace the body (and optionally the title) of an existing page.

USE WHEN: User says "update the X page", "rewrite this section", "rename the page".

NOT FOR: Creating pages (use confluence_create_page). Not for labels (use confluence_add_label).

PARAMETERS:
- page_id: Numeric page id (required)
- content: Full new body in storage format (required); the old body is overwritten
- version: The version number you last read (required)
- title: New title (optional; keeps the current one)

RETURNS: The page at version+1 and the previous version. Fails with VERSION_CONFLICT if someone edited the page since you read it: re-read with confluence_get_page and retry.`,
		ReadOnly:    false,
		Destructive: true,
		Idempotent:  false,
		OpenWorld:   true,
	},

	// ==========================================================================
	// SEARCH TOOLS
	// ==========================================================================
	{
		Name:     "confluence_search",
		Method:   "SearchContent",
		Title:    "Search Content",
		Category: "search",
		Description: `Search ACROSS Confluence content with free text or CQL.

USE WHEN: User asks "find pages about X", "where is X documented", "what mentions the outage".

NOT FOR: A page whose title you know (use confluence_find_page_by_title).

PARAMETERS:
- query: Free text, or CQL with a type clause such as 'type = page AND space = ENG' (required)
- limit: Results per page (default 25, max 250)
- start / cursor: Pagination

RETURNS: Ordered results with id, type, title, url, excerpt and last modified time, plus pagination.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},

	// ==========================================================================
	// LABEL TOOLS
	// ==========================================================================
	{
		Name:     "confluence_list_labels",
		Method:   "ListLabels",
		Title:    "List Page Labels",
		Category: "labels",
		Description: `List the labels on a page.

USE WHEN: User asks "how is this page tagged", "what labels does X have".

NOT FOR: Finding pages by label (use confluence_search with 'label = name').

PARAMETERS:
- page_id: Numeric page id (required)
- limit / start / cursor: Pagination

RETURNS: Labels with name and prefix.`,
		ReadOnly:   true,
		Idempotent: true,
		OpenWorld:  true,
	},
	{
		Name:     "confluence_add_label",
		Method:   "AddLabel",
		Title:    "Add Page Label",
		Category: "labels",
		Description: `Add a label to a page.

USE WHEN: User says "tag this page as release", "label X with Y".

NOT FOR: Removing labels (use confluence_remove_label).

PARAMETERS:
- page_id: Numeric page id (required)
- label: Label name without spaces (required); stored lower case

RETURNS: The label as stored. Fails with LABEL_EXISTS if the page already has it.`,
		ReadOnly:   false,
		Idempotent: false,
		OpenWorld:  true,
	},
	{
		Name:     "confluence_remove_label",
		Method:   "RemoveLabel",
		Title:    "Remove Page Label",
		Category: "labels",
		Description: `Remove a label from a page.

USE WHEN: User says "untag this page", "remove the draft label from X".

NOT FOR: Adding labels (use confluence_add_label).

PARAMETERS:
- page_id: Numeric page id (required)
- label: Label name (required)

RETURNS: Confirmation with the normalized label. Fails with LABEL_NOT_FOUND if the page does not carry it.`,
		ReadOnly:    false,
		Destructive: true,
		Idempotent:  false,
		OpenWorld:   true,
	},
}
