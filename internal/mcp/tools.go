package mcp

import "github.com/mark3labs/mcp-go/mcp"

var historyToolDef = mcp.NewTool("clip_history",
	mcp.WithDescription("List the clipboard history, most recent first. Each entry carries its id, content, content type, and capture timestamp."),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of entries to return. 0 or omitted returns all."),
	),
)

var searchToolDef = mcp.NewTool("clip_search",
	mcp.WithDescription("Search the clipboard history by content substring, case-insensitively."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Substring to search for."),
	),
)

var snippetStoreToolDef = mcp.NewTool("snippet_store",
	mcp.WithDescription("Save a snippet, optionally filed in a folder addressed by name. The folder is created if it does not exist."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Snippet name."),
	),
	mcp.WithString("content",
		mcp.Required(),
		mcp.Description("Snippet content."),
	),
	mcp.WithString("folder",
		mcp.Description("Folder name to file the snippet under. Omitted leaves it uncategorized."),
	),
	mcp.WithArray("tags",
		mcp.Description("Optional tags."),
		mcp.Items(map[string]any{"type": "string"}),
	),
)

var snippetListToolDef = mcp.NewTool("snippet_list",
	mcp.WithDescription("List snippets, optionally filtered by folder name or a search query over name, content, and tags."),
	mcp.WithString("folder",
		mcp.Description("Restrict to snippets filed under this folder name."),
	),
	mcp.WithString("query",
		mcp.Description("Case-insensitive search over name, content, and tags."),
	),
)

var snippetDeleteToolDef = mcp.NewTool("snippet_delete",
	mcp.WithDescription("Delete a snippet by id."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Snippet id."),
	),
)

var folderListToolDef = mcp.NewTool("folder_list",
	mcp.WithDescription("List snippet folders in display order, with per-folder snippet counts."),
)
