package mcp

import (
	"context"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/app"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/clip"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/errors"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/store"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	app *app.App
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(a *app.App) *Handlers {
	return &Handlers{app: a}
}

// Request types for each tool

// HistoryRequest represents the arguments for clip_history.
type HistoryRequest struct {
	Limit int `json:"limit,omitempty"`
}

// SearchRequest represents the arguments for clip_search.
type SearchRequest struct {
	Query string `json:"query"`
}

// SnippetStoreRequest represents the arguments for snippet_store.
type SnippetStoreRequest struct {
	Name    string   `json:"name"`
	Content string   `json:"content"`
	Folder  string   `json:"folder,omitempty"`
	Tags    []string `json:"tags,omitempty"`
}

// SnippetListRequest represents the arguments for snippet_list.
type SnippetListRequest struct {
	Folder string `json:"folder,omitempty"`
	Query  string `json:"query,omitempty"`
}

// SnippetDeleteRequest represents the arguments for snippet_delete.
type SnippetDeleteRequest struct {
	ID string `json:"id"`
}

// Handler implementations

// HandleHistory handles the clip_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	entries := h.app.History.Entries()
	if input.Limit > 0 && len(entries) > input.Limit {
		entries = entries[:input.Limit]
	}
	return successResult(map[string]any{"entries": entries, "total": h.app.History.Size()})
}

// HandleSearch handles the clip_search tool call.
func (h *Handlers) HandleSearch(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SearchRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if input.Query == "" {
		return errorResult(errors.NewValidation("query is required")), nil
	}

	matches := h.app.History.Search(input.Query)
	return successResult(map[string]any{"entries": matches, "matched": len(matches)})
}

// HandleSnippetStore handles the snippet_store tool call.
func (h *Handlers) HandleSnippetStore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SnippetStoreRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	folderID := ""
	if input.Folder != "" {
		folder, err := h.app.Folders.GetByName(input.Folder)
		if errors.Is(err, errors.ErrNotFound) {
			folder, err = h.app.CreateFolder(input.Folder, "")
		}
		if err != nil {
			return errorResult(err), nil
		}
		folderID = folder.ID
	}

	snippet, err := h.app.CreateSnippet(input.Name, input.Content, folderID, input.Tags)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(snippet)
}

// HandleSnippetList handles the snippet_list tool call.
func (h *Handlers) HandleSnippetList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SnippetListRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}

	var snippets []clip.Snippet
	switch {
	case input.Folder != "":
		folder, err := h.app.Folders.GetByName(input.Folder)
		if err != nil {
			return errorResult(err), nil
		}
		snippets = h.app.Snippets.ListByFolder(folder.ID)
		if input.Query != "" {
			snippets = filterSnippets(snippets, input.Query)
		}
	default:
		snippets = h.app.Snippets.Search(input.Query)
	}

	if snippets == nil {
		snippets = []clip.Snippet{}
	}
	return successResult(map[string]any{"snippets": snippets, "total": len(snippets)})
}

// HandleSnippetDelete handles the snippet_delete tool call.
func (h *Handlers) HandleSnippetDelete(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SnippetDeleteRequest](req)
	if err != nil {
		return errorResult(errors.NewValidation(err.Error())), nil
	}
	if input.ID == "" {
		return errorResult(errors.NewValidation("id is required")), nil
	}

	snippet, err := h.app.DeleteSnippet(input.ID)
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"deleted": snippet.ID, "name": snippet.Name})
}

// folderInfo is one row of the folder_list response.
type folderInfo struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Icon     string `json:"icon"`
	Order    int    `json:"order"`
	Snippets int    `json:"snippets"`
}

// HandleFolderList handles the folder_list tool call.
func (h *Handlers) HandleFolderList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	folders := h.app.Folders.All()
	out := make([]folderInfo, 0, len(folders)+1)
	for _, f := range folders {
		out = append(out, folderInfo{
			ID:       f.ID,
			Name:     f.Name,
			Icon:     f.Icon,
			Order:    f.Order,
			Snippets: len(h.app.Snippets.ListByFolder(f.ID)),
		})
	}

	uncategorized := h.app.Snippets.ListUncategorized(h.app.Folders.Exists)
	if len(uncategorized) > 0 {
		out = append(out, folderInfo{
			Name:     store.UncategorizedName,
			Icon:     clip.DefaultFolderIcon,
			Order:    len(folders),
			Snippets: len(uncategorized),
		})
	}
	return successResult(map[string]any{"folders": out})
}

func filterSnippets(snippets []clip.Snippet, query string) []clip.Snippet {
	var out []clip.Snippet
	for _, s := range snippets {
		for _, m := range []string{s.Name, s.Content} {
			if containsFold(m, query) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if cpErr, ok := err.(*errors.Error); ok {
		errorObj := map[string]any{
			"code":    cpErr.Code,
			"message": cpErr.Message,
		}
		// Internal error details may carry file paths or driver errors;
		// keep those out of tool responses.
		if cpErr.Code != errors.ErrInternal && cpErr.Details != nil {
			errorObj["details"] = cpErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    errors.ErrInternal,
				"message": "an internal error occurred",
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
