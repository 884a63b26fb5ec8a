package syncer

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	json "github.com/goccy/go-json"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/clip"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/errors"
)

// RequestTimeout bounds every mutating backend call.
const RequestTimeout = 10 * time.Second

// maxErrorBodyBytes caps how much of an error response body is retained for
// diagnostics.
const maxErrorBodyBytes = 2048

// Client talks to the local backend's HTTP API. Every method wraps its call
// in the retry policy; errors come back classified through internal/errors
// so callers can tell advisory failures from fatal ones.
type Client struct {
	baseURL string
	http    *http.Client
	policy  RetryPolicy
}

// Option configures a Client.
type Option func(*Client)

// WithRetryPolicy overrides the default retry policy.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// NewClient creates a sync client for the backend at baseURL,
// e.g. "http://localhost:8000".
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: RequestTimeout},
		policy:  DefaultRetryPolicy(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchFolderNames returns the backend's folder names in display order.
func (c *Client) FetchFolderNames(ctx context.Context) ([]string, error) {
	var names []string
	err := ExecuteWithRetry(ctx, c.policy, "fetch folders", func(ctx context.Context) error {
		body, err := c.do(ctx, http.MethodGet, "/api/folders", nil)
		if err != nil {
			return err
		}
		names = names[:0]
		return decodeBody(body, &names)
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// CreateFolder creates a folder on the backend.
func (c *Client) CreateFolder(ctx context.Context, name string) error {
	payload := map[string]string{"folder_name": name}
	return ExecuteWithRetry(ctx, c.policy, "create folder", func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodPost, "/api/folders", payload)
		return err
	})
}

// RenameFolder renames a folder on the backend, addressed by its old name.
func (c *Client) RenameFolder(ctx context.Context, oldName, newName string) error {
	payload := map[string]string{"new_name": newName}
	path := "/api/folders/" + url.PathEscape(oldName)
	return ExecuteWithRetry(ctx, c.policy, "rename folder", func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodPut, path, payload)
		return err
	})
}

// DeleteFolder deletes a folder on the backend by name.
func (c *Client) DeleteFolder(ctx context.Context, name string) error {
	path := "/api/folders/" + url.PathEscape(name)
	return ExecuteWithRetry(ctx, c.policy, "delete folder", func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodDelete, path, nil)
		return err
	})
}

// CreateSnippet creates a snippet on the backend, filed under folderName.
func (c *Client) CreateSnippet(ctx context.Context, s clip.Snippet, folderName string) error {
	payload := map[string]any{
		"name":    s.Name,
		"content": s.Content,
		"folder":  folderName,
		"tags":    s.Tags,
	}
	return ExecuteWithRetry(ctx, c.policy, "create snippet", func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodPost, "/api/snippets", payload)
		return err
	})
}

// SnippetPatch is a partial snippet update. Nil fields are omitted.
type SnippetPatch struct {
	Name    *string   `json:"name,omitempty"`
	Content *string   `json:"content,omitempty"`
	Tags    *[]string `json:"tags,omitempty"`
}

// UpdateSnippet applies a partial update to the remote snippet addressed by
// folder name and the snippet's short clip id.
func (c *Client) UpdateSnippet(ctx context.Context, folderName, clipID string, patch SnippetPatch) error {
	path := "/api/snippets/" + url.PathEscape(folderName) + "/" + url.PathEscape(clipID)
	return ExecuteWithRetry(ctx, c.policy, "update snippet", func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodPut, path, patch)
		return err
	})
}

// DeleteSnippet deletes the remote snippet addressed by folder name and the
// snippet's short clip id.
func (c *Client) DeleteSnippet(ctx context.Context, folderName, clipID string) error {
	path := "/api/snippets/" + url.PathEscape(folderName) + "/" + url.PathEscape(clipID)
	return ExecuteWithRetry(ctx, c.policy, "delete snippet", func(ctx context.Context) error {
		_, err := c.do(ctx, http.MethodDelete, path, nil)
		return err
	})
}

// Health performs a single liveness probe against /health, with no retry.
// The supervisor owns probe scheduling and failure counting.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil)
	return err
}

// do executes one HTTP round trip and classifies failures: transport errors
// are retryable, non-2xx statuses go through the protocol taxonomy, and a
// successful response returns its raw body.
func (c *Client) do(ctx context.Context, method, path string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, errors.NewInternal(fmt.Errorf("failed to encode request body: %w", err))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to build request: %w", err))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.NewTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return nil, errors.NewProtocol(resp.StatusCode, string(snippet))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.NewTransport(err)
	}
	return data, nil
}

// decodeBody unmarshals a response body. A syntactically broken body is
// classified as a possibly-transient invalid response (retryable); a body
// that parses but has the wrong shape is a decoding error (not retryable).
func decodeBody(data []byte, out any) error {
	if err := json.Unmarshal(data, out); err != nil {
		var syntaxErr *json.SyntaxError
		if stderrors.As(err, &syntaxErr) {
			return errors.NewInvalidResponse(fmt.Sprintf("unparseable response body: %v", err))
		}
		return errors.NewDecoding(err)
	}
	return nil
}
