// Package clip defines the core SimpleCP domain types: clipboard history
// entries, snippets, and the folders that organize them. All persistence
// and sync behavior lives elsewhere; this package is pure data plus a few
// deterministic helpers.
package clip

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// ContentType tags a clipboard entry with a coarse classification of its text.
type ContentType string

const (
	TypeText    ContentType = "text"
	TypeURL     ContentType = "url"
	TypeEmail   ContentType = "email"
	TypeCode    ContentType = "code"
	TypeUnknown ContentType = "unknown"
)

// Entry is a captured pasteboard item in the history.
// Entries are immutable once created; re-copying identical content moves the
// existing entry to the front of the history instead of minting a new one.
type Entry struct {
	// ID is a ULID that uniquely identifies this entry
	ID string `json:"id"`

	// Content is the captured pasteboard text
	Content string `json:"content"`

	// CreatedAt is the Unix timestamp of the original capture
	CreatedAt int64 `json:"created_at"`

	// ContentType is the classification assigned at capture time
	ContentType ContentType `json:"content_type"`
}

// Snippet is a user-named, reusable piece of text, optionally filed in a folder.
type Snippet struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Content string   `json:"content"`
	Tags    []string `json:"tags,omitempty"`

	// FolderID references a Folder by id. Empty or dangling references are
	// presented as "Uncategorized"; they are never deleted implicitly.
	FolderID string `json:"folder_id,omitempty"`

	IsFavorite bool  `json:"is_favorite,omitempty"`
	CreatedAt  int64 `json:"created_at"`
	ModifiedAt int64 `json:"modified_at"`
}

// Folder groups snippets under a name and icon. Order is the display sort
// position; after any folder mutation the order values of all folders form a
// contiguous 0..N-1 permutation.
type Folder struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`

	// IsExpanded is display state, persisted but never synced remotely.
	IsExpanded bool `json:"is_expanded"`

	Order      int   `json:"order"`
	CreatedAt  int64 `json:"created_at"`
	ModifiedAt int64 `json:"modified_at"`
}

// DefaultFolderIcon is assigned when a folder is created without one.
const DefaultFolderIcon = "📁"

// NewID returns a fresh ULID string.
func NewID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// ShortID derives the compact identifier used to address a snippet on the
// backend: the first 8 characters of its ULID, lowercased.
func ShortID(id string) string {
	if len(id) > 8 {
		id = id[:8]
	}
	return strings.ToLower(id)
}

// NewEntry builds a history entry for freshly captured content, classifying
// it and stamping the capture time.
func NewEntry(content string) Entry {
	return Entry{
		ID:          NewID(),
		Content:     content,
		CreatedAt:   time.Now().Unix(),
		ContentType: Classify(content),
	}
}
