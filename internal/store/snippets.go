package store

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/clip"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/errors"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/kv"
)

// UncategorizedName labels snippets whose folder reference is empty or
// dangling. Such snippets are displayed under this pseudo-folder and never
// deleted implicitly.
const UncategorizedName = "Uncategorized"

// Snippets is the persisted collection of named snippets.
type Snippets struct {
	mu       sync.Mutex
	kv       *kv.Store
	bus      *Bus
	snippets []clip.Snippet
}

// NewSnippets loads the persisted snippets. A missing or undecodable blob
// resets the collection to empty rather than failing startup.
func NewSnippets(store *kv.Store, bus *Bus) *Snippets {
	s := &Snippets{kv: store, bus: bus}

	data, err := store.Get(kv.KeySnippets)
	if err != nil {
		slog.Warn("failed to load snippets, starting empty", "err", err)
		return s
	}
	if data == nil {
		return s
	}
	if err := json.Unmarshal(data, &s.snippets); err != nil {
		slog.Warn("corrupt snippets blob, starting empty", "err", err)
		s.snippets = nil
	}
	return s
}

// Create adds a new snippet. Content is copied from its source (a history
// entry or arbitrary text); the snippet holds no reference back.
func (s *Snippets) Create(name, content, folderID string, tags []string) (clip.Snippet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return clip.Snippet{}, errors.NewValidation("snippet name is required")
	}

	now := time.Now().Unix()
	snippet := clip.Snippet{
		ID:         clip.NewID(),
		Name:       name,
		Content:    content,
		Tags:       append([]string(nil), tags...),
		FolderID:   folderID,
		CreatedAt:  now,
		ModifiedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snippets = append(s.snippets, snippet)
	err := s.persistLocked()
	s.bus.Publish(Event{Kind: KindSnippet, Op: OpAdd, ID: snippet.ID})
	return snippet, err
}

// Update replaces the stored snippet with the same id, preserving its
// creation time and bumping its modification time.
func (s *Snippets) Update(snippet clip.Snippet) (clip.Snippet, error) {
	if strings.TrimSpace(snippet.Name) == "" {
		return clip.Snippet{}, errors.NewValidation("snippet name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.snippets {
		if s.snippets[i].ID == snippet.ID {
			snippet.CreatedAt = s.snippets[i].CreatedAt
			snippet.ModifiedAt = time.Now().Unix()
			s.snippets[i] = snippet
			err := s.persistLocked()
			s.bus.Publish(Event{Kind: KindSnippet, Op: OpUpdate, ID: snippet.ID})
			return snippet, err
		}
	}
	return clip.Snippet{}, errors.NewNotFound("snippet", snippet.ID)
}

// Delete removes a snippet by id, returning the removed snippet so the
// caller can address the corresponding remote entity.
func (s *Snippets) Delete(id string) (clip.Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, snippet := range s.snippets {
		if snippet.ID == id {
			s.snippets = append(s.snippets[:i], s.snippets[i+1:]...)
			err := s.persistLocked()
			s.bus.Publish(Event{Kind: KindSnippet, Op: OpRemove, ID: id})
			return snippet, err
		}
	}
	return clip.Snippet{}, errors.NewNotFound("snippet", id)
}

// RemoveByFolder deletes every snippet filed in the given folder and returns
// the removed snippets. Used by the folder cascade delete; snippets with a
// different (or dangling) folder reference are untouched.
func (s *Snippets) RemoveByFolder(folderID string) ([]clip.Snippet, error) {
	if folderID == "" {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []clip.Snippet
	kept := s.snippets[:0]
	for _, snippet := range s.snippets {
		if snippet.FolderID == folderID {
			removed = append(removed, snippet)
		} else {
			kept = append(kept, snippet)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}

	s.snippets = kept
	err := s.persistLocked()
	for _, snippet := range removed {
		s.bus.Publish(Event{Kind: KindSnippet, Op: OpRemove, ID: snippet.ID})
	}
	return removed, err
}

// Get returns the snippet with the given id.
func (s *Snippets) Get(id string) (clip.Snippet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snippet := range s.snippets {
		if snippet.ID == id {
			return snippet, nil
		}
	}
	return clip.Snippet{}, errors.NewNotFound("snippet", id)
}

// ListByFolder returns snippets filed in the given folder, in stored order.
func (s *Snippets) ListByFolder(folderID string) []clip.Snippet {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []clip.Snippet
	for _, snippet := range s.snippets {
		if snippet.FolderID == folderID {
			out = append(out, snippet)
		}
	}
	return out
}

// ListUncategorized returns snippets whose folder reference is empty or does
// not resolve through folderExists.
func (s *Snippets) ListUncategorized(folderExists func(id string) bool) []clip.Snippet {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []clip.Snippet
	for _, snippet := range s.snippets {
		if snippet.FolderID == "" || !folderExists(snippet.FolderID) {
			out = append(out, snippet)
		}
	}
	return out
}

// Search returns snippets whose name, content, or any tag contains query,
// case-insensitively. An empty query returns all snippets.
func (s *Snippets) Search(query string) []clip.Snippet {
	s.mu.Lock()
	defer s.mu.Unlock()

	if strings.TrimSpace(query) == "" {
		return append([]clip.Snippet(nil), s.snippets...)
	}

	needle := strings.ToLower(query)
	var out []clip.Snippet
	for _, snippet := range s.snippets {
		if snippetMatches(snippet, needle) {
			out = append(out, snippet)
		}
	}
	return out
}

// All returns a copy of every snippet.
func (s *Snippets) All() []clip.Snippet {
	return s.Search("")
}

// ImportMerge adds snippets whose ids are not already present, skipping the
// rest. Returns how many were added and how many were skipped.
func (s *Snippets) ImportMerge(incoming []clip.Snippet) (added, skipped int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[string]bool, len(s.snippets))
	for _, snippet := range s.snippets {
		existing[snippet.ID] = true
	}

	for _, snippet := range incoming {
		if snippet.ID == "" || existing[snippet.ID] {
			skipped++
			continue
		}
		existing[snippet.ID] = true
		s.snippets = append(s.snippets, snippet)
		added++
	}

	if added > 0 {
		err = s.persistLocked()
		s.bus.Publish(Event{Kind: KindSnippet, Op: OpRefresh})
	}
	return added, skipped, err
}

func snippetMatches(s clip.Snippet, needle string) bool {
	if strings.Contains(strings.ToLower(s.Name), needle) {
		return true
	}
	if strings.Contains(strings.ToLower(s.Content), needle) {
		return true
	}
	for _, tag := range s.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func (s *Snippets) persistLocked() error {
	data, err := json.Marshal(s.snippets)
	if err != nil {
		return errors.NewPersistence(kv.KeySnippets, err)
	}
	if err := s.kv.Put(kv.KeySnippets, data); err != nil {
		return errors.NewPersistence(kv.KeySnippets, err)
	}
	return nil
}
