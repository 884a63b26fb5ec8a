// Package store implements the persisted SimpleCP collections: clipboard
// history, snippets, and folders. All three follow the same local-first
// scheme: mutations apply to memory, persist synchronously to the kv blob
// store, and publish a change event. A persistence failure is advisory:
// it is returned to the caller for display, but the in-memory state stands.
package store

import (
	"log/slog"
	"strings"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/clip"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/errors"
	"github.com/JamesKayten/SimpleCP-AIM-test-sub000/internal/kv"
)

// DefaultMaxHistory is the history capacity when none is configured.
const DefaultMaxHistory = 50

// History is a bounded, deduplicating, most-recently-used ordered collection
// of clipboard entries.
type History struct {
	mu      sync.Mutex
	kv      *kv.Store
	bus     *Bus
	max     int
	entries []clip.Entry // most-recent-first
}

// NewHistory loads the persisted history from the blob store. A missing or
// undecodable blob resets the collection to empty rather than failing
// startup.
func NewHistory(store *kv.Store, bus *Bus, max int) *History {
	if max <= 0 {
		max = DefaultMaxHistory
	}
	h := &History{kv: store, bus: bus, max: max}

	data, err := store.Get(kv.KeyHistory)
	if err != nil {
		slog.Warn("failed to load history, starting empty", "err", err)
		return h
	}
	if data == nil {
		return h
	}
	if err := json.Unmarshal(data, &h.entries); err != nil {
		slog.Warn("corrupt history blob, starting empty", "err", err)
		h.entries = nil
	}
	if len(h.entries) > h.max {
		h.entries = h.entries[:h.max]
	}
	return h
}

// Add records newly captured pasteboard content at the front of the history.
// If an entry with identical content already exists it moves to the front,
// keeping its original capture timestamp; otherwise a new classified entry
// is created. The tail is evicted when the capacity is exceeded.
//
// The returned error, if any, is an advisory persistence failure: the
// in-memory update has already taken effect.
func (h *History) Add(content string) (clip.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	var entry clip.Entry
	found := -1
	for i, e := range h.entries {
		if e.Content == content {
			found = i
			break
		}
	}

	if found >= 0 {
		entry = h.entries[found]
		h.entries = append(h.entries[:found], h.entries[found+1:]...)
		h.entries = append([]clip.Entry{entry}, h.entries...)
	} else {
		entry = clip.NewEntry(content)
		h.entries = append([]clip.Entry{entry}, h.entries...)
		if len(h.entries) > h.max {
			h.entries = h.entries[:h.max]
		}
	}

	err := h.persistLocked()
	h.bus.Publish(Event{Kind: KindHistory, Op: OpAdd, ID: entry.ID})
	return entry, err
}

// Remove deletes an entry by id. Removing an unknown id is a no-op.
func (h *History) Remove(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for i, e := range h.entries {
		if e.ID == id {
			h.entries = append(h.entries[:i], h.entries[i+1:]...)
			err := h.persistLocked()
			h.bus.Publish(Event{Kind: KindHistory, Op: OpRemove, ID: id})
			return err
		}
	}
	return nil
}

// Clear empties the history.
func (h *History) Clear() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries = nil
	err := h.persistLocked()
	h.bus.Publish(Event{Kind: KindHistory, Op: OpClear})
	return err
}

// Search returns entries whose content contains query, case-insensitively,
// in stored (most-recent-first) order. An empty query returns the full
// history. The result is a fresh slice; callers may mutate it freely.
func (h *History) Search(query string) []clip.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	if strings.TrimSpace(query) == "" {
		return append([]clip.Entry(nil), h.entries...)
	}

	needle := strings.ToLower(query)
	var out []clip.Entry
	for _, e := range h.entries {
		if strings.Contains(strings.ToLower(e.Content), needle) {
			out = append(out, e)
		}
	}
	return out
}

// Entries returns a copy of the full history, most recent first.
func (h *History) Entries() []clip.Entry {
	return h.Search("")
}

// Get returns the entry with the given id.
func (h *History) Get(id string) (clip.Entry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, e := range h.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return clip.Entry{}, errors.NewNotFound("history entry", id)
}

// Size returns the number of stored entries.
func (h *History) Size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

func (h *History) persistLocked() error {
	data, err := json.Marshal(h.entries)
	if err != nil {
		return errors.NewPersistence(kv.KeyHistory, err)
	}
	if err := h.kv.Put(kv.KeyHistory, data); err != nil {
		return errors.NewPersistence(kv.KeyHistory, err)
	}
	return nil
}
