package store

import "sync"

// Kind identifies which collection an event concerns.
type Kind string

const (
	KindHistory Kind = "history"
	KindSnippet Kind = "snippet"
	KindFolder  Kind = "folder"
)

// Op identifies what happened to the collection.
type Op string

const (
	OpAdd     Op = "add"
	OpUpdate  Op = "update"
	OpRemove  Op = "remove"
	OpClear   Op = "clear"
	OpRevert  Op = "revert"
	OpSync    Op = "sync"
	OpRefresh Op = "refresh"
)

// Event is a change notification published after a successful mutation.
// The UI layer (CLI watch mode, MCP notifications) subscribes to these
// instead of observing store internals.
type Event struct {
	Kind Kind
	Op   Op
	ID   string
}

const eventBuffer = 64

// Bus is a simple fan-out channel for store change events. Publish never
// blocks; a subscriber that falls behind loses events rather than stalling
// the mutation path.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe returns a channel receiving all future events.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, eventBuffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()
	return ch
}

// Publish delivers an event to every subscriber without blocking.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	subs := b.subs
	b.mu.Unlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
		}
	}
}
