// Package watcher polls the system clipboard and reports text changes.
// There is no portable change notification, so detection is a ticker that
// compares against the last observed text.
package watcher

import (
	"log/slog"
	"sync"
	"time"

	"github.com/atotto/clipboard"
)

// DefaultPollInterval is how often the clipboard is sampled.
const DefaultPollInterval = 500 * time.Millisecond

// ReadFunc reads the current clipboard text. Tests substitute an in-memory
// implementation here.
type ReadFunc func() (string, error)

// Options configures a Watcher.
type Options struct {
	// Interval between clipboard samples. Defaults to DefaultPollInterval.
	Interval time.Duration

	// OnCopy receives each newly observed non-empty clipboard text.
	OnCopy func(text string)

	// Read overrides the clipboard read. Defaults to clipboard.ReadAll.
	Read ReadFunc
}

// Watcher runs the polling loop. All sampling happens on one goroutine, so
// a slow OnCopy callback delays the next sample rather than overlapping it.
type Watcher struct {
	opts Options

	mu       sync.Mutex
	lastText string
	warned   bool
	started  bool

	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
	finished  chan struct{}
}

// New creates a Watcher. It does not start polling until Start is called.
func New(opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.Read == nil {
		opts.Read = func() (string, error) { return clipboard.ReadAll() }
	}
	return &Watcher{
		opts:     opts,
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
}

// Start begins polling on a background goroutine. The clipboard's content at
// start time is treated as already seen, so only subsequent copies are
// reported. Start is idempotent.
func (w *Watcher) Start() {
	w.startOnce.Do(func() {
		w.mu.Lock()
		if text, err := w.opts.Read(); err == nil {
			w.lastText = text
		}
		w.started = true
		w.mu.Unlock()
		go w.loop()
	})
}

// Stop ends polling and waits for the loop to exit. Safe to call more than
// once, and a no-op if the watcher was never started.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.done) })
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.finished
	}
}

func (w *Watcher) loop() {
	defer close(w.finished)
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *Watcher) sample() {
	text, err := w.opts.Read()

	w.mu.Lock()
	if err != nil {
		// Headless sessions fail every read; log once, not per tick.
		warned := w.warned
		w.warned = true
		w.mu.Unlock()
		if !warned {
			slog.Warn("clipboard read failed, watcher idle", "err", err)
		}
		return
	}
	w.warned = false

	if text == w.lastText {
		w.mu.Unlock()
		return
	}
	w.lastText = text
	w.mu.Unlock()

	if text == "" {
		return
	}
	if w.opts.OnCopy != nil {
		w.opts.OnCopy(text)
	}
}

// SetClipboard replaces the clipboard content and marks it as already seen,
// so copying an entry back out of history does not re-capture it.
func (w *Watcher) SetClipboard(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return err
	}
	w.mu.Lock()
	w.lastText = text
	w.mu.Unlock()
	return nil
}
