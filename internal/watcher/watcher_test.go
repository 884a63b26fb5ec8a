package watcher

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeClipboard is a thread-safe in-memory stand-in for the system clipboard.
type fakeClipboard struct {
	mu   sync.Mutex
	text string
	err  error
}

func (f *fakeClipboard) read() (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.err
}

func (f *fakeClipboard) set(text string) {
	f.mu.Lock()
	f.text = text
	f.mu.Unlock()
}

func (f *fakeClipboard) fail(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// collector records OnCopy invocations.
type collector struct {
	mu   sync.Mutex
	seen []string
}

func (c *collector) add(text string) {
	c.mu.Lock()
	c.seen = append(c.seen, text)
	c.mu.Unlock()
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.seen...)
}

func (c *collector) waitFor(t *testing.T, n int) []string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if got := c.snapshot(); len(got) >= n {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d copies, have %v", n, c.snapshot())
	return nil
}

func newTestWatcher(fc *fakeClipboard, c *collector) *Watcher {
	return New(Options{
		Interval: 10 * time.Millisecond,
		OnCopy:   c.add,
		Read:     fc.read,
	})
}

func TestWatcher_ReportsChanges(t *testing.T) {
	fc := &fakeClipboard{}
	c := &collector{}
	w := newTestWatcher(fc, c)
	w.Start()
	defer w.Stop()

	fc.set("first")
	c.waitFor(t, 1)
	fc.set("second")
	got := c.waitFor(t, 2)

	if got[0] != "first" || got[1] != "second" {
		t.Errorf("got %v, want [first second]", got)
	}
}

func TestWatcher_InitialContentNotReported(t *testing.T) {
	fc := &fakeClipboard{text: "already there"}
	c := &collector{}
	w := newTestWatcher(fc, c)
	w.Start()
	defer w.Stop()

	time.Sleep(60 * time.Millisecond)
	if got := c.snapshot(); len(got) != 0 {
		t.Errorf("start-time content was reported: %v", got)
	}

	fc.set("fresh copy")
	got := c.waitFor(t, 1)
	if got[0] != "fresh copy" {
		t.Errorf("got %q, want fresh copy", got[0])
	}
}

func TestWatcher_UnchangedTextNotRepeated(t *testing.T) {
	fc := &fakeClipboard{}
	c := &collector{}
	w := newTestWatcher(fc, c)
	w.Start()
	defer w.Stop()

	fc.set("stable")
	c.waitFor(t, 1)
	time.Sleep(80 * time.Millisecond)

	if got := c.snapshot(); len(got) != 1 {
		t.Errorf("unchanged text reported %d times, want 1", len(got))
	}
}

func TestWatcher_EmptyTextSkipped(t *testing.T) {
	fc := &fakeClipboard{}
	c := &collector{}
	w := newTestWatcher(fc, c)
	w.Start()
	defer w.Stop()

	fc.set("something")
	c.waitFor(t, 1)
	fc.set("")
	time.Sleep(60 * time.Millisecond)

	if got := c.snapshot(); len(got) != 1 {
		t.Errorf("empty clipboard was reported: %v", got)
	}

	// Clearing still resets the comparison baseline, so re-copying the same
	// text afterwards is a new event.
	fc.set("something")
	c.waitFor(t, 2)
}

func TestWatcher_ReadErrorsSkipped(t *testing.T) {
	fc := &fakeClipboard{}
	c := &collector{}
	w := newTestWatcher(fc, c)
	w.Start()
	defer w.Stop()

	fc.fail(fmt.Errorf("no display"))
	time.Sleep(60 * time.Millisecond)
	if got := c.snapshot(); len(got) != 0 {
		t.Errorf("failed reads produced copies: %v", got)
	}

	fc.fail(nil)
	fc.set("recovered")
	got := c.waitFor(t, 1)
	if got[0] != "recovered" {
		t.Errorf("got %q, want recovered", got[0])
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	fc := &fakeClipboard{}
	w := New(Options{Interval: 10 * time.Millisecond, Read: fc.read})
	w.Start()
	w.Stop()
	w.Stop()
}
