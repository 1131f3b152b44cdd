package memory

import (
	"context"
	"sync"
	"time"
)

// Window keeps the most recent entries of every dialog in memory.
// Thread-safe for concurrent access.
type Window struct {
	mu      sync.RWMutex
	dialogs map[string]*dialogData
	maxSize int // Maximum entries per dialog
	idleTTL time.Duration

	// Lifecycle management
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type dialogData struct {
	entries    History
	lastAccess time.Time
}

// NewWindow creates a history window.
// maxSize is the number of entries kept per dialog (default 20); dialogs idle
// for longer than idleTTL (default 1h) are dropped by a background sweep.
func NewWindow(maxSize int, idleTTL time.Duration) *Window {
	if maxSize <= 0 {
		maxSize = 20
	}
	if idleTTL <= 0 {
		idleTTL = time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Window{
		dialogs: make(map[string]*dialogData),
		maxSize: maxSize,
		idleTTL: idleTTL,
		ctx:     ctx,
		cancel:  cancel,
	}
	w.wg.Add(1)
	go w.cleanupLoop()
	return w
}

// Close stops the cleanup goroutine.
func (w *Window) Close() {
	w.cancel()
	w.wg.Wait()
}

// History returns a copy of the dialog's entries and refreshes its access time.
func (w *Window) History(dialogID string) History {
	w.mu.Lock()
	defer w.mu.Unlock()

	d, ok := w.dialogs[dialogID]
	if !ok || len(d.entries) == 0 {
		return History{}
	}
	d.lastAccess = time.Now()

	out := make(History, len(d.entries))
	copy(out, d.entries)
	return out
}

// Append adds entries to a dialog, trimming it to the window size.
func (w *Window) Append(dialogID string, entries ...Entry) {
	w.mu.Lock()
	defer w.mu.Unlock()

	d, ok := w.dialogs[dialogID]
	if !ok {
		d = &dialogData{entries: make(History, 0, w.maxSize)}
		w.dialogs[dialogID] = d
	}

	now := time.Now()
	for _, e := range entries {
		if e.Timestamp.IsZero() {
			e.Timestamp = now
		}
		d.entries = append(d.entries, e)
	}
	d.lastAccess = now

	if len(d.entries) > w.maxSize {
		d.entries = d.entries[len(d.entries)-w.maxSize:]
	}
}

// Clear forgets a dialog.
func (w *Window) Clear(dialogID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.dialogs, dialogID)
}

// Len returns the number of dialogs held.
func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.dialogs)
}

func (w *Window) cleanupLoop() {
	defer w.wg.Done()
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.evictIdle(time.Now())
		}
	}
}

func (w *Window) evictIdle(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()

	evicted := 0
	for id, d := range w.dialogs {
		if now.Sub(d.lastAccess) > w.idleTTL {
			delete(w.dialogs, id)
			evicted++
		}
	}
	return evicted
}
