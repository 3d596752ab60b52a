package app

import (
	"os"
	"sync"
	"time"
)

// JobWatcher polls a set of files and invokes a callback when any of them
// changes. It is used to re-route a job while it is being edited.
type JobWatcher struct {
	mu            sync.Mutex
	paths         []string
	baseline      map[string]time.Time
	checkInterval time.Duration
	stopCh        chan struct{}
	doneCh        chan struct{}
	onChange      func(changed []string) // Called from the watcher goroutine
}

// NewJobWatcher creates a watcher for the given files. Files that do not
// exist yet are reported once they appear.
func NewJobWatcher(checkInterval time.Duration, paths ...string) *JobWatcher {
	w := &JobWatcher{
		paths:         paths,
		checkInterval: checkInterval,
	}
	w.ResetBaseline()
	return w
}

// OnChange sets the callback to invoke when watched files change.
func (w *JobWatcher) OnChange(callback func(changed []string)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = callback
}

// Start begins watching in a background goroutine.
func (w *JobWatcher) Start() {
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	go w.watchLoop()
}

// Stop stops the watcher goroutine and waits for it to exit.
func (w *JobWatcher) Stop() {
	close(w.stopCh)
	<-w.doneCh
}

func (w *JobWatcher) watchLoop() {
	defer close(w.doneCh)
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			changed := w.checkForUpdate()
			if len(changed) == 0 {
				continue
			}
			w.mu.Lock()
			cb := w.onChange
			w.mu.Unlock()
			if cb != nil {
				cb(changed)
			}
		}
	}
}

// checkForUpdate returns the files modified since the last check and moves
// the baseline forward so each change is reported once.
func (w *JobWatcher) checkForUpdate() []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	var changed []string
	for _, p := range w.paths {
		mod := modTime(p)
		if !mod.Equal(w.baseline[p]) {
			changed = append(changed, p)
			w.baseline[p] = mod
		}
	}
	return changed
}

// ResetBaseline records the current modification times as unchanged.
func (w *JobWatcher) ResetBaseline() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.baseline = make(map[string]time.Time, len(w.paths))
	for _, p := range w.paths {
		w.baseline[p] = modTime(p)
	}
}

// Paths returns the watched files.
func (w *JobWatcher) Paths() []string {
	return w.paths
}

// modTime returns the zero time for missing files.
func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
