package config

import (
	"time"

	"github.com/fsnotify/fsnotify"

	"wgcore/wglog"
)

// Watcher reloads a Config from disk whenever the underlying file
// changes and hands the result to OnReload. It never mutates a
// running Sessions directly — per spec.md §5's single-owner
// contract, the driver is responsible for applying a reloaded Config
// (typically by diffing peers and calling Sessions.AddPeer/RemovePeer
// on its own goroutine).
//
// Grounded on the teacher's fsnotify-based config hot-reload watcher:
// same debounce-on-Write-event shape, generalized from the teacher's
// single-document reload to wgcore's Config/PeerConfig types.
type Watcher struct {
	path     string
	log      wglog.Logger
	OnReload func(*Config)
	OnError  func(error)

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewWatcher creates a Watcher for path. Call Start to begin watching.
func NewWatcher(path string, log wglog.Logger) *Watcher {
	if log == nil {
		log = wglog.NewNop()
	}
	return &Watcher{path: path, log: log, done: make(chan struct{})}
}

// Start begins watching path in a background goroutine. Debounces
// bursty editor writes (rename-then-create, multiple Write events for
// one save) behind a short quiet period before reloading.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fw.Add(w.path); err != nil {
		fw.Close()
		return err
	}
	w.watcher = fw
	go w.loop()
	return nil
}

// Stop ends the watch goroutine and releases the underlying inotify handle.
func (w *Watcher) Stop() error {
	close(w.done)
	if w.watcher != nil {
		return w.watcher.Close()
	}
	return nil
}

func (w *Watcher) loop() {
	const debounce = 200 * time.Millisecond
	var timer *time.Timer
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, w.reload)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.OnError != nil {
				w.OnError(err)
			} else {
				w.log.Printf("config: watch error: %v", err)
			}
		}
	}
}

func (w *Watcher) reload() {
	c, err := Load(w.path)
	if err != nil {
		if w.OnError != nil {
			w.OnError(err)
		} else {
			w.log.Printf("config: reload %s failed: %v", w.path, err)
		}
		return
	}
	if w.OnReload != nil {
		w.OnReload(c)
	}
}
