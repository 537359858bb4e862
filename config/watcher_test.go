package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wgcore.json")

	var k [32]byte
	k[0] = 1
	key := base64.StdEncoding.EncodeToString(k[:])
	if err := os.WriteFile(path, []byte(`{"privateKey":"`+key+`"}`), 0o600); err != nil {
		t.Fatalf("write initial config: %v", err)
	}

	w := NewWatcher(path, nil)
	reloaded := make(chan *Config, 1)
	w.OnReload = func(c *Config) { reloaded <- c }
	w.OnError = func(err error) { t.Logf("watcher error: %v", err) }

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`{"privateKey":"`+key+`","listenPort":51822}`), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case c := <-reloaded:
		if c.ListenPort != 51822 {
			t.Fatalf("reloaded ListenPort = %d, want 51822", c.ListenPort)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the debounced reload")
	}
}

func TestWatcherReportsParseErrors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wgcore.json")

	var k [32]byte
	k[0] = 1
	key := base64.StdEncoding.EncodeToString(k[:])
	if err := os.WriteFile(path, []byte(`{"privateKey":"`+key+`"}`), 0o600); err != nil {
		t.Fatalf("write initial config: %v", err)
	}

	w := NewWatcher(path, nil)
	errs := make(chan error, 1)
	w.OnError = func(err error) { errs <- err }
	w.OnReload = func(c *Config) { t.Fatalf("OnReload should not fire for an invalid document") }

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(path, []byte(`not valid json`), 0o600); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}

	select {
	case <-errs:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for the reload error")
	}
}
