// Package auth guards the player's debug/status HTTP surface with a flat
// list of shared API keys, hot-reloaded from disk so an operator can
// revoke or rotate a key without restarting the daemon.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const keysFileName = "api_keys.json"

// APIKey is one entry in api_keys.json: a label (so an operator can tell
// which monitoring tool or script a key belongs to) and the key itself.
type APIKey struct {
	Label string `json:"label"`
	Key   string `json:"key"`
}

// Service holds the set of keys authorized to reach the debug surface.
type Service struct {
	mu      sync.RWMutex
	keyDir  string
	keys    []APIKey
	watcher *fsnotify.Watcher
}

// NewService creates a Service watching keyDir for api_keys.json changes.
// A missing file is not an error — it means the debug surface is
// unrestricted, matching spec.md's debug surface being a local-network
// diagnostic tool rather than a secured control plane.
func NewService(keyDir string) (*Service, error) {
	s := &Service{keyDir: keyDir}

	if err := s.Reload(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("auth: could not create fsnotify watcher", "err", err)
		return s, nil
	}
	s.watcher = watcher

	keysPath := s.keysPath()
	if err := watcher.Add(filepath.Dir(keysPath)); err != nil {
		slog.Warn("auth: could not watch key directory", "err", err)
	}

	go s.watchLoop(keysPath)
	return s, nil
}

func (s *Service) keysPath() string {
	return filepath.Join(s.keyDir, keysFileName)
}

// Reload re-reads api_keys.json.
func (s *Service) Reload() error {
	data, err := os.ReadFile(s.keysPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.mu.Lock()
			s.keys = nil
			s.mu.Unlock()
			return nil
		}
		return err
	}

	var keys []APIKey
	if err := json.Unmarshal(data, &keys); err != nil {
		return err
	}

	s.mu.Lock()
	s.keys = keys
	s.mu.Unlock()
	slog.Debug("auth: reloaded api keys", "count", len(keys))
	return nil
}

// Unrestricted reports whether no keys are configured, in which case the
// debug surface allows every request.
func (s *Service) Unrestricted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys) == 0
}

// VerifyKey reports whether key matches any configured key, using a
// constant-time comparison to avoid leaking key length/prefix via timing.
func (s *Service) VerifyKey(key string) bool {
	if key == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range s.keys {
		if subtle.ConstantTimeCompare([]byte(key), []byte(k.Key)) == 1 {
			return true
		}
	}
	return false
}

// Close stops the file watcher.
func (s *Service) Close() {
	if s.watcher != nil {
		s.watcher.Close()
	}
}

func (s *Service) watchLoop(keysPath string) {
	if s.watcher == nil {
		return
	}
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name == keysPath && (event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				if err := s.Reload(); err != nil {
					slog.Warn("auth: failed to reload api keys", "err", err)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("auth: watcher error", "err", err)
		}
	}
}
