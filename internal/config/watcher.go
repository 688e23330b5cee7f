package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// overridesFileName holds a live-reloadable subset of Config: the fields an
// operator might reasonably want to change without bouncing the process
// (encode mode and the codec list the server is told about). Everything
// else (server, MAC, buffer sizes) requires a restart.
const overridesFileName = "overrides.json"

type overrides struct {
	Mode   *string `json:"mode,omitempty"`
	Codecs *string `json:"codecs,omitempty"`
}

// Watcher watches overrides.json in a config directory and invokes onChange
// whenever Mode or Codecs change, matching the reload pattern in the
// teacher's internal/auth.Service.
type Watcher struct {
	mu       sync.Mutex
	path     string
	watcher  *fsnotify.Watcher
	onChange func(mode, codecs string)
}

// NewWatcher creates a Watcher rooted at configDir and starts watching.
// onChange is invoked (from a background goroutine) whenever the overrides
// file changes with a non-empty field.
func NewWatcher(configDir string, onChange func(mode, codecs string)) (*Watcher, error) {
	w := &Watcher{
		path:     filepath.Join(configDir, overridesFileName),
		onChange: onChange,
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w.watcher = fw

	if err := fw.Add(configDir); err != nil {
		slog.Warn("config: could not watch config dir", "err", err)
	}

	go w.loop()
	return w, nil
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		w.watcher.Close()
	}
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Name == w.path && (ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config: watcher error", "err", err)
		}
	}
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return
	}
	var ov overrides
	if err := json.Unmarshal(data, &ov); err != nil {
		slog.Warn("config: malformed overrides.json", "err", err)
		return
	}
	if ov.Mode == nil && ov.Codecs == nil {
		return
	}
	mode, codecs := "", ""
	if ov.Mode != nil {
		mode = *ov.Mode
	}
	if ov.Codecs != nil {
		codecs = *ov.Codecs
	}
	slog.Info("config: overrides reloaded", "mode", mode, "codecs", codecs)
	if w.onChange != nil {
		w.onChange(mode, codecs)
	}
}
