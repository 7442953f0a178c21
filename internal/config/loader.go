package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// FileName is the gateway configuration file inside the config directory.
const FileName = "gateway.yaml"

// reloadDelay coalesces the bursts of events editors produce for one save.
const reloadDelay = 100 * time.Millisecond

// ${NAME} or ${NAME:fallback}
var envRef = regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

// expandEnvVars substitutes environment references. Unset variables take
// their fallback, or the empty string when there is none.
func expandEnvVars(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		m := envRef.FindStringSubmatch(ref)
		if v, ok := os.LookupEnv(m[1]); ok {
			return v
		}
		return m[2]
	})
}

// LoadFile decodes the YAML file at path into dest after env expansion.
// Keys absent from the file keep whatever dest already holds.
func LoadFile(path string, dest any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(raw))), dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Loader owns the current configuration and swaps it on reload.
type Loader struct {
	dir    string
	logger atomic.Pointer[slog.Logger]

	mu        sync.RWMutex
	cfg       *Config
	callbacks []func()
}

func NewLoader(dir string, logger *slog.Logger) *Loader {
	l := &Loader{dir: dir}
	l.logger.Store(logger)
	return l
}

// SetLogger replaces the logger used for load and reload records, for
// callers that only know their log format once the config is loaded.
func (l *Loader) SetLogger(logger *slog.Logger) {
	l.logger.Store(logger)
}

func (l *Loader) log() *slog.Logger {
	return l.logger.Load()
}

func (l *Loader) path() string {
	return filepath.Join(l.dir, FileName)
}

// Load reads gateway.yaml over the defaults. A missing file leaves the
// defaults in place; an invalid one keeps the previous configuration.
func (l *Loader) Load() error {
	next := DefaultConfig()
	err := LoadFile(l.path(), next)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		l.log().Warn("config file not found, using defaults", "path", l.path())
	case err != nil:
		return fmt.Errorf("load gateway config: %w", err)
	}
	if err := next.Validate(); err != nil {
		return fmt.Errorf("validate gateway config: %w", err)
	}

	l.mu.Lock()
	l.cfg = next
	l.mu.Unlock()
	l.log().Info("configuration loaded", "dir", l.dir)
	return nil
}

// Config returns the current configuration. Callers must not modify it.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// OnReload registers fn to run after every successful reload.
func (l *Loader) OnReload(fn func()) {
	l.mu.Lock()
	l.callbacks = append(l.callbacks, fn)
	l.mu.Unlock()
}

func (l *Loader) reload() {
	if err := l.Load(); err != nil {
		l.log().Error("failed to reload config", "error", err)
		return
	}
	l.mu.RLock()
	callbacks := append([]func(){}, l.callbacks...)
	l.mu.RUnlock()
	for _, fn := range callbacks {
		fn()
	}
}

// Watch reloads the configuration when gateway.yaml is written or created,
// until ctx is done.
func (l *Loader) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	if err := w.Add(l.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}

	go func() {
		defer w.Close()
		var pending *time.Timer
		defer func() {
			if pending != nil {
				pending.Stop()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != FileName || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				l.log().Info("config file changed", "file", ev.Name, "op", ev.Op.String())
				if pending != nil {
					pending.Stop()
				}
				pending = time.AfterFunc(reloadDelay, l.reload)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				l.log().Error("config watcher error", "error", err)
			}
		}
	}()
	return nil
}
