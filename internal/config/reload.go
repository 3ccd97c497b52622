package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// Watcher watches ConfigFile for changes and re-runs Load on each
// write, handing the result to onReload only for the options spec
// §4.I says are safe to change at runtime.
type Watcher struct {
	fs       *pflag.FlagSet
	log      *logrus.Entry
	watcher  *fsnotify.Watcher
	current  *Config
	onReload func(*Config)
}

// NewWatcher starts watching cfg.ConfigFile. Returns nil, nil if
// cfg.ConfigFile is empty (no file to watch).
func NewWatcher(cfg *Config, fs *pflag.FlagSet, log *logrus.Entry, onReload func(*Config)) (*Watcher, error) {
	if cfg.ConfigFile == "" {
		return nil, nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(cfg.ConfigFile); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{fs: fs, log: log, watcher: fw, current: cfg, onReload: onReload}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	next, err := Load(w.current.ConfigFile, w.fs)
	if err != nil {
		w.log.WithError(err).Warn("config reload failed, keeping previous configuration")
		return
	}

	if socketOptionsChanged(w.current, next) {
		w.log.Warn("socket-level configuration changed on disk; ignoring (requires restart)")
		restoreSocketFields(next, w.current)
	}

	w.current = next
	if w.onReload != nil {
		w.onReload(next)
	}
}

func socketOptionsChanged(a, b *Config) bool {
	return a.IP != b.IP || a.Port != b.Port || a.BacklogSize != b.BacklogSize || a.ReusePort != b.ReusePort
}

func restoreSocketFields(next, prev *Config) {
	next.IP = prev.IP
	next.Port = prev.Port
	next.BacklogSize = prev.BacklogSize
	next.ReusePort = prev.ReusePort
}

// Close stops watching.
func (w *Watcher) Close() error {
	if w == nil || w.watcher == nil {
		return nil
	}
	return w.watcher.Close()
}
