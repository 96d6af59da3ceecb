package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watcher re-reads the strategies and risk/execution documents on change and
// hands the new Config to onChange. A strategies-document change takes
// effect on the callback's next scan cycle and a risk-document change takes
// effect at the callback's next gate evaluation — Watcher itself only
// guarantees the callback observes a consistent, freshly-parsed Config.
type Watcher struct {
	mu      sync.Mutex
	v       *viper.Viper
	path    string
	current Config
}

// NewWatcher loads path once via viper and returns a Watcher primed with it.
func NewWatcher(path string) (*Watcher, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &Watcher{v: v, path: path, current: cfg}, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() Config {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Watch starts viper's file watch and invokes onChange with the newly parsed
// config whenever the file changes. A parse error on reload is rejected —
// the prior config is kept and the error is handed to onError instead.
func (w *Watcher) Watch(onChange func(Config), onError func(error)) {
	w.v.OnConfigChange(func(_ fsnotify.Event) {
		next := Default()
		if err := w.v.Unmarshal(&next); err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		w.mu.Lock()
		w.current = next
		w.mu.Unlock()
		if onChange != nil {
			onChange(next)
		}
	})
	w.v.WatchConfig()
}
