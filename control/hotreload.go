// control/hotreload.go
// Author: momentics <momentics@gmail.com>
//
// Reload hooks fired when the watched config file changes.

package control

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var (
	hooksMu     sync.RWMutex
	reloadHooks []func(*Config)
)

// RegisterReloadHook adds a new component reload listener.
func RegisterReloadHook(fn func(*Config)) {
	hooksMu.Lock()
	reloadHooks = append(reloadHooks, fn)
	hooksMu.Unlock()
}

func hooks() []func(*Config) {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return append([]func(*Config){}, reloadHooks...)
}

// TriggerHotReload dispatches all reload hooks asynchronously.
func TriggerHotReload(cfg *Config) {
	for _, fn := range hooks() {
		go fn(cfg)
	}
}

// WatchConfig re-decodes v whenever its config file changes and passes the
// result to the reload hooks. Invalid edits go to onError and are dropped.
func WatchConfig(v *viper.Viper, onError func(error)) {
	v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := Decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		TriggerHotReload(cfg)
	})
	v.WatchConfig()
}
