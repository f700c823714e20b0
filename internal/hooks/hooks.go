// Package hooks implements the compile lifecycle extension points and the
// built-in plugins that tap them.
package hooks

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/minipack/minipack/internal/logging"
)

// Build is the compile a hook fires for. Run and Done of one compile receive
// the same *Build; End and Err are set before Done fires. Builds may overlap
// in watch mode, so per-build state belongs here rather than in a plugin.
type Build struct {
	ID    uint64
	Start time.Time
	End   time.Time
	Err   error
}

func (b *Build) Duration() time.Duration {
	return b.End.Sub(b.Start)
}

// Hook is an ordered list of callbacks run in registration order.
type Hook struct {
	mu   sync.Mutex
	taps []tap
}

type tap struct {
	name string
	fn   func(*Build)
}

// Tap registers fn under name.
func (h *Hook) Tap(name string, fn func(*Build)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.taps = append(h.taps, tap{name: name, fn: fn})
}

// Call invokes every registered callback with b.
func (h *Hook) Call(b *Build) {
	h.mu.Lock()
	taps := slices.Clone(h.taps)
	h.mu.Unlock()

	for _, t := range taps {
		t.fn(b)
	}
}

// Names returns the tap names in invocation order.
func (h *Hook) Names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	names := make([]string, len(h.taps))
	for i, t := range h.taps {
		names[i] = t.name
	}
	return names
}

// Hooks holds the extension points of a compiler. Run fires before a compile
// starts, Done after it completes.
type Hooks struct {
	Run  Hook
	Done Hook
}

func New() *Hooks {
	return &Hooks{}
}

// Plugin taps into a compiler's hooks.
type Plugin interface {
	Apply(h *Hooks)
}

// PluginFunc adapts a function to a Plugin.
type PluginFunc func(h *Hooks)

func (f PluginFunc) Apply(h *Hooks) {
	f(h)
}

var builtins = map[string]func(log *logging.Logger) Plugin{
	"timer":    newTimer,
	"announce": newAnnounce,
}

// Lookup returns the built-in plugin registered under name.
func Lookup(name string, log *logging.Logger) (Plugin, error) {
	fn, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("unknown plugin %q (available: %v)", name, Names())
	}
	return fn(log), nil
}

// Names returns the built-in plugin names in sorted order.
func Names() []string {
	return slices.Sorted(maps.Keys(builtins))
}

func newTimer(log *logging.Logger) Plugin {
	return PluginFunc(func(h *Hooks) {
		h.Done.Tap("timer", func(b *Build) {
			log.Infof("compile %d took %v", b.ID, b.Duration().Round(time.Millisecond))
		})
	})
}

func newAnnounce(log *logging.Logger) Plugin {
	return PluginFunc(func(h *Hooks) {
		h.Run.Tap("announce", func(b *Build) { log.Infof("compile %d started", b.ID) })
		h.Done.Tap("announce", func(b *Build) {
			if b.Err != nil {
				log.Infof("compile %d failed", b.ID)
				return
			}
			log.Infof("compile %d finished", b.ID)
		})
	})
}
