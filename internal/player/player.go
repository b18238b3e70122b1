// Package player renders finalized recordings. Renderers are pluggable by
// name and resolved once, when the session is configured.
package player

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
)

// MediaRef is what a renderer is asked to show.
type MediaRef struct {
	URL      string
	Name     string
	Autoplay bool
}

// Renderer draws a playback widget into a container.
type Renderer interface {
	// Markup returns the container content for instance id.
	Markup(id int) string
	// Initialize prepares instance id and calls ready once it can accept
	// media. ready may be called from another goroutine.
	Initialize(id int, ready func()) error
	SetMedia(id int, ref MediaRef) error
}

// Factory builds a renderer writing to w.
type Factory func(w io.Writer) Renderer

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register adds a renderer factory to the registry.
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Resolve returns a registered factory by name.
func Resolve(name string) (Factory, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown player %q (available: %v)", name, namesLocked())
	}
	return f, nil
}

// Names lists the registered renderers.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return namesLocked()
}

func namesLocked() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// lastID numbers player instances so several can coexist.
var lastID atomic.Int64

// Player is one placed renderer instance.
type Player struct {
	id       int
	renderer Renderer

	ready     chan struct{}
	readyOnce sync.Once

	mutex   sync.Mutex
	pending *MediaRef
}

// New places a renderer built by factory into w and initializes it.
func New(w io.Writer, factory Factory) (*Player, error) {
	p := &Player{
		id:    int(lastID.Add(1)),
		ready: make(chan struct{}),
	}
	p.renderer = factory(w)

	if markup := p.renderer.Markup(p.id); markup != "" {
		if _, err := io.WriteString(w, markup); err != nil {
			return nil, fmt.Errorf("failed to place player: %w", err)
		}
	}

	if err := p.renderer.Initialize(p.id, p.markReady); err != nil {
		return nil, fmt.Errorf("failed to initialize player %d: %w", p.id, err)
	}
	return p, nil
}

func (p *Player) ID() int { return p.id }

// Ready is closed once the renderer accepts media.
func (p *Player) Ready() <-chan struct{} {
	return p.ready
}

// SetMedia shows ref. Media set before the renderer is ready is applied as
// soon as it becomes ready; only the latest one is kept.
func (p *Player) SetMedia(ref MediaRef) error {
	select {
	case <-p.ready:
		return p.renderer.SetMedia(p.id, ref)
	default:
	}

	p.mutex.Lock()
	p.pending = &ref
	p.mutex.Unlock()

	// ready may have fired between the check and storing pending
	select {
	case <-p.ready:
		p.flush()
	default:
	}
	return nil
}

func (p *Player) markReady() {
	p.readyOnce.Do(func() {
		close(p.ready)
		slog.Debug("Player ready", "id", p.id)
		p.flush()
	})
}

func (p *Player) flush() {
	p.mutex.Lock()
	ref := p.pending
	p.pending = nil
	p.mutex.Unlock()

	if ref == nil {
		return
	}
	if err := p.renderer.SetMedia(p.id, *ref); err != nil {
		slog.Error("Failed to set pending media", "player", p.id, "error", err)
	}
}
