// Package windows tracks the application windows (browser tabs) a desktop
// client has open and opens new ones through the system browser.
package windows

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/google/uuid"

	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

// Launcher shows an absolute URL to the user.
type Launcher interface {
	Launch(ctx context.Context, url string) error
}

// Registry implements orderstatus.WindowClients and orderstatus.WindowOpener.
type Registry struct {
	origin   *url.URL
	launcher Launcher

	mu      sync.Mutex
	windows []*Window
	focused string
}

var (
	_ orderstatus.WindowClients = (*Registry)(nil)
	_ orderstatus.WindowOpener  = (*Registry)(nil)
)

// NewRegistry creates a registry for windows of origin.
func NewRegistry(origin string, launcher Launcher) (*Registry, error) {
	if launcher == nil {
		return nil, fmt.Errorf("launcher cannot be nil")
	}
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid origin %q", origin)
	}
	return &Registry{origin: u, launcher: launcher}, nil
}

// Register records a window the client did not open itself. Uncontrolled
// windows are only reported when MatchAll asks for them.
func (r *Registry) Register(id, rawURL string, focusable, controlled bool) *Window {
	w := &Window{id: id, url: rawURL, focusable: focusable, controlled: controlled, registry: r}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range r.windows {
		if existing.id == id {
			r.windows[i] = w
			return w
		}
	}
	r.windows = append(r.windows, w)
	return w
}

// Unregister forgets the window with id.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, w := range r.windows {
		if w.id == id {
			r.windows = append(r.windows[:i], r.windows[i+1:]...)
			return
		}
	}
}

// MatchAll returns the known windows in registration order.
func (r *Registry) MatchAll(_ context.Context, includeUncontrolled bool) ([]orderstatus.WindowClient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]orderstatus.WindowClient, 0, len(r.windows))
	for _, w := range r.windows {
		if !w.controlled && !includeUncontrolled {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// OpenWindow launches target, resolved against the origin, and registers the
// new window as controlled and focused.
func (r *Registry) OpenWindow(ctx context.Context, target string) (orderstatus.WindowClient, error) {
	abs, err := r.resolve(target)
	if err != nil {
		return nil, err
	}
	if err := r.launcher.Launch(ctx, abs); err != nil {
		return nil, fmt.Errorf("failed to open window for %s: %w", abs, err)
	}
	w := r.Register(uuid.NewString(), abs, true, true)
	r.setFocused(w.id)
	return w, nil
}

// Focused returns the id of the most recently focused window.
func (r *Registry) Focused() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.focused
}

func (r *Registry) setFocused(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.focused = id
}

func (r *Registry) resolve(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target url %q: %w", target, err)
	}
	return r.origin.ResolveReference(ref).String(), nil
}

// Window is one registered application window.
type Window struct {
	id         string
	focusable  bool
	controlled bool
	registry   *Registry

	mu  sync.Mutex
	url string
}

var _ orderstatus.WindowClient = (*Window)(nil)

func (w *Window) ID() string      { return w.id }
func (w *Window) Focusable() bool { return w.focusable }

func (w *Window) URL() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.url
}

// Navigate points the window at target, resolved against the origin.
func (w *Window) Navigate(ctx context.Context, target string) error {
	abs, err := w.registry.resolve(target)
	if err != nil {
		return err
	}
	if err := w.registry.launcher.Launch(ctx, abs); err != nil {
		return fmt.Errorf("failed to navigate window %s: %w", w.id, err)
	}
	w.mu.Lock()
	w.url = abs
	w.mu.Unlock()
	return nil
}

// Focus marks the window as the focused one.
func (w *Window) Focus(_ context.Context) error {
	if !w.focusable {
		return fmt.Errorf("window %s cannot be focused", w.id)
	}
	w.registry.setFocused(w.id)
	return nil
}
