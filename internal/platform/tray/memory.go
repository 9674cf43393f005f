// Package tray provides NotificationPlatform implementations that keep the
// set of on-screen notifications, one per tag.
package tray

import (
	"context"
	"sync"

	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

// MemoryTray keeps visible notifications in memory, keyed by tag.
type MemoryTray struct {
	mu    sync.Mutex
	order []string
	byTag map[string]orderstatus.Notification
}

var _ orderstatus.NotificationPlatform = (*MemoryTray)(nil)

func NewMemoryTray() *MemoryTray {
	return &MemoryTray{byTag: make(map[string]orderstatus.Notification)}
}

// ShowNotification replaces any notification with the same tag.
func (t *MemoryTray) ShowNotification(_ context.Context, n orderstatus.Notification) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byTag[n.Tag]; ok {
		t.removeLocked(n.Tag)
	}
	t.order = append(t.order, n.Tag)
	t.byTag[n.Tag] = n
	return nil
}

// CloseNotification removes the notification with tag, if any.
func (t *MemoryTray) CloseNotification(_ context.Context, tag string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.byTag[tag]; ok {
		t.removeLocked(tag)
		delete(t.byTag, tag)
	}
	return nil
}

// Visible returns the notifications on screen, oldest first.
func (t *MemoryTray) Visible() []orderstatus.Notification {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]orderstatus.Notification, 0, len(t.order))
	for _, tag := range t.order {
		out = append(out, t.byTag[tag])
	}
	return out
}

func (t *MemoryTray) removeLocked(tag string) {
	for i, existing := range t.order {
		if existing == tag {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}
