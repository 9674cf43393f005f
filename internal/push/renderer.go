package push

import (
	"context"
	"fmt"

	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

// DefaultVibrate is the vibration pattern attached to every notification.
var DefaultVibrate = []int{200, 100, 200}

// Renderer turns descriptors into platform notifications.
type Renderer struct {
	platform orderstatus.NotificationPlatform
}

// NewRenderer creates a Renderer that displays through platform.
func NewRenderer(platform orderstatus.NotificationPlatform) (*Renderer, error) {
	if platform == nil {
		return nil, fmt.Errorf("notification platform cannot be nil")
	}
	return &Renderer{platform: platform}, nil
}

// Render builds the notification for desc. The target URL travels as metadata
// and is never shown.
func Render(desc orderstatus.NotificationDescriptor) orderstatus.Notification {
	vibrate := make([]int, len(DefaultVibrate))
	copy(vibrate, DefaultVibrate)

	return orderstatus.Notification{
		Title: desc.Title,
		Body:  desc.Body,
		Icon:  desc.Icon,
		Badge: desc.Badge,
		Tag:   desc.Tag,
		Actions: []orderstatus.NotificationAction{
			{Action: orderstatus.ActionOpen, Title: "Open"},
			{Action: orderstatus.ActionDismiss, Title: "Dismiss"},
		},
		Vibrate: vibrate,
		Data:    orderstatus.NotificationData{URL: desc.TargetURL},
	}
}

// Display renders desc and hands it to the platform. Notifications sharing a
// tag replace each other, so repeated pings for one order collapse.
func (r *Renderer) Display(ctx context.Context, desc orderstatus.NotificationDescriptor) error {
	if err := r.platform.ShowNotification(ctx, Render(desc)); err != nil {
		return fmt.Errorf("failed to show notification %q: %w", desc.Tag, err)
	}
	return nil
}
