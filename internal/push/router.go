package push

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

// Router sends the user to the page a notification points at, reusing an
// open window of this origin when there is one.
type Router struct {
	clients orderstatus.WindowClients
	origin  string
	logger  *slog.Logger
}

// NewRouter creates a Router for windows served from origin
// (scheme://host[:port]).
func NewRouter(clients orderstatus.WindowClients, origin string, logger *slog.Logger) (*Router, error) {
	if clients == nil {
		return nil, fmt.Errorf("window clients cannot be nil")
	}
	normalized, err := originOf(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid origin %q: %w", origin, err)
	}
	return &Router{
		clients: clients,
		origin:  normalized,
		logger:  logger.With("component", "NotificationRouter"),
	}, nil
}

// RouteInteraction handles a user action. Dismiss does nothing; any other
// action focuses the first same-origin window after navigating it to the
// target, or opens a new window when none exists and the platform can.
func (r *Router) RouteInteraction(ctx context.Context, action orderstatus.Action, data orderstatus.NotificationData) error {
	if action == orderstatus.ActionDismiss {
		return nil
	}

	target := data.URL
	if target == "" {
		target = orderstatus.DefaultTargetURL
	}
	log := r.logger.With("target", target, "action", string(action))

	windows, err := r.clients.MatchAll(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to list window clients: %w", err)
	}

	for _, w := range windows {
		if !w.Focusable() || !r.sameOrigin(w.URL()) {
			continue
		}
		log.Debug("Reusing open window", "window", w.ID())
		if err := w.Navigate(ctx, target); err != nil {
			return fmt.Errorf("failed to navigate window %s: %w", w.ID(), err)
		}
		if err := w.Focus(ctx); err != nil {
			return fmt.Errorf("failed to focus window %s: %w", w.ID(), err)
		}
		return nil
	}

	opener, ok := r.clients.(orderstatus.WindowOpener)
	if !ok {
		log.Debug("No matching window and platform cannot open windows")
		return nil
	}
	log.Debug("Opening new window")
	if _, err := opener.OpenWindow(ctx, target); err != nil {
		return fmt.Errorf("failed to open window: %w", err)
	}
	return nil
}

func (r *Router) sameOrigin(rawURL string) bool {
	o, err := originOf(rawURL)
	return err == nil && o == r.origin
}

// originOf returns the lowercase scheme://host of rawURL.
func originOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url %q has no origin", rawURL)
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), nil
}
