package orderstatus

import "context"

// NotificationGateway is the capability the push worker needs from the
// notification stack.
type NotificationGateway interface {
	// Display asks the platform to show the notification described by desc.
	Display(ctx context.Context, desc NotificationDescriptor) error

	// RouteInteraction reacts to a user action on a notification carrying data.
	RouteInteraction(ctx context.Context, action Action, data NotificationData) error
}

// NotificationPlatform shows and closes notifications. Showing a notification
// whose tag is already on screen replaces it.
type NotificationPlatform interface {
	ShowNotification(ctx context.Context, n Notification) error
	CloseNotification(ctx context.Context, tag string) error
}

// WindowClient is an open application window.
type WindowClient interface {
	ID() string
	URL() string
	Focusable() bool
	Navigate(ctx context.Context, url string) error
	Focus(ctx context.Context) error
}

// WindowClients enumerates open application windows.
type WindowClients interface {
	// MatchAll lists open windows. With includeUncontrolled set, windows not
	// controlled by this worker are listed as well.
	MatchAll(ctx context.Context, includeUncontrolled bool) ([]WindowClient, error)
}

// WindowOpener is implemented by platforms that can open new windows.
type WindowOpener interface {
	OpenWindow(ctx context.Context, url string) (WindowClient, error)
}

// CredentialStore reads the bearer token presented on the live channel.
// Token returns ErrNoCredential when nothing is stored.
type CredentialStore interface {
	Token(ctx context.Context) (string, error)
}
