// Package orderstatus contains the public domain models and capability
// interfaces shared by the live channel and the push-notification worker.
package orderstatus

import "errors"

// Defaults applied to any descriptor field the push payload leaves out.
const (
	DefaultTitle     = "RailBite"
	DefaultBody      = "You have a new update from RailBite"
	DefaultIcon      = "/icons/icon-192x192.png"
	DefaultBadge     = "/icons/badge-72x72.png"
	DefaultTag       = "railbite-notification"
	DefaultTargetURL = "/"
)

// CredentialKey is the fixed storage key the bearer token lives under.
const CredentialKey = "token"

// ErrNoCredential is returned by a CredentialStore when no token is stored.
var ErrNoCredential = errors.New("no credential stored")

// NotificationDescriptor is the parsed form of an inbound push payload.
// It is built fresh per push and discarded once the notification is shown.
type NotificationDescriptor struct {
	Title     string `json:"title"`
	Body      string `json:"body"`
	Icon      string `json:"icon"`
	Badge     string `json:"badge"`
	Tag       string `json:"tag"`
	TargetURL string `json:"url"`
}

// DefaultDescriptor returns a descriptor with every field at its default.
func DefaultDescriptor() NotificationDescriptor {
	return NotificationDescriptor{
		Title:     DefaultTitle,
		Body:      DefaultBody,
		Icon:      DefaultIcon,
		Badge:     DefaultBadge,
		Tag:       DefaultTag,
		TargetURL: DefaultTargetURL,
	}
}

// Action identifies a user action on a rendered notification.
type Action string

const (
	ActionOpen    Action = "open"
	ActionDismiss Action = "dismiss"
)

// NotificationAction is a button shown on a notification.
type NotificationAction struct {
	Action Action `json:"action"`
	Title  string `json:"title"`
}

// NotificationData is the opaque metadata attached to a notification.
type NotificationData struct {
	URL string `json:"url"`
}

// Notification is what the platform is asked to display.
type Notification struct {
	Title   string               `json:"title"`
	Body    string               `json:"body"`
	Icon    string               `json:"icon"`
	Badge   string               `json:"badge"`
	Tag     string               `json:"tag"`
	Actions []NotificationAction `json:"actions"`
	Vibrate []int                `json:"vibrate"`
	Data    NotificationData     `json:"data"`
}

// NotificationClick is raised when the user interacts with a notification.
// An empty Action means the notification body itself was clicked.
type NotificationClick struct {
	Action       Action       `json:"action"`
	Notification Notification `json:"notification"`
}

// ConnectionStatus is the live channel's connection status.
type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
)

// ConnectionState is the observable state of a live channel connection.
// SocketID is non-empty iff Status is StatusConnected.
type ConnectionState struct {
	Status   ConnectionStatus `json:"status"`
	SocketID string           `json:"socketId,omitempty"`
}

// IsConnected reports whether the handshake has completed.
func (s ConnectionState) IsConnected() bool {
	return s.Status == StatusConnected
}
