// Package api exposes the client's local control API, used by the desktop UI
// to read the live channel state, manage order rooms and report
// notification interactions.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-orderstatus-client/internal/platform/windows"
	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

// LiveChannel is the part of the connection manager the API drives.
type LiveChannel interface {
	State() orderstatus.ConnectionState
	JoinOrder(ctx context.Context, orderID string) bool
	LeaveOrder(ctx context.Context, orderID string) bool
}

// ClickDispatcher handles notification interactions.
type ClickDispatcher interface {
	DispatchNotificationClick(ctx context.Context, click orderstatus.NotificationClick) error
}

// WindowTracker records the UI's open windows.
type WindowTracker interface {
	Register(id, url string, focusable, controlled bool) *windows.Window
	Unregister(id string)
}

// roomResponse reports the outcome of a join or leave. Sent is false when the
// command was not written to the socket.
type roomResponse struct {
	OrderID string                      `json:"orderId"`
	Sent    bool                        `json:"sent"`
	State   orderstatus.ConnectionState `json:"state"`
}

type windowRequest struct {
	ID         string `json:"id"`
	URL        string `json:"url"`
	Focusable  *bool  `json:"focusable,omitempty"`
	Controlled bool   `json:"controlled"`
}

// API holds the dependencies for the HTTP handlers.
type API struct {
	channel LiveChannel
	clicks  ClickDispatcher
	windows WindowTracker
	logger  *slog.Logger
}

// NewAPI creates a new API handler.
func NewAPI(channel LiveChannel, clicks ClickDispatcher, windows WindowTracker, logger *slog.Logger) *API {
	return &API{
		channel: channel,
		clicks:  clicks,
		windows: windows,
		logger:  logger,
	}
}

// ConnectionHandler returns the live channel state snapshot.
func (a *API) ConnectionHandler(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, a.channel.State())
}

// JoinOrderHandler subscribes this client to an order's status room.
func (a *API) JoinOrderHandler(w http.ResponseWriter, r *http.Request) {
	a.roomCommand(w, r, "join", a.channel.JoinOrder)
}

// LeaveOrderHandler unsubscribes this client from an order's status room.
func (a *API) LeaveOrderHandler(w http.ResponseWriter, r *http.Request) {
	a.roomCommand(w, r, "leave", a.channel.LeaveOrder)
}

func (a *API) roomCommand(w http.ResponseWriter, r *http.Request, name string, send func(context.Context, string) bool) {
	orderID := r.PathValue("orderID")
	if orderID == "" {
		WriteJSONError(w, http.StatusBadRequest, "missing order id")
		return
	}
	log := a.logger.With("order", orderID, "command", name)

	sent := send(r.Context(), orderID)
	if !sent {
		log.Debug("Room command was not sent")
	}

	WriteJSON(w, http.StatusAccepted, roomResponse{
		OrderID: orderID,
		Sent:    sent,
		State:   a.channel.State(),
	})
}

// NotificationClickHandler routes a notification interaction reported by the
// tray UI.
func (a *API) NotificationClickHandler(w http.ResponseWriter, r *http.Request) {
	var click orderstatus.NotificationClick
	if err := json.NewDecoder(r.Body).Decode(&click); err != nil {
		a.logger.Warn("Failed to decode notification click", "err", err)
		WriteJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	log := a.logger.With("tag", click.Notification.Tag, "action", string(click.Action))
	if err := a.clicks.DispatchNotificationClick(r.Context(), click); err != nil {
		log.Error("Failed to handle notification click", "err", err)
		WriteJSONError(w, http.StatusInternalServerError, "failed to handle notification click")
		return
	}
	log.Debug("Notification click handled")
	w.WriteHeader(http.StatusNoContent)
}

// RegisterWindowHandler records a window opened by the UI.
func (a *API) RegisterWindowHandler(w http.ResponseWriter, r *http.Request) {
	var req windowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ID == "" || req.URL == "" {
		WriteJSONError(w, http.StatusBadRequest, "id and url are required")
		return
	}
	focusable := true
	if req.Focusable != nil {
		focusable = *req.Focusable
	}
	a.windows.Register(req.ID, req.URL, focusable, req.Controlled)
	a.logger.Debug("Window registered", "window", req.ID)
	w.WriteHeader(http.StatusNoContent)
}

// UnregisterWindowHandler forgets a closed window.
func (a *API) UnregisterWindowHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("windowID")
	a.windows.Unregister(id)
	a.logger.Debug("Window unregistered", "window", id)
	w.WriteHeader(http.StatusNoContent)
}

// Routes mounts the handlers on mux.
func (a *API) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/connection", a.ConnectionHandler)
	mux.HandleFunc("POST /api/orders/{orderID}/join", a.JoinOrderHandler)
	mux.HandleFunc("POST /api/orders/{orderID}/leave", a.LeaveOrderHandler)
	mux.HandleFunc("POST /api/notifications/click", a.NotificationClickHandler)
	mux.HandleFunc("POST /api/windows", a.RegisterWindowHandler)
	mux.HandleFunc("DELETE /api/windows/{windowID}", a.UnregisterWindowHandler)
}
