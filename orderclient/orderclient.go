// Package orderclient wires the local control API into a runnable HTTP
// service.
package orderclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tinywideclouds/go-orderstatus-client/internal/api"
	"github.com/tinywideclouds/go-orderstatus-client/orderclient/config"
)

// Dependencies holds the components the control API drives.
type Dependencies struct {
	Channel api.LiveChannel
	Clicks  api.ClickDispatcher
	Windows api.WindowTracker
}

// Wrapper owns the control API's HTTP server and its readiness.
type Wrapper struct {
	server    *http.Server
	addr      string
	listener  net.Listener
	ready     atomic.Bool
	readyChan chan struct{}
	logger    *slog.Logger
}

// New creates the service and attaches all handlers. The API listens on
// localhost only.
func New(cfg *config.AppConfig, deps *Dependencies, logger *slog.Logger) (*Wrapper, error) {
	if deps == nil || deps.Channel == nil || deps.Clicks == nil || deps.Windows == nil {
		return nil, fmt.Errorf("all service dependencies are required")
	}

	w := &Wrapper{
		addr:      net.JoinHostPort("127.0.0.1", cfg.APIPort),
		readyChan: make(chan struct{}),
		logger:    logger,
	}

	mux := http.NewServeMux()
	api.NewAPI(deps.Channel, deps.Clicks, deps.Windows, logger.With("component", "API")).Routes(mux)
	mux.HandleFunc("GET /healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("GET /readyz", func(rw http.ResponseWriter, _ *http.Request) {
		if !w.ready.Load() {
			rw.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		rw.WriteHeader(http.StatusOK)
	})

	w.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return w, nil
}

// Ready is closed once the listener is accepting connections.
func (w *Wrapper) Ready() <-chan struct{} {
	return w.readyChan
}

// Addr returns the bound address. Only valid after Ready is closed.
func (w *Wrapper) Addr() string {
	return w.listener.Addr().String()
}

// Start listens and serves until Shutdown. It returns nil after a clean
// shutdown.
func (w *Wrapper) Start(ctx context.Context) error {
	lc := net.ListenConfig{}
	listener, err := lc.Listen(ctx, "tcp", w.addr)
	if err != nil {
		return fmt.Errorf("HTTP server failed to start: %w", err)
	}
	w.listener = listener
	w.ready.Store(true)
	close(w.readyChan)
	w.logger.Info("HTTP listener is active.", "addr", listener.Addr().String())

	if err := w.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (w *Wrapper) Shutdown(ctx context.Context) error {
	w.ready.Store(false)
	if err := w.server.Shutdown(ctx); err != nil {
		w.logger.Error("HTTP server shutdown failed.", "err", err)
		return err
	}
	w.logger.Info("HTTP server shut down.")
	return nil
}
