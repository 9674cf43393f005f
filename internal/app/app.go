// Package app contains the shared, reusable logic for starting and stopping
// the client.
package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tinywideclouds/go-orderstatus-client/internal/platform/pubsub"
	"github.com/tinywideclouds/go-orderstatus-client/internal/realtime"
	"github.com/tinywideclouds/go-orderstatus-client/orderclient"
)

// Run executes the client lifecycle. The live channel is already connecting
// when Run is called; Run starts the control API and, when receiver is not
// nil, the push receiver, then waits for a signal or for ctx to end and
// shuts everything down.
func Run(
	ctx context.Context,
	logger *slog.Logger,
	apiService *orderclient.Wrapper,
	manager *realtime.Manager,
	receiver *pubsub.Receiver,
) {
	var wg sync.WaitGroup
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		logger.Info("Starting control API...")
		err := apiService.Start(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Control API failed", "err", err)
			cancel()
		}
	}()

	if receiver != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("Starting push receiver...")
			if err := receiver.Run(ctx); err != nil {
				logger.Error("Push receiver failed", "err", err)
				cancel()
			}
		}()
	}

	go func() {
		select {
		case <-manager.Done():
			logger.Info("Live channel stopped", "state", string(manager.State().Status))
		case <-ctx.Done():
		}
	}()

	// Wait for a shutdown signal.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(shutdown)
	select {
	case sig := <-shutdown:
		logger.Info("Received shutdown signal.", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("Context cancelled, initiating shutdown.")
	}

	// Execute graceful shutdown.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	logger.Info("Shutting down control API...")
	if err := apiService.Shutdown(shutdownCtx); err != nil {
		logger.Error("Control API shutdown failed.", "err", err)
	}

	logger.Info("Closing live channel...")
	if err := manager.Close(); err != nil {
		logger.Error("Live channel close failed.", "err", err)
	}

	// Stops the push receiver.
	cancel()
	wg.Wait()
	logger.Info("All services shut down gracefully.")
}
