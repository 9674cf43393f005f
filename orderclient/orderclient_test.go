package orderclient_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-orderstatus-client/internal/platform/windows"
	"github.com/tinywideclouds/go-orderstatus-client/orderclient"
	"github.com/tinywideclouds/go-orderstatus-client/orderclient/config"
	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

type staticChannel struct{ state orderstatus.ConnectionState }

func (c staticChannel) State() orderstatus.ConnectionState { return c.state }
func (c staticChannel) JoinOrder(context.Context, string) bool  { return c.state.IsConnected() }
func (c staticChannel) LeaveOrder(context.Context, string) bool { return c.state.IsConnected() }

type nopClicks struct{}

func (nopClicks) DispatchNotificationClick(context.Context, orderstatus.NotificationClick) error {
	return nil
}

type nopLauncher struct{}

func (nopLauncher) Launch(context.Context, string) error { return nil }

func TestWrapper_Lifecycle(t *testing.T) {
	// Arrange
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry, err := windows.NewRegistry("https://railbite.example", nopLauncher{})
	require.NoError(t, err)

	svc, err := orderclient.New(&config.AppConfig{APIPort: "0"}, &orderclient.Dependencies{
		Channel: staticChannel{state: orderstatus.ConnectionState{Status: orderstatus.StatusConnected, SocketID: "sock-1"}},
		Clicks:  nopClicks{},
		Windows: registry,
	}, logger)
	require.NoError(t, err)

	// Act
	errCh := make(chan error, 1)
	go func() { errCh <- svc.Start(context.Background()) }()
	select {
	case <-svc.Ready():
	case err := <-errCh:
		t.Fatalf("service failed to start: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("service did not become ready")
	}
	base := "http://" + svc.Addr()

	// Assert
	resp, err := http.Get(base + "/readyz")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(base + "/api/connection")
	require.NoError(t, err)
	var state orderstatus.ConnectionState
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&state))
	_ = resp.Body.Close()
	assert.Equal(t, "sock-1", state.SocketID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Shutdown(ctx))
	assert.NoError(t, <-errCh)
}

func TestNew_Validation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	_, err := orderclient.New(&config.AppConfig{APIPort: "0"}, &orderclient.Dependencies{}, logger)
	assert.Error(t, err)
}
