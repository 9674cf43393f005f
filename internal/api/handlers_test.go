package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tinywideclouds/go-orderstatus-client/internal/api"
	"github.com/tinywideclouds/go-orderstatus-client/internal/platform/windows"
	"github.com/tinywideclouds/go-orderstatus-client/pkg/orderstatus"
)

type mockLiveChannel struct{ mock.Mock }

func (m *mockLiveChannel) State() orderstatus.ConnectionState {
	return m.Called().Get(0).(orderstatus.ConnectionState)
}
func (m *mockLiveChannel) JoinOrder(ctx context.Context, orderID string) bool {
	return m.Called(ctx, orderID).Bool(0)
}
func (m *mockLiveChannel) LeaveOrder(ctx context.Context, orderID string) bool {
	return m.Called(ctx, orderID).Bool(0)
}

type mockClickDispatcher struct{ mock.Mock }

func (m *mockClickDispatcher) DispatchNotificationClick(ctx context.Context, click orderstatus.NotificationClick) error {
	return m.Called(ctx, click).Error(0)
}

type nopLauncher struct{}

func (nopLauncher) Launch(context.Context, string) error { return nil }

var (
	testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
	connected  = orderstatus.ConnectionState{Status: orderstatus.StatusConnected, SocketID: "sock-1"}
)

// apiFixture wires the API onto a mux with mocked collaborators.
type apiFixture struct {
	mux      *http.ServeMux
	channel  *mockLiveChannel
	clicks   *mockClickDispatcher
	registry *windows.Registry
}

func setup(t *testing.T) *apiFixture {
	t.Helper()
	registry, err := windows.NewRegistry("https://railbite.example", nopLauncher{})
	require.NoError(t, err)

	fx := &apiFixture{
		mux:      http.NewServeMux(),
		channel:  new(mockLiveChannel),
		clicks:   new(mockClickDispatcher),
		registry: registry,
	}
	api.NewAPI(fx.channel, fx.clicks, registry, testLogger).Routes(fx.mux)
	return fx
}

func (fx *apiFixture) do(method, target string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	rr := httptest.NewRecorder()
	fx.mux.ServeHTTP(rr, req)
	return rr
}

func TestConnectionHandler(t *testing.T) {
	fx := setup(t)
	fx.channel.On("State").Return(connected).Once()

	rr := fx.do(http.MethodGet, "/api/connection", nil)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"connected","socketId":"sock-1"}`, rr.Body.String())
	fx.channel.AssertExpectations(t)
}

func TestRoomHandlers(t *testing.T) {
	t.Run("Success - Join while connected", func(t *testing.T) {
		// Arrange
		fx := setup(t)
		fx.channel.On("State").Return(connected).Once()
		fx.channel.On("JoinOrder", mock.Anything, "ORD-42").Return(true).Once()

		// Act
		rr := fx.do(http.MethodPost, "/api/orders/ORD-42/join", nil)

		// Assert
		assert.Equal(t, http.StatusAccepted, rr.Code)
		assert.JSONEq(t, `{"orderId":"ORD-42","sent":true,"state":{"status":"connected","socketId":"sock-1"}}`, rr.Body.String())
		fx.channel.AssertExpectations(t)
	})

	t.Run("Success - Leave while disconnected reports not sent", func(t *testing.T) {
		fx := setup(t)
		fx.channel.On("State").Return(orderstatus.ConnectionState{Status: orderstatus.StatusDisconnected}).Once()
		fx.channel.On("LeaveOrder", mock.Anything, "ORD-42").Return(false).Once()

		rr := fx.do(http.MethodPost, "/api/orders/ORD-42/leave", nil)

		assert.Equal(t, http.StatusAccepted, rr.Code)
		assert.JSONEq(t, `{"orderId":"ORD-42","sent":false,"state":{"status":"disconnected"}}`, rr.Body.String())
		fx.channel.AssertExpectations(t)
	})

	t.Run("Success - Failed send reports not sent while connected", func(t *testing.T) {
		fx := setup(t)
		fx.channel.On("State").Return(connected).Once()
		fx.channel.On("JoinOrder", mock.Anything, "ORD-42").Return(false).Once()

		rr := fx.do(http.MethodPost, "/api/orders/ORD-42/join", nil)

		assert.Equal(t, http.StatusAccepted, rr.Code)
		assert.JSONEq(t, `{"orderId":"ORD-42","sent":false,"state":{"status":"connected","socketId":"sock-1"}}`, rr.Body.String())
		fx.channel.AssertExpectations(t)
	})

	t.Run("Failure - Wrong method", func(t *testing.T) {
		fx := setup(t)

		rr := fx.do(http.MethodGet, "/api/orders/ORD-42/join", nil)

		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
		fx.channel.AssertNotCalled(t, "JoinOrder", mock.Anything, mock.Anything)
	})
}

func TestNotificationClickHandler(t *testing.T) {
	click := orderstatus.NotificationClick{
		Action: orderstatus.ActionOpen,
		Notification: orderstatus.Notification{
			Tag:  "ORD-42",
			Data: orderstatus.NotificationData{URL: "/order-tracking/ORD-42"},
		},
	}

	t.Run("Success - Click is dispatched", func(t *testing.T) {
		fx := setup(t)
		fx.clicks.On("DispatchNotificationClick", mock.Anything, click).Return(nil).Once()

		rr := fx.do(http.MethodPost, "/api/notifications/click", click)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		fx.clicks.AssertExpectations(t)
	})

	t.Run("Failure - Dispatch error", func(t *testing.T) {
		fx := setup(t)
		fx.clicks.On("DispatchNotificationClick", mock.Anything, click).Return(errors.New("close failed")).Once()

		rr := fx.do(http.MethodPost, "/api/notifications/click", click)

		assert.Equal(t, http.StatusInternalServerError, rr.Code)
	})

	t.Run("Success - Unknown action is routed like a click", func(t *testing.T) {
		fx := setup(t)
		archive := click
		archive.Action = "archive"
		fx.clicks.On("DispatchNotificationClick", mock.Anything, archive).Return(nil).Once()

		rr := fx.do(http.MethodPost, "/api/notifications/click", archive)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		fx.clicks.AssertExpectations(t)
	})

	t.Run("Failure - Invalid body", func(t *testing.T) {
		fx := setup(t)
		req := httptest.NewRequest(http.MethodPost, "/api/notifications/click", bytes.NewBufferString("{"))
		rr := httptest.NewRecorder()

		fx.mux.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestWindowHandlers(t *testing.T) {
	ctx := context.Background()
	fx := setup(t)

	rr := fx.do(http.MethodPost, "/api/windows", map[string]any{"id": "tab-1", "url": "https://railbite.example/menu"})
	require.Equal(t, http.StatusNoContent, rr.Code)

	all, err := fx.registry.MatchAll(ctx, true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Focusable(), "windows are focusable unless stated otherwise")

	rr = fx.do(http.MethodPost, "/api/windows", map[string]any{"id": "tab-2"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = fx.do(http.MethodDelete, "/api/windows/tab-1", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	all, _ = fx.registry.MatchAll(ctx, true)
	assert.Empty(t, all)
}
