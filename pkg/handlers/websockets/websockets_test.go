package websockets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/chris/escrow-settlement/pkg/middleware"
	"github.com/chris/escrow-settlement/pkg/models"
	"github.com/chris/escrow-settlement/pkg/notify"
	"github.com/chris/escrow-settlement/pkg/storage/memory"
	"github.com/chris/escrow-settlement/pkg/websockets"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var secret = []byte("ws-secret")

func connectRequest(connectionID, token string) events.APIGatewayWebsocketProxyRequest {
	req := events.APIGatewayWebsocketProxyRequest{QueryStringParameters: map[string]string{}}
	req.RequestContext.ConnectionID = connectionID
	if token != "" {
		req.QueryStringParameters["token"] = token
	}
	return req
}

func TestHandleConnect(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	handler := NewHandler(store, nil, secret)

	token, err := middleware.IssueToken(secret, models.Identity{UserId: "seller-1"}, time.Hour)
	require.NoError(t, err)

	resp, err := handler.HandleConnect(ctx, connectRequest("conn-1", token))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = handler.HandleConnect(ctx, connectRequest("conn-2", "garbage"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	ids, err := store.GetConnectionsByUser(ctx, "seller-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"conn-1"}, ids)

	resp, err = handler.HandleDisconnect(ctx, connectRequest("conn-1", ""))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ids, err = store.GetConnectionsByUser(ctx, "seller-1")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestServeHTTP(t *testing.T) {
	hub := websockets.NewHub()
	server := httptest.NewServer(NewHandler(nil, hub, secret))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	t.Run("Unauthenticated", func(t *testing.T) {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Receives Notifications", func(t *testing.T) {
		token, err := middleware.IssueToken(secret, models.Identity{UserId: "seller-1"}, time.Hour)
		require.NoError(t, err)

		conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
		require.NoError(t, err)
		defer conn.Close()

		require.Eventually(t, func() bool { return hub.Connections("seller-1") == 1 }, time.Second, 10*time.Millisecond)

		require.NoError(t, hub.Notify(context.Background(), notify.Notification{
			UserID: "seller-1", Type: notify.TypeEscrowFunded, Message: "funded",
		}))

		var msg websockets.Message
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, websockets.MessageTypeNotification, msg.Type)
	})
}
