package websockets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwtypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/chris/escrow-settlement/pkg/notify"
	"github.com/chris/escrow-settlement/pkg/storage/memory"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoster struct {
	posted []string
	gone   map[string]bool
	fail   map[string]bool
}

func (f *fakePoster) PostToConnection(_ context.Context, in *apigatewaymanagementapi.PostToConnectionInput, _ ...func(*apigatewaymanagementapi.Options)) (*apigatewaymanagementapi.PostToConnectionOutput, error) {
	id := *in.ConnectionId
	if f.gone[id] {
		return nil, &apigwtypes.GoneException{}
	}
	if f.fail[id] {
		return nil, errors.New("throttled")
	}
	f.posted = append(f.posted, id)
	return &apigatewaymanagementapi.PostToConnectionOutput{}, nil
}

func TestPublisherNotify(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.AddConnection(ctx, "live", "seller"))
	require.NoError(t, store.AddConnection(ctx, "stale", "seller"))
	require.NoError(t, store.AddConnection(ctx, "flaky", "seller"))
	require.NoError(t, store.AddConnection(ctx, "other", "buyer"))

	poster := &fakePoster{gone: map[string]bool{"stale": true}, fail: map[string]bool{"flaky": true}}
	publisher := NewPublisherWithClient(poster, store)

	err := publisher.Notify(ctx, notify.Notification{UserID: "seller", Type: notify.TypeEscrowFunded})

	require.NoError(t, err)
	assert.Equal(t, []string{"live"}, poster.posted)

	remaining, _ := store.GetConnectionsByUser(ctx, "seller")
	assert.ElementsMatch(t, []string{"live", "flaky"}, remaining)
}

func TestNewMessage(t *testing.T) {
	balance := int64(90000)
	assert.Equal(t, MessageTypeNotification, NewMessage(notify.Notification{}).Type)
	assert.Equal(t, MessageTypeBalanceUpdate, NewMessage(notify.Notification{Balance: &balance}).Type)
}

func TestHubNotify(t *testing.T) {
	hub := NewHub()
	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		hub.Register("seller", "c1", conn)
		close(registered)
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				hub.Unregister("seller", "c1")
				return
			}
		}
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
	}
	assert.Equal(t, 1, hub.Connections("seller"))

	balance := int64(90000)
	require.NoError(t, hub.Notify(context.Background(), notify.Notification{
		UserID: "seller", Type: notify.TypeReceiptConfirmed, Balance: &balance,
	}))

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Type    MessageType         `json:"type"`
		Payload notify.Notification `json:"payload"`
	}
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, MessageTypeBalanceUpdate, got.Type)
	assert.Equal(t, notify.TypeReceiptConfirmed, got.Payload.Type)
	assert.Equal(t, int64(90000), *got.Payload.Balance)

	assert.NoError(t, hub.Notify(context.Background(), notify.Notification{UserID: "nobody"}))
}

func TestHubNotifyClosedConnection(t *testing.T) {
	hub := NewHub()
	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register("seller", "c1", conn)
		conns <- conn
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	var conn *websocket.Conn
	select {
	case conn = <-conns:
	case <-time.After(2 * time.Second):
		t.Fatal("connection was not registered")
	}
	// The socket dies before the read loop notices and unregisters it.
	require.NoError(t, conn.Close())

	err = hub.Notify(context.Background(), notify.Notification{UserID: "seller", Type: notify.TypeReceiptConfirmed})

	assert.EqualError(t, err, "failed to deliver to 1 of 1 connections")
	assert.Equal(t, 1, hub.Connections("seller"))
}
