package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventortech/merpwms/internal/wave"
)

func dial(t *testing.T, srv *httptest.Server) *gws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func subscribe(t *testing.T, conn *gws.Conn, batchID int64) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: msgSubscribe, BatchID: batchID, MsgID: "m1"}))
	var ack map[string]interface{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "ACK", ack["type"])
}

func readEvent(t *testing.T, conn *gws.Conn) EventMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg EventMessage
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestHubBroadcastsBatchEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := NewHub(zerolog.Nop())
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer srv.Close()

	all := dial(t, srv)
	only7 := dial(t, srv)
	subscribe(t, all, 0)
	subscribe(t, only7, 7)

	var n wave.Notifier = hub
	n.Publish(ctx, wave.Event{Type: wave.EventBatchCreated, BatchID: 3, State: "draft"})
	n.Publish(ctx, wave.Event{Type: wave.EventBatchConfirmed, BatchID: 7, State: "in_progress", PickingIDs: []int64{1, 2}})

	first := readEvent(t, all)
	assert.Equal(t, msgBatchEvent, first.Type)
	assert.Equal(t, int64(3), first.Event.BatchID)
	second := readEvent(t, all)
	assert.Equal(t, wave.EventBatchConfirmed, second.Event.Type)

	got := readEvent(t, only7)
	assert.Equal(t, int64(7), got.Event.BatchID)
	assert.Equal(t, []int64{1, 2}, got.Event.PickingIDs)
}

func assertClosedByServer(t *testing.T, conn *gws.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	var ne net.Error
	if errors.As(err, &ne) {
		assert.False(t, ne.Timeout(), "connection left open: %v", err)
	}
}

func TestHubStopReleasesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zerolog.Nop())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	defer srv.Close()

	conn := dial(t, srv)
	subscribe(t, conn, 0)

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	assertClosedByServer(t, conn)

	// Connections arriving after the stop are closed instead of hanging on
	// registration
	late := dial(t, srv)
	assertClosedByServer(t, late)
}
