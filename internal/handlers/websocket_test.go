package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/tubefetch/internal/interfaces"
	"github.com/ternarybob/tubefetch/internal/models"
	"github.com/ternarybob/tubefetch/internal/services/events"
)

func dialWS(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	// First message is always the connection greeting
	var hello WSMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "connected", hello.Type)
	return conn
}

func publishSnapshot(t *testing.T, svc *events.Service, snapshot models.ProgressSnapshot) {
	t.Helper()
	require.NoError(t, svc.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventDownloadProgress,
		Payload: snapshot,
	}))
}

func readProgress(t *testing.T, conn *websocket.Conn, timeout time.Duration) (map[string]interface{}, error) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	var msg WSMessage
	if err := conn.ReadJSON(&msg); err != nil {
		return nil, err
	}
	payload, _ := msg.Payload.(map[string]interface{})
	return payload, nil
}

func waitForClients(t *testing.T, h *WebSocketHandler, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return h.ClientCount() == n }, 2*time.Second, 10*time.Millisecond)
}

func followers(h *WebSocketHandler, id string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, c := range h.clients {
		if c.follows(id) {
			n++
		}
	}
	return n
}

func TestWebSocket_FollowedDownloadOnly(t *testing.T) {
	svc := events.NewService(arbor.NewLogger())
	handler := NewWebSocketHandler(svc, arbor.NewLogger(), 0)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	follower := dialWS(t, server, "?download_id=job-1")
	other := dialWS(t, server, "?download_id=job-2")
	waitForClients(t, handler, 2)

	publishSnapshot(t, svc, models.ProgressSnapshot{DownloadID: "job-1", Status: models.StatusDownloading, Percent: "10.0%", FilePath: "/secret"})

	payload, err := readProgress(t, follower, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job-1", payload["download_id"])
	assert.Equal(t, "10.0%", payload["percent"])
	assert.NotContains(t, payload, "file_path")

	_, err = readProgress(t, other, 200*time.Millisecond)
	assert.Error(t, err, "clients that did not name the download receive nothing")
}

func TestWebSocket_SubscribeCommand(t *testing.T) {
	svc := events.NewService(arbor.NewLogger())
	handler := NewWebSocketHandler(svc, arbor.NewLogger(), 0)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn := dialWS(t, server, "")
	waitForClients(t, handler, 1)

	require.NoError(t, conn.WriteJSON(wsCommand{Action: "subscribe", DownloadID: "job-9"}))

	require.Eventually(t, func() bool { return followers(handler, "job-9") == 1 }, 2*time.Second, 10*time.Millisecond)

	publishSnapshot(t, svc, models.ProgressSnapshot{DownloadID: "job-9", Status: models.StatusDownloading})
	payload, err := readProgress(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "job-9", payload["download_id"])

	require.NoError(t, conn.WriteJSON(wsCommand{Action: "unsubscribe", DownloadID: "job-9"}))
	require.Eventually(t, func() bool { return followers(handler, "job-9") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebSocket_ThrottleKeepsTerminal(t *testing.T) {
	svc := events.NewService(arbor.NewLogger())
	handler := NewWebSocketHandler(svc, arbor.NewLogger(), time.Hour)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn := dialWS(t, server, "?download_id=job-1")
	waitForClients(t, handler, 1)

	publishSnapshot(t, svc, models.ProgressSnapshot{DownloadID: "job-1", Status: models.StatusDownloading, Percent: "1.0%"})
	publishSnapshot(t, svc, models.ProgressSnapshot{DownloadID: "job-1", Status: models.StatusDownloading, Percent: "2.0%"})
	publishSnapshot(t, svc, models.ProgressSnapshot{DownloadID: "job-1", Status: models.StatusCompleted, Percent: "100%"})

	first, err := readProgress(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "1.0%", first["percent"])

	second, err := readProgress(t, conn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "completed", second["status"], "throttled update dropped, terminal update delivered")
}

func TestWebSocket_FullQueueKeepsTerminal(t *testing.T) {
	handler := NewWebSocketHandler(nil, arbor.NewLogger(), 0)

	client := &wsClient{
		send: make(chan []byte, 2),
		ids:  map[string]bool{"job-1": true},
	}
	// No writer goroutine drains this client, so its queue fills up
	handler.clients[nil] = client

	for _, percent := range []string{"10.0%", "20.0%", "30.0%"} {
		require.NoError(t, handler.handleProgress(context.Background(), interfaces.Event{
			Type:    interfaces.EventDownloadProgress,
			Payload: models.ProgressSnapshot{DownloadID: "job-1", Status: models.StatusDownloading, Percent: percent},
		}))
	}
	require.Len(t, client.send, 2)

	require.NoError(t, handler.handleProgress(context.Background(), interfaces.Event{
		Type:    interfaces.EventDownloadProgress,
		Payload: models.ProgressSnapshot{DownloadID: "job-1", Status: models.StatusCompleted, Percent: "100%"},
	}))
	require.Len(t, client.send, 2)

	var statuses []string
	for len(client.send) > 0 {
		var msg struct {
			Payload models.ProgressSnapshot `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(<-client.send, &msg))
		statuses = append(statuses, string(msg.Payload.Status)+" "+msg.Payload.Percent)
	}
	assert.Equal(t, []string{"downloading 20.0%", "completed 100%"}, statuses)
}

func TestWebSocket_DisconnectAndClose(t *testing.T) {
	svc := events.NewService(arbor.NewLogger())
	handler := NewWebSocketHandler(svc, arbor.NewLogger(), 0)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()

	conn := dialWS(t, server, "?download_id=job-1")
	waitForClients(t, handler, 1)

	conn.Close()
	waitForClients(t, handler, 0)

	// Publishing with no clients is harmless
	publishSnapshot(t, svc, models.ProgressSnapshot{DownloadID: "job-1", Status: models.StatusDownloading})

	require.NoError(t, handler.Close())
	assert.Error(t, handler.Close(), "second unsubscribe finds nothing")
}
