package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trekops/unifi-reporter/internal/collector"
	"github.com/trekops/unifi-reporter/internal/model"
)

var upgrader = websocket.Upgrader{}

func wsServer(t *testing.T, messages []envelope) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for _, m := range messages {
			body, _ := json.Marshal(m)
			if err := conn.WriteMessage(websocket.TextMessage, body); err != nil {
				return
			}
		}
		// keep the connection open until the client disconnects
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestCollector_StreamsRelevantMessagesIntoBuffer(t *testing.T) {
	now := time.Now().UTC()
	srv := wsServer(t, []envelope{
		{Meta: struct {
			Message string `json:"message"`
		}{Message: "wu.roam"}, Data: []map[string]any{{"time": now.Format(time.RFC3339), "ap_mac": "aa:bb:cc:dd:ee:01"}}},
		{Meta: struct {
			Message string `json:"message"`
		}{Message: "irrelevant.message"}, Data: []map[string]any{{"time": now.Format(time.RFC3339)}}},
	})
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(Config{URL: wsURL, BufferSize: 100}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	defer func() {
		cancel()
		c.Stop()
	}()

	require.Eventually(t, func() bool {
		entries, err := c.Collect(context.Background(), collector.Window{Start: now.Add(-time.Minute), End: now.Add(time.Minute)})
		return err == nil && len(entries) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCollector_CollectFiltersOutsideWindow(t *testing.T) {
	c := New(Config{BufferSize: 10}, nil)
	now := time.Now().UTC()
	c.buf.Push(model.NewLogEntry(model.SourcePush, now.Add(-time.Hour), "wu.roam", nil))
	c.buf.Push(model.NewLogEntry(model.SourcePush, now, "wu.roam", nil))

	entries, err := c.Collect(context.Background(), collector.Window{Start: now.Add(-time.Minute), End: now.Add(time.Minute)})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCollector_StopIsIdempotentWhenNeverStarted(t *testing.T) {
	c := New(Config{}, nil)
	assert.NotPanics(t, func() { c.Stop() })
}

// TestCollector_BackoffResetsAfterStableConnection holds every server
// connection open well past MaxBackoff before closing it, so the client
// should never let backoff grow past one doubling: each reconnect proves
// the prior outage is over and the wait resets to MinBackoff.
func TestCollector_BackoffResetsAfterStableConnection(t *testing.T) {
	const (
		minBackoff = 10 * time.Millisecond
		maxBackoff = 40 * time.Millisecond
		holdOpen   = 80 * time.Millisecond
	)

	var mu sync.Mutex
	var connectedAt []time.Time

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		mu.Lock()
		connectedAt = append(connectedAt, time.Now())
		mu.Unlock()
		time.Sleep(holdOpen)
		conn.Close()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	c := New(Config{URL: wsURL, BufferSize: 10, MinBackoff: minBackoff, MaxBackoff: maxBackoff}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)
	defer func() {
		cancel()
		c.Stop()
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(connectedAt) >= 4
	}, 3*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for i := 2; i < len(connectedAt); i++ {
		gap := connectedAt[i].Sub(connectedAt[i-1]) - holdOpen
		assert.Lessf(t, gap, maxBackoff, "reconnect gap %d grew to the capped backoff instead of resetting to MinBackoff", i)
	}
}
