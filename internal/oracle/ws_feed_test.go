package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func TestWSFeed_ServesLatestFrame(t *testing.T) {
	frames := make(chan priceMessage, 4)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		for msg := range frames {
			data, _ := json.Marshal(msg)
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
		// Keep connection open until client disconnects
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()
	defer close(frames)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	feed, err := NewWSFeed(context.Background(), wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSFeed: %v", err)
	}
	defer feed.Close()

	// Before any frame: no observation.
	if _, _, err := feed.LatestPrice(context.Background()); !errors.Is(err, ErrNoObservation) {
		t.Errorf("expected ErrNoObservation, got %v", err)
	}

	frames <- priceMessage{Answer: 200_000_000_000, UpdatedAt: time.Now().UnixMilli()}
	waitForAnswer(t, feed, 200_000_000_000)

	frames <- priceMessage{Answer: 250_000_000_000, UpdatedAt: time.Now().UnixMilli()}
	waitForAnswer(t, feed, 250_000_000_000)
}

func TestWSFeed_AdapterIntegration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		data, _ := json.Marshal(priceMessage{Answer: 200_000_000_000, UpdatedAt: time.Now().UnixMilli()})
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	feed, err := NewWSFeed(context.Background(), wsURL, nil, nil)
	if err != nil {
		t.Fatalf("NewWSFeed: %v", err)
	}
	defer feed.Close()

	waitForAnswer(t, feed, 200_000_000_000)

	adapter := NewAdapter(feed, WithMaxAge(time.Minute))
	price, err := adapter.CurrentPrice(context.Background())
	if err != nil {
		t.Fatalf("CurrentPrice: %v", err)
	}
	if price != 200_000_000_000 {
		t.Errorf("expected 200000000000, got %d", price)
	}
}

// waitForAnswer polls until the feed serves the expected answer.
func waitForAnswer(t *testing.T, feed *WSFeed, want int64) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		answer, _, err := feed.LatestPrice(context.Background())
		if err == nil && answer == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("feed never served answer %d", want)
}
