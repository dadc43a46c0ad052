package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// WSFeedConfig configures WebSocket feed behavior.
type WSFeedConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
}

// DefaultWSFeedConfig returns default WebSocket feed configuration.
func DefaultWSFeedConfig() WSFeedConfig {
	return WSFeedConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
	}
}

// priceMessage is one frame of the upstream price stream.
type priceMessage struct {
	Answer    int64 `json:"answer"`    // 8-decimal fixed point per troy ounce
	UpdatedAt int64 `json:"updatedAt"` // unix milliseconds
}

// ErrNoObservation is returned before the stream has delivered any frame.
var ErrNoObservation = errors.New("oracle: no price observation received yet")

// WSFeed is a PriceFeed backed by a WebSocket price stream. It keeps the
// most recent frame and serves it from memory; the connection is
// maintained in the background with exponential-backoff reconnects.
type WSFeed struct {
	endpoint string
	config   WSFeedConfig
	logger   *log.Logger

	conn   *websocket.Conn
	connMu sync.Mutex
	closed atomic.Bool

	// latest holds *priceMessage, nil until the first frame arrives
	latest atomic.Value

	done chan struct{}
	wg   sync.WaitGroup
}

// NewWSFeed connects to the endpoint and starts the background reader.
func NewWSFeed(ctx context.Context, endpoint string, config *WSFeedConfig, logger *log.Logger) (*WSFeed, error) {
	cfg := DefaultWSFeedConfig()
	if config != nil {
		cfg = *config
	}
	if logger == nil {
		logger = log.Default()
	}

	f := &WSFeed{
		endpoint: endpoint,
		config:   cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}

	if err := f.connect(ctx); err != nil {
		return nil, err
	}

	f.wg.Add(1)
	go f.readLoop()

	f.wg.Add(1)
	go f.pingLoop()

	return f, nil
}

// connect establishes the WebSocket connection.
func (f *WSFeed) connect(ctx context.Context) error {
	f.connMu.Lock()
	defer f.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, f.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	f.conn = conn
	return nil
}

// LatestPrice returns the most recent frame from the stream.
func (f *WSFeed) LatestPrice(_ context.Context) (int64, time.Time, error) {
	v := f.latest.Load()
	if v == nil {
		return 0, time.Time{}, ErrNoObservation
	}
	msg := v.(*priceMessage)
	return msg.Answer, time.UnixMilli(msg.UpdatedAt), nil
}

// Close shuts down the background goroutines and the connection.
func (f *WSFeed) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(f.done)

	f.connMu.Lock()
	if f.conn != nil {
		f.conn.Close()
	}
	f.connMu.Unlock()

	f.wg.Wait()
	return nil
}

// readLoop consumes frames and reconnects on failure.
func (f *WSFeed) readLoop() {
	defer f.wg.Done()

	for {
		select {
		case <-f.done:
			return
		default:
		}

		f.connMu.Lock()
		conn := f.conn
		f.connMu.Unlock()

		if conn == nil {
			f.reconnect()
			continue
		}

		conn.SetReadDeadline(time.Now().Add(f.config.ReadTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			if f.closed.Load() {
				return
			}
			f.logger.Printf("oracle ws read error: %v", err)
			f.reconnect()
			continue
		}

		var msg priceMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			f.logger.Printf("oracle ws bad frame: %v", err)
			continue
		}
		f.latest.Store(&msg)
	}
}

// reconnect re-dials with exponential backoff until success or shutdown.
func (f *WSFeed) reconnect() {
	delay := f.config.ReconnectDelay
	for {
		select {
		case <-f.done:
			return
		case <-time.After(delay):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		err := f.connect(ctx)
		cancel()
		if err == nil {
			f.logger.Printf("oracle ws reconnected to %s", f.endpoint)
			return
		}

		f.logger.Printf("oracle ws reconnect failed: %v", err)
		delay *= 2
		if delay > f.config.MaxReconnectDelay {
			delay = f.config.MaxReconnectDelay
		}
	}
}

// pingLoop keeps the connection alive.
func (f *WSFeed) pingLoop() {
	defer f.wg.Done()

	ticker := time.NewTicker(f.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-f.done:
			return
		case <-ticker.C:
			f.connMu.Lock()
			conn := f.conn
			if conn != nil {
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
			f.connMu.Unlock()
		}
	}
}

// Compile-time interface check.
var _ PriceFeed = (*WSFeed)(nil)
