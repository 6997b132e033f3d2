package transport

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client pushes events to a remote websocket endpoint such as the avatar renderer.
// It dials lazily and redials after a failed write.
type Client struct {
	url    string
	header http.Header
	dialer *websocket.Dialer

	mu   sync.Mutex
	conn *websocket.Conn
}

// NewClient creates a client for the websocket URL.
func NewClient(url string, header http.Header) *Client {
	return &Client{
		url:    url,
		header: header,
		dialer: &websocket.Dialer{HandshakeTimeout: 5 * time.Second},
	}
}

// Name implements Sink.
func (c *Client) Name() string { return "websocket " + c.url }

// Send implements Sink.
func (c *Client) Send(ctx context.Context, e Event) error {
	msg, err := e.Encode()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		conn, _, err := c.dialer.DialContext(ctx, c.url, c.header)
		if err != nil {
			return fmt.Errorf("dial %s: %w", c.url, err)
		}
		log.Printf("Connected to %s", c.url)
		c.conn = conn
	}

	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.conn.SetWriteDeadline(deadline)
	if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		c.conn.Close()
		c.conn = nil
		return fmt.Errorf("write to %s: %w", c.url, err)
	}
	return nil
}

// Close closes the connection if one is open.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := c.conn.Close()
	c.conn = nil
	return err
}
