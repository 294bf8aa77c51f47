package ws

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/b3stream/internal/domain"
)

// conn is a Subscriber backed by a gorilla WebSocket. Writes are serialised
// by writeMu because gorilla allows one concurrent writer.
type conn struct {
	id           string
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu   sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

func newConn(id string, ws *websocket.Conn, writeTimeout time.Duration) *conn {
	return &conn{id: id, ws: ws, writeTimeout: writeTimeout}
}

func (c *conn) ID() string { return c.id }

// Send writes msg as one text frame, bounded by writeTimeout and ctx.
func (c *conn) Send(ctx context.Context, msg []byte) error {
	if c.closed.Load() {
		return domain.ErrSubscriberClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return domain.ErrSubscriberClosed
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrDeliveryFailed, c.id, err)
	}

	_ = c.ws.SetWriteDeadline(c.deadline(ctx))
	if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrDeliveryFailed, c.id, err)
	}
	return nil
}

// ping writes a keepalive ping frame.
func (c *conn) ping() error {
	if c.closed.Load() {
		return domain.ErrSubscriberClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.PingMessage, nil)
}

// Close marks the handle closed and closes the socket. It does not wait for
// an in-flight write.
func (c *conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		err = c.ws.Close()
	})
	return err
}

func (c *conn) deadline(ctx context.Context) time.Time {
	d := time.Now().Add(c.writeTimeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}
