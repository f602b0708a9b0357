package ws

import (
	"context"
	"direct-chat/contract"
	"direct-chat/domain"
	"direct-chat/errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

var _ contract.Connection = (*Conn)(nil)

// Conn adapts a gorilla connection to contract.Connection.
// Frames are queued on a bounded buffer and written by a single write pump,
// so Send never blocks on the network.
type Conn struct {
	id              string
	ws              *websocket.Conn
	log             *slog.Logger
	send            chan []byte
	done            chan struct{}
	closeOnce       sync.Once
	deliveryTimeout time.Duration
}

func newConn(ws *websocket.Conn, log *slog.Logger, bufferSize int, deliveryTimeout time.Duration) *Conn {
	id := uuid.NewString()
	return &Conn{
		id:              id,
		ws:              ws,
		log:             log.With("conn_id", id),
		send:            make(chan []byte, bufferSize),
		done:            make(chan struct{}),
		deliveryTimeout: deliveryTimeout,
	}
}

func (c *Conn) ID() string { return c.id }

// Send queues frame for the write pump. It fails with ErrSlowConsumer when the
// buffer stays full for longer than the delivery timeout.
func (c *Conn) Send(ctx context.Context, frame domain.Frame) error {
	data, err := EncodeFrame(frame)
	if err != nil {
		return err
	}

	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}

	timer := time.NewTimer(c.deliveryTimeout)
	defer timer.Stop()
	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w: %d frames pending", errors.ErrSlowConsumer, len(c.send))
	}
}

// Ping writes a ping control frame. Control writes may run concurrently with the write pump.
func (c *Conn) Ping() error {
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Close stops the write pump and closes the socket. Later calls return ErrConnectionClosed.
func (c *Conn) Close() error {
	err := errors.ErrConnectionClosed
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		err = c.ws.Close()
	})
	return err
}

func (c *Conn) writePump() {
	for {
		select {
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Debug("Unable to set write deadline", "error", err)
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug("Write failed, closing connection", "error", err)
				_ = c.Close()
				return
			}
		}
	}
}
