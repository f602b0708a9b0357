package runtime

import (
	"context"
	"direct-chat/domain"
	"direct-chat/errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// fakeConn records every frame pushed to it.
type fakeConn struct {
	id      string
	mu      sync.Mutex
	frames  []domain.Frame
	pings   atomic.Int32
	closes  atomic.Int32
	sendErr error
	pingErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.NewString()}
}

func (c *fakeConn) ID() string { return c.id }

func (c *fakeConn) Send(_ context.Context, frame domain.Frame) error {
	if c.closes.Load() > 0 {
		return errors.ErrConnectionClosed
	}
	if c.sendErr != nil {
		return c.sendErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, frame)
	return nil
}

func (c *fakeConn) Ping() error {
	c.pings.Add(1)
	return c.pingErr
}

func (c *fakeConn) Close() error {
	c.closes.Add(1)
	return nil
}

func (c *fakeConn) Frames() []domain.Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Frame, len(c.frames))
	copy(out, c.frames)
	return out
}

func (c *fakeConn) FramesOf(kind domain.FrameKind) []domain.Frame {
	var out []domain.Frame
	for _, f := range c.Frames() {
		if f.Kind() == kind {
			out = append(out, f)
		}
	}
	return out
}
