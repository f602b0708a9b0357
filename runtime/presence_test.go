package runtime

import (
	"context"
	"direct-chat/domain"
	"direct-chat/errors"
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func TestPresence_NotifyAll_Reaches_Every_Connection(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	presence := NewPresence(registry, log, nil)

	alice, bob := identity("alice"), identity("bob")
	aliceConn, bobConn, anonymous := newFakeConn(), newFakeConn(), newFakeConn()
	registry.Register(aliceConn, alice)
	registry.Register(bobConn, bob)
	registry.Register(anonymous, nil)

	// When presence is broadcast
	presence.NotifyAll(context.Background())

	// Then every connection, the anonymous one included, gets the full set
	expected := domain.PresenceFrame{Online: domain.NewOnlineSet([]domain.Identity{*alice, *bob})}
	for _, conn := range []*fakeConn{aliceConn, bobConn, anonymous} {
		req.Equal([]domain.Frame{expected}, conn.Frames())
	}
}

func TestPresence_NotifyAll_Skips_Failing_Connection(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	registry := NewRegistry()
	presence := NewPresence(registry, log, nil)

	broken, healthy := newFakeConn(), newFakeConn()
	broken.sendErr = errors.ErrSlowConsumer
	registry.Register(broken, identity("alice"))
	registry.Register(healthy, identity("bob"))

	presence.NotifyAll(context.Background())

	req.Empty(broken.Frames())
	req.Len(healthy.FramesOf(domain.PresenceKind), 1)
}
