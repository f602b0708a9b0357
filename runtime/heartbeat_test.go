package runtime

import (
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

var testHeartbeat = HeartbeatConfig{PingInterval: 20 * time.Millisecond, PongGrace: 10 * time.Millisecond}

// pongingPinger answers every ping like a healthy client would.
type pongingPinger struct {
	heartbeat *Heartbeat
	pings     atomic.Int32
}

func (p *pongingPinger) Ping() error {
	p.pings.Add(1)
	go p.heartbeat.Pong()
	return nil
}

func TestHeartbeat_Silent_Connection_Dies_Once(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	conn := newFakeConn()
	var deaths atomic.Int32

	heartbeat := NewHeartbeat(log, conn, testHeartbeat, func() { deaths.Add(1) })

	// When the connection never answers pings
	heartbeat.Start()

	// Then it is declared dead after interval + grace
	req.Eventually(func() bool { return deaths.Load() == 1 },
		time.Second, 5*time.Millisecond)
	req.Equal(Dead, heartbeat.State())

	// And nothing fires afterwards
	time.Sleep(5 * testHeartbeat.PingInterval)
	req.Equal(int32(1), deaths.Load())
	req.Equal(int32(1), conn.pings.Load())
}

func TestHeartbeat_Answered_Pings_Keep_Connection_Alive(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	pinger := &pongingPinger{}
	var deaths atomic.Int32

	heartbeat := NewHeartbeat(log, pinger, testHeartbeat, func() { deaths.Add(1) })
	pinger.heartbeat = heartbeat

	// When every ping is answered
	heartbeat.Start()
	time.Sleep(10 * testHeartbeat.PingInterval)

	// Then several pings went out and the connection is still alive
	req.GreaterOrEqual(pinger.pings.Load(), int32(3))
	req.Zero(deaths.Load())
	req.NotEqual(Dead, heartbeat.State())
	req.WithinDuration(time.Now(), heartbeat.LastPong(), 5*testHeartbeat.PingInterval)
	heartbeat.Stop()
}

func TestHeartbeat_Stop_Cancels_Pending_Timers(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	conn := newFakeConn()
	var deaths atomic.Int32

	heartbeat := NewHeartbeat(log, conn, testHeartbeat, func() { deaths.Add(1) })
	heartbeat.Start()

	// When the connection is torn down before the first ping
	heartbeat.Stop()
	heartbeat.Stop()
	time.Sleep(5 * testHeartbeat.PingInterval)

	// Then no ping was sent and the dead callback never ran
	req.Zero(conn.pings.Load())
	req.Zero(deaths.Load())
	req.Equal(Dead, heartbeat.State())
}

func TestHeartbeat_Pong_After_Stop_Is_Ignored(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	conn := newFakeConn()

	heartbeat := NewHeartbeat(log, conn, testHeartbeat, nil)
	heartbeat.Start()
	heartbeat.Stop()

	heartbeat.Pong()
	time.Sleep(3 * testHeartbeat.PingInterval)

	req.Equal(Dead, heartbeat.State())
	req.Zero(conn.pings.Load())
}

func TestHeartbeat_Defaults(t *testing.T) {
	req := require.New(t)
	cfg := HeartbeatConfig{}.withDefaults()
	req.Equal(5*time.Second, cfg.PingInterval)
	req.Equal(time.Second, cfg.PongGrace)
	req.Equal("AWAITING_PONG", AwaitingPong.String())
}
