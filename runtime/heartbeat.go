package runtime

import (
	"log/slog"
	"sync"
	"time"
)

const (
	DefaultPingInterval = 5 * time.Second
	DefaultPongGrace    = 1 * time.Second
)

type HeartbeatConfig struct {
	PingInterval time.Duration
	PongGrace    time.Duration
}

func (c HeartbeatConfig) withDefaults() HeartbeatConfig {
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.PongGrace <= 0 {
		c.PongGrace = DefaultPongGrace
	}
	return c
}

type HeartbeatState int

const (
	Alive HeartbeatState = iota
	AwaitingPong
	Dead
)

func (s HeartbeatState) String() string {
	switch s {
	case Alive:
		return "ALIVE"
	case AwaitingPong:
		return "AWAITING_PONG"
	default:
		return "DEAD"
	}
}

// Pinger sends a transport-level ping.
type Pinger interface {
	Ping() error
}

// Heartbeat is the liveness state machine of one connection:
//
//	ALIVE -(ping sent)-> AWAITING_PONG -(pong)-> ALIVE
//	AWAITING_PONG -(grace elapsed)-> DEAD
//
// Reaching DEAD calls onDead exactly once. Stop cancels both timers and
// guarantees onDead is never called afterwards.
type Heartbeat struct {
	mu        sync.Mutex
	log       *slog.Logger
	pinger    Pinger
	cfg       HeartbeatConfig
	onDead    func()
	state     HeartbeatState
	lastPong  time.Time
	pingTimer *time.Timer
	deadline  *time.Timer
	// generation invalidates callbacks of timers that were already replaced
	generation uint64
	stopped    bool
}

func NewHeartbeat(log *slog.Logger, pinger Pinger, cfg HeartbeatConfig, onDead func()) *Heartbeat {
	return &Heartbeat{
		log:    log,
		pinger: pinger,
		cfg:    cfg.withDefaults(),
		onDead: onDead,
		state:  Alive,
	}
}

// Start arms the first ping.
func (h *Heartbeat) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.lastPong = time.Now()
	h.armPing()
}

// armPing must be called with mu held.
func (h *Heartbeat) armPing() {
	h.generation++
	gen := h.generation
	if h.pingTimer != nil {
		h.pingTimer.Stop()
	}
	h.pingTimer = time.AfterFunc(h.cfg.PingInterval, func() { h.ping(gen) })
}

func (h *Heartbeat) ping(gen uint64) {
	h.mu.Lock()
	if h.stopped || gen != h.generation || h.state != Alive {
		h.mu.Unlock()
		return
	}
	h.state = AwaitingPong
	h.deadline = time.AfterFunc(h.cfg.PongGrace, func() { h.expire(gen) })
	h.mu.Unlock()

	// A failed write leaves the deadline armed, the connection dies after the grace period
	if err := h.pinger.Ping(); err != nil {
		h.log.Debug("Ping failed", "error", err)
	}
}

func (h *Heartbeat) expire(gen uint64) {
	h.mu.Lock()
	if h.stopped || gen != h.generation || h.state != AwaitingPong {
		h.mu.Unlock()
		return
	}
	h.state = Dead
	h.stopped = true
	if h.pingTimer != nil {
		h.pingTimer.Stop()
	}
	h.mu.Unlock()

	if h.onDead != nil {
		h.onDead()
	}
}

// Pong cancels the pending deadline and restarts the ping cadence.
func (h *Heartbeat) Pong() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stopped {
		return
	}
	h.lastPong = time.Now()
	if h.deadline != nil {
		h.deadline.Stop()
		h.deadline = nil
	}
	h.state = Alive
	h.armPing()
}

// Stop cancels every pending timer. Safe to call more than once.
func (h *Heartbeat) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopped = true
	h.state = Dead
	h.generation++
	if h.pingTimer != nil {
		h.pingTimer.Stop()
	}
	if h.deadline != nil {
		h.deadline.Stop()
	}
}

func (h *Heartbeat) State() HeartbeatState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Heartbeat) LastPong() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastPong
}
