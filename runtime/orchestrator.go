// Package runtime owns the live side of the chat: who is connected, how they
// are kept alive, and where messages go. It holds no transport code.
package runtime

import (
	"context"
	"direct-chat/contract"
	"direct-chat/domain"
	"direct-chat/errors"
	"direct-chat/observability"
	"log/slog"
	"sync"
)

type OrchestratorConfig struct {
	Verifier  contract.IdentityVerifier
	Heartbeat HeartbeatConfig
	Metrics   *observability.Metrics // optional
}

// Orchestrator drives the connection lifecycle:
// accept -> verify -> register -> heartbeat -> broadcast, and the reverse on
// disconnect. Every transport goes through it, never through the registry.
type Orchestrator struct {
	log         *slog.Logger
	registry    *Registry
	broadcaster contract.Broadcaster
	router      *Router
	verifier    contract.IdentityVerifier
	heartbeat   HeartbeatConfig
	metrics     *observability.Metrics
	supervisor  contract.ISupervisor
	workers     []contract.Worker
}

func NewOrchestrator(log *slog.Logger, registry *Registry, broadcaster contract.Broadcaster,
	router *Router, supervisor contract.ISupervisor, cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		log:         log,
		registry:    registry,
		broadcaster: broadcaster,
		router:      router,
		verifier:    cfg.Verifier,
		heartbeat:   cfg.Heartbeat,
		metrics:     cfg.Metrics,
		supervisor:  supervisor,
	}
}

// Session is the orchestrator's handle on one accepted connection.
type Session struct {
	conn      contract.Connection
	identity  *domain.Identity
	heartbeat *Heartbeat
}

func (s *Session) Conn() contract.Connection { return s.conn }

// Identity returns the resolved owner, false for an anonymous connection.
func (s *Session) Identity() (domain.Identity, bool) {
	if s.identity == nil {
		return domain.Identity{}, false
	}
	return *s.identity, true
}

// Pong must be called by the transport for every pong received.
func (s *Session) Pong() { s.heartbeat.Pong() }

// Accept verifies token and registers conn. A failed verification does not
// reject the connection: it stays registered as anonymous, learns the
// OnlineSet but never appears in it and never receives deliveries.
func (o *Orchestrator) Accept(ctx context.Context, conn contract.Connection, token string) *Session {
	session := &Session{conn: conn}

	identity, err := o.verifier.Verify(token)
	if err != nil {
		o.log.Info("Connection stays anonymous", "conn_id", conn.ID(), "error", err)
	} else {
		session.identity = &identity
	}
	o.metrics.RecordConnection(session.identity != nil)

	o.registry.Register(conn, session.identity)
	session.heartbeat = NewHeartbeat(o.log, conn, o.heartbeat, func() {
		o.metrics.RecordHeartbeatTimeout()
		o.log.Info("No pong received, closing connection", "conn_id", conn.ID())
		o.Disconnect(context.Background(), session)
	})
	session.heartbeat.Start()

	if session.identity != nil {
		o.log.Info("User connected", "user_id", session.identity.UserID, "conn_id", conn.ID())
	}
	o.refreshPopulation()
	o.broadcaster.NotifyAll(ctx)
	return session
}

// Disconnect tears the session down. Only the call that actually removes the
// connection triggers a presence broadcast, further calls are no-ops.
func (o *Orchestrator) Disconnect(ctx context.Context, session *Session) {
	session.heartbeat.Stop()
	removed := o.registry.Unregister(session.conn)
	if err := session.conn.Close(); err != nil && !errors.Is(err, errors.ErrConnectionClosed) {
		o.log.Debug("Error while closing connection", "conn_id", session.conn.ID(), "error", err)
	}
	if !removed {
		return
	}
	if session.identity != nil {
		o.log.Info("User disconnected", "user_id", session.identity.UserID, "conn_id", session.conn.ID())
	}
	o.refreshPopulation()
	o.broadcaster.NotifyAll(ctx)
}

// Route hands an inbound request to the router. Failures that the sender must
// know about come back to it as an error frame.
func (o *Orchestrator) Route(ctx context.Context, session *Session, cmd domain.RouteCommand) {
	_, err := o.router.Route(ctx, session.conn, cmd)
	if err == nil {
		return
	}

	var frame domain.ErrorFrame
	switch {
	case errors.Is(err, errors.ErrUnauthenticated):
		o.log.Debug("Message from anonymous connection dropped", "conn_id", session.conn.ID())
		return
	case errors.Is(err, errors.ErrAttachmentFailure):
		frame = domain.ErrorFrame{Code: domain.AttachmentFailureCode, Reason: errors.ErrAttachmentFailure.Error()}
	case errors.Is(err, errors.ErrStoreFailure):
		frame = domain.ErrorFrame{Code: domain.StoreFailureCode, Reason: errors.ErrStoreFailure.Error()}
	default:
		o.log.Error("Unexpected routing error", "conn_id", session.conn.ID(), "error", err)
		return
	}

	o.log.Warn("Message not sent", "conn_id", session.conn.ID(), "receiver_id", cmd.ReceiverID, "error", err)
	if err := session.conn.Send(ctx, frame); err != nil {
		o.log.Debug("Error frame not delivered", "conn_id", session.conn.ID(), "error", err)
	}
}

func (o *Orchestrator) refreshPopulation() {
	connections, users := o.registry.Count()
	o.metrics.SetPopulation(connections, users)
}

// Add registers background workers started with Start.
func (o *Orchestrator) Add(workers ...contract.Worker) {
	o.workers = append(o.workers, workers...)
}

// Start runs the supervised workers and blocks until ctx is done.
func (o *Orchestrator) Start(ctx context.Context) {
	o.supervisor.Add(o.workers...)
	o.log.Info("Starting orchestrator and all supervised workers", "workers", len(o.workers))
	o.supervisor.Run(ctx)
}

// Stop cancels the workers and closes every live connection. Each transport
// then calls Disconnect from its own read loop.
func (o *Orchestrator) Stop() {
	o.supervisor.Stop()
	var wg sync.WaitGroup
	for _, conn := range o.registry.Connections() {
		wg.Add(1)
		go func(conn contract.Connection) {
			defer wg.Done()
			_ = conn.Close()
		}(conn)
	}
	wg.Wait()
	o.log.Info("Orchestrator stopped")
}
