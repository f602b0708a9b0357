package runtime

import (
	"context"
	"direct-chat/contract"
	"direct-chat/domain"
	"direct-chat/observability"
	"log/slog"
)

var _ contract.Broadcaster = (*Presence)(nil)

// PresenceSource gives the OnlineSet and its push targets from one consistent read.
type PresenceSource interface {
	PresenceView() (domain.OnlineSet, []contract.Connection)
}

// Presence pushes the complete OnlineSet to every live connection.
// Each call is one full broadcast, there is no batching and no delta.
type Presence struct {
	source  PresenceSource
	log     *slog.Logger
	metrics *observability.Metrics
}

func NewPresence(source PresenceSource, log *slog.Logger, metrics *observability.Metrics) *Presence {
	return &Presence{source: source, log: log, metrics: metrics}
}

// NotifyAll is best-effort: a connection that cannot take the frame is
// skipped, its own worker or heartbeat will tear it down.
func (p *Presence) NotifyAll(ctx context.Context) {
	online, targets := p.source.PresenceView()
	frame := domain.PresenceFrame{Online: online}

	for _, conn := range targets {
		if err := conn.Send(ctx, frame); err != nil {
			p.metrics.RecordDeliveryFailure()
			p.log.Debug("Presence not delivered", "conn_id", conn.ID(), "error", err)
		}
	}
	p.metrics.RecordBroadcast()
	p.log.Debug("Presence broadcast", "online", len(online), "targets", len(targets))
}
