package server

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name probes ask for, "" reports the whole process.
const ServiceName = "directchat.Hub"

// HealthServer reports SERVING while the hub accepts connections.
type HealthServer struct {
	log    *slog.Logger
	health *health.Server
}

func NewHealthServer(log *slog.Logger) *HealthServer {
	h := &HealthServer{log: log, health: health.NewServer()}
	h.SetServing(false)
	return h
}

func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

func (h *HealthServer) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus("", status)
	h.health.SetServingStatus(ServiceName, status)
	h.log.Debug("Health status changed", "status", status.String())
}

// Shutdown reports NOT_SERVING for good, watchers are told once.
func (h *HealthServer) Shutdown() {
	h.health.Shutdown()
}
