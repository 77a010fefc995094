package handler

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the gRPC health service name reported alongside the overall "" status.
const ServiceName = "bikecare.api"

// RegisterGRPC registers the standard grpc.health.v1.Health service on s and returns it so its
// status can be updated by Watch.
func RegisterGRPC(s grpc.ServiceRegistrar, h *Handler) *health.Server {
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	setStatus(context.Background(), hs, h)
	return hs
}

// Watch re-evaluates readiness every interval and mirrors it into hs until ctx is done.
func Watch(ctx context.Context, hs *health.Server, h *Handler, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			hs.Shutdown()
			return
		case <-t.C:
			setStatus(ctx, hs, h)
		}
	}
}

func setStatus(ctx context.Context, hs *health.Server, h *Handler) {
	status := healthpb.HealthCheckResponse_SERVING
	if !h.Healthy(ctx) {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	hs.SetServingStatus("", status)
	hs.SetServingStatus(ServiceName, status)
}
