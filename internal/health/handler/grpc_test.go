package handler

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestRegisterGRPC_ReflectsReadiness(t *testing.T) {
	s := grpc.NewServer()
	defer s.Stop()

	var dbErr error
	h := NewHandler(Check{Name: "postgres", Fn: func(ctx context.Context) error { return dbErr }})
	hs := RegisterGRPC(s, h)

	resp, err := hs.Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.Status != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("status = %v, want SERVING", resp.Status)
	}

	dbErr = errors.New("down")
	setStatus(context.Background(), hs, h)
	resp, _ = hs.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if resp.Status != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("status = %v, want NOT_SERVING", resp.Status)
	}
}
