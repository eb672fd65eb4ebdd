package grpc

import (
	"context"
	"errors"
	"testing"

	"google.golang.org/grpc/codes"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

func TestHealthCheckFollowsReadiness(t *testing.T) {
	t.Parallel()
	var ready error
	srv := NewHealthServer(func(context.Context) error { return ready })

	res, err := srv.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{})
	if err != nil || res.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("check = %v, %v", res.GetStatus(), err)
	}
	ready = errors.New("db down")
	res, err = srv.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: serviceName})
	if err != nil || res.GetStatus() != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("check = %v, %v", res.GetStatus(), err)
	}
	_, err = srv.Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: "other"})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("unknown service err = %v", err)
	}
}
