package grpc

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

const serviceName = "submission-tracking-service"

// HealthServer reports SERVING while the readiness check passes.
type HealthServer struct {
	grpc_health_v1.UnimplementedHealthServer
	readiness func(context.Context) error
}

func NewHealthServer(readiness func(context.Context) error) *HealthServer {
	return &HealthServer{readiness: readiness}
}

func Register(server grpc.ServiceRegistrar, svc *HealthServer) {
	grpc_health_v1.RegisterHealthServer(server, svc)
}

func (s *HealthServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	if name := req.GetService(); name != "" && name != serviceName {
		return nil, status.Error(codes.NotFound, "unknown service")
	}
	return &grpc_health_v1.HealthCheckResponse{Status: s.status(ctx)}, nil
}

func (s *HealthServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	if name := req.GetService(); name != "" && name != serviceName {
		return status.Error(codes.NotFound, "unknown service")
	}
	return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: s.status(stream.Context())})
}

func (s *HealthServer) status(ctx context.Context) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if s.readiness == nil {
		return grpc_health_v1.HealthCheckResponse_SERVING
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.readiness(ctx); err != nil {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}

// Serve runs a gRPC server on addr until ctx is cancelled.
func Serve(ctx context.Context, logger *slog.Logger, addr string, health *HealthServer) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := grpc.NewServer()
	Register(srv, health)
	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()
	logger.Info("grpc server listening",
		"module", "grpc",
		"layer", "adapter",
		"operation", "serve",
		"outcome", "success",
		"addr", addr,
	)
	return srv.Serve(lis)
}
