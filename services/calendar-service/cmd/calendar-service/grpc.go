package main

import (
	"context"
	"log/slog"
	"net"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/md-rashed-zaman/slotbook/libs/grpcx"
)

// calendarHealthService is the name the console checks before it starts.
const calendarHealthService = "slotbook.calendar"

func startGrpcServer(ctx context.Context, logger *slog.Logger, port string) (*health.Server, error) {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, err
	}

	srv := grpcx.NewServer(logger)
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(calendarHealthService, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	return hs, nil
}
