package grpcx

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/md-rashed-zaman/slotbook/libs/httpx"
)

func TestCheckHealthOverBufconn(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(slog.New(slog.NewTextHandler(io.Discard, nil)))
	hs := health.NewServer()
	hs.SetServingStatus("calendar", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus("draining", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	ctx := httpx.ContextWithRequestID(context.Background(), "req-1")
	conn, err := Dial(ctx, "bufnet", DialOptions{},
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) { return lis.Dial() }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	assert.NoError(t, CheckHealth(ctx, conn, "calendar"))
	assert.Error(t, CheckHealth(ctx, conn, "draining"))
}

func TestWithRequestIDIgnoresEmpty(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, ctx, WithRequestID(ctx, ""))
	assert.Equal(t, "x", RequestIDFromContext(WithRequestID(ctx, "x")))
}
