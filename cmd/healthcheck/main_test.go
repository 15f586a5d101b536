package main

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	grpc_adapter "github.com/JoeShih716/go-entry-ledger/internal/app/core/adapter/in/grpc"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func serveHealth(t *testing.T, ping pingerFunc) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	reporter := grpc_adapter.NewHealthReporter(ping, time.Hour, zap.NewNop())
	_ = reporter.Probe(context.Background())

	s := grpc.NewServer()
	reporter.Register(s)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)
	return lis.Addr().String()
}

func TestRun(t *testing.T) {
	up := serveHealth(t, func(ctx context.Context) error { return nil })
	down := serveHealth(t, func(ctx context.Context) error { return errors.New("down") })

	assert.Equal(t, 0, run(up, grpc_adapter.ServiceName, 3*time.Second, zap.NewNop()))
	assert.Equal(t, 0, run(up, "", 3*time.Second, zap.NewNop()))
	assert.Equal(t, 1, run(down, grpc_adapter.ServiceName, 3*time.Second, zap.NewNop()))
	assert.Equal(t, 1, run(up, "unknown.Service", 3*time.Second, zap.NewNop()))
}
