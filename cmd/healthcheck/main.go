package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	grpc_adapter "github.com/JoeShih716/go-entry-ledger/internal/app/core/adapter/in/grpc"
	grpcpool "github.com/JoeShih716/go-entry-ledger/pkg/grpc"
	"github.com/JoeShih716/go-entry-ledger/pkg/logger"
)

// healthcheck 呼叫 grpc.health.v1 Check，SERVING 時 exit 0，其餘 exit 1。
// 給容器的 HEALTHCHECK 或 k8s exec probe 使用。
func main() {
	target := flag.String("target", "localhost:50051", "gRPC server address")
	service := flag.String("service", grpc_adapter.ServiceName, "service name to check, empty for the whole server")
	timeout := flag.Duration("timeout", 3*time.Second, "check timeout")
	flag.Parse()

	zl, err := logger.New(logger.Config{Environment: logger.Environment(os.Getenv("APP_ENV")), Level: os.Getenv("LOG_LEVEL")})
	if err != nil {
		zl = zap.NewNop()
	}
	defer func() { _ = zl.Sync() }()

	os.Exit(run(*target, *service, *timeout, zl))
}

func run(target, service string, timeout time.Duration, zl *zap.Logger) int {
	pool := grpcpool.NewPool(grpcpool.WithInterceptor(logCalls(zl)))
	defer pool.Close()

	conn, err := pool.GetConnection(target)
	if err != nil {
		zl.Error("dial failed", zap.String("target", target), zap.Error(err))
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resp, err := healthpb.NewHealthClient(conn).Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		zl.Error("health check failed", zap.String("target", target), zap.Error(err))
		return 1
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		zl.Warn("not serving", zap.String("service", service), zap.Stringer("status", resp.GetStatus()))
		return 1
	}
	zl.Debug("serving", zap.String("service", service))
	return 0
}

func logCalls(zl *zap.Logger) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		start := time.Now()
		err := invoker(ctx, method, req, reply, cc, opts...)
		zl.Debug("grpc call", zap.String("method", method), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return err
	}
}
