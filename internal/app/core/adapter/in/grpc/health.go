package grpc

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName 是 health service 回報的服務名稱，空字串代表整個 server
const ServiceName = "ledger.Ledger"

const defaultPingTimeout = 2 * time.Second

// Pinger 由儲存層實作，用來確認底層儲存仍可使用
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthReporter 定期 ping 儲存層，並把結果反映到 grpc.health.v1 服務
type HealthReporter struct {
	server   *health.Server
	pinger   Pinger
	interval time.Duration
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	serving bool
}

// NewHealthReporter 建立 HealthReporter，第一次 Probe 之前狀態為 NOT_SERVING
func NewHealthReporter(pinger Pinger, interval time.Duration, logger *zap.Logger) *HealthReporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	h := &HealthReporter{
		server:   health.NewServer(),
		pinger:   pinger,
		interval: interval,
		timeout:  defaultPingTimeout,
		logger:   logger,
	}
	h.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return h
}

// Register 將 health service 與 reflection 註冊到 gRPC server
func (h *HealthReporter) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
	reflection.Register(s)
}

// Probe 執行一次 ping 並更新狀態，回傳 ping 的錯誤
func (h *HealthReporter) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	err := h.pinger.Ping(ctx)

	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case err == nil && !h.serving:
		h.logger.Info("store reachable, serving")
		h.set(healthpb.HealthCheckResponse_SERVING)
		h.serving = true
	case err != nil && h.serving:
		h.logger.Warn("store unreachable, not serving", zap.Error(err))
		h.set(healthpb.HealthCheckResponse_NOT_SERVING)
		h.serving = false
	}
	return err
}

// Run 每隔 interval 執行 Probe，直到 ctx 結束；結束後所有服務固定為 NOT_SERVING
func (h *HealthReporter) Run(ctx context.Context) {
	_ = h.Probe(ctx)

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			_ = h.Probe(ctx)
		}
	}
}

func (h *HealthReporter) set(status healthpb.HealthCheckResponse_ServingStatus) {
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(ServiceName, status)
}
