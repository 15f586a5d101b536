package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"google.golang.org/grpc"

	grpc_adapter "github.com/JoeShih716/go-entry-ledger/internal/app/core/adapter/in/grpc"
	rest_adapter "github.com/JoeShih716/go-entry-ledger/internal/app/core/adapter/in/rest"
	memory_adapter "github.com/JoeShih716/go-entry-ledger/internal/app/core/adapter/out/memory"
	mysql_adapter "github.com/JoeShih716/go-entry-ledger/internal/app/core/adapter/out/mysql"
	"github.com/JoeShih716/go-entry-ledger/internal/app/core/usecase"
	"github.com/JoeShih716/go-entry-ledger/internal/config"
	"github.com/JoeShih716/go-entry-ledger/pkg/logger"
	"github.com/JoeShih716/go-entry-ledger/pkg/mysql"
)

// store 是 cmd 需要的儲存層組合
type store interface {
	usecase.UnitOfWork
	usecase.AccountStore
	grpc_adapter.Pinger
}

func main() {
	// 1. 載入設定
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Logger
	zl, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	// 3. 儲存層
	ledger, entries, closeStore, err := openStore(cfg, zl)
	if err != nil {
		zl.Fatal("failed to open store", zap.String("store", string(cfg.Store)), zap.Error(err))
	}
	defer closeStore()

	// 4. UseCase
	core := usecase.NewCoreUseCase(ledger, ledger, entries, zl.Named("core"))

	// 5. HTTP Adapter
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: rest_adapter.NewRouter(rest_adapter.NewHandler(core, zl.Named("http"))),
	}

	// 6. gRPC health
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
	if err != nil {
		zl.Fatal("failed to listen", zap.Int("port", cfg.Server.GRPCPort), zap.Error(err))
	}
	grpcServer := grpc.NewServer()
	health := grpc_adapter.NewHealthReporter(ledger, cfg.Server.HealthInterval, zl.Named("health"))
	health.Register(grpcServer)

	healthCtx, stopHealth := context.WithCancel(context.Background())
	defer stopHealth()
	go health.Run(healthCtx)

	go func() {
		zl.Info("starting gRPC server", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			zl.Fatal("grpc server failed", zap.Error(err))
		}
	}()
	go func() {
		zl.Info("starting HTTP server", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("http server failed", zap.Error(err))
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zl.Info("shutting down server")

	stopHealth()
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		zl.Error("http shutdown", zap.Error(err))
	}
	grpcServer.GracefulStop()
	zl.Info("server exited")
}

// openStore 依設定選擇 MySQL 或記憶體儲存
func openStore(cfg config.Config, zl *zap.Logger) (store, usecase.EntryStore, func(), error) {
	switch cfg.Store {
	case config.StoreMemory:
		zl.Warn("using in-memory store, data is lost on exit")
		m := memory_adapter.NewMutexLedger()
		return m, m.Entries(), func() {}, nil
	case config.StoreMySQL:
		client, err := mysql.NewClient(cfg.MySQL, zl.Named("mysql"))
		if err != nil {
			return nil, nil, nil, err
		}
		ledger := mysql_adapter.NewMySQLLedger(client)
		if cfg.MySQL.AutoMigrate {
			if err := ledger.Migrate(context.Background()); err != nil {
				_ = client.Close()
				return nil, nil, nil, fmt.Errorf("migrate: %w", err)
			}
			zl.Info("schema migrated")
		}
		closeFn := func() {
			if err := client.Close(); err != nil {
				zl.Error("close mysql", zap.Error(err))
			}
		}
		return ledger, ledger.Entries(), closeFn, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
