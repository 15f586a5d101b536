// Package config 載入服務設定：YAML 檔、.env 檔與環境變數 (優先序由低到高)。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/JoeShih716/go-entry-ledger/pkg/logger"
	"github.com/JoeShih716/go-entry-ledger/pkg/mysql"
)

// StoreType 使用哪種儲存
type StoreType string

const (
	StoreMySQL  StoreType = "mysql"
	StoreMemory StoreType = "memory"
)

type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port"`
	GRPCPort        int           `yaml:"grpc_port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// HealthInterval 健康檢查 ping 資料庫的間隔
	HealthInterval time.Duration `yaml:"health_interval"`
}

type Config struct {
	Server ServerConfig  `yaml:"server"`
	Store  StoreType     `yaml:"store"`
	MySQL  mysql.Config  `yaml:"mysql"`
	Log    logger.Config `yaml:"log"`
}

// Load 讀取 path 指向的 YAML 設定，再載入同目錄的 .env，最後套用環境變數。
// 檔案不存在時不視為錯誤，全部改用環境變數與預設值。
func Load(path string) (Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	// godotenv 不會覆寫已存在的環境變數
	if err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	ints := []struct {
		key string
		dst *int
	}{
		{"PORT", &cfg.Server.HTTPPort},
		{"GRPC_PORT", &cfg.Server.GRPCPort},
		{"DB_PORT", &cfg.MySQL.Port},
	}
	for _, v := range ints {
		raw, ok := lookup(v.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("environment variable %s must be a number: %w", v.key, err)
		}
		*v.dst = n
	}

	strs := []struct {
		key string
		dst *string
	}{
		{"DB_HOST", &cfg.MySQL.Host},
		{"DB_USERNAME", &cfg.MySQL.User},
		{"DB_PASSWORD", &cfg.MySQL.Password},
		{"DB_NAME", &cfg.MySQL.DBName},
		{"DB_LOG_LEVEL", &cfg.MySQL.LogLevel},
		{"LOG_LEVEL", &cfg.Log.Level},
	}
	for _, v := range strs {
		if raw, ok := lookup(v.key); ok {
			*v.dst = raw
		}
	}

	if raw, ok := lookup("APP_ENV"); ok {
		cfg.Log.Environment = logger.Environment(raw)
	}
	if raw, ok := lookup("STORE"); ok {
		cfg.Store = StoreType(strings.ToLower(raw))
	}
	if raw, ok := lookup("DB_AUTO_MIGRATE"); ok {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("environment variable DB_AUTO_MIGRATE must be a boolean: %w", err)
		}
		cfg.MySQL.AutoMigrate = b
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (c Config) withDefaults() Config {
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Server.GRPCPort == 0 {
		c.Server.GRPCPort = 50051
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.HealthInterval == 0 {
		c.Server.HealthInterval = 5 * time.Second
	}
	if c.Store == "" {
		c.Store = StoreMySQL
	}
	if c.Log.Environment == "" {
		c.Log.Environment = logger.EnvironmentProduction
	}
	c.MySQL = c.MySQL.WithDefaults()
	return c
}

// Validate 檢查必要設定；使用 MySQL 時資料庫連線資訊不可為空
func (c Config) Validate() error {
	var errs []error
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid http port %d", c.Server.HTTPPort))
	}
	if c.Server.GRPCPort <= 0 || c.Server.GRPCPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid grpc port %d", c.Server.GRPCPort))
	}
	switch c.Store {
	case StoreMemory:
	case StoreMySQL:
		if c.MySQL.Host == "" {
			errs = append(errs, errors.New("DB_HOST is required"))
		}
		if c.MySQL.User == "" {
			errs = append(errs, errors.New("DB_USERNAME is required"))
		}
		if c.MySQL.Password == "" {
			errs = append(errs, errors.New("DB_PASSWORD is required"))
		}
		if c.MySQL.DBName == "" {
			errs = append(errs, errors.New("DB_NAME is required"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store %q", c.Store))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %w", errors.Join(errs...))
	}
	return nil
}
