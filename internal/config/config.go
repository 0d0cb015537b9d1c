package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// 存储后端
const (
	BackendFile   = "file"
	BackendMemory = "memory"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	Storage StorageConfig
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"5000"`
	RequestTimeout  time.Duration `env:"HTTP_REQUEST_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Addr is derived from Port by Load.
	Addr string
}

// LogConfig 描述日志配置。
type LogConfig struct {
	Level  int    `env:"LOG_LEVEL" envDefault:"0"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// StorageConfig 描述用户数据的存储位置。
type StorageConfig struct {
	Backend   string `env:"STORAGE_BACKEND" envDefault:"file"`
	UsersFile string `env:"USERS_FILE" envDefault:"data/users.json"`
	Watch     bool   `env:"STORAGE_WATCH" envDefault:"true"`
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	addr, err := listenAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	switch c.Storage.Backend {
	case BackendFile:
		if strings.TrimSpace(c.Storage.UsersFile) == "" {
			return fmt.Errorf("USERS_FILE must not be empty")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND value: %q", c.Storage.Backend)
	}

	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid LOG_FORMAT value: %q", c.Log.Format)
	}

	if c.Server.RequestTimeout < 0 {
		return fmt.Errorf("HTTP_REQUEST_TIMEOUT must not be negative")
	}
	return nil
}

// listenAddr 解析服务器监听地址。
func listenAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "5000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":5000" 或 "127.0.0.1:5000"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}
