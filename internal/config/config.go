package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

type Config struct {
	AppConfig     *AppConfig
	ServerConfig  *ServerConfig
	BrowserConfig *BrowserConfig
}

type AppConfig struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool   `envconfig:"DEBUG" default:"false"`
}

type ServerConfig struct {
	Name              string        `envconfig:"SERVER_NAME" default:"playwright-server"`
	Version           string        `envconfig:"SERVER_VERSION" default:"1.0.0"`
	Transport         string        `envconfig:"SERVER_TRANSPORT" default:"stdio"`
	HTTPAddr          string        `envconfig:"SERVER_HTTP_ADDR" default:":9000"`
	HeartbeatInterval time.Duration `envconfig:"SERVER_HEARTBEAT_INTERVAL" default:"10s"`
}

type BrowserConfig struct {
	Headless      bool     `envconfig:"BROWSER_HEADLESS" default:"true"`
	Timeout       int      `envconfig:"BROWSER_TIMEOUT" default:"30000"`
	ScreenshotDir string   `envconfig:"BROWSER_SCREENSHOT_DIR" default:"./screenshots"`
	LaunchArgs    []string `envconfig:"BROWSER_LAUNCH_ARGS"`
	InstallDriver bool     `envconfig:"BROWSER_INSTALL_DRIVER" default:"true"`
}

func GetConfig() (*Config, error) {
	_ = godotenv.Load()

	var conf Config

	if err := envconfig.Process("", &conf); err != nil {
		return nil, fmt.Errorf("read config from env vars: %w", err)
	}

	if conf.ServerConfig.Transport != TransportStdio && conf.ServerConfig.Transport != TransportHTTP {
		return nil, fmt.Errorf("unsupported transport: %s", conf.ServerConfig.Transport)
	}

	return &conf, nil
}
