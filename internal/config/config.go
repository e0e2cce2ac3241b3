// Package config provides centralized configuration management for tabload.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Data    DataConfig
	Server  ServerConfig
	Logging LoggingConfig
}

// DataConfig holds record set loading settings.
type DataConfig struct {
	// Dir is the directory record set files are read from (default: data)
	Dir string `env:"TABLOAD_DATA_DIR" default:"data"`

	// Manifest is an optional YAML file describing set files and delimiters
	Manifest string `env:"TABLOAD_MANIFEST"`

	// Delimiter is the default field delimiter, a single character (default: ,)
	Delimiter string `env:"TABLOAD_DELIMITER" default:","`

	// CommentPrefix marks lines to skip (default: #)
	CommentPrefix string `env:"TABLOAD_COMMENT_PREFIX" default:"#"`

	// PreloadConcurrency bounds parallel file reads during preload (default: 4)
	PreloadConcurrency int `env:"TABLOAD_PRELOAD_CONCURRENCY" default:"4"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 127.0.0.1)
	Host string `env:"SERVER_HOST" default:"127.0.0.1"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	// ReadTimeout is the maximum duration for reading a request (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`

	// WriteTimeout is the maximum duration for writing a response (default: 30s)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 10s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"10s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
