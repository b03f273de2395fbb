// Package config holds runtime configuration for the chat server and client.
// Flag parsing stays in the cmd binaries; this package provides defaults and
// environment loaders.
package config

import (
	"os"
	"strconv"
	"time"
)

// DefaultPort is the server's default TCP listen port.
const DefaultPort = 2785

// ServerConfig holds chat server settings.
type ServerConfig struct {
	Port            int
	RateLimitWindow time.Duration
	RateLimitMax    int
	LogLines        int
	StoreBackend    string // memory, mongo, or redis
}

// DefaultServerConfig returns a ServerConfig with sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Port:            DefaultPort,
		RateLimitWindow: 10 * time.Second,
		RateLimitMax:    5,
		LogLines:        128,
		StoreBackend:    "memory",
	}
}

// ServerConfigFromEnv loads server configuration from environment variables,
// falling back to defaults for any missing or invalid values.
func ServerConfigFromEnv() ServerConfig {
	cfg := DefaultServerConfig()

	cfg.Port = intFromEnv("CHAT_PORT", cfg.Port)
	cfg.RateLimitMax = intFromEnv("CHAT_RATE_LIMIT_MAX", cfg.RateLimitMax)
	cfg.LogLines = intFromEnv("CHAT_LOG_LINES", cfg.LogLines)
	if secs := intFromEnv("CHAT_RATE_LIMIT_WINDOW", 0); secs > 0 {
		cfg.RateLimitWindow = time.Duration(secs) * time.Second
	}
	if backend := os.Getenv("CHAT_STORE"); backend != "" {
		cfg.StoreBackend = backend
	}
	return cfg
}

// ClientConfig holds chat client settings. Username and room arrive as
// required flags, not configuration.
type ClientConfig struct {
	ServerAddr   string
	HistorySize  int
	DebugLogFile string
}

// DefaultClientConfig returns a ClientConfig with sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ServerAddr:  "localhost:2785",
		HistorySize: 100,
	}
}

// ClientConfigFromEnv loads client configuration from environment variables,
// falling back to defaults for any missing or invalid values.
func ClientConfigFromEnv() ClientConfig {
	cfg := DefaultClientConfig()

	if addr := os.Getenv("CHAT_SERVER"); addr != "" {
		cfg.ServerAddr = addr
	}
	cfg.HistorySize = intFromEnv("CHAT_HISTORY_SIZE", cfg.HistorySize)
	if path := os.Getenv("CHAT_DEBUG_LOG"); path != "" {
		cfg.DebugLogFile = path
	}
	return cfg
}

func intFromEnv(name string, fallback int) int {
	if raw := os.Getenv(name); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
