package sse

import "time"

// Config holds configuration for SSE connections
type Config struct {
	// KeepAliveInterval is how often a comment line is sent on an idle stream.
	// Proxies in front of the server drop connections silent for ~30s.
	KeepAliveInterval time.Duration
}

// DefaultConfig returns the default SSE configuration
func DefaultConfig() *Config {
	return &Config{
		KeepAliveInterval: 10 * time.Second,
	}
}
