// Package config holds the immutable run configuration shared by all
// core components. It is built once at startup (from flags in
// cmd/fixinject) and passed by reference; nothing mutates it afterwards.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults mirror the shipped property defaults.
const (
	DefaultHost            = "localhost"
	DefaultPort            = 9999
	DefaultRate            = 1000
	DefaultBufferSize      = 8192
	DefaultBatchSize       = 100
	DefaultHeaderLength    = 8
	DefaultMaxDepth        = 10
	DefaultSocketTimeout   = 30 * time.Second
	DefaultMetricsInterval = time.Second
	DefaultProtocol        = "FIX"
	DefaultExtensions      = "txt,gz,fix,log,def,xml,bin,dat"
)

// Config is the full configuration surface consumed by the core.
type Config struct {
	// Input
	InputPath  string
	Extensions []string
	Recursive  bool
	MaxDepth   int

	// Network
	Host          string
	Port          int
	SocketTimeout time.Duration

	// Performance
	Rate       int // messages/sec, <= 0 means unlimited
	BufferSize int
	Batching   bool
	BatchSize  int

	// Protocol
	Protocol     string
	HeaderLength int

	// Application
	Validation      bool
	Metrics         bool
	MetricsInterval time.Duration
	MetricsPort     int // prometheus endpoint, 0 disables
	ServerMode      bool
	OutputDir       string
	LogLevel        string
}

// Default returns a Config populated with the shipped defaults.
func Default() *Config {
	return &Config{
		Extensions:      ParseExtensions(DefaultExtensions),
		Recursive:       true,
		MaxDepth:        DefaultMaxDepth,
		Host:            DefaultHost,
		Port:            DefaultPort,
		SocketTimeout:   DefaultSocketTimeout,
		Rate:            DefaultRate,
		BufferSize:      DefaultBufferSize,
		BatchSize:       DefaultBatchSize,
		Protocol:        DefaultProtocol,
		HeaderLength:    DefaultHeaderLength,
		Metrics:         true,
		MetricsInterval: DefaultMetricsInterval,
		OutputDir:       "output",
		LogLevel:        "info",
	}
}

// ParseExtensions splits a comma-separated extension list, trimming
// whitespace and dropping empty entries.
func ParseExtensions(s string) []string {
	var out []string
	for _, e := range strings.Split(s, ",") {
		e = strings.TrimSpace(e)
		if e != "" {
			out = append(out, strings.ToLower(e))
		}
	}
	return out
}

// Addr returns the host:port target address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate checks the numeric bounds the core depends on. Protocol
// resolution is checked separately against the registry so unknown
// names fail fast before any socket work.
func (c *Config) Validate() error {
	if c.BufferSize <= 0 {
		return fmt.Errorf("buffer size must be positive, got %d", c.BufferSize)
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.Batching && c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive when batching, got %d", c.BatchSize)
	}
	if c.HeaderLength < 0 {
		return fmt.Errorf("header length must not be negative, got %d", c.HeaderLength)
	}
	if c.Recursive && c.MaxDepth <= 0 {
		return fmt.Errorf("max recursion depth must be positive, got %d", c.MaxDepth)
	}
	return nil
}
