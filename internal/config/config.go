package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	instance *Config
	once     sync.Once
)

// Config represents the complete static-cache server configuration
// Aggregates all component configurations for centralized management
// Loaded from a YAML file; environment variables are not read
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Cache     CacheConfig     `yaml:"cache" json:"cache"`
	Workers   WorkersConfig   `yaml:"workers" json:"workers"`
	RateLimit RateLimitConfig `yaml:"rateLimit" json:"rateLimit"`
	Storage   StorageConfig   `yaml:"storage" json:"storage"`
	Health    HealthConfig    `yaml:"health" json:"health"`
	Tracing   TracingConfig   `yaml:"tracing" json:"tracing"`
	Metrics   MetricsConfig   `yaml:"metrics" json:"metrics"`
}

// ServerConfig defines the listening socket and request-framing parameters
type ServerConfig struct {
	Port           int           `yaml:"port" json:"port" default:"8080"`
	MaxRequestSize int           `yaml:"maxRequestSize" json:"maxRequestSize" default:"8192"`
	ReadTimeout    time.Duration `yaml:"readTimeout" json:"readTimeout" default:"5s"`
	WriteTimeout   time.Duration `yaml:"writeTimeout" json:"writeTimeout" default:"5s"`
	KeepAliveIdle  time.Duration `yaml:"keepAliveIdle" json:"keepAliveIdle" default:"60s"`
}

// CacheConfig defines the LRU-K response cache's shape.
// Frames are fixed-size buffers; K governs the replacer's backward
// K-distance computation. There is no TTL: entries live until evicted.
type CacheConfig struct {
	FrameCount int `yaml:"frameCount" json:"frameCount" default:"256"`
	FrameBytes int `yaml:"frameBytes" json:"frameBytes" default:"8192"`
	K          int `yaml:"k" json:"k" default:"2"`
}

// WorkersConfig defines the handler worker pool size
type WorkersConfig struct {
	Count int `yaml:"count" json:"count" default:"0"` // 0 means 2*NumCPU
}

// RateLimitConfig defines per-source-IP connection admission limits
// Controls connection accept rate using token bucket algorithm
type RateLimitConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled" default:"true"`
	Capacity   int  `yaml:"capacity" json:"capacity" default:"100"`
	RefillRate int  `yaml:"refillRate" json:"refillRate" default:"10"`
}

// MountConfig represents a single document-root mount
type MountConfig struct {
	Path   string `yaml:"path" json:"path"`
	Weight int    `yaml:"weight" json:"weight" default:"1"`
}

// StorageConfig defines document-root mounts and the algorithm used to
// pick a mount for each request when more than one is configured; the
// algorithms do not take the cache key into account
type StorageConfig struct {
	Algorithm string        `yaml:"algorithm" json:"algorithm" default:"round-robin"`
	Mounts    []MountConfig `yaml:"mounts" json:"mounts"`
}

// HealthConfig defines background mount liveness checking
type HealthConfig struct {
	Enabled      bool          `yaml:"enabled" json:"enabled" default:"true"`
	Interval     time.Duration `yaml:"interval" json:"interval" default:"30s"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout" default:"5s"`
	SentinelFile string        `yaml:"sentinelFile" json:"sentinelFile" default:"index.html"`
}

// TracingConfig defines OpenTelemetry tracing configuration
// Controls distributed tracing and observability
type TracingConfig struct {
	Enabled        bool    `yaml:"enabled" json:"enabled" default:"false"`
	ServiceName    string  `yaml:"serviceName" json:"serviceName" default:"staticcache"`
	ServiceVersion string  `yaml:"serviceVersion" json:"serviceVersion" default:"1.0.0"`
	Environment    string  `yaml:"environment" json:"environment" default:"development"`
	JaegerEndpoint string  `yaml:"jaegerEndpoint" json:"jaegerEndpoint"`
	OTLPEndpoint   string  `yaml:"otlpEndpoint" json:"otlpEndpoint"`
	SamplingRatio  float64 `yaml:"samplingRatio" json:"samplingRatio" default:"0.1"`
}

// MetricsConfig defines the side-channel Prometheus exposition port
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled" default:"true"`
	Port    int  `yaml:"port" json:"port" default:"9090"`
}

// DefaultConfig returns configuration with sensible defaults
// Provides baseline configuration for development and testing
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           8080,
			MaxRequestSize: 8192,
			ReadTimeout:    5 * time.Second,
			WriteTimeout:   5 * time.Second,
			KeepAliveIdle:  60 * time.Second,
		},
		Cache: CacheConfig{
			FrameCount: 256,
			FrameBytes: 8192,
			K:          2,
		},
		Workers: WorkersConfig{
			Count: 0,
		},
		RateLimit: RateLimitConfig{
			Enabled:    true,
			Capacity:   100,
			RefillRate: 10,
		},
		Storage: StorageConfig{
			Algorithm: "round-robin",
			Mounts:    []MountConfig{{Path: "./public", Weight: 1}},
		},
		Health: HealthConfig{
			Enabled:      true,
			Interval:     30 * time.Second,
			Timeout:      5 * time.Second,
			SentinelFile: "index.html",
		},
		Tracing: TracingConfig{
			Enabled:        false,
			ServiceName:    "staticcache",
			ServiceVersion: "1.0.0",
			Environment:    "development",
			SamplingRatio:  0.1,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// GetInstance returns the singleton config instance
// Uses sync.Once to ensure thread-safe lazy initialisation
func GetInstance() *Config {
	once.Do(func() {
		instance = DefaultConfig()
	})
	return instance
}

// LoadConfig loads configuration from a YAML file and installs it as the
// singleton if the singleton has not been initialised yet; once
// GetInstance or LoadConfig has set it, later calls leave it unchanged.
// A missing file falls back to defaults so the server can start with no
// config present.
func LoadConfig(path string) error {
	cfg, err := loadFromFile(path)
	if err != nil {
		return err
	}

	once.Do(func() {
		instance = cfg
	})
	return nil
}

// loadFromFile reads configuration from a YAML file, starting from
// DefaultConfig so unset fields keep their defaults
func loadFromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}
