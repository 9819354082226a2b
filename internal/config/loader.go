package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	ErrFileNotFound  = errors.New("configuration file not found")
	ErrInvalidYAML   = errors.New("invalid YAML syntax")
	ErrEmptyFile     = errors.New("configuration file is empty")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Default returns a configuration with every optional setting filled in.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			Timeout:         10 * time.Second,
			GraphiQL:        true,
			WebhookPrefix:   "/webhooks",
			MetricsPath:     "/metrics",
			ShutdownTimeout: 5 * time.Second,
		},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Cache:     CacheConfig{Backend: "memory", TTL: 5 * time.Minute, Bucket: "restgraph"},
		PubSub:    PubSubConfig{Backend: "memory", ClientID: "restgraph"},
		Telemetry: TelemetryConfig{ServiceName: "restgraph"},
		Upstream:  UpstreamConfig{Timeout: 30 * time.Second},
	}
}

// LoadFile reads a YAML (or JSON) configuration file. Relative paths inside
// the source resolve against the file's directory unless baseDir is set.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	switch {
	case cfg.Source.BaseDir == "":
		cfg.Source.BaseDir = dir
	case !filepath.IsAbs(cfg.Source.BaseDir):
		cfg.Source.BaseDir = filepath.Join(dir, cfg.Source.BaseDir)
	}
	return cfg, nil
}

// Parse decodes configuration bytes on top of Default and validates the
// source.
func Parse(data []byte) (*Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if err := cfg.Source.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
