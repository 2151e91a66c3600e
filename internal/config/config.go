package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Capture CaptureConfig `yaml:"capture"`
	Scan    ScanConfig    `yaml:"scan"`
	Export  ExportConfig  `yaml:"export"`
	Enrich  EnrichConfig  `yaml:"enrich"`
	Probe   ProbeConfig   `yaml:"probe"`
	Server  ServerConfig  `yaml:"server"`
	Log     LogConfig     `yaml:"log"`
}

type CaptureConfig struct {
	// Backend is pcap, tshark or none.
	Backend               string        `yaml:"backend"`
	Interface             string        `yaml:"interface"`
	Snaplen               int           `yaml:"snaplen"`
	RateLimitWindow       time.Duration `yaml:"rate_limit_window"`
	ProcessPollInterval   time.Duration `yaml:"process_poll_interval"`
	SocketRefreshInterval time.Duration `yaml:"socket_refresh_interval"`
	// Reclassify is always or signal.
	Reclassify     string   `yaml:"reclassify"`
	ExtraProcesses []string `yaml:"extra_processes"`
	EventBuffer    int      `yaml:"event_buffer"`
}

type ScanConfig struct {
	Workers       int   `yaml:"workers"`
	MaxFileSize   int64 `yaml:"max_file_size"`
	ProgressEvery int   `yaml:"progress_every"`
}

type ExportConfig struct {
	Dir string `yaml:"dir"`
}

type EnrichConfig struct {
	Auto         bool          `yaml:"auto"`
	GeoIPURL     string        `yaml:"geoip_url"`
	GeoIPTimeout time.Duration `yaml:"geoip_timeout"`
	Workers      int           `yaml:"workers"`
	DNSServer    string        `yaml:"dns_server"`
}

type ProbeConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	PingTimeout time.Duration `yaml:"ping_timeout"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads a YAML file. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Write stores cfg as YAML at path.
func Write(path string, cfg *Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func (c *Config) applyDefaults() {
	if c.Capture.Backend == "" {
		c.Capture.Backend = "pcap"
	}
	if c.Capture.Snaplen == 0 {
		c.Capture.Snaplen = 1600
	}
	if c.Capture.RateLimitWindow == 0 {
		c.Capture.RateLimitWindow = 50 * time.Millisecond
	}
	if c.Capture.ProcessPollInterval == 0 {
		c.Capture.ProcessPollInterval = time.Second
	}
	if c.Capture.SocketRefreshInterval == 0 {
		c.Capture.SocketRefreshInterval = 250 * time.Millisecond
	}
	if c.Capture.Reclassify == "" {
		c.Capture.Reclassify = "always"
	}
	if c.Capture.EventBuffer == 0 {
		c.Capture.EventBuffer = 1024
	}
	if c.Scan.MaxFileSize == 0 {
		c.Scan.MaxFileSize = 50 << 20
	}
	if c.Scan.ProgressEvery == 0 {
		c.Scan.ProgressEvery = 50
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "zapret-lists"
	}
	if c.Enrich.GeoIPURL == "" {
		c.Enrich.GeoIPURL = "http://ip-api.com/json/"
	}
	if c.Enrich.GeoIPTimeout == 0 {
		c.Enrich.GeoIPTimeout = 3 * time.Second
	}
	if c.Enrich.Workers == 0 {
		c.Enrich.Workers = 4
	}
	if c.Probe.Timeout == 0 {
		c.Probe.Timeout = 2 * time.Second
	}
	if c.Probe.PingTimeout == 0 {
		c.Probe.PingTimeout = 1500 * time.Millisecond
	}
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8787"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
}

func (c *Config) validate() error {
	var errs []error
	switch c.Capture.Backend {
	case "pcap", "tshark", "none":
	default:
		errs = append(errs, fmt.Errorf("capture.backend must be pcap, tshark or none, got %q", c.Capture.Backend))
	}
	switch c.Capture.Reclassify {
	case "always", "signal":
	default:
		errs = append(errs, fmt.Errorf("capture.reclassify must be always or signal, got %q", c.Capture.Reclassify))
	}
	if c.Capture.RateLimitWindow < 0 {
		errs = append(errs, errors.New("capture.rate_limit_window must not be negative"))
	}
	if c.Scan.Workers < 0 {
		errs = append(errs, errors.New("scan.workers must not be negative"))
	}
	if c.Scan.MaxFileSize < 0 {
		errs = append(errs, errors.New("scan.max_file_size must not be negative"))
	}
	if c.Enrich.Workers < 0 {
		errs = append(errs, errors.New("enrich.workers must not be negative"))
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be console or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}
