package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds every application setting. Secrets may be overridden by
// environment variables after the file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Capture struct {
		ListenAddr      string `yaml:"listen_addr"`
		DedupWindowMS   int    `yaml:"dedup_window_ms"`
		DedupMaxEntries int    `yaml:"dedup_max_entries"`
	} `yaml:"capture"`

	Bridge struct {
		ListenAddr string `yaml:"listen_addr"`
	} `yaml:"bridge"`

	API struct {
		Binance struct {
			RestURL   string `yaml:"rest_url"`
			APIKey    string `yaml:"api_key"`
			APISecret string `yaml:"api_secret"`
		} `yaml:"binance"`
	} `yaml:"api"`

	Sync struct {
		HistoryDays int `yaml:"history_days"`
	} `yaml:"sync"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies environment
// overrides and validates the result. A missing file is not an error:
// every setting has a default.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	}

	overrideWithEnv(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Capture.ListenAddr == "" {
		cfg.Capture.ListenAddr = "127.0.0.1:8123"
	}
	if cfg.Capture.DedupWindowMS <= 0 {
		cfg.Capture.DedupWindowMS = 2000
	}
	if cfg.Capture.DedupMaxEntries <= 0 {
		cfg.Capture.DedupMaxEntries = 512
	}
	if cfg.Bridge.ListenAddr == "" {
		cfg.Bridge.ListenAddr = "127.0.0.1:8124"
	}
	if cfg.API.Binance.RestURL == "" {
		cfg.API.Binance.RestURL = "https://api.binance.com"
	}
	if cfg.Sync.HistoryDays <= 0 {
		cfg.Sync.HistoryDays = 30
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if !strings.Contains(c.Capture.ListenAddr, ":") {
		return fmt.Errorf("invalid capture listen address: %s", c.Capture.ListenAddr)
	}
	if !strings.Contains(c.Bridge.ListenAddr, ":") {
		return fmt.Errorf("invalid bridge listen address: %s", c.Bridge.ListenAddr)
	}
	if !strings.HasPrefix(c.API.Binance.RestURL, "https://") && !strings.HasPrefix(c.API.Binance.RestURL, "http://") {
		return fmt.Errorf("invalid Binance REST URL: %s", c.API.Binance.RestURL)
	}
	return nil
}

// overrideWithEnv lets environment variables win over file values, so API
// keys never need to live in the config file.
func overrideWithEnv(cfg *Config) {
	if cfg.API.Binance.APISecret != "" {
		fmt.Println("⚠️  SECURITY WARNING: API secret found in config file.")
		fmt.Println("   Recommendation: use P2P_BINANCE_KEY / P2P_BINANCE_SECRET instead.")
	}

	if key := os.Getenv("P2P_BINANCE_KEY"); key != "" {
		cfg.API.Binance.APIKey = key
	}
	if secret := os.Getenv("P2P_BINANCE_SECRET"); secret != "" {
		cfg.API.Binance.APISecret = secret
	}
	if addr := os.Getenv("P2P_CAPTURE_ADDR"); addr != "" {
		cfg.Capture.ListenAddr = addr
	}
}
