// Package config handles persisted reporter settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/shikenmatrix/reporter/internal/logger"
)

// ErrInvalidEndpoint is returned by Validate when the reporter is enabled
// but the endpoint is missing or not a WebSocket URL.
var ErrInvalidEndpoint = errors.New("config: invalid endpoint")

// ReporterConfig is the settings snapshot consumed by the reporter engine.
// A running instance holds an immutable copy; edits take effect on restart.
type ReporterConfig struct {
	Enabled              bool   `yaml:"enabled" json:"enabled"`
	Endpoint             string `yaml:"endpoint" json:"endpoint"`
	AuthToken            string `yaml:"auth_token" json:"auth_token"`
	EnableMediaReporting bool   `yaml:"enable_media_reporting" json:"enable_media_reporting"`
}

// NormalizedEndpoint returns the endpoint with http(s) schemes rewritten to
// their WebSocket equivalents.
func (c *ReporterConfig) NormalizedEndpoint() string {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return c.Endpoint
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	}
	return u.String()
}

// Validate checks that the config can start a reporter.
func (c *ReporterConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	u, err := url.Parse(c.NormalizedEndpoint())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEndpoint, err)
	}
	if (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidEndpoint, c.Endpoint)
	}
	return nil
}

// Config is the full persisted configuration, reporter settings plus the
// daemon-mode knobs.
type Config struct {
	Reporter        ReporterConfig `yaml:"reporter" json:"reporter"`
	LogLevel        string         `yaml:"log_level" json:"log_level"`
	DiagnosticsPort int            `yaml:"diagnostics_port" json:"diagnostics_port"`
}

// Manager handles configuration persistence.
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager loads the configuration from configFile, or from the default
// location when configFile is empty, creating a default config on first run.
func NewManager(configFile string) (*Manager, error) {
	actualConfigPath := configFile
	if actualConfigPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir := filepath.Join(homeDir, ".config", "shikenmatrix")
		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
		actualConfigPath = filepath.Join(configDir, "config.yaml")
	}

	m := &Manager{configPath: actualConfigPath}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("Config file not found, creating new config")
			m.config = defaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Info().
		Str("path", m.configPath).
		Bool("reporter_enabled", m.config.Reporter.Enabled).
		Msg("Config loaded")

	return m, nil
}

func defaults() *Config {
	return &Config{
		Reporter: ReporterConfig{
			Enabled:              false,
			Endpoint:             "",
			AuthToken:            "",
			EnableMediaReporting: false,
		},
		LogLevel:        "info",
		DiagnosticsPort: 0,
	}
}

func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// Save writes the current configuration to disk.
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := yaml.Marshal(m.config)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.config == nil {
		return defaults()
	}
	cfg := *m.config
	return &cfg
}

// GetReporter returns a copy of the reporter settings.
func (m *Manager) GetReporter() ReporterConfig {
	return m.Get().Reporter
}

// SetReporter replaces the reporter settings and persists them.
func (m *Manager) SetReporter(cfg ReporterConfig) error {
	m.mu.Lock()
	if m.config == nil {
		m.config = defaults()
	}
	m.config.Reporter = cfg
	m.mu.Unlock()
	return m.Save()
}

// SetLogLevel updates the daemon log level in memory.
func (m *Manager) SetLogLevel(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		m.config = defaults()
	}
	m.config.LogLevel = level
}

// SetDiagnosticsPort updates the diagnostics server port in memory.
func (m *Manager) SetDiagnosticsPort(port int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.config == nil {
		m.config = defaults()
	}
	m.config.DiagnosticsPort = port
}

// GetConfigPath returns the path backing this manager.
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
