package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/bryanchriswhite/screenrec/internal/logger"
)

// ToolPaths carries absolute paths for the external collaborators, when the
// operator needs something other than a plain $PATH lookup.
type ToolPaths struct {
	FFmpeg   string `json:"ffmpeg,omitempty" yaml:"ffmpeg,omitempty"`
	Xwininfo string `json:"xwininfo,omitempty" yaml:"xwininfo,omitempty"`
	Slop     string `json:"slop,omitempty" yaml:"slop,omitempty"`
	Gifsicle string `json:"gifsicle,omitempty" yaml:"gifsicle,omitempty"`
}

// Map returns the non-empty overrides keyed by tool name.
func (t ToolPaths) Map() map[string]string {
	m := make(map[string]string, 4)
	for name, path := range map[string]string{
		"ffmpeg":   t.FFmpeg,
		"xwininfo": t.Xwininfo,
		"slop":     t.Slop,
		"gifsicle": t.Gifsicle,
	} {
		if path != "" {
			m[name] = path
		}
	}
	return m
}

// Config holds the persisted recording defaults. Command-line flags override
// these per run; these override the built-in defaults.
type Config struct {
	Framerate    int       `json:"framerate" yaml:"framerate"`
	ShowCursor   bool      `json:"show_cursor" yaml:"show_cursor"`
	DelaySeconds int       `json:"delay_seconds" yaml:"delay_seconds"`
	MaxColors    int       `json:"max_colors" yaml:"max_colors"`
	Dither       bool      `json:"dither" yaml:"dither"`
	Optimize     bool      `json:"optimize" yaml:"optimize"`
	LogLevel     string    `json:"log_level" yaml:"log_level"`
	ControlPort  int       `json:"control_port" yaml:"control_port"`
	Tools        ToolPaths `json:"tools" yaml:"tools"`
}

// Manager handles configuration
type Manager struct {
	configPath string
	config     *Config
	mu         sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configFile string) (*Manager, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get home directory: %w", err)
	}

	configDir := filepath.Join(homeDir, ".config", "screenrec")
	defaultConfigPath := filepath.Join(configDir, "config.yaml")

	actualConfigPath := defaultConfigPath
	if configFile != "" {
		actualConfigPath = configFile
	}

	if err := os.MkdirAll(filepath.Dir(actualConfigPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	m := &Manager{
		configPath: actualConfigPath,
	}

	if err := m.load(); err != nil {
		if os.IsNotExist(err) {
			logger.WithComponent("config").Info().
				Str("path", m.configPath).
				Msg("config file not found, creating new config")
			m.config = getDefaults()
			if err := m.Save(); err != nil {
				return nil, fmt.Errorf("failed to create default config: %w", err)
			}
		} else {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	logger.WithComponent("config").Debug().
		Str("path", m.configPath).
		Msg("config loaded")

	return m, nil
}

// getDefaults returns the built-in default configuration
func getDefaults() *Config {
	return &Config{
		Framerate:    25,
		ShowCursor:   true,
		DelaySeconds: 1,
		MaxColors:    256,
		Dither:       false,
		Optimize:     false,
		LogLevel:     "info",
	}
}

// load reads the configuration from disk
func (m *Manager) load() error {
	data, err := os.ReadFile(m.configPath)
	if err != nil {
		return err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	// Fill holes left by hand-edited config files
	defaults := getDefaults()
	if cfg.Framerate <= 0 {
		cfg.Framerate = defaults.Framerate
	}
	if cfg.MaxColors <= 0 {
		cfg.MaxColors = defaults.MaxColors
	}
	if cfg.DelaySeconds < 0 {
		cfg.DelaySeconds = defaults.DelaySeconds
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}

	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return nil
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return *m.config
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.RLock()
	data, err := yaml.Marshal(m.config)
	m.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(m.configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Update replaces the configuration and persists it
func (m *Manager) Update(cfg Config) error {
	m.mu.Lock()
	m.config = &cfg
	m.mu.Unlock()
	return m.Save()
}

// GetConfigPath returns the path of the config file in use
func (m *Manager) GetConfigPath() string {
	return m.configPath
}
