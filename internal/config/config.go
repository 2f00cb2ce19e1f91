// Package config provides configuration management for the input relay.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Environment variables that override the config file
const (
	EnvPort       = "INPUTRELAY_PORT"
	EnvMouseSpeed = "INPUTRELAY_MOUSE_SPEED"
	EnvWheelSpeed = "INPUTRELAY_WHEEL_SPEED"
)

// Config represents the application configuration
type Config struct {
	// Server contains relay socket and motion settings
	Server ServerConfig `json:"server"`

	// General contains general application settings
	General GeneralConfig `json:"general"`
}

// ServerConfig contains the relay settings
type ServerConfig struct {
	// Port is the UDP port to listen on and to address handshake replies to
	Port int `json:"port"`

	// MouseSpeed multiplies cursor displacement
	MouseSpeed float64 `json:"mouse_speed"`

	// WheelSpeed multiplies wheel steps
	WheelSpeed float64 `json:"wheel_speed"`

	// MaxDatagramSize is the largest datagram read in one piece
	MaxDatagramSize int `json:"max_datagram_size"`
}

// GeneralConfig contains general application settings
type GeneralConfig struct {
	// ShowTray runs the relay behind a system tray icon
	ShowTray bool `json:"show_tray"`

	// StartOnBoot determines if the relay starts on login
	StartOnBoot bool `json:"start_on_boot"`

	// ManageFirewall opens the UDP port in the Windows firewall on start
	ManageFirewall bool `json:"manage_firewall"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            19876,
			MouseSpeed:      1.0,
			WheelSpeed:      1.0,
			MaxDatagramSize: 1024,
		},
		General: GeneralConfig{
			ShowTray:       false,
			StartOnBoot:    false,
			ManageFirewall: runtime.GOOS == "windows",
		},
	}
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("port %d out of range", c.Server.Port)
	}
	if c.Server.MouseSpeed <= 0 {
		return fmt.Errorf("mouse speed must be positive, got %v", c.Server.MouseSpeed)
	}
	if c.Server.WheelSpeed <= 0 {
		return fmt.Errorf("wheel speed must be positive, got %v", c.Server.WheelSpeed)
	}
	if c.Server.MaxDatagramSize <= 0 {
		return fmt.Errorf("max datagram size must be positive, got %d", c.Server.MaxDatagramSize)
	}
	return nil
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	log        *zap.Logger
}

// NewManager creates a configuration manager for the default per-user path
func NewManager(logger *zap.Logger) (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return NewManagerAt(configPath, logger), nil
}

// NewManagerAt creates a configuration manager for an explicit file path
func NewManagerAt(path string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		configPath: path,
		config:     DefaultConfig(),
		log:        logger.With(zap.String("component", "config")),
	}
}

// Path returns the configuration file path
func (m *Manager) Path() string {
	return m.configPath
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "inputrelay")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "inputrelay")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "inputrelay")
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the configuration from disk. A missing file leaves the defaults.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		m.log.Debug("No config file, using defaults", zap.String("path", m.configPath))
		return nil
	}
	if err != nil {
		return err
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", m.configPath, err)
	}
	m.config = cfg
	return nil
}

// LoadEnv applies a .env file (when present) and then INPUTRELAY_*
// environment variables on top of the loaded configuration.
func (m *Manager) LoadEnv(envFiles ...string) error {
	if err := godotenv.Load(envFiles...); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load env file: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if v := os.Getenv(EnvPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPort, err)
		}
		m.config.Server.Port = port
	}
	if v := os.Getenv(EnvMouseSpeed); v != "" {
		speed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMouseSpeed, err)
		}
		m.config.Server.MouseSpeed = speed
	}
	if v := os.Getenv(EnvWheelSpeed); v != "" {
		speed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWheelSpeed, err)
		}
		m.config.Server.WheelSpeed = speed
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(m.configPath), 0755); err != nil {
		return err
	}

	m.log.Info("Saving configuration", zap.String("path", m.configPath), zap.Int("bytes", len(data)))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns a copy of the current configuration
func (m *Manager) Get() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.config
}

// Set replaces the configuration
func (m *Manager) Set(config Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config = &config
}
