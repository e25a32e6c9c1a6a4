// Package models contains data structures used throughout the application
package models

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// ServerSettings configures the HTTP proxy
type ServerSettings struct {
	Host      string `json:"host" yaml:"host" mapstructure:"host"`
	Port      int    `json:"port" yaml:"port" mapstructure:"port"`
	StaticDir string `json:"staticDir" yaml:"staticDir" mapstructure:"staticDir"` // Optional UI assets
}

// Settings contains all application settings
type Settings struct {
	// Dexcom Share credentials
	Username string `json:"username" yaml:"username" mapstructure:"username"`
	Password string `json:"password" yaml:"password" mapstructure:"password"`
	Region   string `json:"region" yaml:"region" mapstructure:"region"` // US, JP or OTHER

	// Display settings
	Unit       string     `json:"unit" yaml:"unit" mapstructure:"unit"` // "mg/dL" or "mmol/L"
	Benchmarks Benchmarks `json:"benchmarks" yaml:"benchmarks" mapstructure:"benchmarks"`

	Server ServerSettings `json:"server" yaml:"server" mapstructure:"server"`

	// Watch / alert settings
	RefreshInterval    int  `json:"refreshInterval" yaml:"refreshInterval" mapstructure:"refreshInterval"` // Seconds (30-600)
	EnableLowAlert     bool `json:"enableLowAlert" yaml:"enableLowAlert" mapstructure:"enableLowAlert"`
	EnableHighAlert    bool `json:"enableHighAlert" yaml:"enableHighAlert" mapstructure:"enableHighAlert"`
	RepeatAlertMinutes int  `json:"repeatAlertMinutes" yaml:"repeatAlertMinutes" mapstructure:"repeatAlertMinutes"` // 0 = no repeat

	LogLevel string `json:"logLevel" yaml:"logLevel" mapstructure:"logLevel"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	return &Settings{
		Region:     "US",
		Unit:       UnitMgdl,
		Benchmarks: DefaultBenchmarks(),

		Server: ServerSettings{
			Host: "0.0.0.0",
			Port: 3000,
		},

		RefreshInterval:    60,
		EnableLowAlert:     true,
		EnableHighAlert:    true,
		RepeatAlertMinutes: 15,

		LogLevel: "info",
	}
}

// GetConfigDir returns the configuration directory path
func GetConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default: // Linux and others
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config")
		}
	}

	return filepath.Join(configDir, "glucose-share"), nil
}

// GetConfigPath returns the full path to the default config file
func GetConfigPath() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Clone creates a copy of the settings
func (s *Settings) Clone() *Settings {
	clone := *s
	return &clone
}

// Redacted returns a copy that is safe to print
func (s *Settings) Redacted() *Settings {
	clone := s.Clone()
	if clone.Password != "" {
		clone.Password = "********"
	}
	return clone
}

// IsConfigured returns true if minimum required settings are set
func (s *Settings) IsConfigured() bool {
	return s.Username != "" && s.Password != ""
}

// Validate checks the settings that do not depend on the vendor client
func (s *Settings) Validate() error {
	var errs []error

	if s.Benchmarks.Low >= s.Benchmarks.High {
		errs = append(errs, fmt.Errorf("benchmarks: low (%d) must be below high (%d)", s.Benchmarks.Low, s.Benchmarks.High))
	}
	if s.Unit != UnitMgdl && s.Unit != UnitMmolL {
		errs = append(errs, fmt.Errorf("unit: %q is not %s or %s", s.Unit, UnitMgdl, UnitMmolL))
	}
	if s.Server.Port < 1 || s.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port: %d out of range", s.Server.Port))
	}
	if s.RefreshInterval < 30 || s.RefreshInterval > 600 {
		errs = append(errs, fmt.Errorf("refreshInterval: %d must be between 30 and 600 seconds", s.RefreshInterval))
	}
	if s.RepeatAlertMinutes < 0 {
		errs = append(errs, fmt.Errorf("repeatAlertMinutes: %d must not be negative", s.RepeatAlertMinutes))
	}

	return errors.Join(errs...)
}

// FormatValue renders a mg/dL value in the configured unit
func (s *Settings) FormatValue(mgdl int) string {
	if s.Unit == UnitMmolL {
		return fmt.Sprintf("%.1f", float64(mgdl)*MgdlToMmolFactor)
	}
	return fmt.Sprintf("%d", mgdl)
}
