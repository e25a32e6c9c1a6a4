// Package config loads settings from defaults, a YAML file and the environment
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/mrcode/glucose-share/internal/models"
	"github.com/spf13/viper"
)

// EnvPrefix is used for every setting that has no dedicated variable
const EnvPrefix = "GLUCOSE_SHARE"

// Dedicated environment variables, kept compatible with existing deployments
var envBindings = map[string]string{
	"username":    "DEXCOM_SHARE_USERNAME",
	"password":    "DEXCOM_SHARE_PASSWORD",
	"region":      "DEXCOM_SHARE_SERVER",
	"server.port": "PORT",
}

// Load reads settings. An empty path means the default config file, which
// may be absent. An explicit path must exist.
func Load(path string) (*models.Settings, error) {
	v := viper.New()
	setDefaults(v, models.DefaultSettings())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("binding %s: %w", env, err)
		}
	}

	optional := path == ""
	if optional {
		defaultPath, err := models.GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("locating config: %w", err)
		}
		path = defaultPath
	}

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !optional {
		return nil, fmt.Errorf("config file: %w", err)
	}

	settings := &models.Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return settings, nil
}

// setDefaults registers every key so AutomaticEnv and Unmarshal see it
func setDefaults(v *viper.Viper, d *models.Settings) {
	v.SetDefault("username", d.Username)
	v.SetDefault("password", d.Password)
	v.SetDefault("region", d.Region)
	v.SetDefault("unit", d.Unit)
	v.SetDefault("benchmarks.low", d.Benchmarks.Low)
	v.SetDefault("benchmarks.high", d.Benchmarks.High)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.staticDir", d.Server.StaticDir)
	v.SetDefault("refreshInterval", d.RefreshInterval)
	v.SetDefault("enableLowAlert", d.EnableLowAlert)
	v.SetDefault("enableHighAlert", d.EnableHighAlert)
	v.SetDefault("repeatAlertMinutes", d.RepeatAlertMinutes)
	v.SetDefault("logLevel", d.LogLevel)
}
