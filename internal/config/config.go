package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileName is the optional JSON config file looked up in the config directory.
const ConfigFileName = "labeller.cfg.json"

// Load reads configuration from the JSON config file and sets default values.
// configDir is the directory containing the config file; a missing file is not
// an error since every setting has a usable default for local annotation work.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./labellerlogs")

	viper.SetDefault("db.driver", "sqlite")
	viper.SetDefault("db.file", "labels.db3")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "labeller")

	viper.SetDefault("catalog.frameDirName", "frames")
	viper.SetDefault("catalog.resolveCacheTTL", "10m")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "labeller-metrics")
	viper.SetDefault("influx.bucket", "annotation_data")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "labeller")
	viper.SetDefault("otel.exportInterval", "30s")

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
