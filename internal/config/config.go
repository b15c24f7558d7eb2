package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// HistoryConfig holds player-count history recorder settings.
type HistoryConfig struct {
	SampleInterval time.Duration `json:"sampleInterval" mapstructure:"sampleInterval"`
	MaxEntries     int           `json:"maxEntries" mapstructure:"maxEntries"`
	Retention      time.Duration `json:"retention" mapstructure:"retention"`
}

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("server.listenAddr", ":8085")
	viper.SetDefault("server.corsOrigins", []string{"http://localhost:*"})

	viper.SetDefault("ingest.secret", "")

	viper.SetDefault("game.host", "localhost")
	viper.SetDefault("game.port", "30120")
	viper.SetDefault("game.timeout", "5s")
	viper.SetDefault("game.fallbackName", "Game Server")
	viper.SetDefault("game.fallbackMaxPlayers", 64)

	viper.SetDefault("history.sampleInterval", "5m")
	viper.SetDefault("history.maxEntries", 288)
	viper.SetDefault("history.retention", "24h")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "community")
	viper.SetDefault("db.localDBPath", "./telemetry.db")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "community-metrics")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "telemetryd")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetConfigName("telemetryd.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetHistoryConfig returns the history recorder settings.
func GetHistoryConfig() HistoryConfig {
	return HistoryConfig{
		SampleInterval: viper.GetDuration("history.sampleInterval"),
		MaxEntries:     viper.GetInt("history.maxEntries"),
		Retention:      viper.GetDuration("history.retention"),
	}
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

// GetStringSlice returns a string slice config value.
func GetStringSlice(key string) []string {
	return viper.GetStringSlice(key)
}
