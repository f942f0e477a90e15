package config

import (
	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
type Config struct {
	PostgresURL string `mapstructure:"POSTGRES_URL"`
	RedisAddr   string `mapstructure:"REDIS_ADDR"`
	ServerPort  string `mapstructure:"SERVER_PORT"`

	BaseURL       string `mapstructure:"BASE_URL"`
	FetchTimeout  int    `mapstructure:"FETCH_TIMEOUT"`
	FetchDelayMin int    `mapstructure:"FETCH_DELAY_MIN"`
	FetchDelayMax int    `mapstructure:"FETCH_DELAY_MAX"`
	PageDelayMin  int    `mapstructure:"PAGE_DELAY_MIN"`
	PageDelayMax  int    `mapstructure:"PAGE_DELAY_MAX"`
	MinBodyBytes  int    `mapstructure:"MIN_BODY_BYTES"`
	DebugDumpPath string `mapstructure:"DEBUG_DUMP_PATH"`

	MaxPages       int  `mapstructure:"MAX_PAGES"`
	BatchSize      int  `mapstructure:"BATCH_SIZE"`
	FetchDetails   bool `mapstructure:"FETCH_DETAILS"`
	SearchTTLHours int  `mapstructure:"SEARCH_TTL_HOURS"`
}

// Load reads configuration from file or environment variables.
func Load() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()

	// Attempt to read the .env file, but don't fail if it's not present.
	// This allows configuration purely through environment variables in production.
	_ = viper.ReadInConfig()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("BASE_URL", "https://www.hepsiemlak.com")
	viper.SetDefault("FETCH_TIMEOUT", 60) // in seconds
	viper.SetDefault("FETCH_DELAY_MIN", 2)
	viper.SetDefault("FETCH_DELAY_MAX", 5)
	viper.SetDefault("PAGE_DELAY_MIN", 3)
	viper.SetDefault("PAGE_DELAY_MAX", 5)
	viper.SetDefault("MIN_BODY_BYTES", 1000)
	viper.SetDefault("DEBUG_DUMP_PATH", "")
	viper.SetDefault("MAX_PAGES", 20)
	viper.SetDefault("BATCH_SIZE", 50)
	viper.SetDefault("FETCH_DETAILS", true)
	viper.SetDefault("SEARCH_TTL_HOURS", 6)

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
