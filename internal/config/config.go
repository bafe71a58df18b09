/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables, with an
 * optional .env file for local development.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */
package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ledger service. These
// values are loaded from environment variables.
type Config struct {
	ServerPort                 string  `mapstructure:"SERVER_PORT"`
	DatabaseURL                string  `mapstructure:"DATABASE_URL"`
	RedisURL                   string  `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string  `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                string  `mapstructure:"RABBITMQ_URL"`
	JWTSecret                  string  `mapstructure:"JWT_SECRET"`
	TokenTTLHours              int     `mapstructure:"TOKEN_TTL_HOURS"`
	AccrualSchedule            string  `mapstructure:"ACCRUAL_SCHEDULE"`
	AccrualRate                float64 `mapstructure:"ACCRUAL_RATE"`
	AccrualCapFactor           float64 `mapstructure:"ACCRUAL_CAP_FACTOR"`
	TransferRateLimitPerMinute int     `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`
	DevMode                    bool    `mapstructure:"DEV_MODE"`
}

// LoadConfig reads configuration from environment variables from the given
// path. It uses Viper to automatically bind environment variables to the
// Config struct.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "ledger:rate_limit")
	viper.SetDefault("TOKEN_TTL_HOURS", 24)
	viper.SetDefault("ACCRUAL_SCHEDULE", "@every 1m")
	viper.SetDefault("ACCRUAL_RATE", 0.05)
	viper.SetDefault("ACCRUAL_CAP_FACTOR", 2.07)
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", 0)
	viper.SetDefault("DEV_MODE", false)

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("TOKEN_TTL_HOURS")
	_ = viper.BindEnv("ACCRUAL_SCHEDULE")
	_ = viper.BindEnv("ACCRUAL_RATE")
	_ = viper.BindEnv("ACCRUAL_CAP_FACTOR")
	_ = viper.BindEnv("TRANSFER_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("DEV_MODE")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	config.AccrualSchedule = strings.TrimSpace(config.AccrualSchedule)
	if config.AccrualSchedule == "" {
		config.AccrualSchedule = "@every 1m"
	}
	if config.AccrualRate <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive accrual rate configured; using default\" rate=%f", config.AccrualRate)
		config.AccrualRate = 0.05
	}
	if config.AccrualCapFactor <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive accrual cap factor configured; using default\" cap_factor=%f", config.AccrualCapFactor)
		config.AccrualCapFactor = 2.07
	}
	if config.TokenTTLHours <= 0 {
		config.TokenTTLHours = 24
	}
	if config.TransferRateLimitPerMinute < 0 {
		config.TransferRateLimitPerMinute = 0
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "ledger:rate_limit"
	}

	return
}
