/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the earnings-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                   string `mapstructure:"SERVER_PORT"`
	DatabaseURL                  string `mapstructure:"DATABASE_URL"`
	RabbitMQURL                  string `mapstructure:"RABBITMQ_URL"`
	RedisURL                     string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix         string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	JWTSecret                    string `mapstructure:"JWT_SECRET"`
	InternalAPIKey               string `mapstructure:"INTERNAL_API_KEY"`
	AccrualEventQueue            string `mapstructure:"ACCRUAL_EVENT_QUEUE"`
	MinWithdrawalCents           int64  `mapstructure:"MIN_WITHDRAWAL_CENTS"`
	MaxPendingWithdrawals        int    `mapstructure:"MAX_PENDING_WITHDRAWALS"`
	WalletAddressMinLength       int    `mapstructure:"WALLET_ADDRESS_MIN_LENGTH"`
	WithdrawalRateLimitPerMinute int    `mapstructure:"WITHDRAWAL_RATE_LIMIT_PER_MINUTE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8085")
	viper.SetDefault("ACCRUAL_EVENT_QUEUE", "earnings_service.accrual_events")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "monetize:rate_limit")
	viper.SetDefault("MIN_WITHDRAWAL_CENTS", 1000) // 10.00 in minor units
	viper.SetDefault("MAX_PENDING_WITHDRAWALS", 0) // 0 = unlimited
	viper.SetDefault("WALLET_ADDRESS_MIN_LENGTH", 16)
	viper.SetDefault("WITHDRAWAL_RATE_LIMIT_PER_MINUTE", 10)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "EARNINGS_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("ACCRUAL_EVENT_QUEUE")
	_ = viper.BindEnv("MIN_WITHDRAWAL_CENTS")
	_ = viper.BindEnv("MIN_WITHDRAWAL")
	_ = viper.BindEnv("MAX_PENDING_WITHDRAWALS")
	_ = viper.BindEnv("WALLET_ADDRESS_MIN_LENGTH")
	_ = viper.BindEnv("WITHDRAWAL_RATE_LIMIT_PER_MINUTE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(viper.GetString("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "monetize:rate_limit"
	}

	// Allow specifying the withdrawal floor in whole currency units via MIN_WITHDRAWAL.
	if viper.IsSet("MIN_WITHDRAWAL") {
		minStr := strings.TrimSpace(viper.GetString("MIN_WITHDRAWAL"))
		if minStr != "" {
			minValue, parseErr := strconv.ParseFloat(minStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid MIN_WITHDRAWAL\" value=%q err=%v", minStr, parseErr)
			} else {
				config.MinWithdrawalCents = int64(math.Round(minValue * 100))
			}
		}
	}

	if config.MinWithdrawalCents < 0 {
		log.Printf("level=warn component=config msg=\"negative withdrawal minimum configured; coercing to zero\" min_cents=%d", config.MinWithdrawalCents)
		config.MinWithdrawalCents = 0
	}
	if config.MaxPendingWithdrawals < 0 {
		config.MaxPendingWithdrawals = 0
	}
	if config.WalletAddressMinLength <= 0 {
		config.WalletAddressMinLength = 16
	}
	if config.WithdrawalRateLimitPerMinute < 0 {
		config.WithdrawalRateLimitPerMinute = 0
	}

	return
}
