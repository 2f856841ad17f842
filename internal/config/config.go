package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server    ServerConfig
	AWS       AWSConfig
	DynamoDB  DynamoDBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	OTP       OTPConfig
	RateLimit RateLimitConfig
	SMS       SMSConfig
	Storage   StorageConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type AWSConfig struct {
	Region   string
	Endpoint string
}

type DynamoDBConfig struct {
	TableName string
}

type RedisConfig struct {
	Endpoint string
	Password string
	DB       int
}

type JWTConfig struct {
	SecretKey string
	Expiry    time.Duration
}

type OTPConfig struct {
	Length      int
	Expiry      time.Duration
	MaxAttempts int
}

type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int
	Driver      string
}

type SMSConfig struct {
	Provider        string
	SenderID        string
	DeliveryTimeout time.Duration
}

type StorageConfig struct {
	Driver string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		AWS: AWSConfig{
			Region:   getEnv("AWS_REGION", "us-west-2"),
			Endpoint: getEnv("AWS_ENDPOINT", ""),
		},
		DynamoDB: DynamoDBConfig{
			TableName: getEnv("DYNAMODB_TABLE_NAME", "OTPTable"),
		},
		Redis: RedisConfig{
			Endpoint: getEnv("REDIS_ENDPOINT", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			SecretKey: getEnv("JWT_SECRET_KEY", ""),
			Expiry:    getEnvAsDuration("JWT_EXPIRY", 10*time.Minute),
		},
		OTP: OTPConfig{
			Length:      getEnvAsInt("OTP_LENGTH", 6),
			Expiry:      getEnvAsDuration("OTP_EXPIRY", 10*time.Minute),
			MaxAttempts: getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
		},
		RateLimit: RateLimitConfig{
			Window:      getEnvAsDuration("RATE_LIMIT_WINDOW", time.Hour),
			MaxRequests: getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 5),
			Driver:      getEnv("RATE_LIMIT_DRIVER", "redis"),
		},
		SMS: SMSConfig{
			Provider:        getEnv("SMS_PROVIDER", "sns"),
			SenderID:        getEnv("SMS_SENDER_ID", "EDUOTP"),
			DeliveryTimeout: getEnvAsDuration("SMS_DELIVERY_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", "dynamodb"),
		},
	}

	if cfg.OTP.Length < 4 || cfg.OTP.Length > 10 {
		return nil, fmt.Errorf("OTP_LENGTH must be between 4 and 10 digits")
	}

	if cfg.OTP.MaxAttempts < 1 {
		return nil, fmt.Errorf("OTP_MAX_ATTEMPTS must be at least 1")
	}

	if cfg.RateLimit.MaxRequests < 1 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX_REQUESTS must be at least 1")
	}

	// SNS caps alphanumeric sender IDs at 11 characters.
	if len(cfg.SMS.SenderID) > 11 {
		return nil, fmt.Errorf("SMS_SENDER_ID must not exceed 11 characters")
	}

	// Verification proof tokens are optional; a configured key must still be strong.
	if cfg.JWT.SecretKey != "" && len(cfg.JWT.SecretKey) < 32 {
		return nil, fmt.Errorf("JWT_SECRET_KEY must be at least 32 bytes (256 bits)")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
