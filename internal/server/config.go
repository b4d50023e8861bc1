package server

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/elskow/lottery-web/internal/config"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

const defaultConfigDir = "./config/server"

const maxPinKeyLength = config.MaxPinKeyLength

func LoadConfig() (*config.AppConfig, error) {
	return loadConfig(defaultConfigDir)
}

func loadConfig(dir string) (*config.AppConfig, error) {
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = EnvDevelopment
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(dir)

	setDefaults(v)

	// LOTTERY_AUTH_JWT_SECRET overrides auth.jwt_secret and so on.
	v.SetEnvPrefix("lottery")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config config.AppConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Load environment-specific configurations
	if envSettings := v.GetStringMap(fmt.Sprintf("grpc.%s", env)); len(envSettings) > 0 {
		if err := v.UnmarshalKey(fmt.Sprintf("grpc.%s", env), &config.GRPC); err != nil {
			return nil, fmt.Errorf("error unmarshaling env config: %w", err)
		}
	}

	if config.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret must be set")
	}
	// Pin keys are unpadded base32, so the length must encode whole bytes.
	if n := config.Auth.PinKeyLength; n <= 0 || n%8 != 0 || n > maxPinKeyLength {
		return nil, fmt.Errorf("auth.pin_key_length must be a positive multiple of 8 up to %d, got %d",
			maxPinKeyLength, n)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)

	v.SetDefault("grpc.port", "9090")
	v.SetDefault("grpc.max_receive_message_size", 4<<20)
	v.SetDefault("grpc.max_send_message_size", 4<<20)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("auth.token_expiration", time.Hour)
	v.SetDefault("auth.session_ttl", 30*time.Minute)
	v.SetDefault("auth.max_login_attempts", 3)
	v.SetDefault("auth.totp_skew", 0)
	v.SetDefault("auth.totp_issuer", "Lottery")
	v.SetDefault("auth.pin_key_length", 32)
	v.SetDefault("auth.bcrypt_cost", 10)
	v.SetDefault("auth.session_cookie", "lottery_session")
	v.SetDefault("auth.token_cookie", "lottery_token")
	v.SetDefault("auth.session_store", "redis")

	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("security_log.path", "lottery.log")
	v.SetDefault("security_log.tail_size", 10)

	v.SetDefault("lottery.max_number", 60)
}
