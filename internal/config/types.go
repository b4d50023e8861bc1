package config

import "time"

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	TrustedProxy []string      `mapstructure:"trusted_proxies"`
}

type GRPCConfig struct {
	Port                  string `mapstructure:"port"`
	EnableReflection      bool   `mapstructure:"enable_reflection"`
	MaxReceiveMessageSize int    `mapstructure:"max_receive_message_size"`
	MaxSendMessageSize    int    `mapstructure:"max_send_message_size"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	LogLevel string `mapstructure:"log_level"`
}

// AdminConfig describes the administrator account created at startup when
// no user with Email exists yet.
type AdminConfig struct {
	Email     string `mapstructure:"email"`
	Password  string `mapstructure:"password"`
	PinKey    string `mapstructure:"pin_key"`
	FirstName string `mapstructure:"firstname"`
	LastName  string `mapstructure:"lastname"`
	Phone     string `mapstructure:"phone"`
}

// MaxPinKeyLength is the width of users.pin_key.
const MaxPinKeyLength = 64

type AuthConfig struct {
	JWTSecret        string        `mapstructure:"jwt_secret"`
	TokenExpiration  time.Duration `mapstructure:"token_expiration"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	TOTPSkew         uint          `mapstructure:"totp_skew"`
	TOTPIssuer       string        `mapstructure:"totp_issuer"`
	PinKeyLength     int           `mapstructure:"pin_key_length"`
	BcryptCost       int           `mapstructure:"bcrypt_cost"`
	SessionCookie    string        `mapstructure:"session_cookie"`
	TokenCookie      string        `mapstructure:"token_cookie"`
	SecureCookies    bool          `mapstructure:"secure_cookies"`
	SessionStore     string        `mapstructure:"session_store"` // "redis" or "memory"
	Admin            AdminConfig   `mapstructure:"admin"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SecurityLogConfig struct {
	Path     string `mapstructure:"path"`
	TailSize int    `mapstructure:"tail_size"`
}

type LotteryConfig struct {
	MaxNumber int `mapstructure:"max_number"`
}

type AppConfig struct {
	Server      ServerConfig      `mapstructure:"server"`
	GRPC        GRPCConfig        `mapstructure:"grpc"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Redis       RedisConfig       `mapstructure:"redis"`
	SecurityLog SecurityLogConfig `mapstructure:"security_log"`
	Lottery     LotteryConfig     `mapstructure:"lottery"`
}
