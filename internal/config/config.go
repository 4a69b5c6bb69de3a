package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	"github.com/zolachat/zola-api/shared/storage"
)

// Config holds the service configuration parsed from environment variables.
type Config struct {
	Server  ServerConfig
	Mongo   MongoConfig
	Token   TokenConfig
	OTP     OTPConfig
	Google  GoogleConfig
	Storage storage.Config
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Addr            string        `env:"SERVER_ADDR" envDefault:":4000"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CORSOrigin      string        `env:"CORS_ALLOWED_ORIGIN" envDefault:"*"`
}

// MongoConfig holds the document database configuration.
type MongoConfig struct {
	URI      string `env:"MONGO_URI"`
	Database string `env:"MONGO_DATABASE" envDefault:"zola"`
}

// TokenConfig holds the session token configuration.
type TokenConfig struct {
	Secret    string        `env:"TOKEN_SECRET"`
	Issuer    string        `env:"TOKEN_ISSUER" envDefault:"zola-api"`
	ExpiresIn time.Duration `env:"TOKEN_EXPIRES_IN" envDefault:"72h"`
}

// OTPConfig holds both OTP policies. The reset and registration flows share
// the send/verify budgets but differ in expiry window.
type OTPConfig struct {
	ResetExpiry       time.Duration `env:"OTP_RESET_EXPIRY" envDefault:"5m"`
	RegisterExpiry    time.Duration `env:"OTP_REGISTER_EXPIRY" envDefault:"2m"`
	MaxSendAttempts   int           `env:"OTP_MAX_SEND_ATTEMPTS" envDefault:"3"`
	MaxVerifyAttempts int           `env:"OTP_MAX_VERIFY_ATTEMPTS" envDefault:"5"`
	SendCooldown      time.Duration `env:"OTP_SEND_COOLDOWN" envDefault:"1h"`
}

// GoogleConfig holds the Google identity provider configuration.
type GoogleConfig struct {
	ClientID string `env:"GOOGLE_CLIENT_ID"`
}

// Load parses the configuration from environment variables.
func Load(logger *zerolog.Logger) *Config {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to parse environment variables")
	}

	if err := cfg.validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	return &cfg
}

// validate checks the required configuration values.
func (c *Config) validate() error {
	if c.Mongo.URI == "" {
		return fmt.Errorf("missing MONGO_URI environment variable")
	}
	if c.Token.Secret == "" {
		return fmt.Errorf("missing TOKEN_SECRET environment variable")
	}
	if c.Google.ClientID == "" {
		return fmt.Errorf("missing GOOGLE_CLIENT_ID environment variable")
	}

	return nil
}
