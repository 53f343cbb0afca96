// config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process-wide configuration. It is read once at startup and
// never mutated afterwards.
type Config struct {
	Env             string `env:"ENV" envDefault:"development"`
	Port            string `env:"PORT" envDefault:"8080"`
	PermissionsFile string `env:"PERMISSIONS_FILE"`

	Discord DiscordConfig
	Mongo   MongoConfig
	Redis   RedisConfig
	OTP     OTPConfig
	Email   EmailConfig
	Guild   GuildConfig
}

type DiscordConfig struct {
	Token     string `env:"DISCORD_BOT_TOKEN"`
	AppID     string `env:"DISCORD_APP_ID"`
	PublicKey string `env:"DISCORD_PUBLIC_KEY"`
	// GuildID scopes command registration to one guild during development.
	GuildID string `env:"DISCORD_GUILD_ID"`
}

type MongoConfig struct {
	URI    string `env:"MONGO_URI"`
	DBName string `env:"DB_NAME" envDefault:"kminds"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

// OTPConfig holds the OTP timing and code shape.
type OTPConfig struct {
	// Store selects the OTP backend: mongo, redis or memory.
	Store            string `env:"OTP_STORE" envDefault:"mongo"`
	ExpiresInSeconds int    `env:"OTP_EXPIRES_IN" envDefault:"600"`
	CooldownSeconds  int    `env:"OTP_COOLDOWN" envDefault:"120"`
	Length           int    `env:"OTP_LENGTH" envDefault:"6"`
	Charset          string `env:"OTP_CHARSET" envDefault:"0123456789"`
	// MaxAttempts is parsed for compatibility but not enforced.
	MaxAttempts int    `env:"OTP_MAX_ATTEMPTS" envDefault:"3"`
	EmailDomain string `env:"EMAIL_DOMAIN" envDefault:"@stud.kuet.ac.bd"`
}

func (c OTPConfig) ExpiresIn() time.Duration {
	return time.Duration(c.ExpiresInSeconds) * time.Second
}

func (c OTPConfig) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

type EmailConfig struct {
	Enabled  bool   `env:"EMAIL_ENABLED" envDefault:"true"`
	From     string `env:"EMAIL_FROM" envDefault:"noreply@kminds"`
	FromName string `env:"EMAIL_FROM_NAME" envDefault:"KUET Auth"`
	Subject  string `env:"EMAIL_OTP_SUBJECT" envDefault:"Your Verification Code"`
	Host     string `env:"SMTP_SERVER"`
	Port     int    `env:"SMTP_PORT" envDefault:"465"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASSWORD"`
	// SkipVerify accepts self-signed SMTP certificates.
	SkipVerify bool `env:"SMTP_SKIP_VERIFY" envDefault:"true"`
	// VerifyOnStart dials the SMTP server once at startup.
	VerifyOnStart bool `env:"SMTP_VERIFY_ON_START" envDefault:"true"`
}

// GuildConfig carries the channel and role ids the bot's policies refer to.
type GuildConfig struct {
	VerificationChannelID     string            `env:"VERIFICATION_CHANNEL_ID"`
	VerificationLogsChannelID string            `env:"VERIFICATION_LOGS_CHANNEL_ID"`
	ModeratorRoleIDs          []string          `env:"MODERATOR_ROLE_IDS" envSeparator:","`
	BlockedUserIDs            []string          `env:"BLOCKED_USER_IDS" envSeparator:","`
	BlockedRoleIDs            []string          `env:"BLOCKED_ROLE_IDS" envSeparator:","`
	VerifiedRoleID            string            `env:"VERIFIED_ROLE_ID"`
	BatchRoleIDs              map[string]string `env:"BATCH_ROLE_IDS" envSeparator:"," envKeyValSeparator:":"`
}

// Load reads .env (when present) and parses the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse parses the current environment without touching .env files.
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values the bot cannot run without.
func (c *Config) Validate() error {
	var errs []error
	if c.Discord.Token == "" {
		errs = append(errs, errors.New("DISCORD_BOT_TOKEN is required"))
	}
	if c.Discord.AppID == "" {
		errs = append(errs, errors.New("DISCORD_APP_ID is required"))
	}
	// Users always live in Mongo, whichever OTP store is selected.
	if c.Mongo.URI == "" {
		errs = append(errs, errors.New("MONGO_URI is required"))
	}
	switch c.OTP.Store {
	case "mongo", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("OTP_STORE %q is not one of mongo, redis, memory", c.OTP.Store))
	}
	if c.OTP.ExpiresInSeconds <= 0 {
		errs = append(errs, errors.New("OTP_EXPIRES_IN must be positive"))
	}
	if c.OTP.CooldownSeconds < 0 {
		errs = append(errs, errors.New("OTP_COOLDOWN must not be negative"))
	}
	if c.OTP.Length <= 0 {
		errs = append(errs, errors.New("OTP_LENGTH must be positive"))
	}
	if c.OTP.Charset == "" || !isASCII(c.OTP.Charset) {
		errs = append(errs, errors.New("OTP_CHARSET must be a non-empty ASCII string"))
	}
	return errors.Join(errs...)
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}
