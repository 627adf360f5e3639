package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Server   ServerConfig   `env:",prefix=SERVER_"`
	Postgres PostgresConfig `env:",prefix=POSTGRES_"`
	Redis    RedisConfig    `env:",prefix=REDIS_"`
	JWT      JWTConfig      `env:",prefix=JWT_"`
	Security SecurityConfig `env:",prefix="`
	OTP      OTPConfig      `env:",prefix=OTP_"`
	Telegram TelegramConfig `env:",prefix=TELEGRAM_"`
	VK       VKConfig       `env:",prefix=VK_"`
	SMS      SMSConfig      `env:",prefix=SMS_"`
	Email    EmailConfig    `env:",prefix=EMAIL_"`
	Breaker  BreakerConfig  `env:",prefix=BREAKER_"`
	Kafka    KafkaConfig    `env:",prefix=KAFKA_"`
	CORS     CORSConfig     `env:",prefix=CORS_"`
	Env      string         `env:"ENV,default=development"`
}

type ServerConfig struct {
	Port         string   `env:"PORT,default=8080"`
	Host         string   `env:"HOST,default=0.0.0.0"`
	ReadTimeout  Duration `env:"READ_TIMEOUT,default=15s"`
	WriteTimeout Duration `env:"WRITE_TIMEOUT,default=15s"`
}

type PostgresConfig struct {
	Host           string `env:"HOST,default=localhost"`
	Port           string `env:"PORT,default=5432"`
	User           string `env:"USER,default=dockmap"`
	Password       string `env:"PASSWORD,default=dockmap_password"`
	DBName         string `env:"DB,default=dockmap_auth"`
	SSLMode        string `env:"SSLMODE,default=disable"`
	AutoMigrate    bool   `env:"AUTO_MIGRATE,default=true"`
	ConnectRetries uint64 `env:"CONNECT_RETRIES,default=5"`
}

type RedisConfig struct {
	Host           string `env:"HOST,default=localhost"`
	Port           string `env:"PORT,default=6379"`
	Password       string `env:"PASSWORD,default="`
	DB             int    `env:"DB,default=0"`
	ConnectRetries uint64 `env:"CONNECT_RETRIES,default=5"`
}

type JWTConfig struct {
	AccessSecret       string   `env:"ACCESS_SECRET,required"`
	RefreshSecret      string   `env:"REFRESH_SECRET,required"`
	AccessTokenExpiry  Duration `env:"ACCESS_TOKEN_EXPIRY,default=15m"`
	RefreshTokenExpiry Duration `env:"REFRESH_TOKEN_EXPIRY,default=7d"`
}

type SecurityConfig struct {
	BCryptCost        int      `env:"BCRYPT_COST,default=12"`
	RateLimitRequests int      `env:"RATE_LIMIT_REQUESTS,default=10"`
	RateLimitWindow   Duration `env:"RATE_LIMIT_WINDOW,default=1m"`
}

type OTPConfig struct {
	SMSTTL          Duration `env:"SMS_TTL,default=5m"`
	EmailTTL        Duration `env:"EMAIL_TTL,default=10m"`
	ResetTTL        Duration `env:"RESET_TTL,default=10m"`
	CleanupInterval Duration `env:"CLEANUP_INTERVAL,default=1h"`
}

type TelegramConfig struct {
	BotToken    string   `env:"BOT_TOKEN"`
	BotID       string   `env:"BOT_ID"`
	Origin      string   `env:"BOT_ORIGIN"`
	RedirectURL string   `env:"REDIRECT_URL"`
	AuthMaxAge  Duration `env:"AUTH_MAX_AGE,default=24h"`
}

type VKConfig struct {
	ClientID    string   `env:"CLIENT_ID"`
	RedirectURI string   `env:"REDIRECT_URI"`
	TokenURL    string   `env:"TOKEN_URL,default=https://id.vk.com/oauth2/auth"`
	UserInfoURL string   `env:"USER_INFO_URL,default=https://id.vk.com/oauth2/user_info"`
	Timeout     Duration `env:"TIMEOUT,default=10s"`
}

// SMSConfig lists delivery channels in priority order: smsru, twilio, log
type SMSConfig struct {
	Providers        []string `env:"PROVIDERS,default=log"`
	SMSRuAPIID       string   `env:"SMSRU_API_ID"`
	SMSRuFrom        string   `env:"SMSRU_FROM"`
	SMSRuURL         string   `env:"SMSRU_URL,default=https://sms.ru/sms/send"`
	TwilioAccountSID string   `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string   `env:"TWILIO_AUTH_TOKEN"`
	TwilioFrom       string   `env:"TWILIO_FROM"`
	TwilioBaseURL    string   `env:"TWILIO_BASE_URL,default=https://api.twilio.com"`
	Timeout          Duration `env:"TIMEOUT,default=10s"`
}

// EmailConfig lists delivery channels in priority order: brevo, smtp, log
type EmailConfig struct {
	Providers    []string `env:"PROVIDERS,default=log"`
	FromAddress  string   `env:"FROM_ADDRESS,default=noreply@dockmap.ru"`
	FromName     string   `env:"FROM_NAME,default=DockMap"`
	BrevoAPIKey  string   `env:"BREVO_API_KEY"`
	BrevoURL     string   `env:"BREVO_URL,default=https://api.brevo.com/v3/smtp/email"`
	SMTPHost     string   `env:"SMTP_HOST"`
	SMTPPort     int      `env:"SMTP_PORT,default=587"`
	SMTPUser     string   `env:"SMTP_USER"`
	SMTPPassword string   `env:"SMTP_PASSWORD"`
	Timeout      Duration `env:"TIMEOUT,default=10s"`
}

type BreakerConfig struct {
	MaxFailures uint32   `env:"MAX_FAILURES,default=5"`
	Interval    Duration `env:"INTERVAL,default=1m"`
	OpenTimeout Duration `env:"OPEN_TIMEOUT,default=30s"`
}

type KafkaConfig struct {
	Brokers []string `env:"BROKERS"`
	Topic   string   `env:"TOPIC,default=auth.events"`
}

type CORSConfig struct {
	AllowedOrigins []string `env:"ALLOWED_ORIGINS,default=http://localhost:3000"`
	AllowedMethods []string `env:"ALLOWED_METHODS,default=GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders []string `env:"ALLOWED_HEADERS,default=Content-Type,Authorization"`
}

// DSN returns PostgreSQL connection string
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, p.SSLMode)
}

// Address returns Redis connection address
func (r RedisConfig) Address() string {
	return fmt.Sprintf("%s:%s", r.Host, r.Port)
}

// Enabled reports whether auth events should be published
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// Load loads configuration from environment variables
func Load(ctx context.Context) (*Config, error) {
	var config Config

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := config.JWT.validate(); err != nil {
		return nil, err
	}

	if err := config.validateDelivery(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadWithDefaults loads configuration with default context
func LoadWithDefaults() (*Config, error) {
	return Load(context.Background())
}

func (j JWTConfig) validate() error {
	if len(j.AccessSecret) < 32 {
		return fmt.Errorf("JWT_ACCESS_SECRET must be at least 32 characters long")
	}
	if len(j.RefreshSecret) < 32 {
		return fmt.Errorf("JWT_REFRESH_SECRET must be at least 32 characters long")
	}
	if j.AccessSecret == j.RefreshSecret {
		return fmt.Errorf("JWT_ACCESS_SECRET and JWT_REFRESH_SECRET must differ")
	}
	return nil
}

// validateDelivery keeps the log channel, which writes codes to stdout, out of production
func (c Config) validateDelivery() error {
	if c.Env != "production" {
		return nil
	}
	if usesLogChannel(c.SMS.Providers) {
		return fmt.Errorf("SMS_PROVIDERS must not use the log channel in production")
	}
	if usesLogChannel(c.Email.Providers) {
		return fmt.Errorf("EMAIL_PROVIDERS must not use the log channel in production")
	}
	return nil
}

// usesLogChannel mirrors delivery's parsing: an empty list falls back to log
func usesLogChannel(providers []string) bool {
	configured := 0
	for _, p := range providers {
		name := strings.ToLower(strings.TrimSpace(p))
		if name == "" {
			continue
		}
		if name == "log" {
			return true
		}
		configured++
	}
	return configured == 0
}
