package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env  string
	Port int

	Database  DatabaseConfig
	Redis     RedisConfig
	Twilio    TwilioConfig
	WhatsApp  WhatsAppConfig
	Booking   BookingConfig
	Reminders RemindersConfig
	Auth      AuthConfig
	Log       LogConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// TwilioConfig carries the messaging provider credentials. Values may be
// overridden at runtime through the system_config table.
type TwilioConfig struct {
	AccountSID      string
	AuthToken       string
	WhatsAppNumber  string
	ValidateWebhook bool
}

// WhatsAppConfig tunes conversation session behaviour.
type WhatsAppConfig struct {
	SessionTTL        time.Duration
	BookingContextTTL time.Duration
	RegistrationTTL   time.Duration
	DedupTTL          time.Duration
}

// BookingConfig pins the scheduling domain: working hours, slot grid and the
// WhatsApp booking windows. Hours are expressed in the configured zone.
type BookingConfig struct {
	Timezone            string
	OpenHour            int
	CloseHour           int
	MaxLessonsPerDay    int
	CancelLeadTime      time.Duration
	TodayCutoffHour     int
	TodayCutoffMinute   int
	TomorrowReleaseHour int
	MaxSlotsPerReply    int
}

// RemindersConfig governs the periodic reminder sweep.
type RemindersConfig struct {
	Enabled       bool
	SweepInterval time.Duration
	Workers       int
}

// AuthConfig secures the internal HTTP surface.
type AuthConfig struct {
	Secret     string
	Expiration time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.Twilio = TwilioConfig{
		AccountSID:      v.GetString("TWILIO_ACCOUNT_SID"),
		AuthToken:       v.GetString("TWILIO_AUTH_TOKEN"),
		WhatsAppNumber:  v.GetString("TWILIO_WHATSAPP_NUMBER"),
		ValidateWebhook: v.GetBool("TWILIO_VALIDATE_WEBHOOK"),
	}

	cfg.WhatsApp = WhatsAppConfig{
		SessionTTL:        parseDuration(v.GetString("WHATSAPP_SESSION_TTL"), 30*time.Minute),
		BookingContextTTL: parseDuration(v.GetString("WHATSAPP_BOOKING_CONTEXT_TTL"), 15*time.Minute),
		RegistrationTTL:   parseDuration(v.GetString("WHATSAPP_REGISTRATION_TTL"), 30*time.Minute),
		DedupTTL:          parseDuration(v.GetString("WHATSAPP_DEDUP_TTL"), 10*time.Minute),
	}

	cfg.Booking = BookingConfig{
		Timezone:            v.GetString("BOOKING_TIMEZONE"),
		OpenHour:            v.GetInt("BOOKING_OPEN_HOUR"),
		CloseHour:           v.GetInt("BOOKING_CLOSE_HOUR"),
		MaxLessonsPerDay:    v.GetInt("BOOKING_MAX_LESSONS_PER_DAY"),
		CancelLeadTime:      parseDuration(v.GetString("BOOKING_CANCEL_LEAD_TIME"), 2*time.Hour),
		TodayCutoffHour:     v.GetInt("BOOKING_TODAY_CUTOFF_HOUR"),
		TodayCutoffMinute:   v.GetInt("BOOKING_TODAY_CUTOFF_MINUTE"),
		TomorrowReleaseHour: v.GetInt("BOOKING_TOMORROW_RELEASE_HOUR"),
		MaxSlotsPerReply:    v.GetInt("BOOKING_MAX_SLOTS_PER_REPLY"),
	}

	cfg.Reminders = RemindersConfig{
		Enabled:       v.GetBool("ENABLE_REMINDERS"),
		SweepInterval: parseDuration(v.GetString("REMINDERS_SWEEP_INTERVAL"), 10*time.Minute),
		Workers:       v.GetInt("REMINDERS_WORKERS"),
	}

	cfg.Auth = AuthConfig{
		Secret:     v.GetString("SESSION_SECRET"),
		Expiration: parseDuration(v.GetString("TOKEN_EXPIRATION"), 24*time.Hour),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "drivelink")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("TWILIO_ACCOUNT_SID", "")
	v.SetDefault("TWILIO_AUTH_TOKEN", "")
	v.SetDefault("TWILIO_WHATSAPP_NUMBER", "")
	v.SetDefault("TWILIO_VALIDATE_WEBHOOK", false)

	v.SetDefault("WHATSAPP_SESSION_TTL", "30m")
	v.SetDefault("WHATSAPP_BOOKING_CONTEXT_TTL", "15m")
	v.SetDefault("WHATSAPP_REGISTRATION_TTL", "30m")
	v.SetDefault("WHATSAPP_DEDUP_TTL", "10m")

	v.SetDefault("BOOKING_TIMEZONE", "Africa/Harare")
	v.SetDefault("BOOKING_OPEN_HOUR", 6)
	v.SetDefault("BOOKING_CLOSE_HOUR", 16)
	v.SetDefault("BOOKING_MAX_LESSONS_PER_DAY", 2)
	v.SetDefault("BOOKING_CANCEL_LEAD_TIME", "2h")
	v.SetDefault("BOOKING_TODAY_CUTOFF_HOUR", 15)
	v.SetDefault("BOOKING_TODAY_CUTOFF_MINUTE", 30)
	v.SetDefault("BOOKING_TOMORROW_RELEASE_HOUR", 18)
	v.SetDefault("BOOKING_MAX_SLOTS_PER_REPLY", 10)

	v.SetDefault("ENABLE_REMINDERS", true)
	v.SetDefault("REMINDERS_SWEEP_INTERVAL", "10m")
	v.SetDefault("REMINDERS_WORKERS", 2)

	v.SetDefault("SESSION_SECRET", "dev_secret")
	v.SetDefault("TOKEN_EXPIRATION", "24h")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}
