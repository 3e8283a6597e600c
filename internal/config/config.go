package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config holds every setting the server, worker and CLIs read from the environment.
type Config struct {
	Debug bool
	Port  string

	MongoURI      string
	MongoDatabase string
	DatabaseURL   string
	RedisURL      string

	JWTSecret     string
	JWTExpiration time.Duration
	Timezone      string

	PushProvider            string
	ExpoHost                string
	ExpoAccessToken         string
	FirebaseCredentialsPath string

	WahaBaseURL     string
	WahaAPIKey      string
	WahaCountryCode string

	EmailProvider  string
	EmailFrom      string
	SMTPHost       string
	SMTPPort       string
	SMTPUser       string
	SMTPPass       string
	SendGridAPIKey string

	WorkerInterval time.Duration
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	v.SetDefault("DEBUG", false)
	v.SetDefault("PORT", "8080")
	v.SetDefault("MONGODB_URI", "")
	v.SetDefault("MONGODB_DATABASE", "ease_academy")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_URL", "")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JWT_EXPIRATION", 7*24*time.Hour)
	v.SetDefault("TIMEZONE", "Asia/Karachi")
	v.SetDefault("PUSH_PROVIDER", "expo")
	v.SetDefault("EXPO_HOST", "https://exp.host")
	v.SetDefault("EXPO_ACCESS_TOKEN", "")
	v.SetDefault("FIREBASE_CREDENTIALS_PATH", "./firebase-service-account.json")
	v.SetDefault("WAHA_BASE_URL", "http://waha:3000")
	v.SetDefault("WAHA_API_KEY", "")
	v.SetDefault("WAHA_COUNTRY_CODE", "92")
	v.SetDefault("EMAIL_PROVIDER", "smtp")
	v.SetDefault("EMAIL_FROM", "noreply@easeacademy.local")
	v.SetDefault("SMTP_HOST", "")
	v.SetDefault("SMTP_PORT", "587")
	v.SetDefault("SMTP_USER", "")
	v.SetDefault("SMTP_PASS", "")
	v.SetDefault("SENDGRID_API_KEY", "")
	v.SetDefault("WORKER_INTERVAL", time.Minute)

	v.AutomaticEnv()
	return v
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// a missing .env is fine, the environment may already be populated
	_ = godotenv.Load()
	return fromViper(newViper())
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Debug:                   v.GetBool("DEBUG"),
		Port:                    v.GetString("PORT"),
		MongoURI:                v.GetString("MONGODB_URI"),
		MongoDatabase:           v.GetString("MONGODB_DATABASE"),
		DatabaseURL:             v.GetString("DATABASE_URL"),
		RedisURL:                v.GetString("REDIS_URL"),
		JWTSecret:               v.GetString("JWT_SECRET"),
		JWTExpiration:           v.GetDuration("JWT_EXPIRATION"),
		Timezone:                v.GetString("TIMEZONE"),
		PushProvider:            strings.ToLower(v.GetString("PUSH_PROVIDER")),
		ExpoHost:                v.GetString("EXPO_HOST"),
		ExpoAccessToken:         v.GetString("EXPO_ACCESS_TOKEN"),
		FirebaseCredentialsPath: v.GetString("FIREBASE_CREDENTIALS_PATH"),
		WahaBaseURL:             v.GetString("WAHA_BASE_URL"),
		WahaAPIKey:              v.GetString("WAHA_API_KEY"),
		WahaCountryCode:         v.GetString("WAHA_COUNTRY_CODE"),
		EmailProvider:           strings.ToLower(v.GetString("EMAIL_PROVIDER")),
		EmailFrom:               v.GetString("EMAIL_FROM"),
		SMTPHost:                v.GetString("SMTP_HOST"),
		SMTPPort:                v.GetString("SMTP_PORT"),
		SMTPUser:                v.GetString("SMTP_USER"),
		SMTPPass:                v.GetString("SMTP_PASS"),
		SendGridAPIKey:          v.GetString("SENDGRID_API_KEY"),
		WorkerInterval:          v.GetDuration("WORKER_INTERVAL"),
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return nil, errors.Wrapf(err, "config: invalid TIMEZONE %q", cfg.Timezone)
	}
	if cfg.WorkerInterval <= 0 {
		return nil, errors.Errorf("config: WORKER_INTERVAL must be positive, got %s", cfg.WorkerInterval)
	}
	return cfg, nil
}

// Location returns the timezone used to bucket attendance days.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RequireServer checks the settings the HTTP server cannot start without.
func (c *Config) RequireServer() error {
	if c.MongoURI == "" {
		return errors.New("MONGODB_URI not set")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET not set")
	}
	return nil
}
