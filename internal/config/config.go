// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"log"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all runtime settings. Defaults suit local development.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	DB DBConfig

	SMTP SMTPConfig

	// DiscordWebhookURL receives the event-published announcement.
	// Empty disables the webhook.
	DiscordWebhookURL string `env:"DISCORD_WEBHOOK_URL"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"felicity"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN builds a libpq-compatible connection string.
func (c DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// SMTPConfig holds outbound mail settings. MockMode logs instead of
// sending, for development and tests.
type SMTPConfig struct {
	Host     string `env:"SMTP_HOST"`
	Port     string `env:"SMTP_PORT" envDefault:"587"`
	User     string `env:"SMTP_USER"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" envDefault:"Felicity Events <noreply@felicity.events>"`
	MockMode bool   `env:"SMTP_MOCK_MODE" envDefault:"true"`
}

// Load reads .env (when present) and parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded environment from .env")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}
