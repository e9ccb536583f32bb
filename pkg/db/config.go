package db

import (
	"fmt"
	"os"
	"strconv"
)

type PostgresConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxOpenConns int
	MaxIdleConns int
}

// LoadPostgresConfig reads DATABASE_URL, or the discrete DB_* variables when
// it is unset.
func LoadPostgresConfig() (PostgresConfig, error) {
	cfg := PostgresConfig{
		URL:          os.Getenv("DATABASE_URL"),
		Host:         envOr("DB_HOST", "localhost"),
		Port:         5432,
		User:         os.Getenv("DB_USER"),
		Password:     os.Getenv("DB_PASSWORD"),
		DBName:       os.Getenv("DB_NAME"),
		SSLMode:      envOr("DB_SSLMODE", "disable"),
		MaxOpenConns: 20,
		MaxIdleConns: 10,
	}

	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DB_PORT %q: %w", v, err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("DB_MAX_OPEN_CONNS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DB_MAX_OPEN_CONNS %q: %w", v, err)
		}
		cfg.MaxOpenConns = n
	}

	if cfg.URL == "" && (cfg.User == "" || cfg.DBName == "") {
		return cfg, fmt.Errorf("database connection variables not set: set DATABASE_URL or DB_USER and DB_NAME")
	}
	return cfg, nil
}

// DSN returns the connection string handed to lib/pq.
func (c PostgresConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
