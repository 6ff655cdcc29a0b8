package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the dealdesk service.
type Config struct {
	General   GeneralConfig   `mapstructure:"general"`
	Server    ServerConfig    `mapstructure:"server"`
	Databases DatabasesConfig `mapstructure:"databases"`
	Partner   PartnerConfig   `mapstructure:"partner"`
}

// GeneralConfig contains general application settings.
type GeneralConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig contains HTTP server and auth settings.
type ServerConfig struct {
	Address     string   `mapstructure:"address"`
	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`
}

// DatabasesConfig groups database connections.
type DatabasesConfig struct {
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig describes the Postgres connection, either as a full URL or
// as discrete fields.
type PostgresConfig struct {
	URL      string `mapstructure:"url"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// DSN builds a postgres connection string, preferring the explicit URL.
func (p PostgresConfig) DSN() (string, error) {
	if p.URL != "" {
		return p.URL, nil
	}
	if p.Host == "" || p.DBName == "" {
		return "", fmt.Errorf("postgres not configured (databases.postgres.host/dbname or url)")
	}
	port := p.Port
	if port == "" {
		port = "5432"
	}
	ssl := p.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, port, p.DBName, ssl), nil
}

// PartnerConfig carries the transport policy for partner-site calls and the
// TTL of issued session handles.
type PartnerConfig struct {
	APIDomain       string        `mapstructure:"api_domain"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	RetryCount      int           `mapstructure:"retry_count"`
	RetryWaitTime   time.Duration `mapstructure:"retry_wait_time"`
	SessionTTL      time.Duration `mapstructure:"session_ttl"`
	// InsecureTLS skips certificate verification against partner sites.
	// Defaults to true to match the partner deployments in production;
	// revisit before pointing this at anything else.
	InsecureTLS bool `mapstructure:"insecure_tls"`
}

// LoadConfig reads configuration from a config file plus DEALDESK_*
// environment overrides. An absent config file is fine when no explicit
// path was given; defaults and the environment then apply.
func LoadConfig(path string) *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetDefault("general.log_level", "info")
	v.SetDefault("server.address", ":8000")
	v.SetDefault("server.cors_origins", []string{"http://localhost:3000", "http://localhost:5173"})
	v.SetDefault("partner.api_domain", "altius.finance")
	v.SetDefault("partner.connect_timeout", 10*time.Second)
	v.SetDefault("partner.read_timeout", 30*time.Second)
	v.SetDefault("partner.download_timeout", 60*time.Second)
	v.SetDefault("partner.retry_count", 3)
	v.SetDefault("partner.retry_wait_time", time.Second)
	v.SetDefault("partner.session_ttl", time.Hour)
	v.SetDefault("partner.insecure_tls", true)

	if path == "" {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	v.SetEnvPrefix("DEALDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			panic(fmt.Errorf("fatal error config file: %w", err))
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		panic(fmt.Errorf("fatal error config file: %w", err))
	}
	return &config
}
