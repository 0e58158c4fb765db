package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application level configuration loaded from environment
// variables and an optional config.yaml.
type Config struct {
	ServerPort  string
	Environment string
	LogLevel    string

	DBDriver string
	DBDSN    string
	ResetDB  bool

	RedisAddr   string
	RedisDB     int
	RedisPass   string
	RedisPrefix string

	JWTSecret   string
	SwaggerHost string

	BulkFullPolicy string

	HebcalBaseURL    string
	DefaultGeonameID int
	CalendarCacheTTL time.Duration

	SeedAdminPhone    string
	SeedAdminPassword string
	SeedAdminName     string
}

// Load builds Config from environment with sensible defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server_port", "8080")
	v.SetDefault("app_env", "production")
	v.SetDefault("log_level", "info")
	v.SetDefault("db_driver", "mysql")
	v.SetDefault("db_dsn", "user:password@tcp(localhost:3306)/synagogue?charset=utf8mb4&parseTime=True&loc=Local")
	v.SetDefault("reset_db", false)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_prefix", "synagogue:")
	v.SetDefault("jwt_secret", "change-me")
	v.SetDefault("bulk_full_policy", "continue")
	v.SetDefault("hebcal_base_url", "https://www.hebcal.com")
	v.SetDefault("default_geoname_id", 0)
	v.SetDefault("calendar_cache_ttl", "6h")
	v.SetDefault("seed_admin_name", "Admin")

	// MYSQL_DSN is the historical name of DB_DSN.
	_ = v.BindEnv("db_dsn", "DB_DSN", "MYSQL_DSN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		ServerPort:        v.GetString("server_port"),
		Environment:       v.GetString("app_env"),
		LogLevel:          v.GetString("log_level"),
		DBDriver:          strings.ToLower(v.GetString("db_driver")),
		DBDSN:             v.GetString("db_dsn"),
		ResetDB:           v.GetBool("reset_db"),
		RedisAddr:         v.GetString("redis_addr"),
		RedisDB:           v.GetInt("redis_db"),
		RedisPass:         v.GetString("redis_password"),
		RedisPrefix:       v.GetString("redis_prefix"),
		JWTSecret:         v.GetString("jwt_secret"),
		SwaggerHost:       v.GetString("swagger_host"),
		BulkFullPolicy:    strings.ToLower(v.GetString("bulk_full_policy")),
		HebcalBaseURL:     strings.TrimRight(v.GetString("hebcal_base_url"), "/"),
		DefaultGeonameID:  v.GetInt("default_geoname_id"),
		CalendarCacheTTL:  v.GetDuration("calendar_cache_ttl"),
		SeedAdminPhone:    v.GetString("seed_admin_phone"),
		SeedAdminPassword: v.GetString("seed_admin_password"),
		SeedAdminName:     v.GetString("seed_admin_name"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid DB_DRIVER %q: want mysql, postgres or sqlite", c.DBDriver)
	}
	switch c.BulkFullPolicy {
	case "continue", "abort":
	default:
		return fmt.Errorf("invalid BULK_FULL_POLICY %q: want continue or abort", c.BulkFullPolicy)
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET must not be empty")
	}
	return nil
}

// IsDevelopment reports whether the service runs in a local environment.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev" || c.Environment == "local"
}
