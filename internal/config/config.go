package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Logger   LoggerConfig
	Report   ReportConfig
}

type ServerConfig struct {
	Host string
	Port int
	Mode string // debug, release, test
}

type DatabaseConfig struct {
	SQLitePath string
	LogQueries bool
}

type JWTConfig struct {
	Secret     string
	ExpireHour time.Duration
}

type LoggerConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text, json
	OutputPath string // stdout, stderr or a file path
}

// ReportConfig controls dashboard and export rendering.
type ReportConfig struct {
	RecentLimit int
	Timezone    string
}

// Location resolves the configured report timezone, falling back to UTC.
func (r ReportConfig) Location() *time.Location {
	if r.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(r.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	// Environment variables, e.g. SERVER_PORT or DATABASE_SQLITE_PATH
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")

	v.SetDefault("database.sqlite_path", "./planes.db")
	v.SetDefault("database.log_queries", false)

	v.SetDefault("jwt.secret", "change-this-secret-in-production")
	v.SetDefault("jwt.expire_hour", 24)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "text")
	v.SetDefault("logger.output_path", "stdout")

	v.SetDefault("report.recent_limit", 10)
	v.SetDefault("report.timezone", "UTC")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host: v.GetString("server.host"),
			Port: v.GetInt("server.port"),
			Mode: v.GetString("server.mode"),
		},
		Database: DatabaseConfig{
			SQLitePath: v.GetString("database.sqlite_path"),
			LogQueries: v.GetBool("database.log_queries"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			ExpireHour: time.Duration(v.GetInt("jwt.expire_hour")),
		},
		Logger: LoggerConfig{
			Level:      v.GetString("logger.level"),
			Format:     v.GetString("logger.format"),
			OutputPath: v.GetString("logger.output_path"),
		},
		Report: ReportConfig{
			RecentLimit: v.GetInt("report.recent_limit"),
			Timezone:    v.GetString("report.timezone"),
		},
	}
}
