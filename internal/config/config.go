package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server struct {
		Host       string `mapstructure:"host"`
		Port       int    `mapstructure:"port"`
		Mode       string `mapstructure:"mode"`
		CORSOrigin string `mapstructure:"cors_origin"`
	} `mapstructure:"server"`

	Mongo struct {
		URI            string        `mapstructure:"uri"`
		Database       string        `mapstructure:"database"`
		MaxPoolSize    uint64        `mapstructure:"max_pool_size"`
		MinPoolSize    uint64        `mapstructure:"min_pool_size"`
		ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	} `mapstructure:"mongo"`

	Reports struct {
		Dir string `mapstructure:"dir"`
	} `mapstructure:"reports"`

	Auth struct {
		JWTSecret   string        `mapstructure:"jwt_secret"`
		TokenExpiry time.Duration `mapstructure:"token_expiry"`
	} `mapstructure:"auth"`

	Elasticsearch struct {
		URL      string `mapstructure:"url"`
		Username string `mapstructure:"username"`
		Password string `mapstructure:"password"`
	} `mapstructure:"elasticsearch"`
}

// Load reads configs/config.yaml and applies environment overrides for the
// values that usually come from the deployment environment.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("/etc/clinic-desk")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.cors_origin", "http://localhost:5173")
	v.SetDefault("mongo.database", "hospitalDB")
	v.SetDefault("mongo.max_pool_size", 10)
	v.SetDefault("mongo.min_pool_size", 1)
	v.SetDefault("mongo.connect_timeout", 10*time.Second)
	v.SetDefault("reports.dir", "./data/reports")
	v.SetDefault("auth.token_expiry", 7*24*time.Hour)

	// Environment overrides
	_ = v.BindEnv("mongo.uri", "MONGO_URI")
	_ = v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	_ = v.BindEnv("elasticsearch.url", "ELASTICSEARCH_URL")
	_ = v.BindEnv("elasticsearch.username", "ELASTICSEARCH_USERNAME")
	_ = v.BindEnv("elasticsearch.password", "ELASTICSEARCH_PASSWORD")
	_ = v.BindEnv("reports.dir", "REPORT_DIR")
	_ = v.BindEnv("server.cors_origin", "CORS_ORIGIN")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.Mongo.URI == "" {
		return nil, fmt.Errorf("mongo.uri (MONGO_URI) is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("auth.jwt_secret (JWT_SECRET) is required")
	}

	return &cfg, nil
}
