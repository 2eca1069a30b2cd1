// Package config collects environment-driven configuration into a single
// struct, the way cmd/main.go's getEnv helper did in the teacher repo, plus
// an optional YAML overlay for local/dev bring-up. Env always wins over the
// YAML file so deployments can override a checked-in default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every environment-tunable value the server reads at startup.
type Config struct {
	HTTPAddr  string `yaml:"http_addr"`
	LogLevel  string `yaml:"log_level"`
	LogPretty bool   `yaml:"log_pretty"`

	DB    DBConfig    `yaml:"db"`
	Redis RedisConfig `yaml:"redis"`
	NATS  NATSConfig  `yaml:"nats"`
	Voice VoiceConfig `yaml:"voice"`

	AccessTokenSigningKey string `yaml:"access_token_signing_key"`
	AccessTokenTTL        time.Duration
	RefreshTokenTTL       time.Duration
	BotRefreshTokenTTL    time.Duration
}

type DBConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
}

// VoiceConfig mirrors spec §6's "Environment configuration (voice)" table.
type VoiceConfig struct {
	PortMin                         int    `yaml:"rtc_port_min"`
	PortMax                         int    `yaml:"rtc_port_max"`
	AnnounceIP                      string `yaml:"announce_ip"`
	EnableUDP                       bool   `yaml:"enable_udp"`
	EnableTCP                       bool   `yaml:"enable_tcp"`
	PreferUDP                       bool   `yaml:"prefer_udp"`
	PreferTCP                       bool   `yaml:"prefer_tcp"`
	InitialAvailableOutgoingBitrate uint32 `yaml:"initial_available_outgoing_bitrate"`
}

// Load reads an optional YAML file first, then overlays environment
// variables, matching the teacher's "env is the source of truth" contract
// while giving a complete repo a convenient local config file.
func Load(yamlPath string) (*Config, error) {
	cfg := defaults()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", yamlPath, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("config: read %s: %w", yamlPath, err)
		}
	}

	overlayEnv(cfg)

	if cfg.Voice.PreferUDP == cfg.Voice.PreferTCP {
		return nil, fmt.Errorf("config: PREFER_UDP and PREFER_TCP must differ")
	}
	if cfg.AccessTokenSigningKey == "" {
		return nil, fmt.Errorf("config: ACCESS_TOKEN_SIGNING_KEY is required")
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		HTTPAddr:  ":8080",
		LogLevel:  "info",
		LogPretty: false,
		DB: DBConfig{
			Host:    "localhost",
			Port:    "5432",
			User:    "ember",
			DBName:  "ember",
			SSLMode: "disable",
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: "6379",
		},
		NATS: NATSConfig{
			URL: "nats://localhost:4222",
		},
		Voice: VoiceConfig{
			PortMin:                         10000,
			PortMax:                         11000,
			AnnounceIP:                      "127.0.0.1",
			EnableUDP:                       true,
			EnableTCP:                       true,
			PreferUDP:                       true,
			PreferTCP:                       false,
			InitialAvailableOutgoingBitrate: 600000,
		},
		AccessTokenTTL:     15 * time.Minute,
		RefreshTokenTTL:    30 * 24 * time.Hour,
		BotRefreshTokenTTL: 100 * 365 * 24 * time.Hour,
	}
}

func overlayEnv(cfg *Config) {
	str(&cfg.HTTPAddr, "HTTP_ADDR")
	str(&cfg.LogLevel, "LOG_LEVEL")
	boolean(&cfg.LogPretty, "LOG_PRETTY")

	str(&cfg.DB.Host, "DB_HOST")
	str(&cfg.DB.Port, "DB_PORT")
	str(&cfg.DB.User, "DB_USER")
	str(&cfg.DB.Password, "DB_PASSWORD")
	str(&cfg.DB.DBName, "DB_NAME")
	str(&cfg.DB.SSLMode, "DB_SSL_MODE")

	boolean(&cfg.Redis.Enabled, "REDIS_ENABLED")
	str(&cfg.Redis.Host, "REDIS_HOST")
	str(&cfg.Redis.Port, "REDIS_PORT")
	str(&cfg.Redis.Password, "REDIS_PASSWORD")
	integer(&cfg.Redis.DB, "REDIS_DB")

	boolean(&cfg.NATS.Enabled, "NATS_ENABLED")
	str(&cfg.NATS.URL, "NATS_URL")

	integer(&cfg.Voice.PortMin, "RTC_PORT_MIN")
	integer(&cfg.Voice.PortMax, "RTC_PORT_MAX")
	str(&cfg.Voice.AnnounceIP, "ANNOUNCE_IP")
	boolean(&cfg.Voice.EnableUDP, "ENABLE_UDP")
	boolean(&cfg.Voice.EnableTCP, "ENABLE_TCP")
	boolean(&cfg.Voice.PreferUDP, "PREFER_UDP")
	boolean(&cfg.Voice.PreferTCP, "PREFER_TCP")
	uint32Val(&cfg.Voice.InitialAvailableOutgoingBitrate, "INITIAL_AVAILABLE_OUTGOING_BITRATE")

	str(&cfg.AccessTokenSigningKey, "ACCESS_TOKEN_SIGNING_KEY")
	duration(&cfg.AccessTokenTTL, "ACCESS_TOKEN_TTL")
	duration(&cfg.RefreshTokenTTL, "REFRESH_TOKEN_TTL")
	duration(&cfg.BotRefreshTokenTTL, "BOT_REFRESH_TOKEN_TTL")
}

func str(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func boolean(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = strings.EqualFold(v, "true") || v == "1"
	}
}

func integer(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func uint32Val(dst *uint32, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func duration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
