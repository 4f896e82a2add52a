package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Auth      AuthConfig      `yaml:"auth"`
	Bonus     BonusConfig     `yaml:"bonus"`
	App       AppConfig       `yaml:"app"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

type AuthConfig struct {
	JWTSecret    string `yaml:"jwt_secret"`
	TokenTTLMins int    `yaml:"token_ttl_minutes"`
}

// BonusConfig holds the referral bonus policy. Amounts and rates are decimal
// strings in yaml and parsed once at load; the parsed values are what the
// services consume.
type BonusConfig struct {
	MinimumAmountStr  string `yaml:"minimum_amount"`
	FirstLineRateStr  string `yaml:"first_line_rate"`
	SecondLineRateStr string `yaml:"second_line_rate"`
	DuplicateWindowS  int    `yaml:"duplicate_window_seconds"`

	MinimumAmount   decimal.Decimal `yaml:"-"`
	FirstLineRate   decimal.Decimal `yaml:"-"`
	SecondLineRate  decimal.Decimal `yaml:"-"`
	DuplicateWindow time.Duration   `yaml:"-"`
}

type AppConfig struct {
	Timezone string `yaml:"timezone"`
}

// Load reads yaml file
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// override secrets from env if present
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if sec := os.Getenv("JWT_SECRET"); sec != "" {
		cfg.Auth.JWTSecret = sec
	}
	if err := cfg.Bonus.parse(); err != nil {
		return nil, fmt.Errorf("bonus config: %w", err)
	}
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "Europe/Kyiv"
	}
	return &cfg, nil
}

func (b *BonusConfig) parse() error {
	var err error
	if b.MinimumAmount, err = decimal.NewFromString(orDefault(b.MinimumAmountStr, "10.00")); err != nil {
		return fmt.Errorf("minimum_amount: %w", err)
	}
	if b.FirstLineRate, err = decimal.NewFromString(orDefault(b.FirstLineRateStr, "0.10")); err != nil {
		return fmt.Errorf("first_line_rate: %w", err)
	}
	if b.SecondLineRate, err = decimal.NewFromString(orDefault(b.SecondLineRateStr, "0.05")); err != nil {
		return fmt.Errorf("second_line_rate: %w", err)
	}
	if b.DuplicateWindowS <= 0 {
		b.DuplicateWindowS = 60
	}
	b.DuplicateWindow = time.Duration(b.DuplicateWindowS) * time.Second
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
