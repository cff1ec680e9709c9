package config

import (
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

type NetgateConfig struct {
	Target   string        `mapstructure:"target"`
	Interval time.Duration `mapstructure:"interval"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type AuthConfig struct {
	PublicKeys []string `mapstructure:"public_keys"`
	AdminKeys  []string `mapstructure:"admin_keys"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `mapstructure:"requests_per_minute"`
	Burst             int `mapstructure:"burst"`
}

type Config struct {
	Addr         string          `mapstructure:"addr"`
	LogDir       string          `mapstructure:"log_dir"`
	DataDir      string          `mapstructure:"data_dir"`
	DatabaseURL  string          `mapstructure:"database_url"`
	ProbeTimeout time.Duration   `mapstructure:"probe_timeout"`
	Netgate      NetgateConfig   `mapstructure:"netgate"`
	Auth         AuthConfig      `mapstructure:"auth"`
	RateLimit    RateLimitConfig `mapstructure:"rate_limit"`
}

// Load reads config.yaml (optional) and the environment, applies defaults,
// and validates the result.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("addr", "127.0.0.1:8080")
	v.SetDefault("log_dir", "logs")
	v.SetDefault("data_dir", "data")
	v.SetDefault("database_url", "")
	v.SetDefault("probe_timeout", 30*time.Second)
	v.SetDefault("netgate.target", "1.1.1.1:53")
	v.SetDefault("netgate.interval", 15*time.Second)
	v.SetDefault("netgate.timeout", 4*time.Second)
	v.SetDefault("rate_limit.requests_per_minute", 120)
	v.SetDefault("rate_limit.burst", 60)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("serverwatch")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		// no file is fine; defaults and env carry the day
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Addr, validation.Required),
		validation.Field(&c.LogDir, validation.Required),
		validation.Field(&c.DataDir, validation.Required),
		validation.Field(&c.ProbeTimeout, validation.Min(time.Second)),
		validation.Field(&c.Netgate),
	)
}

func (n NetgateConfig) Validate() error {
	return validation.ValidateStruct(&n,
		validation.Field(&n.Interval, validation.Min(time.Second)),
		validation.Field(&n.Timeout, validation.Min(100*time.Millisecond)),
	)
}
