package config

import (
	"os"
	"strings"
	"time"

	"gas-alert-bot/internal/types"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// Config is everything the bot reads at startup. It is loaded once.
type Config struct {
	TelegramBotToken string
	Debug            bool
	LogLevel         string
	Lang             string
	LocalesDir       string
	MetricsPort      int
	DBPath           string

	EtherscanAPIKey   string
	EtherscanEndpoint string
	OracleTimeout     time.Duration
	OracleRateLimit   float64

	PollInterval        time.Duration
	MinPollInterval     time.Duration
	DeliveryTimeout     time.Duration
	PriceTimeout        time.Duration
	MaxConcurrentChains int
	HistoryRetention    time.Duration
	MaxAlertsPerChat    int

	APIProKey string
}

var keys = []string{
	"telegram_bot_token",
	"debug",
	"log_level",
	"lang",
	"locales_dir",
	"metrics_port",
	"db_path",
	"etherscan_api_key",
	"etherscan_endpoint",
	"oracle_timeout",
	"oracle_rate_limit",
	"poll_interval",
	"min_poll_interval",
	"delivery_timeout",
	"price_timeout",
	"max_concurrent_chains",
	"history_retention",
	"max_alerts_per_chat",
	"api_pro_key",
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	for _, key := range keys {
		v.BindEnv(key, strings.ToUpper(key))
	}

	v.SetDefault("debug", false)
	v.SetDefault("lang", "en")
	v.SetDefault("locales_dir", "locales")
	v.SetDefault("metrics_port", 9090)
	v.SetDefault("db_path", "/app/data/alerts.db")
	v.SetDefault("etherscan_endpoint", "https://api.etherscan.io/v2/api")
	v.SetDefault("oracle_timeout", 5*time.Second)
	v.SetDefault("oracle_rate_limit", 4)
	v.SetDefault("poll_interval", 2*time.Minute)
	v.SetDefault("min_poll_interval", 30*time.Second)
	v.SetDefault("delivery_timeout", 10*time.Second)
	v.SetDefault("price_timeout", 3*time.Second)
	v.SetDefault("max_concurrent_chains", 3)
	v.SetDefault("history_retention", 168*time.Hour)
	v.SetDefault("max_alerts_per_chat", 10)

	return v
}

// Load reads the environment, merged over the YAML file named by CONFIG_FILE
// when that variable is set, and validates the result.
func Load() (*Config, error) {
	v := newViper()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "could not read config file %s", path)
		}
	}

	cfg := &Config{
		TelegramBotToken:    v.GetString("telegram_bot_token"),
		Debug:               v.GetBool("debug"),
		LogLevel:            v.GetString("log_level"),
		Lang:                v.GetString("lang"),
		LocalesDir:          v.GetString("locales_dir"),
		MetricsPort:         v.GetInt("metrics_port"),
		DBPath:              v.GetString("db_path"),
		EtherscanAPIKey:     v.GetString("etherscan_api_key"),
		EtherscanEndpoint:   v.GetString("etherscan_endpoint"),
		OracleTimeout:       v.GetDuration("oracle_timeout"),
		OracleRateLimit:     v.GetFloat64("oracle_rate_limit"),
		PollInterval:        v.GetDuration("poll_interval"),
		MinPollInterval:     v.GetDuration("min_poll_interval"),
		DeliveryTimeout:     v.GetDuration("delivery_timeout"),
		PriceTimeout:        v.GetDuration("price_timeout"),
		MaxConcurrentChains: v.GetInt("max_concurrent_chains"),
		HistoryRetention:    v.GetDuration("history_retention"),
		MaxAlertsPerChat:    v.GetInt("max_alerts_per_chat"),
		APIProKey:           v.GetString("api_pro_key"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate returns a *types.ConfigError naming the first bad key
func (c *Config) Validate() error {
	switch {
	case c.TelegramBotToken == "":
		return &types.ConfigError{Key: "telegram_bot_token", Reason: "is required"}
	case c.EtherscanAPIKey == "":
		return &types.ConfigError{Key: "etherscan_api_key", Reason: "is required"}
	case c.MinPollInterval <= 0:
		return &types.ConfigError{Key: "min_poll_interval", Reason: "must be positive"}
	case c.PollInterval < c.MinPollInterval:
		return &types.ConfigError{
			Key:    "poll_interval",
			Reason: "must be at least " + c.MinPollInterval.String() + ", got " + c.PollInterval.String(),
		}
	case c.OracleTimeout <= 0:
		return &types.ConfigError{Key: "oracle_timeout", Reason: "must be positive"}
	case c.DeliveryTimeout <= 0:
		return &types.ConfigError{Key: "delivery_timeout", Reason: "must be positive"}
	case c.PriceTimeout <= 0:
		return &types.ConfigError{Key: "price_timeout", Reason: "must be positive"}
	case c.OracleRateLimit <= 0:
		return &types.ConfigError{Key: "oracle_rate_limit", Reason: "must be positive"}
	case c.MaxConcurrentChains <= 0:
		return &types.ConfigError{Key: "max_concurrent_chains", Reason: "must be positive"}
	case c.MaxAlertsPerChat <= 0:
		return &types.ConfigError{Key: "max_alerts_per_chat", Reason: "must be positive"}
	case c.HistoryRetention < 0:
		return &types.ConfigError{Key: "history_retention", Reason: "must not be negative"}
	}
	return nil
}
