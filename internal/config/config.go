// Package config loads process configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds every environment-tunable knob the engine needs.
type Config struct {
	Debug bool

	DatabaseURL string

	BinanceWSURL  string
	CoinbaseWSURL string

	MarketFeeRate decimal.Decimal
	LimitFeeRate  decimal.Decimal

	DefaultInitialBalance decimal.Decimal
	DefaultLeverage       int

	EngineTickInterval   time.Duration
	EquityRecordInterval time.Duration
	IngesterBackoff      time.Duration

	HTTPAddr string

	TelegramBotToken string
	TelegramChatID   int64
}

// Load reads Config from the environment, falling back to defaults that
// mirror the reference implementation's parameters.
func Load() *Config {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		DatabaseURL: getEnv("DATABASE_URL", "marginsim.db"),

		BinanceWSURL:  getEnv("BINANCE_WS_URL", "wss://stream.binance.com:9443"),
		CoinbaseWSURL: getEnv("COINBASE_WS_URL", "wss://advanced-trade-ws.coinbase.com"),

		MarketFeeRate: getEnvDecimal("MARKET_FEE_RATE", decimal.NewFromFloat(0.00045)),
		LimitFeeRate:  getEnvDecimal("LIMIT_FEE_RATE", decimal.NewFromFloat(0.00018)),

		DefaultInitialBalance: getEnvDecimal("DEFAULT_INITIAL_BALANCE", decimal.NewFromInt(10000)),
		DefaultLeverage:       getEnvInt("DEFAULT_LEVERAGE", 1),

		EngineTickInterval:   getEnvDuration("ENGINE_TICK_INTERVAL", 1*time.Second),
		EquityRecordInterval: getEnvDuration("EQUITY_RECORD_INTERVAL", 60*time.Second),
		IngesterBackoff:      getEnvDuration("INGESTER_BACKOFF", 5*time.Second),

		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			cfg.TelegramChatID = id
		}
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1" || v == "yes"
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return fallback
}
