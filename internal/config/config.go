package config

import (
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Binance  Binance  `mapstructure:"binance"`
	LLM      LLM      `mapstructure:"llm"`
	Trading  Trading  `mapstructure:"trading"`
	Scalping Scalping `mapstructure:"scalping"`
	Logger   Logger   `mapstructure:"logger"`
	Server   Server   `mapstructure:"server"`
	Database Database `mapstructure:"database"`
}

// Binance holds the configuration for the Binance market data API.
// Only public market data endpoints are used, so no API keys are required.
type Binance struct {
	Testnet        bool    `mapstructure:"testnet"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// LLM holds the configuration for the text-generation service.
// The advisor talks to any OpenAI-compatible chat endpoint; when the API
// key is empty the analyst roles run in disabled mode and return an inline
// notice instead of an analysis.
type LLM struct {
	BaseURL   string `mapstructure:"base_url"`
	ApiKey    string `mapstructure:"api_key"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
}

// Server holds the configuration for the HTTP API server.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the wallet snapshot store.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Trading holds the configuration for the paper-trading engine.
type Trading struct {
	InitialBalance   float64  `mapstructure:"initial_balance"`
	Watchlist        []string `mapstructure:"watchlist"`
	FeeRate          float64  `mapstructure:"fee_rate"`
	BuyFraction      float64  `mapstructure:"buy_fraction"`
	MinOrderUSD      float64  `mapstructure:"min_order_usd"`
	MaxEntryDrift    float64  `mapstructure:"max_entry_drift"`
	AutoBuyBTC       bool     `mapstructure:"auto_buy_btc"`
	AnalysisInterval int      `mapstructure:"analysis_interval"`
	KlineInterval    string   `mapstructure:"kline_interval"`
	KlineLimit       int      `mapstructure:"kline_limit"`
}

// Scalping holds the thresholds for the scalping position manager.
type Scalping struct {
	TakeProfitPct float64 `mapstructure:"take_profit_pct"`
	StopLossPct   float64 `mapstructure:"stop_loss_pct"`
	ScanInterval  int     `mapstructure:"scan_interval"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("binance.rate_limit", 20)      // requests per second
	viper.SetDefault("binance.rate_limit_burst", 5) // burst size

	viper.SetDefault("llm.base_url", "https://api.deepseek.com/v1")
	viper.SetDefault("llm.model", "deepseek-chat")
	viper.SetDefault("llm.max_tokens", 2048)

	viper.SetDefault("trading.initial_balance", 100.0)
	viper.SetDefault("trading.watchlist", []string{
		"BTCUSDT", "ETHUSDT", "BNBUSDT", "SOLUSDT", "ADAUSDT",
		"XRPUSDT", "DOGEUSDT", "LINKUSDT", "AVAXUSDT", "DOTUSDT",
	})
	viper.SetDefault("trading.fee_rate", 0.001) // 0.1% maker/taker
	viper.SetDefault("trading.buy_fraction", 0.2)
	viper.SetDefault("trading.min_order_usd", 5.0)
	viper.SetDefault("trading.max_entry_drift", 0.01) // 1%
	viper.SetDefault("trading.auto_buy_btc", true)
	viper.SetDefault("trading.analysis_interval", 300) // seconds
	viper.SetDefault("trading.kline_interval", "1h")
	viper.SetDefault("trading.kline_limit", 100)

	viper.SetDefault("scalping.take_profit_pct", 0.0025) // 0.25%
	viper.SetDefault("scalping.stop_loss_pct", 0.0015)   // 0.15%
	viper.SetDefault("scalping.scan_interval", 30)       // seconds

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("database.dsn", "advisor.db")
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "console")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
