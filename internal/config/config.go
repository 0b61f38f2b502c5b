// Package config loads the bridge engine's typed configuration from the
// process environment: an optional .env file loaded with godotenv, decoded
// into a typed struct with envdecode.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the full set of tunables the bridge engine reads at startup.
type Config struct {
	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,default=8000"`

	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	DatabaseURL       string `env:"DATABASE_URL,required"`
	DBMaxOpenConns    int    `env:"DB_MAX_CONNECTIONS,default=20"`
	DBMaxIdleConns    int    `env:"DB_MAX_IDLE_CONNECTIONS,default=5"`
	DBConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=30m"`

	RedisURL string `env:"REDIS_URL,default=redis://127.0.0.1:6379"`

	SecretKey      string        `env:"SECRET_KEY,required"`
	JWTExpiry      time.Duration `env:"JWT_EXPIRY,default=24h"`
	TelegramBotTok string        `env:"TELEGRAM_BOT_TOKEN,default="`

	MoneroRPCURL   string `env:"MONERO_RPC_URL,default=http://127.0.0.1:18082/json_rpc"`
	BitcoinRPCURL  string `env:"BITCOIN_RPC_URL,default=http://127.0.0.1:8332"`
	EthRPCURL      string `env:"ETH_RPC_URL,default=https://eth.llamarpc.com"`
	ArbitrumRPCURL string `env:"ARBITRUM_RPC_URL,default=https://arb1.arbitrum.io/rpc"`
	BaseRPCURL     string `env:"BASE_RPC_URL,default=https://mainnet.base.org"`
	SolanaRPCURL   string `env:"SOLANA_RPC_URL,default=https://api.mainnet-beta.solana.com"`
	TonAPIURL      string `env:"TON_API_URL,default=https://toncenter.com/api/v2"`

	BridgeFeePercent   float64 `env:"BRIDGE_FEE_PERCENT,default=0.3"`
	OrderExpiryMinutes int     `env:"ORDER_EXPIRY_MINUTES,default=30"`
	MPCThreshold       int     `env:"MPC_THRESHOLD,default=2"`
	MPCTotalSigners    int     `env:"MPC_TOTAL_SIGNERS,default=3"`

	RateLimitRatesPerMin  int `env:"RATE_LIMIT_RATES,default=60"`
	RateLimitOrdersPerMin int `env:"RATE_LIMIT_ORDERS,default=10"`
	RateLimitWSPerIP      int `env:"RATE_LIMIT_WS,default=5"`

	CORSOrigins string `env:"CORS_ORIGINS,default=http://localhost:3000"`

	SigningSessionTimeout time.Duration `env:"SIGNING_SESSION_TIMEOUT,default=10m"`
}

// Load reads a .env file if present, ignoring a missing file, then
// decodes Config from the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CORSOriginList splits CORSOrigins on commas, trimming whitespace.
func (c *Config) CORSOriginList() []string {
	parts := strings.Split(c.CORSOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
