package params

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Venue holds the exchange endpoints and signing domain parameters.
type Venue struct {
	BaseURL string // REST base, e.g. "https://api.hyperliquid.xyz"
	WSURL   string // WebSocket feed, e.g. "wss://api.hyperliquid.xyz/ws"
	ChainID int64  // EIP-712 domain chain id (1337 for local mock venue)

	// Builder attribution (optional). BuilderCode is the integrator address,
	// fee is in tenths of a basis point as the venue expects.
	BuilderCode        string
	BuilderFeeTenthBps int
}

// Submit controls the submission orchestrator.
type Submit struct {
	MaxConcurrent   int           // global concurrency cap, queued FIFO beyond this
	RetryAttempts   int           // transient-error retries per order
	RetryDelay      time.Duration // backoff base: RetryDelay * 2^attempt
	InterOrderDelay time.Duration // pause between orders of one basket
}

// Risk holds the hard limits the scorer validates against.
type Risk struct {
	MaxGrossExposureUsd  decimal.Decimal
	MaxPerAssetUsd       decimal.Decimal
	MinPerAssetUsd       decimal.Decimal
	MaxLongPositions     int
	MaxShortPositions    int
	MaxTotalPositions    int
	MaxEffectiveLeverage int
}

type Config struct {
	Venue  Venue
	Submit Submit
	Risk   Risk

	// NonceDBPath is the Pebble directory for the durable nonce cache.
	NonceDBPath string
}

func Default() Config {
	return Config{
		Venue: Venue{
			BaseURL: "https://api.hyperliquid.xyz",
			WSURL:   "wss://api.hyperliquid.xyz/ws",
			ChainID: 1337,
		},
		Submit: Submit{
			MaxConcurrent:   5,
			RetryAttempts:   3,
			RetryDelay:      1 * time.Second,
			InterOrderDelay: 100 * time.Millisecond,
		},
		Risk: Risk{
			MaxGrossExposureUsd:  decimal.NewFromInt(100_000),
			MaxPerAssetUsd:       decimal.NewFromInt(25_000),
			MinPerAssetUsd:       decimal.NewFromInt(5),
			MaxLongPositions:     20,
			MaxShortPositions:    20,
			MaxTotalPositions:    30,
			MaxEffectiveLeverage: 20,
		},
		NonceDBPath: "data/nonce",
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	if v := os.Getenv("VENUE_BASE_URL"); v != "" {
		cfg.Venue.BaseURL = v
	}
	if v := os.Getenv("VENUE_WS_URL"); v != "" {
		cfg.Venue.WSURL = v
	}
	if v := os.Getenv("VENUE_CHAIN_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Venue.ChainID = id
		}
	}
	if v := os.Getenv("BUILDER_CODE"); v != "" {
		cfg.Venue.BuilderCode = v
	}
	if v := os.Getenv("BUILDER_FEE_TENTH_BPS"); v != "" {
		if f, err := strconv.Atoi(v); err == nil {
			cfg.Venue.BuilderFeeTenthBps = f
		}
	}

	if v := os.Getenv("SUBMIT_MAX_CONCURRENT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Submit.MaxConcurrent = n
		}
	}
	if v := os.Getenv("SUBMIT_RETRY_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.Submit.RetryAttempts = n
		}
	}
	if v := os.Getenv("SUBMIT_RETRY_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			cfg.Submit.RetryDelay = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("SUBMIT_INTER_ORDER_DELAY_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			cfg.Submit.InterOrderDelay = time.Duration(ms) * time.Millisecond
		}
	}

	if v := os.Getenv("RISK_MAX_GROSS_EXPOSURE_USD"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			cfg.Risk.MaxGrossExposureUsd = d
		}
	}
	if v := os.Getenv("RISK_MAX_PER_ASSET_USD"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			cfg.Risk.MaxPerAssetUsd = d
		}
	}
	if v := os.Getenv("RISK_MIN_PER_ASSET_USD"); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			cfg.Risk.MinPerAssetUsd = d
		}
	}
	if v := os.Getenv("RISK_MAX_TOTAL_POSITIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Risk.MaxTotalPositions = n
		}
	}
	if v := os.Getenv("RISK_MAX_EFFECTIVE_LEVERAGE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Risk.MaxEffectiveLeverage = n
		}
	}

	if v := os.Getenv("NONCE_DB_PATH"); v != "" {
		cfg.NonceDBPath = v
	}

	return cfg
}
