package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ownafarm/ownafarm-gateway/internal/logger"
)

// Defaults for the Mantle Sepolia deployment of the OwnaFarmNFT contract.
const (
	DefaultBackendURL      = "https://ownafarm-backend-production.up.railway.app"
	DefaultChainRPCURL     = "https://rpc.sepolia.mantle.xyz"
	DefaultChainID         = 5003
	DefaultContractAddress = "0xC51601dde25775bA2740EE14D633FA54e12Ef6C7"
	DefaultExplorerBaseURL = "https://sepolia.mantlescan.xyz"
)

// Config holds gateway configuration loaded from environment variables.
type Config struct {
	Stage    string
	HTTPAddr string

	// Upstream OwnaFarm backend
	BackendURL string

	// Chain settings
	ChainRPCURL     string
	ChainID         int64
	ContractAddress string
	ExplorerBaseURL string
	ReceiptTimeout  time.Duration
	Confirmations   uint64

	// Admin signer key material. The ARN variable is preferred; the raw
	// hex key is the local-dev fallback.
	SignerKeySecretARN string
	SignerKeyHex       string

	// Wallet provider application id, used by the hosted frontend. The
	// gateway only reports on it; its absence must not abort startup.
	WalletAppID string

	// Decision journal persistence. Empty means the in-memory journal.
	DatabaseURL string

	// Gateway API keys (bcrypt hashes, comma separated)
	APIKeyHashes string

	// Rate limiting
	RateLimitPerSecond int
	RateLimitBurst     int

	// CORS
	CORSAllowedOrigins string

	// Operator alerting (optional)
	ResendAPIKey   string
	AlertFromEmail string
	AlertToEmail   string
}

// Load reads environment variables into Config with sane defaults for
// local development.
func Load() (*Config, error) {
	cfg := &Config{
		Stage:              getEnv("STAGE", "dev"),
		HTTPAddr:           ":" + getEnv("GATEWAY_PORT", "8080"),
		BackendURL:         getEnv("OWNA_FARM_API_URL", DefaultBackendURL),
		ChainRPCURL:        getEnv("CHAIN_RPC_URL", DefaultChainRPCURL),
		ContractAddress:    getEnv("CONTRACT_ADDRESS", DefaultContractAddress),
		ExplorerBaseURL:    getEnv("EXPLORER_BASE_URL", DefaultExplorerBaseURL),
		SignerKeySecretARN: os.Getenv("ADMIN_SIGNER_KEY_SECRET_ARN"),
		SignerKeyHex:       os.Getenv("ADMIN_SIGNER_KEY"),
		WalletAppID:        os.Getenv("WALLET_APP_ID"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		APIKeyHashes:       os.Getenv("GATEWAY_API_KEY_HASHES"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		ResendAPIKey:       os.Getenv("RESEND_API_KEY"),
		AlertFromEmail:     getEnv("ALERT_FROM_EMAIL", "ops@ownafarm.app"),
		AlertToEmail:       os.Getenv("ALERT_TO_EMAIL"),
	}

	chainID, err := intEnv("CHAIN_ID", DefaultChainID)
	if err != nil {
		return nil, err
	}
	cfg.ChainID = int64(chainID)

	receiptTimeoutSec, err := intEnv("RECEIPT_TIMEOUT_SEC", 120)
	if err != nil {
		return nil, err
	}
	cfg.ReceiptTimeout = time.Duration(receiptTimeoutSec) * time.Second

	confirmations, err := intEnv("CONFIRMATIONS", 1)
	if err != nil {
		return nil, err
	}
	cfg.Confirmations = uint64(confirmations)

	cfg.RateLimitPerSecond, err = intEnv("RATE_LIMIT_PER_SECOND", 10)
	if err != nil {
		return nil, err
	}
	cfg.RateLimitBurst, err = intEnv("RATE_LIMIT_BURST", 20)
	if err != nil {
		return nil, err
	}

	// A missing wallet application id breaks the hosted wallet widget but
	// not the gateway itself.
	if cfg.WalletAppID == "" {
		logger.Error("WALLET_APP_ID is not set; wallet provider integration is disabled")
	}

	return cfg, nil
}

// Validate checks the settings without which the gateway cannot run.
func (c *Config) Validate() error {
	if c.BackendURL == "" {
		return fmt.Errorf("OWNA_FARM_API_URL is required")
	}
	if c.ChainRPCURL == "" {
		return fmt.Errorf("CHAIN_RPC_URL is required")
	}
	if c.ContractAddress == "" {
		return fmt.Errorf("CONTRACT_ADDRESS is required")
	}
	if c.SignerKeySecretARN == "" && c.SignerKeyHex == "" {
		return fmt.Errorf("either ADMIN_SIGNER_KEY_SECRET_ARN or ADMIN_SIGNER_KEY is required")
	}
	return nil
}

// APIKeyHashList splits the configured bcrypt hashes. Empty config yields an
// empty list, which disables API key auth.
func (c *Config) APIKeyHashList() []string {
	if c.APIKeyHashes == "" {
		return nil
	}
	parts := strings.Split(c.APIKeyHashes, ",")
	hashes := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			hashes = append(hashes, trimmed)
		}
	}
	return hashes
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
