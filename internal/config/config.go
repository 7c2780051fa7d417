package config

// #region imports
import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// #endregion imports

// #region types

// Policy holds the limits the policy engine enforces. Fixed at startup;
// nothing mutates it after Load returns.
type Policy struct {
	ConfidenceThreshold float64
	MaxSOLPerTx         float64
	DailySpendCapSOL    float64
	MinBalanceFloorSOL  float64
	MaxLOCDelta         int
	AllowedDomains      []string
	WritableRoots       []string
}

// LLM holds reasoning-collaborator settings (OpenAI-compatible endpoint).
type LLM struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// Solana holds chain connectivity and mainnet safety settings.
type Solana struct {
	PrivateKey string // base58-encoded 64-byte keypair
	RPCURL     string
	JupiterKey string
	Mainnet    bool
}

// Git holds publish-collaborator settings. The token is injected only at
// push time and never written to durable state.
type Git struct {
	Token  string
	Repo   string // owner/repo
	Branch string
}

// Memory bounds the histories kept in the ledger document.
type Memory struct {
	Path            string
	AuditDBPath     string
	MaxReflections  int
	MaxTransactions int
	MaxDriftRecords int
}

// AppConfig is the full configuration passed by reference into the
// orchestrator at construction.
type AppConfig struct {
	Policy Policy
	LLM    LLM
	Solana Solana
	Git    Git
	Memory Memory

	// FetchTimeout bounds every perception and execution collaborator call.
	FetchTimeout time.Duration
	DryRun       bool
}

// #endregion types

// #region defaults

// Default returns a config with every tunable at its shipped value and
// credentials empty. Tests build on this directly.
func Default() AppConfig {
	return AppConfig{
		Policy: Policy{
			ConfidenceThreshold: 0.6,
			MaxSOLPerTx:         0.1,
			DailySpendCapSOL:    0.5,
			MinBalanceFloorSOL:  0.1,
			MaxLOCDelta:         200,
			AllowedDomains:      nil,
			WritableRoots:       []string{"tools", "experiments"},
		},
		LLM: LLM{
			Model:   "deepseek/deepseek-v3.2",
			BaseURL: "https://openrouter.ai/api/v1",
			Timeout: 60 * time.Second,
		},
		Solana: Solana{
			RPCURL: "https://api.devnet.solana.com",
		},
		Git: Git{
			Branch: "main",
		},
		Memory: Memory{
			Path:            "agent_memory.json",
			AuditDBPath:     "agent_audit.db",
			MaxReflections:  50,
			MaxTransactions: 100,
			MaxDriftRecords: 50,
		},
		FetchTimeout: 30 * time.Second,
	}
}

// #endregion defaults

// #region load

// Load builds AppConfig from environment variables and validates it.
// Missing required keys or out-of-range limits return an error; the caller
// is expected to exit non-zero before any action is attempted.
func Load() (AppConfig, error) {
	cfg := Default()

	var err error
	if cfg.LLM.APIKey, err = require("OPENROUTER_API_KEY"); err != nil {
		return AppConfig{}, err
	}
	if cfg.Solana.PrivateKey, err = require("SOLANA_PRIVATE_KEY"); err != nil {
		return AppConfig{}, err
	}
	if cfg.Git.Token, err = require("GITHUB_TOKEN"); err != nil {
		return AppConfig{}, err
	}
	if cfg.Git.Repo, err = require("GITHUB_REPO"); err != nil {
		return AppConfig{}, err
	}

	cfg.LLM.Model = envOr("OPENROUTER_MODEL", cfg.LLM.Model)
	cfg.Solana.RPCURL = envOr("SOLANA_RPC_URL", cfg.Solana.RPCURL)
	cfg.Solana.JupiterKey = envOr("JUPITER_API_KEY", "")
	cfg.Solana.Mainnet = strings.Contains(cfg.Solana.RPCURL, "mainnet")
	cfg.Git.Branch = envOr("GITHUB_BRANCH", cfg.Git.Branch)
	cfg.Memory.Path = envOr("AGENT_MEMORY_PATH", cfg.Memory.Path)
	cfg.Memory.AuditDBPath = envOr("AGENT_AUDIT_DB", cfg.Memory.AuditDBPath)

	if err := loadFloat("CONFIDENCE_THRESHOLD", &cfg.Policy.ConfidenceThreshold); err != nil {
		return AppConfig{}, err
	}
	if err := loadFloat("MAX_SOL_PER_TX", &cfg.Policy.MaxSOLPerTx); err != nil {
		return AppConfig{}, err
	}
	if err := loadFloat("DAILY_SPEND_CAP_SOL", &cfg.Policy.DailySpendCapSOL); err != nil {
		return AppConfig{}, err
	}
	if err := loadFloat("SOLANA_MAINNET_MIN_BALANCE", &cfg.Policy.MinBalanceFloorSOL); err != nil {
		return AppConfig{}, err
	}
	if err := loadInt("MAX_LOC_DELTA", &cfg.Policy.MaxLOCDelta); err != nil {
		return AppConfig{}, err
	}
	if v := getenv("ALLOWED_SCRAPE_DOMAINS"); v != "" {
		cfg.Policy.AllowedDomains = splitList(v)
	}
	if v := getenv("WRITABLE_PATH_ROOTS"); v != "" {
		cfg.Policy.WritableRoots = splitList(v)
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

// Validate checks limit sanity. Called by Load; exported so tests of
// hand-built configs can reuse it.
func (c AppConfig) Validate() error {
	if c.Policy.ConfidenceThreshold < 0 || c.Policy.ConfidenceThreshold > 1 {
		return fmt.Errorf("CONFIDENCE_THRESHOLD %v outside [0,1]", c.Policy.ConfidenceThreshold)
	}
	if c.Policy.MaxSOLPerTx <= 0 {
		return fmt.Errorf("MAX_SOL_PER_TX must be positive, got %v", c.Policy.MaxSOLPerTx)
	}
	if c.Policy.DailySpendCapSOL < c.Policy.MaxSOLPerTx {
		return fmt.Errorf("DAILY_SPEND_CAP_SOL %v below MAX_SOL_PER_TX %v",
			c.Policy.DailySpendCapSOL, c.Policy.MaxSOLPerTx)
	}
	if c.Policy.MaxLOCDelta <= 0 {
		return fmt.Errorf("MAX_LOC_DELTA must be positive, got %d", c.Policy.MaxLOCDelta)
	}
	if len(c.Policy.WritableRoots) == 0 {
		return fmt.Errorf("WRITABLE_PATH_ROOTS must name at least one subtree")
	}
	return nil
}

// #endregion load

// #region helpers

// getenv reads an env var and strips inline ' #' comments, so
// "0.6  # conservative" parses as "0.6".
func getenv(key string) string {
	raw := os.Getenv(key)
	if i := strings.Index(raw, " #"); i >= 0 {
		raw = raw[:i]
	}
	return strings.TrimSpace(raw)
}

func envOr(key, fallback string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return fallback
}

func require(key string) (string, error) {
	v := getenv(key)
	if v == "" {
		return "", fmt.Errorf("required environment variable %s is not set", key)
	}
	return v, nil
}

func loadFloat(key string, dst *float64) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = f
	return nil
}

func loadInt(key string, dst *int) error {
	v := getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("parse %s: %w", key, err)
	}
	*dst = n
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// #endregion helpers
