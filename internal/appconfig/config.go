// Package appconfig reads the core's environment inputs (ANVIL_RPC_URL,
// FLASHBOTS_RELAY_URL, PRIVATE_KEY) plus the Autosubmitter/Simulator
// tuning knobs, and turns them into typed values the rest of the module
// consumes. Optional .env loading goes through joho/godotenv, matching
// how other services in this codebase keep local dev config out of the
// shell profile.
//
// Grounded on app.AppConfig (internal/app/config.go) for the "one
// struct, one constructor with sane defaults" shape; this package carries
// no persistence layer since the core has no configuration of its own to
// persist.
package appconfig

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/yourusername/mevcore/internal/autosubmit"
)

const defaultAnvilRPCURL = "http://127.0.0.1:8545"

// Config is the fully resolved runtime configuration for cmd/mevcore.
type Config struct {
	AnvilRPCURL       string
	FlashbotsRelayURL string // empty disables relay submission
	PrivateKeyHex     string // hex without 0x prefix; empty means no LocalSigner

	Autosubmit       autosubmit.Config
	SweepNonceRange  int
	SweepConcurrency int
}

// Load reads .env (if present, ignored if absent) then resolves Config
// from the process environment. Numeric tuning knobs fall back to sane
// defaults when unset or unparseable; an unparseable kill-switch threshold
// is returned as an error instead.
func Load() (Config, error) {
	_ = godotenv.Load() // optional local override; absence is not an error

	cfg := Config{
		AnvilRPCURL:       envOr("ANVIL_RPC_URL", defaultAnvilRPCURL),
		FlashbotsRelayURL: os.Getenv("FLASHBOTS_RELAY_URL"),
		PrivateKeyHex:     os.Getenv("PRIVATE_KEY"),

		SweepNonceRange:  envInt("SWEEP_NONCE_RANGE", 1),
		SweepConcurrency: envInt("SWEEP_CONCURRENCY", 4),

		Autosubmit: autosubmit.Config{
			MaxRetries:   envInt("AUTOSUBMIT_MAX_RETRIES", 3),
			PollInterval: envSeconds("AUTOSUBMIT_POLL_INTERVAL_SECS", 2),
			MaxWait:      envSeconds("AUTOSUBMIT_MAX_WAIT_SECS", 30),
			BumpFactor:   envFloat("AUTOSUBMIT_BUMP_FACTOR", 1.2),
			MaxBumps:     envInt("AUTOSUBMIT_MAX_BUMPS", 3),
		},
	}

	if v := os.Getenv("KILL_SWITCH_MAX_GAS_WEI"); v != "" {
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return Config{}, fmt.Errorf("invalid KILL_SWITCH_MAX_GAS_WEI: %q", v)
		}
		cfg.Autosubmit.KillSwitchMaxGasWei = n
	}
	if v := os.Getenv("KILL_SWITCH_MAX_LOSS_WEI"); v != "" {
		n, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return Config{}, fmt.Errorf("invalid KILL_SWITCH_MAX_LOSS_WEI: %q", v)
		}
		cfg.Autosubmit.KillSwitchMaxLossWei = n
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envSeconds(key string, fallbackSecs int) time.Duration {
	return time.Duration(envInt(key, fallbackSecs)) * time.Second
}
