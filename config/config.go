package config

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"bridgeledger/native/common"
	"bridgeledger/native/pause"
)

// Config captures the runtime configuration for ledgerd.
type Config struct {
	ListenAddress string      `toml:"ListenAddress"`
	DataDir       string      `toml:"DataDir"`
	Environment   string      `toml:"Environment"`
	Token         TokenConfig `toml:"Token"`
	Pause         PauseConfig `toml:"Pause"`
	RPC           RPCConfig   `toml:"RPC"`
	Auth          AuthConfig  `toml:"Auth"`
}

// TokenConfig describes the token ledger parameters.
type TokenConfig struct {
	Name          string `toml:"Name"`
	Symbol        string `toml:"Symbol"`
	LedgerAddress string `toml:"LedgerAddress"`
	OwnerAddress  string `toml:"OwnerAddress"`
	MaxSupplyWei  string `toml:"MaxSupplyWei"`
}

// PauseConfig tunes the guardian pause window.
type PauseConfig struct {
	Duration string `toml:"Duration"`
}

// RPCConfig controls the HTTP API throttling.
type RPCConfig struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// AuthConfig maps bearer tokens to actor addresses. Every mutating API call
// resolves its caller identity through this map.
type AuthConfig struct {
	Tokens map[string]string `toml:"Tokens"`
}

// Load reads and validates the configuration at the given path.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ListenAddress: ":8645",
		DataDir:       "./ledger-data",
		Environment:   "dev",
		Token: TokenConfig{
			Name:   "Bridge Ledger Token",
			Symbol: "BLT",
		},
		Pause: PauseConfig{Duration: "240h"},
		RPC:   RPCConfig{RequestsPerMinute: 600, Burst: 30},
	}
}

// Validate checks the configuration for structural problems before any
// component is constructed from it.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		return fmt.Errorf("config: ListenAddress required")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	if _, err := c.Owner(); err != nil {
		return err
	}
	if _, err := c.LedgerAddress(); err != nil {
		return err
	}
	if _, err := c.MaxSupply(); err != nil {
		return err
	}
	if _, err := c.PauseDuration(); err != nil {
		return err
	}
	for token, addr := range c.Auth.Tokens {
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("config: empty auth token")
		}
		if _, err := ParseAddress(addr); err != nil {
			return fmt.Errorf("config: auth token actor: %w", err)
		}
	}
	return nil
}

// Owner returns the configured owner address.
func (c *Config) Owner() ([20]byte, error) {
	addr, err := ParseAddress(c.Token.OwnerAddress)
	if err != nil {
		return [20]byte{}, fmt.Errorf("config: OwnerAddress: %w", err)
	}
	return addr, nil
}

// LedgerAddress returns the ledger's own identity. Transfers addressed to it
// are rejected by the token module.
func (c *Config) LedgerAddress() ([20]byte, error) {
	addr, err := ParseAddress(c.Token.LedgerAddress)
	if err != nil {
		return [20]byte{}, fmt.Errorf("config: LedgerAddress: %w", err)
	}
	return addr, nil
}

// MaxSupply parses the supply ceiling. An empty value leaves supply unbounded.
func (c *Config) MaxSupply() (*big.Int, error) {
	trimmed := strings.TrimSpace(c.Token.MaxSupplyWei)
	if trimmed == "" {
		return nil, nil
	}
	amount, err := common.ParseAmount(trimmed)
	if err != nil {
		return nil, fmt.Errorf("config: MaxSupplyWei: %w", err)
	}
	if amount.Sign() == 0 {
		return nil, fmt.Errorf("config: MaxSupplyWei must be positive when set")
	}
	return amount, nil
}

// PauseDuration parses the configured pause window.
func (c *Config) PauseDuration() (time.Duration, error) {
	trimmed := strings.TrimSpace(c.Pause.Duration)
	if trimmed == "" {
		return pause.DefaultPauseDuration, nil
	}
	parsed, err := time.ParseDuration(trimmed)
	if err != nil {
		return 0, fmt.Errorf("config: Pause.Duration: %w", err)
	}
	if parsed <= 0 || parsed > pause.MaxPauseDuration {
		return 0, fmt.Errorf("config: Pause.Duration out of range: %s", parsed)
	}
	return parsed, nil
}

// Actors returns the bearer token to actor address mapping.
func (c *Config) Actors() (map[string][20]byte, error) {
	actors := make(map[string][20]byte, len(c.Auth.Tokens))
	for token, raw := range c.Auth.Tokens {
		addr, err := ParseAddress(raw)
		if err != nil {
			return nil, err
		}
		actors[token] = addr
	}
	return actors, nil
}

// ParseAddress decodes a 20-byte hex address with optional 0x prefix.
func ParseAddress(raw string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "0x")
	if trimmed == "" {
		return addr, fmt.Errorf("address required")
	}
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q: %w", raw, err)
	}
	if len(decoded) != 20 {
		return addr, fmt.Errorf("invalid address %q: expected 20 bytes, got %d", raw, len(decoded))
	}
	copy(addr[:], decoded)
	return addr, nil
}
