// Package config loads the lottery node configuration from a YAML file, an
// optional .env file and LOTTO_* environment variables, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"os"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/AlstonThomson/fhe-secret-lottery-upload/internal/models"
)

// weiPerEther scales decimal ether amounts to wei.
var weiPerEther = decimal.New(1, 18)

// Config is the node configuration.
type Config struct {
	Listen    string            `yaml:"listen"`
	Contract  string            `yaml:"contract"` // custody account of the lottery program
	Owner     string            `yaml:"owner"`
	Verbose   bool              `yaml:"verbose"`
	LogFile   string            `yaml:"log_file"`
	Store     StoreConfig       `yaml:"store"`
	Lottery   LotteryConfig     `yaml:"lottery"`
	Keeper    KeeperConfig      `yaml:"keeper"`
	RateLimit RateLimitConfig   `yaml:"rate_limit"`
	Genesis   map[string]string `yaml:"genesis"` // address -> ether, credited on first start
}

// StoreConfig selects the ledger storage backend.
type StoreConfig struct {
	Driver string `yaml:"driver"` // "memory" or "bolt"
	Path   string `yaml:"path"`
}

// LotteryConfig holds deployment parameters. Amounts are decimal ether.
type LotteryConfig struct {
	MinBet      string `yaml:"min_bet"`
	MaxBet      string `yaml:"max_bet"`
	PlatformFee uint64 `yaml:"platform_fee"`
	Treasury    string `yaml:"treasury"`
	PayoutMode  string `yaml:"payout_mode"`
}

// KeeperConfig schedules permissionless draws.
type KeeperConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
	Identity string `yaml:"identity"`
}

// RateLimitConfig bounds requests per caller on the HTTP API.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// Default returns the development configuration.
func Default() *Config {
	return &Config{
		Listen:   ":8080",
		Contract: "0x0000000000000000000000000000000000005ec7",
		Owner:    "0x00000000000000000000000000000000000000a1",
		Verbose:  true,
		Store: StoreConfig{
			Driver: "memory",
			Path:   "secret-lotto.db",
		},
		Lottery: LotteryConfig{
			MinBet:      "0.001",
			MaxBet:      "1",
			PlatformFee: 5,
			PayoutMode:  string(models.PayoutPush),
		},
		Keeper: KeeperConfig{
			Schedule: "0 0 * * 3,6",
			Identity: "0x00000000000000000000000000000000000000a1",
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
	}
}

// Load reads path (if non-empty) over the defaults, then envFile (if it
// exists), then the process environment, and validates the result.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env (%s): %w", envFile, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"LOTTO_LISTEN":          &c.Listen,
		"LOTTO_CONTRACT":        &c.Contract,
		"LOTTO_OWNER":           &c.Owner,
		"LOTTO_LOG_FILE":        &c.LogFile,
		"LOTTO_STORE_DRIVER":    &c.Store.Driver,
		"LOTTO_STORE_PATH":      &c.Store.Path,
		"LOTTO_MIN_BET":         &c.Lottery.MinBet,
		"LOTTO_MAX_BET":         &c.Lottery.MaxBet,
		"LOTTO_TREASURY":        &c.Lottery.Treasury,
		"LOTTO_PAYOUT_MODE":     &c.Lottery.PayoutMode,
		"LOTTO_KEEPER_SCHEDULE": &c.Keeper.Schedule,
		"LOTTO_KEEPER_IDENTITY": &c.Keeper.Identity,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("LOTTO_PLATFORM_FEE"); ok {
		fee, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("LOTTO_PLATFORM_FEE: %w", err)
		}
		c.Lottery.PlatformFee = fee
	}
	bools := map[string]*bool{
		"LOTTO_VERBOSE":        &c.Verbose,
		"LOTTO_KEEPER_ENABLED": &c.Keeper.Enabled,
	}
	for key, dst := range bools {
		if v, ok := os.LookupEnv(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
	}
	return nil
}

// Validate checks addresses, amounts and ranges.
func (c *Config) Validate() error {
	addrs := map[string]string{
		"contract": c.Contract,
		"owner":    c.Owner,
	}
	if c.Lottery.Treasury != "" {
		addrs["lottery.treasury"] = c.Lottery.Treasury
	}
	if c.Keeper.Enabled {
		addrs["keeper.identity"] = c.Keeper.Identity
	}
	for name, a := range addrs {
		if !common.IsHexAddress(a) {
			return fmt.Errorf("%s: invalid address %q", name, a)
		}
	}
	for a, amount := range c.Genesis {
		if !common.IsHexAddress(a) {
			return fmt.Errorf("genesis: invalid address %q", a)
		}
		if _, err := ParseEther(amount); err != nil {
			return fmt.Errorf("genesis %s: %w", a, err)
		}
	}

	switch c.Store.Driver {
	case "memory":
	case "bolt":
		if c.Store.Path == "" {
			return errors.New("store.path is required for the bolt driver")
		}
	default:
		return fmt.Errorf("store.driver: unknown driver %q", c.Store.Driver)
	}

	minBet, err := ParseEther(c.Lottery.MinBet)
	if err != nil {
		return fmt.Errorf("lottery.min_bet: %w", err)
	}
	maxBet, err := ParseEther(c.Lottery.MaxBet)
	if err != nil {
		return fmt.Errorf("lottery.max_bet: %w", err)
	}
	if minBet.Cmp(maxBet) > 0 {
		return fmt.Errorf("lottery: min_bet %s exceeds max_bet %s", c.Lottery.MinBet, c.Lottery.MaxBet)
	}
	if c.Lottery.PlatformFee > 100 {
		return fmt.Errorf("lottery.platform_fee: %d exceeds 100", c.Lottery.PlatformFee)
	}
	switch models.PayoutMode(c.Lottery.PayoutMode) {
	case models.PayoutPush, models.PayoutPull:
	default:
		return fmt.Errorf("lottery.payout_mode: unknown mode %q", c.Lottery.PayoutMode)
	}

	if c.Keeper.Enabled && c.Keeper.Schedule == "" {
		return errors.New("keeper.schedule is required when the keeper is enabled")
	}
	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return errors.New("rate_limit: values must be non-negative")
	}
	return nil
}

// ParseEther converts a decimal ether amount such as "0.001" to wei. More
// than 18 decimal places is an error.
func ParseEther(s string) (*big.Int, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("invalid amount %q: negative", s)
	}
	wei := d.Mul(weiPerEther)
	if !wei.Equal(wei.Truncate(0)) {
		return nil, fmt.Errorf("invalid amount %q: more precise than 1 wei", s)
	}
	return wei.BigInt(), nil
}

// FormatEther renders wei as a decimal ether string.
func FormatEther(wei *big.Int) string {
	return decimal.NewFromBigInt(wei, -18).String()
}

// Addr parses a validated hex address.
func Addr(s string) common.Address {
	return common.HexToAddress(s)
}
