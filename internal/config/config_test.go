package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", "")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Listen)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, uint64(5), cfg.Lottery.PlatformFee)
	assert.Equal(t, "push", cfg.Lottery.PayoutMode)
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := writeFile(t, "lotto.yaml", `
listen: ":9090"
store:
  driver: bolt
  path: /tmp/lotto.db
lottery:
  min_bet: "0.01"
  max_bet: "2"
  platform_fee: 10
  payout_mode: pull
genesis:
  "0x00000000000000000000000000000000000000b1": "5"
`)
	envFile := writeFile(t, ".env", "LOTTO_PLATFORM_FEE=7\n")
	t.Setenv("LOTTO_LISTEN", ":7070")
	t.Cleanup(func() { os.Unsetenv("LOTTO_PLATFORM_FEE") })

	cfg, err := Load(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, ":7070", cfg.Listen, "environment wins over yaml")
	assert.Equal(t, "bolt", cfg.Store.Driver)
	assert.Equal(t, "0.01", cfg.Lottery.MinBet)
	assert.Equal(t, uint64(7), cfg.Lottery.PlatformFee, ".env wins over yaml")
	assert.Equal(t, "pull", cfg.Lottery.PayoutMode)
	assert.Len(t, cfg.Genesis, 1)
}

func TestLoad_MissingEnvFileIgnored(t *testing.T) {
	_, err := Load("", filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
}

func TestLoad_MissingConfigFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), "")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad owner", func(c *Config) { c.Owner = "alice" }},
		{"bad treasury", func(c *Config) { c.Lottery.Treasury = "0x12" }},
		{"unknown driver", func(c *Config) { c.Store.Driver = "postgres" }},
		{"bolt without path", func(c *Config) { c.Store.Driver = "bolt"; c.Store.Path = "" }},
		{"min above max", func(c *Config) { c.Lottery.MinBet = "2" }},
		{"fee above 100", func(c *Config) { c.Lottery.PlatformFee = 101 }},
		{"unknown payout", func(c *Config) { c.Lottery.PayoutMode = "airdrop" }},
		{"bad genesis amount", func(c *Config) {
			c.Genesis = map[string]string{"0x00000000000000000000000000000000000000b1": "lots"}
		}},
		{"keeper without schedule", func(c *Config) { c.Keeper.Enabled = true; c.Keeper.Schedule = "" }},
		{"negative rate", func(c *Config) { c.RateLimit.RequestsPerSecond = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseEther(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "0.001", want: "1000000000000000"},
		{in: "1", want: "1000000000000000000"},
		{in: " 0.285 ", want: "285000000000000000"},
		{in: "0", want: "0"},
		{in: "0.0000000000000000001", wantErr: true},
		{in: "-1", wantErr: true},
		{in: "one", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEther(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestFormatEther(t *testing.T) {
	assert.Equal(t, "0.285", FormatEther(big.NewInt(285000000000000000)))
	assert.Equal(t, "0", FormatEther(new(big.Int)))
}
