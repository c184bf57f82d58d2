package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ServiceConfig describes one external service endpoint.
type ServiceConfig struct {
	BaseURL        string `toml:"BaseURL"`
	APIKey         string `toml:"APIKey,omitempty"`
	TimeoutSeconds int    `toml:"TimeoutSeconds"`
}

// LogFileConfig enables an optional rotating log file.
type LogFileConfig struct {
	Path       string `toml:"Path,omitempty"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Config captures the runtime configuration for donorpayd.
type Config struct {
	RPCAddress string `toml:"RPCAddress"`
	DataDir    string `toml:"DataDir"`
	Env        string `toml:"Env,omitempty"`
	// Operator is the wallet privileged RPC methods act as; it is also the
	// engine admin.
	Operator string `toml:"Operator"`
	// RPCToken guards privileged RPC methods. Overridable via
	// DONORPAY_RPC_TOKEN.
	RPCToken string `toml:"RPCToken,omitempty"`
	// MinRegistrationDeposit is the base-unit registration cost enforced by
	// the transfer flow. Empty keeps the engine default.
	MinRegistrationDeposit string `toml:"MinRegistrationDeposit,omitempty"`
	// RPCRateLimitPerMinute throttles RPC calls per client. Zero disables
	// throttling.
	RPCRateLimitPerMinute float64 `toml:"RPCRateLimitPerMinute,omitempty"`
	// RPCRateLimitBurst is the per-client burst allowance when throttling.
	RPCRateLimitBurst int `toml:"RPCRateLimitBurst,omitempty"`

	Issuance ServiceConfig `toml:"Issuance"`
	Balance  ServiceConfig `toml:"Balance"`
	LogFile  LogFileConfig `toml:"LogFile"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Operator) == "" {
		return fmt.Errorf("config: Operator required")
	}
	if strings.TrimSpace(c.Issuance.BaseURL) == "" {
		return fmt.Errorf("config: Issuance.BaseURL required")
	}
	if strings.TrimSpace(c.Balance.BaseURL) == "" {
		return fmt.Errorf("config: Balance.BaseURL required")
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./donorpay-data"
	}
	if cfg.Issuance.TimeoutSeconds <= 0 {
		cfg.Issuance.TimeoutSeconds = 30
	}
	if cfg.Balance.TimeoutSeconds <= 0 {
		cfg.Balance.TimeoutSeconds = 30
	}
	if token := strings.TrimSpace(os.Getenv("DONORPAY_RPC_TOKEN")); token != "" {
		cfg.RPCToken = token
	}
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress: "127.0.0.1:8645",
		DataDir:    "./donorpay-data",
		Operator:   "operator.donorpay",
		Issuance: ServiceConfig{
			BaseURL:        "http://localhost:9701",
			TimeoutSeconds: 30,
		},
		Balance: ServiceConfig{
			BaseURL:        "http://localhost:9702",
			TimeoutSeconds: 30,
		},
		LogFile: LogFileConfig{
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}
