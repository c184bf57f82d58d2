package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:8645" {
		t.Fatalf("rpc address = %q", cfg.RPCAddress)
	}
	if cfg.Operator == "" {
		t.Fatal("default operator missing")
	}
	if cfg.Issuance.TimeoutSeconds != 30 || cfg.Balance.TimeoutSeconds != 30 {
		t.Fatalf("timeouts = %d/%d", cfg.Issuance.TimeoutSeconds, cfg.Balance.TimeoutSeconds)
	}

	// The written default must load back cleanly.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Operator != cfg.Operator || again.Issuance.BaseURL != cfg.Issuance.BaseURL {
		t.Fatalf("reload mismatch: %+v vs %+v", again, cfg)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
Operator = "ops.donorpay"

[Issuance]
BaseURL = "http://issuance.local"

[Balance]
BaseURL = "http://balance.local"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != "127.0.0.1:8645" {
		t.Fatalf("rpc address default not applied: %q", cfg.RPCAddress)
	}
	if cfg.DataDir != "./donorpay-data" {
		t.Fatalf("data dir default not applied: %q", cfg.DataDir)
	}
	if cfg.Issuance.TimeoutSeconds != 30 {
		t.Fatalf("issuance timeout default not applied: %d", cfg.Issuance.TimeoutSeconds)
	}
}

func TestLoadRejectsIncompleteConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
Operator = ""

[Issuance]
BaseURL = "http://issuance.local"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected validation error for missing operator")
	}
}

func TestRPCTokenEnvOverride(t *testing.T) {
	t.Setenv("DONORPAY_RPC_TOKEN", "env-token")

	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
Operator = "ops.donorpay"
RPCToken = "file-token"

[Issuance]
BaseURL = "http://issuance.local"

[Balance]
BaseURL = "http://balance.local"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCToken != "env-token" {
		t.Fatalf("env override not applied: %q", cfg.RPCToken)
	}
}
