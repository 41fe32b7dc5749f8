package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("VOLTAGE_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("NWC_URI", "")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Relays) == 0 {
		t.Error("default relays missing")
	}
	if cfg.DefaultAmount != 21 {
		t.Errorf("default amount = %d", cfg.DefaultAmount)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
relays = ["wss://my.relay.example"]
default_amount = 100
comment = "zapped from voltage"
wallet_connect = "nostr+walletconnect://abc?relay=wss://r&secret=s"

[lnd]
rest_url = "https://localhost:8080"
macaroon_hex = "0201"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Relays) != 1 || cfg.Relays[0] != "wss://my.relay.example" {
		t.Errorf("relays = %v", cfg.Relays)
	}
	if cfg.DefaultAmount != 100 {
		t.Errorf("default amount = %d", cfg.DefaultAmount)
	}
	if cfg.Comment != "zapped from voltage" {
		t.Errorf("comment = %q", cfg.Comment)
	}
	if cfg.Lnd.RestURL != "https://localhost:8080" || cfg.Lnd.MacaroonHex != "0201" {
		t.Errorf("lnd = %+v", cfg.Lnd)
	}
	if cfg.HistoryFile != filepath.Join(dir, "zap_history.log") {
		t.Errorf("history file = %q", cfg.HistoryFile)
	}
}

func TestLoadConfigBadAmountFallsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("default_amount = -5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultAmount != 21 {
		t.Errorf("default amount = %d, want fallback 21", cfg.DefaultAmount)
	}
}

func TestLoadConfigNWCFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(""), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("NWC_URI", "nostr+walletconnect://fromenv?relay=wss://r&secret=s")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WalletConnect != "nostr+walletconnect://fromenv?relay=wss://r&secret=s" {
		t.Errorf("wallet_connect = %q", cfg.WalletConnect)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("relays = [unterminated"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("invalid toml should fail")
	}
}

func TestConfigPathPrecedence(t *testing.T) {
	t.Setenv("VOLTAGE_CONFIG", "/env/config.toml")
	if got := configPath("/flag/config.toml"); got != "/flag/config.toml" {
		t.Errorf("flag should win, got %q", got)
	}
	if got := configPath(""); got != "/env/config.toml" {
		t.Errorf("env should win over default, got %q", got)
	}
}
