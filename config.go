package main

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// LndConfig points at a local LND node used as the second payment channel.
type LndConfig struct {
	RestURL     string `toml:"rest_url"`
	MacaroonHex string `toml:"macaroon_hex"`
}

type Config struct {
	Relays         []string  `toml:"relays"`
	DefaultAmount  int64     `toml:"default_amount"` // sats
	Comment        string    `toml:"comment"`
	PrivateKeyFile string    `toml:"private_key_file"`
	WalletConnect  string    `toml:"wallet_connect"` // nostr+walletconnect:// URI
	Lnd            LndConfig `toml:"lnd"`
	HistoryFile    string    `toml:"history_file"`
}

func defaultConfig() Config {
	return Config{
		Relays: []string{
			"wss://relay.damus.io",
			"wss://relay.nostr.band",
			"wss://nos.lol",
		},
		DefaultAmount: 21,
	}
}

func configPath(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	if p := os.Getenv("VOLTAGE_CONFIG"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(home, ".config", "voltage", "config.toml")
}

func LoadConfig(flagPath string) (Config, error) {
	cfg := defaultConfig()

	path := configPath(flagPath)
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, err
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.DefaultAmount <= 0 {
		cfg.DefaultAmount = defaultConfig().DefaultAmount
	}
	if len(cfg.Relays) == 0 {
		cfg.Relays = defaultConfig().Relays
	}
	if cfg.WalletConnect == "" {
		cfg.WalletConnect = os.Getenv("NWC_URI")
	}
	if cfg.HistoryFile == "" {
		cfg.HistoryFile = filepath.Join(filepath.Dir(path), "zap_history.log")
	}

	return cfg, nil
}
