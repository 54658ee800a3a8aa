/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package config loads the gateway's YAML document, generalizing the FIX
// client's flat Config struct (api key/secret/passphrase/comp ids) to a
// document describing any number of vendor plants plus the storage,
// listener, and audit settings around them. Secrets are never stored in the
// YAML file itself - they are interpolated from the process environment
// (loaded from a .env file in local development via godotenv) by name.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// PlantConfig describes one upstream vendor connection. Protocol selects
// which plants/fixplant or plants/wsplant implementation the gateway
// constructs; the fields below it are a superset covering both.
type PlantConfig struct {
	Name       string `yaml:"name"`
	Protocol   string `yaml:"protocol"` // "fix" or "websocket"
	Vendor     string `yaml:"vendor"`
	Broker     string `yaml:"broker"`
	MarketType string `yaml:"market_type"`

	// FIX-specific.
	SenderCompID string `yaml:"sender_comp_id"`
	TargetCompID string `yaml:"target_comp_id"`
	PortfolioID  string `yaml:"portfolio_id"`
	SettingsFile string `yaml:"quickfix_settings_file"`

	// WebSocket-specific.
	WebSocketURL string `yaml:"websocket_url"`

	// Shared credential lookups, resolved from the environment.
	ApiKeyEnv     string `yaml:"api_key_env"`
	ApiSecretEnv  string `yaml:"api_secret_env"`
	PassphraseEnv string `yaml:"passphrase_env"`

	HeartbeatIntervalSeconds int `yaml:"heartbeat_interval_seconds"`
}

// StorageConfig configures the day-partitioned market-data storage engine.
type StorageConfig struct {
	BasePath string `yaml:"base_path"`
}

// AuditConfig configures the SQLite order/position audit trail.
type AuditConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// GatewayConfig configures the Strategy Gateway's listener.
type GatewayConfig struct {
	ListenAddress string `yaml:"listen_address"`
}

// ContractSpecConfig overrides the ledger's default 1:1 tick economics for
// one symbol - required for futures symbols, where a one-tick price move is
// worth value_per_tick rather than one unit of quote currency per unit of
// quantity. Decimal fields are parsed as strings so the YAML document never
// loses precision to float64.
type ContractSpecConfig struct {
	Symbol       string `yaml:"symbol"`
	Vendor       string `yaml:"vendor"`
	MarketType   string `yaml:"market_type"`
	Exchange     string `yaml:"exchange"`
	TickSize     string `yaml:"tick_size"`
	ValuePerTick string `yaml:"value_per_tick"`
}

// AccountConfig seeds one brokerage account's session-start cash balance,
// the base figure live account updates accrue booked PnL onto. Parsed as a
// string so the YAML document never loses precision to float64.
type AccountConfig struct {
	Broker       string `yaml:"broker"`
	AccountID    string `yaml:"account_id"`
	StartingCash string `yaml:"starting_cash"`
}

// Config is the top-level gateway configuration document.
type Config struct {
	Plants        []PlantConfig        `yaml:"plants"`
	Storage       StorageConfig        `yaml:"storage"`
	Audit         AuditConfig          `yaml:"audit"`
	Gateway       GatewayConfig        `yaml:"gateway"`
	ContractSpecs []ContractSpecConfig `yaml:"contract_specs"`
	Accounts      []AccountConfig      `yaml:"accounts"`
}

// Load reads and parses the YAML config at path. If envFile is non-empty,
// it is loaded into the process environment first via godotenv, matching
// the conventional local-development workflow (a .env file alongside the
// config that is never committed).
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Storage.BasePath == "" {
		return nil, fmt.Errorf("config %s: storage.base_path is required", path)
	}
	return &cfg, nil
}

// ResolveSecret looks up a plant credential by the environment variable name
// configured for it, returning an error for a configured-but-unset name so
// misconfiguration fails at startup rather than as a silent empty-string
// logon attempt.
func ResolveSecret(envVar string) (string, error) {
	if envVar == "" {
		return "", nil
	}
	v, ok := os.LookupEnv(envVar)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", envVar)
	}
	return v, nil
}
