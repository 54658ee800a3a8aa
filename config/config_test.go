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

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
plants:
  - name: coinbase-prime
    protocol: fix
    vendor: COINBASE
    broker: prime
    market_type: Crypto
    sender_comp_id: SENDER
    target_comp_id: TARGET
    api_key_env: GW_API_KEY
    api_secret_env: GW_API_SECRET
    passphrase_env: GW_PASSPHRASE
    heartbeat_interval_seconds: 30
storage:
  base_path: /tmp/marketgw-data
audit:
  database_path: /tmp/marketgw-audit.db
gateway:
  listen_address: ":7777"
`

// TestLoad_ParsesPlantsAndStorageBasePath verifies a well-formed document
// parses into the expected shape and exposes the one plant, the storage
// base path and the listen address.
func TestLoad_ParsesPlantsAndStorageBasePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	cfg, err := Load(path, "")
	require.NoError(t, err)
	require.Len(t, cfg.Plants, 1)
	assert.Equal(t, "coinbase-prime", cfg.Plants[0].Name)
	assert.Equal(t, "fix", cfg.Plants[0].Protocol)
	assert.Equal(t, "/tmp/marketgw-data", cfg.Storage.BasePath)
	assert.Equal(t, ":7777", cfg.Gateway.ListenAddress)
}

// TestLoad_MissingStorageBasePathIsRejected verifies a document without
// storage.base_path fails loudly rather than defaulting silently.
func TestLoad_MissingStorageBasePathIsRejected(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("plants: []\n"), 0o600))

	_, err := Load(path, "")
	assert.Error(t, err)
}

// TestLoad_MissingFileReturnsError verifies a nonexistent path surfaces a
// wrapped read error rather than panicking.
func TestLoad_MissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	assert.Error(t, err)
}

// TestLoad_EnvFileIsLoadedBeforeParsing verifies a .env file alongside the
// config is applied to the process environment, so ResolveSecret can pick
// up a value that did not previously exist in the environment.
func TestLoad_EnvFileIsLoadedBeforeParsing(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(cfgPath, []byte(sampleYAML), 0o600))
	require.NoError(t, os.WriteFile(envPath, []byte("GW_API_KEY=from-env-file\n"), 0o600))

	os.Unsetenv("GW_API_KEY")
	_, err := Load(cfgPath, envPath)
	require.NoError(t, err)

	v, err := ResolveSecret("GW_API_KEY")
	require.NoError(t, err)
	assert.Equal(t, "from-env-file", v)
	os.Unsetenv("GW_API_KEY")
}

// TestResolveSecret_EmptyEnvVarNameIsANoop verifies a plant field that
// leaves a credential env var unconfigured (empty string) resolves to an
// empty secret rather than an error - only a configured-but-unset name is
// an error.
func TestResolveSecret_EmptyEnvVarNameIsANoop(t *testing.T) {
	v, err := ResolveSecret("")
	require.NoError(t, err)
	assert.Empty(t, v)
}

// TestResolveSecret_ConfiguredButUnsetFailsLoudly verifies a referenced env
// var that is not present in the process environment is a hard error, not
// a silent empty string.
func TestResolveSecret_ConfiguredButUnsetFailsLoudly(t *testing.T) {
	os.Unsetenv("GW_DOES_NOT_EXIST")
	_, err := ResolveSecret("GW_DOES_NOT_EXIST")
	assert.Error(t, err)
}

// TestResolveSecret_ReturnsConfiguredValue verifies a set environment
// variable resolves to its value.
func TestResolveSecret_ReturnsConfiguredValue(t *testing.T) {
	t.Setenv("GW_SET_VAR", "super-secret")
	v, err := ResolveSecret("GW_SET_VAR")
	require.NoError(t, err)
	assert.Equal(t, "super-secret", v)
}
