package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := loadConfigFrom(filepath.Join(dir, "missing.json"), "", envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, defaultModel, cfg.ProviderCfg(defaultProvider).Model)
}

func TestLoadConfigLayers(t *testing.T) {
	dir := t.TempDir()
	user := filepath.Join(dir, "user.json")
	project := filepath.Join(dir, "project.json")
	writeFile(t, user, `{
		"providers": {
			"anthropic": {"api_key": "user-key"},
			"proxy": {"url": "http://localhost:8080", "api_key_env": "PROXY_KEY"}
		},
		"max_tokens": 4096,
		"markdown": true,
		"tools": {"deny": ["bash"]}
	}`)
	writeFile(t, project, `{
		"provider": "proxy",
		"providers": {"proxy": {"model": "claude-haiku-4-5"}},
		"max_rounds": 0
	}`)

	cfg, err := loadConfigFrom(user, project, envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, "proxy", cfg.Provider)
	assert.Equal(t, 4096, cfg.MaxTokens)
	assert.Equal(t, 0, cfg.MaxRounds, "explicit zero overrides the default")
	assert.Equal(t, 120, cfg.BashTimeout)
	assert.True(t, cfg.Markdown)
	assert.Equal(t, []string{"bash"}, cfg.Tools.Deny)

	anth := cfg.ProviderCfg("anthropic")
	assert.Equal(t, "user-key", anth.APIKey)
	assert.Equal(t, defaultModel, anth.Model, "fields merge rather than replace")

	assert.Equal(t, ProviderConfig{
		URL:       "http://localhost:8080",
		APIKeyEnv: "PROXY_KEY",
		Model:     "claude-haiku-4-5",
	}, cfg.ProviderCfg("proxy"))
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	cfg, err := loadConfigFrom("", "", envMap(map[string]string{
		"ANTHROPIC_API_KEY":         "env-key",
		"ANTHROPIC_BASE_URL":        "http://proxy.local",
		"NANOCODE_MODEL":            "claude-sonnet-4-5",
		"NANOCODE_MODEL_PREFERENCE": "haiku",
		"NANOCODE_MAX_TOKENS":       " 2048 ",
		"NANOCODE_VALIDATE_MODEL":   "true",
	}))
	require.NoError(t, err)

	anth := cfg.ProviderCfg(defaultProvider)
	assert.Equal(t, "env-key", anth.APIKey)
	assert.Equal(t, "http://proxy.local", anth.URL)
	assert.Equal(t, "claude-sonnet-4-5", anth.Model)
	assert.Equal(t, "haiku", cfg.ModelPreference)
	assert.Equal(t, 2048, cfg.MaxTokens)
	assert.True(t, cfg.ValidateModel)
}

func TestLoadConfigReportsBadValues(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.json")
	writeFile(t, bad, `{"max_tokens": "lots"}`)

	cfg, err := loadConfigFrom(bad, "", envMap(map[string]string{
		"NANOCODE_MAX_ROUNDS":     "many",
		"NANOCODE_VALIDATE_MODEL": "perhaps",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
	assert.Contains(t, err.Error(), "NANOCODE_MAX_ROUNDS")
	assert.Contains(t, err.Error(), "NANOCODE_VALIDATE_MODEL")

	// the usable layers still apply
	assert.Equal(t, 8192, cfg.MaxTokens)
	assert.Equal(t, 100, cfg.MaxRounds)
}

func TestConfigSetModel(t *testing.T) {
	var cfg Config
	cfg.Provider = "proxy"
	cfg.SetModel("m1")
	assert.Equal(t, "m1", cfg.ProviderCfg("proxy").Model)
	assert.Equal(t, ProviderConfig{}, cfg.ProviderCfg("other"))
}

func TestSaveConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	require.NoError(t, SaveConfig(path, savedProvider{
		Provider:  "anthropic",
		Providers: map[string]ProviderConfig{"anthropic": {APIKey: "k"}},
	}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.NotContains(t, got, "max_tokens")

	cfg, err := loadConfigFrom(path, "", envMap(nil))
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.ProviderCfg("anthropic").APIKey)
	assert.Equal(t, 8192, cfg.MaxTokens)
}

func TestConfigLogDir(t *testing.T) {
	assert.Equal(t, "/var/log/nc", Config{LogDir: "/var/log/nc"}.logDir())
	def := Config{}.logDir()
	assert.Equal(t, "logs", filepath.Base(def))
	assert.Equal(t, configDirName, filepath.Base(filepath.Dir(def)))
}
