package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	configDirName   = ".nanocode"
	defaultProvider = "anthropic"
	defaultModel    = "claude-opus-4-5"
)

// ProviderConfig holds per-provider endpoint settings. APIKeyEnv names an
// environment variable consulted when APIKey is empty.
type ProviderConfig struct {
	APIKey    string `json:"api_key,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty"`
	Model     string `json:"model,omitempty"`
	URL       string `json:"url,omitempty"`
}

type ToolsConfig struct {
	Deny  []string `json:"deny,omitempty"`
	Allow []string `json:"allow,omitempty"`
}

type Config struct {
	Provider        string                    `json:"provider"`
	Providers       map[string]ProviderConfig `json:"providers"`
	MaxTokens       int                       `json:"max_tokens"`
	BashTimeout     int                       `json:"bash_timeout"`
	MaxRounds       int                       `json:"max_rounds"`
	ParallelTools   bool                      `json:"parallel_tools,omitempty"`
	Markdown        bool                      `json:"markdown,omitempty"`
	ValidateModel   bool                      `json:"validate_model,omitempty"`
	ModelPreference string                    `json:"model_preference,omitempty"`
	LogDir          string                    `json:"log_dir,omitempty"`
	Tools           ToolsConfig               `json:"tools"`
}

func DefaultConfig() Config {
	return Config{
		Provider: defaultProvider,
		Providers: map[string]ProviderConfig{
			defaultProvider: {
				APIKeyEnv: "ANTHROPIC_AUTH_TOKEN",
				Model:     defaultModel,
				URL:       defaultAnthropicURL,
			},
		},
		MaxTokens:   8192,
		BashTimeout: 120,
		MaxRounds:   100,
	}
}

// ProviderCfg returns the config for a named provider (never nil-like).
func (c Config) ProviderCfg(name string) ProviderConfig {
	if pc, ok := c.Providers[name]; ok {
		return pc
	}
	return ProviderConfig{}
}

// SetModel points the active provider at model.
func (c *Config) SetModel(model string) {
	if c.Providers == nil {
		c.Providers = make(map[string]ProviderConfig)
	}
	pc := c.Providers[c.Provider]
	pc.Model = model
	c.Providers[c.Provider] = pc
}

// LoadConfig builds the final config by cascading layers:
// 1. Hardcoded defaults
// 2. ~/.nanocode/config.json (user-wide)
// 3. .nanocode/config.json (project)
// 4. Environment variables
func LoadConfig() (Config, error) {
	return loadConfigFrom(UserConfigPath(), filepath.Join(configDirName, "config.json"), os.Getenv)
}

func loadConfigFrom(userPath, projectPath string, getenv func(string) string) (Config, error) {
	cfg := DefaultConfig()

	var errs []error
	for _, path := range []string{userPath, projectPath} {
		if path == "" {
			continue
		}
		if err := mergeConfigFile(path, &cfg); err != nil {
			errs = append(errs, err)
		}
	}
	if err := applyEnvOverrides(&cfg, getenv); err != nil {
		errs = append(errs, err)
	}
	return cfg, errors.Join(errs...)
}

// mergeConfigFile deep-merges a config file into cfg. A missing file is not
// an error. Provider entries are merged field-by-field, not replaced
// wholesale.
func mergeConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var raw struct {
		Provider        string                     `json:"provider"`
		Providers       map[string]json.RawMessage `json:"providers"`
		MaxTokens       *int                       `json:"max_tokens"`
		BashTimeout     *int                       `json:"bash_timeout"`
		MaxRounds       *int                       `json:"max_rounds"`
		ParallelTools   *bool                      `json:"parallel_tools"`
		Markdown        *bool                      `json:"markdown"`
		ValidateModel   *bool                      `json:"validate_model"`
		ModelPreference string                     `json:"model_preference"`
		LogDir          string                     `json:"log_dir"`
		Tools           *ToolsConfig               `json:"tools"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if raw.Provider != "" {
		cfg.Provider = raw.Provider
	}
	if raw.MaxTokens != nil {
		cfg.MaxTokens = *raw.MaxTokens
	}
	if raw.BashTimeout != nil {
		cfg.BashTimeout = *raw.BashTimeout
	}
	if raw.MaxRounds != nil {
		cfg.MaxRounds = *raw.MaxRounds
	}
	if raw.ParallelTools != nil {
		cfg.ParallelTools = *raw.ParallelTools
	}
	if raw.Markdown != nil {
		cfg.Markdown = *raw.Markdown
	}
	if raw.ValidateModel != nil {
		cfg.ValidateModel = *raw.ValidateModel
	}
	if raw.ModelPreference != "" {
		cfg.ModelPreference = raw.ModelPreference
	}
	if raw.LogDir != "" {
		cfg.LogDir = raw.LogDir
	}
	if raw.Tools != nil {
		cfg.Tools = *raw.Tools
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	for name, rawPC := range raw.Providers {
		var pc ProviderConfig
		if err := json.Unmarshal(rawPC, &pc); err != nil {
			return fmt.Errorf("parse config %s: provider %s: %w", path, name, err)
		}
		existing := cfg.Providers[name]
		if pc.APIKey != "" {
			existing.APIKey = pc.APIKey
		}
		if pc.APIKeyEnv != "" {
			existing.APIKeyEnv = pc.APIKeyEnv
		}
		if pc.Model != "" {
			existing.Model = pc.Model
		}
		if pc.URL != "" {
			existing.URL = pc.URL
		}
		cfg.Providers[name] = existing
	}
	return nil
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	anth := cfg.Providers[defaultProvider]
	if v := getenv("ANTHROPIC_API_KEY"); v != "" {
		anth.APIKey = v
	}
	if v := getenv("ANTHROPIC_BASE_URL"); v != "" {
		anth.URL = v
	}
	cfg.Providers[defaultProvider] = anth

	if v := getenv("NANOCODE_MODEL"); v != "" {
		cfg.SetModel(v)
	}
	if v := getenv("NANOCODE_MODEL_PREFERENCE"); v != "" {
		cfg.ModelPreference = v
	}

	var errs []error
	envInt := func(name string, dst *int) {
		if v := getenv(name); v != "" {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				return
			}
			*dst = n
		}
	}
	envInt("NANOCODE_MAX_TOKENS", &cfg.MaxTokens)
	envInt("NANOCODE_MAX_ROUNDS", &cfg.MaxRounds)

	if v := getenv("NANOCODE_VALIDATE_MODEL"); v != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			errs = append(errs, fmt.Errorf("NANOCODE_VALIDATE_MODEL: %w", err))
		} else {
			cfg.ValidateModel = b
		}
	}
	return errors.Join(errs...)
}

// UserConfigPath returns the path to the user-wide config file.
func UserConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, configDirName, "config.json")
}

// SaveConfig writes v as JSON (mode 0600) to path, creating directories as
// needed.
func SaveConfig(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

func (c Config) logDir() string {
	if c.LogDir != "" {
		return c.LogDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(configDirName, "logs")
	}
	return filepath.Join(home, configDirName, "logs")
}
