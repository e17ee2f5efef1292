package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"goa.design/clue/log"
)

const modelsCacheTTL = 24 * time.Hour

type ModelInfo struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
	Type        string `json:"type"`
}

type ModelPreference string

const (
	PreferOpus   ModelPreference = "opus"
	PreferSonnet ModelPreference = "sonnet"
	PreferHaiku  ModelPreference = "haiku"
)

func parseModelPreference(s string) (ModelPreference, error) {
	switch p := ModelPreference(strings.ToLower(strings.TrimSpace(s))); p {
	case "":
		return PreferOpus, nil
	case PreferOpus, PreferSonnet, PreferHaiku:
		return p, nil
	}
	return "", fmt.Errorf("unknown model preference %q (want opus, sonnet or haiku)", s)
}

var preferredModels = map[ModelPreference][]string{
	PreferOpus:   {"claude-opus-4-6", "claude-opus-4-5", "claude-sonnet-4-5"},
	PreferSonnet: {"claude-sonnet-4-5", "claude-opus-4-6", "claude-haiku-4-5"},
	PreferHaiku:  {"claude-haiku-4-5", "claude-sonnet-4-5", "claude-opus-4-5"},
}

// recommendModel picks the first available model from the preference's
// priority list, falling back to the first model the server listed.
func recommendModel(models []ModelInfo, pref ModelPreference) string {
	list, ok := preferredModels[pref]
	if !ok {
		list = preferredModels[PreferOpus]
	}
	for _, id := range list {
		if validateModel(id, models) {
			return id
		}
	}
	if len(models) > 0 {
		return models[0].ID
	}
	return ""
}

func validateModel(id string, models []ModelInfo) bool {
	return slices.ContainsFunc(models, func(m ModelInfo) bool { return m.ID == id })
}

type modelsCache struct {
	Models   []ModelInfo `json:"models"`
	CachedAt int64       `json:"cached_at"`
}

// ModelCatalog lists the provider's models through a small on-disk cache.
type ModelCatalog struct {
	provider Provider
	path     string
	now      func() time.Time
}

func NewModelCatalog(p Provider, cachePath string) *ModelCatalog {
	return &ModelCatalog{provider: p, path: cachePath, now: time.Now}
}

func defaultModelsCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".cache", "nanocode")
}

// modelsCachePath keeps one cache file per provider.
func modelsCachePath(dir, provider string) string {
	if provider == "" || provider == defaultProvider {
		return filepath.Join(dir, "models.json")
	}
	return filepath.Join(dir, "models-"+provider+".json")
}

// Models returns the cached list when it is younger than a day, otherwise
// fetches and re-caches it.
func (c *ModelCatalog) Models(ctx context.Context) ([]ModelInfo, error) {
	if cached, ok := c.load(); ok {
		return cached, nil
	}
	return c.Refresh(ctx)
}

func (c *ModelCatalog) Refresh(ctx context.Context) ([]ModelInfo, error) {
	models, err := c.provider.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	if err := c.save(models); err != nil {
		log.Warn(ctx, log.KV{K: "msg", V: "could not cache model list"}, log.KV{K: "path", V: c.path}, log.KV{K: "err", V: err.Error()})
	}
	return models, nil
}

func (c *ModelCatalog) load() ([]ModelInfo, bool) {
	if c.path == "" {
		return nil, false
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, false
	}
	var cache modelsCache
	if err := json.Unmarshal(data, &cache); err != nil {
		return nil, false
	}
	age := c.now().Sub(time.Unix(cache.CachedAt, 0))
	if age < 0 || age >= modelsCacheTTL {
		return nil, false
	}
	return cache.Models, true
}

func (c *ModelCatalog) save(models []ModelInfo) error {
	if c.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(modelsCache{Models: models, CachedAt: c.now().Unix()}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0644)
}

// selectModel keeps current when the server lists it and otherwise picks a
// recommendation. A failed lookup keeps current.
func selectModel(ctx context.Context, c *ModelCatalog, current string, pref ModelPreference) (string, bool, error) {
	models, err := c.Models(ctx)
	if err != nil {
		return current, false, err
	}
	if current != "" && validateModel(current, models) {
		return current, false, nil
	}
	rec := recommendModel(models, pref)
	if rec == "" {
		return current, false, nil
	}
	return rec, rec != current, nil
}
