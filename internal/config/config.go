package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	DataDir   string `json:"data_dir"`
	LogLevel  string `json:"log_level"`
	Estimator string `json:"estimator"` // "heuristic" or "tiktoken"
	Store     struct {
		BaseURL string `json:"base_url"`
		APIKey  string `json:"api_key"`
		Org     string `json:"org"`
	} `json:"store"`
	Oracle struct {
		Model string `json:"model"`
	} `json:"oracle"`
	Rehome struct {
		DelayMillis int `json:"delay_millis"`
	} `json:"rehome"`
}

// OverlayDBPath is where the phantom overlay database lives.
func (c *Config) OverlayDBPath() string {
	return filepath.Join(c.DataDir, "overlays.db")
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		DataDir:   filepath.Join(os.Getenv("HOME"), ".chatgraft"),
		LogLevel:  "info",
		Estimator: "heuristic",
	}
	cfg.Store.BaseURL = "https://claude.ai"
	cfg.Rehome.DelayMillis = 500

	// Load from file if exists, otherwise write defaults
	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if os.IsNotExist(err) {
		if err := writeDefaults(path, cfg); err != nil {
			return nil, err
		}
	}

	// Override from env (highest precedence)
	if baseURL := os.Getenv("CHATGRAFT_BASE_URL"); baseURL != "" {
		cfg.Store.BaseURL = baseURL
	}
	if apiKey := os.Getenv("CHATGRAFT_API_KEY"); apiKey != "" {
		cfg.Store.APIKey = apiKey
	}
	if org := os.Getenv("CHATGRAFT_ORG"); org != "" {
		cfg.Store.Org = org
	}

	return cfg, nil
}

func writeDefaults(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal default config: %w", err)
	}
	data = append(data, '\n')
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename default config: %w", err)
	}
	return nil
}
