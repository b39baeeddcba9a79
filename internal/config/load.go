package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "go.yaml.in/yaml/v3"
)

// Load reads the config file (YAML or JSON), applies environment overrides
// and defaults. A missing file is fine when the environment carries
// everything; validation happens separately.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		j, format, cerr := coerceToJSONBytes(path, data)
		if cerr != nil {
			return nil, fmt.Errorf("config %s (%s): %w", path, format, cerr)
		}
		dec := json.NewDecoder(bytes.NewReader(j))
		dec.DisallowUnknownFields()
		if derr := dec.Decode(&cfg); derr != nil {
			return nil, fmt.Errorf("config %s: %w", path, derr)
		}
	case os.IsNotExist(err):
		// env-only deployment
	default:
		return nil, err
	}

	applyEnv(&cfg)
	cfg.withDefaults()
	return &cfg, nil
}

// applyEnv layers the deployment environment on top of the file. The names
// match what the hosting platform already has configured.
func applyEnv(cfg *Config) {
	set := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	set(&cfg.Telegram.Token, "TELEGRAM_BOT_TOKEN")
	set(&cfg.Telegram.ChannelID, "TELEGRAM_CHANNEL_ID")
	set(&cfg.Telegram.NotifyChatID, "NOTIFICATION_CHANNEL_ID")
	set(&cfg.Telegram.AdminChatID, "ADMIN_CHAT_ID")

	set(&cfg.Sheets.SpreadsheetID, "GOOGLE_SHEET_ID")
	set(&cfg.Sheets.SheetName, "GOOGLE_SHEET_NAME")
	set(&cfg.Sheets.ClientEmail, "GOOGLE_CLIENT_EMAIL")
	set(&cfg.Sheets.PrivateKey, "GOOGLE_PRIVATE_KEY")

	set(&cfg.Poll.Schedule, "POLL_SCHEDULE")
	set(&cfg.Poll.Timezone, "POLL_TIMEZONE")
}

// coerceToJSONBytes converts YAML config to JSON bytes so the strict JSON
// decoder (DisallowUnknownFields) covers both formats.
func coerceToJSONBytes(path string, data []byte) ([]byte, string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, "json", nil
	}

	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, "yaml", fmt.Errorf("yaml unmarshal: %w", err)
	}
	v = normalizeYAML(v)

	j, err := json.Marshal(v)
	if err != nil {
		return nil, "yaml", fmt.Errorf("yaml->json marshal: %w", err)
	}
	return j, "yaml", nil
}

// normalizeYAML ensures all map keys are strings so the result can be
// JSON-marshaled.
func normalizeYAML(in any) any {
	switch x := in.(type) {
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[fmt.Sprint(k)] = normalizeYAML(v)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, v := range x {
			m[k] = normalizeYAML(v)
		}
		return m
	case []any:
		for i := range x {
			x[i] = normalizeYAML(x[i])
		}
		return x
	default:
		return in
	}
}
