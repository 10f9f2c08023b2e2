package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/pkg/filesystem"
	"github.com/doeshing/risklens/internal/ports"
)

// FileLoader loads YAML configuration from ~/.risklens/config.yaml
// (overridable via RISKLENS_CONFIG). A missing file is created from defaults
// on first load so users have something to edit.
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader. An empty path means "use the default
// location unless RISKLENS_CONFIG is set".
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.resolvePath()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := defaultConfig()
			if err := writeDefault(path, cfg); err != nil {
				return domain.Config{}, err
			}
			return cfg, nil
		}
		return domain.Config{}, err
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, err
	}

	cfg = hydrateDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return domain.Config{}, fmt.Errorf("invalid config at %s: %w", path, err)
	}
	return cfg, nil
}

// Path reports where configuration is read from.
func (l *FileLoader) Path() string {
	return l.resolvePath()
}

func (l *FileLoader) resolvePath() string {
	if l.overridePath != "" {
		return l.overridePath
	}
	if custom := os.Getenv("RISKLENS_CONFIG"); custom != "" {
		return expandPath(custom)
	}
	return filesystem.AppDir("config.yaml")
}

func ensureConfigDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, domain.DirectoryPermissions)
}

func writeDefault(path string, cfg domain.Config) error {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, domain.SecureFilePermissions)
}

func defaultConfig() domain.Config {
	return domain.Config{
		ConfigFormatVersion: "1",
		Preferences: domain.Preferences{
			DefaultModel:   "claude-sonnet",
			FallbackModels: []string{"gpt-4o"},
			TimeoutSeconds: int(domain.DefaultProcessTimeout.Seconds()),
			CacheReplies:   true,
		},
		Triage: domain.TriageSettings{
			Enabled:   true,
			RulesFile: filesystem.AppDir("triage.yaml"),
		},
		Analysis: domain.AnalysisSettings{
			BaseURL:        "http://localhost:8000",
			TimeoutSeconds: int(domain.DefaultAnalysisTimeout.Seconds()),
			Enrich:         true,
		},
		Storage: domain.StorageSettings{
			DatabasePath: filesystem.AppDir("risklens.db"),
		},
		Sessions: domain.SessionSettings{
			GuestTTLMinutes: int(domain.DefaultGuestSessionTTL.Minutes()),
			RatePerMinute:   domain.DefaultRatePerMinute,
			RateBurst:       domain.DefaultRateBurst,
		},
		History: domain.HistorySettings{
			MaxEntries: domain.DefaultInputHistorySize,
			FilePath:   filesystem.AppDir("input_history.jsonl"),
		},
		Models: []domain.ModelDefinition{
			{
				Name:       "claude-sonnet",
				Endpoint:   "https://api.anthropic.com/v1/messages",
				AuthEnvVar: "ANTHROPIC_API_KEY",
				ModelID:    "claude-3-5-sonnet-20240620",
				MaxTokens:  domain.DefaultMaxTokens,
				APIFormat: domain.APIFormat{
					AuthHeaderName:    "x-api-key",
					SystemMessageMode: domain.SystemMessageModeSeparate,
					ContentWrapper:    domain.ContentWrapperAnthropic,
					ResponseJSONPath:  "content[0].text",
					ExtraHeaders:      map[string]string{"anthropic-version": "2023-06-01"},
				},
			},
			{
				Name:       "gpt-4o",
				Endpoint:   "https://api.openai.com/v1/chat/completions",
				AuthEnvVar: "OPENAI_API_KEY",
				OrgEnvVar:  "OPENAI_ORG_ID",
				ModelID:    "gpt-4o",
				MaxTokens:  domain.DefaultMaxTokens,
			},
		},
	}
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.Preferences.DefaultModel == "" && len(cfg.Models) > 0 {
		cfg.Preferences.DefaultModel = cfg.Models[0].Name
	}
	if cfg.Preferences.TimeoutSeconds == 0 {
		cfg.Preferences.TimeoutSeconds = int(domain.DefaultProcessTimeout.Seconds())
	}
	if cfg.Analysis.TimeoutSeconds == 0 {
		cfg.Analysis.TimeoutSeconds = int(domain.DefaultAnalysisTimeout.Seconds())
	}
	if cfg.Sessions.GuestTTLMinutes == 0 {
		cfg.Sessions.GuestTTLMinutes = int(domain.DefaultGuestSessionTTL.Minutes())
	}
	if cfg.Sessions.RatePerMinute == 0 {
		cfg.Sessions.RatePerMinute = domain.DefaultRatePerMinute
	}
	if cfg.Sessions.RateBurst == 0 {
		cfg.Sessions.RateBurst = domain.DefaultRateBurst
	}
	if cfg.History.MaxEntries == 0 {
		cfg.History.MaxEntries = domain.DefaultInputHistorySize
	}
	return cfg
}

func expandPath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if len(path) > 1 && path[:2] == "~/" {
		return filepath.Join(filesystem.UserHomeDir(), path[2:])
	}
	return filepath.Clean(path)
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
