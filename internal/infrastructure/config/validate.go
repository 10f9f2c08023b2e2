package config

import (
	"errors"
	"fmt"

	"github.com/doeshing/risklens/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if len(cfg.Models) == 0 {
		return errors.New("at least one model must be configured")
	}
	if _, ok := findModel(cfg, cfg.Preferences.DefaultModel); !ok {
		return fmt.Errorf("default model %s not found in models list", cfg.Preferences.DefaultModel)
	}
	for _, name := range cfg.Preferences.FallbackModels {
		if _, ok := findModel(cfg, name); !ok {
			return fmt.Errorf("fallback model %s not found", name)
		}
	}
	for _, model := range cfg.Models {
		if model.Endpoint == "" {
			return fmt.Errorf("model %s has no endpoint", model.Name)
		}
	}
	if cfg.Preferences.TimeoutSeconds < 0 {
		return errors.New("preferences.timeout must be >= 0")
	}
	if cfg.Analysis.Enrich && cfg.Analysis.BaseURL == "" {
		return errors.New("analysis.base_url must be set when analysis.enrich is on")
	}
	if cfg.Sessions.GuestTTLMinutes < 0 {
		return errors.New("sessions.guest_ttl_minutes must be >= 0")
	}
	if cfg.History.MaxEntries < 0 {
		return errors.New("history.max_entries must be >= 0")
	}
	return nil
}

func findModel(cfg domain.Config, name string) (domain.ModelDefinition, bool) {
	for _, model := range cfg.Models {
		if model.Name == name {
			return model, true
		}
	}
	return domain.ModelDefinition{}, false
}
