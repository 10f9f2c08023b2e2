package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/doeshing/risklens/internal/domain"
	"github.com/doeshing/risklens/internal/ports"
)

// DoctorService runs environment diagnostics.
type DoctorService struct {
	ConfigProvider ports.ConfigProvider
	Analysis       ports.AnalysisClient
	Triage         ports.Triage
	Guests         ports.GuestRegistry
}

// Run executes checks and returns a report.
func (s *DoctorService) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	checks = append(checks, ok("Config file", fmt.Sprintf("loaded (format %s)", cfg.ConfigFormatVersion)))

	if s.Triage != nil && cfg.Triage.Enabled {
		decision := s.Triage.Analyze("show my positions")
		if decision.ProcessingType == domain.ProcessingRegexp {
			checks = append(checks, ok("Triage rules", "patterns loaded and matching"))
		} else {
			checks = append(checks, warn("Triage rules", "collective pattern did not match; rules file may be broken"))
		}
	} else if !cfg.Triage.Enabled {
		checks = append(checks, warn("Triage rules", "disabled; every message will call a provider"))
	}
	checks = append(checks, rulesFileCheck(cfg.Triage.RulesFile))

	checks = append(checks, apiCheck(cfg.Models))
	checks = append(checks, storageCheck(cfg.Storage.DatabasePath))
	checks = append(checks, s.analysisCheck(ctx, cfg))

	if s.Guests != nil {
		checks = append(checks, ok("Guest sessions", fmt.Sprintf("%d active", s.Guests.Active())))
	}

	return domain.HealthReport{Checks: checks}, nil
}

func (s *DoctorService) analysisCheck(ctx context.Context, cfg domain.Config) domain.HealthCheck {
	if s.Analysis == nil {
		return warn("Analysis backend", "not configured")
	}
	if err := s.Analysis.Health(ctx); err != nil {
		return warn("Analysis backend", fmt.Sprintf("unreachable at %s", cfg.Analysis.BaseURL))
	}
	return ok("Analysis backend", cfg.Analysis.BaseURL)
}

func apiCheck(models []domain.ModelDefinition) domain.HealthCheck {
	var missing []string
	for _, model := range models {
		if model.AuthEnvVar != "" && os.Getenv(model.AuthEnvVar) == "" {
			missing = append(missing, model.AuthEnvVar)
		}
	}
	if len(missing) == len(models) && len(models) > 0 {
		return warn("API keys", fmt.Sprintf("none set (%s); chat falls back to offline answers", strings.Join(missing, ", ")))
	}
	if len(missing) > 0 {
		return warn("API keys", fmt.Sprintf("missing: %s", strings.Join(missing, ", ")))
	}
	return ok("API keys", "detected for configured providers")
}

func rulesFileCheck(path string) domain.HealthCheck {
	if path == "" {
		return ok("Triage rules file", "using built-in patterns")
	}
	expanded := expandHome(path)
	if _, err := os.Stat(expanded); err != nil {
		return warn("Triage rules file", fmt.Sprintf("missing at %s (built-in patterns in effect)", expanded))
	}
	return ok("Triage rules file", expanded)
}

func storageCheck(path string) domain.HealthCheck {
	if path == "" {
		return warn("Portfolio storage", "storage.database_path not configured")
	}
	expanded := expandHome(path)
	dir := filepath.Dir(expanded)
	if err := os.MkdirAll(dir, domain.DirectoryPermissions); err != nil {
		return fail("Portfolio storage", fmt.Sprintf("cannot create %s: %v", dir, err))
	}
	return ok("Portfolio storage", expanded)
}

func expandHome(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
