package services

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/doeshing/risklens/internal/domain"
)

func TestDoctorReportsHealthy(t *testing.T) {
	dir := t.TempDir()
	cfg := baseConfig()
	cfg.Storage.DatabasePath = filepath.Join(dir, "risklens.db")
	cfg.Analysis.BaseURL = "http://localhost:8000"

	svc := &DoctorService{
		ConfigProvider: stubConfigProvider{cfg: cfg},
		Triage:         stubTriage{decision: showAllDecision()},
		Analysis:       &stubAnalysis{},
		Guests:         stubGuests{active: 2},
	}

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Healthy() {
		t.Errorf("expected healthy report: %+v", report.Checks)
	}
	if len(report.Checks) < 5 {
		t.Errorf("expected several checks, got %d", len(report.Checks))
	}
}

func TestDoctorWarnsOnUnreachableBackend(t *testing.T) {
	cfg := baseConfig()
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "risklens.db")

	svc := &DoctorService{
		ConfigProvider: stubConfigProvider{cfg: cfg},
		Triage:         stubTriage{decision: showAllDecision()},
		Analysis:       &stubAnalysis{err: domain.ErrBackendFailure},
	}

	report, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	found := false
	for _, check := range report.Checks {
		if check.Name == "Analysis backend" && check.Status == domain.HealthWarn {
			found = true
		}
	}
	if !found {
		t.Errorf("expected analysis warn, got %+v", report.Checks)
	}
	if !report.Healthy() {
		t.Error("warns alone should not mark the report unhealthy")
	}
}

type stubGuests struct {
	active int
}

func (s stubGuests) Create() string    { return "guest" }
func (s stubGuests) Touch(string) bool { return true }
func (s stubGuests) Active() int       { return s.active }
